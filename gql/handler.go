package gql

import (
	"encoding/json"
	"net/http"
	"strings"

	"geofriends/middleware"
	"geofriends/utils/errors"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"go.uber.org/zap"
)

type request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
}

// Handler executes GraphQL requests against a schema. Identity is read from
// the request context, so it should sit behind the optional authenticator.
type Handler struct {
	schema   graphql.Schema
	log      *zap.Logger
	graphiql bool
}

func NewHandler(schema graphql.Schema, log *zap.Logger) *Handler {
	return &Handler{schema: schema, log: log}
}

// WithGraphiQL serves the GraphiQL IDE to browsers that GET the endpoint
// without a query.
func (h *Handler) WithGraphiQL(enabled bool) *Handler {
	h.graphiql = enabled
	return h
}

var errMutationOverGet = errors.NewAPIError("METHOD_NOT_ALLOWED", "Mutations must be sent with POST", http.StatusMethodNotAllowed)

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req request
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if req.Query == "" && h.graphiql && strings.Contains(r.Header.Get("Accept"), "text/html") {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(graphiqlPage))
			return
		}
		if raw := q.Get("variables"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
				middleware.WriteError(w, errors.NewValidationError([]string{"variables must be a JSON object"}))
				return
			}
		}
		if selectsMutation(req.Query, req.OperationName) {
			w.Header().Set("Allow", http.MethodPost)
			middleware.WriteError(w, errMutationOverGet)
			return
		}
	case http.MethodPost:
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			middleware.WriteError(w, errors.NewValidationError([]string{"body must be a JSON object with a query"}))
			return
		}
	default:
		middleware.WriteError(w, errors.NewAPIError("METHOD_NOT_ALLOWED", "Method not allowed", http.StatusMethodNotAllowed))
		return
	}

	if req.Query == "" {
		middleware.WriteError(w, errors.NewValidationError([]string{"query is required"}))
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        r.Context(),
	})
	if result.HasErrors() {
		h.log.Debug("graphql errors",
			zap.String("operation", req.OperationName),
			zap.Int("count", len(result.Errors)),
			zap.String("request_id", middleware.RequestIDFrom(r.Context())),
		)
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// selectsMutation reports whether executing query could run a mutation.
// Without an operation name every operation in the document counts.
// Unparseable documents are left for graphql.Do to reject.
func selectsMutation(query, operationName string) bool {
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	if err != nil {
		return false
	}
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if operationName != "" && (op.Name == nil || op.Name.Value != operationName) {
			continue
		}
		if op.Operation == ast.OperationTypeMutation {
			return true
		}
	}
	return false
}

const graphiqlPage = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8" />
  <title>GraphiQL</title>
  <link rel="stylesheet" href="https://unpkg.com/graphiql@3/graphiql.min.css" />
</head>
<body style="margin: 0">
  <div id="graphiql" style="height: 100vh"></div>
  <script crossorigin src="https://unpkg.com/react@18/umd/react.production.min.js"></script>
  <script crossorigin src="https://unpkg.com/react-dom@18/umd/react-dom.production.min.js"></script>
  <script crossorigin src="https://unpkg.com/graphiql@3/graphiql.min.js"></script>
  <script>
    const fetcher = GraphiQL.createFetcher({ url: window.location.pathname });
    ReactDOM.createRoot(document.getElementById("graphiql"))
      .render(React.createElement(GraphiQL, { fetcher }));
  </script>
</body>
</html>
`
