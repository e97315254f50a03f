package middleware

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"geofriends/utils/errors"

	"go.uber.org/zap"
)

// errorLog is used by WriteError for 5xx responses; main replaces it with
// the application logger.
var errorLog = zap.NewNop()

// SetErrorLogger sets the logger used for server errors.
func SetErrorLogger(log *zap.Logger) {
	if log != nil {
		errorLog = log
	}
}

// ErrorMiddleware recovers panics into a 500 JSON response
func ErrorMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					errorLog.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.String("request_id", RequestIDFrom(r.Context())),
					)
					WriteError(w, errors.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes err as a JSON response. Anything that is not an
// APIError is reported as a generic 500.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *errors.APIError
	if !stderrors.As(err, &apiErr) {
		errorLog.Error("unexpected error", zap.Error(err))
		apiErr = errors.ErrInternal
	} else if apiErr.Status >= 500 {
		errorLog.Error("server error", zap.String("code", apiErr.Code), zap.String("details", apiErr.Details))
		// Don't leak driver messages to clients.
		apiErr = errors.NewAPIError(apiErr.Code, apiErr.Message, apiErr.Status)
	}

	WriteJSON(w, apiErr.Status, apiErr)
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		errorLog.Warn("failed to encode response", zap.Error(err))
	}
}

// NotFoundHandler answers unmatched API routes with a JSON 404.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, errors.NewNotFoundError("not found"))
	})
}
