// Package gql exposes the friend and position facades over GraphQL.
package gql

import (
	"context"
	stderrors "errors"
	"time"

	"geofriends/handlers"
	"geofriends/middleware"
	"geofriends/models"
	"geofriends/utils/errors"
	"geofriends/validation"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"
)

// resolverError surfaces the APIError status and code in the GraphQL
// error's extensions.
type resolverError struct {
	*errors.APIError
}

func (e resolverError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func (e resolverError) Extensions() map[string]any {
	return map[string]any{"code": e.Code, "status": e.Status}
}

func toResolverError(err error) error {
	var apiErr *errors.APIError
	if stderrors.As(err, &apiErr) {
		if apiErr.Status >= 500 {
			apiErr = errors.NewAPIError(apiErr.Code, apiErr.Message, apiErr.Status)
		}
		return resolverError{apiErr}
	}
	return resolverError{errors.ErrInternal}
}

type resolvers struct {
	friends   handlers.FriendFacade
	positions handlers.PositionFacade
	log       *zap.Logger
	skipAuth  bool
}

// NewSchema builds the executable schema.
func NewSchema(friends handlers.FriendFacade, positions handlers.PositionFacade, log *zap.Logger, skipAuth bool) (graphql.Schema, error) {
	res := &resolvers{friends: friends, positions: positions, log: log, skipAuth: skipAuth}

	friendType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Friend",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.ID},
			"firstName": &graphql.Field{Type: graphql.String},
			"lastName":  &graphql.Field{Type: graphql.String},
			"email":     &graphql.Field{Type: graphql.String},
			"role":      &graphql.Field{Type: graphql.String},
		},
	})

	positionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Position",
		Fields: graphql.Fields{
			"email":       &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"lastUpdated": &graphql.Field{Type: graphql.String},
			"longitude":   &graphql.Field{Type: graphql.Float},
			"latitude":    &graphql.Field{Type: graphql.Float},
		},
	})

	friendInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "FriendInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"firstName": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"lastName":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"password":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"email":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	positionInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "PositionInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"email":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"longitude": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"latitude":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
		},
	})

	nearbyInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "NearbyInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"longitude": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"latitude":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"distance":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
		},
	})

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"getAllFriends": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(friendType)),
				Description: "Returns all details for all Friends (admin only)",
				Resolve:     res.getAllFriends,
			},
			"nearbyFriends": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(positionType)),
				Description: "Stores the caller's position and returns other friends within distance meters",
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(nearbyInput)},
				},
				Resolve: res.nearbyFriends,
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createFriend": &graphql.Field{
				Type:        friendType,
				Description: "Allows anyone (non authenticated users) to create a new friend",
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(friendInput)},
				},
				Resolve: res.createFriend,
			},
			"addPosition": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(positionInput)},
				},
				Resolve: res.addPosition,
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query, Mutation: mutation})
}

func friendResult(f models.Friend) map[string]any {
	return map[string]any{
		"id":        f.ID.Hex(),
		"firstName": f.FirstName,
		"lastName":  f.LastName,
		"email":     f.Email,
		"role":      f.Role,
	}
}

func positionResult(p models.Position) map[string]any {
	return map[string]any{
		"email":       p.Email,
		"name":        p.Name,
		"lastUpdated": p.LastUpdated.UTC().Format(time.RFC3339),
		"longitude":   p.Lon(),
		"latitude":    p.Lat(),
	}
}

func inputMap(p graphql.ResolveParams) map[string]any {
	in, _ := p.Args["input"].(map[string]any)
	return in
}

func stringArg(in map[string]any, key string) *string {
	s, ok := in[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func floatArg(in map[string]any, key string) float64 {
	switch v := in[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// callerMayActFor reports whether the request's identity may act on email.
func (r *resolvers) callerMayActFor(ctx context.Context, email string) bool {
	if r.skipAuth {
		return true
	}
	id, ok := middleware.IdentityFrom(ctx)
	return ok && (id.IsAdmin() || id.Email == validation.NormalizeEmail(email))
}

func (r *resolvers) getAllFriends(p graphql.ResolveParams) (any, error) {
	if !r.skipAuth {
		id, ok := middleware.IdentityFrom(p.Context)
		if !ok || !id.IsAdmin() {
			return nil, toResolverError(errors.ErrNotAuthorized)
		}
	}

	friends, err := r.friends.GetAllFriends(p.Context)
	if err != nil {
		return nil, toResolverError(err)
	}
	out := make([]map[string]any, 0, len(friends))
	for _, f := range friends {
		out = append(out, friendResult(f))
	}
	return out, nil
}

func (r *resolvers) nearbyFriends(p graphql.ResolveParams) (any, error) {
	id, ok := middleware.IdentityFrom(p.Context)
	if !ok {
		return nil, toResolverError(errors.ErrUnauthorized)
	}

	in := inputMap(p)
	positions, err := r.positions.FindNearbyFriends(p.Context, id.Email, floatArg(in, "longitude"), floatArg(in, "latitude"), floatArg(in, "distance"))
	if err != nil {
		return nil, toResolverError(err)
	}
	out := make([]map[string]any, 0, len(positions))
	for _, pos := range positions {
		out = append(out, positionResult(pos))
	}
	return out, nil
}

func (r *resolvers) createFriend(p graphql.ResolveParams) (any, error) {
	in := inputMap(p)
	friend, err := r.friends.AddFriend(p.Context, models.FriendInput{
		FirstName: stringArg(in, "firstName"),
		LastName:  stringArg(in, "lastName"),
		Email:     stringArg(in, "email"),
		Password:  stringArg(in, "password"),
	})
	if err != nil {
		return nil, toResolverError(err)
	}
	return friendResult(*friend), nil
}

// addPosition reports failure as false rather than as an error.
func (r *resolvers) addPosition(p graphql.ResolveParams) (any, error) {
	in := inputMap(p)
	email, _ := in["email"].(string)
	email = validation.NormalizeEmail(email)

	if !r.callerMayActFor(p.Context, email) {
		r.log.Debug("addPosition not authorized", zap.String("email", email))
		return false, nil
	}
	if _, err := r.positions.AddOrUpdatePosition(p.Context, email, floatArg(in, "longitude"), floatArg(in, "latitude")); err != nil {
		r.log.Debug("addPosition failed", zap.String("email", email), zap.Error(err))
		return false, nil
	}
	return true, nil
}
