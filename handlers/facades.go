package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"geofriends/middleware"
	"geofriends/models"
	"geofriends/utils/errors"
)

// FriendFacade is what the REST and GraphQL transports need from the friend service.
type FriendFacade interface {
	AddFriend(ctx context.Context, in models.FriendInput) (*models.Friend, error)
	EditFriend(ctx context.Context, email string, in models.FriendInput, allowRole bool) (models.EditResult, error)
	DeleteFriend(ctx context.Context, email string) (bool, error)
	GetAllFriends(ctx context.Context) ([]models.Friend, error)
	GetFriend(ctx context.Context, email string) (*models.Friend, error)
	GetVerifiedUser(ctx context.Context, email, password string) (*models.Friend, error)
}

// PositionFacade is what the transports need from the position service.
type PositionFacade interface {
	AddOrUpdatePosition(ctx context.Context, email string, lon, lat float64) (*models.Position, error)
	FindNearbyFriends(ctx context.Context, email string, lon, lat, maxDistance float64) ([]models.Position, error)
	GetAllPositions(ctx context.Context) ([]models.Position, error)
}

// TokenIssuer signs bearer tokens at login.
type TokenIssuer interface {
	Issue(friend *models.Friend) (string, error)
}

var errAuthRequired = errors.NewAPIError("AUTH_REQUIRED", "This endpoint requires authentication", http.StatusInternalServerError)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON decodes the body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errors.NewAPIError(errors.ErrInvalidInput.Code, "Request body is empty", http.StatusBadRequest)
		}
		return errors.NewAPIError(errors.ErrInvalidInput.Code, errors.ErrInvalidInput.Message, http.StatusBadRequest, err.Error())
	}
	if dec.More() {
		return errors.NewAPIError(errors.ErrInvalidInput.Code, errors.ErrInvalidInput.Message, http.StatusBadRequest, "unexpected data after JSON body")
	}
	return nil
}

// callerEmail returns the authenticated caller's email. Without an identity
// the request is unauthenticated, or authentication is switched off.
func callerEmail(r *http.Request, skipAuth bool) (string, error) {
	id, ok := middleware.IdentityFrom(r.Context())
	if ok {
		return id.Email, nil
	}
	if skipAuth {
		return "", errAuthRequired
	}
	return "", errors.ErrUnauthorized
}
