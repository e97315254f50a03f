package handlers

import (
	"net/http"
	"strconv"

	"geofriends/middleware"
	"geofriends/models"
	"geofriends/utils/errors"

	"go.uber.org/zap"
)

// DefaultNearbyDistance is used when the nearby query omits distance (meters).
const DefaultNearbyDistance = 3000

type PositionHandler struct {
	positions PositionFacade
	log       *zap.Logger
	skipAuth  bool
}

type NearbyFriendsResponse struct {
	NearbyFriends []models.Position `json:"nearbyFriends"`
	Count         int               `json:"count"`
	Lon           float64           `json:"lon"`
	Lat           float64           `json:"lat"`
	Distance      float64           `json:"distance"`
}

func NewPositionHandler(positions PositionFacade, log *zap.Logger, skipAuth bool) *PositionHandler {
	return &PositionHandler{positions: positions, log: log, skipAuth: skipAuth}
}

// UpdateMyPosition stores the caller's current coordinates.
func (h *PositionHandler) UpdateMyPosition(w http.ResponseWriter, r *http.Request) {
	email, err := callerEmail(r, h.skipAuth)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	var input struct {
		Longitude *float64 `json:"longitude"`
		Latitude  *float64 `json:"latitude"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if input.Longitude == nil || input.Latitude == nil {
		middleware.WriteError(w, errors.NewValidationError([]string{"longitude and latitude are required"}))
		return
	}

	pos, err := h.positions.AddOrUpdatePosition(r.Context(), email, *input.Longitude, *input.Latitude)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, pos)
}

// GetNearbyFriends updates the caller's position and returns the friends
// within distance meters of it.
func (h *PositionHandler) GetNearbyFriends(w http.ResponseWriter, r *http.Request) {
	email, err := callerEmail(r, h.skipAuth)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	query := r.URL.Query()
	lon, err := strconv.ParseFloat(query.Get("lon"), 64)
	if err != nil {
		middleware.WriteError(w, errors.NewValidationError([]string{"lon must be a number"}))
		return
	}
	lat, err := strconv.ParseFloat(query.Get("lat"), 64)
	if err != nil {
		middleware.WriteError(w, errors.NewValidationError([]string{"lat must be a number"}))
		return
	}
	distance := float64(DefaultNearbyDistance)
	if raw := query.Get("distance"); raw != "" {
		distance, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			middleware.WriteError(w, errors.NewValidationError([]string{"distance must be a number"}))
			return
		}
	}

	friends, err := h.positions.FindNearbyFriends(r.Context(), email, lon, lat, distance)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, NearbyFriendsResponse{
		NearbyFriends: friends,
		Count:         len(friends),
		Lon:           lon,
		Lat:           lat,
		Distance:      distance,
	})
}

// GetAllPositions lists every stored position (admin).
func (h *PositionHandler) GetAllPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.GetAllPositions(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, positions)
}
