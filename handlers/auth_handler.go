package handlers

import (
	"encoding/base64"
	"net/http"

	"geofriends/middleware"
	"geofriends/models"
	"geofriends/utils/errors"

	"go.uber.org/zap"
)

type AuthHandler struct {
	friends FriendFacade
	tokens  TokenIssuer
	log     *zap.Logger
}

type LoginResponse struct {
	Base64AuthString string `json:"base64AuthString"`
	Token            string `json:"token,omitempty"`
	User             string `json:"user"`
	Role             string `json:"role"`
}

// NewAuthHandler builds the registration and login handlers. tokens may be
// nil, in which case login only returns the Basic credentials.
func NewAuthHandler(friends FriendFacade, tokens TokenIssuer, log *zap.Logger) *AuthHandler {
	return &AuthHandler{friends: friends, tokens: tokens, log: log}
}

// RegisterFriend lets anyone create a friend with the "user" role.
func (h *AuthHandler) RegisterFriend(w http.ResponseWriter, r *http.Request) {
	var input models.FriendInput
	if err := decodeJSON(w, r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}

	friend, err := h.friends.AddFriend(r.Context(), input)
	if err != nil {
		h.log.Debug("registration rejected", zap.Error(err))
		middleware.WriteError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, friend)
}

// LoginUser verifies credentials and hands back a Basic auth string and,
// when configured, a bearer token.
func (h *AuthHandler) LoginUser(w http.ResponseWriter, r *http.Request) {
	var input struct {
		UserName string `json:"userName"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}
	userName := input.UserName
	if userName == "" {
		userName = input.Email
	}
	if userName == "" || input.Password == "" {
		middleware.WriteError(w, errors.NewValidationError([]string{"userName and password are required"}))
		return
	}

	user, err := h.friends.GetVerifiedUser(r.Context(), userName, input.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if user == nil {
		middleware.WriteError(w, errors.NewAPIError("LOGIN_FAILED", "Failed to login", http.StatusUnauthorized))
		return
	}

	resp := LoginResponse{
		Base64AuthString: "Basic " + base64.StdEncoding.EncodeToString([]byte(userName+":"+input.Password)),
		User:             user.Email,
		Role:             user.Role,
	}
	if h.tokens != nil {
		token, err := h.tokens.Issue(user)
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		resp.Token = token
	}

	h.log.Info("login", zap.String("email", user.Email))
	middleware.WriteJSON(w, http.StatusOK, resp)
}
