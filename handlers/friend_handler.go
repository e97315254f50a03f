package handlers

import (
	"net/http"

	"geofriends/middleware"
	"geofriends/models"
	"geofriends/utils/errors"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type FriendHandler struct {
	friends  FriendFacade
	log      *zap.Logger
	skipAuth bool
}

func NewFriendHandler(friends FriendFacade, log *zap.Logger, skipAuth bool) *FriendHandler {
	return &FriendHandler{friends: friends, log: log, skipAuth: skipAuth}
}

// GetAllFriends lists every friend without roles or hashes.
func (h *FriendHandler) GetAllFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := h.friends.GetAllFriends(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	dtos := make([]models.FriendDTO, 0, len(friends))
	for _, f := range friends {
		dtos = append(dtos, f.DTO())
	}
	middleware.WriteJSON(w, http.StatusOK, dtos)
}

// GetMe returns the caller's own record.
func (h *FriendHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	email, err := callerEmail(r, h.skipAuth)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	h.writeFriend(w, r, email)
}

// EditMe lets the caller edit their own record. Roles cannot be changed here.
func (h *FriendHandler) EditMe(w http.ResponseWriter, r *http.Request) {
	email, err := callerEmail(r, h.skipAuth)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	h.edit(w, r, email, false)
}

// FindUser returns any friend by email (admin).
func (h *FriendHandler) FindUser(w http.ResponseWriter, r *http.Request) {
	h.writeFriend(w, r, mux.Vars(r)["email"])
}

// EditFriend edits any friend, including their role (admin).
func (h *FriendHandler) EditFriend(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, mux.Vars(r)["email"], true)
}

// DeleteFriend removes any friend (admin).
func (h *FriendHandler) DeleteFriend(w http.ResponseWriter, r *http.Request) {
	email := mux.Vars(r)["email"]
	deleted, err := h.friends.DeleteFriend(r.Context(), email)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if !deleted {
		middleware.WriteError(w, errors.NewNotFoundError("user not found"))
		return
	}

	h.log.Info("friend deleted", zap.String("email", email))
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *FriendHandler) writeFriend(w http.ResponseWriter, r *http.Request, email string) {
	friend, err := h.friends.GetFriend(r.Context(), email)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if friend == nil {
		middleware.WriteError(w, errors.NewNotFoundError("user not found"))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, friend.DTO())
}

func (h *FriendHandler) edit(w http.ResponseWriter, r *http.Request, email string, allowRole bool) {
	var input models.FriendInput
	if err := decodeJSON(w, r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}

	result, err := h.friends.EditFriend(r.Context(), email, input, allowRole)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}
