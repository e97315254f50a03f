package handlers

import (
	"net/http"

	"geofriends/middleware"
	"geofriends/models"
	"geofriends/utils/errors"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RouterConfig carries the collaborators the HTTP surface is built from.
type RouterConfig struct {
	Friends        FriendFacade
	Positions      PositionFacade
	Tokens         TokenIssuer // optional
	Auth           *middleware.Authenticator
	GraphQL        http.Handler // optional
	LoginLimiter   *middleware.IPRateLimiter
	AllowedOrigins []string
	SkipAuth       bool
	Log            *zap.Logger
}

// NewRouter wires the REST routes, /graphql and /demo.
func NewRouter(cfg RouterConfig) *mux.Router {
	authHandler := NewAuthHandler(cfg.Friends, cfg.Tokens, cfg.Log)
	friendHandler := NewFriendHandler(cfg.Friends, cfg.Log, cfg.SkipAuth)
	positionHandler := NewPositionHandler(cfg.Positions, cfg.Log, cfg.SkipAuth)

	self := func(h http.HandlerFunc) http.Handler {
		if cfg.SkipAuth {
			return h
		}
		return cfg.Auth.RequireAuth(h)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		if cfg.SkipAuth {
			return h
		}
		return cfg.Auth.RequireAuth(middleware.RequireRole(models.RoleAdmin)(h))
	}
	login := http.Handler(http.HandlerFunc(authHandler.LoginUser))
	if cfg.LoginLimiter != nil {
		login = cfg.LoginLimiter.Middleware(login)
	}

	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(cfg.Log))
	r.Use(middleware.ErrorMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	// Open to anyone so new users can register themselves
	r.HandleFunc("/api/friends", authHandler.RegisterFriend).Methods("POST", "OPTIONS")
	r.Handle("/api/friends/login", login).Methods("POST", "OPTIONS")

	// Friend routes; fixed paths are registered before /{email}
	r.Handle("/api/friends/all", admin(friendHandler.GetAllFriends)).Methods("GET", "OPTIONS")
	r.Handle("/api/friends/me", self(friendHandler.GetMe)).Methods("GET", "OPTIONS")
	r.Handle("/api/friends/editme", self(friendHandler.EditMe)).Methods("PUT", "OPTIONS")
	r.Handle("/api/friends/find-user/{email}", admin(friendHandler.FindUser)).Methods("GET", "OPTIONS")
	r.Handle("/api/friends/{email}", admin(friendHandler.EditFriend)).Methods("PUT", "OPTIONS")
	r.Handle("/api/friends/{email}", admin(friendHandler.DeleteFriend)).Methods("DELETE")

	// Position routes
	r.Handle("/api/positions", self(positionHandler.UpdateMyPosition)).Methods("POST", "OPTIONS")
	r.Handle("/api/positions/nearby", self(positionHandler.GetNearbyFriends)).Methods("GET", "OPTIONS")
	r.Handle("/api/positions/all", admin(positionHandler.GetAllPositions)).Methods("GET", "OPTIONS")

	if cfg.GraphQL != nil {
		gql := cfg.GraphQL
		if !cfg.SkipAuth {
			gql = cfg.Auth.OptionalAuth(gql)
		}
		r.Handle("/graphql", gql).Methods("GET", "POST", "OPTIONS")
	}

	r.HandleFunc("/demo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Server is up"))
	}).Methods("GET")

	r.NotFoundHandler = middleware.NotFoundHandler()
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, errors.NewAPIError("METHOD_NOT_ALLOWED", "Method not allowed", http.StatusMethodNotAllowed))
	})

	return r
}
