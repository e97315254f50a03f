package middleware

import (
	"context"
	"net/http"
	"strings"

	"geofriends/models"
	"geofriends/services"
	"geofriends/utils/errors"

	"go.uber.org/zap"
)

// Identity is the authenticated caller.
type Identity struct {
	Email string
	Role  string
}

func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller stored by the auth middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// UserVerifier checks Basic credentials against stored hashes and loads the
// friend a bearer token was issued to.
type UserVerifier interface {
	GetVerifiedUser(ctx context.Context, email, password string) (*models.Friend, error)
	GetFriendByID(ctx context.Context, id string) (*models.Friend, error)
}

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(token string) (*services.Claims, error)
}

// Authenticator resolves the Authorization header into an Identity.
type Authenticator struct {
	users    UserVerifier
	tokens   TokenParser
	failures *IPRateLimiter
	log      *zap.Logger
}

func NewAuthenticator(users UserVerifier, tokens TokenParser, log *zap.Logger) *Authenticator {
	return &Authenticator{users: users, tokens: tokens, log: log}
}

// LimitFailures throttles Basic password checks per client IP. Every failed
// check spends a token; once a client's bucket is empty its Basic requests
// are answered 429 until it refills.
func (a *Authenticator) LimitFailures(l *IPRateLimiter) *Authenticator {
	a.failures = l
	return a
}

// resolve returns (identity, present, error). present is false when the
// request carries no Authorization header at all.
func (a *Authenticator) resolve(r *http.Request) (Identity, bool, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return Identity{}, false, nil
	}

	if strings.HasPrefix(authHeader, "Bearer ") {
		if a.tokens == nil {
			return Identity{}, true, errors.ErrUnauthorized
		}
		claims, err := a.tokens.Parse(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			return Identity{}, true, errors.ErrUnauthorized
		}
		// The stored record decides: deleted friends lose access, and role
		// and email changes apply to tokens already issued.
		friend, err := a.users.GetFriendByID(r.Context(), claims.Subject)
		if err != nil {
			return Identity{}, true, err
		}
		if friend == nil {
			return Identity{}, true, errors.ErrUnauthorized
		}
		return Identity{Email: friend.Email, Role: friend.Role}, true, nil
	}

	email, password, ok := r.BasicAuth()
	if !ok {
		return Identity{}, true, errors.ErrUnauthorized
	}
	ip := clientIP(r)
	if a.failures != nil && a.failures.Exhausted(ip) {
		return Identity{}, true, errors.ErrTooManyRequests
	}
	friend, err := a.users.GetVerifiedUser(r.Context(), email, password)
	if err != nil {
		return Identity{}, true, err
	}
	if friend == nil {
		if a.failures != nil {
			a.failures.Allow(ip)
		}
		return Identity{}, true, errors.ErrUnauthorized
	}
	return Identity{Email: friend.Email, Role: friend.Role}, true, nil
}

// RequireAuth rejects requests without valid credentials.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, present, err := a.resolve(r)
		if err != nil {
			a.log.Debug("authentication failed",
				zap.String("path", r.URL.Path),
				zap.Int("status", errors.StatusOf(err)),
				zap.String("request_id", RequestIDFrom(r.Context())),
				zap.Error(err),
			)
			WriteError(w, err)
			return
		}
		if !present {
			WriteError(w, errors.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// OptionalAuth lets anonymous requests through but rejects bad credentials.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, present, err := a.resolve(r)
		if err != nil {
			WriteError(w, err)
			return
		}
		if present {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects callers whose role differs from role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok || id.Role != role {
				WriteError(w, errors.ErrNotAuthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
