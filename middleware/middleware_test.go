package middleware

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"geofriends/models"
	"geofriends/services"
	"geofriends/utils/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeVerifier struct {
	users map[string]models.Friend // email -> friend, password is "secret"
	err   error
}

func (f fakeVerifier) GetVerifiedUser(_ context.Context, email, password string) (*models.Friend, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[email]
	if !ok || password != "secret" {
		return nil, nil
	}
	return &u, nil
}

func (f fakeVerifier) GetFriendByID(_ context.Context, id string) (*models.Friend, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.ID.Hex() == id {
			return &u, nil
		}
	}
	return nil, nil
}

func newTestAuthenticator() (*Authenticator, *services.TokenService) {
	auth, tokens, _ := newTestAuthenticatorWithUsers()
	return auth, tokens
}

func newTestAuthenticatorWithUsers() (*Authenticator, *services.TokenService, fakeVerifier) {
	tokens := services.NewTokenService("test-secret", time.Hour)
	users := fakeVerifier{users: map[string]models.Friend{
		"tt@mail.com":    {ID: primitive.NewObjectID(), Email: "tt@mail.com", Role: models.RoleUser},
		"admin@mail.com": {ID: primitive.NewObjectID(), Email: "admin@mail.com", Role: models.RoleAdmin},
	}}
	return NewAuthenticator(users, tokens, zap.NewNop()), tokens, users
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			WriteJSON(w, http.StatusOK, map[string]string{"email": ""})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"email": id.Email, "role": id.Role})
	})
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequireAuth_Basic(t *testing.T) {
	auth, _ := newTestAuthenticator()
	h := auth.RequireAuth(echoIdentity())

	req := httptest.NewRequest(http.MethodGet, "/api/friends/me", nil)
	req.SetBasicAuth("tt@mail.com", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tt@mail.com", decodeBody(t, rec)["email"])
}

func TestRequireAuth_Rejects(t *testing.T) {
	auth, _ := newTestAuthenticator()
	h := auth.RequireAuth(echoIdentity())

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong password", "Basic dHRAbWFpbC5jb206aWtrZQ=="}, // tt@mail.com:ikke
		{"malformed basic", "Basic !!!"},
		{"bad bearer", "Bearer nope"},
		{"unknown scheme", "Digest abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/friends/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireAuth_Bearer(t *testing.T) {
	auth, tokens, users := newTestAuthenticatorWithUsers()
	h := auth.RequireAuth(RequireRole(models.RoleAdmin)(echoIdentity()))

	bearer := func(t *testing.T, friend models.Friend) *httptest.ResponseRecorder {
		t.Helper()
		token, err := tokens.Issue(&friend)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/friends/all", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("stored admin", func(t *testing.T) {
		rec := bearer(t, users.users["admin@mail.com"])
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "admin@mail.com", body["email"])
		assert.Equal(t, models.RoleAdmin, body["role"])
	})

	t.Run("deleted friend", func(t *testing.T) {
		gone := models.Friend{ID: primitive.NewObjectID(), Email: "gone@mail.com", Role: models.RoleAdmin}
		rec := bearer(t, gone)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.NotContains(t, rec.Body.String(), "gone@mail.com")
	})

	t.Run("demoted after issue", func(t *testing.T) {
		friend := models.Friend{ID: primitive.NewObjectID(), Email: "boss@mail.com", Role: models.RoleAdmin}
		users.users[friend.Email] = friend
		token, err := tokens.Issue(&friend)
		require.NoError(t, err)

		demoted := friend
		demoted.Role = models.RoleUser
		users.users[friend.Email] = demoted

		req := httptest.NewRequest(http.MethodGet, "/api/friends/all", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "NOT_AUTHORIZED", decodeBody(t, rec)["code"])
	})

	t.Run("renamed after issue", func(t *testing.T) {
		friend := models.Friend{ID: primitive.NewObjectID(), Email: "old@mail.com", Role: models.RoleAdmin}
		token, err := tokens.Issue(&friend)
		require.NoError(t, err)

		renamed := friend
		renamed.Email = "new@mail.com"
		users.users[renamed.Email] = renamed

		req := httptest.NewRequest(http.MethodGet, "/api/friends/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		auth.RequireAuth(echoIdentity()).ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "new@mail.com", decodeBody(t, rec)["email"])
	})
}

func TestRequireAuth_LimitsFailedBasic(t *testing.T) {
	auth, _ := newTestAuthenticator()
	auth.LimitFailures(NewIPRateLimiter(0.001, 2))
	h := auth.RequireAuth(echoIdentity())

	send := func(remote, password string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/friends/me", nil)
		req.RemoteAddr = remote
		req.SetBasicAuth("tt@mail.com", password)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// Successful checks do not spend the budget.
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, send("10.0.0.1:1000", "secret"))
	}

	assert.Equal(t, http.StatusUnauthorized, send("10.0.0.1:1000", "guess1"))
	assert.Equal(t, http.StatusUnauthorized, send("10.0.0.1:1000", "guess2"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1000", "guess3"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1000", "secret"))

	assert.Equal(t, http.StatusOK, send("10.0.0.2:1000", "secret"))
}

func TestRequireAuth_VerifierFailureIs500(t *testing.T) {
	auth := NewAuthenticator(fakeVerifier{err: stderrors.New("db down")}, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/friends/me", nil)
	req.SetBasicAuth("tt@mail.com", "secret")
	rec := httptest.NewRecorder()
	auth.RequireAuth(echoIdentity()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestOptionalAuth(t *testing.T) {
	auth, _ := newTestAuthenticator()
	h := auth.OptionalAuth(echoIdentity())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", decodeBody(t, rec)["email"])

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.SetBasicAuth("tt@mail.com", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(models.RoleAdmin)(echoIdentity())

	tests := []struct {
		name string
		id   *Identity
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"user", &Identity{Email: "tt@mail.com", Role: models.RoleUser}, http.StatusUnauthorized},
		{"admin", &Identity{Email: "admin@mail.com", Role: models.RoleAdmin}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/friends/all", nil)
			if tt.id != nil {
				req = req.WithContext(WithIdentity(req.Context(), *tt.id))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.NewNotFoundError("user not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeBody(t, rec)
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Equal(t, "user not found", body["message"])
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, stderrors.New("connection refused to 10.0.0.1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.1")

	rec = httptest.NewRecorder()
	WriteError(rec, errors.Wrap(stderrors.New("secret driver text"), "DB_ERROR", "failed", http.StatusInternalServerError))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret driver text")
}

func TestErrorMiddleware_RecoversPanic(t *testing.T) {
	h := ErrorMiddleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestErrorMiddleware_LogsRequestID(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	SetErrorLogger(zap.New(core))
	t.Cleanup(func() { SetErrorLogger(zap.NewNop()) })

	h := RequestLogger(zap.NewNop())(ErrorMiddleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/friends/me", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	entries := logs.FilterMessage("panic recovered").All()
	require.Len(t, entries, 1)
	assert.Equal(t, rec.Header().Get(RequestIDHeader), entries[0].ContextMap()["request_id"])
}

func TestNotFoundHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFoundHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decodeBody(t, rec)["message"])
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(0.001, 2)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/friends/login", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1235"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1236"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1234"))
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware([]string{"http://localhost:5173"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/friends", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/friends", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger_AssignsID(t *testing.T) {
	var seen string
	h := RequestLogger(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/demo", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/demo", nil)
	req.Header.Set(RequestIDHeader, incoming)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, incoming, seen)
}
