package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"mentorjournal/internal/models"
)

func whoami(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-User", string(RoleFrom(r.Context())))
	w.WriteHeader(http.StatusOK)
}

func TestRequireAuth(t *testing.T) {
	m := NewAuthMiddleware([]byte("secret"))
	h := m.RequireAuth(http.HandlerFunc(whoami))

	token, err := m.Issue(7, models.RoleMentor)
	require.NoError(t, err)

	expired := NewAuthMiddleware([]byte("secret"))
	expired.ttl = -time.Minute
	old, err := expired.Issue(7, models.RoleMentor)
	require.NoError(t, err)

	forged, err := NewAuthMiddleware([]byte("other")).Issue(7, models.RoleAdmin)
	require.NoError(t, err)

	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "7"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"expired", "Bearer " + old, http.StatusUnauthorized},
		{"wrong key", "Bearer " + forged, http.StatusUnauthorized},
		{"no role", "Bearer " + noRole, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "mentor", rec.Header().Get("X-User"))
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(models.RoleAdmin, models.RoleMentor)(http.HandlerFunc(whoami))

	for role, want := range map[models.Role]int{
		models.RoleAdmin:     http.StatusOK,
		models.RoleMentor:    http.StatusOK,
		models.RoleJournaler: http.StatusForbidden,
		"":                   http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithUser(req.Context(), 1, role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "role %q", role)
	}
}

func TestZapRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(ZapRequestLogger(zap.New(core)))
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("hi")) })
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) { http.Error(w, "boom", http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "request completed", entries[0].Message)
	assert.Equal(t, int64(200), entries[0].ContextMap()["status"])
	assert.Equal(t, int64(2), entries[0].ContextMap()["bytes"])
	assert.NotEmpty(t, entries[0].ContextMap()["request_id"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.NotContains(t, entries[0].ContextMap(), "user_id")
}

func TestZapRequestLogger_RecordsRouteAndCaller(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := NewAuthMiddleware([]byte("secret"))
	r := chi.NewRouter()
	r.Use(ZapRequestLogger(zap.New(core)))
	r.With(m.RequireAuth).Get("/journal/{entryID}", whoami)

	token, err := m.Issue(42, models.RoleJournaler)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/journal/9", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(httptest.NewRecorder(), req)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/journal/9", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/journal/{entryID}", fields["route"])
	assert.Equal(t, "/journal/9", fields["path"])
	assert.Equal(t, int64(42), fields["user_id"])
	assert.Equal(t, "journaler", fields["role"])

	assert.Equal(t, int64(http.StatusUnauthorized), entries[1].ContextMap()["status"])
	assert.NotContains(t, entries[1].ContextMap(), "user_id")
}
