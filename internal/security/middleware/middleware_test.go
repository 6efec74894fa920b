package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
	"github.com/aryan0dhankhar/bloodlink/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/bloodlink/internal/security"
	"github.com/aryan0dhankhar/bloodlink/internal/security/auth"
	"github.com/aryan0dhankhar/bloodlink/internal/security/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["message"]
}

func TestAuthenticate(t *testing.T) {
	tm := auth.NewTokenManager("secret", "bloodlink", time.Hour)
	token, _, err := tm.Issue("donor-1", domain.RoleDonor)
	require.NoError(t, err)

	var seen auth.Identity
	h := Authenticate(tm, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.NotEmpty(t, decodeMessage(t, rec))
			}
		})
	}
	assert.Equal(t, auth.Identity{PrincipalID: "donor-1", Role: domain.RoleDonor}, seen)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(domain.RoleAdmin)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/hospitals", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/hospitals", nil)
	req = req.WithContext(WithIdentity(req.Context(), auth.Identity{PrincipalID: "h1", Role: domain.RoleHospital}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/hospitals", nil)
	req = req.WithContext(WithIdentity(req.Context(), auth.Identity{PrincipalID: "a1", Role: domain.RoleAdmin}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequirePermission(t *testing.T) {
	authz := security.NewAuthorizationService(nil)
	h := RequirePermission(authz, security.PermSearchDonors, nil)(okHandler())

	for role, want := range map[domain.Role]int{
		domain.RoleHospital: http.StatusOK,
		domain.RoleDonor:    http.StatusForbidden,
		domain.RoleAdmin:    http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/hospital/search-donors", nil)
		req = req.WithContext(WithIdentity(req.Context(), auth.Identity{PrincipalID: "x", Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "role %s", role)
	}
}

func TestRequestID(t *testing.T) {
	var fromCtx string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = logger.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, fromCtx)
	assert.Equal(t, fromCtx, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "given")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "given", fromCtx)
}

func TestRateLimit_RejectsOverBurst(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 2})(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate limit exceeded", decodeMessage(t, rec))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:4000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "other clients keep their own bucket")
}

func TestAttemptLimit(t *testing.T) {
	h := AttemptLimit(ratelimit.NewMemoryLimiter(1, time.Minute), slog.Default())(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login/donor", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login/donor", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestValidateJSONContentType(t *testing.T) {
	h := ValidateJSONContentType(slog.Default())(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/auth/login/donor", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/admin/verify-hospital/1", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSanitizeInputs(t *testing.T) {
	h := SanitizeInputs(slog.Default())(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hospital/search-donors?city=%3Cscript%3E", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hospital/search-donors?bloodGroup=AB%2B&city=Pune", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
