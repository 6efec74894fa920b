package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/bloodlink/internal/repository"
	"github.com/aryan0dhankhar/bloodlink/internal/security"
	"github.com/aryan0dhankhar/bloodlink/internal/security/audit"
	"github.com/aryan0dhankhar/bloodlink/internal/security/auth"
	"github.com/aryan0dhankhar/bloodlink/internal/security/middleware"
	"github.com/aryan0dhankhar/bloodlink/internal/security/ratelimit"
	"github.com/aryan0dhankhar/bloodlink/internal/service"
)

// testServer runs the full router over the in-memory store
type testServer struct {
	Server *httptest.Server
	Store  *repository.MemoryStore
}

type serverOption func(*RouterConfig)

func withResetLimiter(l ratelimit.AttemptLimiter) serverOption {
	return func(cfg *RouterConfig) { cfg.ResetLimiter = l }
}

func withHealthChecks(resp *Responder, checks map[string]Pinger) serverOption {
	return func(cfg *RouterConfig) { cfg.Health = NewHealthHandler(checks, resp, nil) }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := repository.NewMemoryStore()
	tokens := auth.NewTokenManager("handler-test-secret", "bloodlink", time.Hour)
	authz := security.NewAuthorizationService(log)
	auditLog := audit.NewLogger(log)

	creds := service.NewCredentialStore(store.Donors(), store.Hospitals(), store.Admins())
	authService := service.NewAuthService(creds, tokens, auth.NewPasswordHasher(4), auditLog, log)
	hospitals := service.NewHospitalService(store.Hospitals(), store.Donors(), authz, auditLog, log)
	donors := service.NewDonorService(store.Donors(), authz, log)
	requests := service.NewBloodRequestService(store.BloodRequests(), store.Donors(), hospitals,
		service.NewLogNotifier(log), authz, auditLog, log)

	resp := NewResponder(log, false)
	cfg := RouterConfig{
		Auth:         NewAuthHandler(authService, resp, log),
		Admin:        NewAdminHandler(hospitals, donors, requests, resp),
		Hospital:     NewHospitalHandler(hospitals, requests, resp),
		Donor:        NewDonorHandler(donors, requests, resp),
		Health:       NewHealthHandler(nil, resp, log),
		Tokens:       tokens,
		Authz:        authz,
		Audit:        auditLog,
		LoginLimiter: ratelimit.NewMemoryLimiter(100, time.Minute),
		ResetLimiter: ratelimit.NewMemoryLimiter(100, time.Minute),
		RateLimit:    middleware.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		CORSOrigins:  []string{"http://localhost:3000"},
		Logger:       log,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	server := httptest.NewServer(NewRouter(cfg))
	t.Cleanup(server.Close)
	return &testServer{Server: server, Store: store}
}

// do sends body as JSON and decodes the JSON answer into a generic map
func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	status, raw := s.doRaw(t, method, path, token, body)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return status, out
}

// doList is do for endpoints answering with a JSON array
func (s *testServer) doList(t *testing.T, path, token string) (int, []map[string]any) {
	t.Helper()
	status, raw := s.doRaw(t, http.MethodGet, path, token, nil)
	var out []map[string]any
	if status == http.StatusOK {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return status, out
}

func (s *testServer) doRaw(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, s.Server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.Server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

type session struct {
	ID    string
	Token string
}

func (s *testServer) registerAdmin(t *testing.T) session {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/auth/register/admin", "", map[string]any{
		"name": "Admin", "email": "admin@bloodlink.test", "password": "admin123",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return sessionFrom(t, body, "admin")
}

func (s *testServer) registerHospital(t *testing.T, name string) session {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/auth/register/hospital", "", hospitalPayload(name))
	require.Equal(t, http.StatusCreated, status, body)
	return sessionFrom(t, body, "hospital")
}

func (s *testServer) registerDonor(t *testing.T, name, bloodGroup string) session {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/auth/register/donor", "", map[string]any{
		"name": name, "email": name + "@donor.test", "password": "donor123",
		"bloodGroup": bloodGroup, "age": 30, "gender": "Female",
		"phone": "9876500000", "city": "Pune", "state": "MH",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return sessionFrom(t, body, "donor")
}

func (s *testServer) verify(t *testing.T, admin session, hospitalID string) {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/admin/verify-hospital/"+hospitalID, admin.Token, nil)
	require.Equal(t, http.StatusOK, status, body)
}

func hospitalPayload(name string) map[string]any {
	return map[string]any{
		"name": name, "email": name + "@hospital.test", "password": "hospital123",
		"phone": "0201234567", "city": "Pune", "state": "MH",
		"contactPerson": "Dr. " + name, "licenseNumber": "LIC-" + name,
	}
}

func sessionFrom(t *testing.T, body map[string]any, role string) session {
	t.Helper()
	principal, ok := body[role].(map[string]any)
	require.True(t, ok, "missing %q in %v", role, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return session{ID: principal["id"].(string), Token: token}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

var errUnreachable = errors.New("connection refused")
