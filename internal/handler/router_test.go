package handler

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/bloodlink/internal/security/ratelimit"
)

func TestHospitalRegistrationStartsUnverified(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/auth/register/hospital", "", hospitalPayload("city"))
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Hospital registration successful. Waiting for admin verification.", body["message"])
	assert.Equal(t, false, body["isVerified"])
	assert.Equal(t, "pending", body["verificationStatus"])
	hospital := body["hospital"].(map[string]any)
	assert.NotContains(t, hospital, "password")
	assert.NotContains(t, hospital, "passwordHash")

	status, body = s.do(t, http.MethodPost, "/auth/login/hospital", "", map[string]any{
		"email": "city@hospital.test", "password": "hospital123",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, false, body["isVerified"])
	assert.Contains(t, body["message"], "pending admin verification")
	assert.NotEmpty(t, body["token"])
}

func TestVerifiedHospitalCreatesRequest(t *testing.T) {
	s := newTestServer(t)
	admin := s.registerAdmin(t)
	hospital := s.registerHospital(t, "h1")
	s.verify(t, admin, hospital.ID)

	status, body := s.do(t, http.MethodPost, "/hospital/blood-requests", hospital.Token, map[string]any{
		"bloodType": "O-", "contactPerson": "Jane", "contactNumber": "9876543210", "urgent": true,
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, hospital.ID, body["hospitalId"])
	assert.Equal(t, true, body["urgent"])
}

func TestDonorAcceptRace(t *testing.T) {
	s := newTestServer(t)
	admin := s.registerAdmin(t)
	hospital := s.registerHospital(t, "h1")
	s.verify(t, admin, hospital.ID)
	first := s.registerDonor(t, "asha", "O-")
	second := s.registerDonor(t, "ravi", "O-")
	other := s.registerDonor(t, "meera", "B+")

	status, created := s.do(t, http.MethodPost, "/hospital/blood-requests", hospital.Token, map[string]any{
		"bloodType": "O-", "contactPerson": "Jane", "contactNumber": "9876543210", "urgent": true,
	})
	require.Equal(t, http.StatusCreated, status)
	requestID := created["id"].(string)
	assert.ElementsMatch(t, []any{first.ID, second.ID}, created["notifiedDonors"])

	status, views := s.doList(t, "/donor/blood-requests", first.Token)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, views, 1)
	assert.Equal(t, requestID, views[0]["id"])
	assert.Equal(t, "h1", views[0]["hospital"].(map[string]any)["name"])

	status, views = s.doList(t, "/donor/blood-requests", other.Token)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, views)

	path := "/donor/blood-requests/" + requestID + "/respond"
	status, body := s.do(t, http.MethodPost, path, first.Token, map[string]any{"response": "accepted"})
	require.Equal(t, http.StatusOK, status, body)
	req := body["request"].(map[string]any)
	assert.Equal(t, "accepted", req["status"])
	assert.Equal(t, first.ID, req["acceptedBy"])

	status, body = s.do(t, http.MethodPost, path, second.Token, map[string]any{"response": "accepted"})
	assert.Equal(t, http.StatusConflict, status, body)

	status, _ = s.do(t, http.MethodPost, path, other.Token, map[string]any{"response": "accepted"})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestCreateRequestValidationNamesFields(t *testing.T) {
	s := newTestServer(t)
	admin := s.registerAdmin(t)
	hospital := s.registerHospital(t, "h1")
	s.verify(t, admin, hospital.ID)

	status, body := s.do(t, http.MethodPost, "/hospital/blood-requests", hospital.Token, map[string]any{
		"bloodType": "Z+", "contactPerson": "Jane", "contactNumber": "12345",
	})
	require.Equal(t, http.StatusBadRequest, status)
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "contactNumber")
	assert.Contains(t, fields, "bloodType")
	assert.NotContains(t, fields, "contactPerson")
}

func TestUnverifiedHospitalIsLockedOut(t *testing.T) {
	s := newTestServer(t)
	hospital := s.registerHospital(t, "h1")

	status, _ := s.do(t, http.MethodPost, "/hospital/blood-requests", hospital.Token, map[string]any{
		"bloodType": "O-", "contactPerson": "Jane", "contactNumber": "9876543210",
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, http.MethodGet, "/hospital/search-donors?bloodGroup=O-", hospital.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := s.do(t, http.MethodGet, "/hospital/profile", hospital.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["isVerified"])
}

func TestRoleGates(t *testing.T) {
	s := newTestServer(t)
	donor := s.registerDonor(t, "asha", "A+")
	hospital := s.registerHospital(t, "h1")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", http.MethodGet, "/donor/profile", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/donor/profile", "not-a-jwt", http.StatusUnauthorized},
		{"donor on admin", http.MethodGet, "/admin/hospitals", donor.Token, http.StatusForbidden},
		{"hospital on donor", http.MethodGet, "/donor/blood-requests", hospital.Token, http.StatusForbidden},
		{"donor on hospital", http.MethodGet, "/hospital/blood-requests", donor.Token, http.StatusForbidden},
		{"own profile", http.MethodGet, "/auth/profile", donor.Token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := s.do(t, tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestOnlyOneAdmin(t *testing.T) {
	s := newTestServer(t)
	s.registerAdmin(t)

	status, body := s.do(t, http.MethodPost, "/auth/register/admin", "", map[string]any{
		"name": "Second", "email": "second@bloodlink.test", "password": "admin123",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "admin already exists", body["message"])
}

func TestUnknownRoleIsNotFound(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, http.MethodPost, "/auth/login/nurse", "", map[string]any{
		"email": "x@y.test", "password": "secret1",
	})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.registerDonor(t, "asha", "A+")

	status, body := s.do(t, http.MethodPost, "/auth/login/donor", "", map[string]any{
		"email": "asha@donor.test", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotContains(t, body, "token")

	// the same email under another role is unknown
	status, _ = s.do(t, http.MethodPost, "/auth/login/hospital", "", map[string]any{
		"email": "asha@donor.test", "password": "donor123",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t)
	status, body := s.doRaw(t, http.MethodPost, "/auth/login/donor", "", "not an object")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "fields")
}

func TestResetPasswordFlow(t *testing.T) {
	s := newTestServer(t)
	s.registerHospital(t, "h1")

	status, body := s.do(t, http.MethodPost, "/auth/reset-password/hospital", "", map[string]any{
		"email": "h1@hospital.test", "newPassword": "fresh-pass",
	})
	require.Equal(t, http.StatusOK, status, body)

	status, _ = s.do(t, http.MethodPost, "/auth/login/hospital", "", map[string]any{
		"email": "h1@hospital.test", "password": "fresh-pass",
	})
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodPost, "/auth/reset-password/hospital", "", map[string]any{
		"email": "missing@hospital.test", "newPassword": "fresh-pass",
	})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestResetPasswordCanBeDisabled(t *testing.T) {
	t.Setenv("FLAG_DISABLE_PASSWORD_RESET", "true")
	s := newTestServer(t)
	s.registerHospital(t, "h1")

	status, body := s.do(t, http.MethodPost, "/auth/reset-password/hospital", "", map[string]any{
		"email": "h1@hospital.test", "newPassword": "fresh-pass",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "password reset is disabled", body["message"])
}

func TestResetPasswordIsAttemptLimited(t *testing.T) {
	s := newTestServer(t, withResetLimiter(ratelimit.NewMemoryLimiter(2, time.Minute)))
	payload := map[string]any{"email": "nobody@hospital.test", "newPassword": "fresh-pass"}

	for i := 0; i < 2; i++ {
		status, _ := s.do(t, http.MethodPost, "/auth/reset-password/hospital", "", payload)
		assert.Equal(t, http.StatusNotFound, status)
	}
	status, _ := s.do(t, http.MethodPost, "/auth/reset-password/hospital", "", payload)
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestChangePasswordNeedsCurrentPassword(t *testing.T) {
	s := newTestServer(t)
	donor := s.registerDonor(t, "asha", "A+")

	status, _ := s.do(t, http.MethodPost, "/auth/change-password", donor.Token, map[string]any{
		"currentPassword": "wrong", "newPassword": "brand-new",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := s.do(t, http.MethodPost, "/auth/change-password", donor.Token, map[string]any{
		"currentPassword": "donor123", "newPassword": "brand-new",
	})
	require.Equal(t, http.StatusOK, status, body)

	status, _ = s.do(t, http.MethodPost, "/auth/login/donor", "", map[string]any{
		"email": "asha@donor.test", "password": "brand-new",
	})
	assert.Equal(t, http.StatusOK, status)
}

func TestHospitalRequestLifecycle(t *testing.T) {
	s := newTestServer(t)
	admin := s.registerAdmin(t)
	hospital := s.registerHospital(t, "h1")
	intruder := s.registerHospital(t, "h2")
	s.verify(t, admin, hospital.ID)
	s.verify(t, admin, intruder.ID)

	status, created := s.do(t, http.MethodPost, "/hospital/blood-requests", hospital.Token, map[string]any{
		"bloodType": "AB+", "contactPerson": "Jane", "contactNumber": "9876543210",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Empty(t, created["notifiedDonors"])
	path := "/hospital/blood-requests/" + created["id"].(string)

	donor := s.registerDonor(t, "late", "AB+")
	status, body := s.do(t, http.MethodPost, path+"/notify", hospital.Token, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(1), body["newlyNotified"])

	status, _ = s.do(t, http.MethodGet, path, intruder.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = s.do(t, http.MethodPatch, path, intruder.Token, map[string]any{"status": "cancelled"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = s.do(t, http.MethodPatch, path, hospital.Token, map[string]any{"status": "done"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["fields"], "status")

	status, _ = s.do(t, http.MethodPost, "/donor/blood-requests/"+created["id"].(string)+"/respond",
		donor.Token, map[string]any{"response": "accepted"})
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPatch, path, hospital.Token, map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "completed", body["status"])

	status, list := s.doList(t, "/hospital/blood-requests", hospital.Token)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list, 1)

	status, body = s.do(t, http.MethodGet, "/hospital/profile", hospital.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["requestsMade"])
	assert.Equal(t, float64(1), body["requestsCompleted"])

	status, _ = s.do(t, http.MethodGet, "/hospital/blood-requests/missing", hospital.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSearchDonorsAcceptsUnescapedPlus(t *testing.T) {
	s := newTestServer(t)
	admin := s.registerAdmin(t)
	hospital := s.registerHospital(t, "h1")
	s.verify(t, admin, hospital.ID)
	s.registerDonor(t, "asha", "A+")
	s.registerDonor(t, "ravi", "B+")

	status, donors := s.doList(t, "/hospital/search-donors?bloodGroup=A+&city=Pune", hospital.Token)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, donors, 1)
	assert.Equal(t, "asha", donors[0]["name"])
	assert.NotContains(t, donors[0], "passwordHash")
}

func TestInventoryAndProfileUpdates(t *testing.T) {
	s := newTestServer(t)
	admin := s.registerAdmin(t)
	hospital := s.registerHospital(t, "h1")
	s.verify(t, admin, hospital.ID)

	status, body := s.do(t, http.MethodPatch, "/hospital/inventory", hospital.Token, map[string]any{
		"bloodGroup": "O+", "units": 7,
	})
	require.Equal(t, http.StatusOK, status, body)
	inventory := body["hospital"].(map[string]any)["availableBloodGroups"].([]any)
	require.Len(t, inventory, 1)

	status, body = s.do(t, http.MethodPatch, "/hospital/profile", hospital.Token, map[string]any{
		"city": "Mumbai", "isVerified": false,
	})
	require.Equal(t, http.StatusOK, status, body)
	updated := body["hospital"].(map[string]any)
	assert.Equal(t, "Mumbai", updated["city"])
	assert.Equal(t, true, updated["isVerified"])
}

func TestDonorSelfService(t *testing.T) {
	s := newTestServer(t)
	donor := s.registerDonor(t, "asha", "A+")

	status, body := s.do(t, http.MethodPatch, "/donor/availability", donor.Token, map[string]any{"isAvailable": false})
	require.Equal(t, http.StatusOK, status, body)

	status, body = s.do(t, http.MethodPatch, "/donor/availability", donor.Token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["fields"], "isAvailable")

	status, body = s.do(t, http.MethodPatch, "/donor/last-donation", donor.Token, map[string]any{
		"lastDonation": "2099-01-01T00:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, status, body)

	status, body = s.do(t, http.MethodPatch, "/donor/profile", donor.Token, map[string]any{"age": 12})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["fields"], "age")

	status, body = s.do(t, http.MethodGet, "/donor/profile", donor.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["isAvailable"])
}

func TestAdminOversight(t *testing.T) {
	s := newTestServer(t)
	admin := s.registerAdmin(t)
	pending := s.registerHospital(t, "pending")
	verified := s.registerHospital(t, "verified")
	s.verify(t, admin, verified.ID)
	s.registerDonor(t, "asha", "O+")

	status, list := s.doList(t, "/admin/unverified-hospitals", admin.Token)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list, 1)
	assert.Equal(t, pending.ID, list[0]["id"])

	status, list = s.doList(t, "/admin/hospitals", admin.Token)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list, 2)

	status, list = s.doList(t, "/admin/donors", admin.Token)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list, 1)

	status, created := s.do(t, http.MethodPost, "/hospital/blood-requests", verified.Token, map[string]any{
		"bloodType": "O+", "contactPerson": "Jane", "contactNumber": "9876543210",
	})
	require.Equal(t, http.StatusCreated, status)

	status, list = s.doList(t, "/admin/blood-requests", admin.Token)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list, 1)

	cancel := "/admin/blood-requests/" + created["id"].(string) + "/cancel"
	status, body := s.do(t, http.MethodPost, cancel, admin.Token, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "cancelled", body["request"].(map[string]any)["status"])

	status, _ = s.do(t, http.MethodPost, cancel, admin.Token, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = s.do(t, http.MethodPost, "/admin/unverify-hospital/"+verified.ID, admin.Token, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodPost, "/hospital/blood-requests", verified.Token, map[string]any{
		"bloodType": "O+", "contactPerson": "Jane", "contactNumber": "9876543210",
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, http.MethodPost, "/admin/verify-hospital/missing", admin.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestContentTypeIsEnforced(t *testing.T) {
	s := newTestServer(t)
	req, err := http.NewRequest(http.MethodPost, s.Server.URL+"/auth/login/donor",
		strings.NewReader(`{"email":"a@b.test","password":"secret1"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")

	resp, err := s.Server.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = s.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	status, raw := s.doRaw(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "bloodlink_http_requests_total")
}

func TestReadinessReportsFailingDependency(t *testing.T) {
	resp := NewResponder(nil, false)
	s := newTestServer(t, withHealthChecks(resp, map[string]Pinger{
		"database": stubPinger{},
		"redis":    stubPinger{err: errUnreachable},
		"cache":    nil,
	}))

	status, body := s.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "not configured", checks["cache"])
	assert.Contains(t, checks["redis"], "connection refused")
}
