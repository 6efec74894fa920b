package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
	"github.com/aryan0dhankhar/bloodlink/internal/repository"
	"github.com/aryan0dhankhar/bloodlink/internal/security/auth"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls map[string][]string
}

func (n *recordingNotifier) NotifyDonors(_ context.Context, req *domain.BloodRequest, donorIDs []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.calls == nil {
		n.calls = map[string][]string{}
	}
	n.calls[req.ID] = append(n.calls[req.ID], donorIDs...)
	return nil
}

type testEnv struct {
	store     *repository.MemoryStore
	tokens    *auth.TokenManager
	auth      *AuthService
	hospitals *HospitalService
	donors    *DonorService
	requests  *BloodRequestService
	notifier  *recordingNotifier
	admin     auth.Identity
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	tokens := auth.NewTokenManager("test-secret", "bloodlink", time.Hour)
	creds := NewCredentialStore(store.Donors(), store.Hospitals(), store.Admins())
	notifier := &recordingNotifier{}

	env := &testEnv{
		store:     store,
		tokens:    tokens,
		auth:      NewAuthService(creds, tokens, auth.NewPasswordHasher(4), nil, nil),
		hospitals: NewHospitalService(store.Hospitals(), store.Donors(), nil, nil, nil),
		donors:    NewDonorService(store.Donors(), nil, nil),
		notifier:  notifier,
	}
	env.requests = NewBloodRequestService(store.BloodRequests(), store.Donors(), env.hospitals, notifier, nil, nil, nil)

	res, err := env.auth.RegisterAdmin(context.Background(), RegisterAdminInput{
		Name: "Admin", Email: "admin@bloodlink.test", Password: "admin123",
	})
	require.NoError(t, err)
	env.admin = auth.Identity{PrincipalID: res.Principal.PrincipalID(), Role: domain.RoleAdmin}
	return env
}

func (e *testEnv) registerHospital(t *testing.T, name string, verified bool) *domain.Hospital {
	t.Helper()
	res, err := e.auth.RegisterHospital(context.Background(), RegisterHospitalInput{
		Name:          name,
		Email:         name + "@hospital.test",
		Password:      "hospital123",
		Phone:         "0201234567",
		City:          "Pune",
		State:         "MH",
		ContactPerson: "Dr. " + name,
		LicenseNumber: "LIC-" + name,
	})
	require.NoError(t, err)
	h := res.Principal.(*domain.Hospital)
	if verified {
		h, err = e.hospitals.SetVerified(context.Background(), e.admin, h.ID, true)
		require.NoError(t, err)
	}
	return h
}

func (e *testEnv) registerDonor(t *testing.T, name string, group domain.BloodType) *domain.Donor {
	t.Helper()
	res, err := e.auth.RegisterDonor(context.Background(), RegisterDonorInput{
		Name:       name,
		Email:      fmt.Sprintf("%s@donor.test", name),
		Password:   "donor123",
		BloodGroup: string(group),
		Age:        30,
		Gender:     "Female",
		Phone:      "9876543210",
		City:       "Pune",
		State:      "MH",
	})
	require.NoError(t, err)
	return res.Principal.(*domain.Donor)
}

func (e *testEnv) createRequest(t *testing.T, hospitalID string, group domain.BloodType) *domain.BloodRequest {
	t.Helper()
	req, err := e.requests.Create(context.Background(), hospitalID, CreateBloodRequestInput{
		BloodType:     string(group),
		ContactPerson: "Dr. Rao",
		ContactNumber: "9876543210",
		Urgent:        true,
	})
	require.NoError(t, err)
	return req
}
