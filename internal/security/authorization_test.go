package security

import (
	"errors"
	"testing"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
)

func TestRolePermissions(t *testing.T) {
	as := NewAuthorizationService(nil)

	cases := []struct {
		role domain.Role
		perm Permission
		want bool
	}{
		{domain.RoleAdmin, PermManageHospitals, true},
		{domain.RoleHospital, PermManageHospitals, false},
		{domain.RoleHospital, PermManageRequests, true},
		{domain.RoleDonor, PermManageRequests, false},
		{domain.RoleDonor, PermRespondToRequests, true},
		{domain.RoleAdmin, PermRespondToRequests, false},
		{domain.Role("ghost"), PermViewOwnProfile, false},
	}
	for _, tc := range cases {
		if got := as.HasPermission(tc.role, tc.perm); got != tc.want {
			t.Errorf("HasPermission(%s, %s) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}

	if err := as.ValidatePermission(domain.RoleDonor, PermSearchDonors); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestValidateOwnership(t *testing.T) {
	as := NewAuthorizationService(nil)
	if err := as.ValidateOwnership("h1", "h1", "blood request", "r1"); err != nil {
		t.Fatalf("owner must pass: %v", err)
	}
	if err := as.ValidateOwnership("h2", "h1", "blood request", "r1"); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}
