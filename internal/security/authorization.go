package security

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermViewOwnProfile     Permission = "view_own_profile"
	PermManageHospitals    Permission = "manage_hospitals"
	PermViewDonors         Permission = "view_donors"
	PermOverseeRequests    Permission = "oversee_requests"
	PermManageHospitalData Permission = "manage_hospital_data"
	PermSearchDonors       Permission = "search_donors"
	PermManageRequests     Permission = "manage_blood_requests"
	PermManageDonorData    Permission = "manage_donor_data"
	PermRespondToRequests  Permission = "respond_to_requests"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleAdmin: {
		PermViewOwnProfile,
		PermManageHospitals,
		PermViewDonors,
		PermOverseeRequests,
	},
	domain.RoleHospital: {
		PermViewOwnProfile,
		PermManageHospitalData,
		PermSearchDonors,
		PermManageRequests,
	},
	domain.RoleDonor: {
		PermViewOwnProfile,
		PermManageDonorData,
		PermRespondToRequests,
	},
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role domain.Role, permission Permission) bool {
	return slices.Contains(RolePermissions[role], permission)
}

// ValidatePermission returns an error wrapping domain.ErrAuthorization when role lacks permission
func (as *AuthorizationService) ValidatePermission(role domain.Role, permission Permission) error {
	if !as.HasPermission(role, permission) {
		as.logger.Warn("permission denied",
			slog.String("role", string(role)),
			slog.String("permission", string(permission)),
		)
		return fmt.Errorf("%w: %s role cannot %s", domain.ErrAuthorization, role, permission)
	}
	return nil
}

// GetRolePermissions returns all permissions for a role
func (as *AuthorizationService) GetRolePermissions(role domain.Role) []Permission {
	return RolePermissions[role]
}

// ValidateOwnership checks that principalID owns the resource. There is no
// admin bypass; callers that allow admins check the role first.
func (as *AuthorizationService) ValidateOwnership(principalID, ownerID, resource, resourceID string) error {
	if principalID != ownerID {
		as.logger.Warn("resource access denied",
			slog.String("principal_id", principalID),
			slog.String("resource", resource),
			slog.String("resource_id", resourceID),
			slog.String("owner_id", ownerID),
		)
		return fmt.Errorf("%w: not authorized to modify this %s", domain.ErrAuthorization, resource)
	}
	return nil
}
