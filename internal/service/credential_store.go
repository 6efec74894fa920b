package service

import (
	"context"
	"fmt"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
)

// CredentialStore resolves principals of any role through the per-role repositories
type CredentialStore struct {
	donors    domain.DonorRepository
	hospitals domain.HospitalRepository
	admins    domain.AdminRepository
}

func NewCredentialStore(donors domain.DonorRepository, hospitals domain.HospitalRepository, admins domain.AdminRepository) *CredentialStore {
	return &CredentialStore{donors: donors, hospitals: hospitals, admins: admins}
}

// FindByEmail looks email up among principals of role only
func (s *CredentialStore) FindByEmail(ctx context.Context, role domain.Role, email string) (domain.Principal, error) {
	email = domain.NormalizeEmail(email)
	switch role {
	case domain.RoleDonor:
		d, err := s.donors.GetByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		return d, nil
	case domain.RoleHospital:
		h, err := s.hospitals.GetByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		return h, nil
	case domain.RoleAdmin:
		a, err := s.admins.GetByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
}

func (s *CredentialStore) FindByID(ctx context.Context, role domain.Role, id string) (domain.Principal, error) {
	switch role {
	case domain.RoleDonor:
		d, err := s.donors.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return d, nil
	case domain.RoleHospital:
		h, err := s.hospitals.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return h, nil
	case domain.RoleAdmin:
		a, err := s.admins.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
}

// Create stores a new principal. Duplicate emails and a second admin surface
// as domain.ErrConflict.
func (s *CredentialStore) Create(ctx context.Context, p domain.Principal) error {
	switch v := p.(type) {
	case *domain.Donor:
		return s.donors.Create(ctx, v)
	case *domain.Hospital:
		return s.hospitals.Create(ctx, v)
	case *domain.Admin:
		return s.admins.CreateSingleton(ctx, v)
	default:
		return fmt.Errorf("unsupported principal %T", p)
	}
}

// Save persists changes to an existing principal
func (s *CredentialStore) Save(ctx context.Context, p domain.Principal) error {
	switch v := p.(type) {
	case *domain.Donor:
		return s.donors.Update(ctx, v)
	case *domain.Hospital:
		return s.hospitals.Update(ctx, v)
	case *domain.Admin:
		return s.admins.Update(ctx, v)
	default:
		return fmt.Errorf("unsupported principal %T", p)
	}
}

// setPasswordHash swaps the digest on any principal variant
func setPasswordHash(p domain.Principal, hash string) {
	switch v := p.(type) {
	case *domain.Donor:
		v.PasswordHash = hash
	case *domain.Hospital:
		v.PasswordHash = hash
	case *domain.Admin:
		v.PasswordHash = hash
	}
}
