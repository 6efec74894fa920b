package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
	"github.com/aryan0dhankhar/bloodlink/internal/security"
	"github.com/aryan0dhankhar/bloodlink/internal/security/auth"
)

// DonorService manages a donor's own record
type DonorService struct {
	donors domain.DonorRepository
	authz  *security.AuthorizationService
	logger *slog.Logger
	now    func() time.Time
}

func NewDonorService(donors domain.DonorRepository, authz *security.AuthorizationService, logger *slog.Logger) *DonorService {
	if logger == nil {
		logger = slog.Default()
	}
	if authz == nil {
		authz = security.NewAuthorizationService(logger)
	}
	return &DonorService{donors: donors, authz: authz, logger: logger, now: time.Now}
}

type DonorProfileInput struct {
	Name        *string `json:"name" validate:"omitnil,min=1"`
	BloodGroup  *string `json:"bloodGroup" validate:"omitnil,bloodtype"`
	Age         *int    `json:"age" validate:"omitnil,gte=18,lte=65"`
	Gender      *string `json:"gender" validate:"omitnil,oneof=Male Female Other"`
	Phone       *string `json:"phone" validate:"omitnil,min=1"`
	City        *string `json:"city" validate:"omitnil,min=1"`
	State       *string `json:"state" validate:"omitnil,min=1"`
	IsAvailable *bool   `json:"isAvailable"`
}

type AvailabilityInput struct {
	IsAvailable *bool `json:"isAvailable" validate:"required"`
}

type LastDonationInput struct {
	LastDonation time.Time `json:"lastDonation" validate:"required"`
}

func (s *DonorService) Get(ctx context.Context, donorID string) (*domain.Donor, error) {
	donor, err := s.donors.GetByID(ctx, donorID)
	if err != nil {
		return nil, fmt.Errorf("load donor: %w", err)
	}
	return donor, nil
}

// UpdateProfile applies the supplied fields; email, password and the donation
// record are not reachable through it.
func (s *DonorService) UpdateProfile(ctx context.Context, donorID string, in DonorProfileInput) (*domain.Donor, error) {
	for _, f := range []*string{in.Name, in.BloodGroup, in.Gender, in.Phone, in.City, in.State} {
		trimPtr(f)
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	donor, err := s.donors.GetByID(ctx, donorID)
	if err != nil {
		return nil, fmt.Errorf("load donor: %w", err)
	}
	applyString(&donor.Name, in.Name)
	applyString(&donor.Phone, in.Phone)
	applyString(&donor.City, in.City)
	applyString(&donor.State, in.State)
	if in.BloodGroup != nil {
		donor.BloodGroup = domain.BloodType(*in.BloodGroup)
	}
	if in.Gender != nil {
		donor.Gender = domain.Gender(*in.Gender)
	}
	if in.Age != nil {
		donor.Age = *in.Age
	}
	if in.IsAvailable != nil {
		donor.IsAvailable = *in.IsAvailable
	}

	if err := s.donors.Update(ctx, donor); err != nil {
		return nil, fmt.Errorf("update donor: %w", err)
	}
	return donor, nil
}

func (s *DonorService) SetAvailability(ctx context.Context, donorID string, in AvailabilityInput) (*domain.Donor, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	return s.UpdateProfile(ctx, donorID, DonorProfileInput{IsAvailable: in.IsAvailable})
}

// SetLastDonation records a donation date; dates in the future are rejected
func (s *DonorService) SetLastDonation(ctx context.Context, donorID string, in LastDonationInput) (*domain.Donor, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.LastDonation.After(s.now()) {
		ve := domain.NewValidationError()
		ve.Add("lastDonation", "cannot be in the future")
		return nil, ve
	}

	donor, err := s.donors.SetLastDonation(ctx, donorID, in.LastDonation.UTC())
	if err != nil {
		return nil, fmt.Errorf("update donor: %w", err)
	}
	return donor, nil
}

// List returns every donor for the admin
func (s *DonorService) List(ctx context.Context, actor auth.Identity) ([]*domain.Donor, error) {
	if err := s.authz.ValidatePermission(actor.Role, security.PermViewDonors); err != nil {
		return nil, err
	}
	donors, err := s.donors.List(ctx, domain.DonorFilter{})
	if err != nil {
		return nil, fmt.Errorf("list donors: %w", err)
	}
	return donors, nil
}
