package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
	"github.com/aryan0dhankhar/bloodlink/internal/observability/metrics"
	"github.com/aryan0dhankhar/bloodlink/internal/security"
	"github.com/aryan0dhankhar/bloodlink/internal/security/audit"
	"github.com/aryan0dhankhar/bloodlink/internal/security/auth"
	"github.com/aryan0dhankhar/bloodlink/pkg/cache"
)

// summaryTTL bounds how long donors may see a hospital's old contact details
// when another replica changed them
const summaryTTL = time.Minute

// HospitalService owns the verification workflow and the hospital-side data
type HospitalService struct {
	hospitals domain.HospitalRepository
	donors    domain.DonorRepository
	authz     *security.AuthorizationService
	audit     *audit.Logger
	summaries *cache.Cache[*domain.HospitalSummary]
	logger    *slog.Logger
}

func NewHospitalService(
	hospitals domain.HospitalRepository,
	donors domain.DonorRepository,
	authz *security.AuthorizationService,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *HospitalService {
	if logger == nil {
		logger = slog.Default()
	}
	if authz == nil {
		authz = security.NewAuthorizationService(logger)
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	return &HospitalService{
		hospitals: hospitals,
		donors:    donors,
		authz:     authz,
		audit:     auditLog,
		summaries: cache.New[*domain.HospitalSummary](summaryTTL),
		logger:    logger,
	}
}

type HospitalProfileInput struct {
	Name          *string `json:"name" validate:"omitnil,min=1"`
	Phone         *string `json:"phone" validate:"omitnil,min=1"`
	City          *string `json:"city" validate:"omitnil,min=1"`
	State         *string `json:"state" validate:"omitnil,min=1"`
	ContactPerson *string `json:"contactPerson" validate:"omitnil,min=1"`
	LicenseNumber *string `json:"licenseNumber" validate:"omitnil,min=1"`
}

type InventoryInput struct {
	BloodGroup string `json:"bloodGroup" validate:"required,bloodtype"`
	Units      *int   `json:"units" validate:"required,gte=0"`
}

// SetVerified grants or revokes a hospital's verification. Only admins may
// call it and repeating the current state is a no-op.
func (s *HospitalService) SetVerified(ctx context.Context, actor auth.Identity, hospitalID string, verified bool) (*domain.Hospital, error) {
	if err := s.authz.ValidatePermission(actor.Role, security.PermManageHospitals); err != nil {
		return nil, err
	}

	hospital, err := s.hospitals.SetVerified(ctx, hospitalID, verified)
	if err != nil {
		return nil, fmt.Errorf("set hospital verification: %w", err)
	}

	metrics.ObserveVerification(verified)
	s.audit.LogVerification(ctx, actor.PrincipalID, hospitalID, verified)
	s.logger.Info("hospital verification changed",
		slog.String("hospital_id", hospitalID),
		slog.Bool("verified", verified),
	)
	return hospital, nil
}

// RequireVerified reads the flag afresh; gated operations call it on every invocation
func (s *HospitalService) RequireVerified(ctx context.Context, hospitalID string) (*domain.Hospital, error) {
	hospital, err := s.hospitals.GetByID(ctx, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("load hospital: %w", err)
	}
	if !hospital.IsVerified {
		return nil, fmt.Errorf("hospital not verified: %w", domain.ErrAuthorization)
	}
	return hospital, nil
}

func (s *HospitalService) Get(ctx context.Context, hospitalID string) (*domain.Hospital, error) {
	hospital, err := s.hospitals.GetByID(ctx, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("load hospital: %w", err)
	}
	return hospital, nil
}

// UpdateProfile applies the supplied fields. Verification, counters and the
// password are not reachable through it.
func (s *HospitalService) UpdateProfile(ctx context.Context, hospitalID string, in HospitalProfileInput) (*domain.Hospital, error) {
	for _, f := range []*string{in.Name, in.Phone, in.City, in.State, in.ContactPerson, in.LicenseNumber} {
		trimPtr(f)
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	hospital, err := s.hospitals.GetByID(ctx, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("load hospital: %w", err)
	}
	applyString(&hospital.Name, in.Name)
	applyString(&hospital.Phone, in.Phone)
	applyString(&hospital.City, in.City)
	applyString(&hospital.State, in.State)
	applyString(&hospital.ContactPerson, in.ContactPerson)
	applyString(&hospital.LicenseNumber, in.LicenseNumber)

	if err := s.hospitals.Update(ctx, hospital); err != nil {
		return nil, fmt.Errorf("update hospital: %w", err)
	}
	s.summaries.Delete(hospitalID)
	return hospital, nil
}

// Summary returns the public identity attached to requests shown to donors
func (s *HospitalService) Summary(ctx context.Context, hospitalID string) (*domain.HospitalSummary, error) {
	if summary, ok := s.summaries.Get(hospitalID); ok {
		return summary, nil
	}
	hospital, err := s.Get(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	summary := hospital.Summary()
	s.summaries.Set(hospitalID, summary)
	return summary, nil
}

// UpdateInventory sets the unit count of one blood group
func (s *HospitalService) UpdateInventory(ctx context.Context, hospitalID string, in InventoryInput) (*domain.Hospital, error) {
	if _, err := s.RequireVerified(ctx, hospitalID); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	hospital, err := s.hospitals.UpsertInventory(ctx, hospitalID, domain.InventoryItem{
		BloodGroup: domain.BloodType(in.BloodGroup),
		Units:      *in.Units,
	})
	if err != nil {
		return nil, fmt.Errorf("update inventory: %w", err)
	}
	return hospital, nil
}

// SearchDonors lists available donors, optionally narrowed by blood group and city
func (s *HospitalService) SearchDonors(ctx context.Context, hospitalID, bloodGroup, city string) ([]*domain.Donor, error) {
	if _, err := s.RequireVerified(ctx, hospitalID); err != nil {
		return nil, err
	}

	filter := domain.DonorFilter{AvailableOnly: true, City: strings.TrimSpace(city)}
	if bloodGroup = strings.TrimSpace(bloodGroup); bloodGroup != "" {
		bt := domain.BloodType(strings.ToUpper(bloodGroup))
		if !bt.Valid() {
			ve := domain.NewValidationError()
			ve.Add("bloodGroup", "must be one of: A+, A-, B+, B-, AB+, AB-, O+, O-")
			return nil, ve
		}
		filter.BloodGroup = bt
	}

	donors, err := s.donors.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search donors: %w", err)
	}
	return donors, nil
}

// List returns hospitals for the admin; verified nil means all of them
func (s *HospitalService) List(ctx context.Context, actor auth.Identity, verified *bool) ([]*domain.Hospital, error) {
	if err := s.authz.ValidatePermission(actor.Role, security.PermManageHospitals); err != nil {
		return nil, err
	}
	hospitals, err := s.hospitals.List(ctx, domain.HospitalFilter{Verified: verified})
	if err != nil {
		return nil, fmt.Errorf("list hospitals: %w", err)
	}
	return hospitals, nil
}

func applyString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
