package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
	"github.com/aryan0dhankhar/bloodlink/internal/observability/metrics"
	"github.com/aryan0dhankhar/bloodlink/internal/observability/tracing"
	"github.com/aryan0dhankhar/bloodlink/internal/security"
	"github.com/aryan0dhankhar/bloodlink/internal/security/audit"
	"github.com/aryan0dhankhar/bloodlink/internal/security/auth"
)

// BloodRequestService drives the request lifecycle:
// pending -> accepted -> completed, or pending -> cancelled.
type BloodRequestService struct {
	requests  domain.BloodRequestRepository
	donors    domain.DonorRepository
	hospitals *HospitalService
	notifier  Notifier
	authz     *security.AuthorizationService
	audit     *audit.Logger
	logger    *slog.Logger
	now       func() time.Time
}

func NewBloodRequestService(
	requests domain.BloodRequestRepository,
	donors domain.DonorRepository,
	hospitals *HospitalService,
	notifier Notifier,
	authz *security.AuthorizationService,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *BloodRequestService {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	if authz == nil {
		authz = security.NewAuthorizationService(logger)
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	return &BloodRequestService{
		requests:  requests,
		donors:    donors,
		hospitals: hospitals,
		notifier:  notifier,
		authz:     authz,
		audit:     auditLog,
		logger:    logger,
		now:       time.Now,
	}
}

type CreateBloodRequestInput struct {
	BloodType     string `json:"bloodType" validate:"required,bloodtype"`
	ContactPerson string `json:"contactPerson" validate:"required"`
	ContactNumber string `json:"contactNumber" validate:"required,digits10"`
	Urgent        bool   `json:"urgent"`
}

// Create posts a pending request for a verified hospital and notifies every
// donor whose blood group matches.
func (s *BloodRequestService) Create(ctx context.Context, hospitalID string, in CreateBloodRequestInput) (_ *domain.BloodRequest, err error) {
	ctx, span := tracing.Start(ctx, "BloodRequestService.Create",
		tracing.HospitalID.String(hospitalID),
		tracing.BloodType.String(strings.TrimSpace(in.BloodType)),
	)
	defer func() { tracing.End(span, err) }()

	if _, err := s.hospitals.RequireVerified(ctx, hospitalID); err != nil {
		return nil, err
	}

	in.BloodType = strings.TrimSpace(in.BloodType)
	in.ContactPerson = strings.TrimSpace(in.ContactPerson)
	in.ContactNumber = strings.TrimSpace(in.ContactNumber)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	req := &domain.BloodRequest{
		ID:            uuid.NewString(),
		HospitalID:    hospitalID,
		BloodType:     domain.BloodType(in.BloodType),
		ContactPerson: in.ContactPerson,
		ContactNumber: in.ContactNumber,
		Urgent:        in.Urgent,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create blood request: %w", err)
	}
	span.SetAttributes(tracing.RequestID.String(req.ID))
	metrics.ObserveBloodRequestCreated(string(req.BloodType), req.Urgent)
	s.logger.Info("blood request created",
		slog.String("request_id", req.ID),
		slog.String("hospital_id", hospitalID),
		slog.String("blood_type", string(req.BloodType)),
	)

	if _, err := s.MatchDonors(ctx, req.ID); err != nil {
		return nil, err
	}
	return s.load(ctx, req.ID)
}

// MatchDonors adds every donor of the request's blood type to its notified
// set and hands the newly added ids to the notifier. Repeating it is safe.
func (s *BloodRequestService) MatchDonors(ctx context.Context, requestID string) (_ []string, err error) {
	ctx, span := tracing.Start(ctx, "BloodRequestService.MatchDonors", tracing.RequestID.String(requestID))
	defer func() { tracing.End(span, err) }()

	added, err := s.requests.NotifyMatchingDonors(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("match donors: %w", err)
	}
	span.SetAttributes(tracing.Notified.Int(len(added)))
	metrics.ObserveDonorsNotified(len(added))
	if len(added) == 0 {
		return added, nil
	}

	req, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.notifier.NotifyDonors(ctx, req, added); err != nil {
		// the notified set is already stored; delivery failures are not fatal
		s.logger.Warn("donor notification failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
	}
	return added, nil
}

// ListForDonor returns pending requests the donor was notified of and that
// match the donor's current blood group, newest first, with hospital details.
func (s *BloodRequestService) ListForDonor(ctx context.Context, donorID string) ([]domain.BloodRequestView, error) {
	donor, err := s.donors.GetByID(ctx, donorID)
	if err != nil {
		return nil, fmt.Errorf("load donor: %w", err)
	}

	reqs, err := s.requests.ListPendingForDonor(ctx, donorID, donor.BloodGroup)
	if err != nil {
		return nil, fmt.Errorf("list donor requests: %w", err)
	}

	views := make([]domain.BloodRequestView, 0, len(reqs))
	for _, req := range reqs {
		summary, err := s.hospitals.Summary(ctx, req.HospitalID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		views = append(views, domain.BloodRequestView{BloodRequest: req, Hospital: summary})
	}
	return views, nil
}

// Respond records a donor's answer. Failures are reported in this order:
// NotFound, Authorization (donor not notified), InvalidState (no longer
// pending), Conflict (already answered). Of concurrent accepts exactly one
// wins; the rest see InvalidState.
func (s *BloodRequestService) Respond(ctx context.Context, donorID, requestID, response string) (_ *domain.BloodRequest, err error) {
	value := domain.ResponseValue(strings.ToLower(strings.TrimSpace(response)))
	ctx, span := tracing.Start(ctx, "BloodRequestService.Respond",
		tracing.RequestID.String(requestID),
		tracing.DonorID.String(donorID),
		tracing.Response.String(string(value)),
	)
	defer func() { tracing.End(span, err) }()

	if value != domain.ResponseAccepted && value != domain.ResponseRejected {
		ve := domain.NewValidationError()
		ve.Add("response", "must be one of: accepted, rejected")
		return nil, ve
	}

	req, err := s.requests.RecordResponse(ctx, requestID, domain.DonorResponse{
		DonorID:     donorID,
		Response:    value,
		RespondedAt: s.now().UTC(),
	})
	if err != nil {
		metrics.ObserveDonorResponse(string(value), "rejected")
		return nil, fmt.Errorf("respond to blood request: %w", err)
	}

	span.SetAttributes(
		tracing.Status.String(string(req.Status)),
		tracing.BloodType.String(string(req.BloodType)),
	)
	metrics.ObserveDonorResponse(string(value), "recorded")
	if value == domain.ResponseAccepted {
		metrics.ObserveStatusChange(string(domain.StatusAccepted))
	}
	s.audit.LogResponse(ctx, donorID, requestID, string(value))
	return req, nil
}

// UpdateStatus lets the owning hospital set any of the four statuses. The
// first move into completed credits the hospital and the accepted donor;
// reopening and completing again does not credit twice.
func (s *BloodRequestService) UpdateStatus(ctx context.Context, hospitalID, requestID, status string) (_ *domain.BloodRequest, err error) {
	ctx, span := tracing.Start(ctx, "BloodRequestService.UpdateStatus",
		tracing.RequestID.String(requestID),
		tracing.HospitalID.String(hospitalID),
		tracing.Status.String(status),
	)
	defer func() { tracing.End(span, err) }()

	newStatus, err := domain.ParseRequestStatus(strings.ToLower(strings.TrimSpace(status)))
	if err != nil {
		ve := domain.NewValidationError()
		ve.Add("status", "must be one of: pending, accepted, completed, cancelled")
		return nil, ve
	}

	if _, err := s.Get(ctx, hospitalID, requestID); err != nil {
		return nil, err
	}

	req, err := s.requests.UpdateStatus(ctx, requestID, newStatus, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("update blood request status: %w", err)
	}
	metrics.ObserveStatusChange(string(newStatus))
	s.audit.LogStatusChange(ctx, string(domain.RoleHospital), hospitalID, requestID, string(newStatus))
	return req, nil
}

// Get returns one request of the calling hospital
func (s *BloodRequestService) Get(ctx context.Context, hospitalID, requestID string) (*domain.BloodRequest, error) {
	req, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.ValidateOwnership(hospitalID, req.HospitalID, "blood request", requestID); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *BloodRequestService) ListForHospital(ctx context.Context, hospitalID string) ([]*domain.BloodRequest, error) {
	reqs, err := s.requests.ListByHospital(ctx, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("list hospital requests: %w", err)
	}
	return reqs, nil
}

// ListAll returns every request for the admin
func (s *BloodRequestService) ListAll(ctx context.Context, actor auth.Identity) ([]*domain.BloodRequest, error) {
	if err := s.authz.ValidatePermission(actor.Role, security.PermOverseeRequests); err != nil {
		return nil, err
	}
	reqs, err := s.requests.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blood requests: %w", err)
	}
	return reqs, nil
}

// Cancel is the admin override; only pending or accepted requests move
func (s *BloodRequestService) Cancel(ctx context.Context, actor auth.Identity, requestID string) (*domain.BloodRequest, error) {
	if err := s.authz.ValidatePermission(actor.Role, security.PermOverseeRequests); err != nil {
		return nil, err
	}
	req, err := s.requests.Cancel(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("cancel blood request: %w", err)
	}
	metrics.ObserveStatusChange(string(domain.StatusCancelled))
	s.audit.LogStatusChange(ctx, string(actor.Role), actor.PrincipalID, requestID, string(domain.StatusCancelled))
	return req, nil
}

// Renotify re-runs matching so donors registered after creation are reached
func (s *BloodRequestService) Renotify(ctx context.Context, hospitalID, requestID string) (*domain.BloodRequest, []string, error) {
	if _, err := s.hospitals.RequireVerified(ctx, hospitalID); err != nil {
		return nil, nil, err
	}
	req, err := s.Get(ctx, hospitalID, requestID)
	if err != nil {
		return nil, nil, err
	}
	if req.Status != domain.StatusPending {
		return nil, nil, fmt.Errorf("request is %s: %w", req.Status, domain.ErrInvalidState)
	}

	added, err := s.MatchDonors(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	req, err = s.load(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	return req, added, nil
}

func (s *BloodRequestService) load(ctx context.Context, requestID string) (*domain.BloodRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load blood request: %w", err)
	}
	return req, nil
}
