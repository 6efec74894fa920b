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
	"github.com/aryan0dhankhar/bloodlink/internal/security/audit"
	"github.com/aryan0dhankhar/bloodlink/internal/security/auth"
)

// AuthService handles registration, login and credential changes for every role
type AuthService struct {
	store  *CredentialStore
	tokens *auth.TokenManager
	hasher *auth.PasswordHasher
	audit  *audit.Logger
	logger *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	store *CredentialStore,
	tokens *auth.TokenManager,
	hasher *auth.PasswordHasher,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}

	return &AuthService{
		store:  store,
		tokens: tokens,
		hasher: hasher,
		audit:  auditLog,
		logger: logger,
	}
}

// AuthResult is a signed token together with the principal it was issued for
type AuthResult struct {
	Principal domain.Principal
	Token     string
	ExpiresAt time.Time
}

type RegisterDonorInput struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	BloodGroup  string `json:"bloodGroup" validate:"required,bloodtype"`
	Age         int    `json:"age" validate:"required,gte=18,lte=65"`
	Gender      string `json:"gender" validate:"required,oneof=Male Female Other"`
	Phone       string `json:"phone" validate:"required"`
	City        string `json:"city" validate:"required"`
	State       string `json:"state" validate:"required"`
	IsAvailable *bool  `json:"isAvailable"`
}

type RegisterHospitalInput struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=6"`
	Phone         string `json:"phone" validate:"required"`
	City          string `json:"city" validate:"required"`
	State         string `json:"state" validate:"required"`
	ContactPerson string `json:"contactPerson" validate:"required"`
	LicenseNumber string `json:"licenseNumber" validate:"required"`
}

type RegisterAdminInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordInput struct {
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// RegisterDonor creates a donor account and signs a token for it
func (s *AuthService) RegisterDonor(ctx context.Context, in RegisterDonorInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.TrimSpace(in.State)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	available := true
	if in.IsAvailable != nil {
		available = *in.IsAvailable
	}
	donor := &domain.Donor{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Email:       domain.NormalizeEmail(in.Email),
		BloodGroup:  domain.BloodType(in.BloodGroup),
		Age:         in.Age,
		Gender:      domain.Gender(in.Gender),
		Phone:       in.Phone,
		City:        in.City,
		State:       in.State,
		IsAvailable: available,
	}
	return s.register(ctx, donor, in.Password)
}

// RegisterHospital creates a hospital that stays unverified until an admin acts
func (s *AuthService) RegisterHospital(ctx context.Context, in RegisterHospitalInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.TrimSpace(in.State)
	in.ContactPerson = strings.TrimSpace(in.ContactPerson)
	in.LicenseNumber = strings.TrimSpace(in.LicenseNumber)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	hospital := &domain.Hospital{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Email:         domain.NormalizeEmail(in.Email),
		Phone:         in.Phone,
		City:          in.City,
		State:         in.State,
		ContactPerson: in.ContactPerson,
		LicenseNumber: in.LicenseNumber,
		IsVerified:    false,
		Inventory:     []domain.InventoryItem{},
	}
	return s.register(ctx, hospital, in.Password)
}

// RegisterAdmin creates the admin account; it fails with ErrConflict once one exists
func (s *AuthService) RegisterAdmin(ctx context.Context, in RegisterAdminInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	admin := &domain.Admin{
		ID:    uuid.NewString(),
		Name:  in.Name,
		Email: domain.NormalizeEmail(in.Email),
	}
	return s.register(ctx, admin, in.Password)
}

func (s *AuthService) register(ctx context.Context, p domain.Principal, password string) (*AuthResult, error) {
	role := string(p.PrincipalRole())

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, fmt.Errorf("register %s: %w", role, err)
	}
	setPasswordHash(p, hash)

	if err := s.store.Create(ctx, p); err != nil {
		metrics.ObserveRegistration(role, "failed")
		if errors.Is(err, domain.ErrConflict) {
			if p.PrincipalRole() == domain.RoleAdmin {
				return nil, fmt.Errorf("admin already exists: %w", domain.ErrConflict)
			}
			return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
		s.logger.Error("failed to create principal",
			slog.String("role", role),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("register %s: %w", role, err)
	}

	result, err := s.issue(p)
	if err != nil {
		return nil, err
	}
	metrics.ObserveRegistration(role, "success")
	s.logger.Info("principal registered",
		slog.String("role", role),
		slog.String("principal_id", p.PrincipalID()),
	)
	return result, nil
}

// Login checks credentials among principals of role. Unknown emails and wrong
// passwords fail identically with ErrAuthentication. Unverified hospitals may
// log in; callers read the verification state off the returned principal.
func (s *AuthService) Login(ctx context.Context, role domain.Role, in LoginInput) (*AuthResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	p, err := s.store.FindByEmail(ctx, role, in.Email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("login %s: %w", role, err)
		}
		s.logger.Info("login attempt with unknown email", slog.String("role", string(role)))
		metrics.ObserveLogin(string(role), "failed")
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrAuthentication)
	}

	if !s.hasher.Compare(p.PasswordDigest(), in.Password) {
		s.logger.Info("login failed with wrong password",
			slog.String("role", string(role)),
			slog.String("principal_id", p.PrincipalID()),
		)
		metrics.ObserveLogin(string(role), "failed")
		s.audit.LogAction(ctx, string(role), p.PrincipalID(), "login", string(role), p.PrincipalID(), "failed", "wrong password")
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrAuthentication)
	}

	result, err := s.issue(p)
	if err != nil {
		return nil, err
	}
	metrics.ObserveLogin(string(role), "success")
	s.audit.LogAction(ctx, string(role), p.PrincipalID(), "login", string(role), p.PrincipalID(), "success", "")
	return result, nil
}

// ResetHospitalPassword replaces a hospital's password knowing only its email.
// Routes expose it behind a strict attempt limit and a kill switch.
func (s *AuthService) ResetHospitalPassword(ctx context.Context, in ResetPasswordInput) (*domain.Hospital, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	p, err := s.store.FindByEmail(ctx, domain.RoleHospital, in.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("no hospital found with this email: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("reset password: %w", err)
	}
	hospital := p.(*domain.Hospital)

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("reset password: %w", err)
	}
	hospital.PasswordHash = hash
	if err := s.store.Save(ctx, hospital); err != nil {
		s.audit.LogPasswordReset(ctx, hospital.ID, "failed")
		return nil, fmt.Errorf("reset password: %w", err)
	}

	s.audit.LogPasswordReset(ctx, hospital.ID, "success")
	return hospital, nil
}

// ChangePassword requires the current password; it works for every role
func (s *AuthService) ChangePassword(ctx context.Context, identity auth.Identity, in ChangePasswordInput) error {
	if err := validateInput(in); err != nil {
		return err
	}

	p, err := s.store.FindByID(ctx, identity.Role, identity.PrincipalID)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if !s.hasher.Compare(p.PasswordDigest(), in.CurrentPassword) {
		return fmt.Errorf("current password is incorrect: %w", domain.ErrAuthentication)
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	setPasswordHash(p, hash)
	if err := s.store.Save(ctx, p); err != nil {
		s.logger.Error("failed to update password", slog.String("error", err.Error()))
		return fmt.Errorf("change password: %w", err)
	}

	s.audit.LogAction(ctx, string(identity.Role), identity.PrincipalID, "change_password", string(identity.Role), identity.PrincipalID, "success", "")
	return nil
}

// Profile returns the caller's own principal record
func (s *AuthService) Profile(ctx context.Context, identity auth.Identity) (domain.Principal, error) {
	p, err := s.store.FindByID(ctx, identity.Role, identity.PrincipalID)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return p, nil
}

func (s *AuthService) issue(p domain.Principal) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(p.PrincipalID(), p.PrincipalRole())
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{Principal: p, Token: token, ExpiresAt: expiresAt}, nil
}
