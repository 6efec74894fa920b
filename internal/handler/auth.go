package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
	"github.com/aryan0dhankhar/bloodlink/internal/featureflags"
	"github.com/aryan0dhankhar/bloodlink/internal/service"
)

// AuthHandler handles registration, login and credential endpoints
type AuthHandler struct {
	authService *service.AuthService
	resp        *Responder
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, resp *Responder, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthHandler{
		authService: authService,
		resp:        resp,
		logger:      logger,
	}
}

// Register handles POST /auth/register/{role}
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	role, err := domain.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		h.resp.JSON(w, http.StatusNotFound, ErrorResponse{Message: err.Error()})
		return
	}

	var result *service.AuthResult
	switch role {
	case domain.RoleDonor:
		var in service.RegisterDonorInput
		if err = h.resp.Decode(w, r, &in); err == nil {
			result, err = h.authService.RegisterDonor(r.Context(), in)
		}
	case domain.RoleHospital:
		var in service.RegisterHospitalInput
		if err = h.resp.Decode(w, r, &in); err == nil {
			result, err = h.authService.RegisterHospital(r.Context(), in)
		}
	case domain.RoleAdmin:
		var in service.RegisterAdminInput
		if err = h.resp.Decode(w, r, &in); err == nil {
			result, err = h.authService.RegisterAdmin(r.Context(), in)
		}
	}
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	message := "Registration successful"
	if role == domain.RoleHospital {
		message = "Hospital registration successful. Waiting for admin verification."
	}
	h.resp.JSON(w, http.StatusCreated, authBody(result, message))
}

// Login handles POST /auth/login/{role}
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	role, err := domain.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		h.resp.JSON(w, http.StatusNotFound, ErrorResponse{Message: err.Error()})
		return
	}

	var in service.LoginInput
	if err := h.resp.Decode(w, r, &in); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	result, err := h.authService.Login(r.Context(), role, in)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	message := "Login successful"
	if hospital, ok := result.Principal.(*domain.Hospital); ok && !hospital.IsVerified {
		message = "Login successful. Your account is pending admin verification; request and donor search features are locked until then."
	}
	h.resp.JSON(w, http.StatusOK, authBody(result, message))
}

// ResetPassword handles POST /auth/reset-password/hospital
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	if featureflags.Enabled(featureflags.DisablePasswordReset) {
		h.resp.JSON(w, http.StatusForbidden, ErrorResponse{Message: "password reset is disabled"})
		return
	}

	var in service.ResetPasswordInput
	if err := h.resp.Decode(w, r, &in); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	hospital, err := h.authService.ResetHospitalPassword(r.Context(), in)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	h.resp.JSON(w, http.StatusOK, map[string]any{
		"message": "Password reset successful",
		"hospital": map[string]string{
			"id":    hospital.ID,
			"email": hospital.Email,
			"name":  hospital.Name,
		},
	})
}

// ChangePassword handles POST /auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var in service.ChangePasswordInput
	if err := h.resp.Decode(w, r, &in); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	if err := h.authService.ChangePassword(r.Context(), identity(r), in); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]string{"message": "password changed successfully"})
}

// Profile handles GET /auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.authService.Profile(r.Context(), identity(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, p)
}

// authBody keys the principal by its role, as clients expect
// ({"donor": ...}, {"hospital": ...} or {"admin": ...}), next to the token.
func authBody(result *service.AuthResult, message string) map[string]any {
	role := result.Principal.PrincipalRole()
	body := map[string]any{
		"role":      role,
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"message":   message,
	}
	body[string(role)] = result.Principal
	if hospital, ok := result.Principal.(*domain.Hospital); ok {
		body["isVerified"] = hospital.IsVerified
		body["verificationStatus"] = hospital.VerificationStatus()
	}
	return body
}
