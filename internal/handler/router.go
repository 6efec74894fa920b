package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
	"github.com/aryan0dhankhar/bloodlink/internal/observability/metrics"
	"github.com/aryan0dhankhar/bloodlink/internal/security"
	"github.com/aryan0dhankhar/bloodlink/internal/security/audit"
	"github.com/aryan0dhankhar/bloodlink/internal/security/middleware"
	"github.com/aryan0dhankhar/bloodlink/internal/security/ratelimit"
)

// RouterConfig carries everything the HTTP surface is assembled from
type RouterConfig struct {
	Auth     *AuthHandler
	Admin    *AdminHandler
	Hospital *HospitalHandler
	Donor    *DonorHandler
	Health   *HealthHandler

	Tokens       middleware.TokenVerifier
	Authz        *security.AuthorizationService
	Audit        *audit.Logger
	LoginLimiter ratelimit.AttemptLimiter
	ResetLimiter ratelimit.AttemptLimiter
	RateLimit    middleware.RateLimitConfig
	CORSOrigins  []string
	Logger       *slog.Logger
}

// NewRouter wires routes, role gates and the middleware chain
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(log))
	r.Use(metrics.HTTPMetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", cfg.Health.Health)
	r.Get("/readyz", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimit))
		r.Use(middleware.SanitizeInputs(log))
		r.Use(middleware.ValidateJSONContentType(log))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register/{role}", cfg.Auth.Register)
			r.With(middleware.AttemptLimit(cfg.LoginLimiter, log)).Post("/login/{role}", cfg.Auth.Login)
			r.With(middleware.AttemptLimit(cfg.ResetLimiter, log)).Post("/reset-password/hospital", cfg.Auth.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authenticate(cfg.Tokens, log))
				r.Use(middleware.AuditMiddleware(cfg.Audit))
				r.With(middleware.RequirePermission(cfg.Authz, security.PermViewOwnProfile, cfg.Audit)).Get("/profile", cfg.Auth.Profile)
				r.Post("/change-password", cfg.Auth.ChangePassword)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Authenticate(cfg.Tokens, log))
			r.Use(middleware.RequireRole(domain.RoleAdmin))
			r.Use(middleware.AuditMiddleware(cfg.Audit))

			r.Get("/unverified-hospitals", cfg.Admin.UnverifiedHospitals)
			r.Get("/hospitals", cfg.Admin.Hospitals)
			r.Post("/verify-hospital/{id}", cfg.Admin.VerifyHospital)
			r.Post("/unverify-hospital/{id}", cfg.Admin.UnverifyHospital)
			r.Get("/donors", cfg.Admin.Donors)
			r.Get("/blood-requests", cfg.Admin.BloodRequests)
			r.Post("/blood-requests/{id}/cancel", cfg.Admin.CancelBloodRequest)
		})

		r.Route("/hospital", func(r chi.Router) {
			r.Use(middleware.Authenticate(cfg.Tokens, log))
			r.Use(middleware.RequireRole(domain.RoleHospital))
			r.Use(middleware.AuditMiddleware(cfg.Audit))

			r.Get("/profile", cfg.Hospital.Profile)
			r.Patch("/profile", cfg.Hospital.UpdateProfile)
			r.Patch("/inventory", cfg.Hospital.UpdateInventory)
			r.With(middleware.RequirePermission(cfg.Authz, security.PermSearchDonors, cfg.Audit)).Get("/search-donors", cfg.Hospital.SearchDonors)

			r.Route("/blood-requests", func(r chi.Router) {
				r.Use(middleware.RequirePermission(cfg.Authz, security.PermManageRequests, cfg.Audit))
				r.Get("/", cfg.Hospital.ListBloodRequests)
				r.Post("/", cfg.Hospital.CreateBloodRequest)
				r.Get("/{id}", cfg.Hospital.GetBloodRequest)
				r.Patch("/{id}", cfg.Hospital.UpdateBloodRequestStatus)
				r.Post("/{id}/notify", cfg.Hospital.NotifyDonors)
			})
		})

		r.Route("/donor", func(r chi.Router) {
			r.Use(middleware.Authenticate(cfg.Tokens, log))
			r.Use(middleware.RequireRole(domain.RoleDonor))
			r.Use(middleware.AuditMiddleware(cfg.Audit))

			r.Get("/profile", cfg.Donor.Profile)
			r.Patch("/profile", cfg.Donor.UpdateProfile)
			r.Patch("/availability", cfg.Donor.UpdateAvailability)
			r.Patch("/last-donation", cfg.Donor.UpdateLastDonation)
			r.Get("/blood-requests", cfg.Donor.BloodRequests)
			r.With(middleware.RequirePermission(cfg.Authz, security.PermRespondToRequests, cfg.Audit)).Post("/blood-requests/{id}/respond", cfg.Donor.Respond)
		})
	})

	return r
}
