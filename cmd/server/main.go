package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
	"github.com/aryan0dhankhar/bloodlink/internal/featureflags"
	"github.com/aryan0dhankhar/bloodlink/internal/handler"
	"github.com/aryan0dhankhar/bloodlink/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/bloodlink/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/bloodlink/internal/observability/tracing"
	"github.com/aryan0dhankhar/bloodlink/internal/repository"
	"github.com/aryan0dhankhar/bloodlink/internal/security"
	"github.com/aryan0dhankhar/bloodlink/internal/security/audit"
	"github.com/aryan0dhankhar/bloodlink/internal/security/auth"
	"github.com/aryan0dhankhar/bloodlink/internal/security/middleware"
	"github.com/aryan0dhankhar/bloodlink/internal/security/ratelimit"
	"github.com/aryan0dhankhar/bloodlink/internal/service"
	"github.com/aryan0dhankhar/bloodlink/pkg/config"
	"github.com/aryan0dhankhar/bloodlink/pkg/database"
)

// resetAttempts is the tighter cap for the email-only hospital password reset
const resetAttempts = 3

type stores struct {
	donors    domain.DonorRepository
	hospitals domain.HospitalRepository
	admins    domain.AdminRepository
	requests  domain.BloodRequestRepository
	ping      handler.Pinger
	close     func() error
}

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting BloodLink server",
		slog.String("environment", cfg.Environment),
		slog.String("store", cfg.StoreBackend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Spans are only exported when an OTLP endpoint is configured
	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		SampleRatio: cfg.TraceSampleRatio,
		ServiceName: "bloodlink",
		Environment: cfg.Environment,
	}, log)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Open the store
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer st.close()

	// 5. Redis backs the credential attempt limiter when configured
	checks := map[string]handler.Pinger{"database": st.ping}
	var loginLimiter, resetLimiter ratelimit.AttemptLimiter
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		checks["redis"] = redisClient
		loginLimiter = ratelimit.NewRedisLimiter(redisClient, "login", cfg.AuthAttempts, cfg.AuthAttemptWindow, log)
		resetLimiter = ratelimit.NewRedisLimiter(redisClient, "reset", resetAttempts, cfg.AuthAttemptWindow, log)
	} else {
		checks["redis"] = nil
		loginLimiter = ratelimit.NewMemoryLimiter(cfg.AuthAttempts, cfg.AuthAttemptWindow)
		resetLimiter = ratelimit.NewMemoryLimiter(resetAttempts, cfg.AuthAttemptWindow)
	}

	// 6. Initialize security components
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	authz := security.NewAuthorizationService(log)
	auditLogger := audit.NewLogger(log)

	// 7. Initialize services
	credentials := service.NewCredentialStore(st.donors, st.hospitals, st.admins)
	authService := service.NewAuthService(credentials, tokenManager, hasher, auditLogger, log)
	hospitalService := service.NewHospitalService(st.hospitals, st.donors, authz, auditLogger, log)
	donorService := service.NewDonorService(st.donors, authz, log)
	requestService := service.NewBloodRequestService(st.requests, st.donors, hospitalService,
		service.NewLogNotifier(log), authz, auditLogger, log)

	// 8. Initialize handlers and routes
	resp := handler.NewResponder(log, cfg.IsDevelopment())
	router := handler.NewRouter(handler.RouterConfig{
		Auth:         handler.NewAuthHandler(authService, resp, log),
		Admin:        handler.NewAdminHandler(hospitalService, donorService, requestService, resp),
		Hospital:     handler.NewHospitalHandler(hospitalService, requestService, resp),
		Donor:        handler.NewDonorHandler(donorService, requestService, resp),
		Health:       handler.NewHealthHandler(checks, resp, log),
		Tokens:       tokenManager,
		Authz:        authz,
		Audit:        auditLogger,
		LoginLimiter: loginLimiter,
		ResetLimiter: resetLimiter,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		CORSOrigins: cfg.CORSAllowedOrigins,
		Logger:      log,
	})

	// 9. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      otelhttp.NewHandler(router, "bloodlink"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Float64("rate_limit_rps", cfg.RateLimitRPS),
		slog.Int("auth_attempts", cfg.AuthAttempts),
		slog.Duration("auth_attempt_window", cfg.AuthAttemptWindow),
		slog.Bool("redis", cfg.RedisURL != ""),
		slog.Bool("password_reset_disabled", featureflags.Enabled(featureflags.DisablePasswordReset)),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn("using in-memory store; data is lost on restart")
		mem := repository.NewMemoryStore()
		return &stores{
			donors:    mem.Donors(),
			hospitals: mem.Hospitals(),
			admins:    mem.Admins(),
			requests:  mem.BloodRequests(),
			ping:      handler.PingFunc(func(context.Context) error { return nil }),
			close:     func() error { return nil },
		}, nil
	}

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.NewConnectionPool(ctx, dbCfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if featureflags.Enabled(featureflags.AutoMigrate) {
		if err := database.RunMigrations(pool.GetDB()); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("migrations applied")
	}

	db := pool.GetDB()
	return &stores{
		donors:    repository.NewPostgresDonorRepository(db, log),
		hospitals: repository.NewPostgresHospitalRepository(db, log),
		admins:    repository.NewPostgresAdminRepository(db, log),
		requests:  repository.NewPostgresBloodRequestRepository(db, log),
		ping:      handler.PingFunc(pool.Health),
		close:     pool.Close,
	}, nil
}
