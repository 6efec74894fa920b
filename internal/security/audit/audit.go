package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/bloodlink/internal/infrastructure/logger"
)

// Logger writes one structured line per security-relevant action
type Logger struct {
	logger *slog.Logger
}

func NewLogger(log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{logger: log}
}

// LogAction records who did what to which resource and how it ended
func (al *Logger) LogAction(ctx context.Context, role, principalID, action, resource, resourceID, status, details string) {
	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("role", role),
		slog.String("principal_id", principalID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", logger.RequestIDFromContext(ctx)),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogVerification(ctx context.Context, adminID, hospitalID string, verified bool) {
	action := "verify_hospital"
	if !verified {
		action = "unverify_hospital"
	}
	al.LogAction(ctx, "admin", adminID, action, "hospital", hospitalID, "success", "")
}

func (al *Logger) LogStatusChange(ctx context.Context, role, principalID, requestID, status string) {
	al.LogAction(ctx, role, principalID, "update_status", "blood_request", requestID, "success", status)
}

func (al *Logger) LogResponse(ctx context.Context, donorID, requestID, response string) {
	al.LogAction(ctx, "donor", donorID, "respond", "blood_request", requestID, "success", response)
}

func (al *Logger) LogPasswordReset(ctx context.Context, hospitalID, status string) {
	al.LogAction(ctx, "hospital", hospitalID, "reset_password", "hospital", hospitalID, status, "")
}

func (al *Logger) LogDenied(ctx context.Context, role, principalID, reason string) {
	al.LogAction(ctx, role, principalID, "access_denied", "api", "", "denied", reason)
}
