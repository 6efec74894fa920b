package service

import (
	"context"
	"log/slog"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
)

// Notifier delivers "new matching request" notices to donors. Delivery is
// outside this service; the default implementation only logs.
type Notifier interface {
	NotifyDonors(ctx context.Context, req *domain.BloodRequest, donorIDs []string) error
}

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyDonors(_ context.Context, req *domain.BloodRequest, donorIDs []string) error {
	n.logger.Info("donors notified of blood request",
		slog.String("request_id", req.ID),
		slog.String("blood_type", string(req.BloodType)),
		slog.Bool("urgent", req.Urgent),
		slog.Int("donors", len(donorIDs)),
	)
	return nil
}
