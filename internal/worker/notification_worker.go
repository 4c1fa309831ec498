package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-portal/internal/service"
)

// StartNotificationWorker registers notification handlers and returns a stop
// function that waits up to grace for deliveries still in flight.
func StartNotificationWorker(notificationService *service.NotificationService, grace time.Duration, logger *zap.Logger) func() {
	if notificationService == nil {
		return func() {}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	notificationService.RegisterHandlers()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := notificationService.Drain(ctx); err != nil {
			logger.Warn("notifications still pending at shutdown", zap.Error(err))
		}
	}
}
