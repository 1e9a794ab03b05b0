package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/movie-rating-service/internal/service"
)

// StartNotificationWorker subscribes the notification handlers to the rating,
// movie, and user event streams.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
	logger.Info("notification worker started")
}
