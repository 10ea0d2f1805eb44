package worker

import (
	"github.com/spec-kit/complaint-service/internal/service"
)

// StartNotificationWorker subscribes the notification service to the event feed.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
