package worker

import (
	"github.com/deskops/helpdesk-engine/internal/service"
)

// StartNotificationWorker subscribes the notification service to SLA and
// assignment events. Handlers run inline on the publishing goroutine.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
