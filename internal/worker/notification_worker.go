package worker

import (
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// StartEventWorkers subscribes the ticket event consumers. Either service may be nil.
// Cache invalidation is registered ahead of broker forwarding so a slow broker never delays it.
func StartEventWorkers(dispatcher events.Dispatcher, notificationService *service.NotificationService, dashboardService *service.DashboardService) {
	if dashboardService != nil {
		dashboardService.RegisterHandlers(dispatcher)
	}
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
}
