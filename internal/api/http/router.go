package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/complaint-service/internal/api/http/handlers"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Complaints     *handlers.ComplaintsHandler
	Roster         *handlers.RosterHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	protected.Post("/classify", cfg.Complaints.Classify)
	protected.Get("/notifications", cfg.Notifications.Inbox)

	complaints := protected.Group("/complaints")
	complaints.Post("/", cfg.Complaints.Create)
	complaints.Get("/", cfg.Complaints.List)
	complaints.Get("/stats", cfg.Complaints.Stats)
	complaints.Post("/auto-assign", auth.RequireRole(domain.RoleSupervisor), cfg.Complaints.AutoAssignBacklog)
	complaints.Get("/:id", cfg.Complaints.Get)
	complaints.Get("/:id/sla", cfg.Complaints.SLA)
	complaints.Post("/:id/comments", cfg.Complaints.Comment)
	complaints.Post("/:id/feedback", cfg.Complaints.Feedback)

	complaints.Patch("/:id/status", auth.RequireStaff(), cfg.Complaints.ChangeStatus)
	complaints.Post("/:id/reopen", auth.RequireStaff(), cfg.Complaints.Reopen)
	complaints.Post("/:id/assign", auth.RequireStaff(), cfg.Complaints.Assign)
	complaints.Post("/:id/escalate", auth.RequireStaff(), cfg.Complaints.Escalate)
	complaints.Post("/:id/auto-assign", auth.RequireRole(domain.RoleSupervisor), cfg.Complaints.AutoAssign)
	complaints.Get("/:id/internal-notes", auth.RequireStaff(), cfg.Complaints.InternalNotes)
	complaints.Post("/:id/internal-notes", auth.RequireStaff(), cfg.Complaints.AddInternalNote)

	roster := protected.Group("/roster/handlers", auth.RequireStaff())
	roster.Get("/", cfg.Roster.List)
	roster.Put("/:id", cfg.Roster.Upsert)
	roster.Patch("/:id/availability", cfg.Roster.SetAvailability)
}
