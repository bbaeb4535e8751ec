// Package appointments provides the viewing appointments module.
package appointments

import (
	"nurture_backend/internal/appointments/handler"
	"nurture_backend/internal/appointments/repository"
	"nurture_backend/internal/appointments/service"
	"nurture_backend/internal/events"
	apphttp "nurture_backend/internal/http"
	"nurture_backend/internal/scheduler"
	"nurture_backend/platform/config"
	"nurture_backend/platform/logger"
	"nurture_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the appointments module.
type Module struct {
	handler *handler.Handler

	// Service is exported so the nurture module can use it as its
	// appointment booker and so main can inject the lead scheduler.
	Service *service.Service
}

// NewModule creates the appointments module with all dependencies wired.
// reminders may be nil when no Redis is configured; reminder scheduling
// is then skipped.
func NewModule(pool *pgxpool.Pool, mailer service.ConfirmationMailer, eventBus events.Bus, reminders scheduler.ReminderScheduler, val *validator.Validator, cfg config.NurtureConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, mailer, eventBus, reminders, cfg, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		Service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "appointments" }

// RegisterRoutes registers appointment routes on the authenticated API.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	appointments := ctx.Protected.Group("/appointments")
	m.handler.RegisterRoutes(appointments)
}

var _ apphttp.Module = (*Module)(nil)
