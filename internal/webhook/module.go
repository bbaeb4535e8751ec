// Package webhook receives inbound message deliveries from channel
// providers and routes them into the nurture engine.
package webhook

import (
	apphttp "nurture_backend/internal/http"
	"nurture_backend/internal/nurture/inbound"
	"nurture_backend/platform/config"
	"nurture_backend/platform/logger"
	"nurture_backend/platform/validator"
)

// Module is the provider-facing webhook module.
type Module struct {
	handler *Handler
	cfg     config.WebhookConfig
	log     *logger.Logger
}

// NewModule creates the webhook module.
func NewModule(leads LeadResolver, router *inbound.Router, cfg config.WebhookConfig, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{
		handler: NewHandler(leads, router, val, log),
		cfg:     cfg,
		log:     log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "webhook" }

// RegisterRoutes mounts the provider webhook under /api/v1/webhooks with
// API-key auth and the webhook rate limit instead of JWT.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	webhooks := ctx.V1.Group("/webhooks")
	if ctx.WebhookRateLimiter != nil {
		webhooks.Use(ctx.WebhookRateLimiter.RateLimit())
	}
	webhooks.Use(APIKeyAuthMiddleware(m.cfg, m.log))
	webhooks.POST("/inbound/:channel", m.handler.HandleInboundMessage)
}

var _ apphttp.Module = (*Module)(nil)
