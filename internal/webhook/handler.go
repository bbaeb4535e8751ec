package webhook

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"nurture_backend/internal/nurture/domain"
	"nurture_backend/internal/nurture/inbound"
	"nurture_backend/internal/nurture/repository"
	"nurture_backend/platform/httpkit"
	"nurture_backend/platform/logger"
	"nurture_backend/platform/phone"
	"nurture_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgUnknownChannel   = "unknown channel"
)

// Delivery statuses reported back to the provider.
const (
	StatusProcessed = "processed"
	StatusIgnored   = "ignored"
)

// InboundMessageRequest is a provider delivery of one inbound message.
// From is the sender address: an email address for the email channel, a
// phone number for sms and whatsapp.
type InboundMessageRequest struct {
	From    string `json:"from" validate:"required,min=3,max=320"`
	Message string `json:"message" validate:"required,min=1,max=10000"`
}

// InboundMessageResponse reports what happened to the delivery.
type InboundMessageResponse struct {
	Status        string `json:"status"`
	Intent        string `json:"intent,omitempty"`
	NewStage      string `json:"newStage,omitempty"`
	AutoReplySent bool   `json:"autoReplySent"`
	Escalated     bool   `json:"escalated"`
}

// LeadResolver matches a sender address to a lead.
type LeadResolver interface {
	FindByEmail(ctx context.Context, email string) (repository.Lead, error)
	FindByPhone(ctx context.Context, phone string) (repository.Lead, error)
}

// Handler receives provider webhook deliveries.
type Handler struct {
	leads  LeadResolver
	router *inbound.Router
	val    *validator.Validator
	log    *logger.Logger
}

func NewHandler(leads LeadResolver, router *inbound.Router, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{leads: leads, router: router, val: val, log: log}
}

// HandleInboundMessage handles POST /api/v1/webhooks/inbound/:channel.
// Deliveries from unknown senders are acknowledged and dropped so
// providers do not retry them.
func (h *Handler) HandleInboundMessage(c *gin.Context) {
	channel := strings.ToLower(strings.TrimSpace(c.Param("channel")))
	if !domain.IsKnownChannel(channel) {
		httpkit.Error(c, http.StatusNotFound, msgUnknownChannel, nil)
		return
	}

	var req InboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, found, err := h.resolveLead(c.Request.Context(), channel, req.From)
	if err != nil {
		h.log.DatabaseError("webhook lead lookup", err)
		httpkit.Error(c, http.StatusInternalServerError, "request failed", nil)
		return
	}
	if !found {
		h.log.Info("inbound delivery from unknown sender dropped", "channel", channel)
		httpkit.OK(c, InboundMessageResponse{Status: StatusIgnored})
		return
	}

	result, err := h.router.HandleInbound(c.Request.Context(), lead.ID, channel, req.Message)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, InboundMessageResponse{
		Status:        StatusProcessed,
		Intent:        result.Intent,
		NewStage:      result.NewStage,
		AutoReplySent: result.AutoReplySent,
		Escalated:     result.Escalated,
	})
}

func (h *Handler) resolveLead(ctx context.Context, channel, from string) (repository.Lead, bool, error) {
	var (
		lead repository.Lead
		err  error
	)
	switch channel {
	case domain.ChannelEmail:
		lead, err = h.leads.FindByEmail(ctx, strings.TrimSpace(from))
	default:
		lead, err = h.leads.FindByPhone(ctx, phone.NormalizeE164(from))
	}
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, false, nil
	}
	if err != nil {
		return repository.Lead{}, false, err
	}
	return lead, true, nil
}
