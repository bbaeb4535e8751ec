package handler

import (
	"net/http"

	"nurture_backend/internal/appointments/service"
	"nurture_backend/internal/appointments/transport"
	"nurture_backend/platform/httpkit"
	"nurture_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid appointment id"
	msgInvalidLeadID    = "invalid lead id"
)

const defaultListLimit = 20

// Handler handles HTTP requests for appointments.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new appointments handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the appointment routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id", h.Get)
	rg.POST("/:id/confirm", h.Confirm)
	rg.POST("/:id/cancel", h.Cancel)
	rg.GET("/lead/:leadId", h.ListForLead)
}

// Get handles GET /api/v1/appointments/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id", msgInvalidID)
	if !ok {
		return
	}

	appt, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromAppointment(appt))
}

// Confirm handles POST /api/v1/appointments/:id/confirm.
func (h *Handler) Confirm(c *gin.Context) {
	id, ok := parseIDParam(c, "id", msgInvalidID)
	if !ok {
		return
	}

	var req transport.ConfirmAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	appt, err := h.svc.Confirm(c.Request.Context(), id, req.ScheduledAt)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromAppointment(appt))
}

// Cancel handles POST /api/v1/appointments/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := parseIDParam(c, "id", msgInvalidID)
	if !ok {
		return
	}

	appt, err := h.svc.Cancel(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromAppointment(appt))
}

// ListForLead handles GET /api/v1/appointments/lead/:leadId.
func (h *Handler) ListForLead(c *gin.Context) {
	leadID, ok := parseIDParam(c, "leadId", msgInvalidLeadID)
	if !ok {
		return
	}

	list, err := h.svc.ListForLead(c.Request.Context(), leadID, defaultListLimit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromAppointments(list))
}

func parseIDParam(c *gin.Context, name, errMsg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errMsg, nil)
		return uuid.UUID{}, false
	}
	return id, true
}
