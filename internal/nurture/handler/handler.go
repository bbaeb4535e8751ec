// Package handler exposes the nurture engine over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nurture_backend/internal/nurture/executor"
	"nurture_backend/internal/nurture/inbound"
	"nurture_backend/internal/nurture/repository"
	"nurture_backend/internal/nurture/transport"
	"nurture_backend/platform/apperr"
	"nurture_backend/platform/httpkit"
	"nurture_backend/platform/logger"
	"nurture_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead id"

	recentActivityLimit = 10
	manualTickTimeout   = 5 * time.Minute
)

// StatusStore is the read surface for the status endpoint.
type StatusStore interface {
	Get(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	RecentActivity(ctx context.Context, leadID uuid.UUID, limit int) ([]repository.ActivityEntry, error)
}

// Handler handles HTTP requests for the nurture engine.
type Handler struct {
	executor *executor.Executor
	router   *inbound.Router
	store    StatusStore
	val      *validator.Validator
	log      *logger.Logger
}

func New(ex *executor.Executor, router *inbound.Router, store StatusStore, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{executor: ex, router: router, store: store, val: val, log: log}
}

// RegisterRoutes registers the nurture routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads/:id/run", h.RunNow)
	rg.POST("/leads/:id/inbound", h.Inbound)
	rg.GET("/leads/:id/status", h.Status)
}

// RegisterAdminRoutes registers the admin-only nurture routes.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/nurture/tick", h.Tick)
}

// RunNow handles POST /api/v1/nurture/leads/:id/run
func (h *Handler) RunNow(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}
	if _, err := h.store.Get(c.Request.Context(), leadID); err != nil {
		h.handleStoreError(c, err)
		return
	}

	if !h.executor.RunNow(leadID, executor.TriggerManual) {
		httpkit.JSON(c, http.StatusAccepted, transport.RunNowResponse{
			Status: transport.RunStatusSkipped,
			Reason: "a nurture run for this lead is already in progress",
		})
		return
	}
	httpkit.JSON(c, http.StatusAccepted, transport.RunNowResponse{Status: transport.RunStatusStarted})
}

// Inbound handles POST /api/v1/nurture/leads/:id/inbound
func (h *Handler) Inbound(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}

	var req transport.InboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.router.HandleInbound(c.Request.Context(), leadID, req.Channel, req.Message)
	if err != nil {
		h.handleStoreError(c, err)
		return
	}

	httpkit.OK(c, transport.InboundResponse{
		Intent:        result.Intent,
		NewStage:      result.NewStage,
		AutoReplySent: result.AutoReplySent,
		Escalated:     result.Escalated,
	})
}

// Status handles GET /api/v1/nurture/leads/:id/status
func (h *Handler) Status(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}

	lead, err := h.store.Get(c.Request.Context(), leadID)
	if err != nil {
		h.handleStoreError(c, err)
		return
	}
	activity, err := h.store.RecentActivity(c.Request.Context(), leadID, recentActivityLimit)
	if err != nil {
		h.log.Error("recent activity lookup failed", "leadId", leadID, "error", err)
		activity = nil
	}

	resp := transport.StatusResponse{
		LeadID:              lead.ID.String(),
		Stage:               lead.Stage,
		NextActionAt:        lead.NextActionAt,
		ContactCount:        lead.ContactCount,
		LastChannel:         lead.LastChannel,
		LastContactAt:       lead.LastContactAt,
		HasInboundResponses: lead.HasInboundResponses,
	}
	for _, entry := range activity {
		resp.RecentActivity = append(resp.RecentActivity, transport.ActivityEntry{
			Level:     entry.Level,
			Message:   entry.Message,
			CreatedAt: entry.CreatedAt,
		})
	}
	httpkit.OK(c, resp)
}

// Tick handles POST /api/v1/admin/nurture/tick. The sweep runs in the
// background; the scheduler loop covers the same work on its own timer,
// so this is an operator convenience.
func (h *Handler) Tick(c *gin.Context) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), manualTickTimeout)
		defer cancel()
		if _, err := h.executor.Tick(ctx); err != nil {
			h.log.Error("manual tick failed", "error", err)
		}
	}()
	httpkit.JSON(c, http.StatusAccepted, transport.TickResponse{Status: transport.RunStatusStarted})
}

func (h *Handler) leadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func (h *Handler) handleStoreError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		httpkit.HandleError(c, apperr.NotFound("lead not found"))
		return
	}
	h.log.Error("nurture request failed", "error", err)
	httpkit.HandleError(c, apperr.Internal("request failed"))
}
