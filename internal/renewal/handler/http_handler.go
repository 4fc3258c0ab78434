package handler

import (
	"context"
	"time"

	"crm_renewal_backend/internal/renewal/domain"
	"crm_renewal_backend/internal/renewal/service"
	"crm_renewal_backend/internal/renewal/transport"
	"crm_renewal_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Refresher requests a recompute pass. In the API process this enqueues a
// task for the scheduler; the pass itself never runs in a request handler.
type Refresher interface {
	RequestRecompute(ctx context.Context) error
}

type HTTPHandler struct {
	svc       *service.Service
	refresher Refresher
	staleness time.Duration
	clock     func() time.Time
}

func NewHTTPHandler(svc *service.Service, staleness time.Duration) *HTTPHandler {
	return &HTTPHandler{
		svc:       svc,
		staleness: staleness,
		clock:     time.Now,
	}
}

// SetRefresher wires the manual refresh trigger.
func (h *HTTPHandler) SetRefresher(r Refresher) { h.refresher = r }

func (h *HTTPHandler) RegisterRenewalRoutes(rg *gin.RouterGroup) {
	rg.GET("/at-risk", h.AtRisk)
	rg.POST("/refresh", h.Refresh)
}

func (h *HTTPHandler) RegisterAccountRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/neglected", h.Neglected)
}

// AtRisk serves the cache snapshot. Always answers, even when the snapshot
// is stale; the state field tells the client.
func (h *HTTPHandler) AtRisk(c *gin.Context) {
	records, computedAt, computed, err := h.svc.Snapshot(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.SnapshotResponse{
		State: "stale",
		Items: make([]transport.AtRiskItem, 0, len(records)),
	}
	if computed {
		resp.ComputedAt = &computedAt
		if h.clock().Sub(computedAt) <= h.staleness {
			resp.State = "fresh"
		}
	}
	for _, rec := range records {
		resp.Items = append(resp.Items, transport.FromRecord(rec))
	}
	resp.Total = len(resp.Items)

	httpkit.OK(c, resp)
}

// Refresh enqueues a recompute. Duplicate requests coalesce downstream;
// this endpoint only acknowledges the trigger.
func (h *HTTPHandler) Refresh(c *gin.Context) {
	if h.refresher == nil {
		httpkit.Error(c, 503, "refresh is not available", nil)
		return
	}
	if err := h.refresher.RequestRecompute(c.Request.Context()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.Accepted(c, gin.H{"status": "recompute requested"})
}

// Neglected evaluates one account's neglect state on demand.
func (h *HTTPHandler) Neglected(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, 400, "invalid account id", nil)
		return
	}

	account, neglected, err := h.svc.EvaluateNeglect(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.NeglectResponse{
		AccountID:           account.ID.String(),
		Name:                account.Name,
		Neglected:           neglected,
		RevenueSegment:      account.RevenueSegment,
		ThresholdDays:       domain.NeglectThresholdDays(account.RevenueSegment),
		LastInteractionDate: account.LastInteractionDate,
	})
}
