package handler

import (
	"strconv"
	"strings"
	"time"

	"crm_renewal_backend/internal/notification/inapp"
	"crm_renewal_backend/internal/notification/snooze"
	"crm_renewal_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type HTTPHandler struct {
	svc     *inapp.Service
	snoozes *snooze.Repository
}

func NewHTTPHandler(svc *inapp.Service, snoozes *snooze.Repository) *HTTPHandler {
	return &HTTPHandler{svc: svc, snoozes: snoozes}
}

func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/unread", h.CountUnread)
	rg.PATCH("/:id/read", h.MarkRead)
	rg.PATCH("/read-all", h.MarkAllRead)
	rg.GET("/snoozes", h.ListSnoozes)
	rg.PUT("/snoozes", h.UpsertSnooze)
}

func (h *HTTPHandler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	items, total, err := h.svc.Feed(c.Request.Context(), identity.UserID(), page, pageSize)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"items": items,
		"total": total,
		"page":  page,
	})
}

func (h *HTTPHandler) CountUnread(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	counts, err := h.svc.UnreadCounts(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	httpkit.OK(c, gin.H{
		"total":  total,
		"byType": counts,
	})
}

func (h *HTTPHandler) MarkRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, 400, "invalid notification id", nil)
		return
	}

	if err := h.svc.MarkRead(c.Request.Context(), identity.UserID(), id); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}

func (h *HTTPHandler) MarkAllRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if err := h.svc.MarkAllRead(c.Request.Context(), identity.UserID()); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}

func (h *HTTPHandler) ListSnoozes(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	items, err := h.snoozes.ListActive(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": items})
}

type upsertSnoozeRequest struct {
	NotificationType string    `json:"notificationType" binding:"required"`
	RelatedAccountID *string   `json:"relatedAccountId"`
	SnoozedUntil     time.Time `json:"snoozedUntil" binding:"required"`
}

func (h *HTTPHandler) UpsertSnooze(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req upsertSnoozeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, 400, "invalid request body", nil)
		return
	}

	// Empty and whitespace-only account ids mean a type-wide snooze; store
	// them as null so the matcher's null semantics apply.
	if req.RelatedAccountID != nil && strings.TrimSpace(*req.RelatedAccountID) == "" {
		req.RelatedAccountID = nil
	}

	userID := identity.UserID()
	item, err := h.snoozes.Upsert(c.Request.Context(), snooze.UpsertParams{
		NotificationType: req.NotificationType,
		RelatedAccountID: req.RelatedAccountID,
		SnoozedUntil:     req.SnoozedUntil,
		SnoozedBy:        &userID,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, item)
}
