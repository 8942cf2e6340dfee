package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/application/audit"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
)

// defaultAuditWindow is how far back /admin/audit looks without ?since
const defaultAuditWindow = 24 * time.Hour

// AuditHandler exposes the audit log to admins
type AuditHandler struct {
	BaseHandler
	query *audit.QueryService
	now   func() time.Time
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(query *audit.QueryService) *AuditHandler {
	return &AuditHandler{query: query, now: time.Now}
}

// ListByDelivery godoc
// @Summary      Audit trail of a delivery
// @Description  Every recorded action on the request, oldest first. Entries never carry contact details.
// @Tags         audit
// @Produce      json
// @Param        id path string true "Delivery request ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]audit.EntryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /deliveries/{id}/audit [get]
func (h *AuditHandler) ListByDelivery(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id", "delivery")
	if !ok {
		return
	}
	entries, err := h.query.ListByDelivery(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleDeliveryError(c, actor, err)
		return
	}
	h.Success(c, entries)
}

// ListByRecipient godoc
// @Summary      Audit trail of a recipient
// @Tags         audit
// @Produce      json
// @Param        id path string true "Recipient ID" format(uuid)
// @Param        page query int false "Page number" minimum(1)
// @Param        page_size query int false "Page size" minimum(1) maximum(100)
// @Success      200 {object} dto.Response{data=[]audit.EntryResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/recipients/{id}/audit [get]
func (h *AuditHandler) ListByRecipient(c *gin.Context) {
	h.listFor(c, "recipient", h.query.ListByRecipient)
}

// ListByVolunteer godoc
// @Summary      Audit trail of a volunteer
// @Tags         audit
// @Produce      json
// @Param        id path string true "Volunteer ID" format(uuid)
// @Param        page query int false "Page number" minimum(1)
// @Param        page_size query int false "Page size" minimum(1) maximum(100)
// @Success      200 {object} dto.Response{data=[]audit.EntryResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/volunteers/{id}/audit [get]
func (h *AuditHandler) ListByVolunteer(c *gin.Context) {
	h.listFor(c, "volunteer", h.query.ListByVolunteer)
}

// ListRecent godoc
// @Summary      Recent audit entries
// @Description  Entries newer than since, one day back by default.
// @Tags         audit
// @Produce      json
// @Param        since query string false "RFC 3339 lower bound" format(date-time)
// @Param        page query int false "Page number" minimum(1)
// @Param        page_size query int false "Page size" minimum(1) maximum(100)
// @Success      200 {object} dto.Response{data=[]audit.EntryResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/audit [get]
func (h *AuditHandler) ListRecent(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	since := h.now().Add(-defaultAuditWindow)
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.BadRequest(c, "since must be an RFC 3339 timestamp")
			return
		}
		since = t
	}
	filter, err := filterFromQuery(c)
	if err != nil {
		h.BadRequest(c, "Invalid pagination parameters")
		return
	}
	page, err := h.query.ListRecent(c.Request.Context(), actor, since, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

type auditListFunc func(context.Context, identity.Actor, uuid.UUID, shared.Filter) (shared.Paginated[audit.EntryResponse], error)

func (h *AuditHandler) listFor(c *gin.Context, label string, list auditListFunc) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id", label)
	if !ok {
		return
	}
	filter, err := filterFromQuery(c)
	if err != nil {
		h.BadRequest(c, "Invalid pagination parameters")
		return
	}
	page, err := list(c.Request.Context(), actor, id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}
