package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	deliveryapp "github.com/groceryshare/backend/internal/application/delivery"
	"github.com/groceryshare/backend/internal/domain/identity"
)

// DeliveryHandler serves the claim lifecycle and the resolved delivery view
type DeliveryHandler struct {
	BaseHandler
	claims *deliveryapp.ClaimService
	views  *deliveryapp.ViewService
}

// NewDeliveryHandler creates a new DeliveryHandler
func NewDeliveryHandler(claims *deliveryapp.ClaimService, views *deliveryapp.ViewService) *DeliveryHandler {
	return &DeliveryHandler{claims: claims, views: views}
}

// Create godoc
// @Summary      Open a delivery request
// @Description  Creates an open request owned by the calling recipient.
// @Tags         deliveries
// @Accept       json
// @Produce      json
// @Param        request body deliveryapp.CreateRequestInput true "Pickup details"
// @Success      201 {object} dto.Response{data=deliveryapp.RequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /deliveries [post]
func (h *DeliveryHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req deliveryapp.CreateRequestInput
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.claims.Create(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ListPool godoc
// @Summary      List the open pool
// @Description  Open requests for approved volunteers, highest priority then oldest first. Listings carry the area only, never the address.
// @Tags         deliveries
// @Produce      json
// @Param        area query string false "Area filter"
// @Param        page query int false "Page number" minimum(1)
// @Param        page_size query int false "Page size" minimum(1) maximum(100)
// @Success      200 {object} dto.Response{data=[]deliveryapp.PoolItem,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /deliveries/pool [get]
func (h *DeliveryHandler) ListPool(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var query deliveryapp.PoolQuery
	if !h.bindQuery(c, &query) {
		return
	}
	page, err := h.claims.ListOpenPool(c.Request.Context(), actor, query)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// ListMine godoc
// @Summary      List my deliveries
// @Description  A recipient sees the requests they own, a volunteer the requests they hold.
// @Tags         deliveries
// @Produce      json
// @Param        page query int false "Page number" minimum(1)
// @Param        page_size query int false "Page size" minimum(1) maximum(100)
// @Success      200 {object} dto.Response{data=[]deliveryapp.RequestResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /deliveries/mine [get]
func (h *DeliveryHandler) ListMine(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	filter, err := filterFromQuery(c)
	if err != nil {
		h.BadRequest(c, "Invalid pagination parameters")
		return
	}
	page, err := h.claims.ListMine(c.Request.Context(), actor, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// Get godoc
// @Summary      Get a delivery request
// @Description  Resolves the request for the caller. Contact details are included only for the owner, an admin, or the volunteer holding an active claim.
// @Description  Requests the caller may not see answer 403, whether or not they exist.
// @Tags         deliveries
// @Produce      json
// @Param        id path string true "Delivery request ID" format(uuid)
// @Success      200 {object} dto.Response{data=deliveryapp.DeliveryView}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /deliveries/{id} [get]
func (h *DeliveryHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id", "delivery")
	if !ok {
		return
	}
	view, err := h.views.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleDeliveryError(c, actor, err)
		return
	}
	h.Success(c, view)
}

// Claim godoc
// @Summary      Claim a delivery request
// @Description  Assigns an open request to the calling volunteer. Exactly one concurrent claim wins.
// @Tags         deliveries
// @Produce      json
// @Param        id path string true "Delivery request ID" format(uuid)
// @Success      200 {object} dto.Response{data=deliveryapp.RequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /deliveries/{id}/claim [post]
func (h *DeliveryHandler) Claim(c *gin.Context) {
	h.transition(c, h.claims.Claim)
}

// MarkPickedUp godoc
// @Summary      Mark groceries picked up
// @Description  Only the volunteer holding the claim may mark pickup.
// @Tags         deliveries
// @Produce      json
// @Param        id path string true "Delivery request ID" format(uuid)
// @Success      200 {object} dto.Response{data=deliveryapp.RequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /deliveries/{id}/pickup [post]
func (h *DeliveryHandler) MarkPickedUp(c *gin.Context) {
	h.transition(c, h.claims.MarkPickedUp)
}

// Complete godoc
// @Summary      Confirm delivery
// @Description  The owning recipient confirms the groceries arrived.
// @Tags         deliveries
// @Produce      json
// @Param        id path string true "Delivery request ID" format(uuid)
// @Success      200 {object} dto.Response{data=deliveryapp.RequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /deliveries/{id}/complete [post]
func (h *DeliveryHandler) Complete(c *gin.Context) {
	h.transition(c, h.claims.Complete)
}

// Cancel godoc
// @Summary      Cancel or release a delivery request
// @Description  A recipient cancels their own request. A volunteer releases their claim back to the pool. Admins follow the configured policy.
// @Tags         deliveries
// @Accept       json
// @Produce      json
// @Param        id path string true "Delivery request ID" format(uuid)
// @Param        request body deliveryapp.CancelInput false "Optional reason"
// @Success      200 {object} dto.Response{data=deliveryapp.RequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /deliveries/{id}/cancel [post]
func (h *DeliveryHandler) Cancel(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id", "delivery")
	if !ok {
		return
	}
	var req deliveryapp.CancelInput
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.claims.Cancel(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleDeliveryError(c, actor, err)
		return
	}
	h.Success(c, resp)
}

func (h *DeliveryHandler) transition(c *gin.Context, op func(context.Context, identity.Actor, uuid.UUID) (*deliveryapp.RequestResponse, error)) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id", "delivery")
	if !ok {
		return
	}
	resp, err := op(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleDeliveryError(c, actor, err)
		return
	}
	h.Success(c, resp)
}
