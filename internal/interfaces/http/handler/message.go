package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	deliveryapp "github.com/groceryshare/backend/internal/application/delivery"
)

// MessageHandler serves the per-delivery chat and ratings
type MessageHandler struct {
	BaseHandler
	messages *deliveryapp.MessageService
	ratings  *deliveryapp.RatingService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(messages *deliveryapp.MessageService, ratings *deliveryapp.RatingService) *MessageHandler {
	return &MessageHandler{messages: messages, ratings: ratings}
}

// UnreadResponse is the unread message counter
type UnreadResponse struct {
	Unread int64 `json:"unread"`
}

// Send godoc
// @Summary      Send a message
// @Description  Posts to the delivery thread. Only the owner and the current holder may write.
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        id path string true "Delivery request ID" format(uuid)
// @Param        request body deliveryapp.SendMessageInput true "Message"
// @Success      201 {object} dto.Response{data=deliveryapp.MessageResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /deliveries/{id}/messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id", "delivery")
	if !ok {
		return
	}
	var req deliveryapp.SendMessageInput
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.messages.Send(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleDeliveryError(c, actor, err)
		return
	}
	h.Created(c, resp)
}

// List godoc
// @Summary      Poll messages
// @Description  Returns messages after the cursor and marks the other party's messages read.
// @Tags         messages
// @Produce      json
// @Param        id path string true "Delivery request ID" format(uuid)
// @Param        after query int false "Last seen message ID"
// @Param        limit query int false "Maximum messages" maximum(100)
// @Success      200 {object} dto.Response{data=deliveryapp.MessagePage}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /deliveries/{id}/messages [get]
func (h *MessageHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id", "delivery")
	if !ok {
		return
	}
	var after int64
	if raw := c.Query("after"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.BadRequest(c, "Invalid after cursor")
			return
		}
		after = v
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		h.BadRequest(c, "Invalid limit")
		return
	}
	page, err := h.messages.List(c.Request.Context(), actor, id, after, limit)
	if err != nil {
		h.HandleDeliveryError(c, actor, err)
		return
	}
	h.Success(c, page)
}

// Unread godoc
// @Summary      Count unread messages
// @Description  Messages from the other party the caller has not read.
// @Tags         messages
// @Produce      json
// @Param        id path string true "Delivery request ID" format(uuid)
// @Success      200 {object} dto.Response{data=UnreadResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /deliveries/{id}/messages/unread [get]
func (h *MessageHandler) Unread(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id", "delivery")
	if !ok {
		return
	}
	count, err := h.messages.UnreadCount(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleDeliveryError(c, actor, err)
		return
	}
	h.Success(c, UnreadResponse{Unread: count})
}

// Rate godoc
// @Summary      Rate a completed delivery
// @Description  The owning recipient rates the volunteer once per completed delivery.
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        id path string true "Delivery request ID" format(uuid)
// @Param        request body deliveryapp.RatingInput true "Rating"
// @Success      201 {object} dto.Response{data=deliveryapp.RatingResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /deliveries/{id}/rating [post]
func (h *MessageHandler) Rate(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id", "delivery")
	if !ok {
		return
	}
	var req deliveryapp.RatingInput
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.ratings.Submit(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleDeliveryError(c, actor, err)
		return
	}
	h.Created(c, resp)
}
