package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/application/profile"
	"github.com/groceryshare/backend/internal/application/retention"
	"github.com/groceryshare/backend/internal/domain/identity"
)

// RecipientHandler serves recipient profiles and their deletion
type RecipientHandler struct {
	BaseHandler
	profiles  *profile.Service
	retention *retention.Service
}

// NewRecipientHandler creates a new RecipientHandler
func NewRecipientHandler(profiles *profile.Service, retention *retention.Service) *RecipientHandler {
	return &RecipientHandler{profiles: profiles, retention: retention}
}

// DeletionResponse reports a completed purge
type DeletionResponse struct {
	RecipientID   uuid.UUID `json:"recipient_id"`
	CanceledCount int       `json:"canceled_count"`
}

// Register godoc
// @Summary      Register as a recipient
// @Description  Creates the caller's recipient profile. Contact details are encrypted at rest.
// @Tags         recipients
// @Accept       json
// @Produce      json
// @Param        request body profile.RegisterRecipientInput true "Profile"
// @Success      201 {object} dto.Response{data=profile.RecipientResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /recipients [post]
func (h *RecipientHandler) Register(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req profile.RegisterRecipientInput
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.profiles.RegisterRecipient(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetMine godoc
// @Summary      Get my recipient profile
// @Description  Returns the caller's profile with their own contact details.
// @Tags         recipients
// @Produce      json
// @Success      200 {object} dto.Response{data=profile.RecipientResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /recipients/me [get]
func (h *RecipientHandler) GetMine(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	resp, err := h.profiles.GetMine(c.Request.Context(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpdateContact godoc
// @Summary      Update my contact details
// @Description  Replaces address, phone and notes.
// @Tags         recipients
// @Accept       json
// @Produce      json
// @Param        request body profile.ContactInput true "Contact details"
// @Success      200 {object} dto.Response{data=profile.RecipientResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /recipients/me/contact [put]
func (h *RecipientHandler) UpdateContact(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req profile.ContactInput
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.profiles.UpdateContact(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// DeleteMine godoc
// @Summary      Delete my recipient profile
// @Description  Cancels open requests, erases contact details and chat history, and leaves a tombstone in the audit log.
// @Tags         recipients
// @Produce      json
// @Success      200 {object} dto.Response{data=DeletionResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /recipients/me [delete]
func (h *RecipientHandler) DeleteMine(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	if actor.ProfileID == uuid.Nil {
		mine, err := h.profiles.GetMine(c.Request.Context(), actor)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		actor.ProfileID = mine.ID
	}
	h.delete(c, actor, actor.ProfileID)
}

// AdminGet godoc
// @Summary      Get a recipient
// @Description  Admin view of a recipient with decrypted contact details. The read is audited.
// @Tags         admin
// @Produce      json
// @Param        id path string true "Recipient ID" format(uuid)
// @Success      200 {object} dto.Response{data=profile.RecipientResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/recipients/{id} [get]
func (h *RecipientHandler) AdminGet(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id", "recipient")
	if !ok {
		return
	}
	resp, err := h.profiles.AdminViewRecipient(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// AdminDelete godoc
// @Summary      Delete a recipient
// @Description  Purges a recipient on an admin's request.
// @Tags         admin
// @Produce      json
// @Param        id path string true "Recipient ID" format(uuid)
// @Success      200 {object} dto.Response{data=DeletionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/recipients/{id} [delete]
func (h *RecipientHandler) AdminDelete(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id", "recipient")
	if !ok {
		return
	}
	h.delete(c, actor, id)
}

func (h *RecipientHandler) delete(c *gin.Context, actor identity.Actor, recipientID uuid.UUID) {
	result, err := h.retention.DeleteRecipient(c.Request.Context(), actor, recipientID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, DeletionResponse{RecipientID: result.RecipientID, CanceledCount: result.CanceledCount})
}
