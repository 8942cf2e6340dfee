package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/application/vetting"
	"github.com/groceryshare/backend/internal/domain/identity"
)

// VolunteerHandler serves volunteer registration and admin vetting
type VolunteerHandler struct {
	BaseHandler
	vetting *vetting.Service
}

// NewVolunteerHandler creates a new VolunteerHandler
func NewVolunteerHandler(svc *vetting.Service) *VolunteerHandler {
	return &VolunteerHandler{vetting: svc}
}

// Register godoc
// @Summary      Register as a volunteer
// @Description  Creates the caller's volunteer profile in pending state.
// @Tags         volunteers
// @Accept       json
// @Produce      json
// @Param        request body vetting.RegisterVolunteerInput true "Profile"
// @Success      201 {object} dto.Response{data=vetting.VolunteerResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /volunteers [post]
func (h *VolunteerHandler) Register(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req vetting.RegisterVolunteerInput
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.vetting.Register(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetMine godoc
// @Summary      Get my volunteer profile
// @Tags         volunteers
// @Produce      json
// @Success      200 {object} dto.Response{data=vetting.VolunteerResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /volunteers/me [get]
func (h *VolunteerHandler) GetMine(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	resp, err := h.vetting.GetMine(c.Request.Context(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RegisterIDUpload godoc
// @Summary      Register an ID document upload
// @Description  Without an artifact_ref the response carries a presigned upload URL. The document is kept until review or expiry.
// @Tags         volunteers
// @Accept       json
// @Produce      json
// @Param        request body vetting.RegisterUploadInput false "Upload details"
// @Success      201 {object} dto.Response{data=vetting.UploadResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /volunteers/me/id-uploads [post]
func (h *VolunteerHandler) RegisterIDUpload(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req vetting.RegisterUploadInput
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.vetting.RegisterIDUpload(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ListPending godoc
// @Summary      List volunteers awaiting review
// @Tags         admin
// @Produce      json
// @Param        page query int false "Page number" minimum(1)
// @Param        page_size query int false "Page size" minimum(1) maximum(100)
// @Success      200 {object} dto.Response{data=[]vetting.VolunteerResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/volunteers/pending [get]
func (h *VolunteerHandler) ListPending(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	filter, err := filterFromQuery(c)
	if err != nil {
		h.BadRequest(c, "Invalid pagination parameters")
		return
	}
	page, err := h.vetting.ListPending(c.Request.Context(), actor, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// Approve godoc
// @Summary      Approve a volunteer
// @Description  Approval deletes the reviewed ID document.
// @Tags         admin
// @Produce      json
// @Param        id path string true "Volunteer ID" format(uuid)
// @Success      200 {object} dto.Response{data=vetting.DecisionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/volunteers/{id}/approve [post]
func (h *VolunteerHandler) Approve(c *gin.Context) {
	h.decide(c, false, func(ctx context.Context, actor identity.Actor, id uuid.UUID, _ vetting.DecisionInput) (*vetting.DecisionResponse, error) {
		return h.vetting.Approve(ctx, actor, id)
	})
}

// Reject godoc
// @Summary      Reject a volunteer
// @Description  Rejection deletes the reviewed ID document.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id path string true "Volunteer ID" format(uuid)
// @Param        request body vetting.DecisionInput false "Reason"
// @Success      200 {object} dto.Response{data=vetting.DecisionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/volunteers/{id}/reject [post]
func (h *VolunteerHandler) Reject(c *gin.Context) {
	h.decide(c, true, h.vetting.Reject)
}

// Suspend godoc
// @Summary      Suspend a volunteer
// @Description  Releases every claim the volunteer holds back to the pool.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id path string true "Volunteer ID" format(uuid)
// @Param        request body vetting.DecisionInput false "Reason"
// @Success      200 {object} dto.Response{data=vetting.DecisionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/volunteers/{id}/suspend [post]
func (h *VolunteerHandler) Suspend(c *gin.Context) {
	h.decide(c, true, h.vetting.Suspend)
}

// Reinstate godoc
// @Summary      Reinstate a volunteer
// @Tags         admin
// @Produce      json
// @Param        id path string true "Volunteer ID" format(uuid)
// @Success      200 {object} dto.Response{data=vetting.DecisionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/volunteers/{id}/reinstate [post]
func (h *VolunteerHandler) Reinstate(c *gin.Context) {
	h.decide(c, false, func(ctx context.Context, actor identity.Actor, id uuid.UUID, _ vetting.DecisionInput) (*vetting.DecisionResponse, error) {
		return h.vetting.Reinstate(ctx, actor, id)
	})
}

type decisionFunc func(context.Context, identity.Actor, uuid.UUID, vetting.DecisionInput) (*vetting.DecisionResponse, error)

func (h *VolunteerHandler) decide(c *gin.Context, withReason bool, op decisionFunc) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id", "volunteer")
	if !ok {
		return
	}
	var req vetting.DecisionInput
	if withReason && c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	resp, err := op(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
