package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/talentboard/pipeline-api/internal/models"
	"github.com/talentboard/pipeline-api/internal/service"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
	"github.com/talentboard/pipeline-api/pkg/response"
)

type invitationService interface {
	Send(ctx context.Context, req service.SendInvitationRequest, actor models.UserInfo) (*models.Invitation, error)
	Get(ctx context.Context, id string, actor models.UserInfo) (*models.Invitation, error)
	List(ctx context.Context, filter models.InvitationFilter, actor models.UserInfo) ([]models.InvitationDetail, *models.Pagination, error)
	Respond(ctx context.Context, id string, req service.RespondInvitationRequest, actor models.UserInfo) (*models.Invitation, error)
}

// InvitationHandler exposes invitation endpoints.
type InvitationHandler struct {
	service invitationService
}

// NewInvitationHandler constructs the handler.
func NewInvitationHandler(svc invitationService) *InvitationHandler {
	return &InvitationHandler{service: svc}
}

// Send godoc
// @Summary Invite a candidate to a posting
// @Tags Invitations
// @Accept json
// @Produce json
// @Param payload body service.SendInvitationRequest true "Invitation payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /invitations [post]
func (h *InvitationHandler) Send(c *gin.Context) {
	var req service.SendInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid invitation payload"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	invitation, err := h.service.Send(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invitation)
}

// Get godoc
// @Summary Get an invitation
// @Description Status is derived from the deadline at read time
// @Tags Invitations
// @Produce json
// @Param id path string true "Invitation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /invitations/{id} [get]
func (h *InvitationHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	invitation, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invitation, nil)
}

// List godoc
// @Summary List invitations
// @Tags Invitations
// @Produce json
// @Param job_posting_id query string false "Filter by posting"
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /invitations [get]
func (h *InvitationHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	filter := models.InvitationFilter{
		JobPostingID: c.Query("job_posting_id"),
		Status:       models.InvitationStatus(c.Query("status")),
		Page:         page,
		PageSize:     pageSize,
	}

	invitations, pagination, err := h.service.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invitations, pagination)
}

// Respond godoc
// @Summary Accept or decline an invitation
// @Description Accepting creates the application and selection process atomically
// @Tags Invitations
// @Accept json
// @Produce json
// @Param id path string true "Invitation ID"
// @Param payload body service.RespondInvitationRequest true "Response payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /invitations/{id}/response [post]
func (h *InvitationHandler) Respond(c *gin.Context) {
	var req service.RespondInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid response payload"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	invitation, err := h.service.Respond(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invitation, nil)
}
