package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/talentboard/pipeline-api/internal/models"
	"github.com/talentboard/pipeline-api/internal/service"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
	"github.com/talentboard/pipeline-api/pkg/response"
)

// ApplicationHandler exposes application endpoints.
type ApplicationHandler struct {
	service *service.ApplicationService
}

// NewApplicationHandler constructs the handler.
func NewApplicationHandler(svc *service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{service: svc}
}

// Apply godoc
// @Summary Apply to a job posting
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body service.ApplyRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications [post]
func (h *ApplicationHandler) Apply(c *gin.Context) {
	var req service.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid application payload"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	application, err := h.service.Apply(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, application)
}

// Get godoc
// @Summary Get application detail
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// List godoc
// @Summary List applications
// @Description Candidates see their own applications, recruiters their postings'
// @Tags Applications
// @Produce json
// @Param job_posting_id query string false "Filter by posting"
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	filter := models.ApplicationFilter{
		CandidateID:  c.Query("candidate_id"),
		JobPostingID: c.Query("job_posting_id"),
		Status:       models.ApplicationStatus(c.Query("status")),
		Page:         page,
		PageSize:     pageSize,
	}

	applications, pagination, err := h.service.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applications, pagination)
}

// Withdraw godoc
// @Summary Withdraw an application
// @Description Withdrawn applications cannot enter a selection process
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /applications/{id} [delete]
func (h *ApplicationHandler) Withdraw(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Withdraw(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
