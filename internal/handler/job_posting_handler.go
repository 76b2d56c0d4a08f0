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

// JobPostingHandler exposes vacancy endpoints.
type JobPostingHandler struct {
	service *service.JobPostingService
}

// NewJobPostingHandler constructs the handler.
func NewJobPostingHandler(svc *service.JobPostingService) *JobPostingHandler {
	return &JobPostingHandler{service: svc}
}

// List godoc
// @Summary List job postings
// @Description Anonymous and candidate callers see published postings only
// @Tags JobPostings
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param status query string false "Status filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /job-postings [get]
func (h *JobPostingHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		// Unauthenticated browsing gets the candidate view.
		actor = models.UserInfo{Role: models.RoleCandidate}
	}

	var filter models.JobPostingFilter
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	filter.Status = models.JobPostingStatus(c.Query("status"))
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	postings, pagination, err := h.service.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, postings, pagination)
}

// Get godoc
// @Summary Get job posting
// @Tags JobPostings
// @Produce json
// @Param id path string true "Job posting ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /job-postings/{id} [get]
func (h *JobPostingHandler) Get(c *gin.Context) {
	posting, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, posting, nil)
}

// Create godoc
// @Summary Create job posting
// @Description Create a draft vacancy for the actor's organization
// @Tags JobPostings
// @Accept json
// @Produce json
// @Param payload body service.CreateJobPostingRequest true "Posting payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /job-postings [post]
func (h *JobPostingHandler) Create(c *gin.Context) {
	var req service.CreateJobPostingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid posting payload"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	posting, err := h.service.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, posting)
}

// Update godoc
// @Summary Update job posting
// @Tags JobPostings
// @Accept json
// @Produce json
// @Param id path string true "Job posting ID"
// @Param payload body service.UpdateJobPostingRequest true "Posting payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /job-postings/{id} [put]
func (h *JobPostingHandler) Update(c *gin.Context) {
	var req service.UpdateJobPostingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid posting payload"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	posting, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, posting, nil)
}

// Delete godoc
// @Summary Delete job posting
// @Tags JobPostings
// @Produce json
// @Param id path string true "Job posting ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /job-postings/{id} [delete]
func (h *JobPostingHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
