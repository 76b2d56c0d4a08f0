package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talentboard/pipeline-api/internal/service"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
	"github.com/talentboard/pipeline-api/pkg/response"
)

// StageHandler administers posting pipelines.
type StageHandler struct {
	service *service.StageService
}

// NewStageHandler constructs the handler.
func NewStageHandler(svc *service.StageService) *StageHandler {
	return &StageHandler{service: svc}
}

// List godoc
// @Summary List pipeline stages
// @Description Ordered stage list for a job posting, lowest ordinal first
// @Tags Stages
// @Produce json
// @Param id path string true "Job posting ID"
// @Success 200 {object} response.Envelope
// @Router /job-postings/{id}/stages [get]
func (h *StageHandler) List(c *gin.Context) {
	stages, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stages, nil)
}

// Create godoc
// @Summary Add a pipeline stage
// @Tags Stages
// @Accept json
// @Produce json
// @Param id path string true "Job posting ID"
// @Param payload body service.CreateStageRequest true "Stage payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /job-postings/{id}/stages [post]
func (h *StageHandler) Create(c *gin.Context) {
	var req service.CreateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid stage payload"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	stage, err := h.service.Create(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, stage)
}

// Update godoc
// @Summary Update a pipeline stage
// @Tags Stages
// @Accept json
// @Produce json
// @Param id path string true "Stage ID"
// @Param payload body service.UpdateStageRequest true "Stage payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /stages/{id} [put]
func (h *StageHandler) Update(c *gin.Context) {
	var req service.UpdateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid stage payload"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	stage, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stage, nil)
}

// Reorder godoc
// @Summary Reorder pipeline stages
// @Description Atomically assigns new ordinals to the posting's stages
// @Tags Stages
// @Accept json
// @Produce json
// @Param id path string true "Job posting ID"
// @Param payload body service.ReorderStagesRequest true "New ordinals"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /job-postings/{id}/stages/reorder [put]
func (h *StageHandler) Reorder(c *gin.Context) {
	var req service.ReorderStagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reorder payload"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	stages, err := h.service.Reorder(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stages, nil)
}

// Delete godoc
// @Summary Remove a pipeline stage
// @Description Stages referenced by any process can only be deactivated
// @Tags Stages
// @Produce json
// @Param id path string true "Stage ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /stages/{id} [delete]
func (h *StageHandler) Delete(c *gin.Context) {
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
