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

type selectionProcessService interface {
	Start(ctx context.Context, req service.StartProcessRequest, actor models.UserInfo) (*models.SelectionProcess, error)
	Get(ctx context.Context, id string, actor models.UserInfo) (*models.SelectionProcessDetail, error)
	List(ctx context.Context, filter models.SelectionProcessFilter) ([]models.SelectionProcessDetail, *models.Pagination, error)
	Transition(ctx context.Context, processID string, req service.TransitionRequest, actor models.UserInfo) (*models.StageTransition, error)
	History(ctx context.Context, processID string, actor models.UserInfo) ([]models.StageTransitionDetail, error)
}

// SelectionProcessHandler exposes the pipeline run endpoints.
type SelectionProcessHandler struct {
	service selectionProcessService
}

// NewSelectionProcessHandler constructs the handler.
func NewSelectionProcessHandler(svc selectionProcessService) *SelectionProcessHandler {
	return &SelectionProcessHandler{service: svc}
}

// Start godoc
// @Summary Start a selection process for an application
// @Tags Selection Processes
// @Accept json
// @Produce json
// @Param payload body service.StartProcessRequest true "Start payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /selection-processes [post]
func (h *SelectionProcessHandler) Start(c *gin.Context) {
	var req service.StartProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid start payload"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	process, err := h.service.Start(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, process)
}

// Get godoc
// @Summary Get a selection process
// @Tags Selection Processes
// @Produce json
// @Param id path string true "Process ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /selection-processes/{id} [get]
func (h *SelectionProcessHandler) Get(c *gin.Context) {
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
// @Summary List selection processes
// @Tags Selection Processes
// @Produce json
// @Param job_posting_id query string false "Filter by posting"
// @Param stage_id query string false "Filter by current stage"
// @Param active_only query bool false "Only non-finalized processes"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /selection-processes [get]
func (h *SelectionProcessHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active_only", "false"))
	filter := models.SelectionProcessFilter{
		JobPostingID: c.Query("job_posting_id"),
		StageID:      c.Query("stage_id"),
		ActiveOnly:   activeOnly,
		Page:         page,
		PageSize:     pageSize,
	}

	processes, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, processes, pagination)
}

// Transition godoc
// @Summary Move a process to another stage
// @Description Appends a ledger entry atomically; terminal stages finalize the process
// @Tags Selection Processes
// @Accept json
// @Produce json
// @Param id path string true "Process ID"
// @Param payload body service.TransitionRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /selection-processes/{id}/transitions [post]
func (h *SelectionProcessHandler) Transition(c *gin.Context) {
	var req service.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid transition payload"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	transition, err := h.service.Transition(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transition, nil)
}

// History godoc
// @Summary Stage transition history
// @Description Returns the full append-only ledger, newest first
// @Tags Selection Processes
// @Produce json
// @Param id path string true "Process ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /selection-processes/{id}/history [get]
func (h *SelectionProcessHandler) History(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	history, err := h.service.History(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}
