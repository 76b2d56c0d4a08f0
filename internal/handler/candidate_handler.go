package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talentboard/pipeline-api/internal/service"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
	"github.com/talentboard/pipeline-api/pkg/response"
)

// CandidateHandler exposes candidate profile endpoints.
type CandidateHandler struct {
	service *service.CandidateService
}

// NewCandidateHandler constructs the handler.
func NewCandidateHandler(svc *service.CandidateService) *CandidateHandler {
	return &CandidateHandler{service: svc}
}

// GetOwn godoc
// @Summary Current candidate profile
// @Tags Candidates
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /candidates/me [get]
func (h *CandidateHandler) GetOwn(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	profile, err := h.service.GetOwn(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// UpsertOwn godoc
// @Summary Create or update own profile
// @Description Profile changes queue a compatibility recalculation
// @Tags Candidates
// @Accept json
// @Produce json
// @Param payload body service.UpsertCandidateProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /candidates/me [put]
func (h *CandidateHandler) UpsertOwn(c *gin.Context) {
	var req service.UpsertCandidateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid profile payload"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	profile, err := h.service.UpsertOwn(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Get godoc
// @Summary Get candidate profile
// @Tags Candidates
// @Produce json
// @Param id path string true "Candidate ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /candidates/{id} [get]
func (h *CandidateHandler) Get(c *gin.Context) {
	profile, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// SavePosting godoc
// @Summary Bookmark a job posting
// @Description Saved postings count as relevant for score recalculation
// @Tags Candidates
// @Produce json
// @Param id path string true "Job posting ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /candidates/me/saved-postings/{id} [put]
func (h *CandidateHandler) SavePosting(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.SavePosting(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a candidate profile
// @Tags Candidates
// @Produce json
// @Param id path string true "Candidate ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /candidates/{id} [delete]
func (h *CandidateHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UnsavePosting godoc
// @Summary Remove a bookmarked posting
// @Tags Candidates
// @Produce json
// @Param id path string true "Job posting ID"
// @Success 204 {object} response.Envelope
// @Router /candidates/me/saved-postings/{id} [delete]
func (h *CandidateHandler) UnsavePosting(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.UnsavePosting(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
