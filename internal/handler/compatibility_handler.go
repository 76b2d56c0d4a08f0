package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/talentboard/pipeline-api/internal/middleware"
	"github.com/talentboard/pipeline-api/internal/service"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
	"github.com/talentboard/pipeline-api/pkg/response"
)

// CompatibilityHandler exposes compatibility score endpoints.
type CompatibilityHandler struct {
	service *service.CompatibilityService
}

// NewCompatibilityHandler constructs the handler.
func NewCompatibilityHandler(svc *service.CompatibilityService) *CompatibilityHandler {
	return &CompatibilityHandler{service: svc}
}

// Get godoc
// @Summary Compatibility score for a candidate/posting pair
// @Description Reads through the redis cache; misses fall back to postgres
// @Tags Compatibility
// @Produce json
// @Param candidate_id path string true "Candidate ID"
// @Param job_posting_id path string true "Job posting ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /compatibility/{candidate_id}/{job_posting_id} [get]
func (h *CompatibilityHandler) Get(c *gin.Context) {
	score, fromCache, err := h.service.GetWithSource(c.Request.Context(), c.Param("candidate_id"), c.Param("job_posting_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, fromCache)
	response.JSON(c, http.StatusOK, score, nil, middleware.ExtractMeta(c))
}

// ListForPosting godoc
// @Summary Ranked scores for a posting
// @Tags Compatibility
// @Produce json
// @Param id path string true "Job posting ID"
// @Param limit query int false "Maximum results, default 50"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /job-postings/{id}/compatibility [get]
func (h *CompatibilityHandler) ListForPosting(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	scores, err := h.service.ListForPosting(c.Request.Context(), c.Param("id"), limit, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scores, nil)
}
