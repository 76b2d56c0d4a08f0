package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/talentboard/pipeline-api/internal/models"
	"github.com/talentboard/pipeline-api/internal/repository"
	"github.com/talentboard/pipeline-api/pkg/config"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
)

type compatibilityStore interface {
	Upsert(ctx context.Context, score *models.CompatibilityScore) error
	FindByKey(ctx context.Context, candidateID, jobPostingID string) (*models.CompatibilityScore, error)
	ListByJobPosting(ctx context.Context, jobPostingID string, limit int) ([]models.CompatibilityScore, error)
	ListRelevantPostingIDs(ctx context.Context, candidateID string) ([]string, error)
}

type scoreCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type scoringMetrics interface {
	RecordRecalculation()
	RecordScoringFailure()
	RecordCacheLookup(hit bool)
}

// Scorer computes a fit score in [0,100] with a human-readable
// justification. Implementations may call external systems; a failure for
// one pair must not poison the rest of a recalculation batch.
type Scorer interface {
	Score(ctx context.Context, candidateID, jobPostingID string) (int, string, error)
}

// CompatibilityService serves cached fit scores and recomputes them when
// candidate profiles change.
type CompatibilityService struct {
	scores   compatibilityStore
	cache    scoreCache
	postings postingReader
	scorer   Scorer
	metrics  scoringMetrics
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCompatibilityService builds the service.
func NewCompatibilityService(scores compatibilityStore, cache scoreCache, postings postingReader, scorer Scorer, metrics scoringMetrics, cfg config.CompatibilityConfig, logger *zap.Logger) *CompatibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CompatibilityService{
		scores:   scores,
		cache:    cache,
		postings: postings,
		scorer:   scorer,
		metrics:  metrics,
		cacheTTL: ttl,
		logger:   logger,
	}
}

// Get returns the cached score for a pair, reading through redis first.
func (s *CompatibilityService) Get(ctx context.Context, candidateID, jobPostingID string) (*models.CompatibilityScore, error) {
	score, _, err := s.GetWithSource(ctx, candidateID, jobPostingID)
	return score, err
}

// GetWithSource is Get plus a flag telling whether the score came from
// the cache, so handlers can report the hit in response metadata.
func (s *CompatibilityService) GetWithSource(ctx context.Context, candidateID, jobPostingID string) (*models.CompatibilityScore, bool, error) {
	key := repository.CompatibilityKey(candidateID, jobPostingID)
	if s.cache != nil {
		var cached models.CompatibilityScore
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheLookup(true)
			}
			return &cached, true, nil
		} else if !appErrors.HasCode(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("compatibility cache read failed", zap.String("key", key), zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordCacheLookup(false)
		}
	}

	score, err := s.scores.FindByKey(ctx, candidateID, jobPostingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "compatibility score not computed yet")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load compatibility score")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, score, s.cacheTTL); err != nil {
			s.logger.Warn("compatibility cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return score, false, nil
}

// ListForPosting returns the posting's cached scores, best fit first.
// Recruiters only see postings owned by their organization.
func (s *CompatibilityService) ListForPosting(ctx context.Context, jobPostingID string, limit int, actor models.UserInfo) ([]models.CompatibilityScore, error) {
	posting, err := s.postings.FindByID(ctx, jobPostingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job posting")
	}
	if actor.Role != models.RoleAdmin {
		if actor.OrganizationID == nil || *actor.OrganizationID != posting.OrganizationID {
			return nil, appErrors.Clone(appErrors.ErrOwnership, "job posting belongs to another organization")
		}
	}

	scores, err := s.scores.ListByJobPosting(ctx, jobPostingID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list compatibility scores")
	}
	return scores, nil
}

// RecalculateForCandidate recomputes scores for every posting relevant to
// the candidate: applied to, saved, or invited. A failed pair is logged and
// counted, then the batch continues; reruns are safe because results upsert
// by (candidate, posting) key.
func (s *CompatibilityService) RecalculateForCandidate(ctx context.Context, candidateID string) error {
	postingIDs, err := s.scores.ListRelevantPostingIDs(ctx, candidateID)
	if err != nil {
		return fmt.Errorf("enumerate relevant postings: %w", err)
	}

	var failed int
	for _, postingID := range postingIDs {
		value, justification, err := s.scorer.Score(ctx, candidateID, postingID)
		if err != nil {
			failed++
			if s.metrics != nil {
				s.metrics.RecordScoringFailure()
			}
			s.logger.Warn("scoring failed for pair",
				zap.String("candidate_id", candidateID),
				zap.String("job_posting_id", postingID),
				zap.Error(err))
			continue
		}
		if value < 0 {
			value = 0
		}
		if value > 100 {
			value = 100
		}

		score := &models.CompatibilityScore{
			CandidateID:   candidateID,
			JobPostingID:  postingID,
			Score:         value,
			Justification: justification,
		}
		if err := s.scores.Upsert(ctx, score); err != nil {
			failed++
			if s.metrics != nil {
				s.metrics.RecordScoringFailure()
			}
			s.logger.Warn("failed to store compatibility score",
				zap.String("candidate_id", candidateID),
				zap.String("job_posting_id", postingID),
				zap.Error(err))
			continue
		}
		if s.cache != nil {
			key := repository.CompatibilityKey(candidateID, postingID)
			if err := s.cache.Set(ctx, key, score, s.cacheTTL); err != nil {
				s.logger.Warn("compatibility cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}

	if s.metrics != nil {
		s.metrics.RecordRecalculation()
	}
	s.logger.Info("recalculated compatibility scores",
		zap.String("candidate_id", candidateID),
		zap.Int("postings", len(postingIDs)),
		zap.Int("failed", failed))
	return nil
}

// InvalidateForCandidate drops the candidate's cached scores.
func (s *CompatibilityService) InvalidateForCandidate(ctx context.Context, candidateID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, repository.CompatibilityCandidatePattern(candidateID)); err != nil {
		s.logger.Warn("compatibility cache invalidation failed", zap.String("candidate_id", candidateID), zap.Error(err))
	}
}

// InvalidateForPosting drops the posting's cached scores.
func (s *CompatibilityService) InvalidateForPosting(ctx context.Context, jobPostingID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, repository.CompatibilityPostingPattern(jobPostingID)); err != nil {
		s.logger.Warn("compatibility cache invalidation failed", zap.String("job_posting_id", jobPostingID), zap.Error(err))
	}
}

// SkillOverlapScorer is the default Scorer: the share of the posting's
// requirements present in the candidate's skill list, case-insensitive.
type SkillOverlapScorer struct {
	candidates candidateReader
	postings   postingReader
}

// NewSkillOverlapScorer builds the default scorer.
func NewSkillOverlapScorer(candidates candidateReader, postings postingReader) *SkillOverlapScorer {
	return &SkillOverlapScorer{candidates: candidates, postings: postings}
}

// Score implements Scorer.
func (s *SkillOverlapScorer) Score(ctx context.Context, candidateID, jobPostingID string) (int, string, error) {
	profile, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		return 0, "", fmt.Errorf("load candidate %s: %w", candidateID, err)
	}
	posting, err := s.postings.FindByID(ctx, jobPostingID)
	if err != nil {
		return 0, "", fmt.Errorf("load job posting %s: %w", jobPostingID, err)
	}

	if len(posting.Requirements) == 0 {
		return 50, "posting lists no requirements", nil
	}

	skills := make(map[string]struct{}, len(profile.Skills))
	for _, skill := range profile.Skills {
		skills[strings.ToLower(strings.TrimSpace(skill))] = struct{}{}
	}

	var matched []string
	for _, req := range posting.Requirements {
		if _, ok := skills[strings.ToLower(strings.TrimSpace(req))]; ok {
			matched = append(matched, req)
		}
	}
	sort.Strings(matched)

	score := len(matched) * 100 / len(posting.Requirements)
	justification := fmt.Sprintf("matched %d of %d required skills", len(matched), len(posting.Requirements))
	if len(matched) > 0 {
		justification += ": " + strings.Join(matched, ", ")
	}
	return score, justification, nil
}
