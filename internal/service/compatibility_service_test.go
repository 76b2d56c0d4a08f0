package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/talentboard/pipeline-api/internal/models"
	"github.com/talentboard/pipeline-api/pkg/config"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
)

type compatRepoStub struct {
	scores    map[string]*models.CompatibilityScore
	relevant  []string
	findCalls int
	upserts   int
}

func newCompatRepoStub() *compatRepoStub {
	return &compatRepoStub{scores: make(map[string]*models.CompatibilityScore)}
}

func compatPairKey(candidateID, jobPostingID string) string {
	return candidateID + "|" + jobPostingID
}

func (r *compatRepoStub) Upsert(ctx context.Context, score *models.CompatibilityScore) error {
	r.upserts++
	if score.ID == "" {
		score.ID = fmt.Sprintf("score-%d", r.upserts)
	}
	score.ComputedAt = time.Now().UTC()
	copy := *score
	r.scores[compatPairKey(score.CandidateID, score.JobPostingID)] = &copy
	return nil
}

func (r *compatRepoStub) FindByKey(ctx context.Context, candidateID, jobPostingID string) (*models.CompatibilityScore, error) {
	r.findCalls++
	if score, ok := r.scores[compatPairKey(candidateID, jobPostingID)]; ok {
		copy := *score
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *compatRepoStub) ListByJobPosting(ctx context.Context, jobPostingID string, limit int) ([]models.CompatibilityScore, error) {
	result := make([]models.CompatibilityScore, 0, len(r.scores))
	for _, score := range r.scores {
		if score.JobPostingID == jobPostingID {
			result = append(result, *score)
		}
	}
	return result, nil
}

func (r *compatRepoStub) ListRelevantPostingIDs(ctx context.Context, candidateID string) ([]string, error) {
	return r.relevant, nil
}

type cacheStub struct {
	entries         map[string]models.CompatibilityScore
	sets            int
	deletedPatterns []string
}

func newCacheStub() *cacheStub {
	return &cacheStub{entries: make(map[string]models.CompatibilityScore)}
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	score, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	out, ok := dest.(*models.CompatibilityScore)
	if !ok {
		return fmt.Errorf("unexpected dest type %T", dest)
	}
	*out = score
	return nil
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.sets++
	if score, ok := value.(*models.CompatibilityScore); ok {
		c.entries[key] = *score
	}
	return nil
}

func (c *cacheStub) Delete(ctx context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

func (c *cacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	c.deletedPatterns = append(c.deletedPatterns, pattern)
	return nil
}

type scorerFunc func(ctx context.Context, candidateID, jobPostingID string) (int, string, error)

func (f scorerFunc) Score(ctx context.Context, candidateID, jobPostingID string) (int, string, error) {
	return f(ctx, candidateID, jobPostingID)
}

func newCompatTestService(repo *compatRepoStub, cache *cacheStub, scorer Scorer, metrics *metricsStub) *CompatibilityService {
	// A nil *metricsStub would still satisfy the metrics interface as a
	// non-nil value, so substitute a fresh stub instead.
	if metrics == nil {
		metrics = &metricsStub{}
	}
	postings := &postingReaderStub{postings: map[string]*models.JobPosting{
		"post-1": {ID: "post-1", OrganizationID: "org-1", Status: models.JobPostingStatusPublished},
	}}
	return NewCompatibilityService(repo, cache, postings, scorer, metrics, config.CompatibilityConfig{CacheTTL: time.Minute}, nil)
}

func TestCompatibilityServiceGetCacheHit(t *testing.T) {
	repo := newCompatRepoStub()
	cache := newCacheStub()
	svc := newCompatTestService(repo, cache, nil, nil)
	cache.entries["compat:cand-1:post-1"] = models.CompatibilityScore{
		CandidateID:  "cand-1",
		JobPostingID: "post-1",
		Score:        80,
	}

	score, err := svc.Get(context.Background(), "cand-1", "post-1")
	require.NoError(t, err)
	require.Equal(t, 80, score.Score)
	require.Zero(t, repo.findCalls)
}

func TestCompatibilityServiceGetCacheMissFallsThrough(t *testing.T) {
	repo := newCompatRepoStub()
	cache := newCacheStub()
	svc := newCompatTestService(repo, cache, nil, nil)
	repo.scores[compatPairKey("cand-1", "post-1")] = &models.CompatibilityScore{
		CandidateID:  "cand-1",
		JobPostingID: "post-1",
		Score:        64,
	}

	score, err := svc.Get(context.Background(), "cand-1", "post-1")
	require.NoError(t, err)
	require.Equal(t, 64, score.Score)
	require.Equal(t, 1, repo.findCalls)
	// the read-through populated the cache
	require.Equal(t, 1, cache.sets)

	_, err = svc.Get(context.Background(), "cand-1", "post-1")
	require.NoError(t, err)
	require.Equal(t, 1, repo.findCalls)
}

func TestCompatibilityServiceGetNotComputed(t *testing.T) {
	svc := newCompatTestService(newCompatRepoStub(), newCacheStub(), nil, nil)

	_, err := svc.Get(context.Background(), "cand-1", "post-9")
	require.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestCompatibilityServiceRecalculate(t *testing.T) {
	repo := newCompatRepoStub()
	repo.relevant = []string{"post-1", "post-2"}
	cache := newCacheStub()
	metrics := &metricsStub{}
	scorer := scorerFunc(func(ctx context.Context, candidateID, jobPostingID string) (int, string, error) {
		return 70, "matched 7 of 10 required skills", nil
	})
	svc := newCompatTestService(repo, cache, scorer, metrics)

	require.NoError(t, svc.RecalculateForCandidate(context.Background(), "cand-1"))
	require.Equal(t, 2, repo.upserts)
	require.Equal(t, 1, metrics.recalculations)
	require.Zero(t, metrics.scoringFailures)
	require.Equal(t, 2, cache.sets)
	require.Equal(t, 70, repo.scores[compatPairKey("cand-1", "post-1")].Score)
}

func TestCompatibilityServiceRecalculateSkipsFailedPair(t *testing.T) {
	repo := newCompatRepoStub()
	repo.relevant = []string{"post-1", "post-2", "post-3"}
	metrics := &metricsStub{}
	scorer := scorerFunc(func(ctx context.Context, candidateID, jobPostingID string) (int, string, error) {
		if jobPostingID == "post-2" {
			return 0, "", fmt.Errorf("scoring backend unavailable")
		}
		return 55, "matched 5 of 9 required skills", nil
	})
	svc := newCompatTestService(repo, newCacheStub(), scorer, metrics)

	require.NoError(t, svc.RecalculateForCandidate(context.Background(), "cand-1"))
	require.Equal(t, 2, repo.upserts)
	require.Equal(t, 1, metrics.scoringFailures)
	require.Equal(t, 1, metrics.recalculations)
	require.NotContains(t, repo.scores, compatPairKey("cand-1", "post-2"))
}

func TestCompatibilityServiceRecalculateClampsScore(t *testing.T) {
	repo := newCompatRepoStub()
	repo.relevant = []string{"post-1"}
	scorer := scorerFunc(func(ctx context.Context, candidateID, jobPostingID string) (int, string, error) {
		return 150, "overflow", nil
	})
	svc := newCompatTestService(repo, newCacheStub(), scorer, nil)

	require.NoError(t, svc.RecalculateForCandidate(context.Background(), "cand-1"))
	require.Equal(t, 100, repo.scores[compatPairKey("cand-1", "post-1")].Score)
}

func TestCompatibilityServiceInvalidate(t *testing.T) {
	cache := newCacheStub()
	svc := newCompatTestService(newCompatRepoStub(), cache, nil, nil)

	svc.InvalidateForCandidate(context.Background(), "cand-1")
	svc.InvalidateForPosting(context.Background(), "post-1")
	require.Equal(t, []string{"compat:cand-1:*", "compat:*:post-1"}, cache.deletedPatterns)
}

func TestSkillOverlapScorer(t *testing.T) {
	candidates := &candidateReaderStub{profiles: map[string]*models.CandidateProfile{
		"cand-1": {ID: "cand-1", Skills: []string{"Go", "PostgreSQL", "Docker"}},
	}}
	postings := &postingReaderStub{postings: map[string]*models.JobPosting{
		"post-1": {ID: "post-1", Requirements: []string{"go", "postgresql", "kubernetes", "redis"}},
		"post-2": {ID: "post-2"},
	}}
	scorer := NewSkillOverlapScorer(candidates, postings)

	score, justification, err := scorer.Score(context.Background(), "cand-1", "post-1")
	require.NoError(t, err)
	require.Equal(t, 50, score)
	require.Contains(t, justification, "matched 2 of 4 required skills")

	// a posting with no requirements scores neutral
	score, justification, err = scorer.Score(context.Background(), "cand-1", "post-2")
	require.NoError(t, err)
	require.Equal(t, 50, score)
	require.Equal(t, "posting lists no requirements", justification)
}
