package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/talentboard/pipeline-api/internal/models"
)

// CompatibilityRepository persists cached candidate-to-posting fit scores.
type CompatibilityRepository struct {
	db *sqlx.DB
}

// NewCompatibilityRepository constructs the repository.
func NewCompatibilityRepository(db *sqlx.DB) *CompatibilityRepository {
	return &CompatibilityRepository{db: db}
}

// Upsert inserts or replaces the score for a (candidate, posting) pair.
// The unique key on the pair guarantees at most one row; concurrent
// recomputations of the same pair resolve last-write-wins.
func (r *CompatibilityRepository) Upsert(ctx context.Context, score *models.CompatibilityScore) error {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if score.ComputedAt.IsZero() {
		score.ComputedAt = now
	}
	score.UpdatedAt = now
	const query = `INSERT INTO compatibility_scores (id, candidate_id, job_posting_id, score, justification, computed_at, updated_at)
VALUES (:id, :candidate_id, :job_posting_id, :score, :justification, :computed_at, :updated_at)
ON CONFLICT (candidate_id, job_posting_id) DO UPDATE
SET score = EXCLUDED.score, justification = EXCLUDED.justification, computed_at = EXCLUDED.computed_at, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, score); err != nil {
		return fmt.Errorf("upsert compatibility score: %w", err)
	}
	return nil
}

// FindByKey returns the cached score for a (candidate, posting) pair.
func (r *CompatibilityRepository) FindByKey(ctx context.Context, candidateID, jobPostingID string) (*models.CompatibilityScore, error) {
	const query = `SELECT id, candidate_id, job_posting_id, score, justification, computed_at, updated_at
FROM compatibility_scores WHERE candidate_id = $1 AND job_posting_id = $2`
	var score models.CompatibilityScore
	if err := r.db.GetContext(ctx, &score, query, candidateID, jobPostingID); err != nil {
		return nil, err
	}
	return &score, nil
}

// ListByJobPosting returns cached scores for a posting, best first.
func (r *CompatibilityRepository) ListByJobPosting(ctx context.Context, jobPostingID string, limit int) ([]models.CompatibilityScore, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `SELECT id, candidate_id, job_posting_id, score, justification, computed_at, updated_at
FROM compatibility_scores WHERE job_posting_id = $1 ORDER BY score DESC LIMIT $2`
	var scores []models.CompatibilityScore
	if err := r.db.SelectContext(ctx, &scores, query, jobPostingID, limit); err != nil {
		return nil, fmt.Errorf("list compatibility scores: %w", err)
	}
	return scores, nil
}

// DeleteByCandidate removes all cached scores for a candidate.
func (r *CompatibilityRepository) DeleteByCandidate(ctx context.Context, candidateID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM compatibility_scores WHERE candidate_id = $1`, candidateID); err != nil {
		return fmt.Errorf("delete candidate compatibility scores: %w", err)
	}
	return nil
}

// DeleteByJobPosting removes all cached scores for a posting.
func (r *CompatibilityRepository) DeleteByJobPosting(ctx context.Context, jobPostingID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM compatibility_scores WHERE job_posting_id = $1`, jobPostingID); err != nil {
		return fmt.Errorf("delete posting compatibility scores: %w", err)
	}
	return nil
}

// ListRelevantPostingIDs enumerates every posting relevant to a candidate:
// applied to, saved, or invited. Duplicates collapse via the UNION.
func (r *CompatibilityRepository) ListRelevantPostingIDs(ctx context.Context, candidateID string) ([]string, error) {
	const query = `SELECT job_posting_id FROM applications WHERE candidate_id = $1
UNION
SELECT job_posting_id FROM saved_postings WHERE candidate_id = $1
UNION
SELECT job_posting_id FROM invitations WHERE recipient_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, candidateID); err != nil {
		return nil, fmt.Errorf("list relevant postings: %w", err)
	}
	return ids, nil
}
