package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/talentboard/pipeline-api/internal/models"
)

// CandidateRepository handles persistence of candidate profiles.
type CandidateRepository struct {
	db *sqlx.DB
}

// NewCandidateRepository constructs the repository.
func NewCandidateRepository(db *sqlx.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

// FindByID returns a candidate profile by its identifier.
func (r *CandidateRepository) FindByID(ctx context.Context, id string) (*models.CandidateProfile, error) {
	const query = `SELECT id, user_id, headline, summary, location, skills, created_at, updated_at
FROM candidate_profiles WHERE id = $1`
	var profile models.CandidateProfile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindByUserID returns the profile owned by a user account.
func (r *CandidateRepository) FindByUserID(ctx context.Context, userID string) (*models.CandidateProfile, error) {
	const query = `SELECT id, user_id, headline, summary, location, skills, created_at, updated_at
FROM candidate_profiles WHERE user_id = $1`
	var profile models.CandidateProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Create persists a new candidate profile.
func (r *CandidateRepository) Create(ctx context.Context, profile *models.CandidateProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	const query = `INSERT INTO candidate_profiles (id, user_id, headline, summary, location, skills, created_at, updated_at)
VALUES (:id, :user_id, :headline, :summary, :location, :skills, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create candidate profile: %w", err)
	}
	return nil
}

// UpdateProfile writes profile changes and the candidate_profile_updated
// outbox event in one transaction. The event is only ever visible to the
// dispatcher once the profile write is durably committed.
func (r *CandidateRepository) UpdateProfile(ctx context.Context, profile *models.CandidateProfile) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin profile update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	profile.UpdatedAt = time.Now().UTC()
	const query = `UPDATE candidate_profiles SET headline = :headline, summary = :summary, location = :location, skills = :skills, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("update candidate profile: %w", err)
	}

	event := &models.OutboxEvent{
		Type:    models.OutboxEventCandidateProfileUpdated,
		Payload: models.OutboxPayload{CandidateID: profile.ID},
	}
	if err := AppendInTx(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit profile update: %w", err)
	}
	return nil
}

// SavePosting bookmarks a posting for a candidate. Duplicate saves are
// absorbed by the unique key.
func (r *CandidateRepository) SavePosting(ctx context.Context, candidateID, jobPostingID string) error {
	saved := models.SavedPosting{
		ID:           uuid.NewString(),
		CandidateID:  candidateID,
		JobPostingID: jobPostingID,
		SavedAt:      time.Now().UTC(),
	}
	const query = `INSERT INTO saved_postings (id, candidate_id, job_posting_id, saved_at)
VALUES (:id, :candidate_id, :job_posting_id, :saved_at)
ON CONFLICT (candidate_id, job_posting_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, saved); err != nil {
		return fmt.Errorf("save posting: %w", err)
	}
	return nil
}

// UnsavePosting removes a bookmark.
func (r *CandidateRepository) UnsavePosting(ctx context.Context, candidateID, jobPostingID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM saved_postings WHERE candidate_id = $1 AND job_posting_id = $2`, candidateID, jobPostingID); err != nil {
		return fmt.Errorf("unsave posting: %w", err)
	}
	return nil
}

// Delete removes a profile. Compatibility rows cascade through the schema's
// foreign keys; the explicit delete keeps the invariant visible.
func (r *CandidateRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin profile delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM compatibility_scores WHERE candidate_id = $1`, id); err != nil {
		return fmt.Errorf("delete candidate compatibility scores: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM candidate_profiles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete candidate profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit profile delete: %w", err)
	}
	return nil
}
