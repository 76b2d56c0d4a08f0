package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/talentboard/pipeline-api/internal/models"
)

// StageRepository handles persistence of job posting stage sequences.
type StageRepository struct {
	db *sqlx.DB
}

// NewStageRepository constructs the repository.
func NewStageRepository(db *sqlx.DB) *StageRepository {
	return &StageRepository{db: db}
}

// ListByJobPosting returns the posting's stages ordered by ordinal.
func (r *StageRepository) ListByJobPosting(ctx context.Context, jobPostingID string) (models.StageSequence, error) {
	const query = `SELECT id, job_posting_id, name, description, kind, ordinal, active, created_at
FROM stages WHERE job_posting_id = $1 ORDER BY ordinal ASC`
	var stages models.StageSequence
	if err := r.db.SelectContext(ctx, &stages, query, jobPostingID); err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	return stages, nil
}

// FindByID returns a stage by its identifier.
func (r *StageRepository) FindByID(ctx context.Context, id string) (*models.Stage, error) {
	const query = `SELECT id, job_posting_id, name, description, kind, ordinal, active, created_at
FROM stages WHERE id = $1`
	var stage models.Stage
	if err := r.db.GetContext(ctx, &stage, query, id); err != nil {
		return nil, err
	}
	return &stage, nil
}

// ExistsOrdinal checks whether a stage already occupies the ordinal within
// the posting, excluding an optional stage ID (used on updates).
func (r *StageRepository) ExistsOrdinal(ctx context.Context, jobPostingID string, ordinal int, excludeID string) (bool, error) {
	query := `SELECT 1 FROM stages WHERE job_posting_id = $1 AND ordinal = $2`
	args := []interface{}{jobPostingID, ordinal}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check stage ordinal: %w", err)
	}
	return true, nil
}

// Create persists a new stage record.
func (r *StageRepository) Create(ctx context.Context, stage *models.Stage) error {
	if stage.ID == "" {
		stage.ID = uuid.NewString()
	}
	if stage.CreatedAt.IsZero() {
		stage.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO stages (id, job_posting_id, name, description, kind, ordinal, active, created_at)
VALUES (:id, :job_posting_id, :name, :description, :kind, :ordinal, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, stage); err != nil {
		return fmt.Errorf("create stage: %w", err)
	}
	return nil
}

// Update persists mutable stage fields.
func (r *StageRepository) Update(ctx context.Context, stage *models.Stage) error {
	const query = `UPDATE stages SET name = :name, description = :description, kind = :kind, ordinal = :ordinal, active = :active WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, stage); err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	return nil
}

// Reorder rewrites ordinals for the posting's stages in one transaction.
// The input maps stage ID to its new ordinal.
func (r *StageRepository) Reorder(ctx context.Context, jobPostingID string, ordinals map[string]int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Park ordinals in negative space first so the unique index never
	// trips on intermediate states.
	for id := range ordinals {
		if _, err := tx.ExecContext(ctx, `UPDATE stages SET ordinal = -ordinal WHERE id = $1 AND job_posting_id = $2`, id, jobPostingID); err != nil {
			return fmt.Errorf("park stage ordinal: %w", err)
		}
	}
	for id, ordinal := range ordinals {
		res, err := tx.ExecContext(ctx, `UPDATE stages SET ordinal = $1 WHERE id = $2 AND job_posting_id = $3`, ordinal, id, jobPostingID)
		if err != nil {
			return fmt.Errorf("reorder stage: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("reorder stage result: %w", err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}

// InUse reports whether any selection process or ledger entry references
// the stage. Referenced stages must not be deleted.
func (r *StageRepository) InUse(ctx context.Context, id string) (bool, error) {
	const query = `SELECT 1 WHERE EXISTS (SELECT 1 FROM selection_processes WHERE current_stage_id = $1)
OR EXISTS (SELECT 1 FROM stage_transitions WHERE from_stage_id = $1 OR to_stage_id = $1)`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check stage usage: %w", err)
	}
	return true, nil
}

// Delete removes a stage row.
func (r *StageRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM stages WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete stage: %w", err)
	}
	return nil
}
