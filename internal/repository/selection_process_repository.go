package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/talentboard/pipeline-api/internal/models"
)

// ErrStaleProcess signals that a transition lost a race: the process row
// was updated by a concurrent writer between read and write.
var ErrStaleProcess = errors.New("selection process version is stale")

// SelectionProcessRepository persists processes and their transition ledger.
type SelectionProcessRepository struct {
	db *sqlx.DB
}

// NewSelectionProcessRepository constructs the repository.
func NewSelectionProcessRepository(db *sqlx.DB) *SelectionProcessRepository {
	return &SelectionProcessRepository{db: db}
}

// Create inserts a process and its opening ledger entry in one transaction.
func (r *SelectionProcessRepository) Create(ctx context.Context, process *models.SelectionProcess, actorID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create process: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := createProcessInTx(ctx, tx, process, actorID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create process: %w", err)
	}
	return nil
}

// createProcessInTx writes the process row and its first ledger entry.
// Shared with the invitation accept transaction.
func createProcessInTx(ctx context.Context, tx *sqlx.Tx, process *models.SelectionProcess, actorID string) error {
	if process.ID == "" {
		process.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if process.StartedAt.IsZero() {
		process.StartedAt = now
	}
	process.LastTransitionAt = process.StartedAt
	process.Version = 1

	const insertProcess = `INSERT INTO selection_processes (id, application_id, job_posting_id, current_stage_id, started_at, ended_at, last_transition_at, version)
VALUES (:id, :application_id, :job_posting_id, :current_stage_id, :started_at, :ended_at, :last_transition_at, :version)`
	if _, err := tx.NamedExecContext(ctx, insertProcess, process); err != nil {
		return fmt.Errorf("create selection process: %w", err)
	}

	entry := models.StageTransition{
		ID:             uuid.NewString(),
		ProcessID:      process.ID,
		FromStageID:    nil,
		ToStageID:      process.CurrentStageID,
		ActorID:        actorID,
		TransitionedAt: process.StartedAt,
	}
	const insertEntry = `INSERT INTO stage_transitions (id, process_id, from_stage_id, to_stage_id, actor_id, feedback, transitioned_at)
VALUES (:id, :process_id, :from_stage_id, :to_stage_id, :actor_id, :feedback, :transitioned_at)`
	if _, err := tx.NamedExecContext(ctx, insertEntry, entry); err != nil {
		return fmt.Errorf("create opening ledger entry: %w", err)
	}
	return nil
}

// FindByID returns a process by its identifier.
func (r *SelectionProcessRepository) FindByID(ctx context.Context, id string) (*models.SelectionProcess, error) {
	const query = `SELECT id, application_id, job_posting_id, current_stage_id, started_at, ended_at, last_transition_at, version
FROM selection_processes WHERE id = $1`
	var process models.SelectionProcess
	if err := r.db.GetContext(ctx, &process, query, id); err != nil {
		return nil, err
	}
	return &process, nil
}

// FindByApplicationID returns the process owned by an application.
func (r *SelectionProcessRepository) FindByApplicationID(ctx context.Context, applicationID string) (*models.SelectionProcess, error) {
	const query = `SELECT id, application_id, job_posting_id, current_stage_id, started_at, ended_at, last_transition_at, version
FROM selection_processes WHERE application_id = $1`
	var process models.SelectionProcess
	if err := r.db.GetContext(ctx, &process, query, applicationID); err != nil {
		return nil, err
	}
	return &process, nil
}

// FindDetailByID returns a process with stage, posting and candidate info.
func (r *SelectionProcessRepository) FindDetailByID(ctx context.Context, id string) (*models.SelectionProcessDetail, error) {
	const query = `SELECT p.id, p.application_id, p.job_posting_id, p.current_stage_id, p.started_at, p.ended_at, p.last_transition_at, p.version,
        s.name AS current_stage_name, s.kind AS current_stage_kind, j.title AS job_posting_title,
        a.candidate_id AS candidate_id, u.full_name AS candidate_name
        FROM selection_processes p
        JOIN stages s ON s.id = p.current_stage_id
        JOIN job_postings j ON j.id = p.job_posting_id
        JOIN applications a ON a.id = p.application_id
        JOIN candidate_profiles cp ON cp.id = a.candidate_id
        JOIN users u ON u.id = cp.user_id
        WHERE p.id = $1`
	var detail models.SelectionProcessDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns processes filtered by posting or stage.
func (r *SelectionProcessRepository) List(ctx context.Context, filter models.SelectionProcessFilter) ([]models.SelectionProcessDetail, int, error) {
	base := `FROM selection_processes p
JOIN stages s ON s.id = p.current_stage_id
JOIN job_postings j ON j.id = p.job_posting_id
JOIN applications a ON a.id = p.application_id
JOIN candidate_profiles cp ON cp.id = a.candidate_id
JOIN users u ON u.id = cp.user_id`
	var conditions []string
	var args []interface{}

	if filter.JobPostingID != "" {
		conditions = append(conditions, fmt.Sprintf("p.job_posting_id = $%d", len(args)+1))
		args = append(args, filter.JobPostingID)
	}
	if filter.StageID != "" {
		conditions = append(conditions, fmt.Sprintf("p.current_stage_id = $%d", len(args)+1))
		args = append(args, filter.StageID)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "p.ended_at IS NULL")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT p.id, p.application_id, p.job_posting_id, p.current_stage_id, p.started_at, p.ended_at, p.last_transition_at, p.version,
        s.name AS current_stage_name, s.kind AS current_stage_kind, j.title AS job_posting_title,
        a.candidate_id AS candidate_id, u.full_name AS candidate_name
        %s ORDER BY p.last_transition_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var processes []models.SelectionProcessDetail
	if err := r.db.SelectContext(ctx, &processes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list selection processes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count selection processes: %w", err)
	}
	return processes, total, nil
}

// TransitionParams captures one validated stage change.
type TransitionParams struct {
	ProcessID       string
	ExpectedVersion int
	FromStageID     string
	ToStageID       string
	ActorID         string
	Feedback        *string
	At              time.Time
	Final           bool
}

// ApplyTransition appends the ledger entry and advances the process row in
// a single transaction. The process update is a compare-and-swap on the
// version column; losing the race yields ErrStaleProcess and writes
// nothing.
func (r *SelectionProcessRepository) ApplyTransition(ctx context.Context, params TransitionParams) (*models.StageTransition, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var endedAt *time.Time
	if params.Final {
		endedAt = &params.At
	}
	res, err := tx.ExecContext(ctx, `UPDATE selection_processes
SET current_stage_id = $1, last_transition_at = $2, ended_at = $3, version = version + 1
WHERE id = $4 AND version = $5 AND ended_at IS NULL`,
		params.ToStageID, params.At, endedAt, params.ProcessID, params.ExpectedVersion)
	if err != nil {
		return nil, fmt.Errorf("advance selection process: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("advance selection process result: %w", err)
	}
	if affected == 0 {
		return nil, ErrStaleProcess
	}

	entry := &models.StageTransition{
		ID:             uuid.NewString(),
		ProcessID:      params.ProcessID,
		FromStageID:    &params.FromStageID,
		ToStageID:      params.ToStageID,
		ActorID:        params.ActorID,
		Feedback:       params.Feedback,
		TransitionedAt: params.At,
	}
	const insertEntry = `INSERT INTO stage_transitions (id, process_id, from_stage_id, to_stage_id, actor_id, feedback, transitioned_at)
VALUES (:id, :process_id, :from_stage_id, :to_stage_id, :actor_id, :feedback, :transitioned_at)`
	if _, err := tx.NamedExecContext(ctx, insertEntry, entry); err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return entry, nil
}

// ListTransitionsDesc returns the process's ledger, newest first.
func (r *SelectionProcessRepository) ListTransitionsDesc(ctx context.Context, processID string) ([]models.StageTransitionDetail, error) {
	const query = `SELECT t.id, t.process_id, t.from_stage_id, t.to_stage_id, t.actor_id, t.feedback, t.transitioned_at,
        fs.name AS from_stage_name, ts.name AS to_stage_name, u.full_name AS actor_name
        FROM stage_transitions t
        LEFT JOIN stages fs ON fs.id = t.from_stage_id
        JOIN stages ts ON ts.id = t.to_stage_id
        JOIN users u ON u.id = t.actor_id
        WHERE t.process_id = $1
        ORDER BY t.transitioned_at DESC, t.id DESC`
	var entries []models.StageTransitionDetail
	if err := r.db.SelectContext(ctx, &entries, query, processID); err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	return entries, nil
}

// CountTransitions returns the ledger size for a process.
func (r *SelectionProcessRepository) CountTransitions(ctx context.Context, processID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM stage_transitions WHERE process_id = $1`, processID); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("count transitions: %w", err)
	}
	return count, nil
}
