package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/talentboard/pipeline-api/internal/models"
)

// ApplicationRepository handles persistence of applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// FindByID returns an application by its identifier.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	const query = `SELECT id, candidate_id, job_posting_id, cover_letter, status, submitted_at, updated_at
FROM applications WHERE id = $1`
	var application models.Application
	if err := r.db.GetContext(ctx, &application, query, id); err != nil {
		return nil, err
	}
	return &application, nil
}

// FindDetailByID returns an application with posting and process context.
func (r *ApplicationRepository) FindDetailByID(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	const query = `SELECT a.id, a.candidate_id, a.job_posting_id, a.cover_letter, a.status, a.submitted_at, a.updated_at,
        j.title AS job_posting_title, u.full_name AS candidate_name, p.id AS process_id
        FROM applications a
        JOIN job_postings j ON j.id = a.job_posting_id
        JOIN candidate_profiles cp ON cp.id = a.candidate_id
        JOIN users u ON u.id = cp.user_id
        LEFT JOIN selection_processes p ON p.application_id = a.id
        WHERE a.id = $1`
	var detail models.ApplicationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Exists checks whether the candidate already applied to the posting.
func (r *ApplicationRepository) Exists(ctx context.Context, candidateID, jobPostingID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM applications WHERE candidate_id = $1 AND job_posting_id = $2 LIMIT 1`, candidateID, jobPostingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check application: %w", err)
	}
	return true, nil
}

// List returns applications filtered by the provided criteria.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	base := `FROM applications a
JOIN job_postings j ON j.id = a.job_posting_id
JOIN candidate_profiles cp ON cp.id = a.candidate_id
JOIN users u ON u.id = cp.user_id
LEFT JOIN selection_processes p ON p.application_id = a.id`
	var conditions []string
	var args []interface{}

	if filter.CandidateID != "" {
		conditions = append(conditions, fmt.Sprintf("a.candidate_id = $%d", len(args)+1))
		args = append(args, filter.CandidateID)
	}
	if filter.JobPostingID != "" {
		conditions = append(conditions, fmt.Sprintf("a.job_posting_id = $%d", len(args)+1))
		args = append(args, filter.JobPostingID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
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

	query := fmt.Sprintf(`SELECT a.id, a.candidate_id, a.job_posting_id, a.cover_letter, a.status, a.submitted_at, a.updated_at,
        j.title AS job_posting_title, u.full_name AS candidate_name, p.id AS process_id
        %s ORDER BY a.submitted_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var applications []models.ApplicationDetail
	if err := r.db.SelectContext(ctx, &applications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return applications, total, nil
}

// Create persists a new application.
func (r *ApplicationRepository) Create(ctx context.Context, application *models.Application) error {
	applyApplicationDefaults(application)
	const query = `INSERT INTO applications (id, candidate_id, job_posting_id, cover_letter, status, submitted_at, updated_at)
VALUES (:id, :candidate_id, :job_posting_id, :cover_letter, :status, :submitted_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, application); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// createApplicationInTx inserts an application within the caller's
// transaction. Used by the invitation accept flow.
func createApplicationInTx(ctx context.Context, tx *sqlx.Tx, application *models.Application) error {
	applyApplicationDefaults(application)
	const query = `INSERT INTO applications (id, candidate_id, job_posting_id, cover_letter, status, submitted_at, updated_at)
VALUES (:id, :candidate_id, :job_posting_id, :cover_letter, :status, :submitted_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, application); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

func applyApplicationDefaults(application *models.Application) {
	if application.ID == "" {
		application.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if application.SubmittedAt.IsZero() {
		application.SubmittedAt = now
	}
	application.UpdatedAt = now
	if application.Status == "" {
		application.Status = models.ApplicationStatusSubmitted
	}
}

// UpdateStatus updates the coarse application status.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	const query = `UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	return nil
}
