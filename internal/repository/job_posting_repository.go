package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/talentboard/pipeline-api/internal/models"
)

// JobPostingRepository handles persistence of job postings.
type JobPostingRepository struct {
	db *sqlx.DB
}

// NewJobPostingRepository constructs the repository.
func NewJobPostingRepository(db *sqlx.DB) *JobPostingRepository {
	return &JobPostingRepository{db: db}
}

// FindByID returns a posting by its identifier.
func (r *JobPostingRepository) FindByID(ctx context.Context, id string) (*models.JobPosting, error) {
	const query = `SELECT id, organization_id, title, description, location, requirements, status, created_by, created_at, updated_at
FROM job_postings WHERE id = $1`
	var posting models.JobPosting
	if err := r.db.GetContext(ctx, &posting, query, id); err != nil {
		return nil, err
	}
	return &posting, nil
}

// List returns postings filtered by the provided criteria.
func (r *JobPostingRepository) List(ctx context.Context, filter models.JobPostingFilter) ([]models.JobPosting, int, error) {
	base := `FROM job_postings`
	var conditions []string
	var args []interface{}

	if filter.OrganizationID != "" {
		conditions = append(conditions, fmt.Sprintf("organization_id = $%d", len(args)+1))
		args = append(args, filter.OrganizationID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(location) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "created_at",
		"updated_at": "updated_at",
		"title":      "title",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT id, organization_id, title, description, location, requirements, status, created_by, created_at, updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var postings []models.JobPosting
	if err := r.db.SelectContext(ctx, &postings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list job postings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count job postings: %w", err)
	}
	return postings, total, nil
}

// Create persists a new posting.
func (r *JobPostingRepository) Create(ctx context.Context, posting *models.JobPosting) error {
	if posting.ID == "" {
		posting.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if posting.CreatedAt.IsZero() {
		posting.CreatedAt = now
	}
	posting.UpdatedAt = now
	if posting.Status == "" {
		posting.Status = models.JobPostingStatusDraft
	}
	const query = `INSERT INTO job_postings (id, organization_id, title, description, location, requirements, status, created_by, created_at, updated_at)
VALUES (:id, :organization_id, :title, :description, :location, :requirements, :status, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, posting); err != nil {
		return fmt.Errorf("create job posting: %w", err)
	}
	return nil
}

// Update persists mutable posting fields.
func (r *JobPostingRepository) Update(ctx context.Context, posting *models.JobPosting) error {
	posting.UpdatedAt = time.Now().UTC()
	const query = `UPDATE job_postings SET title = :title, description = :description, location = :location, requirements = :requirements, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, posting); err != nil {
		return fmt.Errorf("update job posting: %w", err)
	}
	return nil
}

// Delete removes a posting and its cached compatibility rows.
func (r *JobPostingRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin posting delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM compatibility_scores WHERE job_posting_id = $1`, id); err != nil {
		return fmt.Errorf("delete posting compatibility scores: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM job_postings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete job posting: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit posting delete: %w", err)
	}
	return nil
}
