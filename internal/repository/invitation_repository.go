package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/talentboard/pipeline-api/internal/models"
)

// ErrInviteAlreadyAnswered signals that a concurrent responder flipped the
// invitation out of PENDING first.
var ErrInviteAlreadyAnswered = errors.New("invitation is no longer pending")

// InvitationRepository handles persistence of invitations.
type InvitationRepository struct {
	db *sqlx.DB
}

// NewInvitationRepository constructs the repository.
func NewInvitationRepository(db *sqlx.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// Create persists a new invitation.
func (r *InvitationRepository) Create(ctx context.Context, invite *models.Invitation) error {
	if invite.ID == "" {
		invite.ID = uuid.NewString()
	}
	if invite.SentAt.IsZero() {
		invite.SentAt = time.Now().UTC()
	}
	if invite.Status == "" {
		invite.Status = models.InvitationStatusPending
	}
	const query = `INSERT INTO invitations (id, job_posting_id, sender_id, recipient_id, message, status, sent_at, expires_at, responded_at)
VALUES (:id, :job_posting_id, :sender_id, :recipient_id, :message, :status, :sent_at, :expires_at, :responded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, invite); err != nil {
		return fmt.Errorf("create invitation: %w", err)
	}
	return nil
}

// FindByID returns an invitation by its identifier.
func (r *InvitationRepository) FindByID(ctx context.Context, id string) (*models.Invitation, error) {
	const query = `SELECT id, job_posting_id, sender_id, recipient_id, message, status, sent_at, expires_at, responded_at
FROM invitations WHERE id = $1`
	var invite models.Invitation
	if err := r.db.GetContext(ctx, &invite, query, id); err != nil {
		return nil, err
	}
	return &invite, nil
}

// FindPendingByJobPostingAndRecipient returns a stored-PENDING invite for
// the pair, if one exists. Callers derive effective expiry themselves.
func (r *InvitationRepository) FindPendingByJobPostingAndRecipient(ctx context.Context, jobPostingID, recipientID string) (*models.Invitation, error) {
	const query = `SELECT id, job_posting_id, sender_id, recipient_id, message, status, sent_at, expires_at, responded_at
FROM invitations WHERE job_posting_id = $1 AND recipient_id = $2 AND status = $3
ORDER BY sent_at DESC LIMIT 1`
	var invite models.Invitation
	if err := r.db.GetContext(ctx, &invite, query, jobPostingID, recipientID, models.InvitationStatusPending); err != nil {
		return nil, err
	}
	return &invite, nil
}

// List returns invitations filtered by the provided criteria.
func (r *InvitationRepository) List(ctx context.Context, filter models.InvitationFilter) ([]models.InvitationDetail, int, error) {
	base := `FROM invitations i
JOIN job_postings j ON j.id = i.job_posting_id
JOIN users su ON su.id = i.sender_id
JOIN candidate_profiles cp ON cp.id = i.recipient_id
JOIN users ru ON ru.id = cp.user_id`
	var conditions []string
	var args []interface{}

	if filter.JobPostingID != "" {
		conditions = append(conditions, fmt.Sprintf("i.job_posting_id = $%d", len(args)+1))
		args = append(args, filter.JobPostingID)
	}
	if filter.RecipientID != "" {
		conditions = append(conditions, fmt.Sprintf("i.recipient_id = $%d", len(args)+1))
		args = append(args, filter.RecipientID)
	}
	if filter.SenderID != "" {
		conditions = append(conditions, fmt.Sprintf("i.sender_id = $%d", len(args)+1))
		args = append(args, filter.SenderID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("i.status = $%d", len(args)+1))
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

	query := fmt.Sprintf(`SELECT i.id, i.job_posting_id, i.sender_id, i.recipient_id, i.message, i.status, i.sent_at, i.expires_at, i.responded_at,
        j.title AS job_posting_title, su.full_name AS sender_name, ru.full_name AS recipient_name
        %s ORDER BY i.sent_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var invites []models.InvitationDetail
	if err := r.db.SelectContext(ctx, &invites, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list invitations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count invitations: %w", err)
	}
	return invites, total, nil
}

// Decline flips a pending invitation to DECLINED. The UPDATE is conditional
// on the stored status so only one concurrent responder wins.
func (r *InvitationRepository) Decline(ctx context.Context, id string, respondedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE invitations SET status = $1, responded_at = $2 WHERE id = $3 AND status = $4`,
		models.InvitationStatusDeclined, respondedAt, id, models.InvitationStatusPending)
	if err != nil {
		return fmt.Errorf("decline invitation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decline invitation result: %w", err)
	}
	if affected == 0 {
		return ErrInviteAlreadyAnswered
	}
	return nil
}

// Accept flips a pending invitation to ACCEPTED, creates the backing
// application and opens the selection process at the posting's initial
// stage, all in one transaction. Either every write lands or none does.
func (r *InvitationRepository) Accept(ctx context.Context, id string, respondedAt time.Time, application *models.Application, process *models.SelectionProcess, actorID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin accept invitation: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `UPDATE invitations SET status = $1, responded_at = $2 WHERE id = $3 AND status = $4`,
		models.InvitationStatusAccepted, respondedAt, id, models.InvitationStatusPending)
	if err != nil {
		return fmt.Errorf("accept invitation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("accept invitation result: %w", err)
	}
	if affected == 0 {
		return ErrInviteAlreadyAnswered
	}

	if err := createApplicationInTx(ctx, tx, application); err != nil {
		return err
	}
	process.ApplicationID = application.ID
	if err := createProcessInTx(ctx, tx, process, actorID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit accept invitation: %w", err)
	}
	return nil
}

// ExpireOverdue rewrites stored-PENDING invitations whose expiry passed.
// Purely an optimization for listings; reads derive expiry regardless.
func (r *InvitationRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE invitations SET status = $1 WHERE status = $2 AND expires_at < $3`,
		models.InvitationStatusExpired, models.InvitationStatusPending, now)
	if err != nil {
		return 0, fmt.Errorf("expire invitations: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire invitations result: %w", err)
	}
	return affected, nil
}
