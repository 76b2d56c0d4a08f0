package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/talentboard/pipeline-api/internal/models"
	"github.com/talentboard/pipeline-api/internal/repository"
	"github.com/talentboard/pipeline-api/pkg/config"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
)

type invitationStore interface {
	Create(ctx context.Context, invite *models.Invitation) error
	FindByID(ctx context.Context, id string) (*models.Invitation, error)
	FindPendingByJobPostingAndRecipient(ctx context.Context, jobPostingID, recipientID string) (*models.Invitation, error)
	List(ctx context.Context, filter models.InvitationFilter) ([]models.InvitationDetail, int, error)
	Decline(ctx context.Context, id string, respondedAt time.Time) error
	Accept(ctx context.Context, id string, respondedAt time.Time, application *models.Application, process *models.SelectionProcess, actorID string) error
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

type candidateReader interface {
	FindByID(ctx context.Context, id string) (*models.CandidateProfile, error)
	FindByUserID(ctx context.Context, userID string) (*models.CandidateProfile, error)
}

type applicationChecker interface {
	Exists(ctx context.Context, candidateID, jobPostingID string) (bool, error)
}

type inviteMetrics interface {
	RecordInviteSent()
	RecordInviteResponded(accepted bool)
}

// SendInvitationRequest is a recruiter's offer for a candidate to enter a
// posting's pipeline.
type SendInvitationRequest struct {
	JobPostingID string `json:"job_posting_id" validate:"required"`
	RecipientID  string `json:"recipient_id" validate:"required"`
	Message      string `json:"message" validate:"max=2000"`
	TTL          string `json:"ttl,omitempty"`
}

// RespondInvitationRequest carries the candidate's answer.
type RespondInvitationRequest struct {
	Action string `json:"action" validate:"required,oneof=accept decline"`
}

// InvitationService manages the invitation lifecycle.
type InvitationService struct {
	invites      invitationStore
	postings     postingReader
	candidates   candidateReader
	stages       stageReader
	audit        auditLogger
	applications applicationChecker
	metrics      inviteMetrics
	cfg          config.InvitationsConfig
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewInvitationService builds the service.
func NewInvitationService(invites invitationStore, postings postingReader, candidates candidateReader, stages stageReader, audit auditLogger, applications applicationChecker, metrics inviteMetrics, cfg config.InvitationsConfig, validate *validator.Validate, logger *zap.Logger) *InvitationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 7 * 24 * time.Hour
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = 30 * 24 * time.Hour
	}
	return &InvitationService{
		invites:      invites,
		postings:     postings,
		candidates:   candidates,
		stages:       stages,
		audit:        audit,
		applications: applications,
		metrics:      metrics,
		cfg:          cfg,
		validator:    validate,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Send creates a pending invitation. At most one pending, unexpired
// invitation may exist per (posting, recipient) pair.
func (s *InvitationService) Send(ctx context.Context, req SendInvitationRequest, actor models.UserInfo) (*models.Invitation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invitation payload")
	}

	posting, err := s.postings.FindByID(ctx, req.JobPostingID)
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
	if posting.Status != models.JobPostingStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "job posting is not published")
	}

	if _, err := s.candidates.FindByID(ctx, req.RecipientID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}

	now := s.now()
	existing, err := s.invites.FindPendingByJobPostingAndRecipient(ctx, req.JobPostingID, req.RecipientID)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending invitations")
	}
	if existing != nil && existing.EffectiveStatus(now) == models.InvitationStatusPending {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "duplicate pending invite")
	}

	ttl := s.cfg.DefaultTTL
	if raw := strings.TrimSpace(req.TTL); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid invitation ttl")
		}
		ttl = parsed
	}
	if ttl > s.cfg.MaxTTL {
		ttl = s.cfg.MaxTTL
	}

	invite := &models.Invitation{
		JobPostingID: req.JobPostingID,
		SenderID:     actor.ID,
		RecipientID:  req.RecipientID,
		Message:      req.Message,
		Status:       models.InvitationStatusPending,
		SentAt:       now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := s.invites.Create(ctx, invite); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invitation")
	}

	if s.metrics != nil {
		s.metrics.RecordInviteSent()
	}
	s.emitAudit(ctx, actor.ID, models.AuditActionInviteSend, invite.ID, map[string]interface{}{
		"job_posting_id": invite.JobPostingID,
		"recipient_id":   invite.RecipientID,
		"expires_at":     invite.ExpiresAt,
	})
	return invite, nil
}

// Get returns the invitation with its effective status derived as of now.
func (s *InvitationService) Get(ctx context.Context, id string, actor models.UserInfo) (*models.Invitation, error) {
	invite, err := s.loadGuarded(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	invite.Status = invite.EffectiveStatus(s.now())
	return invite, nil
}

// List returns invitations visible to the actor. Candidates see their own;
// recruiters see those they sent unless filtered further.
func (s *InvitationService) List(ctx context.Context, filter models.InvitationFilter, actor models.UserInfo) ([]models.InvitationDetail, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleCandidate:
		profile, err := s.candidates.FindByUserID(ctx, actor.ID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "candidate profile not found")
			}
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate profile")
		}
		filter.RecipientID = profile.ID
	case models.RoleRecruiter:
		if filter.JobPostingID == "" {
			filter.SenderID = actor.ID
		}
	}

	invites, total, err := s.invites.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invitations")
	}

	now := s.now()
	for i := range invites {
		invites[i].Status = invites[i].EffectiveStatus(now)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return invites, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Respond answers a pending invitation. Accepting creates the application
// and its selection process in the same transaction as the status flip;
// declining only flips. An overdue invitation reads as expired regardless
// of whether the sweep rewrote it yet.
func (s *InvitationService) Respond(ctx context.Context, id string, req RespondInvitationRequest, actor models.UserInfo) (*models.Invitation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid response payload")
	}

	invite, err := s.invites.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invitation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invitation")
	}

	profile, err := s.candidates.FindByUserID(ctx, actor.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate profile")
	}
	if invite.RecipientID != profile.ID {
		return nil, appErrors.Clone(appErrors.ErrOwnership, "invitation belongs to another candidate")
	}

	now := s.now()
	switch invite.EffectiveStatus(now) {
	case models.InvitationStatusPending:
	case models.InvitationStatusExpired:
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "invite expired")
	default:
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "invite already answered")
	}

	accepted := req.Action == "accept"
	if accepted {
		// Accepting opens a candidacy, so the one-application-per-pair
		// rule from direct applies holds here too.
		exists, err := s.applications.Exists(ctx, profile.ID, invite.JobPostingID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing application")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrBusinessRule, "candidate already applied to this posting")
		}
		application := &models.Application{
			CandidateID:  profile.ID,
			JobPostingID: invite.JobPostingID,
			Status:       models.ApplicationStatusInEvaluation,
			SubmittedAt:  now,
		}
		sequence, err := s.stages.ListByJobPosting(ctx, invite.JobPostingID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pipeline stages")
		}
		first := sequence.First()
		if first == nil {
			return nil, appErrors.Clone(appErrors.ErrBusinessRule, "job posting has no active stages")
		}
		process := &models.SelectionProcess{
			JobPostingID:   invite.JobPostingID,
			CurrentStageID: first.ID,
			StartedAt:      now,
		}
		err = s.invites.Accept(ctx, invite.ID, now, application, process, actor.ID)
		if err != nil {
			if errors.Is(err, repository.ErrInviteAlreadyAnswered) {
				return nil, appErrors.Clone(appErrors.ErrConcurrentModification, "invitation was answered concurrently")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept invitation")
		}
		invite.Status = models.InvitationStatusAccepted
	} else {
		if err := s.invites.Decline(ctx, invite.ID, now); err != nil {
			if errors.Is(err, repository.ErrInviteAlreadyAnswered) {
				return nil, appErrors.Clone(appErrors.ErrConcurrentModification, "invitation was answered concurrently")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decline invitation")
		}
		invite.Status = models.InvitationStatusDeclined
	}
	invite.RespondedAt = &now

	if s.metrics != nil {
		s.metrics.RecordInviteResponded(accepted)
	}
	s.emitAudit(ctx, actor.ID, models.AuditActionInviteRespond, invite.ID, map[string]interface{}{
		"action": req.Action,
	})
	return invite, nil
}

// ExpirePending rewrites overdue stored-PENDING rows. Listing correctness
// never depends on this; it just keeps stored statuses tidy.
func (s *InvitationService) ExpirePending(ctx context.Context) (int64, error) {
	expired, err := s.invites.ExpireOverdue(ctx, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire invitations")
	}
	if expired > 0 {
		s.logger.Info("expired overdue invitations", zap.Int64("count", expired))
	}
	return expired, nil
}

// StartSweeper runs ExpirePending on the configured interval until the
// context is cancelled.
func (s *InvitationService) StartSweeper(ctx context.Context) {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ExpirePending(ctx); err != nil {
					s.logger.Warn("invitation sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

func (s *InvitationService) loadGuarded(ctx context.Context, id string, actor models.UserInfo) (*models.Invitation, error) {
	invite, err := s.invites.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invitation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invitation")
	}

	switch actor.Role {
	case models.RoleAdmin:
		return invite, nil
	case models.RoleCandidate:
		profile, err := s.candidates.FindByUserID(ctx, actor.ID)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrOwnership, "invitation belongs to another candidate")
		}
		if invite.RecipientID != profile.ID {
			return nil, appErrors.Clone(appErrors.ErrOwnership, "invitation belongs to another candidate")
		}
		return invite, nil
	default:
		if invite.SenderID != actor.ID {
			posting, err := s.postings.FindByID(ctx, invite.JobPostingID)
			if err != nil || actor.OrganizationID == nil || *actor.OrganizationID != posting.OrganizationID {
				return nil, appErrors.Clone(appErrors.ErrOwnership, "invitation belongs to another organization")
			}
		}
		return invite, nil
	}
}

func (s *InvitationService) emitAudit(ctx context.Context, actorID, action, inviteID string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "invitation",
		ResourceID: &inviteID,
	}
	if values != nil {
		if raw, err := json.Marshal(values); err == nil {
			log.NewValues = raw
		}
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
