package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/talentboard/pipeline-api/internal/models"
	"github.com/talentboard/pipeline-api/internal/repository"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
)

type processStore interface {
	Create(ctx context.Context, process *models.SelectionProcess, actorID string) error
	FindByID(ctx context.Context, id string) (*models.SelectionProcess, error)
	FindByApplicationID(ctx context.Context, applicationID string) (*models.SelectionProcess, error)
	FindDetailByID(ctx context.Context, id string) (*models.SelectionProcessDetail, error)
	List(ctx context.Context, filter models.SelectionProcessFilter) ([]models.SelectionProcessDetail, int, error)
	ApplyTransition(ctx context.Context, params repository.TransitionParams) (*models.StageTransition, error)
	ListTransitionsDesc(ctx context.Context, processID string) ([]models.StageTransitionDetail, error)
	CountTransitions(ctx context.Context, processID string) (int, error)
}

type stageReader interface {
	ListByJobPosting(ctx context.Context, jobPostingID string) (models.StageSequence, error)
}

type postingReader interface {
	FindByID(ctx context.Context, id string) (*models.JobPosting, error)
}

type applicationStore interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type transitionRecorder interface {
	RecordTransition(final bool)
}

// StartProcessRequest opens a pipeline run for an application.
type StartProcessRequest struct {
	ApplicationID string `json:"application_id" validate:"required"`
}

// TransitionRequest moves a process to another stage of its pipeline.
type TransitionRequest struct {
	ToStageID string  `json:"to_stage_id" validate:"required"`
	Feedback  *string `json:"feedback,omitempty"`
}

// SelectionProcessService orchestrates pipeline runs and their ledger.
type SelectionProcessService struct {
	processes    processStore
	stages       stageReader
	postings     postingReader
	applications applicationStore
	audit        auditLogger
	metrics      transitionRecorder
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewSelectionProcessService builds the service.
func NewSelectionProcessService(processes processStore, stages stageReader, postings postingReader, applications applicationStore, audit auditLogger, metrics transitionRecorder, validate *validator.Validate, logger *zap.Logger) *SelectionProcessService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SelectionProcessService{
		processes:    processes,
		stages:       stages,
		postings:     postings,
		applications: applications,
		audit:        audit,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Start opens a process for an application at its posting's first active
// stage and moves the application into evaluation.
func (s *SelectionProcessService) Start(ctx context.Context, req StartProcessRequest, actor models.UserInfo) (*models.SelectionProcess, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start payload")
	}

	application, err := s.applications.FindByID(ctx, req.ApplicationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if application.Status == models.ApplicationStatusWithdrawn {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "application was withdrawn")
	}

	posting, err := s.guardPostingOwnership(ctx, application.JobPostingID, actor)
	if err != nil {
		return nil, err
	}

	if _, err := s.processes.FindByApplicationID(ctx, application.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "application already has a selection process")
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing process")
	}

	sequence, err := s.stages.ListByJobPosting(ctx, posting.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pipeline stages")
	}
	first := sequence.First()
	if first == nil {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "job posting has no active stages")
	}

	process := &models.SelectionProcess{
		ApplicationID:  application.ID,
		JobPostingID:   posting.ID,
		CurrentStageID: first.ID,
		StartedAt:      s.now(),
	}
	if err := s.processes.Create(ctx, process, actor.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create selection process")
	}

	if err := s.applications.UpdateStatus(ctx, application.ID, models.ApplicationStatusInEvaluation); err != nil {
		s.logger.Warn("failed to mark application in evaluation", zap.String("application_id", application.ID), zap.Error(err))
	}

	s.emitAudit(ctx, actor.ID, models.AuditActionStageTransition, "selection_process", process.ID, nil, map[string]interface{}{
		"to_stage_id": first.ID,
		"opening":     true,
	})
	return process, nil
}

// Get returns a process with stage and posting context.
func (s *SelectionProcessService) Get(ctx context.Context, id string, actor models.UserInfo) (*models.SelectionProcessDetail, error) {
	detail, err := s.processes.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "selection process not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load selection process")
	}
	if actor.Role == models.RoleRecruiter {
		if _, err := s.guardPostingOwnership(ctx, detail.JobPostingID, actor); err != nil {
			return nil, err
		}
	}
	count, err := s.processes.CountTransitions(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count transitions")
	}
	detail.TransitionCount = count
	return detail, nil
}

// List returns processes matching the filter.
func (s *SelectionProcessService) List(ctx context.Context, filter models.SelectionProcessFilter) ([]models.SelectionProcessDetail, *models.Pagination, error) {
	processes, total, err := s.processes.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list selection processes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return processes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Transition moves a process to the target stage, appending a ledger entry
// in the same database transaction. Entering a terminal-tagged stage
// finalizes the process.
func (s *SelectionProcessService) Transition(ctx context.Context, processID string, req TransitionRequest, actor models.UserInfo) (*models.StageTransition, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}

	process, err := s.processes.FindByID(ctx, processID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "selection process not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load selection process")
	}

	if _, err := s.guardPostingOwnership(ctx, process.JobPostingID, actor); err != nil {
		return nil, err
	}

	if process.Finalized() {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "process already finalized")
	}

	sequence, err := s.stages.ListByJobPosting(ctx, process.JobPostingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pipeline stages")
	}
	target := sequence.Find(req.ToStageID)
	if target == nil {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "target stage is not part of this pipeline")
	}
	if target.ID == process.CurrentStageID {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "no-op transition")
	}

	final := target.Kind.Terminal()
	entry, err := s.processes.ApplyTransition(ctx, repository.TransitionParams{
		ProcessID:       process.ID,
		ExpectedVersion: process.Version,
		FromStageID:     process.CurrentStageID,
		ToStageID:       target.ID,
		ActorID:         actor.ID,
		Feedback:        req.Feedback,
		At:              s.now(),
		Final:           final,
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleProcess) {
			return nil, appErrors.Clone(appErrors.ErrConcurrentModification, "process was modified concurrently, retry with fresh state")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply transition")
	}

	if s.metrics != nil {
		s.metrics.RecordTransition(final)
	}
	s.emitAudit(ctx, actor.ID, models.AuditActionStageTransition, "selection_process", process.ID, map[string]interface{}{
		"from_stage_id": process.CurrentStageID,
	}, map[string]interface{}{
		"to_stage_id": target.ID,
		"final":       final,
	})
	s.logger.Info("stage transition applied",
		zap.String("process_id", process.ID),
		zap.String("from_stage_id", process.CurrentStageID),
		zap.String("to_stage_id", target.ID),
		zap.Bool("final", final))
	return entry, nil
}

// History returns the process's full ledger, newest entry first.
func (s *SelectionProcessService) History(ctx context.Context, processID string, actor models.UserInfo) ([]models.StageTransitionDetail, error) {
	process, err := s.processes.FindByID(ctx, processID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "selection process not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load selection process")
	}
	if actor.Role == models.RoleRecruiter {
		if _, err := s.guardPostingOwnership(ctx, process.JobPostingID, actor); err != nil {
			return nil, err
		}
	}

	entries, err := s.processes.ListTransitionsDesc(ctx, processID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transition history")
	}
	return entries, nil
}

// guardPostingOwnership resolves the posting and rejects recruiters acting
// outside their own organization. Admins pass unconditionally.
func (s *SelectionProcessService) guardPostingOwnership(ctx context.Context, jobPostingID string, actor models.UserInfo) (*models.JobPosting, error) {
	posting, err := s.postings.FindByID(ctx, jobPostingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job posting")
	}
	if actor.Role == models.RoleAdmin {
		return posting, nil
	}
	if actor.Role != models.RoleRecruiter || actor.OrganizationID == nil || *actor.OrganizationID != posting.OrganizationID {
		return nil, appErrors.Clone(appErrors.ErrOwnership, "job posting belongs to another organization")
	}
	return posting, nil
}

func (s *SelectionProcessService) emitAudit(ctx context.Context, actorID, action, resource, resourceID string, oldValues, newValues map[string]interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
	}
	if oldValues != nil {
		if raw, err := json.Marshal(oldValues); err == nil {
			log.OldValues = raw
		}
	}
	if newValues != nil {
		if raw, err := json.Marshal(newValues); err == nil {
			log.NewValues = raw
		}
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
