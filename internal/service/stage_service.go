package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/talentboard/pipeline-api/internal/models"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
)

type stageStore interface {
	ListByJobPosting(ctx context.Context, jobPostingID string) (models.StageSequence, error)
	FindByID(ctx context.Context, id string) (*models.Stage, error)
	ExistsOrdinal(ctx context.Context, jobPostingID string, ordinal int, excludeID string) (bool, error)
	Create(ctx context.Context, stage *models.Stage) error
	Update(ctx context.Context, stage *models.Stage) error
	Reorder(ctx context.Context, jobPostingID string, ordinals map[string]int) error
	InUse(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// CreateStageRequest adds a stage to a posting's pipeline.
type CreateStageRequest struct {
	Name        string           `json:"name" validate:"required,max=120"`
	Description string           `json:"description" validate:"max=2000"`
	Kind        models.StageKind `json:"kind" validate:"required"`
	Ordinal     int              `json:"ordinal" validate:"min=1"`
}

// UpdateStageRequest mutates an existing stage.
type UpdateStageRequest struct {
	Name        *string           `json:"name,omitempty" validate:"omitempty,max=120"`
	Description *string           `json:"description,omitempty" validate:"omitempty,max=2000"`
	Kind        *models.StageKind `json:"kind,omitempty"`
	Ordinal     *int              `json:"ordinal,omitempty" validate:"omitempty,min=1"`
	Active      *bool             `json:"active,omitempty"`
}

// ReorderStagesRequest maps stage IDs to their new ordinals.
type ReorderStagesRequest struct {
	Ordinals map[string]int `json:"ordinals" validate:"required,min=1"`
}

// StageService administers posting pipelines.
type StageService struct {
	stages    stageStore
	postings  postingReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStageService builds the service.
func NewStageService(stages stageStore, postings postingReader, validate *validator.Validate, logger *zap.Logger) *StageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StageService{stages: stages, postings: postings, validator: validate, logger: logger}
}

// List returns the posting's pipeline ordered by ordinal.
func (s *StageService) List(ctx context.Context, jobPostingID string) (models.StageSequence, error) {
	if _, err := s.postings.FindByID(ctx, jobPostingID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job posting")
	}
	sequence, err := s.stages.ListByJobPosting(ctx, jobPostingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stages")
	}
	return sequence, nil
}

// Create adds a stage to the posting's pipeline. Ordinals are unique per
// posting.
func (s *StageService) Create(ctx context.Context, jobPostingID string, req CreateStageRequest, actor models.UserInfo) (*models.Stage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid stage payload")
	}
	if !req.Kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown stage kind")
	}
	posting, err := s.guardPosting(ctx, jobPostingID, actor)
	if err != nil {
		return nil, err
	}

	taken, err := s.stages.ExistsOrdinal(ctx, posting.ID, req.Ordinal, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check stage ordinal")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "stage ordinal already in use")
	}

	stage := &models.Stage{
		JobPostingID: posting.ID,
		Name:         req.Name,
		Description:  req.Description,
		Kind:         req.Kind,
		Ordinal:      req.Ordinal,
		Active:       true,
	}
	if err := s.stages.Create(ctx, stage); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create stage")
	}
	return stage, nil
}

// Update mutates a stage.
func (s *StageService) Update(ctx context.Context, stageID string, req UpdateStageRequest, actor models.UserInfo) (*models.Stage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid stage payload")
	}

	stage, err := s.stages.FindByID(ctx, stageID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "stage not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stage")
	}
	if _, err := s.guardPosting(ctx, stage.JobPostingID, actor); err != nil {
		return nil, err
	}

	if req.Name != nil {
		stage.Name = *req.Name
	}
	if req.Description != nil {
		stage.Description = *req.Description
	}
	if req.Kind != nil {
		if !req.Kind.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown stage kind")
		}
		stage.Kind = *req.Kind
	}
	if req.Ordinal != nil && *req.Ordinal != stage.Ordinal {
		taken, err := s.stages.ExistsOrdinal(ctx, stage.JobPostingID, *req.Ordinal, stage.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check stage ordinal")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "stage ordinal already in use")
		}
		stage.Ordinal = *req.Ordinal
	}
	if req.Active != nil {
		stage.Active = *req.Active
	}

	if err := s.stages.Update(ctx, stage); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update stage")
	}
	return stage, nil
}

// Reorder rewrites the posting's ordinals in one transaction. The new
// ordinals must be unique and cover only this posting's stages.
func (s *StageService) Reorder(ctx context.Context, jobPostingID string, req ReorderStagesRequest, actor models.UserInfo) (models.StageSequence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reorder payload")
	}
	if _, err := s.guardPosting(ctx, jobPostingID, actor); err != nil {
		return nil, err
	}

	seen := make(map[int]struct{}, len(req.Ordinals))
	for _, ordinal := range req.Ordinals {
		if ordinal < 1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "ordinals must be positive")
		}
		if _, dup := seen[ordinal]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate ordinal in reorder payload")
		}
		seen[ordinal] = struct{}{}
	}

	if err := s.stages.Reorder(ctx, jobPostingID, req.Ordinals); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "stage not found in this posting")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reorder stages")
	}
	sequence, err := s.stages.ListByJobPosting(ctx, jobPostingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stages")
	}
	return sequence, nil
}

// Delete removes a stage that no process or ledger row references.
// Referenced stages can only be deactivated.
func (s *StageService) Delete(ctx context.Context, stageID string, actor models.UserInfo) error {
	stage, err := s.stages.FindByID(ctx, stageID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "stage not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stage")
	}
	if _, err := s.guardPosting(ctx, stage.JobPostingID, actor); err != nil {
		return err
	}

	inUse, err := s.stages.InUse(ctx, stageID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check stage usage")
	}
	if inUse {
		return appErrors.Clone(appErrors.ErrConflict, "stage in use, deactivate it instead")
	}

	if err := s.stages.Delete(ctx, stageID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete stage")
	}
	return nil
}

func (s *StageService) guardPosting(ctx context.Context, jobPostingID string, actor models.UserInfo) (*models.JobPosting, error) {
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
	if actor.OrganizationID == nil || *actor.OrganizationID != posting.OrganizationID {
		return nil, appErrors.Clone(appErrors.ErrOwnership, "job posting belongs to another organization")
	}
	return posting, nil
}
