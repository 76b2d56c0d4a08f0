package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/talentboard/pipeline-api/internal/models"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
)

type jobPostingStore interface {
	FindByID(ctx context.Context, id string) (*models.JobPosting, error)
	List(ctx context.Context, filter models.JobPostingFilter) ([]models.JobPosting, int, error)
	Create(ctx context.Context, posting *models.JobPosting) error
	Update(ctx context.Context, posting *models.JobPosting) error
	Delete(ctx context.Context, id string) error
}

type postingScoreInvalidator interface {
	InvalidateForPosting(ctx context.Context, jobPostingID string)
}

// CreateJobPostingRequest opens a new vacancy.
type CreateJobPostingRequest struct {
	Title        string   `json:"title" validate:"required,max=200"`
	Description  string   `json:"description" validate:"max=10000"`
	Location     string   `json:"location" validate:"max=200"`
	Requirements []string `json:"requirements" validate:"max=50,dive,max=200"`
}

// UpdateJobPostingRequest mutates an existing vacancy.
type UpdateJobPostingRequest struct {
	Title        *string                  `json:"title,omitempty" validate:"omitempty,max=200"`
	Description  *string                  `json:"description,omitempty" validate:"omitempty,max=10000"`
	Location     *string                  `json:"location,omitempty" validate:"omitempty,max=200"`
	Requirements []string                 `json:"requirements,omitempty" validate:"omitempty,max=50,dive,max=200"`
	Status       *models.JobPostingStatus `json:"status,omitempty"`
}

// JobPostingService manages vacancies and their lifecycle.
type JobPostingService struct {
	postings  jobPostingStore
	scores    postingScoreInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewJobPostingService builds the service.
func NewJobPostingService(postings jobPostingStore, scores postingScoreInvalidator, validate *validator.Validate, logger *zap.Logger) *JobPostingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobPostingService{postings: postings, scores: scores, validator: validate, logger: logger}
}

// Get returns a posting by ID.
func (s *JobPostingService) Get(ctx context.Context, id string) (*models.JobPosting, error) {
	posting, err := s.postings.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job posting")
	}
	return posting, nil
}

// List returns postings matching the filter. Candidates only see published
// postings.
func (s *JobPostingService) List(ctx context.Context, filter models.JobPostingFilter, actor models.UserInfo) ([]models.JobPosting, *models.Pagination, error) {
	if actor.Role == models.RoleCandidate {
		filter.Status = models.JobPostingStatusPublished
	}
	postings, total, err := s.postings.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list job postings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return postings, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Create opens a draft posting owned by the recruiter's organization.
func (s *JobPostingService) Create(ctx context.Context, req CreateJobPostingRequest, actor models.UserInfo) (*models.JobPosting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid job posting payload")
	}
	if actor.OrganizationID == nil {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "actor has no organization")
	}

	posting := &models.JobPosting{
		OrganizationID: *actor.OrganizationID,
		Title:          req.Title,
		Description:    req.Description,
		Location:       req.Location,
		Requirements:   req.Requirements,
		Status:         models.JobPostingStatusDraft,
		CreatedBy:      actor.ID,
	}
	if err := s.postings.Create(ctx, posting); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create job posting")
	}
	return posting, nil
}

// Update mutates a posting; requirement changes invalidate cached scores.
func (s *JobPostingService) Update(ctx context.Context, id string, req UpdateJobPostingRequest, actor models.UserInfo) (*models.JobPosting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid job posting payload")
	}

	posting, err := s.guardOwnership(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	requirementsChanged := false
	if req.Title != nil {
		posting.Title = *req.Title
	}
	if req.Description != nil {
		posting.Description = *req.Description
	}
	if req.Location != nil {
		posting.Location = *req.Location
	}
	if req.Requirements != nil {
		posting.Requirements = req.Requirements
		requirementsChanged = true
	}
	if req.Status != nil {
		switch *req.Status {
		case models.JobPostingStatusDraft, models.JobPostingStatusPublished, models.JobPostingStatusClosed:
			posting.Status = *req.Status
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown job posting status")
		}
	}

	if err := s.postings.Update(ctx, posting); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update job posting")
	}
	if requirementsChanged && s.scores != nil {
		s.scores.InvalidateForPosting(ctx, posting.ID)
	}
	return posting, nil
}

// Delete removes a posting and its cached compatibility rows.
func (s *JobPostingService) Delete(ctx context.Context, id string, actor models.UserInfo) error {
	posting, err := s.guardOwnership(ctx, id, actor)
	if err != nil {
		return err
	}
	if err := s.postings.Delete(ctx, posting.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete job posting")
	}
	if s.scores != nil {
		s.scores.InvalidateForPosting(ctx, posting.ID)
	}
	return nil
}

func (s *JobPostingService) guardOwnership(ctx context.Context, id string, actor models.UserInfo) (*models.JobPosting, error) {
	posting, err := s.postings.FindByID(ctx, id)
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
