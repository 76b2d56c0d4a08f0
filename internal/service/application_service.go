package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/talentboard/pipeline-api/internal/models"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
)

type applicationListStore interface {
	applicationStore
	FindDetailByID(ctx context.Context, id string) (*models.ApplicationDetail, error)
	Exists(ctx context.Context, candidateID, jobPostingID string) (bool, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
	Create(ctx context.Context, application *models.Application) error
}

// ApplyRequest submits a candidacy against a posting.
type ApplyRequest struct {
	JobPostingID string `json:"job_posting_id" validate:"required"`
	CoverLetter  string `json:"cover_letter" validate:"max=10000"`
}

// ApplicationService manages candidacies.
type ApplicationService struct {
	applications applicationListStore
	postings     postingReader
	candidates   candidateReader
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewApplicationService builds the service.
func NewApplicationService(applications applicationListStore, postings postingReader, candidates candidateReader, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{
		applications: applications,
		postings:     postings,
		candidates:   candidates,
		validator:    validate,
		logger:       logger,
	}
}

// Apply submits one application per (candidate, posting) pair against a
// published posting.
func (s *ApplicationService) Apply(ctx context.Context, req ApplyRequest, actor models.UserInfo) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	profile, err := s.candidates.FindByUserID(ctx, actor.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate profile")
	}

	posting, err := s.postings.FindByID(ctx, req.JobPostingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job posting")
	}
	if posting.Status != models.JobPostingStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "job posting is not published")
	}

	exists, err := s.applications.Exists(ctx, profile.ID, posting.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing application")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already applied to this posting")
	}

	application := &models.Application{
		CandidateID:  profile.ID,
		JobPostingID: posting.ID,
		CoverLetter:  req.CoverLetter,
		Status:       models.ApplicationStatusSubmitted,
	}
	if err := s.applications.Create(ctx, application); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}
	return application, nil
}

// Get returns an application with posting and candidate context.
func (s *ApplicationService) Get(ctx context.Context, id string, actor models.UserInfo) (*models.ApplicationDetail, error) {
	detail, err := s.applications.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleCandidate:
		profile, err := s.candidates.FindByUserID(ctx, actor.ID)
		if err != nil || profile.ID != detail.CandidateID {
			return nil, appErrors.Clone(appErrors.ErrOwnership, "application belongs to another candidate")
		}
	default:
		posting, err := s.postings.FindByID(ctx, detail.JobPostingID)
		if err != nil || actor.OrganizationID == nil || *actor.OrganizationID != posting.OrganizationID {
			return nil, appErrors.Clone(appErrors.ErrOwnership, "application belongs to another organization")
		}
	}
	return detail, nil
}

// List returns applications visible to the actor.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter, actor models.UserInfo) ([]models.ApplicationDetail, *models.Pagination, error) {
	if actor.Role == models.RoleCandidate {
		profile, err := s.candidates.FindByUserID(ctx, actor.ID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "candidate profile not found")
			}
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate profile")
		}
		filter.CandidateID = profile.ID
	}

	applications, total, err := s.applications.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return applications, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Withdraw marks the candidate's own application as withdrawn.
func (s *ApplicationService) Withdraw(ctx context.Context, id string, actor models.UserInfo) error {
	application, err := s.applications.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	profile, err := s.candidates.FindByUserID(ctx, actor.ID)
	if err != nil || profile.ID != application.CandidateID {
		return appErrors.Clone(appErrors.ErrOwnership, "application belongs to another candidate")
	}
	if application.Status == models.ApplicationStatusWithdrawn {
		return appErrors.Clone(appErrors.ErrBusinessRule, "application already withdrawn")
	}

	if err := s.applications.UpdateStatus(ctx, id, models.ApplicationStatusWithdrawn); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw application")
	}
	return nil
}
