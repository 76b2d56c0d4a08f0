package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/talentboard/pipeline-api/internal/models"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
)

type candidateStore interface {
	FindByID(ctx context.Context, id string) (*models.CandidateProfile, error)
	FindByUserID(ctx context.Context, userID string) (*models.CandidateProfile, error)
	Create(ctx context.Context, profile *models.CandidateProfile) error
	UpdateProfile(ctx context.Context, profile *models.CandidateProfile) error
	SavePosting(ctx context.Context, candidateID, jobPostingID string) error
	UnsavePosting(ctx context.Context, candidateID, jobPostingID string) error
	Delete(ctx context.Context, id string) error
}

type candidateScoreInvalidator interface {
	InvalidateForCandidate(ctx context.Context, candidateID string)
}

// UpsertCandidateProfileRequest carries the scorable profile fields.
type UpsertCandidateProfileRequest struct {
	Headline string   `json:"headline" validate:"max=200"`
	Summary  string   `json:"summary" validate:"max=5000"`
	Location string   `json:"location" validate:"max=200"`
	Skills   []string `json:"skills" validate:"max=100,dive,max=100"`
}

// CandidateService manages candidate profiles and saved postings.
type CandidateService struct {
	candidates candidateStore
	postings   postingReader
	scores     candidateScoreInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewCandidateService builds the service.
func NewCandidateService(candidates candidateStore, postings postingReader, scores candidateScoreInvalidator, validate *validator.Validate, logger *zap.Logger) *CandidateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CandidateService{candidates: candidates, postings: postings, scores: scores, validator: validate, logger: logger}
}

// Get returns a candidate profile by ID.
func (s *CandidateService) Get(ctx context.Context, id string) (*models.CandidateProfile, error) {
	profile, err := s.candidates.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}
	return profile, nil
}

// GetOwn returns the actor's own profile.
func (s *CandidateService) GetOwn(ctx context.Context, actor models.UserInfo) (*models.CandidateProfile, error) {
	profile, err := s.candidates.FindByUserID(ctx, actor.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate profile")
	}
	return profile, nil
}

// UpsertOwn creates or updates the actor's profile. An update commits the
// candidate_profile_updated outbox event in the same transaction as the
// profile row, which is what eventually refreshes compatibility scores.
func (s *CandidateService) UpsertOwn(ctx context.Context, req UpsertCandidateProfileRequest, actor models.UserInfo) (*models.CandidateProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	profile, err := s.candidates.FindByUserID(ctx, actor.ID)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate profile")
	}

	if profile == nil {
		profile = &models.CandidateProfile{
			UserID:   actor.ID,
			Headline: req.Headline,
			Summary:  req.Summary,
			Location: req.Location,
			Skills:   req.Skills,
		}
		if err := s.candidates.Create(ctx, profile); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create candidate profile")
		}
		return profile, nil
	}

	profile.Headline = req.Headline
	profile.Summary = req.Summary
	profile.Location = req.Location
	profile.Skills = req.Skills
	if err := s.candidates.UpdateProfile(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update candidate profile")
	}

	if s.scores != nil {
		s.scores.InvalidateForCandidate(ctx, profile.ID)
	}
	return profile, nil
}

// SavePosting bookmarks a published posting for the actor. Saved postings
// count as relevant for score recalculation.
func (s *CandidateService) SavePosting(ctx context.Context, jobPostingID string, actor models.UserInfo) error {
	profile, err := s.GetOwn(ctx, actor)
	if err != nil {
		return err
	}
	posting, err := s.postings.FindByID(ctx, jobPostingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job posting")
	}
	if posting.Status != models.JobPostingStatusPublished {
		return appErrors.Clone(appErrors.ErrBusinessRule, "job posting is not published")
	}
	if err := s.candidates.SavePosting(ctx, profile.ID, posting.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save posting")
	}
	return nil
}

// UnsavePosting drops the bookmark.
func (s *CandidateService) UnsavePosting(ctx context.Context, jobPostingID string, actor models.UserInfo) error {
	profile, err := s.GetOwn(ctx, actor)
	if err != nil {
		return err
	}
	if err := s.candidates.UnsavePosting(ctx, profile.ID, jobPostingID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unsave posting")
	}
	return nil
}

// Delete removes a candidate profile along with its cached compatibility
// rows. Admin only; the handler enforces the role.
func (s *CandidateService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.candidates.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete candidate")
	}
	if s.scores != nil {
		s.scores.InvalidateForCandidate(ctx, id)
	}
	return nil
}
