package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/talentboard/pipeline-api/internal/models"
	"github.com/talentboard/pipeline-api/internal/repository"
	"github.com/talentboard/pipeline-api/pkg/config"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
)

type invitationRepoStub struct {
	invites          map[string]*models.Invitation
	acceptErr        error
	acceptedApps     []*models.Application
	acceptedProcs    []*models.SelectionProcess
	expiredRewritten int64
}

func newInvitationRepoStub() *invitationRepoStub {
	return &invitationRepoStub{invites: make(map[string]*models.Invitation)}
}

func (r *invitationRepoStub) Create(ctx context.Context, invite *models.Invitation) error {
	if invite.ID == "" {
		invite.ID = "inv-1"
	}
	if invite.Status == "" {
		invite.Status = models.InvitationStatusPending
	}
	r.invites[invite.ID] = invite
	return nil
}

func (r *invitationRepoStub) FindByID(ctx context.Context, id string) (*models.Invitation, error) {
	if invite, ok := r.invites[id]; ok {
		copy := *invite
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *invitationRepoStub) FindPendingByJobPostingAndRecipient(ctx context.Context, jobPostingID, recipientID string) (*models.Invitation, error) {
	for _, invite := range r.invites {
		if invite.JobPostingID == jobPostingID && invite.RecipientID == recipientID && invite.Status == models.InvitationStatusPending {
			copy := *invite
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *invitationRepoStub) List(ctx context.Context, filter models.InvitationFilter) ([]models.InvitationDetail, int, error) {
	result := make([]models.InvitationDetail, 0, len(r.invites))
	for _, invite := range r.invites {
		if filter.RecipientID != "" && invite.RecipientID != filter.RecipientID {
			continue
		}
		result = append(result, models.InvitationDetail{Invitation: *invite})
	}
	return result, len(result), nil
}

func (r *invitationRepoStub) Decline(ctx context.Context, id string, respondedAt time.Time) error {
	invite, ok := r.invites[id]
	if !ok || invite.Status != models.InvitationStatusPending {
		return repository.ErrInviteAlreadyAnswered
	}
	invite.Status = models.InvitationStatusDeclined
	invite.RespondedAt = &respondedAt
	return nil
}

func (r *invitationRepoStub) Accept(ctx context.Context, id string, respondedAt time.Time, application *models.Application, process *models.SelectionProcess, actorID string) error {
	if r.acceptErr != nil {
		return r.acceptErr
	}
	invite, ok := r.invites[id]
	if !ok || invite.Status != models.InvitationStatusPending {
		return repository.ErrInviteAlreadyAnswered
	}
	invite.Status = models.InvitationStatusAccepted
	invite.RespondedAt = &respondedAt
	application.ID = "app-inv-1"
	process.ApplicationID = application.ID
	process.ID = "proc-inv-1"
	r.acceptedApps = append(r.acceptedApps, application)
	r.acceptedProcs = append(r.acceptedProcs, process)
	return nil
}

func (r *invitationRepoStub) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for _, invite := range r.invites {
		if invite.Status == models.InvitationStatusPending && now.After(invite.ExpiresAt) {
			invite.Status = models.InvitationStatusExpired
			n++
		}
	}
	r.expiredRewritten = n
	return n, nil
}

type candidateReaderStub struct {
	profiles map[string]*models.CandidateProfile
}

func (s *candidateReaderStub) FindByID(ctx context.Context, id string) (*models.CandidateProfile, error) {
	if profile, ok := s.profiles[id]; ok {
		copy := *profile
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *candidateReaderStub) FindByUserID(ctx context.Context, userID string) (*models.CandidateProfile, error) {
	for _, profile := range s.profiles {
		if profile.UserID == userID {
			copy := *profile
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

type applicationCheckerStub struct {
	existing map[string]bool
}

func newApplicationCheckerStub() *applicationCheckerStub {
	return &applicationCheckerStub{existing: make(map[string]bool)}
}

func (s *applicationCheckerStub) Exists(ctx context.Context, candidateID, jobPostingID string) (bool, error) {
	return s.existing[candidateID+"|"+jobPostingID], nil
}

func invitationFixture() (*invitationRepoStub, *postingReaderStub, *candidateReaderStub, *stageReaderStub, *applicationCheckerStub) {
	invites := newInvitationRepoStub()
	postings := &postingReaderStub{postings: map[string]*models.JobPosting{
		"post-1": {ID: "post-1", OrganizationID: "org-1", Title: "Backend Engineer", Status: models.JobPostingStatusPublished},
	}}
	candidates := &candidateReaderStub{profiles: map[string]*models.CandidateProfile{
		"cand-1": {ID: "cand-1", UserID: "user-1"},
	}}
	stages := &stageReaderStub{sequences: map[string]models.StageSequence{
		"post-1": {
			{ID: "stage-1", JobPostingID: "post-1", Name: "Screening", Kind: models.StageKindScreening, Ordinal: 1, Active: true},
		},
	}}
	return invites, postings, candidates, stages, newApplicationCheckerStub()
}

func newInvitationTestService(invites *invitationRepoStub, postings *postingReaderStub, candidates *candidateReaderStub, stages *stageReaderStub, applications *applicationCheckerStub, metrics *metricsStub) *InvitationService {
	// A nil *metricsStub would still satisfy the metrics interface as a
	// non-nil value, so substitute a fresh stub instead.
	if metrics == nil {
		metrics = &metricsStub{}
	}
	cfg := config.InvitationsConfig{DefaultTTL: 7 * 24 * time.Hour, MaxTTL: 30 * 24 * time.Hour}
	return NewInvitationService(invites, postings, candidates, stages, &auditStub{}, applications, metrics, cfg, nil, nil)
}

func TestInvitationServiceSend(t *testing.T) {
	invites, postings, candidates, stages, apps := invitationFixture()
	metrics := &metricsStub{}
	svc := newInvitationTestService(invites, postings, candidates, stages, apps, metrics)

	invite, err := svc.Send(context.Background(), SendInvitationRequest{
		JobPostingID: "post-1",
		RecipientID:  "cand-1",
		Message:      "come talk to us",
	}, recruiterActor("org-1"))
	require.NoError(t, err)
	require.Equal(t, models.InvitationStatusPending, invite.Status)
	require.True(t, invite.ExpiresAt.After(invite.SentAt))
	require.Equal(t, 1, metrics.invitesSent)
}

func TestInvitationServiceSendRejectsDuplicatePending(t *testing.T) {
	invites, postings, candidates, stages, apps := invitationFixture()
	svc := newInvitationTestService(invites, postings, candidates, stages, apps, nil)
	actor := recruiterActor("org-1")
	req := SendInvitationRequest{JobPostingID: "post-1", RecipientID: "cand-1"}

	_, err := svc.Send(context.Background(), req, actor)
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), req, actor)
	require.True(t, appErrors.HasCode(err, appErrors.ErrBusinessRule))
}

func TestInvitationServiceSendAllowsReinviteAfterExpiry(t *testing.T) {
	invites, postings, candidates, stages, apps := invitationFixture()
	svc := newInvitationTestService(invites, postings, candidates, stages, apps, nil)
	invites.invites["inv-old"] = &models.Invitation{
		ID:           "inv-old",
		JobPostingID: "post-1",
		RecipientID:  "cand-1",
		Status:       models.InvitationStatusPending,
		ExpiresAt:    time.Now().UTC().Add(-time.Hour),
	}

	_, err := svc.Send(context.Background(), SendInvitationRequest{JobPostingID: "post-1", RecipientID: "cand-1"}, recruiterActor("org-1"))
	require.NoError(t, err)
}

func TestInvitationServiceSendTTLClamp(t *testing.T) {
	invites, postings, candidates, stages, apps := invitationFixture()
	svc := newInvitationTestService(invites, postings, candidates, stages, apps, nil)

	invite, err := svc.Send(context.Background(), SendInvitationRequest{
		JobPostingID: "post-1",
		RecipientID:  "cand-1",
		TTL:          "2160h", // 90 days, above the 30 day cap
	}, recruiterActor("org-1"))
	require.NoError(t, err)
	require.WithinDuration(t, invite.SentAt.Add(30*24*time.Hour), invite.ExpiresAt, time.Second)
}

func TestInvitationServiceSendRejectsUnpublishedPosting(t *testing.T) {
	invites, postings, candidates, stages, apps := invitationFixture()
	postings.postings["post-1"].Status = models.JobPostingStatusDraft
	svc := newInvitationTestService(invites, postings, candidates, stages, apps, nil)

	_, err := svc.Send(context.Background(), SendInvitationRequest{JobPostingID: "post-1", RecipientID: "cand-1"}, recruiterActor("org-1"))
	require.True(t, appErrors.HasCode(err, appErrors.ErrBusinessRule))
}

func TestInvitationServiceRespondAccept(t *testing.T) {
	invites, postings, candidates, stages, apps := invitationFixture()
	metrics := &metricsStub{}
	svc := newInvitationTestService(invites, postings, candidates, stages, apps, metrics)
	invites.invites["inv-1"] = &models.Invitation{
		ID:           "inv-1",
		JobPostingID: "post-1",
		RecipientID:  "cand-1",
		Status:       models.InvitationStatusPending,
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}
	actor := models.UserInfo{ID: "user-1", Role: models.RoleCandidate}

	invite, err := svc.Respond(context.Background(), "inv-1", RespondInvitationRequest{Action: "accept"}, actor)
	require.NoError(t, err)
	require.Equal(t, models.InvitationStatusAccepted, invite.Status)
	require.NotNil(t, invite.RespondedAt)
	require.Equal(t, 1, metrics.invitesAccepted)

	require.Len(t, invites.acceptedApps, 1)
	require.Equal(t, "cand-1", invites.acceptedApps[0].CandidateID)
	require.Equal(t, models.ApplicationStatusInEvaluation, invites.acceptedApps[0].Status)
	require.Len(t, invites.acceptedProcs, 1)
	require.Equal(t, "stage-1", invites.acceptedProcs[0].CurrentStageID)
	require.Equal(t, "app-inv-1", invites.acceptedProcs[0].ApplicationID)
}

func TestInvitationServiceRespondAcceptRejectsExistingApplication(t *testing.T) {
	invites, postings, candidates, stages, apps := invitationFixture()
	apps.existing["cand-1|post-1"] = true
	svc := newInvitationTestService(invites, postings, candidates, stages, apps, nil)
	invites.invites["inv-1"] = &models.Invitation{
		ID:           "inv-1",
		JobPostingID: "post-1",
		RecipientID:  "cand-1",
		Status:       models.InvitationStatusPending,
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}
	actor := models.UserInfo{ID: "user-1", Role: models.RoleCandidate}

	_, err := svc.Respond(context.Background(), "inv-1", RespondInvitationRequest{Action: "accept"}, actor)
	require.True(t, appErrors.HasCode(err, appErrors.ErrBusinessRule))
	require.Empty(t, invites.acceptedApps)
	// the invite stays pending so the candidate can still decline
	require.Equal(t, models.InvitationStatusPending, invites.invites["inv-1"].Status)

	invite, err := svc.Respond(context.Background(), "inv-1", RespondInvitationRequest{Action: "decline"}, actor)
	require.NoError(t, err)
	require.Equal(t, models.InvitationStatusDeclined, invite.Status)
}

func TestInvitationServiceRespondDecline(t *testing.T) {
	invites, postings, candidates, stages, apps := invitationFixture()
	metrics := &metricsStub{}
	svc := newInvitationTestService(invites, postings, candidates, stages, apps, metrics)
	invites.invites["inv-1"] = &models.Invitation{
		ID:          "inv-1",
		RecipientID: "cand-1",
		Status:      models.InvitationStatusPending,
		ExpiresAt:   time.Now().UTC().Add(time.Hour),
	}

	invite, err := svc.Respond(context.Background(), "inv-1", RespondInvitationRequest{Action: "decline"}, models.UserInfo{ID: "user-1", Role: models.RoleCandidate})
	require.NoError(t, err)
	require.Equal(t, models.InvitationStatusDeclined, invite.Status)
	require.Equal(t, 1, metrics.invitesDeclined)
	require.Empty(t, invites.acceptedApps)
}

func TestInvitationServiceRespondExpired(t *testing.T) {
	invites, postings, candidates, stages, apps := invitationFixture()
	svc := newInvitationTestService(invites, postings, candidates, stages, apps, nil)
	// stored status is still PENDING; only the deadline has passed
	invites.invites["inv-1"] = &models.Invitation{
		ID:          "inv-1",
		RecipientID: "cand-1",
		Status:      models.InvitationStatusPending,
		ExpiresAt:   time.Now().UTC().Add(-time.Minute),
	}

	_, err := svc.Respond(context.Background(), "inv-1", RespondInvitationRequest{Action: "accept"}, models.UserInfo{ID: "user-1", Role: models.RoleCandidate})
	require.True(t, appErrors.HasCode(err, appErrors.ErrBusinessRule))
}

func TestInvitationServiceRespondAlreadyAnswered(t *testing.T) {
	invites, postings, candidates, stages, apps := invitationFixture()
	svc := newInvitationTestService(invites, postings, candidates, stages, apps, nil)
	invites.invites["inv-1"] = &models.Invitation{
		ID:          "inv-1",
		RecipientID: "cand-1",
		Status:      models.InvitationStatusDeclined,
		ExpiresAt:   time.Now().UTC().Add(time.Hour),
	}

	_, err := svc.Respond(context.Background(), "inv-1", RespondInvitationRequest{Action: "accept"}, models.UserInfo{ID: "user-1", Role: models.RoleCandidate})
	require.True(t, appErrors.HasCode(err, appErrors.ErrBusinessRule))
}

func TestInvitationServiceRespondLostRace(t *testing.T) {
	invites, postings, candidates, stages, apps := invitationFixture()
	svc := newInvitationTestService(invites, postings, candidates, stages, apps, nil)
	invites.invites["inv-1"] = &models.Invitation{
		ID:           "inv-1",
		JobPostingID: "post-1",
		RecipientID:  "cand-1",
		Status:       models.InvitationStatusPending,
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}
	invites.acceptErr = repository.ErrInviteAlreadyAnswered

	_, err := svc.Respond(context.Background(), "inv-1", RespondInvitationRequest{Action: "accept"}, models.UserInfo{ID: "user-1", Role: models.RoleCandidate})
	require.True(t, appErrors.HasCode(err, appErrors.ErrConcurrentModification))
}

func TestInvitationServiceRespondForeignInvite(t *testing.T) {
	invites, postings, candidates, stages, apps := invitationFixture()
	svc := newInvitationTestService(invites, postings, candidates, stages, apps, nil)
	invites.invites["inv-1"] = &models.Invitation{
		ID:          "inv-1",
		RecipientID: "cand-other",
		Status:      models.InvitationStatusPending,
		ExpiresAt:   time.Now().UTC().Add(time.Hour),
	}

	_, err := svc.Respond(context.Background(), "inv-1", RespondInvitationRequest{Action: "accept"}, models.UserInfo{ID: "user-1", Role: models.RoleCandidate})
	require.True(t, appErrors.HasCode(err, appErrors.ErrOwnership))
}

func TestInvitationServiceExpirePending(t *testing.T) {
	invites, postings, candidates, stages, apps := invitationFixture()
	svc := newInvitationTestService(invites, postings, candidates, stages, apps, nil)
	invites.invites["inv-1"] = &models.Invitation{ID: "inv-1", Status: models.InvitationStatusPending, ExpiresAt: time.Now().UTC().Add(-time.Hour)}
	invites.invites["inv-2"] = &models.Invitation{ID: "inv-2", Status: models.InvitationStatusPending, ExpiresAt: time.Now().UTC().Add(time.Hour)}

	expired, err := svc.ExpirePending(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), expired)
	require.Equal(t, models.InvitationStatusExpired, invites.invites["inv-1"].Status)
	require.Equal(t, models.InvitationStatusPending, invites.invites["inv-2"].Status)
}

func TestInvitationServiceGetDerivesExpiry(t *testing.T) {
	invites, postings, candidates, stages, apps := invitationFixture()
	svc := newInvitationTestService(invites, postings, candidates, stages, apps, nil)
	invites.invites["inv-1"] = &models.Invitation{
		ID:          "inv-1",
		RecipientID: "cand-1",
		Status:      models.InvitationStatusPending,
		ExpiresAt:   time.Now().UTC().Add(-time.Minute),
	}

	invite, err := svc.Get(context.Background(), "inv-1", models.UserInfo{ID: "user-1", Role: models.RoleCandidate})
	require.NoError(t, err)
	require.Equal(t, models.InvitationStatusExpired, invite.Status)
}
