package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/talentboard/pipeline-api/internal/models"
)

func newInvitationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestInvitationRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newInvitationRepoMock(t)
	defer cleanup()

	repo := NewInvitationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invitations")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	invite := &models.Invitation{
		JobPostingID: "job-1",
		SenderID:     "recruiter-1",
		RecipientID:  "cand-1",
		Message:      "We liked your profile",
		ExpiresAt:    time.Now().Add(7 * 24 * time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), invite))
	require.NotEmpty(t, invite.ID)
	require.Equal(t, models.InvitationStatusPending, invite.Status)
	require.False(t, invite.SentAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepositoryDecline(t *testing.T) {
	db, mock, cleanup := newInvitationRepoMock(t)
	defer cleanup()

	repo := NewInvitationRepository(db)
	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE invitations SET status")).
		WithArgs(models.InvitationStatusDeclined, now, "inv-1", models.InvitationStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Decline(context.Background(), "inv-1", now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepositoryDeclineAlreadyAnswered(t *testing.T) {
	db, mock, cleanup := newInvitationRepoMock(t)
	defer cleanup()

	repo := NewInvitationRepository(db)
	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE invitations SET status")).
		WithArgs(models.InvitationStatusDeclined, now, "inv-1", models.InvitationStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Decline(context.Background(), "inv-1", now)
	require.ErrorIs(t, err, ErrInviteAlreadyAnswered)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepositoryAcceptCreatesProcess(t *testing.T) {
	db, mock, cleanup := newInvitationRepoMock(t)
	defer cleanup()

	repo := NewInvitationRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE invitations SET status")).
		WithArgs(models.InvitationStatusAccepted, now, "inv-1", models.InvitationStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO applications")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO selection_processes")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stage_transitions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	application := &models.Application{
		CandidateID:  "cand-1",
		JobPostingID: "job-1",
		Status:       models.ApplicationStatusInEvaluation,
	}
	process := &models.SelectionProcess{
		JobPostingID:   "job-1",
		CurrentStageID: "stage-1",
	}
	require.NoError(t, repo.Accept(context.Background(), "inv-1", now, application, process, "cand-user-1"))
	require.NotEmpty(t, process.ID)
	require.Equal(t, application.ID, process.ApplicationID)
	require.Equal(t, 1, process.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepositoryAcceptAlreadyAnsweredRollsBack(t *testing.T) {
	db, mock, cleanup := newInvitationRepoMock(t)
	defer cleanup()

	repo := NewInvitationRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE invitations SET status")).
		WithArgs(models.InvitationStatusAccepted, now, "inv-1", models.InvitationStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	application := &models.Application{CandidateID: "cand-1", JobPostingID: "job-1"}
	process := &models.SelectionProcess{
		JobPostingID:   "job-1",
		CurrentStageID: "stage-1",
	}
	err := repo.Accept(context.Background(), "inv-1", now, application, process, "cand-user-1")
	require.ErrorIs(t, err, ErrInviteAlreadyAnswered)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepositoryExpireOverdue(t *testing.T) {
	db, mock, cleanup := newInvitationRepoMock(t)
	defer cleanup()

	repo := NewInvitationRepository(db)
	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE invitations SET status")).
		WithArgs(models.InvitationStatusExpired, models.InvitationStatusPending, now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	expired, err := repo.ExpireOverdue(context.Background(), now)
	require.NoError(t, err)
	require.EqualValues(t, 3, expired)
	require.NoError(t, mock.ExpectationsWereMet())
}
