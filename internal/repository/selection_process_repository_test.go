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

func newProcessRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSelectionProcessRepositoryCreateWritesOpeningEntry(t *testing.T) {
	db, mock, cleanup := newProcessRepoMock(t)
	defer cleanup()

	repo := NewSelectionProcessRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO selection_processes")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stage_transitions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	process := &models.SelectionProcess{
		ApplicationID:  "app-1",
		JobPostingID:   "job-1",
		CurrentStageID: "stage-1",
	}
	require.NoError(t, repo.Create(context.Background(), process, "recruiter-1"))
	require.NotEmpty(t, process.ID)
	require.Equal(t, 1, process.Version)
	require.Equal(t, process.StartedAt, process.LastTransitionAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectionProcessRepositoryApplyTransition(t *testing.T) {
	db, mock, cleanup := newProcessRepoMock(t)
	defer cleanup()

	repo := NewSelectionProcessRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE selection_processes")).
		WithArgs("stage-2", now, nil, "proc-1", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stage_transitions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entry, err := repo.ApplyTransition(context.Background(), TransitionParams{
		ProcessID:       "proc-1",
		ExpectedVersion: 3,
		FromStageID:     "stage-1",
		ToStageID:       "stage-2",
		ActorID:         "recruiter-1",
		At:              now,
	})
	require.NoError(t, err)
	require.Equal(t, "proc-1", entry.ProcessID)
	require.Equal(t, "stage-2", entry.ToStageID)
	require.NotNil(t, entry.FromStageID)
	require.Equal(t, "stage-1", *entry.FromStageID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectionProcessRepositoryApplyTransitionStale(t *testing.T) {
	db, mock, cleanup := newProcessRepoMock(t)
	defer cleanup()

	repo := NewSelectionProcessRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE selection_processes")).
		WithArgs("stage-2", now, nil, "proc-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.ApplyTransition(context.Background(), TransitionParams{
		ProcessID:       "proc-1",
		ExpectedVersion: 2,
		FromStageID:     "stage-1",
		ToStageID:       "stage-2",
		ActorID:         "recruiter-1",
		At:              now,
	})
	require.ErrorIs(t, err, ErrStaleProcess)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectionProcessRepositoryApplyTransitionFinalSetsEndedAt(t *testing.T) {
	db, mock, cleanup := newProcessRepoMock(t)
	defer cleanup()

	repo := NewSelectionProcessRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE selection_processes")).
		WithArgs("stage-final", now, &now, "proc-1", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stage_transitions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := repo.ApplyTransition(context.Background(), TransitionParams{
		ProcessID:       "proc-1",
		ExpectedVersion: 5,
		FromStageID:     "stage-2",
		ToStageID:       "stage-final",
		ActorID:         "recruiter-1",
		At:              now,
		Final:           true,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectionProcessRepositoryListTransitionsDesc(t *testing.T) {
	db, mock, cleanup := newProcessRepoMock(t)
	defer cleanup()

	repo := NewSelectionProcessRepository(db)
	now := time.Now().UTC()
	from := "stage-1"
	rows := sqlmock.NewRows([]string{"id", "process_id", "from_stage_id", "to_stage_id", "actor_id", "feedback", "transitioned_at", "from_stage_name", "to_stage_name", "actor_name"}).
		AddRow("t-2", "proc-1", &from, "stage-2", "recruiter-1", nil, now, "Screening", "Interview", "Dana Reyes").
		AddRow("t-1", "proc-1", nil, "stage-1", "recruiter-1", nil, now.Add(-time.Hour), nil, "Screening", "Dana Reyes")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT t.id, t.process_id")).
		WithArgs("proc-1").
		WillReturnRows(rows)

	entries, err := repo.ListTransitionsDesc(context.Background(), "proc-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "t-2", entries[0].ID)
	require.Nil(t, entries[1].FromStageID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectionProcessRepositoryCountTransitions(t *testing.T) {
	db, mock, cleanup := newProcessRepoMock(t)
	defer cleanup()

	repo := NewSelectionProcessRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM stage_transitions")).
		WithArgs("proc-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountTransitions(context.Background(), "proc-1")
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
