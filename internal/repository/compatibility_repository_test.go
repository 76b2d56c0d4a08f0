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

func newCompatibilityRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCompatibilityRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newCompatibilityRepoMock(t)
	defer cleanup()

	repo := NewCompatibilityRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO compatibility_scores")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	score := &models.CompatibilityScore{
		CandidateID:   "cand-1",
		JobPostingID:  "job-1",
		Score:         82,
		Justification: "matched 4 of 5 required skills",
	}
	require.NoError(t, repo.Upsert(context.Background(), score))
	require.NotEmpty(t, score.ID)
	require.False(t, score.ComputedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompatibilityRepositoryFindByKey(t *testing.T) {
	db, mock, cleanup := newCompatibilityRepoMock(t)
	defer cleanup()

	repo := NewCompatibilityRepository(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "candidate_id", "job_posting_id", "score", "justification", "computed_at", "updated_at"}).
		AddRow("score-1", "cand-1", "job-1", 82, "matched 4 of 5 required skills", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, candidate_id, job_posting_id")).
		WithArgs("cand-1", "job-1").
		WillReturnRows(rows)

	score, err := repo.FindByKey(context.Background(), "cand-1", "job-1")
	require.NoError(t, err)
	require.Equal(t, "score-1", score.ID)
	require.InDelta(t, 82, score.Score, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompatibilityRepositoryListRelevantPostingIDs(t *testing.T) {
	db, mock, cleanup := newCompatibilityRepoMock(t)
	defer cleanup()

	repo := NewCompatibilityRepository(db)
	rows := sqlmock.NewRows([]string{"job_posting_id"}).
		AddRow("job-1").
		AddRow("job-2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT job_posting_id FROM applications")).
		WithArgs("cand-1").
		WillReturnRows(rows)

	ids, err := repo.ListRelevantPostingIDs(context.Background(), "cand-1")
	require.NoError(t, err)
	require.Equal(t, []string{"job-1", "job-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompatibilityRepositoryDeleteByJobPosting(t *testing.T) {
	db, mock, cleanup := newCompatibilityRepoMock(t)
	defer cleanup()

	repo := NewCompatibilityRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM compatibility_scores WHERE job_posting_id")).
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.DeleteByJobPosting(context.Background(), "job-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
