package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/talentboard/pipeline-api/internal/models"
	"github.com/talentboard/pipeline-api/internal/repository"
	"github.com/talentboard/pipeline-api/pkg/config"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
	"github.com/talentboard/pipeline-api/pkg/jobs"
	"github.com/talentboard/pipeline-api/pkg/storage"
)

type exportJobRepoStub struct {
	jobs       map[string]*models.ExportJob
	enqueueErr error
	queued     []jobs.Job
}

func newExportJobRepoStub() *exportJobRepoStub {
	return &exportJobRepoStub{jobs: make(map[string]*models.ExportJob)}
}

func (r *exportJobRepoStub) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%d", len(r.jobs)+1)
	}
	if job.Status == "" {
		job.Status = models.ExportStatusQueued
	}
	job.CreatedAt = time.Now().UTC()
	r.jobs[job.ID] = job
	return nil
}

func (r *exportJobRepoStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	if job, ok := r.jobs[id]; ok {
		copy := *job
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *exportJobRepoStub) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *exportJobRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	result := make([]models.ExportJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusQueued {
			result = append(result, *job)
		}
	}
	return result, nil
}

func (r *exportJobRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	result := make([]models.ExportJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			result = append(result, *job)
		}
	}
	return result, nil
}

func (r *exportJobRepoStub) Enqueue(job jobs.Job) error {
	if r.enqueueErr != nil {
		return r.enqueueErr
	}
	r.queued = append(r.queued, job)
	return nil
}

func exportFixture(t *testing.T) (*ExportService, *exportJobRepoStub, *processRepoStub) {
	t.Helper()
	repo := newExportJobRepoStub()
	processes := newProcessRepoStub()
	processes.processes["proc-1"] = &models.SelectionProcess{
		ID:           "proc-1",
		JobPostingID: "post-1",
	}
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	from := "Screening"
	processes.transitions = []models.StageTransitionDetail{
		{
			StageTransition: models.StageTransition{ID: "tr-2", ProcessID: "proc-1", ToStageID: "stage-2", ActorID: "rec-1", TransitionedAt: at},
			FromStageName:   &from,
			ToStageName:     "Interview",
			ActorName:       "Dana Reyes",
		},
		{
			StageTransition: models.StageTransition{ID: "tr-1", ProcessID: "proc-1", ToStageID: "stage-1", ActorID: "rec-1", TransitionedAt: at.Add(-24 * time.Hour)},
			ToStageName:     "Screening",
			ActorName:       "Dana Reyes",
		},
	}
	postings := &postingReaderStub{postings: map[string]*models.JobPosting{
		"post-1": {ID: "post-1", OrganizationID: "org-1", Title: "Backend Engineer"},
	}}

	fileStore, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	cfg := config.AuditExportsConfig{SignedURLTTL: time.Hour}
	svc := NewExportService(repo, processes, postings, repo, fileStore, signer, nil, nil, "/api/v1", cfg)
	return svc, repo, processes
}

func validUUID(n byte) string {
	return fmt.Sprintf("00000000-0000-4000-8000-0000000000%02x", n)
}

func TestExportServiceCreateJob(t *testing.T) {
	svc, repo, processes := exportFixture(t)
	id := validUUID(1)
	processes.processes[id] = &models.SelectionProcess{ID: id, JobPostingID: "post-1"}

	resp, err := svc.CreateJob(context.Background(), CreateExportRequest{ProcessID: id, Format: "csv"}, recruiterActor("org-1"))
	require.NoError(t, err)
	require.Equal(t, models.ExportStatusQueued, resp.Status)
	require.Len(t, repo.queued, 1)
	require.Equal(t, JobTypeAuditExport, repo.queued[0].Type)
}

func TestExportServiceCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	svc, repo, processes := exportFixture(t)
	id := validUUID(2)
	processes.processes[id] = &models.SelectionProcess{ID: id, JobPostingID: "post-1"}
	repo.enqueueErr = fmt.Errorf("queue stopped")

	_, err := svc.CreateJob(context.Background(), CreateExportRequest{ProcessID: id, Format: "csv"}, recruiterActor("org-1"))
	require.Error(t, err)
	for _, job := range repo.jobs {
		require.Equal(t, models.ExportStatusFailed, job.Status)
	}
}

func TestExportServiceCreateJobOwnership(t *testing.T) {
	svc, _, processes := exportFixture(t)
	id := validUUID(3)
	processes.processes[id] = &models.SelectionProcess{ID: id, JobPostingID: "post-1"}

	_, err := svc.CreateJob(context.Background(), CreateExportRequest{ProcessID: id, Format: "pdf"}, recruiterActor("org-2"))
	require.True(t, appErrors.HasCode(err, appErrors.ErrOwnership))
}

func TestExportWorkerRendersAndResolvesDownload(t *testing.T) {
	svc, repo, _ := exportFixture(t)
	job := &models.ExportJob{
		Params:    models.ExportJobParams{ProcessID: "proc-1", Format: models.ExportFormatCSV},
		CreatedBy: "rec-1",
	}
	require.NoError(t, repo.Create(context.Background(), job))

	worker := NewExportWorker(repo, svc, 3, nil)
	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID, Type: JobTypeAuditExport}))

	stored := repo.jobs[job.ID]
	require.Equal(t, models.ExportStatusFinished, stored.Status)
	require.NotNil(t, stored.ResultURL)
	require.True(t, strings.HasPrefix(*stored.ResultURL, "/api/v1/exports/download/"))

	token := (*stored.ResultURL)[strings.LastIndex(*stored.ResultURL, "/")+1:]
	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()

	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	body := string(content)
	require.Contains(t, body, "Transitioned At,From Stage,To Stage,Actor,Feedback,Posting,Candidate")
	require.Contains(t, body, "Interview")
	require.Contains(t, body, "Dana Reyes")
}

func TestExportWorkerRetriesBeforeFailing(t *testing.T) {
	svc, repo, processes := exportFixture(t)
	job := &models.ExportJob{
		Params:    models.ExportJobParams{ProcessID: "proc-missing", Format: models.ExportFormatCSV},
		CreatedBy: "rec-1",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	delete(processes.processes, "proc-missing")

	worker := NewExportWorker(repo, svc, 3, nil)

	// early attempts requeue the job
	err := worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 0})
	require.Error(t, err)
	require.Equal(t, models.ExportStatusQueued, repo.jobs[job.ID].Status)

	// the final attempt marks it failed
	err = worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 3})
	require.Error(t, err)
	require.Equal(t, models.ExportStatusFailed, repo.jobs[job.ID].Status)
	require.NotNil(t, repo.jobs[job.ID].ErrorMessage)
}

func TestExportServiceGetStatusOwnership(t *testing.T) {
	svc, repo, _ := exportFixture(t)
	job := &models.ExportJob{
		Params:    models.ExportJobParams{ProcessID: "proc-1", Format: models.ExportFormatCSV},
		CreatedBy: "rec-1",
	}
	require.NoError(t, repo.Create(context.Background(), job))

	_, err := svc.GetStatus(context.Background(), job.ID, models.UserInfo{ID: "rec-2", Role: models.RoleRecruiter})
	require.True(t, appErrors.HasCode(err, appErrors.ErrOwnership))

	resp, err := svc.GetStatus(context.Background(), job.ID, models.UserInfo{ID: "adm-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, models.ExportStatusQueued, resp.Status)
}
