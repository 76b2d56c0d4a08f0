package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/talentboard/pipeline-api/internal/models"
	"github.com/talentboard/pipeline-api/internal/repository"
	"github.com/talentboard/pipeline-api/pkg/config"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
	"github.com/talentboard/pipeline-api/pkg/export"
	"github.com/talentboard/pipeline-api/pkg/jobs"
	"github.com/talentboard/pipeline-api/pkg/storage"
)

// JobTypeAuditExport names the queue jobs that render transition exports.
const JobTypeAuditExport = "audit_export"

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

type exportDispatcher interface {
	Enqueue(job jobs.Job) error
}

type processHistoryReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.SelectionProcessDetail, error)
	ListTransitionsDesc(ctx context.Context, processID string) ([]models.StageTransitionDetail, error)
}

type exportFileStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// CreateExportRequest asks for an asynchronous export of one process's
// transition history.
type CreateExportRequest struct {
	ProcessID string `json:"process_id" validate:"required,uuid4"`
	Format    string `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportJobResponse is returned on creation and status polls.
type ExportJobResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ExportService owns the audit export job lifecycle: validation,
// persistence, queue handoff, download resolution, and cleanup.
type ExportService struct {
	repo      exportJobStore
	processes processHistoryReader
	postings  postingReader
	queue     exportDispatcher
	storage   exportFileStore
	signer    *storage.SignedURLSigner
	csv       csvRenderer
	pdf       pdfRenderer
	validate  *validator.Validate
	logger    *zap.Logger
	apiPrefix string
	cfg       config.AuditExportsConfig
}

// NewExportService constructs the export service.
func NewExportService(
	repo exportJobStore,
	processes processHistoryReader,
	postings postingReader,
	queue exportDispatcher,
	fileStore exportFileStore,
	signer *storage.SignedURLSigner,
	validate *validator.Validate,
	logger *zap.Logger,
	apiPrefix string,
	cfg config.AuditExportsConfig,
) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = 24 * time.Hour
	}
	return &ExportService{
		repo:      repo,
		processes: processes,
		postings:  postings,
		queue:     queue,
		storage:   fileStore,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validate:  validate,
		logger:    logger,
		apiPrefix: apiPrefix,
		cfg:       cfg,
	}
}

// AttachQueue binds the dispatch queue after construction. The worker
// behind the queue calls back into Generate, so the queue cannot exist
// before the service does.
func (s *ExportService) AttachQueue(queue exportDispatcher) {
	s.queue = queue
}

// CreateJob validates the request, persists the job, and enqueues processing.
func (s *ExportService) CreateJob(ctx context.Context, req CreateExportRequest, actor models.UserInfo) (*ExportJobResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	detail, err := s.processes.FindDetailByID(ctx, req.ProcessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "selection process not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load selection process")
	}
	if err := s.guardProcessAccess(ctx, detail, actor); err != nil {
		return nil, err
	}

	job := &models.ExportJob{
		Params: models.ExportJobParams{
			ProcessID: detail.ID,
			Format:    models.ExportFormat(req.Format),
		},
		Status:    models.ExportStatusQueued,
		CreatedBy: actor.ID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: JobTypeAuditExport}); err != nil {
		failed := models.ExportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &failed,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}

	s.logger.Info("audit export queued",
		zap.String("job_id", job.ID),
		zap.String("process_id", detail.ID),
		zap.String("format", req.Format),
	)
	return &ExportJobResponse{ID: job.ID, Status: job.Status}, nil
}

// GetStatus exposes job metadata to clients, enforcing creator ownership
// for non-admin callers.
func (s *ExportService) GetStatus(ctx context.Context, id string, actor models.UserInfo) (*ExportJobResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if actor.Role != models.RoleAdmin && job.CreatedBy != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrOwnership, "export job belongs to another user")
	}
	resp := &ExportJobResponse{ID: job.ID, Status: job.Status, ResultURL: job.ResultURL}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates the signed token and opens the stored file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// RecoverPendingJobs replays queued jobs after a process restart.
func (s *ExportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued export jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: JobTypeAuditExport}); err != nil {
			s.logger.Warn("failed to requeue export job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ExportService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.SignedURLTTL)
	for {
		finished, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
		if err != nil {
			s.logger.Warn("export cleanup list failed", zap.Error(err))
			return
		}
		if len(finished) == 0 {
			break
		}
		for _, job := range finished {
			if job.ResultURL == nil {
				continue
			}
			token := lastPathSegment(*job.ResultURL)
			if token == "" {
				continue
			}
			_, relPath, _, err := s.signer.Parse(token, true)
			if err != nil {
				continue
			}
			if err := s.storage.Delete(relPath); err != nil {
				s.logger.Warn("export cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
			}
		}
		if len(finished) < 100 {
			break
		}
	}
	if _, err := s.storage.CleanupOlderThan(s.cfg.SignedURLTTL); err != nil {
		s.logger.Warn("export directory cleanup failed", zap.Error(err))
	}
}

// Generate loads the process ledger, renders it, stores the file, and
// returns the signed download URL. Called by the queue worker.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (string, error) {
	if job == nil {
		return "", fmt.Errorf("export job nil")
	}
	detail, err := s.processes.FindDetailByID(ctx, job.Params.ProcessID)
	if err != nil {
		return "", fmt.Errorf("load process for export: %w", err)
	}
	transitions, err := s.processes.ListTransitionsDesc(ctx, job.Params.ProcessID)
	if err != nil {
		return "", fmt.Errorf("load transitions for export: %w", err)
	}

	dataset := buildTransitionDataset(detail, transitions)
	title := fmt.Sprintf("Stage History %s - %s", detail.JobPostingTitle, detail.CandidateName)

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported export format %s", job.Params.Format)
	}
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("process_%s_%s.%s",
		sanitizeExportName(detail.ID),
		time.Now().UTC().Format("20060102_150405"),
		job.Params.Format,
	)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return "", err
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return "", err
	}
	prefix := strings.TrimRight(s.apiPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/exports/download/%s", prefix, token), nil
}

func (s *ExportService) guardProcessAccess(ctx context.Context, detail *models.SelectionProcessDetail, actor models.UserInfo) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	posting, err := s.postings.FindByID(ctx, detail.JobPostingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job posting")
	}
	if actor.OrganizationID == nil || *actor.OrganizationID != posting.OrganizationID {
		return appErrors.Clone(appErrors.ErrOwnership, "process belongs to another organization")
	}
	return nil
}

func buildTransitionDataset(detail *models.SelectionProcessDetail, transitions []models.StageTransitionDetail) export.Dataset {
	rows := make([]map[string]string, 0, len(transitions))
	for _, t := range transitions {
		from := ""
		if t.FromStageName != nil {
			from = *t.FromStageName
		}
		feedback := ""
		if t.Feedback != nil {
			feedback = *t.Feedback
		}
		rows = append(rows, map[string]string{
			"Transitioned At": t.TransitionedAt.UTC().Format(time.RFC3339),
			"From Stage":      from,
			"To Stage":        t.ToStageName,
			"Actor":           t.ActorName,
			"Feedback":        feedback,
			"Posting":         detail.JobPostingTitle,
			"Candidate":       detail.CandidateName,
		})
	}
	return export.Dataset{
		Headers: []string{"Transitioned At", "From Stage", "To Stage", "Actor", "Feedback", "Posting", "Candidate"},
		Rows:    rows,
	}
}

func sanitizeExportName(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func lastPathSegment(url string) string {
	if url == "" {
		return ""
	}
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ExportJob) (string, error)
}

// ExportWorker bridges queue jobs to the export service.
type ExportWorker struct {
	repo       exportJobStore
	generator  exportGenerator
	logger     *zap.Logger
	maxRetries int
}

// NewExportWorker constructs a worker.
func NewExportWorker(repo exportJobStore, generator exportGenerator, maxRetries int, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ExportWorker{
		repo:       repo,
		generator:  generator,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.ExportStatusProcessing
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &processing}); err != nil {
		return err
	}
	resultURL, err := w.generator.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries {
			failed := models.ExportStatusFailed
			now := time.Now().UTC()
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
				Status:       &failed,
				ErrorMessage: &msg,
				FinishedAt:   &now,
			}); updateErr != nil {
				w.logger.Warn("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
		} else {
			queued := models.ExportStatusQueued
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
				Status:       &queued,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Warn("failed to requeue export job", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
		}
		return err
	}
	finished := models.ExportStatusFinished
	now := time.Now().UTC()
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &finished,
		ResultURL:    &resultURL,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark export job finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	return nil
}

// NewExportQueue builds the worker queue that renders exports.
func NewExportQueue(worker *ExportWorker, cfg config.AuditExportsConfig, logger *zap.Logger) *jobs.Queue {
	return jobs.NewQueue(JobTypeAuditExport, worker.Handle, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
}
