package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/talentboard/pipeline-api/internal/models"
	"github.com/talentboard/pipeline-api/pkg/config"
	"github.com/talentboard/pipeline-api/pkg/jobs"
)

// JobTypeCompatibilityRecalc identifies recalculation jobs on the queue.
const JobTypeCompatibilityRecalc = "compatibility_recalc"

type outboxStore interface {
	ListUnprocessed(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id string, at time.Time) error
}

type recalculator interface {
	RecalculateForCandidate(ctx context.Context, candidateID string) error
}

type backlogGauge interface {
	SetOutboxBacklog(n int)
}

// RecalcDispatcher polls the transactional outbox and turns committed
// candidate_profile_updated events into queue jobs. Delivery is
// at-least-once: an event is marked processed only after a successful
// enqueue, and the downstream upsert tolerates replays.
type RecalcDispatcher struct {
	outbox    outboxStore
	queue     *jobs.Queue
	metrics   backlogGauge
	pollEvery time.Duration
	batchSize int
	logger    *zap.Logger
}

// NewRecalcQueue builds the worker queue that executes recalculations.
func NewRecalcQueue(service recalculator, cfg config.CompatibilityConfig, logger *zap.Logger) *jobs.Queue {
	handler := func(ctx context.Context, job jobs.Job) error {
		candidateID, ok := job.Payload.(string)
		if !ok || candidateID == "" {
			return fmt.Errorf("recalc job %s carries no candidate id", job.ID)
		}
		return service.RecalculateForCandidate(ctx, candidateID)
	}
	return jobs.NewQueue(JobTypeCompatibilityRecalc, handler, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
}

// NewRecalcDispatcher builds the dispatcher.
func NewRecalcDispatcher(outbox outboxStore, queue *jobs.Queue, metrics backlogGauge, cfg config.CompatibilityConfig, logger *zap.Logger) *RecalcDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	pollEvery := cfg.OutboxPollEvery
	if pollEvery <= 0 {
		pollEvery = 5 * time.Second
	}
	batchSize := cfg.OutboxBatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	return &RecalcDispatcher{
		outbox:    outbox,
		queue:     queue,
		metrics:   metrics,
		pollEvery: pollEvery,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Start polls until the context is cancelled.
func (d *RecalcDispatcher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(d.pollEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := d.DispatchPending(ctx); err != nil {
					d.logger.Warn("outbox dispatch failed", zap.Error(err))
				}
			}
		}
	}()
}

// DispatchPending drains one batch of unprocessed events.
func (d *RecalcDispatcher) DispatchPending(ctx context.Context) error {
	events, err := d.outbox.ListUnprocessed(ctx, d.batchSize)
	if err != nil {
		return fmt.Errorf("list outbox events: %w", err)
	}
	if d.metrics != nil {
		d.metrics.SetOutboxBacklog(len(events))
	}

	for _, event := range events {
		if event.Type != models.OutboxEventCandidateProfileUpdated {
			d.logger.Warn("skipping unknown outbox event type",
				zap.String("event_id", event.ID),
				zap.String("type", string(event.Type)))
			if err := d.outbox.MarkProcessed(ctx, event.ID, time.Now().UTC()); err != nil {
				d.logger.Warn("failed to mark outbox event processed", zap.String("event_id", event.ID), zap.Error(err))
			}
			continue
		}

		job := jobs.Job{
			ID:      event.ID,
			Type:    JobTypeCompatibilityRecalc,
			Payload: event.Payload.CandidateID,
		}
		if err := d.queue.Enqueue(job); err != nil {
			// Leave the event unprocessed; the next poll retries it.
			d.logger.Warn("failed to enqueue recalc job", zap.String("event_id", event.ID), zap.Error(err))
			continue
		}
		if err := d.outbox.MarkProcessed(ctx, event.ID, time.Now().UTC()); err != nil {
			d.logger.Warn("failed to mark outbox event processed", zap.String("event_id", event.ID), zap.Error(err))
		}
	}
	return nil
}
