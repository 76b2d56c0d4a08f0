package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/talentboard/pipeline-api/internal/models"
	"github.com/talentboard/pipeline-api/pkg/config"
	"github.com/talentboard/pipeline-api/pkg/jobs"
)

type outboxStub struct {
	events    []models.OutboxEvent
	processed map[string]time.Time
}

func newOutboxStub(events ...models.OutboxEvent) *outboxStub {
	return &outboxStub{events: events, processed: make(map[string]time.Time)}
}

func (o *outboxStub) ListUnprocessed(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	pending := make([]models.OutboxEvent, 0, len(o.events))
	for _, event := range o.events {
		if _, done := o.processed[event.ID]; !done {
			pending = append(pending, event)
		}
	}
	return pending, nil
}

func (o *outboxStub) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	o.processed[id] = at
	return nil
}

func TestRecalcDispatcherDispatchPending(t *testing.T) {
	outbox := newOutboxStub(models.OutboxEvent{
		ID:      "evt-1",
		Type:    models.OutboxEventCandidateProfileUpdated,
		Payload: models.OutboxPayload{CandidateID: "cand-1"},
	})

	handled := make(chan string, 1)
	queue := jobs.NewQueue(JobTypeCompatibilityRecalc, func(ctx context.Context, job jobs.Job) error {
		handled <- job.Payload.(string)
		return nil
	}, jobs.QueueConfig{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	dispatcher := NewRecalcDispatcher(outbox, queue, nil, config.CompatibilityConfig{}, nil)
	require.NoError(t, dispatcher.DispatchPending(context.Background()))

	select {
	case candidateID := <-handled:
		require.Equal(t, "cand-1", candidateID)
	case <-time.After(2 * time.Second):
		t.Fatal("recalc job never reached the worker")
	}
	require.Contains(t, outbox.processed, "evt-1")
}

func TestRecalcDispatcherLeavesEventOnEnqueueFailure(t *testing.T) {
	outbox := newOutboxStub(models.OutboxEvent{
		ID:      "evt-1",
		Type:    models.OutboxEventCandidateProfileUpdated,
		Payload: models.OutboxPayload{CandidateID: "cand-1"},
	})

	// never started, so Enqueue fails
	queue := jobs.NewQueue(JobTypeCompatibilityRecalc, func(ctx context.Context, job jobs.Job) error {
		return nil
	}, jobs.QueueConfig{Workers: 1})

	dispatcher := NewRecalcDispatcher(outbox, queue, nil, config.CompatibilityConfig{}, nil)
	require.NoError(t, dispatcher.DispatchPending(context.Background()))
	require.NotContains(t, outbox.processed, "evt-1")

	pending, err := outbox.ListUnprocessed(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestRecalcDispatcherSkipsUnknownEventTypes(t *testing.T) {
	outbox := newOutboxStub(models.OutboxEvent{
		ID:      "evt-1",
		Type:    models.OutboxEventType("unrelated_event"),
		Payload: models.OutboxPayload{},
	})

	handled := make(chan string, 1)
	queue := jobs.NewQueue(JobTypeCompatibilityRecalc, func(ctx context.Context, job jobs.Job) error {
		handled <- job.ID
		return nil
	}, jobs.QueueConfig{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	dispatcher := NewRecalcDispatcher(outbox, queue, nil, config.CompatibilityConfig{}, nil)
	require.NoError(t, dispatcher.DispatchPending(context.Background()))
	require.Contains(t, outbox.processed, "evt-1")

	select {
	case id := <-handled:
		t.Fatalf("unknown event %s must not be enqueued", id)
	case <-time.After(100 * time.Millisecond):
	}
}
