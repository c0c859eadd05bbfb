package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/mycouch/internal/domain"
)

// Compile-time checks: both publishers implement domain.EventPublisher.
var (
	_ domain.EventPublisher = (*Publisher)(nil)
	_ domain.EventPublisher = (*InlinePublisher)(nil)
)

// TransitionJobArgs carries a persisted state change to the worker.
// River serializes this as JSON into its job queue table.
type TransitionJobArgs struct {
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	Field      string `json:"field"`
	From       string `json:"from"`
	To         string `json:"to"`
	Author     string `json:"author,omitempty"`
	Seq        int    `json:"seq"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (TransitionJobArgs) Kind() string { return "state.transitioned" }

func argsFromEvent(e domain.TransitionEvent) TransitionJobArgs {
	return TransitionJobArgs{
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		Field:      e.Field,
		From:       string(e.From),
		To:         string(e.To),
		Author:     e.Author,
		Seq:        e.Seq,
	}
}

// Event converts the job payload back into a domain event.
func (a TransitionJobArgs) Event() domain.TransitionEvent {
	return domain.TransitionEvent{
		EntityKind: a.EntityKind,
		EntityID:   a.EntityID,
		Field:      a.Field,
		From:       domain.State(a.From),
		To:         domain.State(a.To),
		Author:     a.Author,
		Seq:        a.Seq,
	}
}

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a transition event as an async job in River.
func (p *Publisher) Publish(ctx context.Context, event domain.TransitionEvent) error {
	_, err := p.client.Insert(ctx, argsFromEvent(event), nil)
	if err != nil {
		return fmt.Errorf("enqueuing transition job: %w", err)
	}
	return nil
}

// InlinePublisher runs the handlers synchronously, for deployments without
// a job queue.
type InlinePublisher struct {
	worker *TransitionWorker
}

// NewInlinePublisher creates a publisher that dispatches in the caller's
// goroutine.
func NewInlinePublisher(handlers ...Handler) *InlinePublisher {
	return &InlinePublisher{worker: NewTransitionWorker(handlers...)}
}

func (p *InlinePublisher) Publish(ctx context.Context, event domain.TransitionEvent) error {
	return p.worker.dispatch(ctx, event)
}
