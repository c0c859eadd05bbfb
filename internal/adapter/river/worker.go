package river

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/mycouch/internal/domain"
)

// Handler reacts to a persisted state change.
type Handler func(ctx context.Context, event domain.TransitionEvent) error

// TransitionWorker processes transition jobs from the River queue. It logs
// every event and hands it to the registered handlers in order.
type TransitionWorker struct {
	river.WorkerDefaults[TransitionJobArgs]
	handlers []Handler
}

// NewTransitionWorker creates a worker running the given handlers.
func NewTransitionWorker(handlers ...Handler) *TransitionWorker {
	return &TransitionWorker{handlers: handlers}
}

// Work processes a single transition job.
func (w *TransitionWorker) Work(ctx context.Context, job *river.Job[TransitionJobArgs]) error {
	slog.DebugContext(ctx, "processing transition job",
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return w.dispatch(ctx, job.Args.Event())
}

func (w *TransitionWorker) dispatch(ctx context.Context, event domain.TransitionEvent) error {
	slog.InfoContext(ctx, "state transitioned",
		"entity_kind", event.EntityKind,
		"entity_id", event.EntityID,
		"field", event.Field,
		"from", event.From,
		"to", event.To,
		"author", event.Author,
		"seq", event.Seq,
	)
	for i, h := range w.handlers {
		if err := h(ctx, event); err != nil {
			return fmt.Errorf("transition handler %d: %w", i, err)
		}
	}
	return nil
}
