package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neomorfeo/mycouch/internal/domain"
)

// DefaultLockTTL bounds how long a per-entity lock may be held.
const DefaultLockTTL = 5 * time.Second

// Option configures the transition plumbing shared by the services.
type Option func(*transitions)

// WithLocker serializes writers of one entity through locker.
func WithLocker(locker domain.Locker, ttl time.Duration) Option {
	return func(t *transitions) {
		t.locker = locker
		if ttl > 0 {
			t.lockTTL = ttl
		}
	}
}

// WithLogger reports failures that happen after a write has committed.
func WithLogger(logger *slog.Logger) Option {
	return func(t *transitions) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// transitions bundles what every state change needs: the validator, the
// event publisher and, optionally, a per-entity lock.
type transitions struct {
	validator domain.TransitionValidator
	publisher domain.EventPublisher
	locker    domain.Locker
	lockTTL   time.Duration
	logger    *slog.Logger
}

func newTransitions(validator domain.TransitionValidator, publisher domain.EventPublisher, opts []Option) transitions {
	t := transitions{
		validator: validator,
		publisher: publisher,
		lockTTL:   DefaultLockTTL,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// withLock runs fn while holding the lock on kind:id. Without a locker fn
// runs directly and storage compare-and-swap is the only guard.
func (t transitions) withLock(ctx context.Context, kind, id string, fn func(context.Context) error) error {
	if t.locker == nil {
		return fn(ctx)
	}

	key := kind + ":" + id
	unlock, err := t.locker.Lock(ctx, key, t.lockTTL)
	if err != nil {
		return fmt.Errorf("locking %s: %w", key, err)
	}
	defer unlock(context.WithoutCancel(ctx)) //nolint:errcheck // the lock expires on its own

	return fn(ctx)
}

// apply runs MakeTransition with the shared validator.
func (t transitions) apply(ctx context.Context, e domain.Stateful, field string, next domain.State, author string) (domain.Transition, error) {
	return domain.MakeTransition(ctx, t.validator, e, field, next, author)
}

// publish emits the event for an applied transition.
func (t transitions) publish(ctx context.Context, kind, id string, tr domain.Transition) error {
	if !tr.Applied {
		return nil
	}

	event := domain.TransitionEvent{
		EntityKind: kind,
		EntityID:   id,
		Field:      tr.Field,
		From:       tr.From,
		To:         tr.To,
		Author:     tr.Author,
		Seq:        tr.Seq,
	}
	if err := t.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("publishing %s transition to %q: %w", kind, tr.To, err)
	}
	return nil
}

// HistoryItem is one entry of a state field's audit log.
type HistoryItem struct {
	Seq    int
	State  domain.State
	Author string
}

func historyOf(v domain.StateValue) []HistoryItem {
	out := make([]HistoryItem, 0, len(v.History))
	for _, seq := range v.Seqs() {
		e, _ := v.Entry(seq)
		out = append(out, HistoryItem{Seq: seq, State: e.State, Author: e.Author})
	}
	return out
}
