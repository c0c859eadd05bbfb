package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"
)

// DefaultMaxWorkers bounds concurrent transition jobs when the caller passes
// zero.
const DefaultMaxWorkers = 2

// Migrate creates or upgrades River's own tables (river_job, river_leader,
// ...) next to the goose-managed schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	migrator, err := rivermigrate.New(riversqlite.New(db), nil)
	if err != nil {
		return fmt.Errorf("creating river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("running river migrations: %w", err)
	}
	return nil
}

// Setup migrates River's tables on db and returns a client whose default
// queue runs the transition worker with the given handlers. The caller
// starts and stops the client.
func Setup(ctx context.Context, db *sql.DB, maxWorkers int, handlers ...Handler) (*Client, error) {
	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}

	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewTransitionWorker(handlers...))

	client, err := river.NewClient(riversqlite.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("creating river client: %w", err)
	}

	return client, nil
}
