// Package store defines the todo repository contract and its backends:
// an in-memory map, a SQL database (Postgres or SQLite) and Redis.
package store

import (
	"context"
	"time"

	"todo/backend/internal/idgen"
)

// Repository is implemented by every backend. Backends return ErrNotFound,
// ErrAlreadyCompleted, ErrIDGeneration or a *BackendError; expected conditions
// never panic.
//
// The order of List is not part of the contract. The memory backend returns
// map order, the SQL backend sorts by id and Redis returns set order.
type Repository interface {
	List(ctx context.Context) ([]Todo, error)
	Get(ctx context.Context, id string) (Todo, error)
	Create(ctx context.Context, title, body string) (Todo, error)
	// Update replaces title, body and completion. Unlike Complete it may set
	// isCompleted back to false.
	Update(ctx context.Context, id, title, body string, isCompleted bool) (Todo, error)
	Delete(ctx context.Context, id string) error
	Complete(ctx context.Context, id string) (Todo, error)
	Ping(ctx context.Context) error
	Close() error
}

// Clock supplies the current time to a backend.
type Clock func() time.Time

type options struct {
	ids idgen.Generator
	now Clock
}

// Option configures any of the backends.
type Option func(*options)

// WithIDGenerator replaces the default XID generator. A nil generator is ignored.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(o *options) {
		if gen != nil {
			o.ids = gen
		}
	}
}

// WithClock replaces time.Now. A nil clock is ignored.
func WithClock(now Clock) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{ids: idgen.XID{}, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) newID() (string, error) {
	id, err := o.ids.NewID()
	if err != nil {
		return "", idGenerationError(err)
	}
	if id == "" {
		return "", idGenerationError(errEmptyID)
	}
	return id, nil
}

// nextUpdatedAt returns the storage time for a write to a record last written
// at prev. It is always at least one storage tick after prev, even when the
// clock repeats or steps backwards.
func (o options) nextUpdatedAt(prev time.Time) time.Time {
	now := storageTime(o.now())
	if floor := prev.Add(storagePrecision); now.Before(floor) {
		return floor
	}
	return now
}
