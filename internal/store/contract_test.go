package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type repoFactory func(t *testing.T, opts ...Option) Repository

// stepClock advances by a fixed step on every read so consecutive mutations
// always observe a later time.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newStepClock() *stepClock {
	return &stepClock{
		now:  time.Date(2024, 3, 9, 14, 30, 0, 123456000, time.UTC),
		step: time.Millisecond,
	}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// frozenClock always reports the same instant.
func frozenClock() time.Time {
	return time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)
}

// rewindingClock moves back by a second on every read, like a wall clock
// being corrected after each call.
type rewindingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newRewindingClock() *rewindingClock {
	return &rewindingClock{now: time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)}
}

func (c *rewindingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(-time.Second)
	return now
}

func assertSameTodo(t *testing.T, want, got Todo) {
	t.Helper()
	if got.ID != want.ID || got.Title != want.Title || got.Body != want.Body || got.IsCompleted != want.IsCompleted {
		t.Fatalf("todo mismatch:\nwant %+v\n got %+v", want, got)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("created_at mismatch: want %s, got %s", want.CreatedAt, got.CreatedAt)
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Fatalf("updated_at mismatch: want %s, got %s", want.UpdatedAt, got.UpdatedAt)
	}
}

func runRepositoryContract(t *testing.T, newRepo repoFactory) {
	t.Run("CreateThenGet", func(t *testing.T) {
		repo := newRepo(t, WithClock(newStepClock().Now))
		ctx := context.Background()

		created, err := repo.Create(ctx, "write report", "quarterly numbers")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if created.ID == "" {
			t.Fatal("expected generated id")
		}
		if created.IsCompleted {
			t.Fatal("new todo must not be completed")
		}
		if !created.CreatedAt.Equal(created.UpdatedAt) {
			t.Fatalf("expected created_at == updated_at, got %s and %s", created.CreatedAt, created.UpdatedAt)
		}

		got, err := repo.Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		assertSameTodo(t, created, got)
	})

	t.Run("MissingRecord", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get: expected ErrNotFound, got %v", err)
		}
		if _, err := repo.Update(ctx, "missing", "t", "b", true); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Update: expected ErrNotFound, got %v", err)
		}
		if err := repo.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Delete: expected ErrNotFound, got %v", err)
		}
		if _, err := repo.Complete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Complete: expected ErrNotFound, got %v", err)
		}

		items, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(items) != 0 {
			t.Fatalf("expected no records to be created implicitly, got %d", len(items))
		}
	})

	t.Run("CompleteIsOneWay", func(t *testing.T) {
		repo := newRepo(t, WithClock(newStepClock().Now))
		ctx := context.Background()

		created, err := repo.Create(ctx, "title", "body")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		completed, err := repo.Complete(ctx, created.ID)
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if !completed.IsCompleted {
			t.Fatal("expected completed todo")
		}
		if !completed.UpdatedAt.After(created.UpdatedAt) {
			t.Fatalf("expected updated_at to advance, got %s then %s", created.UpdatedAt, completed.UpdatedAt)
		}
		if !completed.CreatedAt.Equal(created.CreatedAt) {
			t.Fatal("complete must not change created_at")
		}

		if _, err := repo.Complete(ctx, created.ID); !errors.Is(err, ErrAlreadyCompleted) {
			t.Fatalf("second Complete: expected ErrAlreadyCompleted, got %v", err)
		}
		got, err := repo.Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !got.IsCompleted {
			t.Fatal("todo must stay completed after a rejected Complete")
		}
		assertSameTodo(t, completed, got)
	})

	t.Run("UpdateReplacesFields", func(t *testing.T) {
		repo := newRepo(t, WithClock(newStepClock().Now))
		ctx := context.Background()

		created, err := repo.Create(ctx, "old title", "old body")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		updated, err := repo.Update(ctx, created.ID, "new title", "new body", true)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if updated.Title != "new title" || updated.Body != "new body" || !updated.IsCompleted {
			t.Fatalf("unexpected update result %+v", updated)
		}
		if updated.UpdatedAt.Before(created.UpdatedAt) {
			t.Fatalf("updated_at moved backwards: %s then %s", created.UpdatedAt, updated.UpdatedAt)
		}
		if !updated.CreatedAt.Equal(created.CreatedAt) {
			t.Fatalf("created_at changed: %s then %s", created.CreatedAt, updated.CreatedAt)
		}

		// Update may reopen a completed todo; Complete may not be repeated.
		reopened, err := repo.Update(ctx, created.ID, "new title", "new body", false)
		if err != nil {
			t.Fatalf("Update reopen: %v", err)
		}
		if reopened.IsCompleted {
			t.Fatal("expected Update to reset completion")
		}
		if _, err := repo.Complete(ctx, created.ID); err != nil {
			t.Fatalf("Complete after reopen: %v", err)
		}

		got, err := repo.Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Title != "new title" || got.Body != "new body" || !got.IsCompleted {
			t.Fatalf("unexpected stored todo %+v", got)
		}
	})

	t.Run("DeleteIsFinal", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Create(ctx, "title", "body")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := repo.Delete(ctx, created.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := repo.Get(ctx, created.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get after Delete: expected ErrNotFound, got %v", err)
		}
		if err := repo.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("second Delete: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ConcurrentCreate", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		const n = 100
		ids := make([]string, n)
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				item, err := repo.Create(ctx, fmt.Sprintf("title %d", i), fmt.Sprintf("body %d", i))
				ids[i] = item.ID
				errs[i] = err
			}(i)
		}
		wg.Wait()

		seen := make(map[string]struct{}, n)
		for i, err := range errs {
			if err != nil {
				t.Fatalf("Create %d: %v", i, err)
			}
			seen[ids[i]] = struct{}{}
		}
		if len(seen) != n {
			t.Fatalf("expected %d distinct ids, got %d", n, len(seen))
		}

		items, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(items) != n {
			t.Fatalf("expected %d todos, got %d", n, len(items))
		}
	})

	t.Run("BuyMilkScenario", func(t *testing.T) {
		repo := newRepo(t, WithClock(newStepClock().Now))
		ctx := context.Background()

		r, err := repo.Create(ctx, "buy milk", "2%")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if r.IsCompleted {
			t.Fatal("expected open todo")
		}
		done, err := repo.Complete(ctx, r.ID)
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if !done.IsCompleted || !done.UpdatedAt.After(r.UpdatedAt) {
			t.Fatalf("unexpected completion result %+v (before %+v)", done, r)
		}
		if _, err := repo.Complete(ctx, r.ID); !errors.Is(err, ErrAlreadyCompleted) {
			t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
		}
		if err := repo.Delete(ctx, r.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := repo.Get(ctx, r.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdatedAtAdvancesWhenClockRepeats", func(t *testing.T) {
		repo := newRepo(t, WithClock(frozenClock))
		ctx := context.Background()

		created, err := repo.Create(ctx, "buy milk", "2%")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		completed, err := repo.Complete(ctx, created.ID)
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if !completed.UpdatedAt.After(created.UpdatedAt) {
			t.Fatalf("Complete: updated_at did not advance: %s then %s", created.UpdatedAt, completed.UpdatedAt)
		}
		updated, err := repo.Update(ctx, created.ID, "buy milk", "whole", true)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if !updated.UpdatedAt.After(completed.UpdatedAt) {
			t.Fatalf("Update: updated_at did not advance: %s then %s", completed.UpdatedAt, updated.UpdatedAt)
		}

		got, err := repo.Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		assertSameTodo(t, updated, got)
	})

	t.Run("UpdatedAtNeverPrecedesCreatedAt", func(t *testing.T) {
		repo := newRepo(t, WithClock(newRewindingClock().Now))
		ctx := context.Background()

		created, err := repo.Create(ctx, "title", "body")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		updated, err := repo.Update(ctx, created.ID, "title 2", "body 2", false)
		if err != nil {
			t.Fatalf("Update with a clock that went backwards: %v", err)
		}
		if !updated.UpdatedAt.After(created.UpdatedAt) {
			t.Fatalf("Update: updated_at %s not after %s", updated.UpdatedAt, created.UpdatedAt)
		}
		completed, err := repo.Complete(ctx, created.ID)
		if err != nil {
			t.Fatalf("Complete with a clock that went backwards: %v", err)
		}
		if !completed.UpdatedAt.After(updated.UpdatedAt) {
			t.Fatalf("Complete: updated_at %s not after %s", completed.UpdatedAt, updated.UpdatedAt)
		}
		if completed.CreatedAt.After(completed.UpdatedAt) {
			t.Fatalf("created_at %s after updated_at %s", completed.CreatedAt, completed.UpdatedAt)
		}
	})

	t.Run("DuplicateID", func(t *testing.T) {
		repo := newRepo(t, WithIDGenerator(fixedGenerator("same-id")))
		ctx := context.Background()

		first, err := repo.Create(ctx, "first", "")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		_, err = repo.Create(ctx, "second", "")
		if !errors.Is(err, ErrIDGeneration) {
			t.Fatalf("expected ErrIDGeneration for a reused id, got %v", err)
		}
		if IsBackendFailure(err) {
			t.Fatalf("a reused id must not be reported as a backend failure: %v", err)
		}
		got, err := repo.Get(ctx, first.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Title != "first" {
			t.Fatalf("duplicate create overwrote record: %+v", got)
		}
	})

	t.Run("ConcurrentComplete", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Create(ctx, "title", "body")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		const n = 8
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = repo.Complete(ctx, created.ID)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for i, err := range errs {
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrAlreadyCompleted):
			default:
				t.Fatalf("Complete %d: unexpected error %v", i, err)
			}
		}
		if succeeded != 1 {
			t.Fatalf("expected exactly one successful Complete, got %d", succeeded)
		}
	})

	t.Run("GeneratorFailure", func(t *testing.T) {
		boom := errors.New("entropy exhausted")
		repo := newRepo(t, WithIDGenerator(failingGenerator{err: boom}))

		_, err := repo.Create(context.Background(), "title", "body")
		if !errors.Is(err, ErrIDGeneration) {
			t.Fatalf("expected ErrIDGeneration, got %v", err)
		}
		if !errors.Is(err, boom) {
			t.Fatalf("expected cause to be kept, got %v", err)
		}
		if IsBackendFailure(err) {
			t.Fatal("generation failure must not be reported as a backend failure")
		}
	})

	t.Run("Ping", func(t *testing.T) {
		repo := newRepo(t)
		if err := repo.Ping(context.Background()); err != nil {
			t.Fatalf("Ping: %v", err)
		}
	})
}

type failingGenerator struct {
	err error
}

func (g failingGenerator) NewID() (string, error) {
	return "", g.err
}

// fixedGenerator hands out the same id every time.
type fixedGenerator string

func (g fixedGenerator) NewID() (string, error) {
	return string(g), nil
}
