package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps every todo in one map guarded by a single RWMutex. Readers
// share the lock; each mutation holds the write lock for its whole
// read-modify-write, so no caller can observe a torn record.
type MemoryStore struct {
	opts options

	mu        sync.RWMutex
	todos     map[string]Todo
	allocated map[string]struct{}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts:      buildOptions(opts),
		todos:     make(map[string]Todo),
		allocated: make(map[string]struct{}),
	}
}

func (s *MemoryStore) List(ctx context.Context) ([]Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Todo, 0, len(s.todos))
	for _, item := range s.todos {
		items = append(items, item)
	}
	return items, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Todo, error) {
	if err := ctx.Err(); err != nil {
		return Todo{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.todos[id]
	if !ok {
		return Todo{}, ErrNotFound
	}
	return item, nil
}

func (s *MemoryStore) Create(ctx context.Context, title, body string) (Todo, error) {
	if err := ctx.Err(); err != nil {
		return Todo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.opts.newID()
	if err != nil {
		return Todo{}, err
	}
	if _, taken := s.allocated[id]; taken {
		return Todo{}, idGenerationError(errDuplicateID(id))
	}

	now := s.opts.now().UTC()
	item := Todo{
		ID:        id,
		Title:     title,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.allocated[id] = struct{}{}
	s.todos[id] = item
	return item, nil
}

func (s *MemoryStore) Update(ctx context.Context, id, title, body string, isCompleted bool) (Todo, error) {
	if err := ctx.Err(); err != nil {
		return Todo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.todos[id]
	if !ok {
		return Todo{}, ErrNotFound
	}
	item.Title = title
	item.Body = body
	item.IsCompleted = isCompleted
	item.UpdatedAt = s.touch(item.UpdatedAt)
	s.todos[id] = item
	return item, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.todos[id]; !ok {
		return ErrNotFound
	}
	delete(s.todos, id)
	return nil
}

func (s *MemoryStore) Complete(ctx context.Context, id string) (Todo, error) {
	if err := ctx.Err(); err != nil {
		return Todo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.todos[id]
	if !ok {
		return Todo{}, ErrNotFound
	}
	if item.IsCompleted {
		return Todo{}, ErrAlreadyCompleted
	}
	item.IsCompleted = true
	item.UpdatedAt = s.touch(item.UpdatedAt)
	s.todos[id] = item
	return item, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	return nil
}

// touch returns the new UpdatedAt for a record, never at or before prev.
func (s *MemoryStore) touch(prev time.Time) time.Time {
	now := s.opts.now().UTC()
	if !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	return now
}
