// Package app binds one todo repository to the RPC contract.
package app

import (
	"context"
	"errors"
	"log/slog"

	"todo/backend/internal/rpc"
	"todo/backend/internal/store"
)

type Service struct {
	repo   store.Repository
	logger *slog.Logger
}

var _ rpc.TodoServiceServer = (*Service)(nil)

func New(repo store.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) List(ctx context.Context, _ *rpc.ListRequest) (*rpc.Todos, error) {
	s.logger.DebugContext(ctx, "list")
	items, err := s.repo.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "list failed", "err", err)
		return nil, statusError(err)
	}
	return rpc.FromEntities(items), nil
}

func (s *Service) GetByID(ctx context.Context, in *rpc.TodoID) (*rpc.Todo, error) {
	s.logger.DebugContext(ctx, "get_by_id", "id", in.ID)
	item, err := s.repo.Get(ctx, in.ID)
	if err != nil {
		s.fail(ctx, "get_by_id", in.ID, err)
		return nil, statusError(err)
	}
	return rpc.FromEntity(item), nil
}

func (s *Service) Create(ctx context.Context, in *rpc.CreateRequest) (*rpc.Todo, error) {
	s.logger.DebugContext(ctx, "create")
	item, err := s.repo.Create(ctx, in.Title, in.Body)
	if err != nil {
		s.logger.ErrorContext(ctx, "create failed", "err", err)
		return nil, statusError(err)
	}
	s.logger.DebugContext(ctx, "created", "id", item.ID)
	return rpc.FromEntity(item), nil
}

func (s *Service) Update(ctx context.Context, in *rpc.UpdateRequest) (*rpc.Todo, error) {
	s.logger.DebugContext(ctx, "update", "id", in.ID)
	item, err := s.repo.Update(ctx, in.ID, in.Title, in.Body, in.IsCompleted)
	if err != nil {
		s.fail(ctx, "update", in.ID, err)
		return nil, statusError(err)
	}
	return rpc.FromEntity(item), nil
}

func (s *Service) Delete(ctx context.Context, in *rpc.TodoID) (*rpc.Empty, error) {
	s.logger.DebugContext(ctx, "delete", "id", in.ID)
	if err := s.repo.Delete(ctx, in.ID); err != nil {
		s.fail(ctx, "delete", in.ID, err)
		return nil, statusError(err)
	}
	return &rpc.Empty{}, nil
}

func (s *Service) Complete(ctx context.Context, in *rpc.TodoID) (*rpc.Todo, error) {
	s.logger.DebugContext(ctx, "complete", "id", in.ID)
	item, err := s.repo.Complete(ctx, in.ID)
	if err != nil {
		s.fail(ctx, "complete", in.ID, err)
		return nil, statusError(err)
	}
	return rpc.FromEntity(item), nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// fail logs a failed call. Missing records and repeated completions are
// client mistakes and stay at warn; everything else is an error.
func (s *Service) fail(ctx context.Context, op, id string, err error) {
	level := slog.LevelError
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrAlreadyCompleted) {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, op+" failed", "id", id, "err", err)
}
