package app

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"todo/backend/internal/store"
)

// statusError translates a repository error into the RPC status vocabulary.
// Backend faults get a generic message; the detail is only logged.
func statusError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, "todo not found")
	case errors.Is(err, store.ErrAlreadyCompleted):
		return status.Error(codes.InvalidArgument, "todo already completed")
	case errors.Is(err, store.ErrIDGeneration):
		return status.Error(codes.Internal, "failed to generate id")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}

	var netErr net.Error
	if store.IsBackendFailure(err) && errors.As(err, &netErr) {
		return status.Error(codes.Unavailable, "storage backend unavailable")
	}
	return status.Error(codes.Internal, "storage backend failure")
}
