// Package rpc carries the todo service over gRPC. Messages are plain structs
// encoded with a JSON codec, so no generated protobuf code is involved;
// timestamps still use the well-known seconds + nanos Timestamp type.
package rpc

import (
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"todo/backend/internal/store"
)

type Todo struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	IsCompleted bool                   `json:"is_completed"`
	CreatedAt   *timestamppb.Timestamp `json:"created_at,omitempty"`
	UpdatedAt   *timestamppb.Timestamp `json:"updated_at,omitempty"`
}

type Todos struct {
	Todos []*Todo `json:"todos"`
}

type ListRequest struct{}

type TodoID struct {
	ID string `json:"id"`
}

type CreateRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type UpdateRequest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	IsCompleted bool   `json:"is_completed"`
}

type Empty struct{}

// Epoch is what an absent wire timestamp decodes to.
var Epoch = time.Unix(0, 0).UTC()

func FromEntity(item store.Todo) *Todo {
	return &Todo{
		ID:          item.ID,
		Title:       item.Title,
		Body:        item.Body,
		IsCompleted: item.IsCompleted,
		CreatedAt:   timestamppb.New(item.CreatedAt),
		UpdatedAt:   timestamppb.New(item.UpdatedAt),
	}
}

func FromEntities(items []store.Todo) *Todos {
	out := &Todos{Todos: make([]*Todo, 0, len(items))}
	for _, item := range items {
		out.Todos = append(out.Todos, FromEntity(item))
	}
	return out
}

// Entity converts back to the domain type. Missing timestamps become Epoch.
func (t *Todo) Entity() store.Todo {
	if t == nil {
		return store.Todo{CreatedAt: Epoch, UpdatedAt: Epoch}
	}
	return store.Todo{
		ID:          t.ID,
		Title:       t.Title,
		Body:        t.Body,
		IsCompleted: t.IsCompleted,
		CreatedAt:   timeFromProto(t.CreatedAt),
		UpdatedAt:   timeFromProto(t.UpdatedAt),
	}
}

func timeFromProto(ts *timestamppb.Timestamp) time.Time {
	if ts == nil {
		return Epoch
	}
	return ts.AsTime()
}
