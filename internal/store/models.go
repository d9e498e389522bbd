package store

import "time"

// Todo is the only entity. ID and CreatedAt never change after Create;
// UpdatedAt moves forward on every mutation.
type Todo struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Body        string    `json:"body" db:"body"`
	IsCompleted bool      `json:"is_completed" db:"is_completed"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// storagePrecision is the finest timestamp resolution every durable backend
// keeps (Postgres timestamptz stores microseconds).
const storagePrecision = time.Microsecond

func storageTime(t time.Time) time.Time {
	return t.UTC().Truncate(storagePrecision)
}
