package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const pgUniqueViolation = "23505"

const todoColumns = `id, title, body, is_completed, created_at, updated_at`

// todoRow is the scan target for the todos table.
type todoRow struct {
	ID          string  `db:"id"`
	Title       string  `db:"title"`
	Body        string  `db:"body"`
	IsCompleted bool    `db:"is_completed"`
	CreatedAt   sqlTime `db:"created_at"`
	UpdatedAt   sqlTime `db:"updated_at"`
}

func (r todoRow) entity() Todo {
	return Todo{
		ID:          r.ID,
		Title:       r.Title,
		Body:        r.Body,
		IsCompleted: r.IsCompleted,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

// sqlTime accepts timestamps as time.Time or as text. SQLite only converts
// columns with a declared temporal type, which expression and RETURNING
// columns may lack.
type sqlTime struct {
	time.Time
}

var sqlTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func (t *sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (t *sqlTime) parse(value string) error {
	for _, layout := range sqlTimeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", value)
}

// SQLStore persists todos in a relational table. Create and Delete are single
// statements; Update and Complete read and rewrite the row in one transaction.
type SQLStore struct {
	db   *sqlx.DB
	opts options
}

// NewSQLStore wraps a migrated database opened with Open. The store owns db
// and closes it on Close.
func NewSQLStore(db *sqlx.DB, opts ...Option) *SQLStore {
	return &SQLStore{db: db, opts: buildOptions(opts)}
}

func (s *SQLStore) List(ctx context.Context) ([]Todo, error) {
	var rows []todoRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+todoColumns+` FROM todos ORDER BY id`); err != nil {
		return nil, translateError("list todos", err)
	}
	items := make([]Todo, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.entity())
	}
	return items, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Todo, error) {
	var row todoRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+todoColumns+` FROM todos WHERE id = ?`), id)
	if err != nil {
		return Todo{}, translateError("get todo", err)
	}
	return row.entity(), nil
}

func (s *SQLStore) Create(ctx context.Context, title, body string) (Todo, error) {
	id, err := s.opts.newID()
	if err != nil {
		return Todo{}, err
	}
	now := storageTime(s.opts.now())
	item := Todo{
		ID:        id,
		Title:     title,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO todos (id, title, body, is_completed, created_at, updated_at)
		VALUES (:id, :title, :body, :is_completed, :created_at, :updated_at)
	`, item)
	if isUniqueViolation(err) {
		return Todo{}, idGenerationError(errDuplicateID(id))
	}
	if err != nil {
		return Todo{}, translateError("insert todo", err)
	}
	return item, nil
}

func (s *SQLStore) Update(ctx context.Context, id, title, body string, isCompleted bool) (Todo, error) {
	var out Todo
	err := s.withLockedRow(ctx, id, func(tx *sqlx.Tx, prev todoRow) error {
		var row todoRow
		err := tx.GetContext(ctx, &row, tx.Rebind(`
			UPDATE todos
			SET title = ?, body = ?, is_completed = ?, updated_at = ?
			WHERE id = ?
			RETURNING `+todoColumns),
			title, body, isCompleted, s.opts.nextUpdatedAt(prev.UpdatedAt.Time), id,
		)
		out = row.entity()
		return err
	})
	if err != nil {
		return Todo{}, translateError("update todo", err)
	}
	return out, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM todos WHERE id = ?`), id)
	if err != nil {
		return translateError("delete todo", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return translateError("delete todo", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Complete(ctx context.Context, id string) (Todo, error) {
	var out Todo
	err := s.withLockedRow(ctx, id, func(tx *sqlx.Tx, prev todoRow) error {
		if prev.IsCompleted {
			return ErrAlreadyCompleted
		}
		var row todoRow
		err := tx.GetContext(ctx, &row, tx.Rebind(`
			UPDATE todos
			SET is_completed = TRUE, updated_at = ?
			WHERE id = ?
			RETURNING `+todoColumns),
			s.opts.nextUpdatedAt(prev.UpdatedAt.Time), id,
		)
		out = row.entity()
		return err
	})
	if err != nil {
		return Todo{}, translateError("complete todo", err)
	}
	return out, nil
}

// withLockedRow reads the current row inside a transaction and hands it to
// fn, committing when fn succeeds. On Postgres the row stays locked until
// commit; SQLite runs on a single connection, so writers are already serial.
func (s *SQLStore) withLockedRow(ctx context.Context, id string, fn func(*sqlx.Tx, todoRow) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + todoColumns + ` FROM todos WHERE id = ?`
	if s.db.DriverName() == "pgx" {
		query += ` FOR UPDATE`
	}
	var prev todoRow
	if err := tx.GetContext(ctx, &prev, tx.Rebind(query), id); err != nil {
		return err
	}
	if err := fn(tx, prev); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return backendError("ping db", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func translateError(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyCompleted):
		return err
	}
	return backendError(op, err)
}

// isUniqueViolation reports whether err is a primary key or unique constraint
// failure from either driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
