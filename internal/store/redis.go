package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisTodoPrefix = "todo:"
	redisIndexKey   = "todos"
)

// maxWatchRetries bounds optimistic retries when a watched key changes under
// an Update or Complete.
const maxWatchRetries = 16

const replyDuplicate = "DUPLICATE"

// createScript runs atomically on the server. It returns the hash after the
// write (HGETALL, a flat field/value list) or DUPLICATE.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 'DUPLICATE'
end
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'title', ARGV[2], 'body', ARGV[3], 'is_completed', '0', 'created_at', ARGV[4], 'updated_at', ARGV[4])
redis.call('SADD', KEYS[2], ARGV[1])
return redis.call('HGETALL', KEYS[1])
`)

// RedisStore keeps each todo in a hash and the set of live ids in an index.
type RedisStore struct {
	client *redis.Client
	opts   options
}

// NewRedisStore connects to redisURL and pings it before returning.
func NewRedisStore(ctx context.Context, redisURL string, opts ...Option) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, opts...), nil
}

// NewRedisStoreWithClient wraps an existing client. The store closes it on Close.
func NewRedisStoreWithClient(client *redis.Client, opts ...Option) *RedisStore {
	return &RedisStore{client: client, opts: buildOptions(opts)}
}

func (s *RedisStore) key(id string) string {
	return redisTodoPrefix + id
}

func (s *RedisStore) List(ctx context.Context) ([]Todo, error) {
	ids, err := s.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, backendError("list todo ids", err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, pipe.HGetAll(ctx, s.key(id)))
	}
	if len(cmds) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, backendError("list todos", err)
		}
	}

	items := make([]Todo, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Deleted between SMEMBERS and HGETALL.
			continue
		}
		item, err := decodeRedisTodo(fields)
		if err != nil {
			return nil, backendError("decode todo", err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Todo, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return Todo{}, backendError("get todo", err)
	}
	if len(fields) == 0 {
		return Todo{}, ErrNotFound
	}
	item, err := decodeRedisTodo(fields)
	if err != nil {
		return Todo{}, backendError("decode todo", err)
	}
	return item, nil
}

func (s *RedisStore) Create(ctx context.Context, title, body string) (Todo, error) {
	id, err := s.opts.newID()
	if err != nil {
		return Todo{}, err
	}
	reply, err := createScript.Run(ctx, s.client, []string{s.key(id), redisIndexKey},
		id, title, body, formatRedisTime(storageTime(s.opts.now())),
	).Result()
	if err != nil {
		return Todo{}, backendError("insert todo", err)
	}
	if reply == replyDuplicate {
		return Todo{}, idGenerationError(errDuplicateID(id))
	}
	return decodeScriptReply("insert todo", reply)
}

func (s *RedisStore) Update(ctx context.Context, id, title, body string, isCompleted bool) (Todo, error) {
	return s.mutate(ctx, "update todo", id, func(item Todo) (Todo, error) {
		item.Title = title
		item.Body = body
		item.IsCompleted = isCompleted
		return item, nil
	})
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	var deleted *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, s.key(id))
		pipe.SRem(ctx, redisIndexKey, id)
		return nil
	})
	if err != nil {
		return backendError("delete todo", err)
	}
	if deleted.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Complete(ctx context.Context, id string) (Todo, error) {
	return s.mutate(ctx, "complete todo", id, func(item Todo) (Todo, error) {
		if item.IsCompleted {
			return Todo{}, ErrAlreadyCompleted
		}
		item.IsCompleted = true
		return item, nil
	})
}

// mutate reads the todo under WATCH, applies change and writes the result in
// MULTI/EXEC, retrying when another client touched the key in between.
// updated_at always moves past the stored value.
func (s *RedisStore) mutate(ctx context.Context, op, id string, change func(Todo) (Todo, error)) (Todo, error) {
	key := s.key(id)
	var out Todo

	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return ErrNotFound
		}
		prev, err := decodeRedisTodo(fields)
		if err != nil {
			return backendError("decode todo", err)
		}
		next, err := change(prev)
		if err != nil {
			return err
		}
		next.UpdatedAt = s.opts.nextUpdatedAt(prev.UpdatedAt)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"title", next.Title,
				"body", next.Body,
				"is_completed", redisBool(next.IsCompleted),
				"updated_at", formatRedisTime(next.UpdatedAt),
			)
			return nil
		})
		if err != nil {
			return err
		}
		out = next
		return nil
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyCompleted), IsBackendFailure(err):
			return Todo{}, err
		default:
			return Todo{}, backendError(op, err)
		}
	}
	return Todo{}, backendError(op, errWatchContention)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return backendError("ping redis", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeRedisTodo(fields map[string]string) (Todo, error) {
	createdAt, err := parseRedisTime(fields["created_at"])
	if err != nil {
		return Todo{}, fmt.Errorf("created_at: %w", err)
	}
	updatedAt, err := parseRedisTime(fields["updated_at"])
	if err != nil {
		return Todo{}, fmt.Errorf("updated_at: %w", err)
	}
	completed, err := strconv.ParseBool(fields["is_completed"])
	if err != nil {
		return Todo{}, fmt.Errorf("is_completed: %w", err)
	}
	return Todo{
		ID:          fields["id"],
		Title:       fields["title"],
		Body:        fields["body"],
		IsCompleted: completed,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// decodeScriptReply turns an HGETALL reply from a Lua script (a flat list of
// field, value pairs) back into a Todo.
func decodeScriptReply(op string, reply any) (Todo, error) {
	values, ok := reply.([]any)
	if !ok || len(values)%2 != 0 {
		return Todo{}, backendError(op, fmt.Errorf("unexpected script reply %v", reply))
	}
	fields := make(map[string]string, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		field, _ := values[i].(string)
		value, _ := values[i+1].(string)
		fields[field] = value
	}
	item, err := decodeRedisTodo(fields)
	if err != nil {
		return Todo{}, backendError(op, err)
	}
	return item, nil
}

func redisBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func formatRedisTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseRedisTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
