package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// DefaultIndexedFields are the fields RedisStore keeps secondary index sets for.
var DefaultIndexedFields = []string{"status", "featured", "read"}

// maxTxAttempts bounds how often a conflicting write transaction is re-run.
const maxTxAttempts = 16

var errCorrupt = errors.New("corrupt document")

// RedisStore keeps each document as a JSON envelope under doc:<collection>:<id>,
// a sorted set of IDs by creation time per collection, and one set per
// (indexed field, value) pair for equality filters.
type RedisStore struct {
	client  *redis.Client
	indexed map[string]bool
	clock   clock

	// commitHook, when set, runs after a write has read the document and
	// before it commits.
	commitHook func(op string)
}

// envelope is the stored form; timestamps are Unix microseconds.
type envelope struct {
	ID        string         `json:"id"`
	Fields    map[string]any `json:"fields"`
	CreatedAt int64          `json:"createdAt"`
	UpdatedAt int64          `json:"updatedAt"`
}

func (e *envelope) document() *Document {
	fields := e.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	return &Document{
		ID:        e.ID,
		Fields:    fields,
		CreatedAt: fromMicros(e.CreatedAt),
		UpdatedAt: fromMicros(e.UpdatedAt),
	}
}

// NewRedisStore creates a RedisStore. With no indexedFields,
// DefaultIndexedFields are used.
func NewRedisStore(client *redis.Client, indexedFields ...string) *RedisStore {
	if len(indexedFields) == 0 {
		indexedFields = DefaultIndexedFields
	}
	indexed := make(map[string]bool, len(indexedFields))
	for _, f := range indexedFields {
		indexed[f] = true
	}
	return &RedisStore{client: client, indexed: indexed}
}

func docKey(collection, id string) string {
	return fmt.Sprintf("doc:%s:%s", collection, id)
}

func createdKey(collection string) string {
	return fmt.Sprintf("coll:%s:created", collection)
}

func indexKey(collection, field string, value any) string {
	return fmt.Sprintf("idx:%s:%s:%s", collection, field, valueKey(value))
}

// indexKeys returns the index set key for every indexed field present in fields.
func (s *RedisStore) indexKeys(collection string, fields map[string]any) map[string]string {
	keys := make(map[string]string)
	for field := range s.indexed {
		if v, ok := fields[field]; ok {
			keys[field] = indexKey(collection, field, v)
		}
	}
	return keys
}

// serverTime reads the Redis server clock so that timestamps do not depend
// on the caller's clock.
func (s *RedisStore) serverTime(ctx context.Context) (time.Time, error) {
	return s.client.Time(ctx).Result()
}

// Create stores a new document.
func (s *RedisStore) Create(ctx context.Context, collection string, fields map[string]any) (*Document, error) {
	now, err := s.serverTime(ctx)
	if err != nil {
		return nil, unavailable("create", err)
	}
	ts := s.clock.stamp(now, time.Time{}).UnixMicro()

	env := &envelope{
		ID:        uuid.NewString(),
		Fields:    sanitize(fields),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, docKey(collection, env.ID), data, 0)
		pipe.ZAdd(ctx, createdKey(collection), &redis.Z{Score: float64(env.CreatedAt), Member: env.ID})
		for _, key := range s.indexKeys(collection, env.Fields) {
			pipe.SAdd(ctx, key, env.ID)
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("create", err)
	}

	return decodeEnvelope(data)
}

func (s *RedisStore) beforeCommit(op string) {
	if s.commitHook != nil {
		s.commitHook(op)
	}
}

func decodeEnvelope(data []byte) (*Document, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return env.document(), nil
}

func (s *RedisStore) load(ctx context.Context, c redis.Cmdable, op, collection, id string) (*envelope, error) {
	data, err := c.Get(ctx, docKey(collection, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable(op, err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errCorrupt, id, err)
	}
	return &env, nil
}

// Get retrieves a document by ID.
func (s *RedisStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	env, err := s.load(ctx, s.client, "get", collection, id)
	if err != nil {
		return nil, err
	}
	return env.document(), nil
}

// watch runs fn as an optimistic transaction on the document key. fn runs
// again, on a fresh read, when another client wrote the document between
// its read and its commit.
func (s *RedisStore) watch(ctx context.Context, op, collection, id string, fn func(tx *redis.Tx) error) error {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, fn, docKey(collection, id))
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnavailable), errors.Is(err, errCorrupt):
			return err
		default:
			return unavailable(op, err)
		}
	}
	return unavailable(op, fmt.Errorf("document %s kept changing: %w", id, redis.TxFailedErr))
}

// Update merges fields into a stored document and moves it between index
// sets when an indexed value changes. The merge always starts from the
// stored document, so index sets follow the committed fields; concurrent
// updates of the same key are last-write-wins.
func (s *RedisStore) Update(ctx context.Context, collection, id string, fields map[string]any) (*Document, error) {
	var data []byte
	err := s.watch(ctx, "update", collection, id, func(tx *redis.Tx) error {
		old, err := s.load(ctx, tx, "update", collection, id)
		if err != nil {
			return err
		}
		now, err := tx.Time(ctx).Result()
		if err != nil {
			return unavailable("update", err)
		}

		next := &envelope{
			ID:        old.ID,
			Fields:    merge(old.Fields, fields),
			CreatedAt: old.CreatedAt,
			UpdatedAt: s.clock.stamp(now, fromMicros(old.UpdatedAt)).UnixMicro(),
		}
		data, err = json.Marshal(next)
		if err != nil {
			return fmt.Errorf("%w: %w", errCorrupt, err)
		}

		oldKeys := s.indexKeys(collection, old.Fields)
		newKeys := s.indexKeys(collection, next.Fields)

		s.beforeCommit("update")
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, docKey(collection, id), data, 0)
			for field, key := range oldKeys {
				if newKeys[field] != key {
					pipe.SRem(ctx, key, id)
				}
			}
			for field, key := range newKeys {
				if oldKeys[field] != key {
					pipe.SAdd(ctx, key, id)
				}
			}
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return decodeEnvelope(data)
}

// Delete removes a document and its index entries.
func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	return s.watch(ctx, "delete", collection, id, func(tx *redis.Tx) error {
		env, err := s.load(ctx, tx, "delete", collection, id)
		if err != nil {
			return err
		}

		s.beforeCommit("delete")
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, docKey(collection, id))
			pipe.ZRem(ctx, createdKey(collection), id)
			for _, key := range s.indexKeys(collection, env.Fields) {
				pipe.SRem(ctx, key, id)
			}
			return nil
		})
		return err
	})
}

// Find returns matching documents, newest first. Filters on indexed fields
// are resolved with SINTER; every filter is re-checked on the decoded document.
func (s *RedisStore) Find(ctx context.Context, collection string, q Query) ([]*Document, error) {
	stop := int64(-1)
	if len(q.Filters) == 0 && q.Limit > 0 {
		stop = int64(q.Limit - 1)
	}

	ids, err := s.client.ZRevRange(ctx, createdKey(collection), 0, stop).Result()
	if err != nil {
		return nil, unavailable("find", err)
	}

	var setKeys []string
	for _, f := range q.Filters {
		if s.indexed[f.Field] {
			setKeys = append(setKeys, indexKey(collection, f.Field, f.Value))
		}
	}
	if len(setKeys) > 0 {
		members, err := s.client.SInter(ctx, setKeys...).Result()
		if err != nil {
			return nil, unavailable("find", err)
		}
		allowed := make(map[string]struct{}, len(members))
		for _, m := range members {
			allowed[m] = struct{}{}
		}
		kept := ids[:0]
		for _, id := range ids {
			if _, ok := allowed[id]; ok {
				kept = append(kept, id)
			}
		}
		ids = kept
	}

	if len(ids) == 0 {
		return []*Document{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, docKey(collection, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable("find", err)
	}

	docs := make([]*Document, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, unavailable("find", err)
		}
		doc, err := decodeEnvelope(data)
		if err != nil {
			return nil, err
		}
		if !matches(doc.Fields, q.Filters) {
			continue
		}
		docs = append(docs, doc)
		if q.Limit > 0 && len(docs) == q.Limit {
			break
		}
	}
	return docs, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
