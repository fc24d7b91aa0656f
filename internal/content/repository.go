// Package content provides per-record-type repositories over the document
// store. Every successful write raises exactly one change signal for the
// repository's category, after persistence and before the call returns.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"gofolio/internal/logger"
	"gofolio/internal/model"
	"gofolio/internal/notify"
	"gofolio/internal/store"
	"gofolio/internal/telemetry"
)

// Publisher raises change signals.
type Publisher interface {
	Publish(category notify.Category)
}

type nopPublisher struct{}

func (nopPublisher) Publish(notify.Category) {}

// Deps are the collaborators shared by all repositories.
type Deps struct {
	Store     store.Store
	Notifier  Publisher
	Logger    logger.Logger
	Telemetry *telemetry.Provider
}

// Filter narrows a listing. Zero values do not filter; Limit <= 0 means no cap.
type Filter struct {
	Status   string
	Featured *bool
	Read     *bool
	Limit    int
}

func (f Filter) query() store.Query {
	q := store.Query{Limit: f.Limit}
	if status := strings.ToLower(strings.TrimSpace(f.Status)); status != "" {
		q = q.Where("status", status)
	}
	if f.Featured != nil {
		q = q.Where("featured", *f.Featured)
	}
	if f.Read != nil {
		q = q.Where("read", *f.Read)
	}
	return q
}

// validator is implemented by patch types that check themselves.
type validator interface {
	Validate() error
}

// Repository manages one collection of T records.
type Repository[T any] struct {
	store      store.Store
	notifier   Publisher
	logger     logger.Logger
	telemetry  *telemetry.Provider
	collection string
	category   notify.Category
}

// NewRepository binds a repository to a collection and the category it signals.
func NewRepository[T any](deps Deps, collection string, category notify.Category) *Repository[T] {
	r := &Repository[T]{
		store:      deps.Store,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		telemetry:  deps.Telemetry,
		collection: collection,
		category:   category,
	}
	if r.notifier == nil {
		r.notifier = nopPublisher{}
	}
	if r.logger == nil {
		r.logger = logger.NewNop()
	}
	r.logger = r.logger.With(logger.String("collection", collection))
	return r
}

// Collection returns the store collection name.
func (r *Repository[T]) Collection() string { return r.collection }

// Category returns the change category this repository signals.
func (r *Repository[T]) Category() notify.Category { return r.category }

// List returns every record, newest first.
func (r *Repository[T]) List(ctx context.Context) ([]T, error) {
	return r.Find(ctx, Filter{})
}

// Find returns the records matching f, newest first.
func (r *Repository[T]) Find(ctx context.Context, f Filter) (_ []T, err error) {
	ctx, span := r.telemetry.StartSpan(ctx, "content.Find",
		attribute.String("collection", r.collection),
		attribute.Int("limit", f.Limit),
	)
	defer func() {
		r.telemetry.RecordRead(r.collection, resultOf(err))
		telemetry.EndSpan(span, err)
	}()

	docs, err := r.store.Find(ctx, r.collection, f.query())
	if err != nil {
		return nil, translate(err)
	}

	records := make([]T, 0, len(docs))
	for _, doc := range docs {
		record, err := decode[T](doc)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// ListOrEmpty is Find for display paths: a failure is logged and an empty,
// non-nil slice is returned.
func (r *Repository[T]) ListOrEmpty(ctx context.Context, f Filter) []T {
	records, err := r.Find(ctx, f)
	if err != nil {
		r.logger.Error("Failed to list records", logger.Error(err))
		return []T{}
	}
	return records
}

// Get returns the record with id. A missing record is reported through found,
// not as an error.
func (r *Repository[T]) Get(ctx context.Context, id string) (record T, found bool, err error) {
	ctx, span := r.telemetry.StartSpan(ctx, "content.Get",
		attribute.String("collection", r.collection),
		attribute.String("id", id),
	)
	defer func() {
		r.telemetry.RecordRead(r.collection, resultOf(err))
		telemetry.EndSpan(span, err)
	}()

	doc, err := r.store.Get(ctx, r.collection, id)
	if errors.Is(err, store.ErrNotFound) {
		return record, false, nil
	}
	if err != nil {
		return record, false, translate(err)
	}

	record, err = decode[T](doc)
	if err != nil {
		return record, false, err
	}
	return record, true, nil
}

// Create stores record. The store assigns the ID and timestamps; any values
// the caller set for them are ignored.
func (r *Repository[T]) Create(ctx context.Context, record T) (T, error) {
	var zero T
	fields, err := encode(record)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	var created T
	err = r.write(ctx, "create", "", func(ctx context.Context) error {
		doc, err := r.store.Create(ctx, r.collection, fields)
		if err != nil {
			return err
		}
		created, err = decode[T](doc)
		return err
	})
	if err != nil {
		return zero, err
	}
	return created, nil
}

// Update merges patch into the record with id. patch is a map or a struct
// whose JSON form holds only the fields to change, such as model.ContentPatch.
// Map values are normalised through T's JSON form, so a status is stored in
// its canonical casing whichever way the patch is given.
func (r *Repository[T]) Update(ctx context.Context, id string, patch any) (T, error) {
	var zero T
	if v, ok := patch.(validator); ok {
		if err := v.Validate(); err != nil {
			return zero, fmt.Errorf("%w: %w", ErrValidationFailed, err)
		}
	}

	var fields map[string]any
	var err error
	if m, ok := patch.(map[string]any); ok {
		fields, err = canonical[T](m)
	} else {
		fields, err = encode(patch)
	}
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	var updated T
	err = r.write(ctx, "update", id, func(ctx context.Context) error {
		doc, err := r.store.Update(ctx, r.collection, id, fields)
		if err != nil {
			return err
		}
		updated, err = decode[T](doc)
		return err
	})
	if err != nil {
		return zero, err
	}
	return updated, nil
}

// Delete permanently removes the record with id.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	return r.write(ctx, "delete", id, func(ctx context.Context) error {
		return r.store.Delete(ctx, r.collection, id)
	})
}

// write runs fn and, if it succeeds, publishes the repository's category.
func (r *Repository[T]) write(ctx context.Context, op, id string, fn func(context.Context) error) (err error) {
	start := time.Now()
	ctx, span := r.telemetry.StartSpan(ctx, "content."+op,
		attribute.String("collection", r.collection),
		attribute.String("id", id),
	)
	defer func() {
		r.telemetry.RecordWrite(r.collection, op, resultOf(err), time.Since(start))
		telemetry.EndSpan(span, err)
	}()

	if err = translate(fn(ctx)); err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger.Error("Write failed",
				logger.String("op", op),
				logger.String("id", id),
				logger.Error(err),
			)
		}
		return err
	}

	r.notifier.Publish(r.category)
	r.logger.Debug("Change signal published",
		logger.String("op", op),
		logger.String("category", string(r.category)),
	)
	return nil
}

// encode converts a record or patch into a store field map.
func encode(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return fields, nil
}

// canonical rewrites the values of a map patch as T would encode them.
// Keys T does not know pass through unchanged; store-managed keys are dropped.
func canonical[T any](patch map[string]any) (map[string]any, error) {
	fields := make(map[string]any, len(patch))
	for k, v := range patch {
		if !store.IsMetaKey(k) {
			fields[k] = v
		}
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	var record T
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	typed, err := encode(record)
	if err != nil {
		return nil, err
	}

	for k := range fields {
		if v, ok := typed[k]; ok {
			fields[k] = v
		}
	}
	if status, ok := fields["status"]; ok && status == "" {
		return nil, fmt.Errorf("%w: status must not be empty", model.ErrInvalidStatus)
	}
	return fields, nil
}

// decode converts a stored document into T, restoring the store-managed keys.
func decode[T any](doc *store.Document) (T, error) {
	var record T

	fields := make(map[string]any, len(doc.Fields)+3)
	for k, v := range doc.Fields {
		fields[k] = v
	}
	fields[store.KeyID] = doc.ID
	fields[store.KeyCreatedAt] = doc.CreatedAt
	fields[store.KeyUpdatedAt] = doc.UpdatedAt

	data, err := json.Marshal(fields)
	if err != nil {
		return record, fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return record, nil
}
