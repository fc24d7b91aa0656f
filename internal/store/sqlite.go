package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	fields TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(collection, created_at DESC);
`

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteStore keeps all collections in one table, with fields as JSON text
// and timestamps as Unix microseconds.
type SQLiteStore struct {
	db    *sqlx.DB
	clock clock
	now   func() time.Time
}

type documentRow struct {
	ID        string `db:"id"`
	Fields    string `db:"fields"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

func (r *documentRow) document() (*Document, error) {
	fields := map[string]any{}
	if err := json.Unmarshal([]byte(r.Fields), &fields); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", r.ID, err)
	}
	return &Document{
		ID:        r.ID,
		Fields:    fields,
		CreatedAt: fromMicros(r.CreatedAt),
		UpdatedAt: fromMicros(r.UpdatedAt),
	}, nil
}

// OpenSQLite opens or creates the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return NewSQLiteStore(db), nil
}

// NewSQLiteStore wraps an open database whose schema already exists.
func NewSQLiteStore(db *sqlx.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Create inserts a new document.
func (s *SQLiteStore) Create(ctx context.Context, collection string, fields map[string]any) (*Document, error) {
	data, err := json.Marshal(sanitize(fields))
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	ts := s.clock.stamp(s.now(), time.Time{}).UnixMicro()
	row := documentRow{ID: uuid.NewString(), Fields: string(data), CreatedAt: ts, UpdatedAt: ts}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, fields, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		collection, row.ID, row.Fields, row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return nil, unavailable("create", err)
	}

	return row.document()
}

func (s *SQLiteStore) load(ctx context.Context, q sqlx.QueryerContext, op, collection, id string) (*documentRow, error) {
	var row documentRow
	err := sqlx.GetContext(ctx, q, &row, `
		SELECT id, fields, created_at, updated_at
		FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable(op, err)
	}
	return &row, nil
}

// Get retrieves a document by ID.
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	row, err := s.load(ctx, s.db, "get", collection, id)
	if err != nil {
		return nil, err
	}
	return row.document()
}

// Update merges fields into a stored document inside a transaction.
func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields map[string]any) (*Document, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, unavailable("update", err)
	}
	defer func() { _ = tx.Rollback() }()

	row, err := s.load(ctx, tx, "update", collection, id)
	if err != nil {
		return nil, err
	}
	old, err := row.document()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(merge(old.Fields, fields))
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	row.Fields = string(data)
	row.UpdatedAt = s.clock.stamp(s.now(), old.UpdatedAt).UnixMicro()

	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET fields = ?, updated_at = ?
		WHERE collection = ? AND id = ?`,
		row.Fields, row.UpdatedAt, collection, id,
	); err != nil {
		return nil, unavailable("update", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("update", err)
	}

	return row.document()
}

// Delete removes a document.
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return unavailable("delete", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return unavailable("delete", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// sqlValue converts a filter value to what json_extract yields for it.
func sqlValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

// Find returns matching documents, newest first.
func (s *SQLiteStore) Find(ctx context.Context, collection string, q Query) ([]*Document, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, fields, created_at, updated_at FROM documents WHERE collection = ?`)
	args := []any{collection}

	for _, f := range q.Filters {
		if !fieldNamePattern.MatchString(f.Field) {
			return nil, fmt.Errorf("invalid filter field %q", f.Field)
		}
		sb.WriteString(` AND json_extract(fields, ?) = ?`)
		args = append(args, "$."+f.Field, sqlValue(f.Value))
	}
	sb.WriteString(` ORDER BY created_at DESC, id DESC`)
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, sb.String(), args...); err != nil {
		return nil, unavailable("find", err)
	}

	docs := make([]*Document, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
