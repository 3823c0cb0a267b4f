// Copyright 2026 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kraklabs/cortex/internal/contract"
	errs "github.com/kraklabs/cortex/internal/errors"
	"github.com/kraklabs/cortex/pkg/embedding"
)

// Document is one vector-indexed record.
type Document struct {
	ID             string         `json:"id"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Embedding      []float32      `json:"-"`
	EmbeddingModel string         `json:"embedding_model"`
	CreatedAt      time.Time      `json:"created_at"`

	seq int64
}

// AddResult reports what an Add persisted.
type AddResult struct {
	ID             string `json:"id"`
	EmbeddingModel string `json:"embedding_model"`
	ContentLength  int    `json:"content_length"`
}

// EmbeddingInfo describes the vectors a collection holds.
type EmbeddingInfo struct {
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	Dimension int    `json:"dimension"`
}

// Stats summarises a collection.
type Stats struct {
	Collection    string        `json:"collection"`
	Count         int64         `json:"count"`
	Path          string        `json:"path"`
	EmbeddingInfo EmbeddingInfo `json:"embedding_info"`
}

// Options configures a Store.
type Options struct {
	// Path is the SQLite database file. The parent directory is created if
	// missing.
	Path string

	// Collection names the bucket this Store binds to.
	Collection string

	// Embedder turns content and query text into vectors. Optional: a store
	// without one can still Get/Delete/List/Stats, but Add and Query fail
	// with NoProviderAvailable.
	Embedder embedding.Provider

	Logger *slog.Logger
}

// Store is a collection-scoped vector store backed by SQLite.
// Mutations hold the write lock; queries share the read lock, so they run
// concurrently and never observe a partial write.
type Store struct {
	db         *sql.DB
	path       string
	collection string
	embedder   embedding.Provider
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool
}

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name      TEXT PRIMARY KEY,
	dimension INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS documents (
	collection      TEXT NOT NULL,
	id              TEXT NOT NULL,
	content         TEXT NOT NULL,
	metadata        TEXT NOT NULL DEFAULT '{}',
	embedding       BLOB NOT NULL,
	embedding_model TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	seq             INTEGER NOT NULL,
	PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_collection_seq
	ON documents(collection, seq);
`

// New opens (or creates) the collection at Options.Path. Opening the same
// (path, collection) pair again reattaches the existing data.
func New(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errs.E(errs.InvalidInput, "vector store path must not be empty")
	}
	if opts.Collection == "" {
		return nil, errs.E(errs.InvalidInput, "collection name must not be empty")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Wrap(errs.StorageIO, "create data dir", err)
		}
	}

	// PRAGMAs ride the DSN; modernc applies them per connection.
	dsn := opts.Path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.StorageIO, "open database", err)
	}
	// WAL allows concurrent readers; SQLite serialises writers itself.
	db.SetMaxOpenConns(4)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.StorageIO, "ping database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.StorageIO, "create schema", err)
	}
	if _, err := db.Exec(
		`INSERT OR IGNORE INTO collections(name, dimension) VALUES(?, 0)`,
		opts.Collection,
	); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.StorageIO, "register collection", err)
	}

	opts.Logger.Debug("vectorstore.open", "path", opts.Path, "collection", opts.Collection)
	return &Store{
		db:         db,
		path:       opts.Path,
		collection: opts.Collection,
		embedder:   opts.Embedder,
		logger:     opts.Logger,
	}, nil
}

// Open is the positional form of New.
func Open(ctx context.Context, path, collection string, embedder embedding.Provider, logger *slog.Logger) (*Store, error) {
	_ = ctx
	return New(Options{Path: path, Collection: collection, Embedder: embedder, Logger: logger})
}

// Collection returns the collection name this store binds to.
func (s *Store) Collection() string { return s.collection }

// Close releases the database. Further calls on the store fail with StorageIO.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) errClosed() error {
	return errs.E(errs.StorageIO, "store is closed")
}

// Add upserts a document. An empty id gets a generated UUID; an existing id
// is replaced atomically. The first successful add locks the collection's
// vector dimension. Stored metadata always carries the system keys
// content_length, embedding_model and created_at (epoch seconds).
func (s *Store) Add(ctx context.Context, content string, metadata map[string]any, id string) (*AddResult, error) {
	if content == "" {
		return nil, errs.E(errs.InvalidInput, "content must not be empty")
	}
	if res := contract.ValidateContent(content); !res.OK {
		return nil, errs.E(errs.InvalidInput, "%s", res.Message)
	}
	if id == "" {
		id = uuid.NewString()
	} else if res := contract.ValidateID(id); !res.OK {
		return nil, errs.E(errs.InvalidInput, "%s", res.Message)
	}
	if s.embedder == nil {
		return nil, errs.E(errs.NoProviderAvailable, "store has no embedding provider")
	}

	// Embed outside the lock so queries keep flowing during provider I/O.
	// On embedding failure the op returns without touching storage.
	vector, model, err := s.embedder.EmbedOne(ctx, content)
	if err != nil {
		if errs.KindOf(err) == "" {
			return nil, errs.Wrap(errs.EmbeddingFailure, "embed content", err)
		}
		return nil, err
	}

	now := time.Now().UTC()

	// System keys ride alongside caller metadata so reads and metadata
	// filters see them; they win over caller keys of the same name.
	merged := make(map[string]any, len(metadata)+3)
	for k, v := range metadata {
		merged[k] = v
	}
	merged["content_length"] = len(content)
	merged["embedding_model"] = model
	merged["created_at"] = now.Unix()

	metaJSON, err := marshalMetadata(merged)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, "marshal metadata", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, s.errClosed()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.Wrap(errs.StorageIO, "begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var dimension int
	if err := tx.QueryRowContext(ctx,
		`SELECT dimension FROM collections WHERE name = ?`, s.collection,
	).Scan(&dimension); err != nil {
		return nil, errs.Wrap(errs.StorageIO, "read collection dimension", err)
	}
	switch {
	case dimension == 0:
		if _, err := tx.ExecContext(ctx,
			`UPDATE collections SET dimension = ? WHERE name = ?`,
			len(vector), s.collection,
		); err != nil {
			return nil, errs.Wrap(errs.StorageIO, "lock collection dimension", err)
		}
	case dimension != len(vector):
		return nil, errs.E(errs.DimensionMismatch,
			"embedding has dimension %d, collection %q is locked to %d",
			len(vector), s.collection, dimension)
	}

	// Replaced documents get a fresh seq: an upsert counts as a new
	// insertion for query tie-breaking.
	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM documents WHERE collection = ?`,
		s.collection,
	).Scan(&seq); err != nil {
		return nil, errs.Wrap(errs.StorageIO, "next sequence", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents
			(collection, id, content, metadata, embedding, embedding_model, created_at, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.collection, id, content, metaJSON,
		encodeVector(vector), model, now.Format(time.RFC3339Nano), seq,
	); err != nil {
		return nil, errs.Wrap(errs.StorageIO, "write document", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.Wrap(errs.StorageIO, "commit", err)
	}

	s.logger.Debug("vectorstore.add",
		"collection", s.collection,
		"id", id,
		"model", model,
		"dimension", len(vector),
	)
	return &AddResult{ID: id, EmbeddingModel: model, ContentLength: len(content)}, nil
}

// Get fetches a document by id.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, s.errClosed()
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, content, metadata, embedding, embedding_model, created_at, seq
		 FROM documents WHERE collection = ? AND id = ?`,
		s.collection, id,
	)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, errs.E(errs.NotFound, "document %q not found in collection %q", id, s.collection)
	}
	if err != nil {
		return nil, errs.Wrap(errs.StorageIO, "read document", err)
	}
	return doc, nil
}

// Delete removes a document by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.errClosed()
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`,
		s.collection, id,
	)
	if err != nil {
		return errs.Wrap(errs.StorageIO, "delete document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.StorageIO, "delete document", err)
	}
	if n == 0 {
		return errs.E(errs.NotFound, "document %q not found in collection %q", id, s.collection)
	}
	s.logger.Debug("vectorstore.delete", "collection", s.collection, "id", id)
	return nil
}

// List returns documents in insertion order, up to limit. limit <= 0 means
// no limit.
func (s *Store) List(ctx context.Context, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, s.errClosed()
	}

	q := `SELECT id, content, metadata, embedding, embedding_model, created_at, seq
	      FROM documents WHERE collection = ? ORDER BY seq`
	args := []any{s.collection}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.Wrap(errs.StorageIO, "list documents", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, errs.Wrap(errs.StorageIO, "scan document", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.StorageIO, "list documents", err)
	}
	return docs, nil
}

// Stats summarises the collection: document count, locked dimension, and the
// model the most recent document was embedded with.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, s.errClosed()
	}

	st := &Stats{Collection: s.collection, Path: s.path}
	if s.embedder != nil {
		st.EmbeddingInfo.Provider = s.embedder.Name()
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, s.collection,
	).Scan(&st.Count); err != nil {
		return nil, errs.Wrap(errs.StorageIO, "count documents", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT dimension FROM collections WHERE name = ?`, s.collection,
	).Scan(&st.EmbeddingInfo.Dimension); err != nil {
		return nil, errs.Wrap(errs.StorageIO, "read dimension", err)
	}
	if st.Count > 0 {
		if err := s.db.QueryRowContext(ctx,
			`SELECT embedding_model FROM documents
			 WHERE collection = ? ORDER BY seq DESC LIMIT 1`, s.collection,
		).Scan(&st.EmbeddingInfo.Model); err != nil && err != sql.ErrNoRows {
			return nil, errs.Wrap(errs.StorageIO, "read embedding model", err)
		}
	}
	return st, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (*Document, error) {
	var (
		doc       Document
		metaJSON  string
		vecBytes  []byte
		createdAt string
	)
	if err := sc.Scan(&doc.ID, &doc.Content, &metaJSON, &vecBytes,
		&doc.EmbeddingModel, &createdAt, &doc.seq); err != nil {
		return nil, err
	}
	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	doc.Embedding = decodeVector(vecBytes)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		doc.CreatedAt = t
	}
	return &doc, nil
}

func marshalMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// encodeVector packs a float32 slice as little-endian bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
