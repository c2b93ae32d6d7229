package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/docqa/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// IndexFileName is the name of the index file inside a session directory.
const IndexFileName = "index.db"

const (
	metaDimensions = "dimensions"
	metaModel      = "model"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore persists one SQLite index file per session.
type VectorStore struct {
	root  string
	model string
}

// Option configures the VectorStore.
type Option func(*VectorStore)

// WithModel records the embedding model name in every saved index.
func WithModel(model string) Option {
	return func(s *VectorStore) {
		s.model = model
	}
}

// NewVectorStore creates a store rooted at the given directory.
// If root is empty, defaults to ~/.docqa/storage.
func NewVectorStore(root string, opts ...Option) (*VectorStore, error) {
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		root = filepath.Join(home, ".docqa", "storage")
	}

	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	s := &VectorStore{root: root}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the directory holding all session indices.
func (s *VectorStore) Root() string {
	return s.root
}

// Path returns the session's index directory, or "" when the id cannot
// name a directory under the root.
func (s *VectorStore) Path(sessionID string) string {
	dir, err := s.dir(sessionID)
	if err != nil {
		return ""
	}
	return dir
}

// dir resolves the session's index directory, refusing ids that would
// escape the root.
func (s *VectorStore) dir(sessionID string) (string, error) {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, sessionID), nil
}

// Exists reports whether the session has a persisted index.
func (s *VectorStore) Exists(sessionID string) bool {
	dir, err := s.dir(sessionID)
	if err != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, IndexFileName))
	return err == nil && info.Mode().IsRegular()
}

// New returns an empty index.
func (s *VectorStore) New() driven.VectorIndex {
	return vectorstore.NewFlatIndex()
}

// Load reads the session's index into memory.
func (s *VectorStore) Load(ctx context.Context, sessionID string) (driven.VectorIndex, error) {
	dir, err := s.dir(sessionID)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, IndexFileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrIndexNotFound)
		}
		return nil, fmt.Errorf("session %s: %w: %v", sessionID, domain.ErrIndexCorrupt, err)
	}

	idx, err := readIndex(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("session %s: %w: %v", sessionID, domain.ErrIndexCorrupt, err)
	}

	logger.Debug("loaded index for session %s: %d chunks, %d dims", sessionID, idx.Len(), idx.Dimensions())
	return idx, nil
}

// Save atomically replaces the session's index with the given one.
func (s *VectorStore) Save(ctx context.Context, sessionID string, index driven.VectorIndex) error {
	dir, err := s.dir(sessionID)
	if err != nil {
		return err
	}

	if _, err := os.Stat(dir); err == nil {
		tmp := filepath.Join(dir, IndexFileName+".tmp")
		if err := s.writeIndex(ctx, tmp, index); err != nil {
			_ = os.Remove(tmp)
			return err
		}
		if err := os.Rename(tmp, filepath.Join(dir, IndexFileName)); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("publishing index: %w", err)
		}
		return nil
	}

	tmpDir, err := os.MkdirTemp(s.root, "."+sessionID+"-*")
	if err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	if err := s.writeIndex(ctx, filepath.Join(tmpDir, IndexFileName), index); err != nil {
		_ = os.RemoveAll(tmpDir)
		return err
	}
	if err := os.Rename(tmpDir, dir); err != nil {
		_ = os.RemoveAll(tmpDir)
		return fmt.Errorf("publishing index: %w", err)
	}
	return nil
}

// Remove deletes the session's index directory.
func (s *VectorStore) Remove(_ context.Context, sessionID string) (bool, error) {
	dir, err := s.dir(sessionID)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checking index directory: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("removing index directory: %w", err)
	}
	return true, nil
}

// writeIndex creates a complete index file at path.
func (s *VectorStore) writeIndex(ctx context.Context, path string, index driven.VectorIndex) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale file: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := migrate(ctx, db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?), (?, ?)`,
		metaDimensions, strconv.Itoa(index.Dimensions()), metaModel, s.model); err != nil {
		return fmt.Errorf("saving meta: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, position, content, source, page, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range index.Chunks() {
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.Position, chunk.Content,
			chunk.Source, nullInt(chunk.Page), float32SliceToBytes(chunk.Embedding)); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// readIndex loads every chunk of an index file.
func readIndex(ctx context.Context, path string) (*vectorstore.FlatIndex, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var dimsValue string
	row := db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaDimensions)
	if err := row.Scan(&dimsValue); err != nil {
		return nil, fmt.Errorf("reading dimensions: %w", err)
	}
	dims, err := strconv.Atoi(dimsValue)
	if err != nil {
		return nil, fmt.Errorf("parsing dimensions: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, position, content, source, page, embedding
		FROM chunks ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var chunk domain.Chunk
		var page sql.NullInt64
		var blob []byte
		if err := rows.Scan(&chunk.ID, &chunk.Position, &chunk.Content,
			&chunk.Source, &page, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if page.Valid {
			chunk.Page = domain.PageRef(int(page.Int64))
		}
		if len(blob)%4 != 0 {
			return nil, fmt.Errorf("chunk %s: truncated embedding", chunk.ID)
		}
		chunk.Embedding = bytesToFloat32Slice(blob)
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	idx := vectorstore.NewFlatIndexWithDimensions(dims)
	if err := idx.Add(chunks); err != nil {
		return nil, err
	}
	return idx, nil
}

// migrate runs all pending migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	// Ensure schema_migrations table exists
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_index.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// nullInt converts an optional page to a nullable column value.
func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
