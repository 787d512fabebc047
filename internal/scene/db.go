// Package scene provides the scene documents that bridge tasks edit.
// Documents live in an SQLite database; one of them can be the active stage.
package scene

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrNoActiveDocument is returned when no stage is open.
	ErrNoActiveDocument = errors.New("no active document")
	// ErrPrimNotFound is returned when a prim path does not exist in a document.
	ErrPrimNotFound = errors.New("prim not found")
	// ErrUploadNotFound is returned when a staged upload does not exist.
	ErrUploadNotFound = errors.New("upload not found")
)

// Store wraps an SQLite database holding documents, their prims and staged mesh uploads.
type Store struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// DefaultStorePath returns the path to the scene database under the XDG data directory.
func DefaultStorePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "formalink", "scene.db")
}

// Open opens the scene database at path and applies pending migrations.
// Parent directories are created if missing.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Executors write from several goroutines; a single connection keeps
	// SQLite from returning SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Documents},
		{2, migrationV2Prims},
		{3, migrationV3Uploads},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Documents = `
CREATE TABLE IF NOT EXISTS documents (
	path TEXT PRIMARY KEY,
	dirty INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	saved_at DATETIME
);
`

const migrationV2Prims = `
CREATE TABLE IF NOT EXISTS prims (
	document TEXT NOT NULL REFERENCES documents(path) ON DELETE CASCADE,
	path TEXT NOT NULL,
	type TEXT NOT NULL,
	points BLOB,
	face_vertex_counts BLOB,
	face_vertex_indices BLOB,
	PRIMARY KEY (document, path)
);
`

const migrationV3Uploads = `
CREATE TABLE IF NOT EXISTS uploads (
	id TEXT PRIMARY KEY,
	points BLOB NOT NULL,
	created_at DATETIME NOT NULL
);
`

// transaction runs fn within a transaction.
func (s *Store) transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// EnsureDocument creates the document row for path if it does not exist yet.
func (s *Store) EnsureDocument(ctx context.Context, path string) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO documents (path, created_at) VALUES (?, ?)",
			path, formatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("create document %s: %w", path, err)
		}
		return nil
	})
}

// DocumentExists reports whether a document has been created at path.
func (s *Store) DocumentExists(ctx context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE path = ?", path).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup document %s: %w", path, err)
	}
	return n > 0, nil
}

// Document returns a handle to the document at path, creating it if needed.
func (s *Store) Document(ctx context.Context, path string) (Document, error) {
	if err := s.EnsureDocument(ctx, path); err != nil {
		return nil, err
	}
	return &sqlDocument{store: s, path: path}, nil
}

// StageUpload stores an uploaded mesh under id until an import consumes it.
// Uploading the same id again replaces the previous mesh.
func (s *Store) StageUpload(ctx context.Context, id string, m Mesh) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO uploads (id, points, created_at) VALUES (?, ?, ?)",
			id, encodePoints(m.Points), formatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("stage upload %s: %w", id, err)
		}
		return nil
	})
}

// Uploads returns the ids of staged uploads starting with prefix, oldest first.
func (s *Store) Uploads(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx,
		"SELECT id FROM uploads WHERE substr(id, 1, length(?)) = ? ORDER BY rowid",
		prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Upload returns the staged mesh for id.
func (s *Store) Upload(ctx context.Context, id string) (Mesh, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob []byte
	err := s.conn.QueryRowContext(ctx, "SELECT points FROM uploads WHERE id = ?", id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return Mesh{}, fmt.Errorf("%w: %s", ErrUploadNotFound, id)
	}
	if err != nil {
		return Mesh{}, fmt.Errorf("read upload %s: %w", id, err)
	}
	points, err := decodePoints(blob)
	if err != nil {
		return Mesh{}, err
	}
	return Triangulate(points), nil
}

// DeleteUpload removes a staged upload. Missing ids are ignored.
func (s *Store) DeleteUpload(ctx context.Context, id string) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM uploads WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete upload %s: %w", id, err)
		}
		return nil
	})
}

// ExpireUploads removes uploads staged before cutoff and reports how many
// were removed.
func (s *Store) ExpireUploads(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM uploads WHERE created_at < ?", formatTime(cutoff))
		if err != nil {
			return fmt.Errorf("expire uploads: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

// timeFormat has fixed-width fractional seconds so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}
