package scene

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// primTypeMesh is the only prim type the bridge authors.
const primTypeMesh = "Mesh"

// Document is a mutable scene document.
type Document interface {
	// Path is the document's location, e.g. omniverse://localhost/Projects/Forma/site.usd.
	Path() string
	// DefineMesh creates or replaces the mesh prim at primPath.
	DefineMesh(ctx context.Context, primPath string, m Mesh) error
	// DeleteMesh removes the prim at primPath. Returns ErrPrimNotFound if absent.
	DeleteMesh(ctx context.Context, primPath string) error
	// Mesh reads the mesh prim at primPath.
	Mesh(ctx context.Context, primPath string) (Mesh, error)
	// Prims lists prim paths starting with prefix, sorted.
	Prims(ctx context.Context, prefix string) ([]string, error)
	// Save marks all changes as persisted.
	Save(ctx context.Context) error
	// Dirty reports whether the document has unsaved changes.
	Dirty(ctx context.Context) (bool, error)
}

// sqlDocument is a Document backed by the Store.
type sqlDocument struct {
	store *Store
	path  string
}

var _ Document = (*sqlDocument)(nil)

func (d *sqlDocument) Path() string {
	return d.path
}

func (d *sqlDocument) DefineMesh(ctx context.Context, primPath string, m Mesh) error {
	return d.store.transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO prims (document, path, type, points, face_vertex_counts, face_vertex_indices)
			VALUES (?, ?, ?, ?, ?, ?)`,
			d.path, primPath, primTypeMesh,
			encodePoints(m.Points), encodeInts(m.FaceVertexCounts), encodeInts(m.FaceVertexIndices))
		if err != nil {
			return fmt.Errorf("define mesh %s: %w", primPath, err)
		}
		return markDirty(ctx, tx, d.path)
	})
}

func (d *sqlDocument) DeleteMesh(ctx context.Context, primPath string) error {
	return d.store.transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM prims WHERE document = ? AND path = ?", d.path, primPath)
		if err != nil {
			return fmt.Errorf("delete mesh %s: %w", primPath, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete mesh %s: %w", primPath, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s in %s", ErrPrimNotFound, primPath, d.path)
		}
		return markDirty(ctx, tx, d.path)
	})
}

func (d *sqlDocument) Mesh(ctx context.Context, primPath string) (Mesh, error) {
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()

	var points, counts, indices []byte
	err := d.store.conn.QueryRowContext(ctx,
		"SELECT points, face_vertex_counts, face_vertex_indices FROM prims WHERE document = ? AND path = ?",
		d.path, primPath).Scan(&points, &counts, &indices)
	if errors.Is(err, sql.ErrNoRows) {
		return Mesh{}, fmt.Errorf("%w: %s in %s", ErrPrimNotFound, primPath, d.path)
	}
	if err != nil {
		return Mesh{}, fmt.Errorf("read mesh %s: %w", primPath, err)
	}

	pts, err := decodePoints(points)
	if err != nil {
		return Mesh{}, err
	}
	return Mesh{
		Points:            pts,
		FaceVertexCounts:  decodeInts(counts),
		FaceVertexIndices: decodeInts(indices),
	}, nil
}

func (d *sqlDocument) Prims(ctx context.Context, prefix string) ([]string, error) {
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()

	rows, err := d.store.conn.QueryContext(ctx, "SELECT path FROM prims WHERE document = ?", d.path)
	if err != nil {
		return nil, fmt.Errorf("list prims: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan prim: %w", err)
		}
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (d *sqlDocument) Save(ctx context.Context) error {
	return d.store.transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE documents SET dirty = 0, saved_at = ? WHERE path = ?",
			formatTime(time.Now()), d.path)
		if err != nil {
			return fmt.Errorf("save %s: %w", d.path, err)
		}
		return nil
	})
}

func (d *sqlDocument) Dirty(ctx context.Context) (bool, error) {
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()

	var dirty int
	err := d.store.conn.QueryRowContext(ctx, "SELECT dirty FROM documents WHERE path = ?", d.path).Scan(&dirty)
	if err != nil {
		return false, fmt.Errorf("read document %s: %w", d.path, err)
	}
	return dirty != 0, nil
}

func markDirty(ctx context.Context, tx *sql.Tx, path string) error {
	if _, err := tx.ExecContext(ctx, "UPDATE documents SET dirty = 1 WHERE path = ?", path); err != nil {
		return fmt.Errorf("mark %s dirty: %w", path, err)
	}
	return nil
}
