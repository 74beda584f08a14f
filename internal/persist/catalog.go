package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"voxelterrain/internal/world"
)

// CatalogFileName is the catalog's file name inside a world directory.
const CatalogFileName = "catalog.db"

// CatalogEntry describes the last save of one chunk.
type CatalogEntry struct {
	Offset    world.ChunkCoord
	Bytes     int
	SavedAt   time.Time
	SaveCount int
}

// Catalog is a SQLite index of the chunk files in a world directory. The
// chunk files stay the source of truth; the catalog answers "what was saved
// and when" without scanning the directory.
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens or creates the catalog at path.
func OpenCatalog(path string) (*Catalog, error) {
	if path == "" {
		return nil, errors.New("empty catalog path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Catalog{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("catalog pragma %q: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS chunk_saves (
		chunk_x    INTEGER NOT NULL,
		chunk_y    INTEGER NOT NULL,
		chunk_z    INTEGER NOT NULL,
		bytes      INTEGER NOT NULL,
		saved_at   INTEGER NOT NULL,
		save_count INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (chunk_x, chunk_y, chunk_z)
	);`)
	if err != nil {
		return fmt.Errorf("catalog schema: %w", err)
	}
	return nil
}

// RecordSave upserts the entry for offset and bumps its save count.
func (c *Catalog) RecordSave(ctx context.Context, offset world.ChunkCoord, size int, savedAt time.Time) error {
	_, err := c.db.ExecContext(ctx, `INSERT INTO chunk_saves (chunk_x, chunk_y, chunk_z, bytes, saved_at, save_count)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT (chunk_x, chunk_y, chunk_z) DO UPDATE SET
			bytes = excluded.bytes,
			saved_at = excluded.saved_at,
			save_count = chunk_saves.save_count + 1`,
		offset.X, offset.Y, offset.Z, size, savedAt.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("record save %v: %w", offset, err)
	}
	return nil
}

// Lookup returns the entry for offset, if the chunk was ever saved.
func (c *Catalog) Lookup(ctx context.Context, offset world.ChunkCoord) (CatalogEntry, bool, error) {
	row := c.db.QueryRowContext(ctx, `SELECT bytes, saved_at, save_count FROM chunk_saves
		WHERE chunk_x = ? AND chunk_y = ? AND chunk_z = ?`, offset.X, offset.Y, offset.Z)
	entry := CatalogEntry{Offset: offset}
	var savedAt int64
	if err := row.Scan(&entry.Bytes, &savedAt, &entry.SaveCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CatalogEntry{}, false, nil
		}
		return CatalogEntry{}, false, fmt.Errorf("lookup %v: %w", offset, err)
	}
	entry.SavedAt = time.Unix(0, savedAt).UTC()
	return entry, true, nil
}

// Count returns the number of distinct chunks saved.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunk_saves`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count saves: %w", err)
	}
	return n, nil
}

// List returns up to limit entries, most recently saved first. A limit of
// zero or less returns every entry.
func (c *Catalog) List(ctx context.Context, limit int) ([]CatalogEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.db.QueryContext(ctx, `SELECT chunk_x, chunk_y, chunk_z, bytes, saved_at, save_count
		FROM chunk_saves ORDER BY saved_at DESC, chunk_x, chunk_y, chunk_z LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	defer rows.Close()

	var out []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		var savedAt int64
		if err := rows.Scan(&e.Offset.X, &e.Offset.Y, &e.Offset.Z, &e.Bytes, &savedAt, &e.SaveCount); err != nil {
			return nil, fmt.Errorf("scan save: %w", err)
		}
		e.SavedAt = time.Unix(0, savedAt).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *Catalog) Close() error {
	return c.db.Close()
}
