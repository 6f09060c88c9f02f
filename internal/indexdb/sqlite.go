// Package indexdb maintains a small sqlite catalogue of decoded world
// files so tooling can browse saves without re-decoding them.
package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"terramap/internal/export"
)

type Index struct {
	db *sql.DB
}

type Row struct {
	Path        string
	Name        string
	WorldID     int
	GUID        string
	FileVersion int
	TilesWide   int
	TilesHigh   int
	Hardmode    bool
	Chests      int
	Signs       int
	NPCs        int
	IndexedAt   string
}

func Open(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
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
	return &Index{db: db}, nil
}

func (x *Index) Close() error { return x.db.Close() }

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS worlds (
			path TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			world_id INTEGER NOT NULL,
			guid TEXT,
			file_version INTEGER NOT NULL,
			tiles_wide INTEGER NOT NULL,
			tiles_high INTEGER NOT NULL,
			hardmode INTEGER NOT NULL,
			chests INTEGER NOT NULL,
			signs INTEGER NOT NULL,
			npcs INTEGER NOT NULL,
			indexed_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_worlds_world_id ON worlds(world_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Upsert records one decoded world, replacing any previous row for the
// same file path.
func (x *Index) Upsert(ctx context.Context, path string, s export.Summary) error {
	_, err := x.db.ExecContext(ctx, `
		INSERT INTO worlds (path, name, world_id, guid, file_version,
			tiles_wide, tiles_high, hardmode, chests, signs, npcs, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name=excluded.name,
			world_id=excluded.world_id,
			guid=excluded.guid,
			file_version=excluded.file_version,
			tiles_wide=excluded.tiles_wide,
			tiles_high=excluded.tiles_high,
			hardmode=excluded.hardmode,
			chests=excluded.chests,
			signs=excluded.signs,
			npcs=excluded.npcs,
			indexed_at=excluded.indexed_at`,
		path, s.Name, s.WorldID, s.GUID, s.FileVersion,
		s.TilesWide, s.TilesHigh, boolInt(s.Hardmode),
		len(s.Chests), len(s.Signs), len(s.NPCs),
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// Prune removes rows whose world file no longer exists on disk and
// returns how many were dropped.
func (x *Index) Prune(ctx context.Context) (int, error) {
	rows, err := x.db.QueryContext(ctx, `SELECT path FROM worlds`)
	if err != nil {
		return 0, err
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, err
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			stale = append(stale, p)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, p := range stale {
		if _, err := x.db.ExecContext(ctx, `DELETE FROM worlds WHERE path = ?`, p); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

// List returns every indexed world ordered by name.
func (x *Index) List(ctx context.Context) ([]Row, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT path, name, world_id, COALESCE(guid, ''), file_version,
			tiles_wide, tiles_high, hardmode, chests, signs, npcs, indexed_at
		FROM worlds ORDER BY name, path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var hard int
		if err := rows.Scan(&r.Path, &r.Name, &r.WorldID, &r.GUID, &r.FileVersion,
			&r.TilesWide, &r.TilesHigh, &hard, &r.Chests, &r.Signs, &r.NPCs,
			&r.IndexedAt); err != nil {
			return nil, err
		}
		r.Hardmode = hard != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
