package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNoSnapshot = errors.New("snapshot not available")

// Store is an open snapshot database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens an existing snapshot file without modifying its schema.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, path)
		}
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying handle for ad hoc queries.
func (s *Store) DB() *sql.DB { return s.db }

// Load reads every table of the snapshot into memory.
func (s *Store) Load(ctx context.Context) (*Source, error) {
	start := time.Now()
	src, err := readTables(ctx, s.db, "")
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", s.path, err)
	}
	src.Budget, err = readBudget(ctx, s.db, `SELECT `+budgetColumns+` FROM budget ORDER BY id`, "budget")
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", s.path, err)
	}

	if src.LastUpdated, err = s.lastUpdated(ctx); err != nil {
		return nil, err
	}
	kv, err := s.readKVTable(ctx)
	if err != nil {
		return nil, err
	}
	src.ContractedHoursUpdatedMonth = kv.ContractedHoursUpdatedMonth

	slog.DebugContext(ctx, "Snapshot loaded",
		"path", s.path,
		"volumes", len(src.Volumes),
		"uos", len(src.UOS),
		"hours", len(src.Hours),
		"income_stmt", len(src.IncomeStatement),
		"duration_ms", time.Since(start).Milliseconds())
	return src, nil
}

func (s *Store) lastUpdated(ctx context.Context) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT modified FROM meta ORDER BY modified DESC LIMIT 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read meta: %w", err)
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	slog.WarnContext(ctx, "Unparseable snapshot modified time", "path", s.path, "value", raw)
	return time.Time{}, nil
}

func (s *Store) readKVTable(ctx context.Context) (KV, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM _kv ORDER BY id DESC LIMIT 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return KV{}, nil
	}
	if err != nil {
		return KV{}, fmt.Errorf("read kv table: %w", err)
	}
	var kv KV
	if err := json.Unmarshal([]byte(raw), &kv); err != nil {
		return KV{}, fmt.Errorf("decode kv table: %w", err)
	}
	return kv, nil
}

// LoadFile opens path, loads it and closes it. When kvPath is not empty the
// JSON side file overrides the key/value settings stored in the database.
func LoadFile(ctx context.Context, path, kvPath string) (*Source, error) {
	st, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	src, err := st.Load(ctx)
	if err != nil {
		return nil, err
	}
	if kvPath != "" {
		kv, err := ReadKV(kvPath)
		switch {
		case err == nil:
			if kv.ContractedHoursUpdatedMonth != "" {
				src.ContractedHoursUpdatedMonth = kv.ContractedHoursUpdatedMonth
			}
		case errors.Is(err, os.ErrNotExist):
			slog.WarnContext(ctx, "KV file missing, using values from snapshot", "path", kvPath)
		default:
			return nil, err
		}
	}
	return src, nil
}
