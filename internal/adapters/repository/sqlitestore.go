package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/okian/raidtrack/internal/domain/model"
	"github.com/okian/raidtrack/pkg/logger"
	"github.com/okian/raidtrack/pkg/metrics"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// goose keeps its base filesystem and dialect in package globals.
var migrateMu sync.Mutex

// SQLiteStore persists one row per runner. Memory stays authoritative: rows that
// failed to write are retried by Flush.
type SQLiteStore struct {
	*memory
	opts options
	db   *sql.DB

	writeMu sync.Mutex
	pending map[int]struct{}
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens the database, applies the embedded migrations and returns an
// empty store. Call Load to read the rows.
func OpenSQLite(ctx context.Context, opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(defaultSQLitePath, opts)
	o.log.Info(ctx, "opening runner database", logger.String("path", o.path))

	db, err := sql.Open("sqlite", o.path)
	if err != nil {
		return nil, fmt.Errorf("open runner database: %w", err)
	}
	// One connection keeps writes serialized and ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if err := optimizeSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(ctx, db, o.log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{
		memory:  newMemory(),
		opts:    o,
		db:      db,
		pending: make(map[int]struct{}),
	}, nil
}

func optimizeSQLite(ctx context.Context, db *sql.DB) error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"journal_mode", "WAL"},
		{"synchronous", "NORMAL"},
		{"busy_timeout", "5000"},
		{"temp_store", "MEMORY"},
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("set PRAGMA %s: %w", p.name, err)
		}
	}
	return nil
}

func runMigrations(ctx context.Context, db *sql.DB, log logger.Logger) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(gooseLogger{ctx: ctx, log: log})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// gooseLogger routes migration output to the structured logger.
type gooseLogger struct {
	ctx context.Context
	log logger.Logger
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.log.Debug(g.ctx, fmt.Sprintf(format, v...))
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.log.Error(g.ctx, fmt.Sprintf(format, v...))
}

// Load reads every row. Rows whose payload cannot be decoded are skipped.
func (s *SQLiteStore) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT bib, payload FROM runners ORDER BY bib`)
	if err != nil {
		s.replace(make(map[int]model.Runner))
		return fmt.Errorf("%w: query runners: %w", ErrMalformed, err)
	}
	defer rows.Close()

	byBib := make(map[int]model.Runner)
	for rows.Next() {
		var (
			bib     int
			payload string
		)
		if err := rows.Scan(&bib, &payload); err != nil {
			s.replace(make(map[int]model.Runner))
			return fmt.Errorf("%w: scan runner row: %w", ErrMalformed, err)
		}
		var r model.Runner
		if err := json.Unmarshal([]byte(payload), &r); err != nil || bib <= 0 {
			s.opts.log.Warn(ctx, "skipping undecodable runner row", logger.Int("bib", bib), logger.Error(err))
			continue
		}
		r.Infos.BibNumber = bib
		byBib[bib] = r
	}
	if err := rows.Err(); err != nil {
		s.replace(make(map[int]model.Runner))
		return fmt.Errorf("%w: read runner rows: %w", ErrMalformed, err)
	}

	s.replace(byBib)
	s.pending = make(map[int]struct{})
	s.opts.log.Info(ctx, "runner cache loaded",
		logger.String("path", s.opts.path),
		logger.Int("runners", len(byBib)))
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(_ context.Context, bib int) (model.Runner, error) { return s.get(bib) }

// Has implements Store.
func (s *SQLiteStore) Has(_ context.Context, bib int) bool { return s.has(bib) }

// Count implements Store.
func (s *SQLiteStore) Count(_ context.Context) int { return s.count() }

// Snapshot implements Store.
func (s *SQLiteStore) Snapshot(_ context.Context) []model.Runner { return s.snapshot() }

// Version implements Store.
func (s *SQLiteStore) Version() uint64 { return s.version.Load() }

// Put validates r, upserts its row and stores it in memory.
func (s *SQLiteStore) Put(ctx context.Context, r model.Runner) error {
	if err := r.Validate(); err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_runner")
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	bib := r.Infos.BibNumber
	err := s.upsert(ctx, &r)
	s.set(&r)
	if err != nil {
		s.pending[bib] = struct{}{}
		return s.persistFailed(ctx, err, bib)
	}
	delete(s.pending, bib)
	return nil
}

// Flush writes the rows whose earlier upsert failed.
func (s *SQLiteStore) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for bib := range s.pending {
		r, err := s.get(bib)
		if err != nil {
			delete(s.pending, bib)
			continue
		}
		if err := s.upsert(ctx, &r); err != nil {
			return s.persistFailed(ctx, err, bib)
		}
		delete(s.pending, bib)
	}
	return nil
}

// Close flushes pending rows and closes the database.
func (s *SQLiteStore) Close() error {
	flushErr := s.Flush(context.Background())
	if err := s.db.Close(); err != nil {
		return err
	}
	return flushErr
}

func (s *SQLiteStore) upsert(ctx context.Context, r *model.Runner) error {
	start := time.Now()
	defer func() {
		metrics.RecordPersistLatency(float64(time.Since(start).Milliseconds()))
	}()

	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO runners(bib, payload, stored_at) VALUES(?, ?, ?)
		ON CONFLICT(bib) DO UPDATE SET payload=excluded.payload, stored_at=excluded.stored_at`,
		r.Infos.BibNumber, string(payload), time.Now().UTC())
	return err
}

func (s *SQLiteStore) persistFailed(ctx context.Context, err error, bib int) error {
	metrics.RecordPersistError()
	s.opts.log.Error(ctx, "persist runner row failed", logger.Int("bib", bib), logger.Error(err))
	return fmt.Errorf("%w: bib %d: %w", ErrPersist, bib, err)
}
