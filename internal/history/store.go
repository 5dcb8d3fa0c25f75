package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"deodexer/internal/config"
	"deodexer/internal/job"
)

// ErrRunNotFound is returned when no run matches an identifier.
var ErrRunNotFound = errors.New("run not found")

// ErrAmbiguousRun is returned when an identifier prefix matches several runs.
var ErrAmbiguousRun = errors.New("run identifier is ambiguous")

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Store manages run history persistence.
type Store struct {
	db      *sql.DB
	dialect dialect
	dsn     string
}

// Open connects to dsn and applies migrations. A postgres:// or
// postgresql:// DSN selects PostgreSQL; anything else is a SQLite file path.
func Open(ctx context.Context, dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("history dsn is empty")
	}

	store := &Store{dsn: dsn}
	var err error
	if config.IsPostgresDSN(dsn) {
		store.dialect = dialectPostgres
		store.db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres db: %w", err)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
		store.db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite db: %w", err)
		}
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA foreign_keys = ON",
			"PRAGMA busy_timeout = 5000",
		}
		for _, pragma := range pragmas {
			if _, execErr := store.db.ExecContext(ctx, pragma); execErr != nil {
				_ = store.db.Close()
				return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
			}
		}
	}

	if err := store.db.PingContext(ctx); err != nil {
		_ = store.db.Close()
		return nil, fmt.Errorf("connect history db: %w", err)
	}
	if err := store.applyMigrations(ctx); err != nil {
		_ = store.db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun records a run that has started scheduling.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO runs (
            run_id, started_at, state, input_dir, output_dir, api_level, workers, total
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID,
		formatTime(run.StartedAt),
		run.State,
		run.InputDir,
		run.OutputDir,
		run.APILevel,
		run.Workers,
		run.Total,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final counts and every file outcome in one transaction.
func (s *Store) FinishRun(ctx context.Context, run Run, results []job.Result, cancelled []job.SourceFile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE runs SET finished_at = ?, state = ?, total = ?, succeeded = ?, failed = ?,
            cancelled = ?, wall_ms = ?, fault = ? WHERE run_id = ?`),
		formatTime(run.FinishedAt),
		run.State,
		run.Total,
		run.Succeeded,
		run.Failed,
		run.Cancelled,
		run.WallTime.Milliseconds(),
		nullableString(run.Fault),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO file_results (
            run_id, path, status, exit_code, elapsed_ms, size, output_path, diagnostics
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare file insert: %w", err)
	}
	defer stmt.Close()

	insert := func(rec FileRecord) error {
		_, err := stmt.ExecContext(ctx,
			run.ID,
			rec.Path,
			rec.Status,
			rec.ExitCode,
			rec.Elapsed.Milliseconds(),
			rec.Size,
			nullableString(rec.OutputPath),
			nullableString(rec.Diagnostics),
		)
		if err != nil {
			return fmt.Errorf("insert file result %s: %w", rec.Path, err)
		}
		return nil
	}
	for _, r := range results {
		if err := insert(recordFromResult(r)); err != nil {
			return err
		}
	}
	for _, f := range cancelled {
		if err := insert(FileRecord{Path: f.Path, Status: StatusCancelled, ExitCode: -1, Size: f.Size}); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finish tx: %w", err)
	}
	return nil
}

const runColumns = "run_id, started_at, finished_at, state, input_dir, output_dir, api_level, workers, total, succeeded, failed, cancelled, wall_ms, fault"

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun looks a run up by full identifier or unique prefix.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Run{}, fmt.Errorf("%w: empty identifier", ErrRunNotFound)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+runColumns+` FROM runs WHERE run_id LIKE ? ORDER BY started_at DESC LIMIT 2`), stripWildcards(id)+"%")
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(found) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return found[0], nil
	default:
		for _, run := range found {
			if run.ID == id {
				return run, nil
			}
		}
		return Run{}, fmt.Errorf("%w: %s", ErrAmbiguousRun, id)
	}
}

// FileResults returns the file rows of a run ordered by path.
func (s *Store) FileResults(ctx context.Context, runID string) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT path, status, exit_code, elapsed_ms, size, output_path, diagnostics
        FROM file_results WHERE run_id = ? ORDER BY path`), runID)
	if err != nil {
		return nil, fmt.Errorf("list file results: %w", err)
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		var (
			rec        FileRecord
			elapsedMS  int64
			outputPath sql.NullString
			diag       sql.NullString
		)
		if err := rows.Scan(&rec.Path, &rec.Status, &rec.ExitCode, &elapsedMS, &rec.Size, &outputPath, &diag); err != nil {
			return nil, fmt.Errorf("scan file result: %w", err)
		}
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		rec.OutputPath = outputPath.String
		rec.Diagnostics = diag.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes runs that started before cutoff and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stamp := formatTime(cutoff)
	if _, err := tx.ExecContext(ctx, s.rebind(
		`DELETE FROM file_results WHERE run_id IN (SELECT run_id FROM runs WHERE started_at < ?)`), stamp); err != nil {
		return 0, fmt.Errorf("prune file results: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM runs WHERE started_at < ?`), stamp)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return n, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run         Run
		startedRaw  string
		finishedRaw sql.NullString
		wallMS      int64
		fault       sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&startedRaw,
		&finishedRaw,
		&run.State,
		&run.InputDir,
		&run.OutputDir,
		&run.APILevel,
		&run.Workers,
		&run.Total,
		&run.Succeeded,
		&run.Failed,
		&run.Cancelled,
		&wallMS,
		&fault,
	); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = parseTime(startedRaw)
	if finishedRaw.Valid {
		run.FinishedAt = parseTime(finishedRaw.String)
	}
	run.WallTime = time.Duration(wallMS) * time.Millisecond
	run.Fault = fault.String
	return run, nil
}

// rebind rewrites ? placeholders as $N for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func stripWildcards(s string) string {
	replacer := strings.NewReplacer("%", "", "_", "")
	return replacer.Replace(s)
}
