// Package store persists finished evaluation runs in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Noofbiz/acousticEval/metrics"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Run for an unknown id.
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	mode          TEXT NOT NULL,
	pattern       TEXT NOT NULL,
	depth         INTEGER NOT NULL,
	samples       INTEGER NOT NULL,
	device        TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_metrics (
	run_id        TEXT NOT NULL,
	model         TEXT NOT NULL,
	metric        TEXT NOT NULL,
	value         REAL,
	PRIMARY KEY (run_id, model, metric),
	FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS runs_created ON runs(created_at);
`

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Mode names the evaluation regime of a run.
type Mode string

const (
	ModeBatch   Mode = "batch"
	ModeRollout Mode = "rollout"
)

// Run is one stored evaluation.
type Run struct {
	ID        string
	Mode      Mode
	Pattern   string
	Depth     int
	Samples   int
	Device    string
	CreatedAt time.Time

	// Results holds the averaged metrics per model name.
	Results map[string]metrics.Values
}

// Models returns the model names of r in sorted order.
func (r Run) Models() []string {
	names := make([]string, 0, len(r.Results))
	for name := range r.Results {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Store manages evaluation runs in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations. Paths
// starting with ":memory:" or "file::memory:" give a private in-memory
// database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if strings.Contains(path, ":memory:") {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores r and returns its id. A new uuid is assigned when r.ID is
// empty and the current time when r.CreatedAt is zero.
func (s *Store) SaveRun(r Run) (string, error) {
	if r.Mode != ModeBatch && r.Mode != ModeRollout {
		return "", fmt.Errorf("unknown run mode %q", r.Mode)
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, mode, pattern, depth, samples, device, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Mode), r.Pattern, r.Depth, r.Samples, r.Device, r.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	for _, model := range r.Models() {
		for name, value := range r.Results[model].Map() {
			if _, err := tx.Exec(
				`INSERT INTO run_metrics (run_id, model, metric, value) VALUES (?, ?, ?, ?)`,
				r.ID, model, name, nullable(value),
			); err != nil {
				return "", fmt.Errorf("insert metric %s/%s: %w", model, name, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return r.ID, nil
}

// Run loads one run with its metrics.
func (s *Store) Run(id string) (Run, error) {
	row := s.db.QueryRow(
		`SELECT run_id, mode, pattern, depth, samples, device, created_at FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}
	if err := s.loadResults(&r); err != nil {
		return Run{}, err
	}
	return r, nil
}

// ListRuns returns the most recent runs first. A non-positive limit returns
// every run.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT run_id, mode, pattern, depth, samples, device, created_at FROM runs
		 ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range runs {
		if err := s.loadResults(&runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// nullable stores NaN as NULL, which SQLite cannot hold as a REAL.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var mode, created string
	if err := sc.Scan(&r.ID, &mode, &r.Pattern, &r.Depth, &r.Samples, &r.Device, &created); err != nil {
		return Run{}, err
	}
	r.Mode = Mode(mode)
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return Run{}, fmt.Errorf("parse created_at: %w", err)
	}
	r.CreatedAt = t
	return r, nil
}

func (s *Store) loadResults(r *Run) error {
	rows, err := s.db.Query(`SELECT model, metric, value FROM run_metrics WHERE run_id = ?`, r.ID)
	if err != nil {
		return fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	values := make(map[string]map[string]float64)
	for rows.Next() {
		var model, metric string
		var value sql.NullFloat64
		if err := rows.Scan(&model, &metric, &value); err != nil {
			return err
		}
		if values[model] == nil {
			values[model] = make(map[string]float64)
		}
		values[model][metric] = math.NaN()
		if value.Valid {
			values[model][metric] = value.Float64
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	r.Results = make(map[string]metrics.Values, len(values))
	for model, m := range values {
		r.Results[model] = metrics.Values{
			MSE:      m[metrics.MSE],
			L2Loss:   m[metrics.L2Loss],
			H1Loss:   m[metrics.H1Loss],
			RelL2:    m[metrics.RelL2],
			MaxError: m[metrics.MaxError],
		}
	}
	return nil
}
