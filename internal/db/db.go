// Package db persists finished runs. One SQLite file lives in the output
// directory: run metadata in columns for quick listing, the full solution as
// an opaque JSON blob for later inspection or resumption.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"sewplan/internal/engine"
	"sewplan/internal/logger"
)

// Store wraps the SQLite database holding run history.
type Store struct {
	sql *sql.DB
}

// Open opens (or creates) the store inside dir and runs migrations.
func Open(dir string) (*Store, error) {
	path := filepath.Join(dir, "sewplan.db")
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s := &Store{sql: sqlDB}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sql.Close()
}

func (s *Store) migrate() error {
	version := 0
	// Try to read current version
	s.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := s.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS runs (
				id          TEXT PRIMARY KEY,
				started_at  TEXT NOT NULL,
				finished_at TEXT NOT NULL,
				input_file  TEXT NOT NULL,
				iterations  INTEGER NOT NULL,
				best_cost   REAL NOT NULL,
				setup_cost  REAL NOT NULL,
				late_cost   REAL NOT NULL,
				exp_reward  REAL NOT NULL,
				solution    TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

			INSERT INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return err
		}
	}
	return nil
}

// RunRecord is one persisted run.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	InputFile  string
	Iterations int
	BestCost   float64
	SetupCost  float64
	LateCost   float64
	ExpReward  float64
}

// SaveRun stores the run metadata and its final solution, returning the run
// id (generated when empty).
func (s *Store) SaveRun(rec RunRecord, sol *engine.Solution) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	blob, err := json.Marshal(sol)
	if err != nil {
		return "", fmt.Errorf("marshal solution: %w", err)
	}
	_, err = s.sql.Exec(`INSERT INTO runs (
		id, started_at, finished_at, input_file, iterations,
		best_cost, setup_cost, late_cost, exp_reward, solution
	) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		rec.ID,
		rec.StartedAt.UTC().Format(time.RFC3339),
		rec.FinishedAt.UTC().Format(time.RFC3339),
		rec.InputFile,
		rec.Iterations,
		rec.BestCost,
		rec.SetupCost,
		rec.LateCost,
		rec.ExpReward,
		string(blob),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return rec.ID, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.sql.Query(`
		SELECT id, started_at, finished_at, input_file, iterations,
		       best_cost, setup_cost, late_cost, exp_reward
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.InputFile, &r.Iterations,
			&r.BestCost, &r.SetupCost, &r.LateCost, &r.ExpReward); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetSolution loads the persisted solution of one run.
func (s *Store) GetSolution(id string) (*engine.Solution, error) {
	var blob string
	err := s.sql.QueryRow(`SELECT solution FROM runs WHERE id = ?`, id).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	var sol engine.Solution
	if err := json.Unmarshal([]byte(blob), &sol); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &sol, nil
}
