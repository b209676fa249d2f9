// Package journal хранит историю запусков в SQLite: по одной строке на запуск.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"procedure-review/shared/models"
)

// Journal - журнал запусков поверх *sql.DB.
type Journal struct {
	db *sql.DB
}

// Open открывает (или создаёт) базу по пути path и применяет миграции.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	j, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// New оборачивает открытую базу и доводит схему до текущей версии.
func New(db *sql.DB) (*Journal, error) {
	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return j, nil
}

func (j *Journal) migrate() error {
	if _, err := j.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := j.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := j.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		j.migrateV1, // v0 → v1: runs table
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := j.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}
	return nil
}

func (j *Journal) migrateV1() error {
	_, err := j.db.Exec(`
	CREATE TABLE IF NOT EXISTS runs (
		run_id         TEXT PRIMARY KEY,
		procedure_name TEXT NOT NULL,
		mode           TEXT NOT NULL,
		status         TEXT NOT NULL,
		failed_stage   TEXT NOT NULL DEFAULT '',
		error_details  TEXT NOT NULL DEFAULT '',
		outcome_json   TEXT,
		started_at     TEXT NOT NULL,
		finished_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_procedure ON runs(procedure_name, started_at DESC);
	`)
	return err
}

// Record сохраняет итог запуска.
func (j *Journal) Record(ctx context.Context, n models.RunNotification) error {
	var outcome sql.NullString
	if n.Outcome != nil {
		raw, err := json.Marshal(n.Outcome)
		if err != nil {
			return fmt.Errorf("encode outcome: %w", err)
		}
		outcome = sql.NullString{String: string(raw), Valid: true}
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, procedure_name, mode, status, failed_stage, error_details, outcome_json, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.RunID, n.ProcedureName, string(n.Mode), string(n.Status), n.FailedStage, n.ErrorDetails, outcome, n.StartedAt, n.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", n.RunID, err)
	}
	return nil
}

// Recent возвращает последние запуски процедуры (или всех процедур при пустом имени), новые первыми.
func (j *Journal) Recent(ctx context.Context, procedureName string, limit int) ([]models.RunNotification, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT run_id, procedure_name, mode, status, failed_stage, error_details, outcome_json, started_at, finished_at
		FROM runs`
	args := []any{}
	if procedureName != "" {
		query += ` WHERE procedure_name = ?`
		args = append(args, procedureName)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunNotification
	for rows.Next() {
		var (
			n       models.RunNotification
			mode    string
			status  string
			outcome sql.NullString
		)
		if err := rows.Scan(&n.RunID, &n.ProcedureName, &mode, &status, &n.FailedStage, &n.ErrorDetails, &outcome, &n.StartedAt, &n.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		n.Mode = models.Mode(mode)
		n.Status = models.RunStatus(status)
		if outcome.Valid {
			var o models.DeliveryOutcome
			if err := json.Unmarshal([]byte(outcome.String), &o); err != nil {
				return nil, fmt.Errorf("decode outcome of run %s: %w", n.RunID, err)
			}
			n.Outcome = &o
		}
		runs = append(runs, n)
	}
	return runs, rows.Err()
}

// Close закрывает базу.
func (j *Journal) Close() error {
	return j.db.Close()
}
