package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"tradingmodels/internal/logger"
	"tradingmodels/pkg/model"
)

// SQLiteRecorder persists run summaries to a SQLite database
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *logger.Logger
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations
func NewSQLiteRecorder(dbPath string, log *logger.Logger) (*SQLiteRecorder, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Debug("run recorder opened", logger.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS training_runs (
			id              TEXT PRIMARY KEY,
			symbol          TEXT NOT NULL,
			bar_interval    TEXT NOT NULL,
			started_at      INTEGER NOT NULL,
			finished_at     INTEGER NOT NULL,
			row_count       INTEGER,
			train_rows      INTEGER,
			validation_rows INTEGER,
			epochs          INTEGER,
			accuracy        REAL,
			f1              REAL,
			roc_auc         REAL,
			model_path      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON training_runs(started_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores one finished run
func (r *SQLiteRecorder) RecordRun(ctx context.Context, run model.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var auc sql.NullFloat64
	if run.ROCAUC != nil {
		auc = sql.NullFloat64{Float64: *run.ROCAUC, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO training_runs
		(id, symbol, bar_interval, started_at, finished_at, row_count, train_rows, validation_rows,
		 epochs, accuracy, f1, roc_auc, model_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Symbol, run.Interval,
		run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
		run.Rows, run.TrainRows, run.ValidationRows,
		run.Epochs, run.Accuracy, run.F1, auc, run.ModelPath,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns the newest runs first; limit <= 0 returns all
func (r *SQLiteRecorder) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `SELECT id, symbol, bar_interval, started_at, finished_at, row_count, train_rows,
		validation_rows, epochs, accuracy, f1, roc_auc, model_path
		FROM training_runs ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var (
			run               model.RunRecord
			started, finished int64
			auc               sql.NullFloat64
		)
		if err := rows.Scan(&run.ID, &run.Symbol, &run.Interval, &started, &finished,
			&run.Rows, &run.TrainRows, &run.ValidationRows, &run.Epochs,
			&run.Accuracy, &run.F1, &auc, &run.ModelPath); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = time.UnixMilli(started).UTC()
		run.FinishedAt = time.UnixMilli(finished).UTC()
		if auc.Valid {
			v := auc.Float64
			run.ROCAUC = &v
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close closes the database
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
