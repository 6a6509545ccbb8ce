package output

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/daryltucker/mapreplay/internal/model"
	_ "modernc.org/sqlite"
)

// SQLiteWriter appends records to a SQLite database so results from many batches
// can be queried together. Unlike the CSV and JSON sinks it never truncates.
type SQLiteWriter struct {
	db   *sql.DB
	stmt *sql.Stmt
	mu   sync.Mutex
}

// NewSQLiteWriter opens (or creates) the database and its runs table.
func NewSQLiteWriter(dbPath string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job TEXT NOT NULL,
		mode TEXT NOT NULL,
		macro TEXT,
		iso TEXT,
		layer TEXT,
		variables JSON,
		mapping_file TEXT,
		saved_mapping TEXT,
		timestamp INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		energy_pj REAL,
		cycles INTEGER,
		area_um2 REAL,
		edp REAL,
		energy_breakdown JSON,
		area_breakdown JSON,
		run_dir TEXT,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_macro_layer ON runs(macro, layer);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	stmt, err := db.Prepare(`
		INSERT INTO runs (job, mode, macro, iso, layer, variables, mapping_file, saved_mapping,
			timestamp, duration_ns, energy_pj, cycles, area_um2, edp,
			energy_breakdown, area_breakdown, run_dir, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}

	return &SQLiteWriter{db: db, stmt: stmt}, nil
}

// Write inserts one record.
func (w *SQLiteWriter) Write(r model.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := w.stmt.Exec(
		r.Job, r.Mode, r.Macro, r.Iso, r.Layer, jsonText(r.Variables), r.MappingFile, r.SavedTo,
		r.Timestamp.UnixNano(), int64(r.Duration), r.Energy, r.Cycles, r.Area, r.EDP,
		jsonText(r.EnergyBreakdown), jsonText(r.AreaBreakdown), r.RunDir, r.Error,
	)
	return err
}

// Runs reads back the stored records for one job, oldest first.
func (w *SQLiteWriter) Runs(job string) ([]model.Record, error) {
	rows, err := w.db.Query(`
		SELECT job, mode, macro, iso, layer, mapping_file, saved_mapping,
			timestamp, duration_ns, energy_pj, cycles, area_um2, edp, run_dir, error
		FROM runs WHERE job = ? ORDER BY id`, job)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var (
			r        model.Record
			ts, durN int64
		)
		if err := rows.Scan(&r.Job, &r.Mode, &r.Macro, &r.Iso, &r.Layer, &r.MappingFile, &r.SavedTo,
			&ts, &durN, &r.Energy, &r.Cycles, &r.Area, &r.EDP, &r.RunDir, &r.Error); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(0, ts)
		r.Duration = time.Duration(durN)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the statement and the database.
func (w *SQLiteWriter) Close() error {
	_ = w.stmt.Close()
	return w.db.Close()
}
