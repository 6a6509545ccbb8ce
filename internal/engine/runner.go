/*
PURPOSE:
  High-level runner that executes a batch of jobs from the config.
  Jobs run on a bounded worker pool; every job becomes one report record.

REQUIREMENTS:
  User-specified:
  - Run every configured job (search, or replay of a stored mapping).
  - Optionally capture the best mapping of a search for later replay.
  - Log results to CSV/JSON (and SQLite when configured).

  Implementation-discovered:
  - Needs to report progress to CLI.
  - Captures look only inside the job's own run directory, so a dump written by a
    job running in parallel is never picked up by mistake.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/engine (Runner), internal/mapstore, internal/result, internal/output

ERROR HANDLING:
  - Logs job errors but continues (resilience); the batch error counts failures.

USAGE:
  engine.Run(ctx, cfg)

RELATED FILES:
  - internal/engine/orchestrator.go
  - internal/engine/setup.go
*/

package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/daryltucker/mapreplay/internal/config"
	"github.com/daryltucker/mapreplay/internal/mapstore"
	"github.com/daryltucker/mapreplay/internal/model"
	"github.com/daryltucker/mapreplay/internal/output"
	"github.com/daryltucker/mapreplay/internal/result"
)

// Sink receives finished records.
type Sink interface {
	Write(model.Record) error
}

// Batch executes config jobs with a Runner.
type Batch struct {
	Runner     *Runner
	Sinks      []Sink
	Workers    int
	MapSuffix  string
	ClearZeros bool
}

// Run executes the full batch described by cfg and writes the report files.
func Run(ctx context.Context, cfg *config.Config) error {
	runner, err := New(ctx, cfg)
	if err != nil {
		return err
	}

	// Ensure output directory exists
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", cfg.OutputDir, err)
	}

	csvPath := filepath.Join(cfg.OutputDir, cfg.OutputFile)
	csvWriter, err := output.NewCSVWriter(csvPath)
	if err != nil {
		return fmt.Errorf("failed to init CSV writer at %s: %w", csvPath, err)
	}
	defer csvWriter.Close()

	jsonPath := filepath.Join(cfg.OutputDir, cfg.JSONFile)
	jsonWriter, err := output.NewJSONWriter(jsonPath)
	if err != nil {
		return fmt.Errorf("failed to init JSON writer at %s: %w", jsonPath, err)
	}
	defer jsonWriter.Close()

	sinks := []Sink{csvWriter, jsonWriter}
	if cfg.SQLiteFile != "" {
		dbPath := cfg.SQLiteFile
		if !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(cfg.OutputDir, dbPath)
		}
		db, err := output.NewSQLiteWriter(dbPath)
		if err != nil {
			return fmt.Errorf("failed to init SQLite store at %s: %w", dbPath, err)
		}
		defer db.Close()
		sinks = append(sinks, db)
	}

	b := &Batch{
		Runner:     runner,
		Sinks:      sinks,
		Workers:    cfg.Workers,
		MapSuffix:  cfg.MapSuffix,
		ClearZeros: cfg.ClearZeros,
	}
	records, err := b.Execute(ctx, cfg.Jobs)
	if err != nil {
		return err
	}

	output.PrintSummary(os.Stdout, records)
	failed := 0
	for _, r := range records {
		if r.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed (see %s)", failed, len(records), csvPath)
	}
	return nil
}

// Execute runs jobs and returns their records in completion order. Job failures
// are recorded, not returned; only cancellation stops the batch.
func (b *Batch) Execute(ctx context.Context, jobs []config.Job) ([]model.Record, error) {
	tasks := make([]func(context.Context) (model.Record, error), len(jobs))
	for i, job := range jobs {
		job := job
		if job.Name == "" {
			job.Name = "job-" + strconv.Itoa(i+1)
		}
		tasks[i] = func(ctx context.Context) (model.Record, error) {
			rec := b.runJob(ctx, job)
			if err := ctx.Err(); err != nil {
				return rec, err
			}
			return rec, nil
		}
	}

	return result.CollectEach(ctx, tasks, result.CollectOptions{
		Workers: b.Workers,
		Progress: func(done, total int) {
			output.Logger.Info("Job finished", "done", done, "total", total)
		},
	})
}

func (b *Batch) runJob(ctx context.Context, job config.Job) model.Record {
	start := time.Now()
	rec := model.Record{
		Job:         job.Name,
		Mode:        model.ModeSearch,
		Macro:       job.Macro,
		Iso:         job.Iso,
		Layer:       job.Layer,
		Variables:   job.Variables,
		MappingFile: job.MappingFile,
		Timestamp:   start,
	}
	if job.MappingFile != "" {
		rec.Mode = model.ModeReplay
	}

	output.Logger.Info("Running job", "job", job.Name, "mode", rec.Mode, "macro", job.Macro, "layer", job.Layer)
	stats, err := b.Runner.Evaluate(ctx, Request{
		Target: Target{
			Macro:  job.Macro,
			Iso:    job.Iso,
			Tile:   job.Tile,
			Chip:   job.Chip,
			System: job.System,
			DNN:    job.DNN,
			Layer:  job.Layer,
		},
		Variables:   job.Variables,
		MappingFile: job.MappingFile,
	})
	if err != nil {
		rec.Duration = time.Since(start)
		rec.Error = err.Error()
		b.write(rec)
		return rec
	}

	if job.SaveMapping != "" && rec.Mode == model.ModeSearch {
		store := &mapstore.Store{Roots: []string{stats.RunDir}, Suffix: b.MapSuffix}
		ok, err := store.Capture(stats, job.SaveMapping)
		switch {
		case err != nil:
			output.Logger.Error("Failed to save mapping", "job", job.Name, "path", job.SaveMapping, "error", err)
			rec.Error = "save mapping: " + err.Error()
		case ok:
			rec.SavedTo = job.SaveMapping
		default:
			output.Logger.Warn("Search produced no mapping to save", "job", job.Name)
		}
	}

	if b.ClearZeros {
		stats.ClearZeroEnergies()
		stats.ClearZeroAreas()
	}
	rec.Fill(stats)
	rec.Duration = time.Since(start)

	output.Logger.Info("Job complete",
		"job", job.Name,
		"energy_pj", rec.Energy,
		"cycles", rec.Cycles,
		"duration", rec.Duration,
	)
	b.write(rec)
	return rec
}

func (b *Batch) write(rec model.Record) {
	for _, s := range b.Sinks {
		if err := s.Write(rec); err != nil {
			output.Logger.Error("Failed to write result", "job", rec.Job, "error", err)
		}
	}
}
