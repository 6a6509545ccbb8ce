// Package rundir hands out isolated working directories for engine invocations.
//
// A directory is keyed by the process id and a worker id carried on the context.
// Two callers holding different worker ids never share a directory; a caller that
// acquires the same key again gets the directory back empty. Worker ids come from
// one process-wide counter, so ids handed out by NextWorker are never reused by
// another pool or goroutine in the same process. Id 0 is left for contexts that
// carry no worker.
package rundir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
)

// OutputsDirName is the directory under the allocator root that holds run directories.
const OutputsDirName = "outputs"

type workerKey struct{}

var lastWorker atomic.Int64

// NextWorker returns a worker id no other caller in this process has been given.
func NextWorker() int {
	return int(lastWorker.Add(1))
}

// WithWorker returns a context carrying worker id.
func WithWorker(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, workerKey{}, id)
}

// WithNewWorker returns a context carrying a fresh worker id from NextWorker.
func WithNewWorker(ctx context.Context) context.Context {
	return WithWorker(ctx, NextWorker())
}

// EnsureWorker returns ctx unchanged when it already carries a worker id and
// WithNewWorker(ctx) otherwise.
func EnsureWorker(ctx context.Context) context.Context {
	if _, ok := ctx.Value(workerKey{}).(int); ok {
		return ctx
	}
	return WithNewWorker(ctx)
}

// WorkerFromContext returns the worker id on ctx, or 0 when none is set.
func WorkerFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(workerKey{}).(int); ok {
		return id
	}
	return 0
}

// Allocator derives run directories under Root.
type Allocator struct {
	Root string
	// PID defaults to os.Getpid(). Tests set it to simulate other processes.
	PID int
}

// New returns an Allocator rooted at root.
func New(root string) *Allocator {
	return &Allocator{Root: root}
}

// OutputsDir is the parent of every run directory.
func (a *Allocator) OutputsDir() string {
	return filepath.Join(a.Root, OutputsDirName)
}

// Path returns the run directory for ctx without touching the filesystem.
func (a *Allocator) Path(ctx context.Context) string {
	pid := a.PID
	if pid == 0 {
		pid = os.Getpid()
	}
	name := strconv.Itoa(pid) + "." + strconv.Itoa(WorkerFromContext(ctx))
	return filepath.Join(a.OutputsDir(), name)
}

// Acquire wipes any leftover directory for this key and recreates it empty.
func (a *Allocator) Acquire(ctx context.Context) (string, error) {
	dir := a.Path(ctx)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clear run directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run directory %s: %w", dir, err)
	}
	return dir, nil
}
