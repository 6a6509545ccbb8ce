/*
PURPOSE:
  Persists the best mapping a search found so it can be replayed later.

REQUIREMENTS:
  User-specified:
  - Prefer the mapping the engine handed back in memory.
  - Otherwise scrape the newest engine-generated *.map.txt under the output roots.
  - "Nothing found" is a normal outcome, reported as false rather than an error.

  Implementation-discovered:
  - Roots are injected so tests (and multiple workspaces) never share global state.
  - Ties on modification time break on path so repeated calls pick the same file.
  - The scraped dump is human-oriented; it may not be a valid mapping file.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (batch run), internal/cli (search --save-mapping, list-maps)
  - Uses: internal/result, internal/mapping, internal/output

ERROR HANDLING:
  - Empty capture -> (false, nil) plus a warning.
  - Filesystem errors -> (false, err).

RELATED FILES:
  - internal/mapstore/scan.go
*/

package mapstore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/daryltucker/mapreplay/internal/mapping"
	"github.com/daryltucker/mapreplay/internal/output"
	"github.com/daryltucker/mapreplay/internal/result"
)

// DefaultSuffix marks the engine's textual mapping dumps.
const DefaultSuffix = ".map.txt"

// Store captures mappings into files.
type Store struct {
	// Roots are searched recursively for mapping dumps.
	Roots []string
	// Suffix defaults to DefaultSuffix.
	Suffix string
	Logger *slog.Logger
}

// New returns a Store scanning roots.
func New(roots ...string) *Store {
	return &Store{Roots: roots}
}

func (s *Store) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return output.Logger
}

func (s *Store) suffix() string {
	if s.Suffix != "" {
		return s.Suffix
	}
	return DefaultSuffix
}

// Capture writes the mapping behind src to dest. The in-memory mapping wins over
// anything on disk; failing that the newest dump under Roots is copied byte for
// byte. It returns false with a nil error when there was nothing to capture, in
// which case dest is not created.
func (s *Store) Capture(src result.MappingCarrier, dest string) (bool, error) {
	if content, ok := src.BestMapping().Content(); ok {
		if err := writeFile(dest, []byte(content)); err != nil {
			return false, err
		}
		s.logger().Info("Saved best mapping", "path", dest)
		s.checkFidelity(dest, []byte(content))
		return true, nil
	}

	candidates, err := s.Candidates()
	if err != nil {
		return false, err
	}
	if len(candidates) == 0 {
		s.logger().Warn("No mapping in the run result or any output directory", "roots", s.Roots)
		return false, nil
	}

	for _, c := range candidates {
		data, err := os.ReadFile(c.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Wiped by a concurrent Acquire since the scan.
				s.logger().Debug("Mapping dump vanished, trying the next one", "path", c.Path)
				continue
			}
			return false, fmt.Errorf("read mapping dump %s: %w", c.Path, err)
		}
		if err := writeFile(dest, data); err != nil {
			return false, err
		}
		s.logger().Info("Saved best mapping", "path", dest, "source", c.Path)
		s.checkFidelity(dest, data)
		return true, nil
	}
	s.logger().Warn("Every mapping dump disappeared before it could be read", "roots", s.Roots)
	return false, nil
}

// checkFidelity warns when the captured text is not something the engine can
// read back as a mapping file. The file itself is left as written.
func (s *Store) checkFidelity(dest string, data []byte) {
	if err := mapping.Check(data); err != nil {
		s.logger().Warn("Captured mapping is not a replayable mapping file; convert it before replay",
			"path", dest, "error", err)
	}
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write mapping %s: %w", path, err)
	}
	return nil
}
