package mapstore

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Candidate is a mapping dump found on disk.
type Candidate struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Candidates lists every dump under Roots, newest first, ties broken by path.
// Roots that do not exist are skipped.
func (s *Store) Candidates() ([]Candidate, error) {
	suffix := s.suffix()
	var out []Candidate
	for _, root := range s.Roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Missing roots, and directories wiped by a concurrent Acquire.
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), suffix) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					// Removed by a concurrent run directory wipe.
					return nil
				}
				return err
			}
			out = append(out, Candidate{Path: path, ModTime: info.ModTime(), Size: info.Size()})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.After(out[j].ModTime)
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}
