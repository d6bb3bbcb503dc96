package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CleanupResult reports what a retention cleanup removed. Warnings are
// non-fatal per-artifact failures (e.g. permission denied on a delete).
type CleanupResult struct {
	HistoryRemoved int      `json:"history_removed"`
	TempRemoved    int      `json:"temp_removed"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Cleanup applies the retention policy: the history log keeps only the
// keepN most recent records, and leftover temporary files from crashed
// writes are swept.
//
// Cleanup is safe to run concurrently with a sync that is writing new
// documents: it enumerates artifacts once at the start and acts only on
// those, never on an in-flight temporary write (the history trim runs
// under the same lock as appends).
func (s *Store) Cleanup(keepN int) (*CleanupResult, error) {
	if keepN < 0 {
		return nil, fmt.Errorf("keep count must be >= 0, got %d", keepN)
	}

	res := &CleanupResult{}

	if err := s.trimHistory(keepN, res); err != nil {
		return nil, err
	}
	s.sweepTempFiles(res)

	s.logger.Printf("Cleanup complete: %d history records removed, %d temp files removed, %d warnings",
		res.HistoryRemoved, res.TempRemoved, len(res.Warnings))
	return res, nil
}

// trimHistory drops all but the keepN most recent records. Records are
// appended in completion order, so recency is tail position. A no-op when
// the log is missing or already within bounds.
func (s *Store) trimHistory(keepN int, res *CleanupResult) error {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	hist, err := s.loadHistoryLocked()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	if len(hist.Operations) <= keepN {
		return nil
	}

	removed := len(hist.Operations) - keepN
	hist.Operations = hist.Operations[removed:]
	if err := writeJSONAtomic(filepath.Join(s.dataDir, historyFile), hist); err != nil {
		return err
	}
	res.HistoryRemoved = removed
	return nil
}

// tempFileMaxAge guards against sweeping the temp file of a write that is
// still in flight: anything younger than this is left alone.
const tempFileMaxAge = time.Minute

// sweepTempFiles removes temporary files abandoned by crashed writes. The
// candidate set is snapshotted before any deletion, and files young enough
// to belong to an in-flight write are skipped. Individual delete failures
// become warnings, not errors.
func (s *Store) sweepTempFiles(res *CleanupResult) {
	var candidates []string
	for _, dir := range []string{s.dataDir, s.sheetsDir} {
		matches, err := filepath.Glob(filepath.Join(dir, "*"+tmpMarker+"*"))
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("list temp files in %s: %v", dir, err))
			continue
		}
		candidates = append(candidates, matches...)
	}

	cutoff := time.Now().Add(-tempFileMaxAge)
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("remove %s: %v", filepath.Base(path), err))
			continue
		}
		res.TempRemoved++
	}
}
