// Package store provides durable, file-per-entity JSON persistence for the
// workspace mirror: sheet documents, workspace metadata, and the sync
// history log, plus retention cleanup.
//
// Every write goes to a temporary file in the target directory and is
// renamed into place, so a reader never observes a partially written
// document and a failed write never corrupts the previously committed one.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sheetsync/ssync/internal/schema"
)

var (
	// ErrNotFound indicates the requested document does not exist yet
	// (e.g. first run, or a sheet never synced).
	ErrNotFound = errors.New("store: not found")

	// ErrStorage indicates a local read or write failure. The previously
	// committed document is intact when a write fails.
	ErrStorage = errors.New("store: storage failure")
)

const (
	workspaceMetaFile = "workspace_meta.json"
	historyFile       = "sync_history.json"
	sheetsDirName     = "sheets"

	sheetFilePrefix = "sheet_"
	tmpMarker       = ".tmp-"
)

// Store persists mirror documents under a single data directory:
//
//	<dataDir>/workspace_meta.json
//	<dataDir>/sync_history.json
//	<dataDir>/sheets/sheet_<id>.json
//
// Sheet writes for different ids are independent; history appends are
// serialized by an internal lock so concurrent syncs never lose a record.
type Store struct {
	dataDir   string
	sheetsDir string

	historyMu sync.Mutex

	logger *log.Logger
}

// New creates a Store rooted at dataDir, creating the directory layout if
// needed. If logger is nil, a default logger writing to stderr is used.
func New(dataDir string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	sheetsDir := filepath.Join(dataDir, sheetsDirName)
	if err := os.MkdirAll(sheetsDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data directories: %v", ErrStorage, err)
	}

	return &Store{
		dataDir:   dataDir,
		sheetsDir: sheetsDir,
		logger:    logger,
	}, nil
}

// DataDir returns the root data directory.
func (s *Store) DataDir() string { return s.dataDir }

// SaveSheet atomically writes the sheet document to its canonical location,
// overwriting any prior document for that sheet id.
func (s *Store) SaveSheet(doc *schema.SheetDocument) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("invalid sheet document: %w", err)
	}

	path := filepath.Join(s.sheetsDir, doc.Filename())
	if err := writeJSONAtomic(path, doc); err != nil {
		return err
	}
	s.logger.Printf("Saved sheet %d (%s)", doc.Metadata.ID, doc.Metadata.Name)
	return nil
}

// LoadSheet reads back a sheet document. Returns ErrNotFound if the sheet
// has never been stored.
func (s *Store) LoadSheet(id int64) (*schema.SheetDocument, error) {
	path := filepath.Join(s.sheetsDir, schema.SheetFilename(id))

	var doc schema.SheetDocument
	if err := readJSON(path, &doc); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: sheet %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &doc, nil
}

// SaveWorkspaceMeta atomically writes the workspace metadata document.
func (s *Store) SaveWorkspaceMeta(meta *schema.WorkspaceMeta) error {
	path := filepath.Join(s.dataDir, workspaceMetaFile)
	if err := writeJSONAtomic(path, meta); err != nil {
		return err
	}
	s.logger.Printf("Saved workspace metadata (%s)", meta.Name)
	return nil
}

// LoadWorkspaceMeta reads back the workspace metadata document.
// Returns ErrNotFound before the first full sync.
func (s *Store) LoadWorkspaceMeta() (*schema.WorkspaceMeta, error) {
	var meta schema.WorkspaceMeta
	if err := readJSON(filepath.Join(s.dataDir, workspaceMetaFile), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// AppendHistory appends one sync record to the history log, creating the
// log on first use. Appends are serialized under a lock and written back
// atomically, so concurrent sync operations never lose a record. The log
// is unbounded here; bounding happens only via Cleanup.
func (s *Store) AppendHistory(rec schema.SyncRecord) error {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	hist, err := s.loadHistoryLocked()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		hist = &schema.History{}
	}

	hist.Operations = append(hist.Operations, rec)
	if err := writeJSONAtomic(filepath.Join(s.dataDir, historyFile), hist); err != nil {
		return err
	}
	s.logger.Printf("Appended %s sync record (%d succeeded, %d failed)",
		rec.Operation, len(rec.Succeeded), len(rec.Failed))
	return nil
}

// LoadHistory reads the full history log. Returns ErrNotFound if no sync
// has ever recorded an outcome.
func (s *Store) LoadHistory() (*schema.History, error) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	return s.loadHistoryLocked()
}

func (s *Store) loadHistoryLocked() (*schema.History, error) {
	var hist schema.History
	if err := readJSON(filepath.Join(s.dataDir, historyFile), &hist); err != nil {
		return nil, err
	}
	return &hist, nil
}

// readJSON loads a JSON document. Missing file maps to ErrNotFound,
// anything else to ErrStorage.
func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return fmt.Errorf("%w: read %s: %v", ErrStorage, filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrStorage, filepath.Base(path), err)
	}
	return nil
}

// writeJSONAtomic writes v as indented JSON via a temporary file in the
// same directory followed by a rename. If anything fails before the
// rename, the previous file (if any) is left untouched.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStorage, filepath.Base(path), err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+tmpMarker+"*")
	if err != nil {
		return fmt.Errorf("%w: create temp file in %s: %v", ErrStorage, dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", ErrStorage, filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: sync %s: %v", ErrStorage, filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", ErrStorage, filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: commit %s: %v", ErrStorage, filepath.Base(path), err)
	}
	return nil
}

// SheetSummary is the per-sheet line of a status report, derived from the
// stored documents without touching the network.
type SheetSummary struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	RowCount int     `json:"row_count"`
	SizeKB   float64 `json:"size_kb"`
	LastSync string  `json:"last_sync,omitempty"`
}

// SheetSummaries returns a summary for every stored sheet document, sorted
// by id. Unreadable documents are logged and skipped, not fatal.
func (s *Store) SheetSummaries() ([]SheetSummary, error) {
	entries, err := os.ReadDir(s.sheetsDir)
	if err != nil {
		return nil, fmt.Errorf("%w: list sheets: %v", ErrStorage, err)
	}

	var summaries []SheetSummary
	for _, entry := range entries {
		id, ok := sheetIDFromFilename(entry.Name())
		if !ok {
			continue
		}

		doc, err := s.LoadSheet(id)
		if err != nil {
			s.logger.Printf("Warning: skipping unreadable sheet file %s: %v", entry.Name(), err)
			continue
		}

		var sizeKB float64
		if info, err := entry.Info(); err == nil {
			sizeKB = float64(info.Size()) / 1024.0
		}

		sum := SheetSummary{
			ID:       doc.Metadata.ID,
			Name:     doc.Metadata.Name,
			RowCount: doc.Metadata.TotalRowCount,
			SizeKB:   sizeKB,
		}
		if !doc.Metadata.LastSync.IsZero() {
			sum.LastSync = doc.Metadata.LastSync.Format("2006-01-02 15:04:05")
		}
		summaries = append(summaries, sum)
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries, nil
}

// PruneSheets deletes stored sheet documents whose ids are not in keep.
// Returns the ids that were removed. Only call this with a fresh, complete
// workspace listing; pruning on a partial listing loses data.
func (s *Store) PruneSheets(keep []int64) ([]int64, error) {
	keepSet := make(map[int64]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}

	entries, err := os.ReadDir(s.sheetsDir)
	if err != nil {
		return nil, fmt.Errorf("%w: list sheets: %v", ErrStorage, err)
	}

	var removed []int64
	for _, entry := range entries {
		id, ok := sheetIDFromFilename(entry.Name())
		if !ok {
			continue
		}
		if _, kept := keepSet[id]; kept {
			continue
		}
		if err := os.Remove(filepath.Join(s.sheetsDir, entry.Name())); err != nil {
			return removed, fmt.Errorf("%w: prune sheet %d: %v", ErrStorage, id, err)
		}
		s.logger.Printf("Pruned orphaned sheet %d", id)
		removed = append(removed, id)
	}
	return removed, nil
}

// sheetIDFromFilename parses "sheet_<id>.json"; temp files and anything
// else in the directory are ignored.
func sheetIDFromFilename(name string) (int64, bool) {
	if !strings.HasPrefix(name, sheetFilePrefix) || !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	if strings.Contains(name, tmpMarker) {
		return 0, false
	}

	var id int64
	if _, err := fmt.Sscanf(name, sheetFilePrefix+"%d.json", &id); err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
