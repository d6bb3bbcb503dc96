// Package schema provides the document structures persisted by the mirror:
// sheet documents, workspace metadata, and sync history records.
package schema

import (
	"fmt"
	"time"
)

// ColumnType is the Smartsheet column type tag (e.g. TEXT_NUMBER, PICKLIST).
// The full set is open-ended on the API side, so unknown tags are preserved
// as-is rather than rejected.
type ColumnType string

const (
	ColumnTypeTextNumber  ColumnType = "TEXT_NUMBER"
	ColumnTypeDate        ColumnType = "DATE"
	ColumnTypeDatetime    ColumnType = "DATETIME"
	ColumnTypeCheckbox    ColumnType = "CHECKBOX"
	ColumnTypePicklist    ColumnType = "PICKLIST"
	ColumnTypeContactList ColumnType = "CONTACT_LIST"
	ColumnTypeDuration    ColumnType = "DURATION"
)

// Column is one typed column of a sheet. Order within a sheet document is
// significant and matches the order the API returned.
type Column struct {
	ID      int64      `json:"id"`
	Title   string     `json:"title"`
	Type    ColumnType `json:"type"`
	Primary bool       `json:"primary,omitempty"`
	Index   int        `json:"index"`
}

// Cell holds the raw typed value and its human rendering at a row/column
// intersection. Both may be null in the source data.
type Cell struct {
	Value        any     `json:"value"`
	DisplayValue *string `json:"display_value"`
}

// Row is one row of a sheet. Cells are keyed by column id; columns absent
// from the remote payload for this row are simply absent from the map.
// encoding/json serializes the int64 keys as decimal strings, which matches
// the on-disk format.
type Row struct {
	ID        int64          `json:"id"`
	RowNumber int            `json:"row_number"`
	Cells     map[int64]Cell `json:"cells"`
}

// SheetMeta is the metadata block of a sheet document.
type SheetMeta struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	TotalRowCount int       `json:"total_row_count"`
	CreatedAt     time.Time `json:"created_at"`
	ModifiedAt    time.Time `json:"modified_at"`

	// LastSync is the local timestamp of the write (or no-op check) that
	// produced this document. It is the only field that changes when a
	// sync finds the sheet unmodified.
	LastSync time.Time `json:"last_sync"`
}

// SheetDocument is the persisted form of one sheet: one JSON file per sheet,
// wholly replaced on each successful sync. It always reflects a single
// atomic remote read.
type SheetDocument struct {
	Metadata SheetMeta `json:"metadata"`
	Columns  []Column  `json:"columns"`
	Rows     []Row     `json:"rows"`
}

// Validate checks that the document is well-formed enough to persist.
func (d *SheetDocument) Validate() error {
	if d.Metadata.ID == 0 {
		return fmt.Errorf("sheet id is required")
	}
	if d.Metadata.Name == "" {
		return fmt.Errorf("sheet name is required")
	}
	for i, col := range d.Columns {
		if col.ID == 0 {
			return fmt.Errorf("column %d: id is required", i)
		}
	}
	return nil
}

// Filename returns the canonical filename for this sheet: sheet_{id}.json
func (d *SheetDocument) Filename() string {
	return SheetFilename(d.Metadata.ID)
}

// SheetFilename returns the canonical filename for a sheet id.
func SheetFilename(id int64) string {
	return fmt.Sprintf("sheet_%d.json", id)
}

// WorkspaceMeta is the single workspace metadata document. Its SheetIDs
// sequence is the authoritative enumeration for a full sync.
type WorkspaceMeta struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	SheetIDs     []int64 `json:"sheet_ids"`
	LastFullSync time.Time `json:"last_full_sync"`
}

// SyncOperation distinguishes full from selective sync records.
type SyncOperation string

const (
	// OpFull synchronizes every sheet listed in the workspace.
	OpFull SyncOperation = "full"
	// OpSelective synchronizes an explicitly named subset of sheet ids.
	OpSelective SyncOperation = "selective"
)

// SyncRecord describes one completed sync operation. Records are immutable
// once written; the history is append-only and bounded only by cleanup.
type SyncRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	Operation SyncOperation `json:"operation"`

	// SheetIDs is the full set of ids the operation attempted.
	SheetIDs []int64 `json:"sheet_ids"`

	Succeeded []int64          `json:"succeeded"`
	Failed    map[int64]string `json:"failed,omitempty"`

	// Skipped lists sheets found unmodified (store step was a no-op).
	// Skipped ids also appear in Succeeded.
	Skipped []int64 `json:"skipped,omitempty"`

	// Pruned lists local documents removed because their ids vanished
	// from the workspace listing (opt-in, full sync only).
	Pruned []int64 `json:"pruned,omitempty"`

	// Error is set when the operation itself could not start (e.g. the
	// workspace listing failed); per-sheet failures go in Failed instead.
	Error string `json:"error,omitempty"`

	Duration time.Duration `json:"duration"`
}

// History is the ordered, append-only sequence of sync records.
type History struct {
	Operations []SyncRecord `json:"sync_operations"`
}
