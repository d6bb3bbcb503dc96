package smartsheet

import (
	"time"

	"github.com/sheetsync/ssync/internal/schema"
)

// Workspace is a workspace listing: identity plus the sheets it contains,
// in the order the API returned them.
type Workspace struct {
	ID        int64
	Name      string
	Permalink string
	Sheets    []SheetInfo
}

// SheetIDs returns the ordered sheet id sequence of the listing.
func (w *Workspace) SheetIDs() []int64 {
	ids := make([]int64, len(w.Sheets))
	for i, sh := range w.Sheets {
		ids[i] = sh.ID
	}
	return ids
}

// SheetInfo is the per-sheet metadata included in a workspace listing.
type SheetInfo struct {
	ID         int64
	Name       string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Wire structs mirror the Smartsheet REST v2 JSON (camelCase field names).
// They exist only for decoding; everything downstream uses schema types.

type wireWorkspace struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Permalink string          `json:"permalink"`
	Sheets    []wireSheetInfo `json:"sheets"`
}

type wireSheetInfo struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	CreatedAt  *time.Time `json:"createdAt"`
	ModifiedAt *time.Time `json:"modifiedAt"`
}

type wireSheet struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	TotalRowCount int          `json:"totalRowCount"`
	CreatedAt     *time.Time   `json:"createdAt"`
	ModifiedAt    *time.Time   `json:"modifiedAt"`
	Columns       []wireColumn `json:"columns"`
	Rows          []wireRow    `json:"rows"`
}

type wireColumn struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	Primary bool   `json:"primary"`
	Index   int    `json:"index"`
}

type wireRow struct {
	ID        int64      `json:"id"`
	RowNumber int        `json:"rowNumber"`
	Cells     []wireCell `json:"cells"`
}

type wireCell struct {
	ColumnID     int64   `json:"columnId"`
	Value        any     `json:"value"`
	DisplayValue *string `json:"displayValue"`
}

func (w *wireWorkspace) toWorkspace() *Workspace {
	ws := &Workspace{
		ID:        w.ID,
		Name:      w.Name,
		Permalink: w.Permalink,
		Sheets:    make([]SheetInfo, 0, len(w.Sheets)),
	}
	for _, sh := range w.Sheets {
		info := SheetInfo{ID: sh.ID, Name: sh.Name}
		if sh.CreatedAt != nil {
			info.CreatedAt = *sh.CreatedAt
		}
		if sh.ModifiedAt != nil {
			info.ModifiedAt = *sh.ModifiedAt
		}
		ws.Sheets = append(ws.Sheets, info)
	}
	return ws
}

// toDocument converts the wire sheet into the persisted document form.
// Column order and cell presence are preserved exactly as returned;
// LastSync is left zero for the sync manager to stamp.
func (w *wireSheet) toDocument() *schema.SheetDocument {
	doc := &schema.SheetDocument{
		Metadata: schema.SheetMeta{
			ID:            w.ID,
			Name:          w.Name,
			TotalRowCount: w.TotalRowCount,
		},
		Columns: make([]schema.Column, 0, len(w.Columns)),
		Rows:    make([]schema.Row, 0, len(w.Rows)),
	}
	if w.CreatedAt != nil {
		doc.Metadata.CreatedAt = *w.CreatedAt
	}
	if w.ModifiedAt != nil {
		doc.Metadata.ModifiedAt = *w.ModifiedAt
	}

	for _, col := range w.Columns {
		doc.Columns = append(doc.Columns, schema.Column{
			ID:      col.ID,
			Title:   col.Title,
			Type:    schema.ColumnType(col.Type),
			Primary: col.Primary,
			Index:   col.Index,
		})
	}

	for _, row := range w.Rows {
		r := schema.Row{
			ID:        row.ID,
			RowNumber: row.RowNumber,
			Cells:     make(map[int64]schema.Cell, len(row.Cells)),
		}
		for _, cell := range row.Cells {
			r.Cells[cell.ColumnID] = schema.Cell{
				Value:        cell.Value,
				DisplayValue: cell.DisplayValue,
			}
		}
		doc.Rows = append(doc.Rows, r)
	}

	return doc
}
