package schema

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func testDocument() *SheetDocument {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	modified := time.Date(2025, 6, 15, 18, 30, 0, 0, time.UTC)

	return &SheetDocument{
		Metadata: SheetMeta{
			ID:            4583173393803140,
			Name:          "Project Plan",
			TotalRowCount: 2,
			CreatedAt:     created,
			ModifiedAt:    modified,
		},
		Columns: []Column{
			{ID: 7960873114331012, Title: "Task", Type: ColumnTypeTextNumber, Primary: true, Index: 0},
			{ID: 642523719853956, Title: "Done", Type: ColumnTypeCheckbox, Index: 1},
		},
		Rows: []Row{
			{
				ID:        6572427401553796,
				RowNumber: 1,
				Cells: map[int64]Cell{
					7960873114331012: {Value: "Kickoff", DisplayValue: strPtr("Kickoff")},
					642523719853956:  {Value: true, DisplayValue: nil},
				},
			},
			{
				ID:        1068827867132804,
				RowNumber: 2,
				// Second cell intentionally absent: the remote payload
				// omitted it, so the map omits it too.
				Cells: map[int64]Cell{
					7960873114331012: {Value: "Design review", DisplayValue: strPtr("Design review")},
				},
			},
		},
	}
}

func TestSheetDocumentRoundTrip(t *testing.T) {
	doc := testDocument()

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var got SheetDocument
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if got.Metadata.ID != doc.Metadata.ID || got.Metadata.Name != doc.Metadata.Name {
		t.Errorf("metadata mismatch: got %+v", got.Metadata)
	}
	if len(got.Columns) != 2 || got.Columns[0].Title != "Task" || got.Columns[1].Index != 1 {
		t.Errorf("columns not preserved: %+v", got.Columns)
	}
	if len(got.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got.Rows))
	}
	if len(got.Rows[1].Cells) != 1 {
		t.Errorf("expected absent cell to stay absent, got %d cells", len(got.Rows[1].Cells))
	}
	cell, ok := got.Rows[0].Cells[642523719853956]
	if !ok {
		t.Fatal("checkbox cell missing after round trip")
	}
	if cell.Value != true {
		t.Errorf("expected checkbox value true, got %v", cell.Value)
	}
	if cell.DisplayValue != nil {
		t.Errorf("expected nil display value, got %q", *cell.DisplayValue)
	}
}

func TestCellMapKeysSerializeAsStrings(t *testing.T) {
	doc := testDocument()

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	// The on-disk format keys cells by the decimal string form of the
	// column id. The in-memory model uses int64 keys.
	if !strings.Contains(string(data), `"7960873114331012":`) {
		t.Errorf("expected string column-id key in JSON output, got: %s", data)
	}
}

func TestSheetDocumentValidate(t *testing.T) {
	doc := testDocument()
	if err := doc.Validate(); err != nil {
		t.Errorf("valid document rejected: %v", err)
	}

	doc.Metadata.ID = 0
	if err := doc.Validate(); err == nil {
		t.Error("expected error for missing sheet id")
	}

	doc = testDocument()
	doc.Metadata.Name = ""
	if err := doc.Validate(); err == nil {
		t.Error("expected error for missing sheet name")
	}

	doc = testDocument()
	doc.Columns[1].ID = 0
	if err := doc.Validate(); err == nil {
		t.Error("expected error for column without id")
	}
}

func TestSheetFilename(t *testing.T) {
	doc := testDocument()
	want := "sheet_4583173393803140.json"
	if got := doc.Filename(); got != want {
		t.Errorf("Filename() = %q, want %q", got, want)
	}
}
