// Package syncer coordinates the mirror: it pulls sheet data from the
// remote API, applies change detection against the local store, persists
// the results, and records every operation in the sync history.
package syncer

import (
	"context"
	"time"

	"github.com/sheetsync/ssync/internal/schema"
	"github.com/sheetsync/ssync/internal/smartsheet"
	"github.com/sheetsync/ssync/internal/store"
)

// RemoteClient is the slice of the API client the syncer needs. Satisfied
// by *smartsheet.Client.
type RemoteClient interface {
	GetWorkspace(ctx context.Context, id int64) (*smartsheet.Workspace, error)
	GetSheet(ctx context.Context, id int64) (*schema.SheetDocument, error)
}

// Syncer runs sync operations against one workspace and one local store.
// Implementations are safe for use from a single goroutine; the daemon and
// CLI never run two operations concurrently on the same Syncer.
type Syncer interface {
	// FullSync lists the workspace and synchronizes every sheet in it.
	// Per-sheet failures do not fail the operation; they are reported in
	// the Result. A non-nil error means the operation itself could not
	// run (e.g. the workspace listing failed).
	FullSync(ctx context.Context, opts FullSyncOptions) (*Result, error)

	// SyncSheets synchronizes only the named sheet ids. It does not touch
	// the workspace listing or metadata.
	SyncSheets(ctx context.Context, ids []int64) (*Result, error)

	// Status reports the state of the local mirror without touching the
	// network.
	Status() (*StatusReport, error)

	// Validate checks connectivity and credentials by fetching the
	// workspace listing, without writing anything locally.
	Validate(ctx context.Context) (*ConnectionInfo, error)

	// Cleanup applies the retention policy to the history log and sweeps
	// abandoned temporary files.
	Cleanup(keepN int) (*store.CleanupResult, error)
}

// FullSyncOptions controls optional full-sync behavior.
type FullSyncOptions struct {
	// Prune removes local sheet documents whose ids no longer appear in
	// the workspace listing. Off by default; a listing that shrank for
	// the wrong reason would otherwise delete good data.
	Prune bool
}

// Result is the outcome of one sync operation.
type Result struct {
	Operation  schema.SyncOperation `json:"operation"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Duration   time.Duration        `json:"duration"`

	Succeeded []int64          `json:"succeeded"`
	Skipped   []int64          `json:"skipped,omitempty"`
	Failed    map[int64]string `json:"failed,omitempty"`
	Pruned    []int64          `json:"pruned,omitempty"`

	// Sheets holds the per-sheet detail in attempt order.
	Sheets []SheetResult `json:"sheets"`
}

// SheetResult is the per-sheet detail line of a sync result.
type SheetResult struct {
	ID        int64  `json:"id"`
	Name      string `json:"name,omitempty"`
	RowCount  int    `json:"row_count,omitempty"`
	Unchanged bool   `json:"unchanged,omitempty"`
	Err       string `json:"error,omitempty"`

	// cause preserves the underlying error for classification; Err is the
	// rendered form that survives serialization.
	cause error
}

// OK reports whether every attempted sheet succeeded.
func (r *Result) OK() bool { return len(r.Failed) == 0 }

// StatusReport describes the local mirror for the status command.
type StatusReport struct {
	// NeverSynced is set when no full sync has ever completed.
	NeverSynced bool `json:"never_synced"`

	Workspace   *schema.WorkspaceMeta `json:"workspace,omitempty"`
	Sheets      []store.SheetSummary  `json:"sheets"`
	TotalSizeMB float64               `json:"total_size_mb"`

	LastSync   *schema.SyncRecord `json:"last_sync,omitempty"`
	TotalSyncs int                `json:"total_syncs"`
}

// ConnectionInfo is the result of a successful validation probe.
type ConnectionInfo struct {
	WorkspaceID   int64  `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
	SheetCount    int    `json:"sheet_count"`
}
