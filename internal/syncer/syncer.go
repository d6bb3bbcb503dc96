package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sheetsync/ssync/internal/schema"
	"github.com/sheetsync/ssync/internal/smartsheet"
	"github.com/sheetsync/ssync/internal/store"
)

// Config assembles a Syncer.
type Config struct {
	Client      RemoteClient
	Store       *store.Store
	WorkspaceID int64

	// Parallelism bounds concurrent sheet fetches. Defaults to 1, which
	// keeps remote ordering deterministic and the rate limiter calm.
	Parallelism int

	Logger *log.Logger
}

type syncer struct {
	client      RemoteClient
	store       *store.Store
	workspaceID int64
	parallelism int
	logger      *log.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a Syncer from the given configuration.
func New(cfg Config) (Syncer, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.WorkspaceID == 0 {
		return nil, fmt.Errorf("workspace id is required")
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[syncer] ", log.LstdFlags)
	}

	return &syncer{
		client:      cfg.Client,
		store:       cfg.Store,
		workspaceID: cfg.WorkspaceID,
		parallelism: cfg.Parallelism,
		logger:      cfg.Logger,
		now:         time.Now,
	}, nil
}

// target is one sheet to synchronize. Name is known only for full syncs,
// where the workspace listing supplies it.
type target struct {
	id   int64
	name string
}

func (s *syncer) FullSync(ctx context.Context, opts FullSyncOptions) (*Result, error) {
	start := s.now()
	s.logger.Printf("Starting full sync of workspace %d", s.workspaceID)

	ws, err := s.client.GetWorkspace(ctx, s.workspaceID)
	if err != nil {
		s.recordFailedStart(schema.OpFull, start, err)
		return nil, fmt.Errorf("list workspace %d: %w", s.workspaceID, err)
	}

	meta := &schema.WorkspaceMeta{
		ID:           ws.ID,
		Name:         ws.Name,
		SheetIDs:     ws.SheetIDs(),
		LastFullSync: start,
	}
	if err := s.store.SaveWorkspaceMeta(meta); err != nil {
		s.recordFailedStart(schema.OpFull, start, err)
		return nil, fmt.Errorf("save workspace metadata: %w", err)
	}

	targets := make([]target, len(ws.Sheets))
	for i, sh := range ws.Sheets {
		targets[i] = target{id: sh.ID, name: sh.Name}
	}

	res := s.syncPool(ctx, schema.OpFull, start, targets)

	if opts.Prune {
		pruned, err := s.store.PruneSheets(ws.SheetIDs())
		if err != nil {
			s.logger.Printf("Warning: prune incomplete: %v", err)
		}
		res.Pruned = pruned
	}

	s.finish(res, targets)
	return res, nil
}

func (s *syncer) SyncSheets(ctx context.Context, ids []int64) (*Result, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("no sheet ids given")
	}
	start := s.now()
	s.logger.Printf("Starting selective sync of %d sheet(s)", len(ids))

	targets := make([]target, len(ids))
	for i, id := range ids {
		targets[i] = target{id: id}
	}

	res := s.syncPool(ctx, schema.OpSelective, start, targets)
	s.finish(res, targets)
	return res, nil
}

// syncPool fetches and stores each target, at most parallelism at a time.
// An authentication failure cancels the pool; targets that never ran are
// reported as aborted rather than silently dropped.
func (s *syncer) syncPool(ctx context.Context, op schema.SyncOperation, start time.Time, targets []target) *Result {
	results := make([]SheetResult, len(targets))
	done := make([]bool, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			sr := s.syncOne(gctx, t)
			results[i] = sr
			done[i] = true
			if sr.Err != "" && errors.Is(sr.cause, smartsheet.ErrAuth) {
				return fmt.Errorf("sheet %d: %w", t.id, sr.cause)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Printf("Sync aborted: %v", err)
	}

	res := &Result{
		Operation: op,
		StartedAt: start,
		Failed:    make(map[int64]string),
	}
	for i, t := range targets {
		if !done[i] {
			results[i] = SheetResult{ID: t.id, Name: t.name, Err: "aborted"}
		}
		sr := results[i]
		res.Sheets = append(res.Sheets, sr)
		if sr.Err != "" {
			res.Failed[t.id] = sr.Err
			continue
		}
		res.Succeeded = append(res.Succeeded, t.id)
		if sr.Unchanged {
			res.Skipped = append(res.Skipped, t.id)
		}
	}
	return res
}

// syncOne fetches a single sheet and persists it, skipping the content
// write when the remote modification timestamp matches the stored one.
func (s *syncer) syncOne(ctx context.Context, t target) SheetResult {
	doc, err := s.client.GetSheet(ctx, t.id)
	if err != nil {
		s.logger.Printf("Failed to fetch sheet %d: %v", t.id, err)
		return SheetResult{ID: t.id, Name: t.name, Err: err.Error(), cause: err}
	}

	now := s.now()

	prev, err := s.store.LoadSheet(t.id)
	switch {
	case err == nil:
		if !doc.Metadata.ModifiedAt.IsZero() && prev.Metadata.ModifiedAt.Equal(doc.Metadata.ModifiedAt) {
			// Unmodified remotely; only the sync timestamp moves.
			prev.Metadata.LastSync = now
			if err := s.store.SaveSheet(prev); err != nil {
				return SheetResult{ID: t.id, Name: prev.Metadata.Name, Err: err.Error(), cause: err}
			}
			s.logger.Printf("Sheet %d unchanged, skipped", t.id)
			return SheetResult{
				ID:        t.id,
				Name:      prev.Metadata.Name,
				RowCount:  prev.Metadata.TotalRowCount,
				Unchanged: true,
			}
		}
	case errors.Is(err, store.ErrNotFound):
		// First sync of this sheet.
	default:
		s.logger.Printf("Warning: could not read stored sheet %d, refetching in full: %v", t.id, err)
	}

	doc.Metadata.LastSync = now
	if err := s.store.SaveSheet(doc); err != nil {
		return SheetResult{ID: t.id, Name: doc.Metadata.Name, Err: err.Error(), cause: err}
	}
	return SheetResult{
		ID:       t.id,
		Name:     doc.Metadata.Name,
		RowCount: doc.Metadata.TotalRowCount,
	}
}

// finish stamps timing on the result and appends the history record. A
// history write failure never fails a sync that already persisted data.
func (s *syncer) finish(res *Result, targets []target) {
	res.FinishedAt = s.now()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)

	ids := make([]int64, len(targets))
	for i, t := range targets {
		ids[i] = t.id
	}

	rec := schema.SyncRecord{
		Timestamp: res.StartedAt,
		Operation: res.Operation,
		SheetIDs:  ids,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Skipped:   res.Skipped,
		Pruned:    res.Pruned,
		Duration:  res.Duration,
	}
	if err := s.store.AppendHistory(rec); err != nil {
		s.logger.Printf("Warning: could not record sync history: %v", err)
	}

	s.logger.Printf("%s sync finished in %s: %d succeeded (%d unchanged), %d failed",
		res.Operation, res.Duration.Round(time.Millisecond),
		len(res.Succeeded), len(res.Skipped), len(res.Failed))
}

// recordFailedStart records an operation that could not run at all, so the
// history still shows the attempt.
func (s *syncer) recordFailedStart(op schema.SyncOperation, start time.Time, cause error) {
	rec := schema.SyncRecord{
		Timestamp: start,
		Operation: op,
		Error:     cause.Error(),
		Duration:  s.now().Sub(start),
	}
	if err := s.store.AppendHistory(rec); err != nil {
		s.logger.Printf("Warning: could not record sync history: %v", err)
	}
}

func (s *syncer) Status() (*StatusReport, error) {
	return StatusFromStore(s.store)
}

// StatusFromStore builds a status report straight from the store, without
// an API client. The status command uses this so it works with no
// credentials configured.
func StatusFromStore(st *store.Store) (*StatusReport, error) {
	rep := &StatusReport{}

	meta, err := st.LoadWorkspaceMeta()
	switch {
	case err == nil:
		rep.Workspace = meta
	case errors.Is(err, store.ErrNotFound):
		rep.NeverSynced = true
	default:
		return nil, err
	}

	sums, err := st.SheetSummaries()
	if err != nil {
		return nil, err
	}
	rep.Sheets = sums
	for _, sum := range sums {
		rep.TotalSizeMB += sum.SizeKB / 1024.0
	}

	hist, err := st.LoadHistory()
	switch {
	case err == nil:
		rep.TotalSyncs = len(hist.Operations)
		if n := len(hist.Operations); n > 0 {
			last := hist.Operations[n-1]
			rep.LastSync = &last
		}
	case errors.Is(err, store.ErrNotFound):
		// No syncs yet.
	default:
		return nil, err
	}

	return rep, nil
}

func (s *syncer) Validate(ctx context.Context) (*ConnectionInfo, error) {
	ws, err := s.client.GetWorkspace(ctx, s.workspaceID)
	if err != nil {
		return nil, fmt.Errorf("validate workspace %d: %w", s.workspaceID, err)
	}
	return &ConnectionInfo{
		WorkspaceID:   ws.ID,
		WorkspaceName: ws.Name,
		SheetCount:    len(ws.Sheets),
	}, nil
}

func (s *syncer) Cleanup(keepN int) (*store.CleanupResult, error) {
	return s.store.Cleanup(keepN)
}
