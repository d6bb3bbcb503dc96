package daemon

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sheetsync/ssync/internal/schema"
	"github.com/sheetsync/ssync/internal/store"
	"github.com/sheetsync/ssync/internal/syncer"
)

// stubSyncer counts full syncs and signals each one on a channel.
type stubSyncer struct {
	mu      sync.Mutex
	calls   int
	failErr error

	synced chan struct{}
}

func newStubSyncer() *stubSyncer {
	return &stubSyncer{synced: make(chan struct{}, 16)}
}

func (s *stubSyncer) FullSync(ctx context.Context, opts syncer.FullSyncOptions) (*syncer.Result, error) {
	s.mu.Lock()
	s.calls++
	err := s.failErr
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	select {
	case s.synced <- struct{}{}:
	default:
	}
	return &syncer.Result{Operation: schema.OpFull, Succeeded: []int64{1}}, nil
}

func (s *stubSyncer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubSyncer) SyncSheets(ctx context.Context, ids []int64) (*syncer.Result, error) {
	return nil, errors.New("not implemented")
}

func (s *stubSyncer) Status() (*syncer.StatusReport, error) {
	return nil, errors.New("not implemented")
}

func (s *stubSyncer) Validate(ctx context.Context) (*syncer.ConnectionInfo, error) {
	return nil, errors.New("not implemented")
}

func (s *stubSyncer) Cleanup(keepN int) (*store.CleanupResult, error) {
	return nil, errors.New("not implemented")
}

func testConfig() *Config {
	return &Config{
		Interval: time.Hour, // scheduled syncs out of the picture
		Debounce: 10 * time.Millisecond,
		Logger:   log.New(os.Stderr, "[test] ", 0),
	}
}

// startDaemon runs the daemon in the background and returns after its
// initial sync has completed.
func startDaemon(t *testing.T, d *Daemon, sy *stubSyncer) (cancel func()) {
	t.Helper()

	ctx, cancelCtx := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	select {
	case <-sy.synced:
	case err := <-errCh:
		t.Fatalf("daemon exited before initial sync: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for initial sync")
	}

	return func() {
		cancelCtx()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("daemon exited with error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("timed out waiting for daemon shutdown")
		}
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, t.TempDir(), nil); err == nil {
		t.Error("expected error for nil syncer")
	}
	if _, err := New(newStubSyncer(), "", nil); err == nil {
		t.Error("expected error for empty data directory")
	}
}

func TestDaemonRunsInitialSync(t *testing.T) {
	sy := newStubSyncer()
	d, err := New(sy, t.TempDir(), testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cancel := startDaemon(t, d, sy)
	cancel()

	if got := sy.callCount(); got != 1 {
		t.Errorf("expected exactly 1 sync, got %d", got)
	}
}

func TestDaemonInitialSyncFailureAborts(t *testing.T) {
	sy := newStubSyncer()
	sy.failErr = errors.New("workspace unreachable")

	d, err := New(sy, t.TempDir(), testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := d.Start(context.Background()); err == nil {
		t.Error("expected startup failure when initial sync fails")
	}
}

func TestDaemonTriggerFileForcesSync(t *testing.T) {
	dataDir := t.TempDir()
	sy := newStubSyncer()
	d, err := New(sy, dataDir, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cancel := startDaemon(t, d, sy)
	defer cancel()

	// The watch is registered asynchronously after the initial sync, so
	// keep touching the trigger until a sync is observed.
	trigger := filepath.Join(dataDir, TriggerFilename)
	deadline := time.Now().Add(5 * time.Second)
	for synced := false; !synced; {
		if err := os.WriteFile(trigger, nil, 0o644); err != nil {
			t.Fatalf("failed to write trigger file: %v", err)
		}
		select {
		case <-sy.synced:
			synced = true
		case <-time.After(100 * time.Millisecond):
			if time.Now().After(deadline) {
				t.Fatal("trigger file did not force a sync")
			}
		}
	}

	// The consumed trigger file gets removed.
	deadline = time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(trigger); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("trigger file was not removed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDaemonScheduledSync(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = 20 * time.Millisecond

	sy := newStubSyncer()
	d, err := New(sy, t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cancel := startDaemon(t, d, sy)
	defer cancel()

	select {
	case <-sy.synced:
	case <-time.After(5 * time.Second):
		t.Fatal("no scheduled sync within deadline")
	}
}

func TestDaemonOnResultCallback(t *testing.T) {
	results := make(chan *syncer.Result, 1)
	cfg := testConfig()
	cfg.OnResult = func(r *syncer.Result) {
		select {
		case results <- r:
		default:
		}
	}

	sy := newStubSyncer()
	d, err := New(sy, t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cancel := startDaemon(t, d, sy)
	defer cancel()

	select {
	case res := <-results:
		if res.Operation != schema.OpFull {
			t.Errorf("unexpected operation: %s", res.Operation)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("OnResult was never called")
	}
}
