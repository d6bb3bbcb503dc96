// Package daemon runs the mirror continuously: a periodic full sync on an
// interval, plus an on-demand sync whenever a trigger file is touched in
// the data directory.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sheetsync/ssync/internal/syncer"
)

// TriggerFilename is the file watched for on-demand syncs. Creating or
// writing <dataDir>/sync.trigger forces a full sync ahead of schedule.
const TriggerFilename = "sync.trigger"

// Config holds configuration for the daemon.
type Config struct {
	// Interval is how often a scheduled full sync runs.
	Interval time.Duration

	// Debounce is how long to wait after a trigger-file event before
	// syncing. This batches rapid touches together.
	Debounce time.Duration

	// Prune forwards the prune option to every full sync the daemon runs.
	Prune bool

	// Logger for daemon activity.
	Logger *log.Logger

	// OnResult, if set, is called after every completed sync. The
	// dashboard uses this to broadcast progress.
	OnResult func(*syncer.Result)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval: 15 * time.Minute,
		Debounce: 500 * time.Millisecond,
		Logger:   log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates scheduled and trigger-driven sync runs. At most one
// sync runs at a time; a trigger arriving mid-sync is queued, not dropped.
type Daemon struct {
	syncer  syncer.Syncer
	dataDir string
	config  *Config

	watcher *fsnotify.Watcher

	triggerMu sync.Mutex
	triggerAt time.Time
	pending   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon that syncs via sy and watches dataDir for the
// trigger file.
func New(sy syncer.Syncer, dataDir string, config *Config) (*Daemon, error) {
	if sy == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if dataDir == "" {
		return nil, fmt.Errorf("dataDir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval <= 0 {
		config.Interval = 15 * time.Minute
	}
	if config.Debounce <= 0 {
		config.Debounce = 500 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		syncer:  sy,
		dataDir: dataDir,
		config:  config,
		watcher: watcher,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Perform an initial full sync
// 2. Watch the data directory for the trigger file
// 3. Run a scheduled full sync every Interval
//
// This blocks until ctx is cancelled or startup fails.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Printf("Starting daemon (interval %s)", d.config.Interval)

	if err := d.runSync(ctx); err != nil {
		return fmt.Errorf("initial sync failed: %w", err)
	}

	if err := d.watcher.Add(d.dataDir); err != nil {
		return fmt.Errorf("failed to watch data directory: %w", err)
	}
	d.config.Logger.Printf("Watching %s for %s", d.dataDir, TriggerFilename)

	d.wg.Add(2)
	go d.watchTriggerEvents()
	go d.runLoop(ctx)

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon and waits for in-flight work.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// watchTriggerEvents monitors filesystem events and records trigger touches.
func (d *Daemon) watchTriggerEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Base(event.Name) != TriggerFilename {
				continue
			}

			d.config.Logger.Printf("Trigger event: %s %s", event.Op, event.Name)
			d.triggerMu.Lock()
			d.triggerAt = time.Now()
			d.pending = true
			d.triggerMu.Unlock()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// runLoop drives scheduled syncs and debounced trigger syncs.
func (d *Daemon) runLoop(ctx context.Context) {
	defer d.wg.Done()

	schedule := time.NewTicker(d.config.Interval)
	defer schedule.Stop()

	poll := time.NewTicker(d.config.Debounce)
	defer poll.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-schedule.C:
			if err := d.runSync(ctx); err != nil {
				d.config.Logger.Printf("Scheduled sync failed: %v", err)
			}

		case <-poll.C:
			if !d.takePendingTrigger() {
				continue
			}
			if err := d.runSync(ctx); err != nil {
				d.config.Logger.Printf("Triggered sync failed: %v", err)
			}
		}
	}
}

// takePendingTrigger consumes a queued trigger once its debounce window
// has passed, and removes the trigger file.
func (d *Daemon) takePendingTrigger() bool {
	d.triggerMu.Lock()
	defer d.triggerMu.Unlock()

	if !d.pending {
		return false
	}
	if time.Since(d.triggerAt) < d.config.Debounce {
		return false
	}
	d.pending = false

	path := filepath.Join(d.dataDir, TriggerFilename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		d.config.Logger.Printf("Warning: could not remove trigger file: %v", err)
	}
	return true
}

// runSync performs one full sync and reports the outcome.
func (d *Daemon) runSync(ctx context.Context) error {
	res, err := d.syncer.FullSync(ctx, syncer.FullSyncOptions{Prune: d.config.Prune})
	if err != nil {
		return err
	}

	if !res.OK() {
		d.config.Logger.Printf("Sync completed with %d failure(s)", len(res.Failed))
	}
	if d.config.OnResult != nil {
		d.config.OnResult(res)
	}
	return nil
}
