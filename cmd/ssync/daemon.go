package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sheetsync/ssync/internal/daemon"
	"github.com/sheetsync/ssync/internal/dashboard"
	"github.com/sheetsync/ssync/internal/syncer"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run continuous synchronization",
	Long: `Run ssync as a long-lived daemon: a full sync on startup, another
every interval, and an immediate sync whenever the trigger file
(<data-dir>/sync.trigger) is created or touched.

With --dashboard-port a WebSocket dashboard is served alongside, streaming
per-sheet outcomes and run summaries to connected clients.

Example usage:
  ssync daemon                          # sync every 15 minutes
  ssync daemon --interval 5m
  ssync daemon --dashboard-port 8080
  touch data/sync.trigger               # force a sync from another shell`,
	Run: func(cmd *cobra.Command, args []string) {
		interval, _ := cmd.Flags().GetDuration("interval")
		prune, _ := cmd.Flags().GetBool("prune")
		dashPort, _ := cmd.Flags().GetInt("dashboard-port")

		cfg, err := loadConfig()
		if err != nil {
			fail(err)
		}
		sy, st, err := newSyncer(cfg)
		if err != nil {
			fail(err)
		}

		dcfg := daemon.DefaultConfig()
		dcfg.Interval = interval
		dcfg.Prune = prune
		dcfg.Logger = newLogger(cfg, "daemon")

		// Optional dashboard, fed by the daemon's result callback.
		if dashPort > 0 {
			server := dashboard.NewServer(&dashboard.Config{
				Port:   dashPort,
				Logger: newLogger(cfg, "dashboard"),
			})
			if err := server.Start(); err != nil {
				fail(err)
			}
			defer func() {
				if err := server.Stop(); err != nil {
					fmt.Fprintf(os.Stderr, "Error stopping dashboard: %v\n", err)
				}
			}()
			fmt.Printf("Dashboard: http://localhost:%d (ws://localhost:%d/ws)\n", dashPort, dashPort)

			handler := dashboard.NewHandler(server, newLogger(cfg, "dashboard"))
			dcfg.OnResult = func(res *syncer.Result) {
				handler.OnSyncResult(res)
				if rep, err := sy.Status(); err == nil {
					handler.PublishStatus(rep)
				}
			}
		}

		d, err := daemon.New(sy, st.DataDir(), dcfg)
		if err != nil {
			fail(err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("Syncing every %s; touch %s/%s to force a run. Ctrl+C to stop.\n",
			interval, st.DataDir(), daemon.TriggerFilename)

		if err := d.Start(ctx); err != nil {
			fail(err)
		}
	},
}

func init() {
	daemonCmd.Flags().Duration("interval", 15*time.Minute, "time between scheduled full syncs")
	daemonCmd.Flags().Bool("prune", false, "prune orphaned sheets on every full sync")
	daemonCmd.Flags().Int("dashboard-port", 0, "serve the WebSocket dashboard on this port (0 disables)")

	rootCmd.AddCommand(daemonCmd)
}
