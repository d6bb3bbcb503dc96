package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sheetsync/ssync/internal/syncer"
	"github.com/sheetsync/ssync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the workspace to the local mirror",
	Long: `Synchronize sheets from the workspace into the local mirror.

Without flags this runs a full sync: the workspace is listed and every
sheet in it is fetched and stored. With --sheets only the named sheet ids
are synchronized and the workspace listing is left untouched.

Sheets whose remote modification time matches the stored copy are skipped;
only their sync timestamp is refreshed.

Example usage:
  ssync sync                                  # full sync
  ssync sync --prune                          # full sync, remove orphans
  ssync sync --sheets 4583173393803140        # one sheet only
  ssync sync --output json                    # machine-readable result`,
	Run: func(cmd *cobra.Command, args []string) {
		sheetIDs, _ := cmd.Flags().GetInt64Slice("sheets")
		prune, _ := cmd.Flags().GetBool("prune")
		output, _ := cmd.Flags().GetString("output")

		if output != "summary" && output != "json" {
			fail(fmt.Errorf("unknown output format %q (want summary or json)", output))
		}
		if prune && len(sheetIDs) > 0 {
			fail(fmt.Errorf("--prune only applies to full syncs"))
		}

		cfg, err := loadConfig()
		if err != nil {
			fail(err)
		}
		sy, _, err := newSyncer(cfg)
		if err != nil {
			fail(err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		var res *syncer.Result
		if len(sheetIDs) > 0 {
			res, err = sy.SyncSheets(ctx, sheetIDs)
		} else {
			res, err = sy.FullSync(ctx, syncer.FullSyncOptions{Prune: prune})
		}
		if err != nil {
			fail(err)
		}

		if output == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				fail(err)
			}
		} else {
			printSummary(res)
		}

		if !res.OK() {
			os.Exit(1)
		}
	},
}

func printSummary(res *syncer.Result) {
	fmt.Printf("%s sync finished in %s\n", res.Operation, res.Duration.Round(time.Millisecond))

	for _, sr := range res.Sheets {
		switch {
		case sr.Err != "":
			fmt.Printf("  %s %s: %s\n", ui.Cross(), sheetLabel(sr), ui.Err(sr.Err))
		case sr.Unchanged:
			fmt.Printf("  %s %s %s\n", ui.OK(), sheetLabel(sr), ui.Dim("(unchanged)"))
		default:
			fmt.Printf("  %s %s (%d rows)\n", ui.OK(), sheetLabel(sr), sr.RowCount)
		}
	}
	for _, id := range res.Pruned {
		fmt.Printf("  %s pruned sheet %d\n", ui.Warn("-"), id)
	}

	fmt.Printf("%d succeeded, %d unchanged, %d failed\n",
		len(res.Succeeded), len(res.Skipped), len(res.Failed))
}

func sheetLabel(sr syncer.SheetResult) string {
	if sr.Name != "" {
		return fmt.Sprintf("%s %s", ui.Accent(sr.Name), ui.Dim(fmt.Sprintf("(%d)", sr.ID)))
	}
	return ui.Accent(fmt.Sprintf("sheet %d", sr.ID))
}

func init() {
	syncCmd.Flags().Int64Slice("sheets", nil, "sheet ids to sync (default: all sheets in the workspace)")
	syncCmd.Flags().Bool("prune", false, "remove local sheets no longer in the workspace")
	syncCmd.Flags().StringP("output", "o", "summary", "output format: summary or json")

	rootCmd.AddCommand(syncCmd)
}
