package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sheetsync/ssync/internal/syncer"
	"github.com/sheetsync/ssync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the local mirror",
	Long: `Show what the local mirror currently holds without touching the
network: workspace identity, per-sheet row counts and sizes, and the most
recent sync operation.

Example usage:
  ssync status                  # human-readable table
  ssync status --format json    # machine-readable
  ssync status --format yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")

		cfg, err := loadConfig()
		if err != nil {
			fail(err)
		}
		st, err := newLocalStore(cfg)
		if err != nil {
			fail(err)
		}

		rep, err := syncer.StatusFromStore(st)
		if err != nil {
			fail(err)
		}

		switch format {
		case "table":
			printStatusTable(rep)
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(rep); err != nil {
				fail(err)
			}
		case "yaml":
			if err := yaml.NewEncoder(os.Stdout).Encode(rep); err != nil {
				fail(err)
			}
		default:
			fail(fmt.Errorf("unknown format %q (want table, json, or yaml)", format))
		}
	},
}

func printStatusTable(rep *syncer.StatusReport) {
	if rep.NeverSynced && len(rep.Sheets) == 0 {
		fmt.Printf("%s no sync has run yet; try %s\n", ui.Warn("!"), ui.Accent("ssync sync"))
		return
	}

	if rep.Workspace != nil {
		fmt.Printf("Workspace: %s %s\n",
			ui.Accent(rep.Workspace.Name),
			ui.Dim(fmt.Sprintf("(%d)", rep.Workspace.ID)))
		if !rep.Workspace.LastFullSync.IsZero() {
			fmt.Printf("Last full sync: %s\n", rep.Workspace.LastFullSync.Format(time.RFC3339))
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tROWS\tSIZE\tLAST SYNC")
	for _, sum := range rep.Sheets {
		last := sum.LastSync
		if last == "" {
			last = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%.1f KB\t%s\n",
			sum.ID, sum.Name, sum.RowCount, sum.SizeKB, last)
	}
	w.Flush()

	fmt.Printf("\n%d sheet(s), %.2f MB, %d sync(s) recorded\n",
		len(rep.Sheets), rep.TotalSizeMB, rep.TotalSyncs)

	if rep.LastSync != nil {
		rec := rep.LastSync
		switch {
		case rec.Error != "":
			fmt.Printf("Last sync %s: %s\n", ui.Err("failed to start"), rec.Error)
		case len(rec.Failed) > 0:
			fmt.Printf("Last sync: %s (%d failed)\n", ui.Warn("partial"), len(rec.Failed))
		default:
			fmt.Printf("Last sync: %s\n", ui.Pass("ok"))
		}
	}
}

func init() {
	statusCmd.Flags().StringP("format", "f", "table", "output format: table, json, or yaml")

	rootCmd.AddCommand(statusCmd)
}
