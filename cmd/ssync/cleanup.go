package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sheetsync/ssync/internal/ui"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Trim sync history and sweep leftover temp files",
	Long: `Apply the retention policy to the local mirror: keep only the most
recent sync history records and remove temporary files abandoned by
interrupted writes. Sheet documents are never touched.

Example usage:
  ssync cleanup             # keep the 10 most recent records
  ssync cleanup --keep 50`,
	Run: func(cmd *cobra.Command, args []string) {
		keep, _ := cmd.Flags().GetInt("keep")

		cfg, err := loadConfig()
		if err != nil {
			fail(err)
		}
		st, err := newLocalStore(cfg)
		if err != nil {
			fail(err)
		}

		res, err := st.Cleanup(keep)
		if err != nil {
			fail(err)
		}

		fmt.Printf("%s removed %d history record(s), %d temp file(s)\n",
			ui.OK(), res.HistoryRemoved, res.TempRemoved)
		for _, warning := range res.Warnings {
			fmt.Printf("  %s %s\n", ui.Warn("!"), warning)
		}
	},
}

func init() {
	cleanupCmd.Flags().Int("keep", 10, "number of history records to keep")

	rootCmd.AddCommand(cleanupCmd)
}
