package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sheetsync/ssync/internal/smartsheet"
	"github.com/sheetsync/ssync/internal/ui"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check credentials and workspace access",
	Long: `Validate the configuration by fetching the workspace listing.
Nothing is written locally. A zero exit code means the token works and the
workspace is reachable.`,
	Run: func(cmd *cobra.Command, args []string) {
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

		info, err := sy.Validate(ctx)
		if err != nil {
			switch {
			case errors.Is(err, smartsheet.ErrAuth):
				fail(fmt.Errorf("token rejected: %v", err))
			case errors.Is(err, smartsheet.ErrNotFound):
				fail(fmt.Errorf("workspace %d not found or not shared with this token", cfg.WorkspaceID))
			default:
				fail(err)
			}
		}

		fmt.Printf("%s connected to workspace %s %s\n",
			ui.OK(),
			ui.Accent(info.WorkspaceName),
			ui.Dim(fmt.Sprintf("(%d)", info.WorkspaceID)))
		fmt.Printf("  %d sheet(s) visible\n", info.SheetCount)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
