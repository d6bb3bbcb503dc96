// Command ssync mirrors a Smartsheet workspace into local JSON files.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/sheetsync/ssync/internal/config"
	"github.com/sheetsync/ssync/internal/logging"
	"github.com/sheetsync/ssync/internal/smartsheet"
	"github.com/sheetsync/ssync/internal/store"
	"github.com/sheetsync/ssync/internal/syncer"
)

var (
	flagConfigFile   string
	flagDataDir      string
	flagSecurityMode string
)

var rootCmd = &cobra.Command{
	Use:   "ssync",
	Short: "Mirror a Smartsheet workspace into local JSON files",
	Long: `ssync keeps a local JSON mirror of a Smartsheet workspace.

Each sheet is stored as one JSON document under the data directory, along
with workspace metadata and a history of every sync operation. Sheets that
have not changed remotely are skipped, so repeated syncs are cheap.

Configuration comes from environment variables (SMARTSHEET_API_TOKEN,
SMARTSHEET_WORKSPACE_ID, SSYNC_*) or an optional ssync.yaml file.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "config file (default ./ssync.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "override the data directory")
	rootCmd.PersistentFlags().StringVar(&flagSecurityMode, "security-mode", "", "enterprise or testing")
}

// loadConfig resolves configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfigFile)
	if err != nil {
		return nil, err
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagSecurityMode != "" {
		cfg.SecurityMode = flagSecurityMode
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, prefix string) *log.Logger {
	return logging.New(logging.Options{
		Prefix: prefix,
		Debug:  cfg.LogLevel == "debug",
		File:   cfg.LogFile,
	})
}

// newLocalStore opens the store for commands that never touch the network.
func newLocalStore(cfg *config.Config) (*store.Store, error) {
	return store.New(cfg.DataDir, newLogger(cfg, "store"))
}

// newSyncer assembles the full stack: API client, store, and syncer.
func newSyncer(cfg *config.Config) (syncer.Syncer, *store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	client, err := smartsheet.New(smartsheet.Config{
		Token:             cfg.APIToken,
		Timeout:           cfg.RequestTimeout,
		Retry:             smartsheet.DefaultPolicy(cfg.MaxRetries),
		RequestsPerMinute: cfg.RequestsPerMinute,
		SecurityMode:      cfg.SecurityMode,
		Logger:            newLogger(cfg, "smartsheet"),
	})
	if err != nil {
		return nil, nil, err
	}

	st, err := newLocalStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	sy, err := syncer.New(syncer.Config{
		Client:      client,
		Store:       st,
		WorkspaceID: cfg.WorkspaceID,
		Parallelism: cfg.Parallelism,
		Logger:      newLogger(cfg, "syncer"),
	})
	if err != nil {
		return nil, nil, err
	}
	return sy, st, nil
}

// fail prints an error and exits, the common tail of every command.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
