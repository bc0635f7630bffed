// Package cli holds the scout command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kjannette/scout-backend/internal/config"
	"github.com/kjannette/scout-backend/internal/logging"
)

const version = "0.3.0"

// NewRootCmd creates the root command. Configuration is loaded once before
// any subcommand runs and shared through the closure.
func NewRootCmd() *cobra.Command {
	var (
		cfg      config.Config
		logLevel string
		storage  string
	)

	rootCmd := &cobra.Command{
		Use:           "scout",
		Short:         "Scout - autonomous launch-token trading agent for Monad",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				loaded.LogLevel = logLevel
			}
			if storage != "" {
				loaded.StorageBackend = storage
			}
			logging.Setup(loaded.LogLevel, loaded.LogFormat)
			if err := loaded.Validate(); err != nil {
				return err
			}
			cfg = *loaded
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&storage, "storage", "", "Override STORAGE_BACKEND (postgres, memory)")

	rootCmd.AddCommand(newRunCmd(&cfg))
	rootCmd.AddCommand(newPortfolioCmd(&cfg))
	rootCmd.AddCommand(newReconcileCmd(&cfg))
	rootCmd.AddCommand(newBalanceCmd(&cfg))
	rootCmd.AddCommand(newScanCmd(&cfg))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// skip config loading
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scout v%s\n", version)
		},
	}
}
