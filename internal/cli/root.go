package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/govopt/internal/adapters/progress"
	"github.com/trebuchet-org/govopt/internal/app"
	"github.com/trebuchet-org/govopt/internal/config"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// contextKey is the type for context keys
type contextKey string

const (
	// appKey is the context key for the app instance
	appKey contextKey = "app"
)

// skipsApp reports whether a command runs without the wired app
func skipsApp(name string) bool {
	switch name {
	case "version", "help", "completion", "__complete":
		return true
	}
	return false
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "govopt",
		Short: "Adaptive governance engine",
		Long: `govopt selects a voting module for every proposal from its decision context,
weighs votes by verified expertise, runs private commit-reveal voting and
records every outcome in a Merkle-committed history ledger.

Scenarios drive the engine: a YAML file seeds balances, verifiers and modules
and replays proposal lifecycles against a deterministic clock.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipsApp(cmd.Name()) {
				return nil
			}

			projectRoot, err := config.FindProjectRoot()
			if err != nil {
				return err
			}

			v := config.SetupViper(projectRoot, cmd)

			var sink usecase.ProgressSink = progress.NewNopSink()
			if cmd.Name() == "run" && !v.GetBool("json") {
				sink = progress.NewStepPrinter(cmd.OutOrStdout())
			}

			appInstance, err := app.InitApp(v, sink)
			if err != nil {
				return fmt.Errorf("failed to initialize app: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			if appInstance.Config.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, appInstance.Config.Timeout)
				cmd.PostRun = func(cmd *cobra.Command, args []string) {
					cancel()
				}
			}
			cmd.SetContext(ctx)

			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug output")
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("engine-file", "", "Engine configuration file (defaults to govopt.toml)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Abort commands running longer than this")

	rootCmd.AddGroup(&cobra.Group{
		ID:    "main",
		Title: "Main Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "inspect",
		Title: "Inspection Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "management",
		Title: "Management Commands",
	})

	runCmd := NewRunCmd()
	runCmd.GroupID = "main"
	rootCmd.AddCommand(runCmd)

	commitmentCmd := NewCommitmentCmd()
	commitmentCmd.GroupID = "main"
	rootCmd.AddCommand(commitmentCmd)

	modulesCmd := NewModulesCmd()
	modulesCmd.GroupID = "inspect"
	rootCmd.AddCommand(modulesCmd)

	historyCmd := NewHistoryCmd()
	historyCmd.GroupID = "inspect"
	rootCmd.AddCommand(historyCmd)

	eventsCmd := NewEventsCmd()
	eventsCmd.GroupID = "inspect"
	rootCmd.AddCommand(eventsCmd)

	configCmd := NewConfigCmd()
	configCmd.GroupID = "management"
	rootCmd.AddCommand(configCmd)

	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// getApp retrieves the app instance from the command context
func getApp(cmd *cobra.Command) (*app.App, error) {
	appInstance := cmd.Context().Value(appKey)
	if appInstance == nil {
		return nil, fmt.Errorf("app not initialized")
	}

	app, ok := appInstance.(*app.App)
	if !ok {
		return nil, fmt.Errorf("invalid app instance")
	}

	return app, nil
}
