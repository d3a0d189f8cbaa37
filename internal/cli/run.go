package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/govopt/internal/cli/render"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	var noPersist bool

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a governance scenario",
		Long: `Run a scenario file against the engine.

Steps run in order on a simulated clock. A step declaring expect_error must
fail with that error; any other failure aborts the run. History and events
are restored from and saved to .govopt/ unless --no-persist is set.

Examples:
  govopt run examples/treasury.yaml
  govopt run examples/private.yaml --no-persist`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, runErr := app.RunScenario.Run(cmd.Context(), usecase.RunScenarioParams{
				Path:      args[0],
				NoPersist: noPersist,
			})
			if result == nil {
				return runErr
			}

			if app.Config.JSON {
				if err := render.RenderJSON(cmd.OutOrStdout(), render.NewScenarioJSON(result)); err != nil {
					return err
				}
				return runErr
			}

			counts, err := app.Metrics.Counts()
			if err != nil {
				return err
			}
			renderer := render.NewScenarioRenderer(cmd.OutOrStdout())
			if err := renderer.RenderResult(result, counts); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&noPersist, "no-persist", false, "Do not restore or save history and events")

	return cmd
}
