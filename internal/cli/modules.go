package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/govopt/internal/cli/render"
)

// NewModulesCmd creates the modules command
func NewModulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "modules",
		Aliases: []string{"ls"},
		Short:   "List voting modules",
		Long: `List the voting modules configured in govopt.toml together with the
performance recorded in the history ledger.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			modules, err := app.ListModules.Run(cmd.Context())
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return render.RenderJSON(cmd.OutOrStdout(), modules)
			}
			return render.NewModulesRenderer(cmd.OutOrStdout()).RenderList(modules)
		},
	}

	cmd.AddCommand(NewModulesShowCmd())

	return cmd
}

// NewModulesShowCmd creates the modules show subcommand
func NewModulesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show one voting module",
		Long: `Show a module by numeric ID or by name. Names match case-insensitively and
fuzzily when unique.

Examples:
  govopt modules show 2
  govopt modules show "expert council"
  govopt modules show quad`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			module, err := app.ListModules.Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return render.RenderJSON(cmd.OutOrStdout(), module)
			}
			return render.NewModulesRenderer(cmd.OutOrStdout()).RenderModule(module)
		},
	}
}
