package cli

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/govopt/internal/cli/render"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// NewEventsCmd creates the events command
func NewEventsCmd() *cobra.Command {
	var (
		eventType string
		proposal  string
		account   string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query the event archive",
		Long: `Query events archived by persisted scenario runs in .govopt/events.jsonl

Examples:
  govopt events --type vote-cast
  govopt events --proposal 0x5f...e1 --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			filter := usecase.EventFilter{Type: domain.EventType(eventType), Limit: limit}
			if filter.ProposalID, err = parseProposalFlag(proposal); err != nil {
				return err
			}
			if account != "" {
				if !common.IsHexAddress(account) {
					return fmt.Errorf("invalid account address %q", account)
				}
				addr := common.HexToAddress(account)
				filter.Account = &addr
			}

			result, err := app.QueryEvents.Run(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return render.RenderJSON(cmd.OutOrStdout(), result.Events)
			}
			return render.NewEventsRenderer(cmd.OutOrStdout()).Render(result)
		},
	}

	cmd.Flags().StringVarP(&eventType, "type", "t", "", "Only events of this type (e.g. vote-cast)")
	cmd.Flags().StringVarP(&proposal, "proposal", "p", "", "Only events of this proposal")
	cmd.Flags().StringVarP(&account, "account", "a", "", "Only events of this account")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Keep the most recent n matches")

	return cmd
}
