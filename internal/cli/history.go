package cli

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/govopt/internal/cli/render"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the history ledger",
		Long: `Inspect the Merkle-committed history ledger stored in .govopt/history.json

Available subcommands:
  history list          List recorded outcomes
  history performance   Aggregate module performance
  history verify        Check the root and inclusion proofs`,
	}

	cmd.AddCommand(NewHistoryListCmd())
	cmd.AddCommand(NewHistoryPerformanceCmd())
	cmd.AddCommand(NewHistoryVerifyCmd())

	return cmd
}

// parseProposalFlag parses an optional proposal ID flag value
func parseProposalFlag(value string) (*common.Hash, error) {
	if value == "" {
		return nil, nil
	}
	raw, err := hexutil.Decode(value)
	if err != nil || len(raw) != common.HashLength {
		return nil, fmt.Errorf("invalid proposal id %q: expected a 32-byte hex string", value)
	}
	id := common.BytesToHash(raw)
	return &id, nil
}

// NewHistoryListCmd creates the history list subcommand
func NewHistoryListCmd() *cobra.Command {
	var (
		proposal string
		moduleID uint64
		category string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			proposalID, err := parseProposalFlag(proposal)
			if err != nil {
				return err
			}

			result, err := app.ListHistory.Run(cmd.Context(), usecase.ListHistoryParams{
				ProposalID: proposalID,
				ModuleID:   moduleID,
				Category:   category,
			})
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return render.RenderJSON(cmd.OutOrStdout(), result.Records)
			}
			return render.NewHistoryRenderer(cmd.OutOrStdout()).RenderList(result)
		},
	}

	cmd.Flags().StringVarP(&proposal, "proposal", "p", "", "Only records of this proposal")
	cmd.Flags().Uint64VarP(&moduleID, "module", "m", 0, "Only records of this module")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Only records of this category")

	return cmd
}

// NewHistoryPerformanceCmd creates the history performance subcommand
func NewHistoryPerformanceCmd() *cobra.Command {
	var (
		moduleID uint64
		category string
	)

	cmd := &cobra.Command{
		Use:     "performance",
		Aliases: []string{"perf"},
		Short:   "Aggregate module performance",
		Long: `Aggregate success rate, participation and execution time per module. Each
proposal counts once, with its latest recorded outcome.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			perfs, err := app.ShowModulePerformance.Run(cmd.Context(), usecase.ModulePerformanceParams{
				ModuleID: moduleID,
				Category: category,
			})
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return render.RenderJSON(cmd.OutOrStdout(), perfs)
			}
			return render.NewHistoryRenderer(cmd.OutOrStdout()).RenderPerformance(perfs)
		},
	}

	cmd.Flags().Uint64VarP(&moduleID, "module", "m", 0, "Only this module")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Only this category")

	return cmd
}

// NewHistoryVerifyCmd creates the history verify subcommand
func NewHistoryVerifyCmd() *cobra.Command {
	var proposal string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the root and inclusion proofs",
		Long: `Recompute the Merkle root from the stored leaves and check the inclusion
proof of every proposal's latest record.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			proposalID, err := parseProposalFlag(proposal)
			if err != nil {
				return err
			}

			result, err := app.VerifyHistory.Run(cmd.Context(), usecase.VerifyHistoryParams{ProposalID: proposalID})
			if err != nil {
				return err
			}

			if err := render.NewHistoryRenderer(cmd.OutOrStdout()).RenderVerify(result); err != nil {
				return err
			}
			if !result.Valid() {
				return fmt.Errorf("history ledger failed verification")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&proposal, "proposal", "p", "", "Only check this proposal")

	return cmd
}
