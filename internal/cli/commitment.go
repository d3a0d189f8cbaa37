package cli

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/govopt/internal/cli/render"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// NewCommitmentCmd creates the commitment command
func NewCommitmentCmd() *cobra.Command {
	var (
		proposal string
		voter    string
		support  bool
		salt     string
	)

	cmd := &cobra.Command{
		Use:   "commitment",
		Short: "Compute a commit-reveal vote commitment",
		Long: `Compute the digest a voter commits to during the commit phase of a private
proposal. Without --salt a random 32-byte salt is drawn; keep it for the reveal.

Examples:
  govopt commitment --proposal 0x5f...e1 --voter 0xA11CE...0001 --support
  govopt commitment -p 0x5f...e1 -v 0xA11CE...0001 --salt 0x2a`,
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
			if proposalID == nil {
				return fmt.Errorf("--proposal is required")
			}
			if !common.IsHexAddress(voter) {
				return fmt.Errorf("invalid voter address %q", voter)
			}

			result, err := app.MakeCommitment.Run(usecase.MakeCommitmentParams{
				ProposalID: *proposalID,
				Voter:      common.HexToAddress(voter),
				Support:    support,
				Salt:       salt,
			})
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return render.RenderJSON(cmd.OutOrStdout(), map[string]string{
					"commitment": result.Digest.Hex(),
					"salt":       usecase.FormatSalt(result.Salt),
				})
			}
			return render.RenderCommitment(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVarP(&proposal, "proposal", "p", "", "Proposal ID")
	cmd.Flags().StringVarP(&voter, "voter", "v", "", "Voter address")
	cmd.Flags().BoolVar(&support, "support", false, "Vote in support (default against)")
	cmd.Flags().StringVar(&salt, "salt", "", "Hex salt, at most 32 bytes")

	return cmd
}
