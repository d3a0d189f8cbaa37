package usecase

import (
	"crypto/rand"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/trebuchet-org/govopt/internal/domain"
)

// MakeCommitmentParams contains the hidden vote to commit to
type MakeCommitmentParams struct {
	ProposalID common.Hash
	Voter      common.Address
	Support    bool
	// Salt is hex; empty draws a random 32-byte salt
	Salt string
}

// MakeCommitmentResult is the digest to submit and the salt to keep for the reveal
type MakeCommitmentResult struct {
	Digest common.Hash
	Salt   common.Hash
}

// MakeCommitment computes commitment digests for commit-reveal voting
type MakeCommitment struct{}

// NewMakeCommitment creates a new MakeCommitment use case
func NewMakeCommitment() *MakeCommitment {
	return &MakeCommitment{}
}

// Run executes the make commitment use case
func (uc *MakeCommitment) Run(params MakeCommitmentParams) (*MakeCommitmentResult, error) {
	var salt common.Hash
	if params.Salt == "" {
		if _, err := rand.Read(salt[:]); err != nil {
			return nil, fmt.Errorf("failed to draw salt: %w", err)
		}
	} else {
		parsed, err := parseSalt(params.Salt)
		if err != nil {
			return nil, err
		}
		salt = parsed
	}
	return &MakeCommitmentResult{
		Digest: domain.CommitmentHash(params.ProposalID, params.Voter, params.Support, salt),
		Salt:   salt,
	}, nil
}

// FormatSalt renders a salt the way scenario files and the reveal expect it
func FormatSalt(salt common.Hash) string {
	return hexutil.Encode(salt[:])
}
