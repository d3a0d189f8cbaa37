package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	addressT, _     = abi.NewType("address", "", nil)
	addressArrT, _  = abi.NewType("address[]", "", nil)
	boolT, _        = abi.NewType("bool", "", nil)
	bytesT, _       = abi.NewType("bytes", "", nil)
	bytes32T, _     = abi.NewType("bytes32", "", nil)
	stringT, _      = abi.NewType("string", "", nil)
	stringArrT, _   = abi.NewType("string[]", "", nil)
	uint8T, _       = abi.NewType("uint8", "", nil)
	uint64T, _      = abi.NewType("uint64", "", nil)
	uint256T, _     = abi.NewType("uint256", "", nil)
	contextArgs     = abi.Arguments{{Type: stringT}, {Type: uint8T}, {Type: stringArrT}, {Type: addressArrT}, {Type: stringT}, {Type: boolT}, {Type: uint64T}}
	actionArgs      = abi.Arguments{{Type: addressT}, {Type: uint256T}, {Type: bytesT}}
	proposalArgs    = abi.Arguments{{Type: addressT}, {Type: uint64T}, {Type: stringT}, {Type: bytes32T}, {Type: bytes32T}}
	historyLeafArgs = abi.Arguments{{Type: uint64T}, {Type: bytes32T}, {Type: bytes32T}, {Type: uint64T}, {Type: stringT}, {Type: uint64T}, {Type: uint64T}, {Type: boolT}, {Type: boolT}, {Type: uint64T}}
)

func contextID(c *DecisionContext) (common.Hash, error) {
	domains := c.RequiredExpertise
	if domains == nil {
		domains = []string{}
	}
	stakeholders := c.Stakeholders
	if stakeholders == nil {
		stakeholders = []common.Address{}
	}
	packed, err := contextArgs.Pack(c.Category, c.UrgencyLevel, domains, stakeholders, c.MetadataURI, c.Private, c.BlendBps)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode context: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}

// ActionsHash commits to the ordered action batch
func ActionsHash(actions []Action) (common.Hash, error) {
	hashes := make([]byte, 0, len(actions)*common.HashLength)
	for i, a := range actions {
		payload := a.Payload
		if payload == nil {
			payload = []byte{}
		}
		packed, err := actionArgs.Pack(a.Target, a.ValueOrZero().ToBig(), payload)
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to encode action %d: %w", i, err)
		}
		hashes = append(hashes, crypto.Keccak256(packed)...)
	}
	return crypto.Keccak256Hash(hashes), nil
}

// ProposalIDFor derives the proposal digest from its creator, a per-engine
// nonce, its metadata, its context and its action batch.
func ProposalIDFor(creator common.Address, nonce uint64, metadataURI string, contextID common.Hash, actions []Action) (common.Hash, error) {
	actionsHash, err := ActionsHash(actions)
	if err != nil {
		return common.Hash{}, err
	}
	packed, err := proposalArgs.Pack(creator, nonce, metadataURI, [32]byte(contextID), [32]byte(actionsHash))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode proposal: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}

// EncodeHistoryRecord returns the canonical ABI encoding of a history record
func EncodeHistoryRecord(r HistoryRecord) ([]byte, error) {
	packed, err := historyLeafArgs.Pack(
		r.Sequence,
		[32]byte(r.ProposalID),
		[32]byte(r.ContextID),
		r.ModuleID,
		r.Category,
		r.ParticipationBps,
		r.ExecutionTimeSeconds,
		r.Succeeded,
		r.Executed,
		uint64(r.RecordedAt.Unix()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to encode history record: %w", err)
	}
	return packed, nil
}

// CommitmentHash binds a hidden vote to its proposal and voter:
// keccak256(proposalID || voter || support || salt).
func CommitmentHash(proposalID common.Hash, voter common.Address, support bool, salt common.Hash) common.Hash {
	var choice byte
	if support {
		choice = 1
	}
	return crypto.Keccak256Hash(proposalID.Bytes(), voter.Bytes(), []byte{choice}, salt.Bytes())
}
