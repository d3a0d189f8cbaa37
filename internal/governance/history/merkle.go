package history

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/trebuchet-org/govopt/internal/domain"
)

// LeafHash double-hashes the ABI-encoded record so a leaf can never be
// confused with an interior node.
func LeafHash(r domain.HistoryRecord) (common.Hash, error) {
	encoded, err := domain.EncodeHistoryRecord(r)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(crypto.Keccak256(encoded)), nil
}

// hashPair hashes two nodes in sorted order
func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a.Bytes(), b.Bytes())
}

// tree is a Merkle tree over an append-only leaf arena. levels[0] holds the
// leaves; a node without a sibling is promoted to the next level unchanged.
type tree struct {
	levels [][]common.Hash
}

func (t *tree) append(leaf common.Hash) {
	if len(t.levels) == 0 {
		t.levels = [][]common.Hash{nil}
	}
	t.levels[0] = append(t.levels[0], leaf)

	// only the right edge changes on append
	for i := 0; len(t.levels[i]) > 1; i++ {
		idx := len(t.levels[i]) - 1
		left := idx &^ 1
		var parent common.Hash
		if left+1 <= idx {
			parent = hashPair(t.levels[i][left], t.levels[i][left+1])
		} else {
			parent = t.levels[i][left]
		}
		if i+1 == len(t.levels) {
			t.levels = append(t.levels, nil)
		}
		pIdx := idx / 2
		if pIdx == len(t.levels[i+1]) {
			t.levels[i+1] = append(t.levels[i+1], parent)
		} else {
			t.levels[i+1][pIdx] = parent
		}
	}
}

func (t *tree) size() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels[0])
}

func (t *tree) root() common.Hash {
	if t.size() == 0 {
		return common.Hash{}
	}
	for i := range t.levels {
		if len(t.levels[i]) == 1 {
			return t.levels[i][0]
		}
	}
	return common.Hash{}
}

func (t *tree) proof(index int) []common.Hash {
	var proof []common.Hash
	for i := 0; i < len(t.levels) && len(t.levels[i]) > 1; i++ {
		sibling := index ^ 1
		if sibling < len(t.levels[i]) {
			proof = append(proof, t.levels[i][sibling])
		}
		index /= 2
	}
	return proof
}

// ProcessProof folds a proof over a leaf and returns the implied root
func ProcessProof(leaf common.Hash, proof []common.Hash) common.Hash {
	computed := leaf
	for _, p := range proof {
		computed = hashPair(computed, p)
	}
	return computed
}
