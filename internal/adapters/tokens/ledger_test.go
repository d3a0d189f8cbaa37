package tokens

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/domain/config"
)

var (
	alice = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xB0B0000000000000000000000000000000000002")
)

func newTestExecutor(t *testing.T, treasuryFunds uint64) (*Ledger, *Executor) {
	t.Helper()
	ledger := NewLedger()
	exec := NewExecutor(ledger, config.DefaultEngineConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, ledger.Mint(context.Background(), exec.Treasury(), uint256.NewInt(treasuryFunds)))
	return ledger, exec
}

func balance(t *testing.T, l *Ledger, a common.Address) uint64 {
	t.Helper()
	b, err := l.BalanceOf(context.Background(), a)
	require.NoError(t, err)
	return b.Uint64()
}

func TestMintAndSupply(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	require.NoError(t, l.Mint(ctx, alice, uint256.NewInt(100)))
	require.NoError(t, l.Mint(ctx, alice, uint256.NewInt(50)))
	require.NoError(t, l.Mint(ctx, bob, uint256.NewInt(10)))

	assert.Equal(t, uint64(150), balance(t, l, alice))
	supply, err := l.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(160), supply.Uint64())
	assert.Equal(t, uint64(0), balance(t, l, common.HexToAddress("0x01")))

	max := new(uint256.Int).SetAllOne()
	assert.Error(t, l.Mint(ctx, bob, max))
	assert.Equal(t, uint64(10), balance(t, l, bob))
}

func TestExecuteActionsIsAtomic(t *testing.T) {
	ctx := context.Background()
	l, exec := newTestExecutor(t, 100)
	pid := common.HexToHash("0x01")

	err := exec.ExecuteActions(ctx, pid, []domain.Action{
		{Target: alice, Value: uint256.NewInt(60)},
		{Target: bob, Value: uint256.NewInt(60)},
	})
	require.Error(t, err)
	assert.Equal(t, uint64(100), balance(t, l, exec.Treasury()))
	assert.Equal(t, uint64(0), balance(t, l, alice))

	require.NoError(t, exec.ExecuteActions(ctx, pid, []domain.Action{
		{Target: alice, Value: uint256.NewInt(60)},
		{Target: bob, Value: uint256.NewInt(40)},
		{Target: bob, Payload: []byte{0x01}},
	}))
	assert.Equal(t, uint64(0), balance(t, l, exec.Treasury()))
	assert.Equal(t, uint64(60), balance(t, l, alice))
	assert.Equal(t, uint64(40), balance(t, l, bob))
}

func TestHookFailureAbortsBatch(t *testing.T) {
	ctx := context.Background()
	l, exec := newTestExecutor(t, 100)
	boom := errors.New("target reverted")

	var seen int
	exec.OnAction(func(_ context.Context, _ common.Hash, a domain.Action) error {
		seen++
		if a.Target == bob {
			return boom
		}
		return nil
	})

	err := exec.ExecuteActions(ctx, common.HexToHash("0x01"), []domain.Action{
		{Target: alice, Value: uint256.NewInt(10)},
		{Target: bob, Value: uint256.NewInt(10)},
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, seen)
	assert.Equal(t, uint64(0), balance(t, l, alice))
	assert.Equal(t, uint64(100), balance(t, l, exec.Treasury()))
}
