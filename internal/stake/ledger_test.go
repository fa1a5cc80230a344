package stake

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakeLedger/internal/model"
)

func TestMemoryLedgerTransfers(t *testing.T) {
	ledger := NewMemoryLedger(custody)
	require.NoError(t, ledger.Mint(stakingToken, user1, ether(5)))

	require.NoError(t, ledger.TransferIn(stakingToken, user1, ether(2)))
	assert.Equal(t, ether(3), ledger.BalanceOf(stakingToken, user1))
	assert.Equal(t, ether(2), ledger.BalanceOf(stakingToken, custody))

	err := ledger.TransferOut(stakingToken, user2, ether(3))
	assert.ErrorIs(t, err, ErrFailedTransfer)
	assert.Equal(t, ether(2), ledger.BalanceOf(stakingToken, custody))
	assert.True(t, ledger.BalanceOf(stakingToken, user2).IsZero())

	require.NoError(t, ledger.TransferOut(stakingToken, user2, ether(2)))
	assert.Equal(t, ether(2), ledger.BalanceOf(stakingToken, user2))
	assert.NoError(t, ledger.TransferOut(stakingToken, user2, new(uint256.Int)))
}

func TestMemoryLedgerBalanceIsCopy(t *testing.T) {
	ledger := NewMemoryLedger(custody)
	require.NoError(t, ledger.Mint(rewardToken, user1, ether(1)))

	bal := ledger.BalanceOf(rewardToken, user1)
	bal.Add(bal, ether(100))
	assert.Equal(t, ether(1), ledger.BalanceOf(rewardToken, user1))
}

func TestMemoryLedgerSnapshotRestore(t *testing.T) {
	ledger := NewMemoryLedger(custody)
	require.NoError(t, ledger.Mint(stakingToken, user2, ether(7)))
	require.NoError(t, ledger.Mint(stakingToken, user1, ether(3)))
	require.NoError(t, ledger.Mint(NativeAsset, user1, ether(1)))

	records := ledger.Snapshot()
	require.Len(t, records, 3)
	assert.Equal(t, NativeAsset.Hex(), records[0].Asset)
	assert.Equal(t, user1.Hex(), records[1].Holder)
	assert.Equal(t, user2.Hex(), records[2].Holder)

	restored := NewMemoryLedger(custody)
	require.NoError(t, restored.Restore(records))
	assert.Equal(t, records, restored.Snapshot())
	assert.Equal(t, ether(7), restored.BalanceOf(stakingToken, user2))
}

func TestRoleGate(t *testing.T) {
	gate := NewRoleGate(owner)
	assert.True(t, gate.IsAdmin(owner))
	assert.False(t, gate.IsAdmin(user1))

	assert.ErrorIs(t, gate.Grant(user1, RoleAdmin, user1), ErrUnauthorized)
	require.NoError(t, gate.Grant(owner, RoleAdmin, user1))
	assert.True(t, gate.IsAdmin(user1))
	assert.False(t, gate.HasRole(RoleDefaultAdmin, user1))

	assert.ErrorIs(t, gate.Revoke(user1, RoleAdmin, owner), ErrUnauthorized)
	require.NoError(t, gate.Revoke(owner, RoleAdmin, user1))
	assert.False(t, gate.IsAdmin(user1))

	restored, err := RestoreRoleGate(gate.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, gate.Snapshot(), restored.Snapshot())
	assert.True(t, restored.IsAdmin(owner))
}

func TestEngineUsesGrantedAdmin(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.gate.Grant(owner, RoleAdmin, user2))
	require.NoError(t, f.engine.SetPauseUnstake(user2, true))
	assert.True(t, f.engine.Config().UnstakePaused)

	_, err := RestoreRoleGate([]model.RoleRecord{{Role: string(RoleAdmin), Account: "bogus"}})
	assert.Error(t, err)
}

func TestManualClock(t *testing.T) {
	clock := NewManualClock(10)
	assert.Equal(t, uint64(10), clock.Current())
	assert.Equal(t, uint64(15), clock.Advance(5))

	require.NoError(t, clock.Set(15))
	require.NoError(t, clock.Set(20))
	assert.Error(t, clock.Set(19))
	assert.Equal(t, uint64(20), clock.Current())

	var _ BlockClock = clock
	var _ TokenLedger = NewMemoryLedger(common.Address{})
	var _ AuthorizationGate = NewRoleGate(common.Address{})
}
