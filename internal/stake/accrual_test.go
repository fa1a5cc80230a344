package stake

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() GlobalConfig {
	return GlobalConfig{
		RewardToken:    rewardToken,
		StartBlock:     100,
		EndBlock:       200,
		RewardPerBlock: *ether(1),
	}
}

func stakedPool(weight uint64, staked *uint256.Int, last uint64) Pool {
	return Pool{Weight: weight, TotalStaked: *staked, LastRewardBlock: last}
}

func TestAccrue(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name     string
		pool     Pool
		block    uint64
		wantAcc  string
		wantLast uint64
		total    uint64
	}{
		{name: "same block", pool: stakedPool(1, ether(1), 150), block: 150, wantAcc: "0", wantLast: 150, total: 1},
		{name: "empty pool", pool: stakedPool(1, new(uint256.Int), 100), block: 150, wantAcc: "0", wantLast: 150, total: 1},
		{name: "before start", pool: stakedPool(1, ether(1), 10), block: 90, wantAcc: "0", wantLast: 90, total: 1},
		{name: "after end", pool: stakedPool(1, ether(1), 250), block: 300, wantAcc: "0", wantLast: 300, total: 1},
		{name: "zero total weight", pool: stakedPool(0, ether(1), 100), block: 150, wantAcc: "0", wantLast: 150, total: 0},
		{name: "within window", pool: stakedPool(1, ether(2), 100), block: 110, wantAcc: "5000000000000000000", wantLast: 110, total: 1},
		{name: "clipped at start", pool: stakedPool(1, ether(1), 50), block: 110, wantAcc: "10000000000000000000", wantLast: 110, total: 1},
		{name: "clipped at end", pool: stakedPool(1, ether(1), 190), block: 400, wantAcc: "10000000000000000000", wantLast: 400, total: 1},
		{name: "weighted", pool: stakedPool(1, ether(1), 100), block: 103, wantAcc: "1000000000000000000", wantLast: 103, total: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := accrue(tt.pool, &cfg, tt.total, tt.block)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAcc, FormatAmount(&got.AccRewardPerShare))
			assert.Equal(t, tt.wantLast, got.LastRewardBlock)
			assert.Equal(t, tt.pool.TotalStaked, got.TotalStaked)
		})
	}
}

func TestAccrueDoesNotModifyInput(t *testing.T) {
	cfg := testConfig()
	pool := stakedPool(1, ether(1), 100)

	next, err := accrue(pool, &cfg, 1, 120)
	require.NoError(t, err)
	assert.True(t, pool.AccRewardPerShare.IsZero())
	assert.Equal(t, uint64(100), pool.LastRewardBlock)

	again, err := accrue(next, &cfg, 1, 120)
	require.NoError(t, err)
	assert.Equal(t, next, again)
}

func TestAccrueOverflow(t *testing.T) {
	cfg := testConfig()
	cfg.RewardPerBlock = *new(uint256.Int).SetAllOne()

	_, err := accrue(stakedPool(1, ether(1), 100), &cfg, 1, 150)
	assert.ErrorIs(t, err, ErrOverflow)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPoolEmissionTruncates(t *testing.T) {
	got, err := poolEmission(uint256.NewInt(10), 1, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(3), got)

	got, err = poolEmission(uint256.NewInt(10), 5, 0, 3)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestSettleAndResetDebt(t *testing.T) {
	acc := amount(t, "1500000000000000000")
	pos := Position{Staked: *ether(2)}

	pos, err := settle(pos, acc)
	require.NoError(t, err)
	assert.Equal(t, ether(3), &pos.PendingReward)

	pos, err = resetDebt(pos, acc)
	require.NoError(t, err)
	assert.Equal(t, ether(3), &pos.RewardDebt)

	pos, err = settle(pos, acc)
	require.NoError(t, err)
	assert.Equal(t, ether(3), &pos.PendingReward)
}

func TestPlanWithdrawEmptyQueue(t *testing.T) {
	pos, paid, err := planWithdraw(Position{Staked: *ether(1)}, 500)
	require.NoError(t, err)
	assert.True(t, paid.IsZero())
	assert.Empty(t, pos.Requests)
	assert.Equal(t, ether(1), &pos.Staked)
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount(" 1000000000000000000 ")
	require.NoError(t, err)
	assert.Equal(t, ether(1), got)

	zero, err := ParseAmount("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	for _, bad := range []string{"-1", "1.5", "0x10", "abc",
		"115792089237316195423570985008687907853269984665640564039457584007913129639936"} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, bad)
	}

	assert.Equal(t, "0", FormatAmount(nil))
	assert.Equal(t, "1000000000000000000", FormatAmount(ether(1)))
}
