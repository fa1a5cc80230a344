package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakeLedger/internal/chain"
	"stakeLedger/internal/config"
	"stakeLedger/internal/model"
	"stakeLedger/internal/stake"
	"stakeLedger/internal/storage"
)

const (
	admin   = "0x1000000000000000000000000000000000000001"
	alice   = "0x2000000000000000000000000000000000000002"
	custody = "0xcccccccccccccccccccccccccccccccccccccccc"
	reward  = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	token   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func testGenesis(t *testing.T) Genesis {
	t.Helper()
	genesis, err := ParseGenesis(config.Genesis{
		RewardToken:      reward,
		StartBlock:       110,
		EndBlock:         1010,
		RewardPerBlock:   "1000000000000000000",
		NativeWeight:     100,
		NativeMinDeposit: "100000000000000000",
		NativeLockBlocks: 10,
		Admin:            admin,
		Custody:          custody,
	})
	require.NoError(t, err)
	return genesis
}

func scenario() []model.Operation {
	return []model.Operation{
		{Seq: 1, Block: 100, Caller: custody, Op: model.OpFund, Asset: reward, Amount: "1000000000000000000000000"},
		{Seq: 2, Block: 100, Caller: alice, Op: model.OpFund, Asset: token, Amount: "1000000000000000000000"},
		{Seq: 3, Block: 100, Caller: admin, Op: model.OpAddPool, Asset: token, Weight: 200, MinDeposit: "100000000000000000", LockBlocks: 10},
		{Seq: 4, Block: 100, Caller: alice, Op: model.OpDeposit, PoolID: 1, Amount: "10000000000000000000"},
		{Seq: 5, Block: 100, Caller: alice, Op: model.OpAddPool, Asset: "0xdddddddddddddddddddddddddddddddddddddddd", Weight: 1},
		{Seq: 6, Block: 120, Caller: alice, Op: model.OpClaim, PoolID: 1},
		{Seq: 7, Block: 120, Caller: alice, Op: model.OpUnstake, PoolID: 1, Amount: "5000000000000000000"},
		{Seq: 8, Block: 125, Caller: alice, Op: model.OpWithdraw, PoolID: 1},
		{Seq: 9, Block: 130, Caller: alice, Op: model.OpWithdraw, PoolID: 1},
		{Seq: 10, Block: 130, Caller: admin, Op: model.OpPauseClaim, Paused: true},
		{Seq: 11, Block: 131, Caller: alice, Op: model.OpClaim, PoolID: 1},
	}
}

func writeOps(t *testing.T, path string, ops []model.Operation) {
	t.Helper()
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()
	for _, op := range ops {
		line, err := json.Marshal(op)
		require.NoError(t, err)
		_, err = file.Write(append(line, '\n'))
		require.NoError(t, err)
	}
}

func readJSONL[T any](t *testing.T, path string) []T {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var out []T
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record T
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		out = append(out, record)
	}
	require.NoError(t, scanner.Err())
	return out
}

type fakeExporter struct {
	state    uint64
	hasState bool
	exported []model.LedgerSnapshot
}

func (f *fakeExporter) LoadState(context.Context) (uint64, bool, error) {
	return f.state, f.hasState, nil
}

func (f *fakeExporter) ExportSnapshot(_ context.Context, snap model.LedgerSnapshot, _ int) error {
	f.exported = append(f.exported, snap)
	f.state, f.hasState = snap.LastSeq, true
	return nil
}

type paths struct {
	in, events, results, snapshot string
}

func newPaths(t *testing.T) paths {
	dir := t.TempDir()
	return paths{
		in:       filepath.Join(dir, "ops.jsonl"),
		events:   filepath.Join(dir, "out", "events.jsonl"),
		results:  filepath.Join(dir, "out", "rejected.jsonl"),
		snapshot: filepath.Join(dir, "out", "snapshot.json"),
	}
}

func newTestRunner(t *testing.T, p paths, exporter Exporter) *Runner {
	return NewRunner(RunConfig{
		In:              p.in,
		Genesis:         testGenesis(t),
		SnapshotPath:    p.snapshot,
		SnapshotEnabled: true,
		BatchSize:       2,
	}, storage.NewJsonlStorage(p.events), storage.NewJsonlStorage(p.results), exporter, nil)
}

func balanceOf(snap model.LedgerSnapshot, asset, holder string) string {
	for _, bal := range snap.Balances {
		if strings.EqualFold(bal.Asset, asset) && strings.EqualFold(bal.Holder, holder) {
			return bal.Balance
		}
	}
	return "0"
}

func TestRunnerScenario(t *testing.T) {
	p := newPaths(t)
	writeOps(t, p.in, scenario())
	exporter := &fakeExporter{}

	summary, err := newTestRunner(t, p, exporter).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, summary.Applied)
	assert.Equal(t, 2, summary.Rejected)
	assert.Equal(t, 7, summary.Events)
	assert.Equal(t, uint64(11), summary.LastSeq)
	assert.Equal(t, uint64(131), summary.Block)

	events := readJSONL[model.Event](t, p.events)
	require.Len(t, events, 7)
	names := make([]string, 0, len(events))
	for _, event := range events {
		names = append(names, event.Name)
	}
	assert.Equal(t, []string{
		model.EventAddPool, model.EventDeposit, model.EventClaim, model.EventUnstake,
		model.EventWithdraw, model.EventWithdraw, model.EventSetPause,
	}, names)
	assert.Equal(t, uint64(6), events[2].Seq)
	assert.Equal(t, "6666666666666666660", events[2].Amount)
	assert.Equal(t, "0", events[4].Amount)
	assert.Equal(t, "5000000000000000000", events[5].Amount)

	results := readJSONL[model.OperationResult](t, p.results)
	require.Len(t, results, 2)
	assert.Equal(t, uint64(5), results[0].Seq)
	assert.Contains(t, results[0].Error, "unauthorized")
	assert.Equal(t, uint64(11), results[1].Seq)
	assert.Contains(t, results[1].Error, "claim paused")

	snap, err := ReadSnapshot(p.snapshot)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), snap.LastSeq)
	assert.Equal(t, uint64(131), snap.Block)
	assert.True(t, snap.Config.ClaimPaused)
	assert.Equal(t, "6666666666666666660", balanceOf(snap, reward, alice))
	assert.Equal(t, "995000000000000000000", balanceOf(snap, token, alice))
	assert.Equal(t, "5000000000000000000", balanceOf(snap, token, custody))
	assert.NotEmpty(t, snap.UpdatedAt)

	require.Len(t, exporter.exported, 1)
	assert.Equal(t, uint64(11), exporter.exported[0].LastSeq)
}

func TestRunnerResumesFromSnapshot(t *testing.T) {
	p := newPaths(t)
	ops := scenario()
	writeOps(t, p.in, ops[:6])

	first, err := newTestRunner(t, p, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(6), first.LastSeq)

	writeOps(t, p.in, ops)
	exporter := &fakeExporter{state: 11, hasState: true}
	second, err := newTestRunner(t, p, exporter).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, second.Skipped)
	assert.Equal(t, 4, second.Applied)
	assert.Equal(t, 1, second.Rejected)
	assert.Empty(t, exporter.exported)

	events := readJSONL[model.Event](t, p.events)
	assert.Len(t, events, 7)

	snap, err := ReadSnapshot(p.snapshot)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), snap.LastSeq)
	assert.Equal(t, "995000000000000000000", balanceOf(snap, token, alice))
}

func TestOpenViewFollowsClock(t *testing.T) {
	p := newPaths(t)
	writeOps(t, p.in, scenario())
	_, err := newTestRunner(t, p, nil).Run(context.Background())
	require.NoError(t, err)

	snap, err := ReadSnapshot(p.snapshot)
	require.NoError(t, err)

	clock := stake.NewManualClock(snap.Block)
	view, err := OpenView(snap, clock, nil)
	require.NoError(t, err)

	user, err := chain.ParseAddress(alice)
	require.NoError(t, err)
	before, err := view.PendingReward(1, user)
	require.NoError(t, err)

	require.NoError(t, clock.Set(snap.Block+10))
	after, err := view.PendingReward(1, user)
	require.NoError(t, err)
	assert.True(t, after.Gt(before))

	requested, unlocked, err := view.Withdrawable(1, user)
	require.NoError(t, err)
	assert.True(t, requested.IsZero())
	assert.True(t, unlocked.IsZero())

	bad := snap
	bad.Custody = "nope"
	_, err = OpenView(bad, clock, nil)
	assert.Error(t, err)
}

func TestRunnerAbortsOnDecreasingBlock(t *testing.T) {
	p := newPaths(t)
	writeOps(t, p.in, []model.Operation{
		{Seq: 1, Block: 100, Caller: alice, Op: model.OpFund, Amount: "1"},
		{Seq: 2, Block: 99, Caller: alice, Op: model.OpFund, Amount: "1"},
	})

	_, err := newTestRunner(t, p, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backwards")
}

func TestRunnerAbortsOnRepeatedSeq(t *testing.T) {
	p := newPaths(t)
	writeOps(t, p.in, []model.Operation{
		{Seq: 1, Block: 100, Caller: alice, Op: model.OpFund, Amount: "1"},
		{Seq: 1, Block: 100, Caller: alice, Op: model.OpFund, Amount: "1"},
	})

	_, err := newTestRunner(t, p, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not follow")
}

func TestRunnerRejectsUnknownOp(t *testing.T) {
	p := newPaths(t)
	writeOps(t, p.in, []model.Operation{
		{Seq: 1, Block: 100, Caller: alice, Op: "burn"},
		{Seq: 2, Block: 100, Caller: "nobody", Op: model.OpClaim},
		{Seq: 3, Block: 100, Op: model.OpMassUpdate},
	})

	summary, err := newTestRunner(t, p, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Rejected)
	assert.Equal(t, 1, summary.Applied)
}

func TestParseGenesisValidates(t *testing.T) {
	_, err := ParseGenesis(config.Genesis{RewardToken: "bad", Admin: admin, Custody: custody})
	assert.Error(t, err)

	_, err = ParseGenesis(config.Genesis{
		RewardToken:    reward,
		StartBlock:     10,
		EndBlock:       5,
		RewardPerBlock: "1",
		Admin:          admin,
		Custody:        custody,
	})
	assert.Error(t, err)
}
