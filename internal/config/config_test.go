package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

const replayYAML = `
reward-token: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
start-block: 110
end-block: 1010
reward-per-block: "1000000000000000000"
native-min-deposit: "100000000000000000"
native-lock-blocks: 10
admin: "0x1000000000000000000000000000000000000001"
custody: "0xcccccccccccccccccccccccccccccccccccccccc"
in: ops.jsonl
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadReplayMergesFileEnvAndFlags(t *testing.T) {
	path := writeConfig(t, "staker.yaml", replayYAML)
	t.Setenv("STAKER_END_BLOCK", "2000")

	flags := pflag.NewFlagSet("replay", pflag.ContinueOnError)
	flags.String("events", "./data/events.jsonl", "")
	flags.String("log-level", "info", "")
	if err := flags.Parse([]string{"--events", "/tmp/ev.jsonl"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadReplay(path, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	g := cfg.Genesis
	if g.StartBlock != 110 {
		t.Fatalf("expected start block 110, got %d", g.StartBlock)
	}
	if g.EndBlock != 2000 {
		t.Fatalf("expected env override 2000, got %d", g.EndBlock)
	}
	if g.NativeWeight != 100 {
		t.Fatalf("expected default native weight 100, got %d", g.NativeWeight)
	}
	if g.NativeLockBlocks != 10 || g.RewardPerBlock != "1000000000000000000" {
		t.Fatalf("unexpected genesis: %+v", g)
	}
	if cfg.In != "ops.jsonl" {
		t.Fatalf("expected in from file, got %s", cfg.In)
	}
	if cfg.Events != "/tmp/ev.jsonl" {
		t.Fatalf("expected events from flag, got %s", cfg.Events)
	}
	if !cfg.SnapshotEnabled || cfg.BatchSize != 500 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadReplayMissingFile(t *testing.T) {
	if _, err := LoadReplay(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadQuery(t *testing.T) {
	path := writeConfig(t, "query.yaml", `
rpc: "http://localhost:8545"
user:
  - "0x2000000000000000000000000000000000000002"
  - " 0x3000000000000000000000000000000000000003 "
pid: "0, 1"
retry-backoff: 2s
at-block: 1200
`)

	cfg, err := LoadQuery(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://localhost:8545" {
		t.Fatalf("unexpected rpc: %s", cfg.RPCURL)
	}
	if len(cfg.Users) != 2 || cfg.Users[1] != "0x3000000000000000000000000000000000000003" {
		t.Fatalf("unexpected users: %v", cfg.Users)
	}
	if len(cfg.Pools) != 2 || cfg.Pools[0] != 0 || cfg.Pools[1] != 1 {
		t.Fatalf("unexpected pools: %v", cfg.Pools)
	}
	if cfg.RetryBackoff != 2*time.Second || cfg.MaxRetries != 5 {
		t.Fatalf("unexpected retry settings: %v %d", cfg.RetryBackoff, cfg.MaxRetries)
	}
	if cfg.AtBlock != 1200 || cfg.BlocksPerYear != 10512000 {
		t.Fatalf("unexpected block settings: %d %d", cfg.AtBlock, cfg.BlocksPerYear)
	}
}

func TestLoadQueryRejectsBadPool(t *testing.T) {
	path := writeConfig(t, "query.yaml", "pid: \"x\"\n")
	if _, err := LoadQuery(path, nil); err == nil {
		t.Fatalf("expected error for bad pid")
	}
}
