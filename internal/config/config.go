package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Genesis holds the parameters a fresh ledger starts from.
type Genesis struct {
	RewardToken      string
	StartBlock       uint64
	EndBlock         uint64
	RewardPerBlock   string
	NativeWeight     uint64
	NativeMinDeposit string
	NativeLockBlocks uint64
	Admin            string
	Custody          string
}

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Genesis         Genesis
	In              string
	Events          string
	Results         string
	Snapshot        string
	SnapshotEnabled bool
	PostgresDSN     string
	BatchSize       int
	LogLevel        string
}

// QueryConfig holds configuration for commands that read a snapshot against
// a live chain.
type QueryConfig struct {
	RPCURL        string
	Snapshot      string
	Users         []string
	Pools         []uint64
	AtBlock       uint64
	BlocksPerYear uint64
	MaxRetries    int
	RetryBackoff  time.Duration
	LogLevel      string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"native-weight":      uint64(100),
		"native-lock-blocks": uint64(0),
		"in":                 "./data/operations.jsonl",
		"events":             "./data/events.jsonl",
		"results":            "./data/rejected.jsonl",
		"snapshot":           "./data/snapshot.json",
		"snapshot-enabled":   true,
		"batch-size":         500,
		"log-level":          "info",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	cfg := ReplayConfig{
		Genesis: Genesis{
			RewardToken:      v.GetString("reward-token"),
			StartBlock:       v.GetUint64("start-block"),
			EndBlock:         v.GetUint64("end-block"),
			RewardPerBlock:   v.GetString("reward-per-block"),
			NativeWeight:     v.GetUint64("native-weight"),
			NativeMinDeposit: v.GetString("native-min-deposit"),
			NativeLockBlocks: v.GetUint64("native-lock-blocks"),
			Admin:            v.GetString("admin"),
			Custody:          v.GetString("custody"),
		},
		In:              v.GetString("in"),
		Events:          v.GetString("events"),
		Results:         v.GetString("results"),
		Snapshot:        v.GetString("snapshot"),
		SnapshotEnabled: v.GetBool("snapshot-enabled"),
		PostgresDSN:     v.GetString("pg-dsn"),
		BatchSize:       v.GetInt("batch-size"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

// LoadQuery merges config file, environment variables, and flags into QueryConfig.
func LoadQuery(cfgFile string, flags *pflag.FlagSet) (QueryConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"snapshot":        "./data/snapshot.json",
		"blocks-per-year": uint64(10512000),
		"max-retries":     5,
		"retry-backoff":   500 * time.Millisecond,
		"log-level":       "info",
	})
	if err != nil {
		return QueryConfig{}, err
	}

	pools, err := getUintSlice(v, "pid")
	if err != nil {
		return QueryConfig{}, err
	}

	cfg := QueryConfig{
		RPCURL:        v.GetString("rpc"),
		Snapshot:      v.GetString("snapshot"),
		Users:         getStringSlice(v, "user"),
		Pools:         pools,
		AtBlock:       v.GetUint64("at-block"),
		BlocksPerYear: v.GetUint64("blocks-per-year"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		LogLevel:      v.GetString("log-level"),
	}

	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("STAKER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func getUintSlice(v *viper.Viper, key string) ([]uint64, error) {
	items := getStringSlice(v, key)
	out := make([]uint64, 0, len(items))
	for _, item := range items {
		n, err := strconv.ParseUint(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q: %w", key, item, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
