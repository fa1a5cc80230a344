package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stakeLedger/internal/model"
)

// SnapshotStore persists ledger snapshots to disk.
type SnapshotStore struct {
	path    string
	enabled bool
}

func NewSnapshotStore(path string, enabled bool) *SnapshotStore {
	return &SnapshotStore{path: path, enabled: enabled && path != ""}
}

func (c *SnapshotStore) Load() (model.LedgerSnapshot, bool, error) {
	if !c.enabled {
		return model.LedgerSnapshot{}, false, nil
	}

	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.LedgerSnapshot{}, false, nil
		}
		return model.LedgerSnapshot{}, false, fmt.Errorf("stat snapshot: %w", err)
	}
	if stat.IsDir() {
		return model.LedgerSnapshot{}, false, fmt.Errorf("snapshot path is a directory")
	}

	snap, err := ReadSnapshot(c.path)
	if err != nil {
		return model.LedgerSnapshot{}, false, err
	}
	return snap, true, nil
}

func (c *SnapshotStore) Save(snap model.LedgerSnapshot) error {
	if !c.enabled {
		return nil
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	snap.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}

	return nil
}

// ReadSnapshot loads a snapshot file written by SnapshotStore.
func ReadSnapshot(path string) (model.LedgerSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.LedgerSnapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var snap model.LedgerSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.LedgerSnapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, nil
}
