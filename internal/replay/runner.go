package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"stakeLedger/internal/chain"
	"stakeLedger/internal/model"
	"stakeLedger/internal/stake"
	"stakeLedger/internal/storage"
)

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	In              string
	Genesis         Genesis
	SnapshotPath    string
	SnapshotEnabled bool
	BatchSize       int
}

// Exporter receives the final snapshot, e.g. a Postgres store.
type Exporter interface {
	LoadState(ctx context.Context) (uint64, bool, error)
	ExportSnapshot(ctx context.Context, snap model.LedgerSnapshot, batchSize int) error
}

// Summary counts what a replay did.
type Summary struct {
	Applied  int
	Rejected int
	Skipped  int
	Events   int
	LastSeq  uint64
	Block    uint64
}

// Runner applies an operation script to a ledger in sequence order and
// journals the resulting events.
type Runner struct {
	cfg       RunConfig
	events    storage.EventSink
	results   storage.ResultSink
	exporter  Exporter
	logger    *zap.Logger
	snapshots *SnapshotStore
}

// NewRunner builds a Runner with its dependencies. exporter may be nil.
func NewRunner(cfg RunConfig, events storage.EventSink, results storage.ResultSink, exporter Exporter, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Runner{
		cfg:       cfg,
		events:    events,
		results:   results,
		exporter:  exporter,
		logger:    logger,
		snapshots: NewSnapshotStore(cfg.SnapshotPath, cfg.SnapshotEnabled),
	}
}

// Run replays the input file. Operations already covered by a saved
// snapshot are skipped.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if r.events == nil {
		return Summary{}, fmt.Errorf("event sink is nil")
	}
	if r.results == nil {
		return Summary{}, fmt.Errorf("result sink is nil")
	}
	if r.cfg.In == "" {
		return Summary{}, fmt.Errorf("input path is required")
	}

	state, err := r.open()
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{LastSeq: state.lastSeq, Block: state.clock.Current()}

	inputFile, err := os.Open(r.cfg.In)
	if err != nil {
		return summary, fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	scanner := bufio.NewScanner(inputFile)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var (
		pendingEvents  []model.Event
		pendingResults []model.OperationResult
		sinceFlush     int
		lineNo         int
	)
	flush := func() error {
		if err := r.events.PutEventBatch(pendingEvents); err != nil {
			return fmt.Errorf("store events: %w", err)
		}
		if err := r.results.PutResultBatch(pendingResults); err != nil {
			return fmt.Errorf("store results: %w", err)
		}
		if err := r.snapshots.Save(state.snapshot()); err != nil {
			return err
		}
		r.logger.Info("batch complete",
			zap.Int("events", len(pendingEvents)),
			zap.Int("rejected", len(pendingResults)),
			zap.Uint64("last_seq", state.lastSeq),
			zap.Uint64("block", state.clock.Current()),
		)
		pendingEvents = pendingEvents[:0]
		pendingResults = pendingResults[:0]
		sinceFlush = 0
		return nil
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var op model.Operation
		if err := json.Unmarshal(line, &op); err != nil {
			return summary, fmt.Errorf("line %d: parse operation: %w", lineNo, err)
		}
		if op.Seq <= state.lastSeq {
			if state.resumed {
				summary.Skipped++
				continue
			}
			return summary, fmt.Errorf("line %d: seq %d does not follow %d", lineNo, op.Seq, state.lastSeq)
		}
		state.resumed = false
		if err := state.clock.Set(op.Block); err != nil {
			return summary, fmt.Errorf("line %d: seq %d: %w", lineNo, op.Seq, err)
		}

		if err := state.apply(op); err != nil {
			summary.Rejected++
			pendingResults = append(pendingResults, model.OperationResult{
				Seq:   op.Seq,
				Block: op.Block,
				Op:    op.Op,
				Error: err.Error(),
			})
			r.logger.Debug("operation rejected", zap.Uint64("seq", op.Seq), zap.String("op", op.Op), zap.Error(err))
		} else {
			summary.Applied++
		}

		for _, event := range state.engine.DrainEvents() {
			event.Seq = op.Seq
			pendingEvents = append(pendingEvents, event)
			summary.Events++
		}
		state.lastSeq = op.Seq
		summary.LastSeq = op.Seq
		summary.Block = op.Block

		sinceFlush++
		if sinceFlush >= r.cfg.BatchSize {
			if err := flush(); err != nil {
				return summary, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("scan input: %w", err)
	}
	if err := flush(); err != nil {
		return summary, err
	}

	if r.exporter != nil {
		if err := r.export(ctx, state.snapshot()); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (r *Runner) export(ctx context.Context, snap model.LedgerSnapshot) error {
	exported, ok, err := r.exporter.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("load export state: %w", err)
	}
	if ok && exported >= snap.LastSeq {
		r.logger.Info("export up to date", zap.Uint64("last_seq", exported))
		return nil
	}
	if err := r.exporter.ExportSnapshot(ctx, snap, r.cfg.BatchSize); err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	r.logger.Info("snapshot exported", zap.Uint64("last_seq", snap.LastSeq), zap.Int("pools", len(snap.Pools)), zap.Int("positions", len(snap.Positions)))
	return nil
}

func (r *Runner) open() (*ledgerState, error) {
	snap, ok, err := r.snapshots.Load()
	if err != nil {
		return nil, err
	}
	if ok {
		state, err := restoreState(snap, r.logger)
		if err != nil {
			return nil, fmt.Errorf("restore snapshot: %w", err)
		}
		r.logger.Info("resume from snapshot", zap.Uint64("last_seq", snap.LastSeq), zap.Uint64("block", snap.Block))
		return state, nil
	}
	return newState(r.cfg.Genesis, r.logger)
}

// ledgerState is one ledger instance with its in-memory collaborators.
type ledgerState struct {
	clock   *stake.ManualClock
	ledger  *stake.MemoryLedger
	gate    *stake.RoleGate
	engine  *stake.Engine
	lastSeq uint64
	resumed bool
}

func newState(genesis Genesis, logger *zap.Logger) (*ledgerState, error) {
	s := &ledgerState{
		clock:  stake.NewManualClock(0),
		ledger: stake.NewMemoryLedger(genesis.Custody),
		gate:   stake.NewRoleGate(genesis.Admin),
	}
	engine, err := stake.NewEngine(genesis.Config, stake.Options{Clock: s.clock, Ledger: s.ledger, Gate: s.gate, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("create ledger: %w", err)
	}
	s.engine = engine
	s.engine.DrainEvents()
	return s, nil
}

func restoreState(snap model.LedgerSnapshot, logger *zap.Logger) (*ledgerState, error) {
	clock := stake.NewManualClock(snap.Block)
	engine, ledger, gate, err := restore(snap, clock, logger)
	if err != nil {
		return nil, err
	}
	return &ledgerState{
		clock:   clock,
		ledger:  ledger,
		gate:    gate,
		engine:  engine,
		lastSeq: snap.LastSeq,
		resumed: true,
	}, nil
}

// OpenView restores a snapshot onto an external clock, typically a live
// chain head, for pending and withdrawable queries.
func OpenView(snap model.LedgerSnapshot, clock stake.BlockClock, logger *zap.Logger) (*stake.Engine, error) {
	engine, _, _, err := restore(snap, clock, logger)
	return engine, err
}

func restore(snap model.LedgerSnapshot, clock stake.BlockClock, logger *zap.Logger) (*stake.Engine, *stake.MemoryLedger, *stake.RoleGate, error) {
	custody, err := chain.ParseAddress(snap.Custody)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("custody: %w", err)
	}
	gate, err := stake.RestoreRoleGate(snap.Roles)
	if err != nil {
		return nil, nil, nil, err
	}
	ledger := stake.NewMemoryLedger(custody)
	if err := ledger.Restore(snap.Balances); err != nil {
		return nil, nil, nil, err
	}
	engine, err := stake.RestoreEngine(snap, stake.Options{Clock: clock, Ledger: ledger, Gate: gate, Logger: logger})
	if err != nil {
		return nil, nil, nil, err
	}
	return engine, ledger, gate, nil
}

func (s *ledgerState) snapshot() model.LedgerSnapshot {
	snap := s.engine.Snapshot()
	snap.LastSeq = s.lastSeq
	snap.Custody = s.ledger.Custody().Hex()
	snap.Balances = s.ledger.Snapshot()
	snap.Roles = s.gate.Snapshot()
	return snap
}
