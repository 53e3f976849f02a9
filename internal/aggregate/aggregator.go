// Package aggregate rolls engine events up into fixed-size pool windows.
package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"simpleamm/internal/model"
)

// MetricsStore receives aggregated windows and the pools they belong to.
// *postgres.Store satisfies it.
type MetricsStore interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	// RecomputeFrom restarts aggregation at this event sequence, ignoring saved state.
	RecomputeFrom uint64
	StateStore    StateStore
}

// Aggregator aggregates engine events into pool window metrics.
type Aggregator struct {
	cfg          Config
	store        MetricsStore
	logger       *zap.Logger
	accumulators map[string]*Accumulator
	poolSeen     map[string]struct{}
	lastSequence uint64
}

func NewAggregator(cfg Config, store MetricsStore, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
		poolSeen:     make(map[string]struct{}),
	}
}

// Run executes aggregation over an events JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	return a.RunReader(ctx, file)
}

// RunReader executes aggregation over JSONL events read from r.
func (a *Aggregator) RunReader(ctx context.Context, r io.Reader) error {
	if a.store == nil {
		return fmt.Errorf("store is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startSeq, err := a.loadStartSequence(ctx)
	if err != nil {
		return err
	}
	a.lastSequence = startSeq

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	pools := make([]model.Pool, 0, 64)
	var total, windows, skipped, failed int
	var maxSequence uint64

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.EventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			a.logger.Warn("decode event", zap.Error(err))
			continue
		}

		if record.Sequence > maxSequence {
			maxSequence = record.Sequence
		}
		if record.Sequence <= startSeq {
			skipped++
			continue
		}

		windowStart := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		accKey := poolKey(record.Pool)
		acc := a.accumulators[accKey]
		if acc == nil {
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		} else if acc.WindowStart != windowStart {
			metrics, pool := a.flushAccumulator(acc)
			batch = append(batch, metrics)
			windows++
			if pool != nil {
				pools = append(pools, *pool)
			}
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		}

		if err := acc.AddEvent(record); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", record.Pool), zap.String("event", record.Name))
			continue
		}

		if record.Sequence > a.lastSequence {
			a.lastSequence = record.Sequence
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.flushBatches(ctx, batch, pools); err != nil {
				return err
			}
			batch = batch[:0]
			pools = pools[:0]

			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}
	// Engine sequences only grow, so a start past the log's end means the
	// state was saved against another event log.
	if startSeq > maxSequence {
		return fmt.Errorf("%w: resuming after sequence %d but the log ends at %d", ErrStateMismatch, startSeq, maxSequence)
	}

	for _, acc := range a.accumulators {
		metrics, pool := a.flushAccumulator(acc)
		batch = append(batch, metrics)
		windows++
		if pool != nil {
			pools = append(pools, *pool)
		}
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 || len(pools) > 0 {
		if err := a.flushBatches(ctx, batch, pools); err != nil {
			return err
		}
	}

	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", windows),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Uint64("last_sequence", a.lastSequence),
	)

	return nil
}

func (a *Aggregator) loadStartSequence(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// saveState records the highest sequence whose window is closed. Events of
// still-open windows are aggregated again on the next run.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.lastSequence)
	}

	first := minOpenSequence(a.accumulators)
	if first > 0 {
		first--
	}
	return a.cfg.StateStore.Save(ctx, first)
}

func (a *Aggregator) flushBatches(ctx context.Context, batch []model.PoolWindowMetrics, pools []model.Pool) error {
	if len(pools) > 0 {
		if err := a.store.UpsertPools(ctx, pools); err != nil {
			return err
		}
	}
	if len(batch) > 0 {
		if err := a.store.UpsertWindowMetrics(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) flushAccumulator(acc *Accumulator) (model.PoolWindowMetrics, *model.Pool) {
	poolRecord := a.registerPool(acc)
	feeRateA, feeRateB := computeFeeRates(acc.FeeA, acc.FeeB, acc.ReserveA, acc.ReserveB)

	metrics := model.PoolWindowMetrics{
		PoolAddress:    acc.PoolAddress,
		TokenA:         acc.TokenA,
		TokenB:         acc.TokenB,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		VolumeA:        acc.VolumeA.String(),
		VolumeB:        acc.VolumeB.String(),
		FeeA:           acc.FeeA.String(),
		FeeB:           acc.FeeB.String(),
		ReserveA:       fmt.Sprintf("%d", acc.ReserveA),
		ReserveB:       fmt.Sprintf("%d", acc.ReserveB),
		FeeRateA:       feeRateA,
		FeeRateB:       feeRateB,
		LastSequence:   acc.LastSequence,
	}
	return metrics, poolRecord
}

// registerPool returns the pool the first time a run sees it.
func (a *Aggregator) registerPool(acc *Accumulator) *model.Pool {
	key := poolKey(acc.PoolAddress)
	if _, ok := a.poolSeen[key]; ok {
		return nil
	}
	a.poolSeen[key] = struct{}{}

	return &model.Pool{
		Address:        common.HexToAddress(acc.PoolAddress),
		TokenA:         common.HexToAddress(acc.TokenA),
		TokenB:         common.HexToAddress(acc.TokenB),
		LPToken:        common.HexToAddress(acc.LPToken),
		ReserveA:       acc.ReserveA,
		ReserveB:       acc.ReserveB,
		LPSupply:       acc.LPSupply,
		FeeBasisPoints: acc.Fee,
	}
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(address string) string {
	return strings.ToLower(address)
}

func minOpenSequence(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.FirstSequence < min {
			min = entry.FirstSequence
		}
	}
	return min
}
