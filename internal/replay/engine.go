package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"hookScope/internal/hook"
	"hookScope/internal/model"
	"hookScope/internal/pool"
	"hookScope/internal/storage"
)

// Config controls replay behavior.
type Config struct {
	BatchSize int
	// ReplayFrom forces processing to restart at this block, overriding
	// the state store.
	ReplayFrom uint64
	StateStore StateStore
	// PoolSink, when set, receives the metadata of pools first seen
	// during this run.
	PoolSink storage.PoolSink
}

// Engine replays a typed-event JSONL stream through the pool tracker and
// the hook pipeline, persisting the outcomes the hooks report.
//
// Events must arrive in log order (block ascending, log index ascending
// within a block); the fetcher produces them that way.
type Engine struct {
	cfg      Config
	tracker  *pool.Tracker
	pipeline *hook.Pipeline
	sink     storage.OutcomeSink
	logger   *zap.Logger
}

func NewEngine(cfg Config, tracker *pool.Tracker, pipeline *hook.Pipeline, sink storage.OutcomeSink, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		tracker:  tracker,
		pipeline: pipeline,
		sink:     sink,
		logger:   logger,
	}
}

// Run executes replay over a typed events JSONL file.
func (e *Engine) Run(ctx context.Context, inputPath string) error {
	if e.tracker == nil {
		return fmt.Errorf("tracker is nil")
	}
	if e.pipeline == nil {
		return fmt.Errorf("pipeline is nil")
	}
	if e.cfg.BatchSize <= 0 {
		e.cfg.BatchSize = 1000
	}

	startBlock, err := e.loadStartBlock(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.OutcomeRecord, 0, e.cfg.BatchSize)
	var pools []model.PoolMeta
	var chainID uint64
	var total, applied, suppressed, failed int
	var curBlock, completed uint64

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			e.logger.Warn("decode typed event", zap.Error(err))
			continue
		}

		if record.BlockNumber != curBlock {
			completed = curBlock
			curBlock = record.BlockNumber
		}

		outcomes, err := e.apply(record)
		if err != nil {
			if isFeedError(err) {
				failed++
				e.logger.Warn("apply event",
					zap.Error(err),
					zap.String("event", record.EventName),
					zap.Uint64("block", record.BlockNumber))
				continue
			}
			return fmt.Errorf("block %d %s: %w", record.BlockNumber, record.EventName, err)
		}
		applied++

		// Tracker and hook state must be rebuilt from the full history on
		// resume; only the outcome persistence is suppressed for blocks
		// the previous run already covered.
		if record.BlockNumber <= startBlock {
			suppressed++
			continue
		}

		if e.cfg.PoolSink != nil && record.EventName == "Initialize" {
			chainID = record.ChainID
			pools = append(pools, record.PoolMeta)
		}

		batch = append(batch, e.outcomeRecords(record, outcomes)...)
		if len(batch) >= e.cfg.BatchSize {
			if err := e.flush(ctx, batch, chainID, pools, completed); err != nil {
				return err
			}
			batch = batch[:0]
			pools = pools[:0]
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	if err := e.flush(ctx, batch, chainID, pools, curBlock); err != nil {
		return err
	}

	e.logger.Info("replay complete",
		zap.Int("total", total),
		zap.Int("applied", applied),
		zap.Int("suppressed", suppressed),
		zap.Int("failed", failed),
		zap.Uint64("last_block", curBlock),
	)
	return nil
}

// apply routes one decoded event through the tracker and dispatches the
// resulting hook events.
func (e *Engine) apply(record model.TypedEventRecord) ([]hook.Outcome, error) {
	switch record.EventName {
	case "Initialize":
		var data model.InitializeEventData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return nil, feedErrorf("initialize payload: %w", err)
		}
		if err := e.tracker.ApplyInitialize(data); err != nil {
			return nil, feedErrorf("apply initialize: %w", err)
		}
		return nil, nil

	case "Swap":
		var data model.SwapEventData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return nil, feedErrorf("swap payload: %w", err)
		}
		before, after, err := e.tracker.ApplySwap(record.BlockNumber, data)
		if err != nil {
			return nil, feedErrorf("apply swap: %w", err)
		}
		outcomes, err := e.pipeline.OnBeforeSwap(before)
		if err != nil {
			return nil, err
		}
		more, err := e.pipeline.OnAfterSwap(after)
		if err != nil {
			return nil, err
		}
		return append(outcomes, more...), nil

	case "ModifyLiquidity":
		var data model.ModifyLiquidityEventData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return nil, feedErrorf("modify liquidity payload: %w", err)
		}
		before, after, err := e.tracker.ApplyModifyLiquidity(record.BlockNumber, data)
		if err != nil {
			return nil, feedErrorf("apply modify liquidity: %w", err)
		}
		outcomes, err := e.pipeline.OnBeforeModifyLiquidity(before)
		if err != nil {
			return nil, err
		}
		more, err := e.pipeline.OnAfterModifyLiquidity(after)
		if err != nil {
			return nil, err
		}
		return append(outcomes, more...), nil

	case "Donate":
		var data model.DonateEventData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return nil, feedErrorf("donate payload: %w", err)
		}
		if err := e.tracker.ApplyDonate(data); err != nil {
			return nil, feedErrorf("apply donate: %w", err)
		}
		return nil, nil

	default:
		return nil, feedErrorf("unsupported event %q", record.EventName)
	}
}

func (e *Engine) outcomeRecords(record model.TypedEventRecord, outcomes []hook.Outcome) []model.OutcomeRecord {
	if len(outcomes) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	out := make([]model.OutcomeRecord, 0, len(outcomes))
	for _, o := range outcomes {
		detail, err := outcomeDetail(o)
		if err != nil {
			e.logger.Warn("marshal outcome", zap.Error(err), zap.String("kind", o.Kind()))
			continue
		}
		out = append(out, model.OutcomeRecord{
			ChainID:     record.ChainID,
			BlockNumber: record.BlockNumber,
			TxHash:      record.TxHash,
			LogIndex:    record.LogIndex,
			PoolID:      record.PoolMeta.PoolID,
			Kind:        o.Kind(),
			Detail:      detail,
			RecordedAt:  now,
		})
	}
	return out
}

func (e *Engine) flush(ctx context.Context, batch []model.OutcomeRecord, chainID uint64, pools []model.PoolMeta, completed uint64) error {
	if len(pools) > 0 && e.cfg.PoolSink != nil {
		if err := e.cfg.PoolSink.PutPoolBatch(chainID, pools); err != nil {
			return fmt.Errorf("write pools: %w", err)
		}
	}
	if len(batch) > 0 && e.sink != nil {
		if err := e.sink.PutOutcomeBatch(batch); err != nil {
			return fmt.Errorf("write outcomes: %w", err)
		}
	}
	if e.cfg.StateStore != nil && completed > 0 {
		if err := e.cfg.StateStore.Save(ctx, completed); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}
	return nil
}

func (e *Engine) loadStartBlock(ctx context.Context) (uint64, error) {
	if e.cfg.ReplayFrom > 0 {
		return e.cfg.ReplayFrom - 1, nil
	}
	if e.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := e.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// feedError marks a per-record problem: the input line is bad or out of
// order, so the record is skipped instead of aborting the run. Hook
// errors never carry it and always abort.
type feedError struct {
	err error
}

func (f feedError) Error() string { return f.err.Error() }
func (f feedError) Unwrap() error { return f.err }

func feedErrorf(format string, args ...interface{}) error {
	return feedError{err: fmt.Errorf(format, args...)}
}

func isFeedError(err error) bool {
	_, ok := err.(feedError)
	return ok
}
