package jitpenalty

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"hookScope/internal/hook"
)

// ActiveLiquidityReader reports a pool's currently in-range liquidity.
// Donations are distributed pro-rata against this value by the host; the
// tracker only needs to know whether a recipient set exists. This is an
// external read dependency, not tracker state.
type ActiveLiquidityReader interface {
	ActiveLiquidity(pool common.Hash) (*uint256.Int, error)
}

// Config fixes the tracker's parameters at construction.
type Config struct {
	// BlockNumberOffset is the penalty window in blocks. Removals at
	// age >= offset are penalty-free; the boundary is closed on the
	// no-penalty side.
	BlockNumberOffset uint64
	// Policy scales the penalized share within the window. Defaults to
	// LinearPolicy.
	Policy PenaltyPolicy
}

// Tracker records the block of each position's most recent liquidity
// addition and withholds fee accrual from freshly added liquidity so that
// just-in-time positions cannot claim fees as if present the whole period.
type Tracker struct {
	cfg    Config
	reader ActiveLiquidityReader

	lastAdd  map[common.Hash]uint64
	withheld map[common.Hash]hook.Amounts
	carried  map[common.Hash]hook.Amounts
}

// NewTracker builds a tracker. reader is consulted at donation time.
func NewTracker(cfg Config, reader ActiveLiquidityReader) *Tracker {
	if cfg.Policy == nil {
		cfg.Policy = LinearPolicy{}
	}
	return &Tracker{
		cfg:      cfg,
		reader:   reader,
		lastAdd:  make(map[common.Hash]uint64),
		withheld: make(map[common.Hash]hook.Amounts),
		carried:  make(map[common.Hash]hook.Amounts),
	}
}

// BlockNumberOffset returns the configured penalty window.
func (t *Tracker) BlockNumberOffset() uint64 { return t.cfg.BlockNumberOffset }

// LastAddedLiquidityBlock returns the block of the position's most recent
// addition. Stale entries persist after removal; they are re-checked
// against the current block on the next removal.
func (t *Tracker) LastAddedLiquidityBlock(key hook.PositionKey) (uint64, bool) {
	block, ok := t.lastAdd[key.ID()]
	return block, ok
}

// WithheldFees returns the position's fee accrual pending penalty
// evaluation.
func (t *Tracker) WithheldFees(key hook.PositionKey) hook.Amounts {
	if wh, ok := t.withheld[key.ID()]; ok {
		return wh.Clone()
	}
	return hook.NewAmounts()
}

// CarriedDonation returns the pool's penalty accumulator: donations that
// had no in-range recipient, carried forward to the next donation.
func (t *Tracker) CarriedDonation(pool common.Hash) hook.Amounts {
	if c, ok := t.carried[pool]; ok {
		return c.Clone()
	}
	return hook.NewAmounts()
}

// AfterModifyLiquidity routes adds and removes by the sign of the
// liquidity delta. A zero delta only touches fee accrual and is treated
// like a removal-side settlement without resetting the add record.
func (t *Tracker) AfterModifyLiquidity(ev hook.AfterModifyLiquidityEvent) ([]hook.Outcome, error) {
	if ev.LiquidityDelta != nil && ev.LiquidityDelta.Sign() > 0 {
		return t.afterAdd(ev), nil
	}
	return t.afterRemove(ev)
}

// afterAdd resets the last-add record to the current block and withholds
// any fee accrual instead of crediting the owner. Repeated adds restart
// the full window from the latest block; an LP who continuously tops up
// must wait the whole window from the most recent addition.
func (t *Tracker) afterAdd(ev hook.AfterModifyLiquidityEvent) []hook.Outcome {
	id := ev.Position.ID()
	t.lastAdd[id] = ev.Block

	if ev.FeesAccrued.IsZero() {
		return nil
	}

	wh, ok := t.withheld[id]
	if !ok {
		wh = hook.NewAmounts()
	}
	t.withheld[id] = wh.Add(ev.FeesAccrued)

	return []hook.Outcome{hook.FeesWithheld{
		Pool:     ev.Pool,
		Position: ev.Position,
		Block:    ev.Block,
		Fees:     ev.FeesAccrued.Clone(),
	}}
}

// afterRemove settles the position's fees. Fees pending in the withheld
// entry and fees accrued this period are evaluated together: both are
// "pending penalty evaluation" until a removal survives the window.
func (t *Tracker) afterRemove(ev hook.AfterModifyLiquidityEvent) ([]hook.Outcome, error) {
	id := ev.Position.ID()

	total := ev.FeesAccrued.Clone()
	if wh, ok := t.withheld[id]; ok {
		total = total.Add(wh)
		delete(t.withheld, id)
	}
	if total.IsZero() {
		return nil, nil
	}

	lastAdd, hasRecord := t.lastAdd[id]
	var age uint64
	if hasRecord && ev.Block >= lastAdd {
		age = ev.Block - lastAdd
	} else if !hasRecord {
		age = t.cfg.BlockNumberOffset
	}

	if age >= t.cfg.BlockNumberOffset {
		return []hook.Outcome{hook.FeesReleased{
			Pool:     ev.Pool,
			Position: ev.Position,
			Block:    ev.Block,
			Fees:     total,
		}}, nil
	}

	penalty := hook.Amounts{
		Amount0: t.cfg.Policy.Penalty(total.Amount0, age, t.cfg.BlockNumberOffset),
		Amount1: t.cfg.Policy.Penalty(total.Amount1, age, t.cfg.BlockNumberOffset),
	}
	released := total.Sub(penalty)

	outcomes := []hook.Outcome{hook.PenaltyApplied{
		Pool:     ev.Pool,
		Position: ev.Position,
		Block:    ev.Block,
		Age:      age,
		Penalty:  penalty.Clone(),
	}}
	if !released.IsZero() {
		outcomes = append(outcomes, hook.FeesReleased{
			Pool:     ev.Pool,
			Position: ev.Position,
			Block:    ev.Block,
			Fees:     released,
		})
	}

	donation, err := t.donate(ev.Pool, ev.Block, penalty)
	if err != nil {
		return nil, err
	}
	return append(outcomes, donation...), nil
}

// donate hands the penalty (plus any carried remainder) to the pool's
// in-range liquidity. With no in-range recipient the amount is retained
// in the penalty accumulator rather than lost.
func (t *Tracker) donate(pool common.Hash, block uint64, penalty hook.Amounts) ([]hook.Outcome, error) {
	pending := penalty.Clone()
	if c, ok := t.carried[pool]; ok {
		pending = pending.Add(c)
	}
	if pending.IsZero() {
		return nil, nil
	}

	if t.reader == nil {
		return nil, fmt.Errorf("%w: no active liquidity reader for donation", hook.ErrInvariantViolation)
	}
	active, err := t.reader.ActiveLiquidity(pool)
	if err != nil {
		return nil, fmt.Errorf("read active liquidity: %w", err)
	}

	if active == nil || active.IsZero() {
		t.carried[pool] = pending
		return []hook.Outcome{hook.DonationCarried{
			Pool:     pool,
			Block:    block,
			Retained: pending.Clone(),
		}}, nil
	}

	delete(t.carried, pool)
	return []hook.Outcome{hook.DonationForwarded{
		Pool:            pool,
		Block:           block,
		Donation:        pending,
		ActiveLiquidity: active.Clone(),
	}}, nil
}
