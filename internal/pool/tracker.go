package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"hookScope/internal/hook"
	"hookScope/internal/model"
)

// feeDenominator converts pip fee rates (uint24) to fractions.
const feeDenominator = 1_000_000

// position is one liquidity range with fee-growth snapshots taken at its
// last touch.
type position struct {
	key            hook.PositionKey
	liquidity      *uint256.Int
	feeGrowth0Ckpt *uint256.Int
	feeGrowth1Ckpt *uint256.Int
}

type poolState struct {
	initialized bool
	tickSpacing int32
	feeRate     uint32

	sqrtPriceX96 *uint256.Int
	tick         int32

	feeGrowth0X128 *uint256.Int
	feeGrowth1X128 *uint256.Int

	positions map[common.Hash]*position
}

// Tracker mirrors per-pool state from the decoded event stream: price,
// tick, positions and global fee growth. It turns raw manager events into
// hook event payloads and answers the read queries hooks need.
type Tracker struct {
	logger *zap.Logger
	pools  map[common.Hash]*poolState
}

// NewTracker builds an empty tracker.
func NewTracker(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		logger: logger,
		pools:  make(map[common.Hash]*poolState),
	}
}

// ApplyInitialize seeds a pool's state from its Initialize event.
func (t *Tracker) ApplyInitialize(data model.InitializeEventData) error {
	id := common.HexToHash(data.PoolID)
	if _, exists := t.pools[id]; exists {
		return fmt.Errorf("pool %s initialized twice", data.PoolID)
	}

	sqrtPrice, err := parseUint(data.SqrtPriceX96)
	if err != nil {
		return fmt.Errorf("initialize sqrt price: %w", err)
	}
	if data.TickSpacing <= 0 {
		return fmt.Errorf("initialize tick spacing %d", data.TickSpacing)
	}

	t.pools[id] = &poolState{
		initialized:    true,
		tickSpacing:    data.TickSpacing,
		feeRate:        data.Fee,
		sqrtPriceX96:   sqrtPrice,
		tick:           data.Tick,
		feeGrowth0X128: uint256.NewInt(0),
		feeGrowth1X128: uint256.NewInt(0),
		positions:      make(map[common.Hash]*position),
	}
	return nil
}

// ApplySwap advances the pool past a Swap event. The returned pair is the
// pre-state and post-state view for hook dispatch; crossings enumerate
// the spacing-aligned ticks the price moved through, each carrying its
// share of the swap's per-unit fee growth.
//
// Event amounts are signed from the swapper's perspective: a negative
// amount left the swapper, so amount0 < 0 means token0 in, token1 out.
func (t *Tracker) ApplySwap(block uint64, data model.SwapEventData) (hook.BeforeSwapEvent, hook.AfterSwapEvent, error) {
	id := common.HexToHash(data.PoolID)
	ps, err := t.state(id)
	if err != nil {
		return hook.BeforeSwapEvent{}, hook.AfterSwapEvent{}, err
	}

	amount0, err := parseBig(data.Amount0)
	if err != nil {
		return hook.BeforeSwapEvent{}, hook.AfterSwapEvent{}, fmt.Errorf("swap amount0: %w", err)
	}
	amount1, err := parseBig(data.Amount1)
	if err != nil {
		return hook.BeforeSwapEvent{}, hook.AfterSwapEvent{}, fmt.Errorf("swap amount1: %w", err)
	}
	newSqrtPrice, err := parseUint(data.SqrtPriceX96)
	if err != nil {
		return hook.BeforeSwapEvent{}, hook.AfterSwapEvent{}, fmt.Errorf("swap sqrt price: %w", err)
	}
	liquidity, err := parseUint(data.Liquidity)
	if err != nil {
		return hook.BeforeSwapEvent{}, hook.AfterSwapEvent{}, fmt.Errorf("swap liquidity: %w", err)
	}

	zeroForOne := amount0.Sign() < 0
	var amountIn, amountOut *uint256.Int
	if zeroForOne {
		amountIn = absUint(amount0)
		amountOut = absUint(amount1)
	} else {
		amountIn = absUint(amount1)
		amountOut = absUint(amount0)
	}

	before := hook.BeforeSwapEvent{
		Pool:         id,
		Block:        block,
		ZeroForOne:   zeroForOne,
		SqrtPriceX96: ps.sqrtPriceX96.Clone(),
		Tick:         ps.tick,
	}

	// Swap fee accrues in the input currency, spread across the pool's
	// active liquidity.
	growthDelta := uint256.NewInt(0)
	if !liquidity.IsZero() {
		fee := hook.ScaleFrac(amountIn, uint64(ps.feeRate), feeDenominator)
		growthDelta = divX128(fee, liquidity)
		if zeroForOne {
			ps.feeGrowth0X128 = hook.SatAdd(ps.feeGrowth0X128, growthDelta)
		} else {
			ps.feeGrowth1X128 = hook.SatAdd(ps.feeGrowth1X128, growthDelta)
		}
	}

	crossings := crossedTicks(ps.tick, data.Tick, ps.tickSpacing, growthDelta)

	ps.sqrtPriceX96 = newSqrtPrice
	ps.tick = data.Tick

	after := hook.AfterSwapEvent{
		Pool:         id,
		Block:        block,
		ZeroForOne:   zeroForOne,
		SqrtPriceX96: newSqrtPrice.Clone(),
		Tick:         data.Tick,
		AmountIn:     amountIn,
		AmountOut:    amountOut,
		Crossings:    crossings,
	}
	return before, after, nil
}

// ApplyModifyLiquidity advances a position past a ModifyLiquidity event.
// Fee accrual since the position's last touch is settled into the
// after-event's FeesAccrued and the snapshots reset.
func (t *Tracker) ApplyModifyLiquidity(block uint64, data model.ModifyLiquidityEventData) (hook.BeforeModifyLiquidityEvent, hook.AfterModifyLiquidityEvent, error) {
	id := common.HexToHash(data.PoolID)
	ps, err := t.state(id)
	if err != nil {
		return hook.BeforeModifyLiquidityEvent{}, hook.AfterModifyLiquidityEvent{}, err
	}

	delta, err := parseBig(data.LiquidityDelta)
	if err != nil {
		return hook.BeforeModifyLiquidityEvent{}, hook.AfterModifyLiquidityEvent{}, fmt.Errorf("liquidity delta: %w", err)
	}
	if !common.IsHexAddress(data.Sender) {
		return hook.BeforeModifyLiquidityEvent{}, hook.AfterModifyLiquidityEvent{}, fmt.Errorf("invalid sender: %s", data.Sender)
	}

	key := hook.PositionKey{
		Owner:     common.HexToAddress(data.Sender),
		TickLower: data.TickLower,
		TickUpper: data.TickUpper,
		Salt:      common.HexToHash(data.Salt),
	}

	before := hook.BeforeModifyLiquidityEvent{
		Pool:           id,
		Block:          block,
		Position:       key,
		LiquidityDelta: new(big.Int).Set(delta),
	}

	pos := ps.positions[key.ID()]
	fees := hook.NewAmounts()
	if pos != nil {
		fees = hook.Amounts{
			Amount0: hook.MulShr128(pos.liquidity, hook.SubFloor(ps.feeGrowth0X128, pos.feeGrowth0Ckpt)),
			Amount1: hook.MulShr128(pos.liquidity, hook.SubFloor(ps.feeGrowth1X128, pos.feeGrowth1Ckpt)),
		}
	}

	switch {
	case delta.Sign() > 0:
		add, overflow := uint256.FromBig(delta)
		if overflow {
			return before, hook.AfterModifyLiquidityEvent{}, fmt.Errorf("liquidity delta overflow: %s", delta)
		}
		if pos == nil {
			pos = &position{key: key, liquidity: uint256.NewInt(0)}
			ps.positions[key.ID()] = pos
		}
		pos.liquidity = hook.SatAdd(pos.liquidity, add)
	case delta.Sign() < 0:
		if pos == nil {
			return before, hook.AfterModifyLiquidityEvent{}, fmt.Errorf("removal from unknown position %s", key.ID().Hex())
		}
		remove, overflow := uint256.FromBig(new(big.Int).Neg(delta))
		if overflow {
			return before, hook.AfterModifyLiquidityEvent{}, fmt.Errorf("liquidity delta overflow: %s", delta)
		}
		pos.liquidity = hook.SubFloor(pos.liquidity, remove)
		if pos.liquidity.IsZero() {
			delete(ps.positions, key.ID())
			pos = nil
		}
	}

	if pos != nil {
		pos.feeGrowth0Ckpt = ps.feeGrowth0X128.Clone()
		pos.feeGrowth1Ckpt = ps.feeGrowth1X128.Clone()
	}

	after := hook.AfterModifyLiquidityEvent{
		Pool:           id,
		Block:          block,
		Position:       key,
		LiquidityDelta: new(big.Int).Set(delta),
		FeesAccrued:    fees,
	}
	return before, after, nil
}

// ApplyDonate spreads a donation over the pool's current in-range
// liquidity as fee growth.
func (t *Tracker) ApplyDonate(data model.DonateEventData) error {
	id := common.HexToHash(data.PoolID)
	ps, err := t.state(id)
	if err != nil {
		return err
	}

	amount0, err := parseBig(data.Amount0)
	if err != nil {
		return fmt.Errorf("donate amount0: %w", err)
	}
	amount1, err := parseBig(data.Amount1)
	if err != nil {
		return fmt.Errorf("donate amount1: %w", err)
	}

	active := t.activeLiquidity(ps)
	if active.IsZero() {
		t.logger.Warn("donation with no in-range liquidity dropped",
			zap.String("pool_id", data.PoolID))
		return nil
	}

	ps.feeGrowth0X128 = hook.SatAdd(ps.feeGrowth0X128, divX128(absUint(amount0), active))
	ps.feeGrowth1X128 = hook.SatAdd(ps.feeGrowth1X128, divX128(absUint(amount1), active))
	return nil
}

// ActiveLiquidity sums the liquidity of positions whose range contains
// the pool's current tick.
func (t *Tracker) ActiveLiquidity(pool common.Hash) (*uint256.Int, error) {
	ps, err := t.state(pool)
	if err != nil {
		return nil, err
	}
	return t.activeLiquidity(ps), nil
}

func (t *Tracker) activeLiquidity(ps *poolState) *uint256.Int {
	total := uint256.NewInt(0)
	for _, pos := range ps.positions {
		if pos.key.TickLower <= ps.tick && ps.tick < pos.key.TickUpper {
			total = hook.SatAdd(total, pos.liquidity)
		}
	}
	return total
}

// Slot0 returns the pool's current price state.
func (t *Tracker) Slot0(pool common.Hash) (*uint256.Int, int32, bool) {
	ps, ok := t.pools[pool]
	if !ok || !ps.initialized {
		return nil, 0, false
	}
	return ps.sqrtPriceX96.Clone(), ps.tick, true
}

// FeeGrowthX128 returns the pool's global fee-growth accumulators.
func (t *Tracker) FeeGrowthX128(pool common.Hash) (hook.Amounts, bool) {
	ps, ok := t.pools[pool]
	if !ok {
		return hook.Amounts{}, false
	}
	return hook.Amounts{
		Amount0: ps.feeGrowth0X128.Clone(),
		Amount1: ps.feeGrowth1X128.Clone(),
	}, true
}

// PositionLiquidity returns the tracked liquidity of a position.
func (t *Tracker) PositionLiquidity(pool common.Hash, key hook.PositionKey) (*uint256.Int, bool) {
	ps, ok := t.pools[pool]
	if !ok {
		return nil, false
	}
	pos, ok := ps.positions[key.ID()]
	if !ok {
		return nil, false
	}
	return pos.liquidity.Clone(), true
}

func (t *Tracker) state(pool common.Hash) (*poolState, error) {
	ps, ok := t.pools[pool]
	if !ok || !ps.initialized {
		return nil, fmt.Errorf("pool %s not initialized", pool.Hex())
	}
	return ps, nil
}

// crossedTicks enumerates spacing-aligned ticks between from and to in
// traversal order: descending for a price drop, ascending for a rise.
// The boundary on the destination side is included, the origin excluded.
// Every crossing carries an equal share of the swap's fee growth.
func crossedTicks(from, to, spacing int32, growthX128 *uint256.Int) []hook.TickCrossing {
	if from == to || spacing <= 0 {
		return nil
	}

	var ticks []int32
	if to < from {
		for tick := floorTick(from, spacing); tick > to; tick -= spacing {
			if tick <= from {
				ticks = append(ticks, tick)
			}
		}
	} else {
		for tick := floorTick(from, spacing) + spacing; tick <= to; tick += spacing {
			ticks = append(ticks, tick)
		}
	}
	if len(ticks) == 0 {
		return nil
	}

	share := hook.ScaleFrac(growthX128, 1, uint64(len(ticks)))
	crossings := make([]hook.TickCrossing, 0, len(ticks))
	for _, tick := range ticks {
		crossings = append(crossings, hook.TickCrossing{Tick: tick, FeeGrowthX128: share.Clone()})
	}
	return crossings
}

// floorTick rounds a tick down to its spacing boundary, toward negative
// infinity.
func floorTick(tick, spacing int32) int32 {
	floored := tick / spacing * spacing
	if tick < 0 && tick%spacing != 0 {
		floored -= spacing
	}
	return floored
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

func parseUint(s string) (*uint256.Int, error) {
	v, err := parseBig(s)
	if err != nil {
		return nil, err
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative value %q", s)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("value %q exceeds uint256", s)
	}
	return out, nil
}

func absUint(v *big.Int) *uint256.Int {
	abs := new(big.Int).Abs(v)
	out, overflow := uint256.FromBig(abs)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return out
}

// divX128 returns (amount << 128) / liquidity, the per-unit-liquidity
// growth contribution of a fee amount.
func divX128(amount, liquidity *uint256.Int) *uint256.Int {
	if amount.IsZero() || liquidity.IsZero() {
		return uint256.NewInt(0)
	}
	shifted := new(big.Int).Lsh(amount.ToBig(), 128)
	shifted.Quo(shifted, liquidity.ToBig())
	out, overflow := uint256.FromBig(shifted)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return out
}
