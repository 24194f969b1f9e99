package limitorder

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"hookScope/internal/hook"
)

// OrderState is the lifecycle position of a limit order.
// Open -> {Filled, Cancelled}; Filled -> Withdrawn (terminal).
type OrderState uint8

const (
	OrderOpen OrderState = iota + 1
	OrderFilled
	OrderCancelled
	OrderWithdrawn
)

func (s OrderState) String() string {
	switch s {
	case OrderOpen:
		return "open"
	case OrderFilled:
		return "filled"
	case OrderCancelled:
		return "cancelled"
	case OrderWithdrawn:
		return "withdrawn"
	default:
		return "unknown"
	}
}

// OrderInfo is the externally visible view of an order.
type OrderInfo struct {
	ID         uint64
	Pool       common.Hash
	Owner      common.Address
	Tick       int32
	ZeroForOne bool
	Liquidity  *uint256.Int
	State      OrderState
}

// TickEpochInfo is the aggregate view of a tick: cumulative placed
// liquidity (net of cancellations), cumulative filled liquidity, and the
// running fee-growth accumulator. Placed - Filled equals the summed
// liquidity of Open orders at the tick.
type TickEpochInfo struct {
	Placed        *uint256.Int
	Filled        *uint256.Int
	FeeGrowthX128 *uint256.Int
}

type order struct {
	id             uint64
	pool           common.Hash
	owner          common.Address
	tick           int32
	zeroForOne     bool
	liquidity      *uint256.Int
	checkpointX128 *uint256.Int
	epochSeq       uint64
	cancelled      bool
	withdrawn      bool
}

type tickKey struct {
	pool       common.Hash
	tick       int32
	zeroForOne bool
}

type ownerKey struct {
	pool       common.Hash
	tick       int32
	zeroForOne bool
	owner      common.Address
}

// tickState holds only aggregate counters, never order membership lists:
// a crossing settles every order on the tick in O(1) by sealing the
// current epoch, and each order later settles against the sealed
// checkpoint independently.
type tickState struct {
	placed        *uint256.Int
	filled        *uint256.Int
	feeGrowthX128 *uint256.Int

	epochSeq       uint64
	epochLiquidity *uint256.Int

	// sealed epoch seq -> fee growth frozen at fill time
	sealed map[uint64]*uint256.Int
}

func newTickState() *tickState {
	return &tickState{
		placed:         uint256.NewInt(0),
		filled:         uint256.NewInt(0),
		feeGrowthX128:  uint256.NewInt(0),
		epochLiquidity: uint256.NewInt(0),
		sealed:         make(map[uint64]*uint256.Int),
	}
}

// Book is a tick-indexed limit-order book driven by swap crossings.
// Orders live in an arena indexed by id; ticks carry aggregate counters
// only.
type Book struct {
	orders  map[uint64]*order
	byOwner map[ownerKey]uint64
	ticks   map[tickKey]*tickState
	nextID  uint64

	// set while a swap's crossings are being applied; placements,
	// cancellations and withdrawals are rejected mid-fill so the book is
	// only observed at callback boundaries.
	filling bool
}

// NewBook builds an empty book.
func NewBook() *Book {
	return &Book{
		orders:  make(map[uint64]*order),
		byOwner: make(map[ownerKey]uint64),
		ticks:   make(map[tickKey]*tickState),
		nextID:  1,
	}
}

// Place creates an Open order at (pool, tick, direction) or tops up the
// owner's existing Open order there. A top-up blends the placement
// checkpoint weighted by liquidity so growth accrued before the top-up is
// neither lost nor double-counted. Topping up a Filled order is rejected:
// it must be withdrawn first.
func (b *Book) Place(pool common.Hash, tick int32, zeroForOne bool, owner common.Address, liquidity *uint256.Int) (uint64, []hook.Outcome, error) {
	if b.filling {
		return 0, nil, fmt.Errorf("%w: place during fill processing", hook.ErrInvalidRequest)
	}
	if liquidity == nil || liquidity.IsZero() {
		return 0, nil, fmt.Errorf("%w: zero liquidity", hook.ErrInvalidRequest)
	}

	tk := tickKey{pool: pool, tick: tick, zeroForOne: zeroForOne}
	ts := b.ticks[tk]
	if ts == nil {
		ts = newTickState()
		b.ticks[tk] = ts
	}

	ok := ownerKey{pool: pool, tick: tick, zeroForOne: zeroForOne, owner: owner}
	if existingID, exists := b.byOwner[ok]; exists {
		ord := b.orders[existingID]
		if b.stateOf(ord) == OrderFilled {
			return 0, nil, fmt.Errorf("%w: order %d is filled; withdraw before placing", hook.ErrInvalidRequest, existingID)
		}
		b.topUp(ord, ts, liquidity)
		return ord.id, []hook.Outcome{hook.OrderPlaced{
			Pool:       pool,
			OrderID:    ord.id,
			Owner:      owner,
			Tick:       tick,
			ZeroForOne: zeroForOne,
			Liquidity:  liquidity.Clone(),
		}}, nil
	}

	id := b.nextID
	b.nextID++
	ord := &order{
		id:             id,
		pool:           pool,
		owner:          owner,
		tick:           tick,
		zeroForOne:     zeroForOne,
		liquidity:      liquidity.Clone(),
		checkpointX128: ts.feeGrowthX128.Clone(),
		epochSeq:       ts.epochSeq,
	}
	b.orders[id] = ord
	b.byOwner[ok] = id

	ts.placed = hook.SatAdd(ts.placed, liquidity)
	ts.epochLiquidity = hook.SatAdd(ts.epochLiquidity, liquidity)

	return id, []hook.Outcome{hook.OrderPlaced{
		Pool:       pool,
		OrderID:    id,
		Owner:      owner,
		Tick:       tick,
		ZeroForOne: zeroForOne,
		Liquidity:  liquidity.Clone(),
	}}, nil
}

// topUp increases an Open order's liquidity. The blended checkpoint keeps
// owed = liquidity * (growth - checkpoint) invariant across the top-up:
// new = (oldLiq*oldCkpt + addLiq*curGrowth) / (oldLiq + addLiq).
func (b *Book) topUp(ord *order, ts *tickState, add *uint256.Int) {
	ord.checkpointX128 = hook.BlendCheckpoint(ord.liquidity, ord.checkpointX128, add, ts.feeGrowthX128)
	ord.liquidity = hook.SatAdd(ord.liquidity, add)

	ts.placed = hook.SatAdd(ts.placed, add)
	ts.epochLiquidity = hook.SatAdd(ts.epochLiquidity, add)
}

// Cancel removes an Open order. Liquidity leaves the tick's placed total
// and fee growth accrued up to now is settled immediately.
func (b *Book) Cancel(id uint64, caller common.Address) ([]hook.Outcome, error) {
	if b.filling {
		return nil, fmt.Errorf("%w: cancel during fill processing", hook.ErrInvalidRequest)
	}
	ord, exists := b.orders[id]
	if !exists {
		return nil, fmt.Errorf("%w: unknown order %d", hook.ErrInvalidRequest, id)
	}
	if ord.owner != caller {
		return nil, fmt.Errorf("%w: caller %s does not own order %d", hook.ErrInvalidRequest, caller.Hex(), id)
	}
	if state := b.stateOf(ord); state != OrderOpen {
		return nil, fmt.Errorf("%w: order %d is %s, only open orders cancel", hook.ErrInvalidRequest, id, state)
	}

	tk := tickKey{pool: ord.pool, tick: ord.tick, zeroForOne: ord.zeroForOne}
	ts := b.ticks[tk]

	feeShare := hook.MulShr128(ord.liquidity, hook.SubFloor(ts.feeGrowthX128, ord.checkpointX128))

	ts.placed = hook.SubFloor(ts.placed, ord.liquidity)
	ts.epochLiquidity = hook.SubFloor(ts.epochLiquidity, ord.liquidity)
	ord.cancelled = true
	delete(b.byOwner, ownerKey{pool: ord.pool, tick: ord.tick, zeroForOne: ord.zeroForOne, owner: ord.owner})

	return []hook.Outcome{hook.OrderCancelled{
		Pool:      ord.pool,
		OrderID:   id,
		Owner:     ord.owner,
		Tick:      ord.tick,
		Liquidity: ord.liquidity.Clone(),
		FeeShare:  feeShare,
	}}, nil
}

// AfterSwap processes the swap's tick crossings in the order given (price
// order matching the swap direction). Each crossing credits the tick's
// fee-growth accumulator, then atomically fills the resting epoch for the
// swap direction: all Open orders on the tick fill simultaneously,
// pro-rata by their own checkpoints, never by placement order.
func (b *Book) AfterSwap(ev hook.AfterSwapEvent) ([]hook.Outcome, error) {
	if len(ev.Crossings) == 0 {
		return nil, nil
	}
	b.filling = true
	defer func() { b.filling = false }()

	var out []hook.Outcome
	for _, crossing := range ev.Crossings {
		// The price passed through the tick, so resting liquidity in both
		// directions accrues the crossing's fee growth.
		for _, dir := range [2]bool{true, false} {
			ts := b.ticks[tickKey{pool: ev.Pool, tick: crossing.Tick, zeroForOne: dir}]
			if ts == nil {
				continue
			}
			ts.feeGrowthX128 = hook.SatAdd(ts.feeGrowthX128, crossing.FeeGrowthX128)
		}

		ts := b.ticks[tickKey{pool: ev.Pool, tick: crossing.Tick, zeroForOne: ev.ZeroForOne}]
		if ts == nil || ts.epochLiquidity.IsZero() {
			continue
		}

		fillLiquidity := ts.epochLiquidity.Clone()
		ts.sealed[ts.epochSeq] = ts.feeGrowthX128.Clone()
		ts.filled = hook.SatAdd(ts.filled, fillLiquidity)
		ts.epochSeq++
		ts.epochLiquidity = uint256.NewInt(0)

		out = append(out, hook.EpochFilled{
			Pool:              ev.Pool,
			Block:             ev.Block,
			Tick:              crossing.Tick,
			ZeroForOne:        ev.ZeroForOne,
			Liquidity:         fillLiquidity,
			FillFeeGrowthX128: ts.feeGrowthX128.Clone(),
		})
	}
	return out, nil
}

// Withdraw pays out a Filled order: principal liquidity at the fill tick
// (token conversion at that tick is the host pool's concern) plus the
// pro-rata fee share liquidity * (fillCheckpoint - placementCheckpoint).
func (b *Book) Withdraw(id uint64, caller common.Address) ([]hook.Outcome, error) {
	if b.filling {
		return nil, fmt.Errorf("%w: withdraw during fill processing", hook.ErrInvalidRequest)
	}
	ord, exists := b.orders[id]
	if !exists {
		return nil, fmt.Errorf("%w: unknown order %d", hook.ErrInvalidRequest, id)
	}
	if ord.owner != caller {
		return nil, fmt.Errorf("%w: caller %s does not own order %d", hook.ErrInvalidRequest, caller.Hex(), id)
	}
	if state := b.stateOf(ord); state != OrderFilled {
		return nil, fmt.Errorf("%w: order %d is %s, only filled orders withdraw", hook.ErrInvalidRequest, id, state)
	}

	ts := b.ticks[tickKey{pool: ord.pool, tick: ord.tick, zeroForOne: ord.zeroForOne}]
	fillCkpt, ok := ts.sealed[ord.epochSeq]
	if !ok {
		return nil, fmt.Errorf("%w: order %d filled but epoch %d has no fill checkpoint", hook.ErrInvariantViolation, id, ord.epochSeq)
	}

	feeShare := hook.MulShr128(ord.liquidity, hook.SubFloor(fillCkpt, ord.checkpointX128))
	ord.withdrawn = true
	delete(b.byOwner, ownerKey{pool: ord.pool, tick: ord.tick, zeroForOne: ord.zeroForOne, owner: ord.owner})

	return []hook.Outcome{hook.OrderWithdrawn{
		Pool:      ord.pool,
		OrderID:   id,
		Owner:     ord.owner,
		FillTick:  ord.tick,
		Principal: ord.liquidity.Clone(),
		FeeShare:  feeShare,
	}}, nil
}

// Order returns the externally visible view of an order.
func (b *Book) Order(id uint64) (OrderInfo, bool) {
	ord, exists := b.orders[id]
	if !exists {
		return OrderInfo{}, false
	}
	return OrderInfo{
		ID:         ord.id,
		Pool:       ord.pool,
		Owner:      ord.owner,
		Tick:       ord.tick,
		ZeroForOne: ord.zeroForOne,
		Liquidity:  ord.liquidity.Clone(),
		State:      b.stateOf(ord),
	}, true
}

// TickEpoch returns the tick's aggregate counters.
func (b *Book) TickEpoch(pool common.Hash, tick int32, zeroForOne bool) TickEpochInfo {
	ts := b.ticks[tickKey{pool: pool, tick: tick, zeroForOne: zeroForOne}]
	if ts == nil {
		return TickEpochInfo{
			Placed:        uint256.NewInt(0),
			Filled:        uint256.NewInt(0),
			FeeGrowthX128: uint256.NewInt(0),
		}
	}
	return TickEpochInfo{
		Placed:        ts.placed.Clone(),
		Filled:        ts.filled.Clone(),
		FeeGrowthX128: ts.feeGrowthX128.Clone(),
	}
}

func (b *Book) stateOf(ord *order) OrderState {
	switch {
	case ord.withdrawn:
		return OrderWithdrawn
	case ord.cancelled:
		return OrderCancelled
	}
	ts := b.ticks[tickKey{pool: ord.pool, tick: ord.tick, zeroForOne: ord.zeroForOne}]
	if ts != nil {
		if _, sealed := ts.sealed[ord.epochSeq]; sealed {
			return OrderFilled
		}
	}
	return OrderOpen
}
