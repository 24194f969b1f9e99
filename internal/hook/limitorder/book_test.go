package limitorder

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"hookScope/internal/hook"
)

var (
	bookPool = common.HexToHash("0x03")
	alice    = common.BytesToAddress([]byte{0xa1})
	bob      = common.BytesToAddress([]byte{0xb0})
)

// growthX128 builds a per-unit-liquidity fee growth of units/perLiquidity
// in X128 fixed point.
func growthX128(units, perLiquidity uint64) *uint256.Int {
	g := new(uint256.Int).Lsh(uint256.NewInt(units), 128)
	return g.Div(g, uint256.NewInt(perLiquidity))
}

func crossingSwap(block uint64, zeroForOne bool, crossings ...hook.TickCrossing) hook.AfterSwapEvent {
	return hook.AfterSwapEvent{
		Pool:       bookPool,
		Block:      block,
		ZeroForOne: zeroForOne,
		Crossings:  crossings,
	}
}

func TestBookPlaceAndQuery(t *testing.T) {
	b := NewBook()

	id, outcomes, err := b.Place(bookPool, 120, true, alice, uint256.NewInt(500))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	placed, ok := outcomes[0].(hook.OrderPlaced)
	if !ok || placed.OrderID != id {
		t.Fatalf("unexpected outcome %T", outcomes[0])
	}

	info, ok := b.Order(id)
	if !ok {
		t.Fatalf("order %d not found", id)
	}
	if info.State != OrderOpen || info.Tick != 120 || !info.ZeroForOne || info.Owner != alice {
		t.Fatalf("unexpected order view: %+v", info)
	}

	epoch := b.TickEpoch(bookPool, 120, true)
	if epoch.Placed.Uint64() != 500 || !epoch.Filled.IsZero() {
		t.Fatalf("tick counters = %s/%s, want 500/0", epoch.Placed, epoch.Filled)
	}
}

func TestBookRejectsZeroLiquidity(t *testing.T) {
	b := NewBook()
	if _, _, err := b.Place(bookPool, 0, true, alice, uint256.NewInt(0)); !errors.Is(err, hook.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestBookCancelSettlesAccruedFees(t *testing.T) {
	b := NewBook()
	id, _, err := b.Place(bookPool, 60, true, alice, uint256.NewInt(100))
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	// The price passes through the tick in the opposite direction: fees
	// accrue but the order does not fill.
	if _, err := b.AfterSwap(crossingSwap(10, false, hook.TickCrossing{Tick: 60, FeeGrowthX128: growthX128(50, 100)})); err != nil {
		t.Fatalf("after-swap: %v", err)
	}
	if info, _ := b.Order(id); info.State != OrderOpen {
		t.Fatalf("order filled by opposite-direction crossing: %s", info.State)
	}

	outcomes, err := b.Cancel(id, alice)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	cancelled, ok := outcomes[0].(hook.OrderCancelled)
	if !ok {
		t.Fatalf("unexpected outcome %T", outcomes[0])
	}
	// 100 liquidity * 50/100 fee units per liquidity = 50.
	if cancelled.FeeShare.Uint64() != 50 {
		t.Fatalf("fee share = %s, want 50", cancelled.FeeShare)
	}

	epoch := b.TickEpoch(bookPool, 60, true)
	if !epoch.Placed.IsZero() {
		t.Fatalf("placed = %s after cancel, want 0", epoch.Placed)
	}
	if info, _ := b.Order(id); info.State != OrderCancelled {
		t.Fatalf("state = %s, want cancelled", info.State)
	}
}

func TestBookCancelChecksOwnerAndState(t *testing.T) {
	b := NewBook()
	id, _, err := b.Place(bookPool, 60, true, alice, uint256.NewInt(100))
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	if _, err := b.Cancel(id, bob); !errors.Is(err, hook.ErrInvalidRequest) {
		t.Fatalf("expected owner check failure, got %v", err)
	}
	if _, err := b.Cancel(99, alice); !errors.Is(err, hook.ErrInvalidRequest) {
		t.Fatalf("expected unknown-order failure, got %v", err)
	}

	if _, err := b.AfterSwap(crossingSwap(10, true, hook.TickCrossing{Tick: 60, FeeGrowthX128: growthX128(10, 100)})); err != nil {
		t.Fatalf("after-swap: %v", err)
	}
	if _, err := b.Cancel(id, alice); !errors.Is(err, hook.ErrInvalidRequest) {
		t.Fatalf("expected cancel of filled order to fail, got %v", err)
	}
}

func TestBookFillAndWithdraw(t *testing.T) {
	b := NewBook()

	// Alice and Bob rest equal liquidity at the same tick; the crossing
	// carries 10 fee units across 10 units of liquidity, so each side of
	// the 50/50 split receives 5.
	aliceID, _, err := b.Place(bookPool, 60, true, alice, uint256.NewInt(5))
	if err != nil {
		t.Fatalf("place alice: %v", err)
	}
	bobID, _, err := b.Place(bookPool, 60, true, bob, uint256.NewInt(5))
	if err != nil {
		t.Fatalf("place bob: %v", err)
	}

	outcomes, err := b.AfterSwap(crossingSwap(20, true, hook.TickCrossing{Tick: 60, FeeGrowthX128: growthX128(10, 10)}))
	if err != nil {
		t.Fatalf("after-swap: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 fill outcome, got %d", len(outcomes))
	}
	filled, ok := outcomes[0].(hook.EpochFilled)
	if !ok || filled.Liquidity.Uint64() != 10 {
		t.Fatalf("unexpected fill outcome %T (%v)", outcomes[0], outcomes[0])
	}

	epoch := b.TickEpoch(bookPool, 60, true)
	if epoch.Filled.Uint64() != 10 || epoch.Placed.Uint64() != 10 {
		t.Fatalf("tick counters = %s/%s, want 10/10", epoch.Placed, epoch.Filled)
	}

	for _, tc := range []struct {
		id    uint64
		owner common.Address
	}{
		{aliceID, alice},
		{bobID, bob},
	} {
		if info, _ := b.Order(tc.id); info.State != OrderFilled {
			t.Fatalf("order %d state = %s, want filled", tc.id, info.State)
		}
		outcomes, err := b.Withdraw(tc.id, tc.owner)
		if err != nil {
			t.Fatalf("withdraw %d: %v", tc.id, err)
		}
		withdrawn, ok := outcomes[0].(hook.OrderWithdrawn)
		if !ok {
			t.Fatalf("unexpected outcome %T", outcomes[0])
		}
		if withdrawn.Principal.Uint64() != 5 || withdrawn.FillTick != 60 {
			t.Fatalf("principal = %s at tick %d, want 5 at 60", withdrawn.Principal, withdrawn.FillTick)
		}
		if withdrawn.FeeShare.Uint64() != 5 {
			t.Fatalf("fee share = %s, want 5", withdrawn.FeeShare)
		}
		if info, _ := b.Order(tc.id); info.State != OrderWithdrawn {
			t.Fatalf("order %d state = %s, want withdrawn", tc.id, info.State)
		}
	}
}

func TestBookFillOutcomeIndependentOfPlacementOrder(t *testing.T) {
	// Three traders rest on the same tick; the fill settles all of them
	// identically regardless of placement order.
	run := func(owners []common.Address) map[common.Address]uint64 {
		b := NewBook()
		ids := make(map[common.Address]uint64, len(owners))
		for _, owner := range owners {
			id, _, err := b.Place(bookPool, 0, true, owner, uint256.NewInt(10))
			if err != nil {
				t.Fatalf("place %s: %v", owner.Hex(), err)
			}
			ids[owner] = id
		}
		if _, err := b.AfterSwap(crossingSwap(5, true, hook.TickCrossing{Tick: 0, FeeGrowthX128: growthX128(30, 30)})); err != nil {
			t.Fatalf("after-swap: %v", err)
		}
		shares := make(map[common.Address]uint64, len(owners))
		for owner, id := range ids {
			outcomes, err := b.Withdraw(id, owner)
			if err != nil {
				t.Fatalf("withdraw %s: %v", owner.Hex(), err)
			}
			shares[owner] = outcomes[0].(hook.OrderWithdrawn).FeeShare.Uint64()
		}
		return shares
	}

	carol := common.BytesToAddress([]byte{0xc0})
	forward := run([]common.Address{alice, bob, carol})
	reversed := run([]common.Address{carol, bob, alice})
	for _, owner := range []common.Address{alice, bob, carol} {
		if forward[owner] != reversed[owner] {
			t.Fatalf("share for %s differs by placement order: %d vs %d", owner.Hex(), forward[owner], reversed[owner])
		}
		if forward[owner] != 10 {
			t.Fatalf("share for %s = %d, want 10", owner.Hex(), forward[owner])
		}
	}
}

func TestBookTopUpBlendsCheckpoint(t *testing.T) {
	b := NewBook()
	id, _, err := b.Place(bookPool, 60, true, alice, uint256.NewInt(100))
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	// 50 fee units accrue on the first 100 liquidity, then the order is
	// topped up to 200. The top-up must not dilute the accrued 50 nor
	// claim fees for the new tranche retroactively.
	if _, err := b.AfterSwap(crossingSwap(10, false, hook.TickCrossing{Tick: 60, FeeGrowthX128: growthX128(50, 100)})); err != nil {
		t.Fatalf("after-swap: %v", err)
	}
	if _, _, err := b.Place(bookPool, 60, true, alice, uint256.NewInt(100)); err != nil {
		t.Fatalf("top-up: %v", err)
	}

	info, _ := b.Order(id)
	if info.Liquidity.Uint64() != 200 {
		t.Fatalf("liquidity = %s after top-up, want 200", info.Liquidity)
	}

	outcomes, err := b.Cancel(id, alice)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got := outcomes[0].(hook.OrderCancelled).FeeShare.Uint64()
	if got != 50 {
		t.Fatalf("fee share = %d after top-up, want 50", got)
	}
}

func TestBookTopUpOfFilledOrderRejected(t *testing.T) {
	b := NewBook()
	if _, _, err := b.Place(bookPool, 60, true, alice, uint256.NewInt(100)); err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := b.AfterSwap(crossingSwap(10, true, hook.TickCrossing{Tick: 60, FeeGrowthX128: growthX128(1, 100)})); err != nil {
		t.Fatalf("after-swap: %v", err)
	}

	if _, _, err := b.Place(bookPool, 60, true, alice, uint256.NewInt(50)); !errors.Is(err, hook.ErrInvalidRequest) {
		t.Fatalf("expected top-up of filled order to fail, got %v", err)
	}
}

func TestBookWithdrawChecksState(t *testing.T) {
	b := NewBook()
	id, _, err := b.Place(bookPool, 60, true, alice, uint256.NewInt(100))
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	if _, err := b.Withdraw(id, alice); !errors.Is(err, hook.ErrInvalidRequest) {
		t.Fatalf("expected withdraw of open order to fail, got %v", err)
	}

	if _, err := b.AfterSwap(crossingSwap(10, true, hook.TickCrossing{Tick: 60, FeeGrowthX128: growthX128(1, 100)})); err != nil {
		t.Fatalf("after-swap: %v", err)
	}
	if _, err := b.Withdraw(id, bob); !errors.Is(err, hook.ErrInvalidRequest) {
		t.Fatalf("expected owner check failure, got %v", err)
	}
	if _, err := b.Withdraw(id, alice); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := b.Withdraw(id, alice); !errors.Is(err, hook.ErrInvalidRequest) {
		t.Fatalf("expected double withdraw to fail, got %v", err)
	}
}

func TestBookConservation(t *testing.T) {
	b := NewBook()

	aliceID, _, err := b.Place(bookPool, 60, true, alice, uint256.NewInt(300))
	if err != nil {
		t.Fatalf("place alice: %v", err)
	}
	if _, _, err := b.Place(bookPool, 60, true, bob, uint256.NewInt(200)); err != nil {
		t.Fatalf("place bob: %v", err)
	}

	checkOpenSum := func(want uint64) {
		t.Helper()
		epoch := b.TickEpoch(bookPool, 60, true)
		got := new(uint256.Int).Sub(epoch.Placed, epoch.Filled)
		if got.Uint64() != want {
			t.Fatalf("placed-filled = %s, want %d", got, want)
		}
	}

	checkOpenSum(500)
	if _, err := b.Cancel(aliceID, alice); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	checkOpenSum(200)

	if _, err := b.AfterSwap(crossingSwap(10, true, hook.TickCrossing{Tick: 60, FeeGrowthX128: growthX128(1, 200)})); err != nil {
		t.Fatalf("after-swap: %v", err)
	}
	checkOpenSum(0)

	// A fresh order after the fill starts a new epoch; the counters keep
	// balancing.
	if _, _, err := b.Place(bookPool, 60, true, alice, uint256.NewInt(70)); err != nil {
		t.Fatalf("re-place: %v", err)
	}
	checkOpenSum(70)
}

func TestBookFillsAcrossTicksInOneSwap(t *testing.T) {
	b := NewBook()

	// Orders rest at three ascending ticks; a single swap crosses all of
	// them and every order settles against its own tick's checkpoint.
	orders := []struct {
		tick      int32
		liquidity uint64
		feeUnits  uint64
		share     uint64
	}{
		{tick: 100, liquidity: 64, feeUnits: 16, share: 16},
		{tick: 200, liquidity: 64, feeUnits: 8, share: 8},
		// 10/50 is not exactly representable in X128; the share floors to
		// 9 and the dust unit stays in the pool.
		{tick: 300, liquidity: 50, feeUnits: 10, share: 9},
	}

	ids := make([]uint64, len(orders))
	crossings := make([]hook.TickCrossing, len(orders))
	for i, o := range orders {
		id, _, err := b.Place(bookPool, o.tick, true, alice, uint256.NewInt(o.liquidity))
		if err != nil {
			t.Fatalf("place tick %d: %v", o.tick, err)
		}
		ids[i] = id
		crossings[i] = hook.TickCrossing{Tick: o.tick, FeeGrowthX128: growthX128(o.feeUnits, o.liquidity)}
	}

	outcomes, err := b.AfterSwap(crossingSwap(30, true, crossings...))
	if err != nil {
		t.Fatalf("after-swap: %v", err)
	}
	if len(outcomes) != len(orders) {
		t.Fatalf("expected %d fill outcomes, got %d", len(orders), len(outcomes))
	}
	for i, o := range orders {
		filled, ok := outcomes[i].(hook.EpochFilled)
		if !ok || filled.Tick != o.tick {
			t.Fatalf("outcome %d = %T (%v), want fill at tick %d", i, outcomes[i], outcomes[i], o.tick)
		}
		if filled.Liquidity.Uint64() != o.liquidity {
			t.Fatalf("fill liquidity at tick %d = %s, want %d", o.tick, filled.Liquidity, o.liquidity)
		}
	}

	for i, o := range orders {
		if info, _ := b.Order(ids[i]); info.State != OrderFilled {
			t.Fatalf("order at tick %d state = %s, want filled", o.tick, info.State)
		}
		outcomes, err := b.Withdraw(ids[i], alice)
		if err != nil {
			t.Fatalf("withdraw tick %d: %v", o.tick, err)
		}
		withdrawn := outcomes[0].(hook.OrderWithdrawn)
		if withdrawn.FeeShare.Uint64() != o.share {
			t.Fatalf("fee share at tick %d = %s, want %d", o.tick, withdrawn.FeeShare, o.share)
		}
		if withdrawn.Principal.Uint64() != o.liquidity || withdrawn.FillTick != o.tick {
			t.Fatalf("principal = %s at tick %d, want %d at %d", withdrawn.Principal, withdrawn.FillTick, o.liquidity, o.tick)
		}
	}
}

func TestBookRejectsMutationsDuringFill(t *testing.T) {
	b := NewBook()

	id, _, err := b.Place(bookPool, 60, true, alice, uint256.NewInt(100))
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	// Mid-fill the book is internal state, not a caller surface: every
	// mutation is rejected until the crossings finish applying.
	b.filling = true
	if _, _, err := b.Place(bookPool, 120, true, bob, uint256.NewInt(10)); !errors.Is(err, hook.ErrInvalidRequest) {
		t.Fatalf("place during fill: %v", err)
	}
	if _, err := b.Cancel(id, alice); !errors.Is(err, hook.ErrInvalidRequest) {
		t.Fatalf("cancel during fill: %v", err)
	}
	if _, err := b.Withdraw(id, alice); !errors.Is(err, hook.ErrInvalidRequest) {
		t.Fatalf("withdraw during fill: %v", err)
	}
	b.filling = false

	if _, err := b.Cancel(id, alice); err != nil {
		t.Fatalf("cancel after fill window: %v", err)
	}
}

func TestBookEmptyCrossingIsNoop(t *testing.T) {
	b := NewBook()

	outcomes, err := b.AfterSwap(crossingSwap(10, true, hook.TickCrossing{Tick: 60, FeeGrowthX128: growthX128(1, 1)}))
	if err != nil {
		t.Fatalf("after-swap: %v", err)
	}
	if len(outcomes) != 0 {
		t.Fatalf("expected no outcomes for a tick with no orders, got %d", len(outcomes))
	}
}
