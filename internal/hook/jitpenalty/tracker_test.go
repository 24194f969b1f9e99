package jitpenalty

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"hookScope/internal/hook"
)

var trackerPool = common.HexToHash("0x02")

type stubLiquidity struct {
	active *uint256.Int
	err    error
}

func (s *stubLiquidity) ActiveLiquidity(common.Hash) (*uint256.Int, error) {
	return s.active, s.err
}

func position(owner byte) hook.PositionKey {
	return hook.PositionKey{
		Owner:     common.BytesToAddress([]byte{owner}),
		TickLower: -60,
		TickUpper: 60,
	}
}

func modify(block uint64, pos hook.PositionKey, delta int64, fee0, fee1 uint64) hook.AfterModifyLiquidityEvent {
	return hook.AfterModifyLiquidityEvent{
		Pool:           trackerPool,
		Block:          block,
		Position:       pos,
		LiquidityDelta: big.NewInt(delta),
		FeesAccrued:    hook.Amounts{Amount0: uint256.NewInt(fee0), Amount1: uint256.NewInt(fee1)},
	}
}

func newTestTracker(offset uint64, active uint64) *Tracker {
	return NewTracker(
		Config{BlockNumberOffset: offset},
		&stubLiquidity{active: uint256.NewInt(active)},
	)
}

func TestTrackerWithholdsFeesOnAdd(t *testing.T) {
	tr := newTestTracker(10, 1000)
	pos := position(1)

	outcomes, err := tr.AfterModifyLiquidity(modify(100, pos, 500, 30, 40))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	if _, ok := outcomes[0].(hook.FeesWithheld); !ok {
		t.Fatalf("unexpected outcome type %T", outcomes[0])
	}

	wh := tr.WithheldFees(pos)
	if wh.Amount0.Uint64() != 30 || wh.Amount1.Uint64() != 40 {
		t.Fatalf("withheld = %s/%s, want 30/40", wh.Amount0, wh.Amount1)
	}
	block, ok := tr.LastAddedLiquidityBlock(pos)
	if !ok || block != 100 {
		t.Fatalf("last add block = %d (ok=%v), want 100", block, ok)
	}
}

func TestTrackerRepeatedAddRestartsWindow(t *testing.T) {
	tr := newTestTracker(10, 1000)
	pos := position(1)

	if _, err := tr.AfterModifyLiquidity(modify(100, pos, 500, 0, 0)); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := tr.AfterModifyLiquidity(modify(105, pos, 500, 0, 0)); err != nil {
		t.Fatalf("second add: %v", err)
	}

	block, _ := tr.LastAddedLiquidityBlock(pos)
	if block != 105 {
		t.Fatalf("last add block = %d, want 105", block)
	}
}

func TestTrackerReleaseAtWindowBoundary(t *testing.T) {
	// age == offset is penalty-free; age == offset-1 is not.
	tr := newTestTracker(10, 1000)
	pos := position(1)

	if _, err := tr.AfterModifyLiquidity(modify(100, pos, 500, 0, 0)); err != nil {
		t.Fatalf("add: %v", err)
	}
	outcomes, err := tr.AfterModifyLiquidity(modify(110, pos, -500, 80, 0))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected single release outcome, got %d", len(outcomes))
	}
	released, ok := outcomes[0].(hook.FeesReleased)
	if !ok {
		t.Fatalf("unexpected outcome type %T", outcomes[0])
	}
	if released.Fees.Amount0.Uint64() != 80 {
		t.Fatalf("released = %s, want 80", released.Fees.Amount0)
	}

	tr = newTestTracker(10, 1000)
	if _, err := tr.AfterModifyLiquidity(modify(100, pos, 500, 0, 0)); err != nil {
		t.Fatalf("add: %v", err)
	}
	outcomes, err = tr.AfterModifyLiquidity(modify(109, pos, -500, 80, 0))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	var penalty *hook.PenaltyApplied
	for _, o := range outcomes {
		if p, ok := o.(hook.PenaltyApplied); ok {
			penalty = &p
		}
	}
	if penalty == nil {
		t.Fatalf("expected a penalty one block inside the window")
	}
	if penalty.Age != 9 {
		t.Fatalf("penalty age = %d, want 9", penalty.Age)
	}
	// linear: 80 * (10-9)/10 = 8
	if penalty.Penalty.Amount0.Uint64() != 8 {
		t.Fatalf("penalty = %s, want 8", penalty.Penalty.Amount0)
	}
}

func TestTrackerLinearPenaltyAtHalfWindow(t *testing.T) {
	tr := newTestTracker(10, 1000)
	pos := position(1)

	if _, err := tr.AfterModifyLiquidity(modify(100, pos, 500, 0, 0)); err != nil {
		t.Fatalf("add: %v", err)
	}
	outcomes, err := tr.AfterModifyLiquidity(modify(105, pos, -500, 100, 60))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}

	var gotPenalty, gotReleased, gotDonation bool
	for _, o := range outcomes {
		switch v := o.(type) {
		case hook.PenaltyApplied:
			gotPenalty = true
			if v.Penalty.Amount0.Uint64() != 50 || v.Penalty.Amount1.Uint64() != 30 {
				t.Fatalf("penalty = %s/%s, want 50/30", v.Penalty.Amount0, v.Penalty.Amount1)
			}
		case hook.FeesReleased:
			gotReleased = true
			if v.Fees.Amount0.Uint64() != 50 || v.Fees.Amount1.Uint64() != 30 {
				t.Fatalf("released = %s/%s, want 50/30", v.Fees.Amount0, v.Fees.Amount1)
			}
		case hook.DonationForwarded:
			gotDonation = true
			if v.Donation.Amount0.Uint64() != 50 || v.Donation.Amount1.Uint64() != 30 {
				t.Fatalf("donation = %s/%s, want 50/30", v.Donation.Amount0, v.Donation.Amount1)
			}
		}
	}
	if !gotPenalty || !gotReleased || !gotDonation {
		t.Fatalf("missing outcomes: penalty=%v released=%v donation=%v", gotPenalty, gotReleased, gotDonation)
	}
}

func TestTrackerPenaltyBaseIncludesWithheld(t *testing.T) {
	tr := newTestTracker(10, 1000)
	pos := position(1)

	// 40 withheld at add time, 60 accrued during the period: the penalty
	// base at removal is 100.
	if _, err := tr.AfterModifyLiquidity(modify(100, pos, 500, 40, 0)); err != nil {
		t.Fatalf("add: %v", err)
	}
	outcomes, err := tr.AfterModifyLiquidity(modify(105, pos, -500, 60, 0))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}

	for _, o := range outcomes {
		if p, ok := o.(hook.PenaltyApplied); ok {
			if p.Penalty.Amount0.Uint64() != 50 {
				t.Fatalf("penalty = %s, want 50 (half of 100)", p.Penalty.Amount0)
			}
			if !tr.WithheldFees(pos).IsZero() {
				t.Fatalf("withheld entry not cleared after settlement")
			}
			return
		}
	}
	t.Fatalf("no penalty outcome in %d outcomes", len(outcomes))
}

func TestTrackerRemoveWithoutAddRecordIsPenaltyFree(t *testing.T) {
	tr := newTestTracker(10, 1000)

	outcomes, err := tr.AfterModifyLiquidity(modify(500, position(2), -100, 25, 0))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected single release, got %d outcomes", len(outcomes))
	}
	released, ok := outcomes[0].(hook.FeesReleased)
	if !ok || released.Fees.Amount0.Uint64() != 25 {
		t.Fatalf("unexpected outcome %T", outcomes[0])
	}
}

func TestTrackerDonationCarriedWithoutRecipient(t *testing.T) {
	reader := &stubLiquidity{active: uint256.NewInt(0)}
	tr := NewTracker(Config{BlockNumberOffset: 10}, reader)
	pos := position(1)

	if _, err := tr.AfterModifyLiquidity(modify(100, pos, 500, 0, 0)); err != nil {
		t.Fatalf("add: %v", err)
	}
	outcomes, err := tr.AfterModifyLiquidity(modify(105, pos, -500, 100, 0))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}

	var carried bool
	for _, o := range outcomes {
		if c, ok := o.(hook.DonationCarried); ok {
			carried = true
			if c.Retained.Amount0.Uint64() != 50 {
				t.Fatalf("retained = %s, want 50", c.Retained.Amount0)
			}
		}
		if _, ok := o.(hook.DonationForwarded); ok {
			t.Fatalf("donation forwarded with zero active liquidity")
		}
	}
	if !carried {
		t.Fatalf("expected a carried donation")
	}
	if tr.CarriedDonation(trackerPool).Amount0.Uint64() != 50 {
		t.Fatalf("accumulator = %s, want 50", tr.CarriedDonation(trackerPool).Amount0)
	}

	// Liquidity returns in range: the next donation forwards the carried
	// remainder together with the fresh penalty.
	reader.active = uint256.NewInt(800)
	if _, err := tr.AfterModifyLiquidity(modify(200, pos, 500, 0, 0)); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	outcomes, err = tr.AfterModifyLiquidity(modify(205, pos, -500, 100, 0))
	if err != nil {
		t.Fatalf("second remove: %v", err)
	}
	for _, o := range outcomes {
		if fwd, ok := o.(hook.DonationForwarded); ok {
			if fwd.Donation.Amount0.Uint64() != 100 {
				t.Fatalf("forwarded = %s, want 100 (50 carried + 50 fresh)", fwd.Donation.Amount0)
			}
			if !tr.CarriedDonation(trackerPool).IsZero() {
				t.Fatalf("accumulator not cleared after forwarding")
			}
			return
		}
	}
	t.Fatalf("no forwarded donation in %d outcomes", len(outcomes))
}

func TestTrackerReaderErrorPropagates(t *testing.T) {
	wantErr := errors.New("pool state unavailable")
	tr := NewTracker(Config{BlockNumberOffset: 10}, &stubLiquidity{err: wantErr})
	pos := position(1)

	if _, err := tr.AfterModifyLiquidity(modify(100, pos, 500, 0, 0)); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := tr.AfterModifyLiquidity(modify(105, pos, -500, 100, 0))
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected reader error to propagate, got %v", err)
	}
}

func TestLinearPolicyBounds(t *testing.T) {
	p := LinearPolicy{}
	fees := uint256.NewInt(1000)

	if got := p.Penalty(fees, 0, 10); got.Uint64() != 1000 {
		t.Fatalf("age 0 penalty = %s, want 1000", got)
	}
	if got := p.Penalty(fees, 10, 10); !got.IsZero() {
		t.Fatalf("age == offset penalty = %s, want 0", got)
	}
	if got := p.Penalty(fees, 0, 0); !got.IsZero() {
		t.Fatalf("zero offset penalty = %s, want 0", got)
	}
}
