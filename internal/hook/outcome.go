package hook

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Outcome is a state change reported by a hook for the triggering event.
// Hooks return outcomes instead of writing to storage themselves; the
// caller decides where they go.
type Outcome interface {
	Kind() string
}

// FeesWithheld reports fee accrual moved into a position's withheld entry
// on liquidity addition.
type FeesWithheld struct {
	Pool     common.Hash
	Position PositionKey
	Block    uint64
	Fees     Amounts
}

func (FeesWithheld) Kind() string { return "fees_withheld" }

// FeesReleased reports fees released to the position owner on removal.
type FeesReleased struct {
	Pool     common.Hash
	Position PositionKey
	Block    uint64
	Fees     Amounts
}

func (FeesReleased) Kind() string { return "fees_released" }

// PenaltyApplied reports the penalized share of fees on an early removal.
type PenaltyApplied struct {
	Pool     common.Hash
	Position PositionKey
	Block    uint64
	Age      uint64
	Penalty  Amounts
}

func (PenaltyApplied) Kind() string { return "penalty_applied" }

// DonationForwarded reports a penalty donation handed to in-range
// liquidity, including any carried-forward remainder from earlier
// donations that had no recipient.
type DonationForwarded struct {
	Pool            common.Hash
	Block           uint64
	Donation        Amounts
	ActiveLiquidity *uint256.Int
}

func (DonationForwarded) Kind() string { return "donation_forwarded" }

// DonationCarried reports a penalty retained in the pool's penalty
// accumulator because no in-range liquidity could receive it.
type DonationCarried struct {
	Pool     common.Hash
	Block    uint64
	Retained Amounts
}

func (DonationCarried) Kind() string { return "donation_carried" }

// ExcessCaptured reports clamped-away output value forwarded to the
// anti-sandwich fee handler. The amount is denominated in the swap's
// output token.
type ExcessCaptured struct {
	Pool       common.Hash
	Block      uint64
	ZeroForOne bool
	Excess     *uint256.Int
}

func (ExcessCaptured) Kind() string { return "excess_captured" }

// OrderPlaced reports a new or topped-up limit order.
type OrderPlaced struct {
	Pool       common.Hash
	OrderID    uint64
	Owner      common.Address
	Tick       int32
	ZeroForOne bool
	Liquidity  *uint256.Int
}

func (OrderPlaced) Kind() string { return "order_placed" }

// OrderCancelled reports a cancelled order with its immediately settled
// fee share.
type OrderCancelled struct {
	Pool      common.Hash
	OrderID   uint64
	Owner     common.Address
	Tick      int32
	Liquidity *uint256.Int
	FeeShare  *uint256.Int
}

func (OrderCancelled) Kind() string { return "order_cancelled" }

// EpochFilled reports that a tick's resting epoch was filled by a swap
// crossing. Liquidity is the epoch's aggregate; individual orders settle
// against the frozen checkpoint on withdrawal.
type EpochFilled struct {
	Pool              common.Hash
	Block             uint64
	Tick              int32
	ZeroForOne        bool
	Liquidity         *uint256.Int
	FillFeeGrowthX128 *uint256.Int
}

func (EpochFilled) Kind() string { return "epoch_filled" }

// OrderWithdrawn reports a withdrawn order: principal liquidity at the
// fill tick plus the pro-rata fee share.
type OrderWithdrawn struct {
	Pool      common.Hash
	OrderID   uint64
	Owner     common.Address
	FillTick  int32
	Principal *uint256.Int
	FeeShare  *uint256.Int
}

func (OrderWithdrawn) Kind() string { return "order_withdrawn" }
