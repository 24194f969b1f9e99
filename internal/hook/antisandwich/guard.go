package antisandwich

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"hookScope/internal/hook"
)

// Snapshot is a pool's opening price state for one block. Write-once: the
// first before-swap of a block creates it, later swaps in the block only
// read it.
type Snapshot struct {
	Block        uint64
	SqrtPriceX96 *uint256.Int
	Tick         int32
}

// FeeHandler receives the clamped-away excess value. What happens to it
// (redirect to LPs, burn, accumulate) is the integrator's decision.
type FeeHandler interface {
	HandleExcess(pool common.Hash, block uint64, zeroForOne bool, excess *uint256.Int) error
}

// FeeHandlerFunc adapts a function to the FeeHandler interface.
type FeeHandlerFunc func(pool common.Hash, block uint64, zeroForOne bool, excess *uint256.Int) error

func (f FeeHandlerFunc) HandleExcess(pool common.Hash, block uint64, zeroForOne bool, excess *uint256.Int) error {
	return f(pool, block, zeroForOne, excess)
}

// Guard clamps same-block swap execution in the protected direction to the
// block-open price. Exactly one direction is protected; the one-sided
// design matches the sandwich vector against resting liquidity on that
// side and is not made symmetric.
type Guard struct {
	protectZeroForOne bool
	handler           FeeHandler
	snapshots         map[common.Hash]Snapshot
}

// NewGuard builds a guard protecting the given swap direction.
func NewGuard(protectZeroForOne bool, handler FeeHandler) *Guard {
	return &Guard{
		protectZeroForOne: protectZeroForOne,
		handler:           handler,
		snapshots:         make(map[common.Hash]Snapshot),
	}
}

// ProtectsZeroForOne reports the protected direction.
func (g *Guard) ProtectsZeroForOne() bool { return g.protectZeroForOne }

// Snapshot returns the captured opening state for (pool, block).
func (g *Guard) Snapshot(pool common.Hash, block uint64) (Snapshot, bool) {
	snap, ok := g.snapshots[pool]
	if !ok || snap.Block != block {
		return Snapshot{}, false
	}
	return snap, true
}

// BeforeSwap captures the pool's opening price for the block. Subsequent
// calls within the same block leave the snapshot untouched; a new block
// replaces the stale entry.
func (g *Guard) BeforeSwap(ev hook.BeforeSwapEvent) ([]hook.Outcome, error) {
	snap, ok := g.snapshots[ev.Pool]
	if ok && snap.Block == ev.Block {
		return nil, nil
	}
	g.snapshots[ev.Pool] = Snapshot{
		Block:        ev.Block,
		SqrtPriceX96: ev.SqrtPriceX96.Clone(),
		Tick:         ev.Tick,
	}
	return nil, nil
}

// AfterSwap compares the executed output against the output at the
// block-open price. Only the protected direction is evaluated. If the
// swapper received more than the opening price allows, the difference is
// excess value and is forwarded to the fee handler.
func (g *Guard) AfterSwap(ev hook.AfterSwapEvent) ([]hook.Outcome, error) {
	if ev.ZeroForOne != g.protectZeroForOne {
		return nil, nil
	}

	snap, ok := g.snapshots[ev.Pool]
	if !ok || snap.Block != ev.Block {
		// Before-swap always precedes after-swap within a block; a missing
		// snapshot means the host broke the callback ordering contract.
		return nil, fmt.Errorf("%w: no block snapshot for pool %s block %d", hook.ErrInvariantViolation, ev.Pool.Hex(), ev.Block)
	}

	clamped := outputAtSqrtPrice(ev.AmountIn, snap.SqrtPriceX96, ev.ZeroForOne)
	if ev.AmountOut == nil || !ev.AmountOut.Gt(clamped) {
		return nil, nil
	}

	excess := new(uint256.Int).Sub(ev.AmountOut, clamped)
	if g.handler != nil {
		if err := g.handler.HandleExcess(ev.Pool, ev.Block, ev.ZeroForOne, excess); err != nil {
			return nil, fmt.Errorf("fee handler: %w", err)
		}
	}

	return []hook.Outcome{hook.ExcessCaptured{
		Pool:       ev.Pool,
		Block:      ev.Block,
		ZeroForOne: ev.ZeroForOne,
		Excess:     excess,
	}}, nil
}

// outputAtSqrtPrice converts an input amount to the output token at the
// given sqrt price (price = sqrtPriceX96^2 / 2^192). The intermediate
// product exceeds 256 bits, so the math runs in big.Int and the result is
// clamped back into uint256 range.
func outputAtSqrtPrice(amountIn, sqrtPriceX96 *uint256.Int, zeroForOne bool) *uint256.Int {
	if amountIn == nil || amountIn.IsZero() || sqrtPriceX96 == nil || sqrtPriceX96.IsZero() {
		return uint256.NewInt(0)
	}

	sqrt := sqrtPriceX96.ToBig()
	priceNum := new(big.Int).Mul(sqrt, sqrt)

	var out *big.Int
	if zeroForOne {
		// token0 in, token1 out: out = in * sqrtP^2 >> 192
		out = new(big.Int).Mul(amountIn.ToBig(), priceNum)
		out.Rsh(out, 192)
	} else {
		// token1 in, token0 out: out = in << 192 / sqrtP^2
		out = new(big.Int).Lsh(amountIn.ToBig(), 192)
		out.Quo(out, priceNum)
	}

	clamped, overflow := uint256.FromBig(out)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return clamped
}
