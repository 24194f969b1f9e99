package hook

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// PositionKey uniquely identifies a liquidity position within a pool.
// Immutable once derived from the caller and range.
type PositionKey struct {
	Owner     common.Address
	TickLower int32
	TickUpper int32
	Salt      common.Hash
}

// ID returns the keccak digest used as the position's map key.
func (k PositionKey) ID() common.Hash {
	buf := make([]byte, 0, 20+4+4+32)
	buf = append(buf, k.Owner.Bytes()...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(k.TickLower))
	buf = binary.BigEndian.AppendUint32(buf, uint32(k.TickUpper))
	buf = append(buf, k.Salt.Bytes()...)
	return common.BytesToHash(crypto.Keccak256(buf))
}

// Amounts is a two-currency value pair. Nil fields are treated as zero.
type Amounts struct {
	Amount0 *uint256.Int
	Amount1 *uint256.Int
}

// NewAmounts returns a zero-valued pair.
func NewAmounts() Amounts {
	return Amounts{Amount0: uint256.NewInt(0), Amount1: uint256.NewInt(0)}
}

// Clone deep-copies the pair.
func (a Amounts) Clone() Amounts {
	return Amounts{Amount0: cloneOrZero(a.Amount0), Amount1: cloneOrZero(a.Amount1)}
}

// Add returns a + b with each side saturating at the uint256 bound.
func (a Amounts) Add(b Amounts) Amounts {
	return Amounts{
		Amount0: SatAdd(a.Amount0, b.Amount0),
		Amount1: SatAdd(a.Amount1, b.Amount1),
	}
}

// Sub returns a - b with each side floored at zero.
func (a Amounts) Sub(b Amounts) Amounts {
	return Amounts{
		Amount0: SubFloor(a.Amount0, b.Amount0),
		Amount1: SubFloor(a.Amount1, b.Amount1),
	}
}

// IsZero reports whether both sides are zero or nil.
func (a Amounts) IsZero() bool {
	return (a.Amount0 == nil || a.Amount0.IsZero()) && (a.Amount1 == nil || a.Amount1.IsZero())
}

func cloneOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return uint256.NewInt(0)
	}
	return v.Clone()
}

// BeforeSwapEvent carries the pool state observed before a swap executes.
type BeforeSwapEvent struct {
	Pool         common.Hash
	Block        uint64
	ZeroForOne   bool
	SqrtPriceX96 *uint256.Int
	Tick         int32
}

// TickCrossing is one tick boundary traversed by a swap, with the
// per-unit-liquidity fee growth (X128 fixed point) credited at that tick.
type TickCrossing struct {
	Tick          int32
	FeeGrowthX128 *uint256.Int
}

// AfterSwapEvent carries the executed swap result. Crossings are ordered in
// price order matching the swap direction.
type AfterSwapEvent struct {
	Pool         common.Hash
	Block        uint64
	ZeroForOne   bool
	SqrtPriceX96 *uint256.Int
	Tick         int32
	AmountIn     *uint256.Int
	AmountOut    *uint256.Int
	Crossings    []TickCrossing
}

// BeforeModifyLiquidityEvent precedes a liquidity add or remove.
type BeforeModifyLiquidityEvent struct {
	Pool           common.Hash
	Block          uint64
	Position       PositionKey
	LiquidityDelta *big.Int
}

// AfterModifyLiquidityEvent follows a liquidity add or remove.
// LiquidityDelta is positive for adds and negative for removes; FeesAccrued
// is the fee accrual attributable to the position since its last touch, as
// reported by the host pool.
type AfterModifyLiquidityEvent struct {
	Pool           common.Hash
	Block          uint64
	Position       PositionKey
	LiquidityDelta *big.Int
	FeesAccrued    Amounts
}
