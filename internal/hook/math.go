package hook

import (
	"math/big"

	"github.com/holiman/uint256"
)

var maxUint256 = new(uint256.Int).SetAllOne()

// SatAdd returns x + y, saturating at the uint256 upper bound.
func SatAdd(x, y *uint256.Int) *uint256.Int {
	if x == nil {
		return cloneOrZero(y)
	}
	if y == nil {
		return x.Clone()
	}
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return maxUint256.Clone()
	}
	return sum
}

// SubFloor returns x - y, floored at zero.
func SubFloor(x, y *uint256.Int) *uint256.Int {
	if x == nil {
		return uint256.NewInt(0)
	}
	if y == nil {
		return x.Clone()
	}
	if x.Lt(y) {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Sub(x, y)
}

// MulShr128 returns (liquidity * growthX128) >> 128, saturating at the
// uint256 upper bound. This is the fee-share computation: growth is a
// per-unit-liquidity accumulator in X128 fixed point. The shift floors,
// so shares round down and sub-unit dust stays in the pool rather than
// being paid out.
func MulShr128(liquidity, growthX128 *uint256.Int) *uint256.Int {
	if liquidity == nil || growthX128 == nil || liquidity.IsZero() || growthX128.IsZero() {
		return uint256.NewInt(0)
	}
	product := new(big.Int).Mul(liquidity.ToBig(), growthX128.ToBig())
	product.Rsh(product, 128)
	return clampToUint256(product)
}

// ScaleFrac returns value * num / den computed exactly. den must be
// nonzero and num <= den, so the result never exceeds value.
func ScaleFrac(value *uint256.Int, num, den uint64) *uint256.Int {
	if value == nil || value.IsZero() || num == 0 {
		return uint256.NewInt(0)
	}
	if num >= den {
		return value.Clone()
	}
	scaled := new(big.Int).Mul(value.ToBig(), new(big.Int).SetUint64(num))
	scaled.Quo(scaled, new(big.Int).SetUint64(den))
	return clampToUint256(scaled)
}

// BlendCheckpoint returns the liquidity-weighted average of two X128
// checkpoints: (liqA*ckptA + liqB*ckptB) / (liqA + liqB). Used when
// liquidity is added to an existing position so that
// liquidity * (growth - checkpoint) stays invariant across the addition.
func BlendCheckpoint(liqA, ckptA, liqB, ckptB *uint256.Int) *uint256.Int {
	total := new(big.Int).Add(liqA.ToBig(), liqB.ToBig())
	if total.Sign() == 0 {
		return uint256.NewInt(0)
	}
	weighted := new(big.Int).Mul(liqA.ToBig(), ckptA.ToBig())
	weighted.Add(weighted, new(big.Int).Mul(liqB.ToBig(), ckptB.ToBig()))
	weighted.Quo(weighted, total)
	return clampToUint256(weighted)
}

func clampToUint256(v *big.Int) *uint256.Int {
	out, overflow := uint256.FromBig(v)
	if overflow {
		return maxUint256.Clone()
	}
	return out
}
