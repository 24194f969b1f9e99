package jitpenalty

import (
	"github.com/holiman/uint256"

	"hookScope/internal/hook"
)

// PenaltyPolicy scales the penalized share of a fee amount by the
// remaining window fraction. age < offset is guaranteed by the caller;
// the returned penalty never exceeds fees.
type PenaltyPolicy interface {
	Penalty(fees *uint256.Int, age, offset uint64) *uint256.Int
}

// LinearPolicy withholds fees * (offset - age) / offset: a removal right
// after the add forfeits everything, one at the window edge forfeits
// nothing.
type LinearPolicy struct{}

func (LinearPolicy) Penalty(fees *uint256.Int, age, offset uint64) *uint256.Int {
	if offset == 0 || age >= offset {
		return uint256.NewInt(0)
	}
	return hook.ScaleFrac(fees, offset-age, offset)
}
