package replay

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	"hookScope/internal/hook"
)

// outcomeDetail flattens a hook outcome into its storage JSON. Big
// numbers become decimal strings; pool and block live on the enclosing
// record and are not repeated here.
func outcomeDetail(o hook.Outcome) (json.RawMessage, error) {
	var detail map[string]interface{}
	switch v := o.(type) {
	case hook.FeesWithheld:
		detail = map[string]interface{}{
			"position": positionDetail(v.Position),
			"fees":     amountsDetail(v.Fees),
		}
	case hook.FeesReleased:
		detail = map[string]interface{}{
			"position": positionDetail(v.Position),
			"fees":     amountsDetail(v.Fees),
		}
	case hook.PenaltyApplied:
		detail = map[string]interface{}{
			"position": positionDetail(v.Position),
			"age":      v.Age,
			"penalty":  amountsDetail(v.Penalty),
		}
	case hook.DonationForwarded:
		detail = map[string]interface{}{
			"donation":         amountsDetail(v.Donation),
			"active_liquidity": decimal(v.ActiveLiquidity),
		}
	case hook.DonationCarried:
		detail = map[string]interface{}{
			"retained": amountsDetail(v.Retained),
		}
	case hook.ExcessCaptured:
		detail = map[string]interface{}{
			"zero_for_one": v.ZeroForOne,
			"excess":       decimal(v.Excess),
		}
	case hook.OrderPlaced:
		detail = map[string]interface{}{
			"order_id":     v.OrderID,
			"owner":        v.Owner.Hex(),
			"tick":         v.Tick,
			"zero_for_one": v.ZeroForOne,
			"liquidity":    decimal(v.Liquidity),
		}
	case hook.OrderCancelled:
		detail = map[string]interface{}{
			"order_id":  v.OrderID,
			"owner":     v.Owner.Hex(),
			"tick":      v.Tick,
			"liquidity": decimal(v.Liquidity),
			"fee_share": decimal(v.FeeShare),
		}
	case hook.EpochFilled:
		detail = map[string]interface{}{
			"tick":                 v.Tick,
			"zero_for_one":         v.ZeroForOne,
			"liquidity":            decimal(v.Liquidity),
			"fill_fee_growth_x128": decimal(v.FillFeeGrowthX128),
		}
	case hook.OrderWithdrawn:
		detail = map[string]interface{}{
			"order_id":  v.OrderID,
			"owner":     v.Owner.Hex(),
			"fill_tick": v.FillTick,
			"principal": decimal(v.Principal),
			"fee_share": decimal(v.FeeShare),
		}
	default:
		return nil, fmt.Errorf("unsupported outcome %T", o)
	}
	return json.Marshal(detail)
}

func positionDetail(key hook.PositionKey) map[string]interface{} {
	return map[string]interface{}{
		"owner":      key.Owner.Hex(),
		"tick_lower": key.TickLower,
		"tick_upper": key.TickUpper,
		"salt":       key.Salt.Hex(),
	}
}

func amountsDetail(a hook.Amounts) map[string]string {
	return map[string]string{
		"amount0": decimal(a.Amount0),
		"amount1": decimal(a.Amount1),
	}
}

func decimal(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.ToBig().String()
}
