package hook

import (
	"fmt"

	"go.uber.org/zap"
)

// One interface per event type. Each hook implements only the subset it
// reacts to; the pipeline discovers capabilities by type assertion.

// BeforeSwapHook observes pool state before a swap executes.
type BeforeSwapHook interface {
	BeforeSwap(ev BeforeSwapEvent) ([]Outcome, error)
}

// AfterSwapHook observes the executed swap result.
type AfterSwapHook interface {
	AfterSwap(ev AfterSwapEvent) ([]Outcome, error)
}

// BeforeModifyLiquidityHook observes a pending liquidity change.
type BeforeModifyLiquidityHook interface {
	BeforeModifyLiquidity(ev BeforeModifyLiquidityEvent) ([]Outcome, error)
}

// AfterModifyLiquidityHook observes a settled liquidity change.
type AfterModifyLiquidityHook interface {
	AfterModifyLiquidity(ev AfterModifyLiquidityEvent) ([]Outcome, error)
}

// Pipeline routes host-pool events to registered hooks in registration
// order. Dispatch is fail-closed: the first hook error aborts the
// enclosing operation and no further hooks run for that event.
type Pipeline struct {
	beforeSwap   []BeforeSwapHook
	afterSwap    []AfterSwapHook
	beforeModify []BeforeModifyLiquidityHook
	afterModify  []AfterModifyLiquidityHook
	logger       *zap.Logger
}

// NewPipeline registers each hook under every event interface it
// implements. A hook implementing none of them is an error.
func NewPipeline(logger *zap.Logger, hooks ...interface{}) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{logger: logger}
	for i, h := range hooks {
		registered := false
		if bs, ok := h.(BeforeSwapHook); ok {
			p.beforeSwap = append(p.beforeSwap, bs)
			registered = true
		}
		if as, ok := h.(AfterSwapHook); ok {
			p.afterSwap = append(p.afterSwap, as)
			registered = true
		}
		if bm, ok := h.(BeforeModifyLiquidityHook); ok {
			p.beforeModify = append(p.beforeModify, bm)
			registered = true
		}
		if am, ok := h.(AfterModifyLiquidityHook); ok {
			p.afterModify = append(p.afterModify, am)
			registered = true
		}
		if !registered {
			return nil, fmt.Errorf("hook %d (%T) implements no event interface", i, h)
		}
	}
	return p, nil
}

// OnBeforeSwap dispatches a before-swap event.
func (p *Pipeline) OnBeforeSwap(ev BeforeSwapEvent) ([]Outcome, error) {
	var out []Outcome
	for _, h := range p.beforeSwap {
		outcomes, err := h.BeforeSwap(ev)
		if err != nil {
			return nil, fmt.Errorf("before swap: %w", err)
		}
		out = append(out, outcomes...)
	}
	p.logOutcomes("before_swap", out)
	return out, nil
}

// OnAfterSwap dispatches an after-swap event.
func (p *Pipeline) OnAfterSwap(ev AfterSwapEvent) ([]Outcome, error) {
	var out []Outcome
	for _, h := range p.afterSwap {
		outcomes, err := h.AfterSwap(ev)
		if err != nil {
			return nil, fmt.Errorf("after swap: %w", err)
		}
		out = append(out, outcomes...)
	}
	p.logOutcomes("after_swap", out)
	return out, nil
}

// OnBeforeModifyLiquidity dispatches a before-modify event.
func (p *Pipeline) OnBeforeModifyLiquidity(ev BeforeModifyLiquidityEvent) ([]Outcome, error) {
	var out []Outcome
	for _, h := range p.beforeModify {
		outcomes, err := h.BeforeModifyLiquidity(ev)
		if err != nil {
			return nil, fmt.Errorf("before modify liquidity: %w", err)
		}
		out = append(out, outcomes...)
	}
	p.logOutcomes("before_modify_liquidity", out)
	return out, nil
}

// OnAfterModifyLiquidity dispatches an after-modify event.
func (p *Pipeline) OnAfterModifyLiquidity(ev AfterModifyLiquidityEvent) ([]Outcome, error) {
	var out []Outcome
	for _, h := range p.afterModify {
		outcomes, err := h.AfterModifyLiquidity(ev)
		if err != nil {
			return nil, fmt.Errorf("after modify liquidity: %w", err)
		}
		out = append(out, outcomes...)
	}
	p.logOutcomes("after_modify_liquidity", out)
	return out, nil
}

func (p *Pipeline) logOutcomes(event string, outcomes []Outcome) {
	if len(outcomes) == 0 {
		return
	}
	kinds := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		kinds = append(kinds, o.Kind())
	}
	p.logger.Debug("hook outcomes", zap.String("event", event), zap.Strings("kinds", kinds))
}
