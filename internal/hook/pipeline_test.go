package hook

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type swapRecorder struct {
	name  string
	calls *[]string
	err   error
}

func (r *swapRecorder) BeforeSwap(BeforeSwapEvent) ([]Outcome, error) {
	*r.calls = append(*r.calls, r.name+":before")
	return nil, r.err
}

func (r *swapRecorder) AfterSwap(AfterSwapEvent) ([]Outcome, error) {
	*r.calls = append(*r.calls, r.name+":after")
	return []Outcome{ExcessCaptured{Excess: uint256.NewInt(1)}}, nil
}

type modifyRecorder struct {
	calls *[]string
}

func (r *modifyRecorder) AfterModifyLiquidity(AfterModifyLiquidityEvent) ([]Outcome, error) {
	*r.calls = append(*r.calls, "modify:after")
	return nil, nil
}

func TestPipelineDispatchByCapability(t *testing.T) {
	var calls []string
	p, err := NewPipeline(nil,
		&swapRecorder{name: "a", calls: &calls},
		&swapRecorder{name: "b", calls: &calls},
		&modifyRecorder{calls: &calls},
	)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	if _, err := p.OnBeforeSwap(BeforeSwapEvent{Pool: common.HexToHash("0x01")}); err != nil {
		t.Fatalf("before swap: %v", err)
	}
	outcomes, err := p.OnAfterSwap(AfterSwapEvent{Pool: common.HexToHash("0x01")})
	if err != nil {
		t.Fatalf("after swap: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected outcomes from both swap hooks, got %d", len(outcomes))
	}
	if _, err := p.OnAfterModifyLiquidity(AfterModifyLiquidityEvent{}); err != nil {
		t.Fatalf("after modify: %v", err)
	}

	want := []string{"a:before", "b:before", "a:after", "b:after", "modify:after"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d = %q, want %q (registration order must hold)", i, calls[i], want[i])
		}
	}
}

func TestPipelineFailClosed(t *testing.T) {
	var calls []string
	wantErr := errors.New("boom")
	p, err := NewPipeline(nil,
		&swapRecorder{name: "a", calls: &calls, err: wantErr},
		&swapRecorder{name: "b", calls: &calls},
	)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	outcomes, err := p.OnBeforeSwap(BeforeSwapEvent{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected hook error to propagate, got %v", err)
	}
	if outcomes != nil {
		t.Fatalf("expected no outcomes on error, got %v", outcomes)
	}
	// The failing hook must have stopped the chain.
	if len(calls) != 1 || calls[0] != "a:before" {
		t.Fatalf("calls = %v, want only the failing hook", calls)
	}
}

func TestPipelineRejectsCapabilityFreeHook(t *testing.T) {
	if _, err := NewPipeline(nil, struct{}{}); err == nil {
		t.Fatalf("expected error registering a hook with no event interface")
	}
}
