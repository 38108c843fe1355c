package observer

import (
	"testing"

	"github.com/dkvlabs/regiondb/lib/engine/region"
)

type recordingObserver struct {
	BaseObserver
	name    string
	calls   *[]string
	bypass  bool
	complete bool
}

func (o *recordingObserver) PreMutate(ctx *MutateContext) {
	*o.calls = append(*o.calls, o.name)
	ctx.Bypass = o.bypass
	ctx.Complete = o.complete
}

func TestChainDispatchesToEveryObserverInOrder(t *testing.T) {
	var calls []string
	chain := New(false,
		&recordingObserver{name: "first", calls: &calls},
		&recordingObserver{name: "second", calls: &calls},
	)

	ctx := &MutateContext{ObserverContext: &ObserverContext{}, Row: []byte("r1")}
	chain.PreMutate(ctx)

	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("expected both observers called in order, got %v", calls)
	}
}

func TestChainCompleteStopsLaterObservers(t *testing.T) {
	var calls []string
	chain := New(false,
		&recordingObserver{name: "first", calls: &calls, complete: true},
		&recordingObserver{name: "second", calls: &calls},
	)

	ctx := &MutateContext{ObserverContext: &ObserverContext{}, Row: []byte("r1")}
	chain.PreMutate(ctx)

	if len(calls) != 1 || calls[0] != "first" {
		t.Fatalf("expected only the first observer to run once Complete is set, got %v", calls)
	}
}

func TestChainBypassPropagatesToCaller(t *testing.T) {
	chain := New(false, &recordingObserver{name: "only", calls: &[]string{}, bypass: true})

	ctx := &MutateContext{ObserverContext: &ObserverContext{}, Row: []byte("r1")}
	chain.PreMutate(ctx)

	if !ctx.Bypass {
		t.Fatal("expected Bypass to propagate from the observer to the shared context")
	}
}

type panickingObserver struct{ BaseObserver }

func (panickingObserver) PreMutate(*MutateContext) { panic("boom") }

func TestChainLogsAndContinuesWhenAbortOnErrorDisabled(t *testing.T) {
	var calls []string
	chain := New(false,
		panickingObserver{},
		&recordingObserver{name: "after-panic", calls: &calls},
	)

	ctx := &MutateContext{ObserverContext: &ObserverContext{}, Row: []byte("r1")}
	chain.PreMutate(ctx) // must not panic out of the test

	if len(calls) != 1 || calls[0] != "after-panic" {
		t.Fatalf("expected the observer after the panicking one to still run, got %v", calls)
	}
}

func TestChainRePanicsWhenAbortOnErrorEnabled(t *testing.T) {
	chain := New(true, panickingObserver{})

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected the panic to propagate out of Chain when abort-on-error is enabled")
		}
	}()
	chain.PreMutate(&MutateContext{ObserverContext: &ObserverContext{}, Row: []byte("r1")})
}

type indispensableObserver struct {
	BaseObserver
	ran *bool
}

func (o indispensableObserver) PostBatchMutateIndispensably(*BatchMutateContext) { *o.ran = true }

func TestPostBatchMutateIndispensablyRunsDespitePriorComplete(t *testing.T) {
	ran := false
	completing := &recordingObserver{name: "completing", calls: &[]string{}, complete: true}
	chain := New(false, completing, indispensableObserver{ran: &ran})

	ctx := &BatchMutateContext{ObserverContext: &ObserverContext{Complete: true}}
	chain.PostBatchMutateIndispensably(ctx)

	if !ran {
		t.Fatal("expected PostBatchMutateIndispensably to run every observer regardless of a prior Complete")
	}
}

func TestRegionHooksAdapterRoundTripsBypassAndComplete(t *testing.T) {
	chain := New(false, &recordingObserver{name: "only", calls: &[]string{}, bypass: true, complete: true})
	adapter := &RegionHooksAdapter{Chain: chain}

	ctx := &region.HookContext{Row: []byte("r1")}
	adapter.PreMutate(ctx)

	if !ctx.Bypass || !ctx.Complete {
		t.Fatalf("expected Bypass and Complete to round-trip through the adapter, got %+v", ctx)
	}
}
