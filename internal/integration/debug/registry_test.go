package debug

import (
	"errors"
	"testing"
)

func expectInvariant(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic wrapping %v", target)
		}
		ie, ok := r.(*InvariantError)
		if !ok {
			t.Fatalf("expected *InvariantError, got %T: %v", r, r)
		}
		if !errors.Is(ie, target) {
			t.Errorf("expected %v, got %v", target, ie)
		}
	}()
	fn()
}

func TestRegistry_Lifecycle(t *testing.T) {
	r := NewRegistry(8)

	tok := r.Allocate()
	if tok != 1 {
		t.Fatalf("expected first token 1, got %d", tok)
	}

	ctx := &RequestContext{Kind: KindVarCreate, Text: "myexpr"}
	r.Register(tok, ctx)

	got, ok := r.Lookup(tok)
	if !ok || got != ctx {
		t.Fatalf("Lookup returned %v, %v", got, ok)
	}
	if got, ok := r.Lookup(tok); !ok || got != ctx {
		t.Error("Lookup must not consume the context")
	}

	if taken := r.Take(tok); taken != ctx {
		t.Errorf("Take returned %v", taken)
	}
	if _, ok := r.Lookup(tok); ok {
		t.Error("context still registered after Take")
	}
	if r.InFlight() != 0 {
		t.Errorf("expected 0 in flight, got %d", r.InFlight())
	}

	if again := r.Allocate(); again != tok {
		t.Errorf("expected released token %d to be reused, got %d", tok, again)
	}
}

func TestRegistry_AllocatesLowestFree(t *testing.T) {
	r := NewRegistry(8)
	for want := Token(1); want <= 4; want++ {
		if got := r.Allocate(); got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}

	r.Register(2, &RequestContext{Kind: KindUser})
	r.Take(2)
	r.Release(3)

	if got := r.Allocate(); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if got := r.Allocate(); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
	if got := r.Allocate(); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
	if r.Peak() != 5 {
		t.Errorf("expected peak 5, got %d", r.Peak())
	}
}

func TestRegistry_NoTokenNeverHasContext(t *testing.T) {
	r := NewRegistry(4)
	r.Issue(&RequestContext{Kind: KindUser})

	if _, ok := r.Lookup(NoToken); ok {
		t.Error("token 0 reported a context")
	}
	if _, ok := r.Lookup(Token(-1)); ok {
		t.Error("negative token reported a context")
	}
	if _, ok := r.Lookup(Token(100)); ok {
		t.Error("out of range token reported a context")
	}
}

func TestRegistry_Exhaustion(t *testing.T) {
	r := NewRegistry(3)
	for i := 0; i < 3; i++ {
		r.Allocate()
	}
	expectInvariant(t, ErrPoolExhausted, func() { r.Allocate() })
}

func TestRegistry_TakeUnregistered(t *testing.T) {
	r := NewRegistry(3)
	expectInvariant(t, ErrUnregisteredToken, func() { r.Take(1) })

	tok := r.Allocate()
	expectInvariant(t, ErrUnregisteredToken, func() { r.Take(tok) })
}

func TestRegistry_RegisterTwice(t *testing.T) {
	r := NewRegistry(3)
	tok := r.Issue(&RequestContext{Kind: KindUser})
	expectInvariant(t, ErrDuplicateContext, func() {
		r.Register(tok, &RequestContext{Kind: KindUser})
	})
}

func TestRegistry_RegisterUnallocated(t *testing.T) {
	r := NewRegistry(3)
	expectInvariant(t, ErrTokenNotAllocated, func() {
		r.Register(2, &RequestContext{Kind: KindUser})
	})
}

func TestRegistry_DefaultSize(t *testing.T) {
	if got := NewRegistry(0).Size(); got != DefaultPoolSize {
		t.Errorf("expected default size %d, got %d", DefaultPoolSize, got)
	}
}

func TestRequestKind_String(t *testing.T) {
	if KindSequencePoint.String() != "sequence-point" {
		t.Errorf("unexpected name %q", KindSequencePoint.String())
	}
	if RequestKind(99).String() != "unknown" {
		t.Errorf("unexpected name %q", RequestKind(99).String())
	}
}
