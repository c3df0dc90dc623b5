package hooks

import (
	"errors"
	"io"
	"log/slog"
	"testing"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestEmitChainsInPriorityOrder(t *testing.T) {
	d := newTestDispatcher(t)

	d.Register(EventPageSaveBefore, 20, func(payload any) any {
		return payload.(string) + " second"
	})
	d.Register(EventPageSaveBefore, 10, func(payload any) any {
		return payload.(string) + " first"
	})

	got := d.Emit(EventPageSaveBefore, "start")
	if got != "start first second" {
		t.Fatalf("wrong chain order: %q", got)
	}
}

func TestTiesRunInRegistrationOrder(t *testing.T) {
	d := newTestDispatcher(t)

	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		d.Register(EventPageRender, 10, func(payload any) any {
			order = append(order, name)
			return nil
		})
	}

	d.Emit(EventPageRender, "x")
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("ties broke registration order: %v", order)
	}
}

func TestNilResultLeavesPayloadUnchanged(t *testing.T) {
	d := newTestDispatcher(t)

	d.Register(EventPageRender, 10, func(payload any) any {
		return nil // observe only
	})
	d.Register(EventPageRender, 20, func(payload any) any {
		return payload.(string) + " transformed"
	})

	got := d.Emit(EventPageRender, "original")
	if got != "original transformed" {
		t.Fatalf("nil result disturbed the chain: %q", got)
	}
}

// TestPanicSkipsHandlerKeepsPayload has an early handler panic; the later
// handler must still run and must receive the payload as it stood before
// the failing handler.
func TestPanicSkipsHandlerKeepsPayload(t *testing.T) {
	d := newTestDispatcher(t)

	var seen any
	d.Register(EventPageSaveBefore, 10, func(payload any) any {
		panic("plugin blew up")
	})
	d.Register(EventPageSaveBefore, 20, func(payload any) any {
		seen = payload
		return payload
	})

	got := d.Emit(EventPageSaveBefore, "pristine")
	if seen != "pristine" {
		t.Fatalf("downstream handler saw %v, want the pre-fault payload", seen)
	}
	if got != "pristine" {
		t.Fatalf("emit returned %v after fault", got)
	}
}

func TestEmitWithoutHandlers(t *testing.T) {
	d := newTestDispatcher(t)
	if got := d.Emit("nobody_home", 42); got != 42 {
		t.Fatalf("emit without handlers must return the payload, got %v", got)
	}
}

func TestCapabilityGating(t *testing.T) {
	d := newTestDispatcher(t)
	r := d.Bind(Manifest{Plugin: "seo", Grants: []string{"page_*"}})

	if err := r.Register(EventPageRender, 10, func(payload any) any { return nil }); err != nil {
		t.Fatalf("granted event rejected: %v", err)
	}
	if err := r.Register(EventPageSaveAfter, 10, func(payload any) any { return nil }); err != nil {
		t.Fatalf("glob grant should cover page_save_after: %v", err)
	}

	err := r.Register(EventAuthSuccess, 10, func(payload any) any { return nil })
	if !errors.Is(err, ErrCapabilityDenied) {
		t.Fatalf("expected ErrCapabilityDenied, got %v", err)
	}
	if d.Has(EventAuthSuccess) {
		t.Fatal("denied registration still attached a handler")
	}
}

func TestEmitCollect(t *testing.T) {
	d := newTestDispatcher(t)

	d.Register(EventPageRender, 10, func(payload any) any { return "one" })
	d.Register(EventPageRender, 20, func(payload any) any { return nil })
	d.Register(EventPageRender, 30, func(payload any) any { return "two" })

	results := d.EmitCollect(EventPageRender, "x")
	if len(results) != 2 || results[0] != "one" || results[1] != "two" {
		t.Fatalf("wrong collected results: %v", results)
	}
}

func TestUnregisterPlugin(t *testing.T) {
	d := newTestDispatcher(t)

	r := d.Bind(Manifest{Plugin: "analytics", Grants: []string{"*"}})
	if err := r.Register(EventPageRender, 10, func(payload any) any { return nil }); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(EventAuthSuccess, 10, func(payload any) any { return nil }); err != nil {
		t.Fatal(err)
	}
	d.Register(EventPageRender, 10, func(payload any) any { return nil })

	removed := d.UnregisterPlugin("analytics")
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if !d.Has(EventPageRender) {
		t.Fatal("host handler was removed with the plugin")
	}
	if d.Has(EventAuthSuccess) {
		t.Fatal("plugin handler survived unregistration")
	}

	// Host handlers carry no plugin name and must never match.
	if removed := d.UnregisterPlugin(""); removed != 0 {
		t.Fatalf("empty plugin name removed %d handlers", removed)
	}
}

func TestUnregisterSingleEvent(t *testing.T) {
	d := newTestDispatcher(t)

	r := d.Bind(Manifest{Plugin: "analytics", Grants: []string{"*"}})
	if err := r.Register(EventPageRender, 10, func(payload any) any { return nil }); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(EventAuthSuccess, 10, func(payload any) any { return nil }); err != nil {
		t.Fatal(err)
	}

	if removed := d.Unregister(EventPageRender, "analytics"); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if d.Has(EventPageRender) {
		t.Fatal("handler survived unregistration")
	}
	if !d.Has(EventAuthSuccess) {
		t.Fatal("unrelated event lost its handler")
	}
}

func TestClear(t *testing.T) {
	d := newTestDispatcher(t)

	d.Register(EventPageRender, 10, func(payload any) any { return nil })
	d.Register(EventAuthSuccess, 10, func(payload any) any { return nil })

	d.Clear(EventPageRender)
	if d.Has(EventPageRender) {
		t.Fatal("cleared event still has handlers")
	}
	if !d.Has(EventAuthSuccess) {
		t.Fatal("clear removed an unrelated event")
	}

	d.Clear("")
	if d.Has(EventAuthSuccess) {
		t.Fatal("clear-all left handlers behind")
	}
}

func TestHandlerMayRegisterDuringEmit(t *testing.T) {
	d := newTestDispatcher(t)

	d.Register(EventPageRender, 10, func(payload any) any {
		d.Register(EventPageRender, 20, func(payload any) any { return nil })
		return nil
	})

	// Must not deadlock; the new handler joins subsequent emits.
	d.Emit(EventPageRender, "x")
	d.Emit(EventPageRender, "x")
}
