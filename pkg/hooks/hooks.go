// Package hooks is the in-process event bus plugins use to observe and
// transform data around store mutations.
//
// Handlers are pure payload-to-payload functions. A plugin may only
// subscribe to events its manifest grants; grants are glob patterns, so a
// manifest can claim a whole category ("page_*") or single events.
package hooks

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrCapabilityDenied rejects a subscription outside the plugin's declared
// grants. Plugin misconfiguration: fatal to that registration only.
var ErrCapabilityDenied = errors.New("hooks: capability denied")

// Handler transforms a payload. Returning nil leaves the payload unchanged
// for the next handler in the chain.
type Handler func(payload any) any

// Manifest declares which event patterns a plugin is allowed to subscribe
// to.
type Manifest struct {
	Plugin string
	Grants []string
}

func (m Manifest) allows(event string) bool {
	for _, grant := range m.Grants {
		ok, err := doublestar.Match(grant, event)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

type hook struct {
	event    string
	plugin   string
	priority int
	seq      int
	fn       Handler
}

// Dispatcher routes events through registered handlers in ascending
// priority order; ties fall back to registration order (stable).
type Dispatcher struct {
	mu     sync.Mutex
	hooks  map[string][]hook
	sorted map[string]bool
	seq    int
	logger *slog.Logger
}

// New creates an empty dispatcher.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		hooks:  make(map[string][]hook),
		sorted: make(map[string]bool),
		logger: logger,
	}
}

// Register subscribes a handler on behalf of the host itself. Host code is
// not capability-gated; plugins must register through Bind.
func (d *Dispatcher) Register(event string, priority int, fn Handler) {
	d.add(event, "", priority, fn)
}

// Bind returns a registrar whose subscriptions are checked against the
// plugin's manifest.
func (d *Dispatcher) Bind(m Manifest) *Registrar {
	return &Registrar{dispatcher: d, manifest: m}
}

// Registrar is the capability-gated registration surface handed to one
// plugin.
type Registrar struct {
	dispatcher *Dispatcher
	manifest   Manifest
}

// Register subscribes the plugin's handler to event, failing with
// ErrCapabilityDenied when the manifest does not grant it.
func (r *Registrar) Register(event string, priority int, fn Handler) error {
	if !r.manifest.allows(event) {
		return fmt.Errorf("%w: plugin %q may not subscribe to %q", ErrCapabilityDenied, r.manifest.Plugin, event)
	}
	r.dispatcher.add(event, r.manifest.Plugin, priority, fn)
	return nil
}

func (d *Dispatcher) add(event, plugin string, priority int, fn Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	d.hooks[event] = append(d.hooks[event], hook{
		event:    event,
		plugin:   plugin,
		priority: priority,
		seq:      d.seq,
		fn:       fn,
	})
	d.sorted[event] = false
}

// Emit invokes all handlers for event in priority order, passing each one
// the payload produced by the previous. A handler that panics is logged as
// a plugin fault and skipped: the chain continues with the payload as it
// stood immediately before the failing handler, so one faulty plugin can
// neither corrupt the pipeline nor starve downstream handlers.
func (d *Dispatcher) Emit(event string, payload any) any {
	for _, h := range d.chain(event) {
		if next, ok := d.invoke(h, payload); ok && next != nil {
			payload = next
		}
	}
	return payload
}

// EmitCollect invokes all handlers for event with the same payload and
// collects their non-nil results instead of chaining.
func (d *Dispatcher) EmitCollect(event string, payload any) []any {
	var results []any
	for _, h := range d.chain(event) {
		if result, ok := d.invoke(h, payload); ok && result != nil {
			results = append(results, result)
		}
	}
	return results
}

// Has reports whether event has any registered handlers.
func (d *Dispatcher) Has(event string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.hooks[event]) > 0
}

// Unregister drops the named plugin's handlers for one event and returns
// how many were removed.
func (d *Dispatcher) Unregister(event, plugin string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drop(event, plugin)
}

// UnregisterPlugin drops every handler the named plugin registered across
// all events and returns how many were removed. Used when a plugin is
// disabled.
func (d *Dispatcher) UnregisterPlugin(plugin string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for event := range d.hooks {
		removed += d.drop(event, plugin)
	}
	return removed
}

// drop removes plugin's handlers on event. Caller holds the lock. The empty
// plugin name belongs to the host and never matches.
func (d *Dispatcher) drop(event, plugin string) int {
	if plugin == "" {
		return 0
	}
	removed := 0
	kept := d.hooks[event][:0]
	for _, h := range d.hooks[event] {
		if h.plugin == plugin {
			removed++
			continue
		}
		kept = append(kept, h)
	}
	d.hooks[event] = kept
	return removed
}

// Clear removes all handlers for event, or every handler when event is
// empty.
func (d *Dispatcher) Clear(event string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if event == "" {
		d.hooks = make(map[string][]hook)
		d.sorted = make(map[string]bool)
		return
	}
	delete(d.hooks, event)
	delete(d.sorted, event)
}

// chain returns a snapshot of event's handlers in execution order, so
// handlers run outside the dispatcher lock and may themselves register.
func (d *Dispatcher) chain(event string) []hook {
	d.mu.Lock()
	defer d.mu.Unlock()

	hooks := d.hooks[event]
	if len(hooks) == 0 {
		return nil
	}
	if !d.sorted[event] {
		sort.SliceStable(hooks, func(i, j int) bool {
			if hooks[i].priority != hooks[j].priority {
				return hooks[i].priority < hooks[j].priority
			}
			return hooks[i].seq < hooks[j].seq
		})
		d.sorted[event] = true
	}

	snapshot := make([]hook, len(hooks))
	copy(snapshot, hooks)
	return snapshot
}

// invoke runs one handler, converting a panic into a logged plugin fault.
// ok is false when the handler panicked.
func (d *Dispatcher) invoke(h hook, payload any) (result any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			plugin := h.plugin
			if plugin == "" {
				plugin = "host"
			}
			d.logger.Error("plugin hook fault", "plugin", plugin, "event", h.event, "panic", r)
			result, ok = nil, false
		}
	}()
	return h.fn(payload), true
}
