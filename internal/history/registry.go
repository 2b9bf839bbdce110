package history

import (
	"sync"
	"sync/atomic"
)

// RunningExecMeta is the registry entry created on Begin and removed on End
// for a single call_id. Invariant: every Begin has exactly one End; the
// registry enforces this by only ever removing an entry once.
type RunningExecMeta struct {
	CallID       string
	SubmissionID string
	Order        OrderMeta

	cancelFlag  atomic.Bool
	endEmitted  atomic.Bool
}

// Cancel marks the entry cancelled. Observed by the exec drop-guard and
// reader tasks to choose the synthetic End's stderr text.
func (m *RunningExecMeta) Cancel() { m.cancelFlag.Store(true) }

// Cancelled reports whether Cancel was called.
func (m *RunningExecMeta) Cancelled() bool { return m.cancelFlag.Load() }

// MarkEndEmitted records that an End (real or synthetic) was emitted for
// this entry. Returns false if an End was already emitted, so callers can
// detect (and refuse) a double-emission.
func (m *RunningExecMeta) MarkEndEmitted() bool {
	return m.endEmitted.CompareAndSwap(false, true)
}

// EndEmitted reports whether MarkEndEmitted has already succeeded.
func (m *RunningExecMeta) EndEmitted() bool { return m.endEmitted.Load() }

// Registry is the session-scoped table mapping call_id to RunningExecMeta.
// Protected by a coarse mutex; mutated only on Begin/End per spec.md §3.1.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*RunningExecMeta
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*RunningExecMeta)}
}

// Register adds a new entry on ExecCommandBegin. Returns the entry so the
// caller can hold it for cancellation and end-emission bookkeeping.
func (r *Registry) Register(callID, submissionID string, order OrderMeta) *RunningExecMeta {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := &RunningExecMeta{CallID: callID, SubmissionID: submissionID, Order: order}
	r.entries[callID] = m
	return m
}

// Unregister removes the entry for callID, natural or synthetic End. Safe to
// call more than once; subsequent calls are no-ops.
func (r *Registry) Unregister(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, callID)
}

// Lookup returns the entry for callID, if still registered.
func (r *Registry) Lookup(callID string) (*RunningExecMeta, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.entries[callID]
	return m, ok
}

// MarkAllCancelled sets the cancel flag on every currently registered entry.
// Used when the user cancels the turn.
func (r *Registry) MarkAllCancelled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.entries {
		m.Cancel()
	}
}

// Snapshot returns a copy of all currently registered entries, for draining
// before a turn transitions to TaskComplete or Error (spec.md §3.2).
func (r *Registry) Snapshot() []*RunningExecMeta {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*RunningExecMeta, 0, len(r.entries))
	for _, m := range r.entries {
		out = append(out, m)
	}
	return out
}

// Len reports how many execs are currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
