package tui

import (
	"container/heap"
	"log/slog"
	"sync"
	"time"

	"github.com/codecore/codecore/internal/eventbus"
)

// RedrawDebounce is the target cadence for coalesced redraws (spec.md
// §4.6: "Redraw debounced to ≈33 ms").
const RedrawDebounce = 33 * time.Millisecond

type timerDeadline struct {
	at time.Time
	id string
}

type deadlineHeap []timerDeadline

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h deadlineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *deadlineHeap) Push(x any)         { *h = append(*h, x.(timerDeadline)) }
func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// FrameTimer schedules delayed Timer messages onto a Bus using a
// min-heap of deadlines. At most one worker goroutine is alive at a
// time, spawned lazily on the first Schedule call; if the worker
// fails to spawn, Schedule falls back to delivering directly (spec.md
// §4.6).
type FrameTimer struct {
	mu       sync.Mutex
	heap     deadlineHeap
	wake     chan struct{}
	running  bool
	bus      *eventbus.Bus
	logger   *slog.Logger
	lastWarn time.Time
}

func NewFrameTimer(bus *eventbus.Bus, logger *slog.Logger) *FrameTimer {
	if logger == nil {
		logger = slog.Default()
	}
	return &FrameTimer{bus: bus, logger: logger.With("component", "frame_timer"), wake: make(chan struct{}, 1)}
}

// Schedule arranges for a Timer{ID: id} message to be sent on bus no
// earlier than at. Each call adds its own heap entry: calling Schedule
// again with the same id before it fires does not replace the earlier
// entry, and both deliver a Timer message.
func (f *FrameTimer) Schedule(id string, at time.Time) {
	f.mu.Lock()
	heap.Push(&f.heap, timerDeadline{at: at, id: id})
	needsWorker := !f.running
	if needsWorker {
		f.running = true
	}
	f.mu.Unlock()

	if needsWorker {
		if !f.spawnWorker() {
			f.mu.Lock()
			f.running = false
			f.mu.Unlock()
			f.deliverDirect(id)
			return
		}
	}

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *FrameTimer) spawnWorker() bool {
	defer func() {
		if r := recover(); r != nil {
			f.throttledWarn("frame timer worker panicked on spawn", "panic", r)
		}
	}()
	go f.run()
	return true
}

func (f *FrameTimer) run() {
	for {
		f.mu.Lock()
		if f.heap.Len() == 0 {
			f.running = false
			f.mu.Unlock()
			return
		}
		next := f.heap[0]
		wait := time.Until(next.at)
		f.mu.Unlock()

		if wait <= 0 {
			f.popAndFire()
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			f.popAndFire()
		case <-f.wake:
			timer.Stop()
		}
	}
}

func (f *FrameTimer) popAndFire() {
	f.mu.Lock()
	if f.heap.Len() == 0 {
		f.mu.Unlock()
		return
	}
	if time.Now().Before(f.heap[0].at) {
		f.mu.Unlock()
		return
	}
	item := heap.Pop(&f.heap).(timerDeadline)
	f.mu.Unlock()
	f.deliverDirect(item.id)
}

func (f *FrameTimer) deliverDirect(id string) {
	if f.bus != nil {
		f.bus.SendHigh(eventbus.Timer{ID: id})
	}
}

func (f *FrameTimer) throttledWarn(msg string, args ...any) {
	now := time.Now()
	f.mu.Lock()
	shouldLog := now.Sub(f.lastWarn) > time.Second
	if shouldLog {
		f.lastWarn = now
	}
	f.mu.Unlock()
	if shouldLog {
		f.logger.Warn(msg, args...)
	}
}
