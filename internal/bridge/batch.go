package bridge

import (
	"fmt"
	"time"
)

const (
	maxEventsPerBatch   = 50
	batchWindow         = 3 * time.Second
	batchSummaryMaxChar = 1200
)

// BatchEvent is the summarized, history-ready shape an inbound bridge
// frame collapses into (spec.md §4.4.3).
type BatchEvent struct {
	Summary   string
	Level     string
	Truncated bool
	ErrorBorne bool
	Dropped   int
}

// summarizeFrame turns a raw inbound event frame into a one-line
// summary, truncated to batchSummaryMaxChar.
func summarizeFrame(f Frame) (summary string, level string) {
	level = f.Level
	switch {
	case f.Message != "":
		summary = f.Message
	case f.Navigation != nil && f.Navigation.To != "":
		summary = fmt.Sprintf("navigation to %s", f.Navigation.To)
	case f.Route != "":
		summary = fmt.Sprintf("route %s", f.Route)
	default:
		summary = f.Type
	}
	if len(summary) > batchSummaryMaxChar {
		summary = summary[:batchSummaryMaxChar-len("… [truncated]")] + "… [truncated]"
	}
	return summary, level
}

// Batcher accumulates inbound frames into a single BatchEvent, flushing
// when the buffer reaches maxEventsPerBatch or batchWindow elapses
// since the first insertion, whichever comes first. Identical
// consecutive-or-not summaries collapse into a "[Nx] ..." form; entries
// beyond the 50-event budget increment a dropped counter instead of
// growing the buffer unboundedly.
type Batcher struct {
	counts    map[string]int
	order     []string
	levels    map[string]string
	dropped   int
	errorSeen bool
	opened    time.Time
	total     int
}

// NewBatcher returns an empty batcher.
func NewBatcher() *Batcher {
	return &Batcher{
		counts: make(map[string]int),
		levels: make(map[string]string),
	}
}

// Add folds one inbound frame into the current batch.
func (b *Batcher) Add(f Frame, now time.Time) {
	if b.total == 0 {
		b.opened = now
	}

	summary, level := summarizeFrame(f)
	if isErrorLevel(level) {
		b.errorSeen = true
	}

	if b.total >= maxEventsPerBatch {
		b.dropped++
		return
	}

	if _, exists := b.counts[summary]; !exists {
		b.order = append(b.order, summary)
		b.levels[summary] = level
	}
	b.counts[summary]++
	b.total++
}

// ShouldFlush reports whether the batch window has elapsed since the
// first event was added.
func (b *Batcher) ShouldFlush(now time.Time) bool {
	return b.total > 0 && now.Sub(b.opened) >= batchWindow
}

// Full reports whether the next Add would exceed maxEventsPerBatch.
func (b *Batcher) Full() bool {
	return b.total >= maxEventsPerBatch
}

// Empty reports whether nothing has been added since the last Flush.
func (b *Batcher) Empty() bool {
	return b.total == 0
}

// Flush renders the accumulated batch into history-ready BatchEvents
// (one per distinct summary, with repeat counts collapsed) and resets
// the batcher for the next window.
func (b *Batcher) Flush() []BatchEvent {
	if b.total == 0 {
		return nil
	}

	events := make([]BatchEvent, 0, len(b.order))
	for i, summary := range b.order {
		count := b.counts[summary]
		rendered := summary
		if count > 1 {
			rendered = fmt.Sprintf("[%dx] %s", count, summary)
		}
		ev := BatchEvent{
			Summary:    rendered,
			Level:      b.levels[summary],
			ErrorBorne: b.errorSeen,
		}
		if i == len(b.order)-1 {
			ev.Dropped = b.dropped
			ev.Truncated = b.dropped > 0
		}
		events = append(events, ev)
	}

	b.reset()
	return events
}

func (b *Batcher) reset() {
	b.counts = make(map[string]int)
	b.order = nil
	b.levels = make(map[string]string)
	b.dropped = 0
	b.errorSeen = false
	b.total = 0
}
