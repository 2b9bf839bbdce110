// Package eventbus implements the core's two-priority, single-consumer event
// multiplexer: a "high" queue for input and redraw scheduling, and a "bulk"
// queue for streamed model output and tool results, with a starvation guard
// that forces a bulk drain after a run of consecutive high messages.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// starvationGuardLimit is N in spec.md §4.1: after this many consecutive high
// messages are returned from Next, a queued bulk message is forced through
// even if more high messages are waiting.
const starvationGuardLimit = 32

// Bus delivers Messages from many producers to a single consumer. Sends are
// always non-blocking: both queues are backed by unbounded slices behind a
// mutex so that producers never stall during interrupts or cancels.
type Bus struct {
	mu     sync.Mutex
	cond   *sync.Cond
	high   []Message
	bulk   []Message
	closed bool

	consecutiveHigh int64

	highEnqueued atomic.Int64
	bulkEnqueued atomic.Int64
	bulkForced   atomic.Int64
}

// New creates an empty, open Bus.
func New() *Bus {
	b := &Bus{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// SendHigh enqueues a message on the high-priority queue. No-op if closed.
func (b *Bus) SendHigh(msg Message) {
	b.send(&b.high, msg, &b.highEnqueued)
}

// SendBulk enqueues a message on the bulk queue. No-op if closed.
func (b *Bus) SendBulk(msg Message) {
	b.send(&b.bulk, msg, &b.bulkEnqueued)
}

func (b *Bus) send(queue *[]Message, msg Message, counter *atomic.Int64) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	*queue = append(*queue, msg)
	b.mu.Unlock()
	counter.Add(1)
	b.cond.Signal()
}

// Next blocks until a message is available (or the bus is closed) and
// returns it. It returns ok=false only once both queues are drained and the
// bus has been closed — a hard exit for the consumer.
func (b *Bus) Next() (msg Message, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if len(b.high) > 0 && b.consecutiveHigh < starvationGuardLimit {
			msg = b.high[0]
			b.high = b.high[1:]
			b.consecutiveHigh++
			return msg, true
		}

		if len(b.bulk) > 0 {
			msg = b.bulk[0]
			b.bulk = b.bulk[1:]
			if b.consecutiveHigh >= starvationGuardLimit {
				b.bulkForced.Add(1)
			}
			b.consecutiveHigh = 0
			return msg, true
		}

		if len(b.high) > 0 {
			// Bulk queue is empty but the guard tripped; high still wins.
			msg = b.high[0]
			b.high = b.high[1:]
			b.consecutiveHigh++
			return msg, true
		}

		if b.closed {
			return nil, false
		}
		b.cond.Wait()
	}
}

// Close marks the bus closed and wakes any blocked consumer. Further sends
// are dropped; Next continues to drain queued messages before returning
// ok=false.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Metrics is a point-in-time snapshot of bus counters, exposed for
// observability (events_enqueued_total, bulk_forced_total).
type Metrics struct {
	HighEnqueued int64
	BulkEnqueued int64
	BulkForced   int64
}

// Stats returns a snapshot of bus counters.
func (b *Bus) Stats() Metrics {
	return Metrics{
		HighEnqueued: b.highEnqueued.Load(),
		BulkEnqueued: b.bulkEnqueued.Load(),
		BulkForced:   b.bulkForced.Load(),
	}
}
