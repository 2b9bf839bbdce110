package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatcher_CollapsesIdenticalSummaries(t *testing.T) {
	b := NewBatcher()
	now := time.Now()
	for i := 0; i < 3; i++ {
		b.Add(Frame{Type: "event", Level: "error", Message: "boom"}, now)
	}

	events := b.Flush()
	require.Len(t, events, 1)
	assert.Equal(t, "[3x] boom", events[0].Summary)
	assert.True(t, events[0].ErrorBorne)
}

func TestBatcher_FlushesAtMaxEvents(t *testing.T) {
	b := NewBatcher()
	now := time.Now()
	for i := 0; i < maxEventsPerBatch; i++ {
		b.Add(Frame{Type: "event", Message: "m"}, now)
		assert.Equal(t, i+1 >= maxEventsPerBatch, b.Full())
	}

	b.Add(Frame{Type: "event", Message: "overflow"}, now)
	events := b.Flush()
	require.NotEmpty(t, events)
	assert.Equal(t, 1, events[len(events)-1].Dropped)
}

func TestBatcher_ShouldFlushAfterWindow(t *testing.T) {
	b := NewBatcher()
	start := time.Now()
	b.Add(Frame{Type: "event", Message: "x"}, start)

	assert.False(t, b.ShouldFlush(start.Add(time.Second)))
	assert.True(t, b.ShouldFlush(start.Add(batchWindow)))
}

func TestBatcher_EmptyAfterFlush(t *testing.T) {
	b := NewBatcher()
	b.Add(Frame{Type: "event", Message: "x"}, time.Now())
	b.Flush()
	assert.True(t, b.Empty())
}

func TestIsErrorLevel(t *testing.T) {
	for _, lvl := range []string{"error", "errors", "err", "fatal", "critical", "panic"} {
		assert.True(t, isErrorLevel(lvl), lvl)
	}
	assert.False(t, isErrorLevel("info"))
}
