package exec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecore/codecore/internal/history"
)

func drainEvents(t *testing.T, ch chan Event) []Event {
	t.Helper()
	var out []Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestRunner_BeginEndPairingOnSuccess(t *testing.T) {
	r := NewRunner(nil)
	registry := history.NewRegistry()
	meta := registry.Register("call-1", "sub-1", history.OrderMeta{})

	events := make(chan Event, 64)
	sink := &StreamSink{SubmissionID: "sub-1", CallID: "call-1", Events: events}

	end := r.Run(context.Background(), Params{Command: []string{"echo", "hi"}}, InvokeArgs{}, meta, sink)

	assert.Equal(t, 0, end.ExitCode)
	assert.Contains(t, end.Stdout, "hi")
	assert.True(t, meta.EndEmitted())

	seen := drainEvents(t, events)
	require.GreaterOrEqual(t, len(seen), 1)
	_, isBegin := seen[0].(BeginEvent)
	assert.True(t, isBegin, "first emitted event must be Begin")

	var endCount int
	for _, e := range seen {
		if _, ok := e.(EndEvent); ok {
			endCount++
		}
	}
	assert.Equal(t, 1, endCount, "exactly one End must be emitted per call_id")
}

func TestRunner_NonZeroExit(t *testing.T) {
	r := NewRunner(nil)
	registry := history.NewRegistry()
	meta := registry.Register("call-2", "sub-1", history.OrderMeta{})

	end := r.Run(context.Background(), Params{Command: []string{"false"}}, InvokeArgs{}, meta, nil)
	assert.NotEqual(t, 0, end.ExitCode)
}

func TestRunner_TimeoutRemapsTo124(t *testing.T) {
	r := NewRunner(nil)
	registry := history.NewRegistry()
	meta := registry.Register("call-3", "sub-1", history.OrderMeta{})

	end := r.Run(context.Background(), Params{Command: []string{"sleep", "2"}, TimeoutMS: 50}, InvokeArgs{}, meta, nil)
	assert.True(t, end.TimedOut)
	assert.Equal(t, remappedTimeoutExitCode, end.ExitCode)
}

func TestRunner_CancelFlagProducesCancelledExitCode(t *testing.T) {
	r := NewRunner(nil)
	registry := history.NewRegistry()
	meta := registry.Register("call-4", "sub-1", history.OrderMeta{})

	done := make(chan EndEvent, 1)
	go func() {
		done <- r.Run(context.Background(), Params{Command: []string{"sleep", "5"}}, InvokeArgs{}, meta, nil)
	}()

	time.Sleep(50 * time.Millisecond)
	meta.Cancel()

	select {
	case end := <-done:
		assert.Equal(t, cancelledExitCode, end.ExitCode)
	case <-time.After(3 * time.Second):
		t.Fatal("cancellation did not terminate the command in time")
	}
}

func TestDropGuardFinalize_NoOpIfAlreadyEmitted(t *testing.T) {
	registry := history.NewRegistry()
	meta := registry.Register("call-5", "sub-1", history.OrderMeta{})
	meta.MarkEndEmitted()

	events := make(chan Event, 1)
	DropGuardFinalize(meta, &StreamSink{Events: events})

	select {
	case <-events:
		t.Fatal("DropGuardFinalize must not emit a second End")
	default:
	}
}

func TestDropGuardFinalize_EmitsSyntheticEndWhenMissed(t *testing.T) {
	registry := history.NewRegistry()
	meta := registry.Register("call-6", "sub-1", history.OrderMeta{})

	events := make(chan Event, 1)
	DropGuardFinalize(meta, &StreamSink{Events: events})

	ev := <-events
	end, ok := ev.(EndEvent)
	require.True(t, ok)
	assert.Equal(t, cancelledExitCode, end.ExitCode)
	assert.Equal(t, "Command interrupted before completion.", end.Stderr)
}
