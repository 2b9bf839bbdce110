package tui

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/codecore/codecore/internal/eventbus"
	"github.com/codecore/codecore/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRedrawer struct {
	mu    sync.Mutex
	count int
}

func (r *countingRedrawer) Redraw() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return nil
}

func (r *countingRedrawer) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func TestLoop_CoalescesBurstOfRedrawsIntoOne(t *testing.T) {
	bus := eventbus.New()
	redrawer := &countingRedrawer{}
	loop := NewLoop(bus, redrawer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	for i := 0; i < 10; i++ {
		bus.SendHigh(eventbus.Redraw{Reason: "x"})
	}

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, redrawer.Count())

	bus.SendHigh(eventbus.ExitRequest{Graceful: true})
	time.Sleep(20 * time.Millisecond)
	cancel()
}

func TestLoop_CtrlTTogglesAltScreen(t *testing.T) {
	bus := eventbus.New()
	loop := NewLoop(bus, &countingRedrawer{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	before := loop.AltScreen.Active()
	bus.SendHigh(eventbus.KeyEvent{Code: "t", Ctrl: true})
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, !before, loop.AltScreen.Active())
}

func TestLoop_ExitRequestStopsLoopAndCallsHandler(t *testing.T) {
	bus := eventbus.New()
	loop := NewLoop(bus, &countingRedrawer{}, nil)

	handled := make(chan struct{}, 1)
	loop.Handler = func(msg eventbus.Message) {
		if _, ok := msg.(eventbus.ExitRequest); ok {
			handled <- struct{}{}
		}
	}

	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	bus.SendHigh(eventbus.ExitRequest{Graceful: true})

	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatal("expected handler to observe ExitRequest")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return after ExitRequest")
	}
}

func TestLoop_FlushRedrawPopulatesVisibleFromHistory(t *testing.T) {
	bus := eventbus.New()
	loop := NewLoop(bus, &countingRedrawer{}, nil)
	loop.History = history.NewStore()
	loop.History.Append(history.UserInput{Base: history.Base{ID: loop.History.NextID()}, Text: "hello"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	bus.SendHigh(eventbus.Redraw{Reason: "x"})
	time.Sleep(100 * time.Millisecond)

	assert.NotEmpty(t, loop.Visible)
}

func TestLoop_NonRedrawMessagesReachHandler(t *testing.T) {
	bus := eventbus.New()
	loop := NewLoop(bus, &countingRedrawer{}, nil)

	got := make(chan eventbus.Message, 1)
	loop.Handler = func(msg eventbus.Message) { got <- msg }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	bus.SendHigh(eventbus.KeyEvent{Code: "enter"})

	select {
	case msg := <-got:
		key, ok := msg.(eventbus.KeyEvent)
		require.True(t, ok)
		assert.Equal(t, "enter", key.Code)
	case <-time.After(time.Second):
		t.Fatal("expected handler to receive the key event")
	}
}
