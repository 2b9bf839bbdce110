package tui

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codecore/codecore/internal/eventbus"
	"github.com/codecore/codecore/internal/history"
	"github.com/codecore/codecore/internal/render"
)

// defaultViewportWidth is used for the visibility pass until the caller
// sets Loop.Width.
const defaultViewportWidth = 80

// Redrawer renders one frame. Implemented by the concrete screen/
// scrollback writer; kept as an interface here so the loop is
// testable without a real terminal.
type Redrawer interface {
	Redraw() error
}

// Loop drains the event bus, coalesces Redraw requests to
// RedrawDebounce, and dispatches every other message to a Handler
// (spec.md §4.6).
type Loop struct {
	Bus        *eventbus.Bus
	Timer      *FrameTimer
	Themes     *Registry
	Cache      *render.Cache
	Assistant  *render.AssistantLayoutCache
	Visibility *render.Visibility
	Redrawer   Redrawer
	Handler    func(msg eventbus.Message) // called for every non-Redraw message
	AltScreen  *AltScreenState
	logger     *slog.Logger

	// History, when set, supplies the ordered records the visibility
	// pass accounts for on every flushed redraw. Nil leaves the cache
	// wired but idle, e.g. in tests that never populate a session.
	History *history.Store

	// Width is the viewport column width the visibility pass lays text
	// out against. Loop does not handle Resize messages itself (they go
	// to Handler), so the caller keeps this current.
	Width int

	// Visible holds the last computed VisibleCells, ready for the
	// Redrawer to consult.
	Visible []render.VisibleCell

	redrawPending bool
}

func NewLoop(bus *eventbus.Bus, redrawer Redrawer, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{Bus: bus, Redrawer: redrawer, logger: logger.With("component", "tui_loop"), Width: defaultViewportWidth}
	l.Timer = NewFrameTimer(bus, logger)
	l.Themes = NewRegistry()
	l.Cache = render.New()
	l.Assistant = render.NewAssistantLayoutCache()
	l.Visibility = render.NewVisibility(l.Cache, l.Assistant)
	l.AltScreen = NewAltScreenState(true)
	return l
}

const redrawTimerID = "redraw"

// Run drains messages until the bus closes or ctx is canceled,
// returning once an ExitRequest has been processed.
func (l *Loop) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		l.Bus.Close()
	}()
	defer close(done)

	for {
		msg, ok := l.Bus.Next()
		if !ok {
			return
		}

		switch m := msg.(type) {
		case eventbus.Redraw:
			l.scheduleRedraw()
		case eventbus.Timer:
			if m.ID == redrawTimerID {
				l.flushRedraw()
			} else if l.Handler != nil {
				l.Handler(msg)
			}
		case eventbus.KeyEvent:
			if m.Ctrl && m.Code == "t" {
				l.AltScreen.Toggle()
				l.scheduleRedraw()
				continue
			}
			if l.Handler != nil {
				l.Handler(msg)
			}
		case eventbus.ExitRequest:
			l.flushRedraw()
			if l.Handler != nil {
				l.Handler(msg)
			}
			return
		default:
			if l.Handler != nil {
				l.Handler(msg)
			}
		}
	}
}

func (l *Loop) scheduleRedraw() {
	if l.redrawPending {
		return
	}
	l.redrawPending = true
	l.Timer.Schedule(redrawTimerID, time.Now().Add(RedrawDebounce))
}

func (l *Loop) flushRedraw() {
	l.redrawPending = false
	l.Visible = l.computeVisible()
	if l.Redrawer == nil {
		return
	}
	if err := l.Redrawer.Redraw(); err != nil {
		l.logger.Warn("redraw failed", "error", err)
	}
}

// computeVisible runs the visibility pass (spec.md §4.5) over the
// session history, in document order. It reads the render/assistant
// layout caches but does not fill them; a record with nothing cached
// is accounted as a single blank row.
func (l *Loop) computeVisible() []render.VisibleCell {
	if l.History == nil {
		return nil
	}
	records := l.History.Snapshot()
	requests := make([]render.RenderRequest, len(records))
	for i, rec := range records {
		requests[i] = render.RenderRequest{ID: rec.HistoryID(), Kind: render.RequestAuto}
	}
	// Top is always 0 here: scrollback offset tracking belongs to the
	// terminal renderer the TUI package doesn't yet own, so this
	// exercises the visibility pass over the whole document rather
	// than a scrolled window.
	viewport := render.Viewport{Top: 0, Height: 1 << 20}
	return l.Visibility.Compute(viewport, requests, l.Width, l.Themes.Epoch, true)
}

// NotifyOnSIGTERM arranges for an eventbus.ExitRequest{Graceful: true}
// to be sent to bus when the process receives SIGTERM (spec.md §4.6).
// It returns a stop function that releases the signal subscription.
func NotifyOnSIGTERM(bus *eventbus.Bus) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-ch:
			bus.SendHigh(eventbus.ExitRequest{Graceful: true})
		case <-done:
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
