package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/codecore/codecore/internal/eventbus"
)

// nudgePollSpec polls far more often than the tightest nudge band (2s) so a
// deadline crossing a band threshold is announced within one tick.
const nudgePollSpec = "@every 1s"

// NudgeScheduler drives the time-budget nudge schedule (spec.md §4.2) off a
// cron entry rather than an ad hoc ticker, so the same scheduling primitive
// used elsewhere in the pack for periodic work backs this one too.
type NudgeScheduler struct {
	cron *cron.Cron
	sess *Session
	bus  *eventbus.Bus

	lastText string
}

// NewNudgeScheduler constructs a scheduler for sess that posts
// eventbus.Timer events carrying the nudge text onto bus whenever the
// advisory text changes.
func NewNudgeScheduler(sess *Session, bus *eventbus.Bus, logger *slog.Logger) *NudgeScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&slogPrintfer{logger})))
	return &NudgeScheduler{cron: c, sess: sess, bus: bus}
}

// Start registers the poll entry and begins running it in the background.
func (n *NudgeScheduler) Start() error {
	_, err := n.cron.AddFunc(nudgePollSpec, n.poll)
	if err != nil {
		return err
	}
	n.cron.Start()
	return nil
}

// Stop halts the underlying cron scheduler, waiting for the in-flight run
// (if any) to finish.
func (n *NudgeScheduler) Stop() {
	<-n.cron.Stop().Done()
}

func (n *NudgeScheduler) poll() {
	text, ok := n.sess.Nudge(time.Now())
	if !ok || text == n.lastText {
		return
	}
	n.lastText = text
	n.bus.SendHigh(eventbus.Timer{ID: "time_budget_nudge: " + text})
}

// slogPrintfer adapts a *slog.Logger to the Printf-style interface
// cron.VerbosePrintfLogger expects.
type slogPrintfer struct{ logger *slog.Logger }

func (w *slogPrintfer) Printf(format string, args ...any) {
	w.logger.Debug(fmt.Sprintf(format, args...))
}
