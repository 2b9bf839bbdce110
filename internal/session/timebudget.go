package session

import (
	"fmt"
	"sort"
	"time"
)

// TimeBudget is an optional per-session deadline with a geometrically
// shrinking nudge schedule, assembled into each turn's status items.
type TimeBudget struct {
	Deadline time.Time
}

// nudgeBand is one entry in the shrinking-interval schedule: once the
// remaining time drops at or below Threshold, Guidance is appropriate.
type nudgeBand struct {
	Threshold time.Duration
	Guidance  string
}

// nudgeSchedule mirrors spec.md §4.2: 5m/2m/1m/30s/15s/10s/5s/2s bands with
// escalating urgency guidance.
var nudgeSchedule = []nudgeBand{
	{5 * time.Minute, "past 50% of the time budget"},
	{2 * time.Minute, "time is getting tight"},
	{1 * time.Minute, "time is getting tight"},
	{30 * time.Second, "time tight, wrap up soon"},
	{15 * time.Second, "time tight, wrap up soon"},
	{10 * time.Second, "nearly up"},
	{5 * time.Second, "nearly up"},
	{2 * time.Second, "nearly up"},
}

func init() {
	sort.Slice(nudgeSchedule, func(i, j int) bool {
		return nudgeSchedule[i].Threshold > nudgeSchedule[j].Threshold
	})
}

// Nudge returns the advisory text for the current remaining duration, and
// false if no deadline is configured or more than the widest band remains.
func (b TimeBudget) Nudge(now time.Time) (text string, ok bool) {
	if b.Deadline.IsZero() {
		return "", false
	}
	remaining := b.Deadline.Sub(now)
	if remaining <= 0 {
		return "time budget exceeded, finish immediately", true
	}

	var chosen *nudgeBand
	for i := range nudgeSchedule {
		band := nudgeSchedule[i]
		if remaining <= band.Threshold {
			chosen = &band
		}
	}
	if chosen == nil {
		return "", false
	}
	return fmt.Sprintf("%s (%s remaining)", chosen.Guidance, remaining.Round(time.Second)), true
}
