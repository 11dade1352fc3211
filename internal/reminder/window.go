package reminder

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pathakanu/eventMemo/internal/model"
)

// Precision is the resolution due times are stored and compared at.
const Precision = time.Second

// Window is the range around "now" in which an unsent reminder is eligible for dispatch.
//
// Lookback > 0 with Lookahead = 0 is the catch-up policy: anything that became due within
// Lookback and is still unsent fires, nothing fires early. Lookback = 0 with Lookahead > 0
// tolerates early delivery by up to Lookahead.
//
// A reminder whose due time never falls inside a window it is checked against (the process
// was down longer than Lookback) is never dispatched. That is an accepted limit; Widen the
// first window after a restart to recover part of the gap.
type Window struct {
	Lookback  time.Duration
	Lookahead time.Duration
}

// Validate rejects negative durations and the degenerate empty window.
func (w Window) Validate() error {
	if w.Lookback < 0 || w.Lookahead < 0 {
		return fmt.Errorf("window durations must not be negative (lookback=%s, lookahead=%s)", w.Lookback, w.Lookahead)
	}
	if w.Lookback == 0 && w.Lookahead == 0 {
		return errors.New("window is empty: lookback and lookahead are both zero")
	}
	return nil
}

// Bounds returns the inclusive [from, to] range for now, in UTC.
func (w Window) Bounds(now time.Time) (from, to time.Time) {
	now = Normalize(now)
	return now.Add(-w.Lookback), now.Add(w.Lookahead)
}

// Contains reports whether dueAt falls inside the window evaluated at now.
func (w Window) Contains(now, dueAt time.Time) bool {
	from, to := w.Bounds(now)
	dueAt = dueAt.UTC()
	return !dueAt.Before(from) && !dueAt.After(to)
}

// Eligible reports whether r should be dispatched at now.
func (w Window) Eligible(now time.Time, r model.Reminder) bool {
	return !r.Sent && w.Contains(now, r.DueAt)
}

// Select keeps the eligible reminders, ordered by due time.
func (w Window) Select(now time.Time, reminders []model.Reminder) []model.Reminder {
	due := make([]model.Reminder, 0, len(reminders))
	for _, r := range reminders {
		if w.Eligible(now, r) {
			due = append(due, r)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].DueAt.Before(due[j].DueAt)
	})
	return due
}

// Widen returns a copy whose lookback is at least lookback.
func (w Window) Widen(lookback time.Duration) Window {
	if lookback > w.Lookback {
		w.Lookback = lookback
	}
	return w
}

func (w Window) String() string {
	return fmt.Sprintf("[-%s, +%s]", w.Lookback, w.Lookahead)
}

// Normalize converts t to UTC at storage precision.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(Precision)
}
