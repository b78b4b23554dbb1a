// Package timewindow resolves a partial event query into absolute UTC bounds.
package timewindow

import (
	"fmt"
	"strings"
	"time"

	"github.com/beekhof/calendar-assistant/internal/action"
)

// endOfDayNanos puts the end of a day at 23:59:59.999999.
const endOfDayNanos = 999999000

// Window is an inclusive pair of UTC instants.
type Window struct {
	Min time.Time
	Max time.Time
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.Min.Format(time.RFC3339Nano), w.Max.Format(time.RFC3339Nano))
}

// LoadLocation loads an IANA zone by name. Unlike time.LoadLocation it
// rejects the empty name instead of returning UTC.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("timezone is required")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// StartOfDay returns local 00:00:00 of d in loc, as UTC.
func StartOfDay(d action.Date, loc *time.Location) time.Time {
	return d.Midnight(loc).UTC()
}

// EndOfDay returns local 23:59:59.999999 of d in loc, as UTC.
func EndOfDay(d action.Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 23, 59, 59, endOfDayNanos, loc).UTC()
}

// Day returns the whole local day d in loc.
func Day(d action.Date, loc *time.Location) Window {
	return Window{Min: StartOfDay(d, loc), Max: EndOfDay(d, loc)}
}

// Resolve turns q into a window. It never fails; the first rule that
// applies wins:
//
//  1. start and end: both instants as written
//  2. start and date: from start to the end of date
//  3. start only: from start to the end of start's local day
//  4. date only: the whole of date
//  5. nothing: the whole of today at now
//
// Days are always measured on the wall clock of loc. Min never exceeds
// Max: a start after the end it is paired with yields the empty window
// [start, start].
func Resolve(q action.EventQuery, loc *time.Location, now time.Time) Window {
	if loc == nil {
		loc = time.UTC
	}
	switch {
	case q.Start != nil && q.End != nil:
		return bounded(q.Start.UTC(), q.End.UTC())
	case q.Start != nil && q.Date != nil:
		return bounded(q.Start.UTC(), EndOfDay(*q.Date, loc))
	case q.Start != nil:
		return bounded(q.Start.UTC(), EndOfDay(action.DateOf(q.Start.In(loc)), loc))
	case q.Date != nil:
		return Day(*q.Date, loc)
	default:
		return Day(action.DateOf(now.In(loc)), loc)
	}
}

func bounded(lo, hi time.Time) Window {
	if hi.Before(lo) {
		hi = lo
	}
	return Window{Min: lo, Max: hi}
}
