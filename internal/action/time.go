package action

import (
	"fmt"
	"strings"
	"time"
)

// naiveLayout is an ISO-8601 local date-time without an offset.
const naiveLayout = "2006-01-02T15:04:05"

const dateLayout = "2006-01-02"

// OffsetTime is an instant together with the literal ISO-8601 text it was
// read from. The literal is what gets sent to the calendar provider.
type OffsetTime struct {
	time.Time
	Literal string
}

// ParseOffsetTime parses an ISO-8601 timestamp. A timestamp without an
// offset is read as wall-clock time in loc.
func ParseOffsetTime(s string, loc *time.Location) (OffsetTime, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return OffsetTime{Time: fixed(t), Literal: s}, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(naiveLayout, s, loc)
	if err != nil {
		return OffsetTime{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return NewOffsetTime(t), nil
}

// NewOffsetTime returns t with its RFC 3339 rendering as the literal.
func NewOffsetTime(t time.Time) OffsetTime {
	t = fixed(t)
	return OffsetTime{Time: t, Literal: t.Format(time.RFC3339)}
}

// Shift returns the time d later, keeping the original offset.
func (o OffsetTime) Shift(d time.Duration) OffsetTime {
	return NewOffsetTime(o.Time.Add(d))
}

// Offset returns the offset of the literal in seconds east of UTC.
func (o OffsetTime) Offset() int {
	_, off := o.Zone()
	return off
}

func (o OffsetTime) String() string { return o.Literal }

// fixed pins t to its own offset so that arithmetic never picks up a
// different offset from a named zone.
func fixed(t time.Time) time.Time {
	_, off := t.Zone()
	return t.In(time.FixedZone("", off))
}

// Date is a calendar date with no time or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate accepts a plain date or a timestamp, in which case the date is
// the one written in the timestamp itself.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(naiveLayout, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("failed to parse date %q", s)
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Midnight returns 00:00 of the date in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}
