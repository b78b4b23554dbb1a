// Package ics exports found events as an iCalendar document.
package ics

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/beekhof/calendar-assistant/internal/calendar"
)

const productID = "-//Calendar Assistant//EN"

// Encode writes events to w as a VCALENDAR. now stamps every VEVENT.
// Events whose start or end cannot be parsed are skipped.
func Encode(w io.Writer, events []calendar.Event, now time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, ev := range events {
		vevent, err := toVEvent(ev, now)
		if err != nil {
			continue
		}
		cal.Children = append(cal.Children, vevent)
	}

	// An empty VCALENDAR is not valid iCalendar.
	if len(cal.Children) == 0 {
		return fmt.Errorf("no exportable events")
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode iCalendar: %w", err)
	}
	return nil
}

func toVEvent(ev calendar.Event, now time.Time) (*ical.Component, error) {
	vevent := ical.NewComponent(ical.CompEvent)

	uid := ev.ID
	if uid == "" {
		uid = fmt.Sprintf("%s@calendar-assistant", now.UTC().Format("20060102T150405.000000000"))
	}
	vevent.Props.SetText(ical.PropUID, uid)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())

	if ev.Summary != "" {
		vevent.Props.SetText(ical.PropSummary, ev.Summary)
	}
	if ev.Description != "" {
		vevent.Props.SetText(ical.PropDescription, ev.Description)
	}
	if ev.Link != "" {
		vevent.Props.SetText(ical.PropURL, ev.Link)
	}

	if err := setTime(vevent, ical.PropDateTimeStart, ev.Start, ev.AllDay); err != nil {
		return nil, err
	}
	if ev.End != "" {
		if err := setTime(vevent, ical.PropDateTimeEnd, ev.End, ev.AllDay); err != nil {
			return nil, err
		}
	}
	return vevent, nil
}

func setTime(vevent *ical.Component, name, value string, allDay bool) error {
	if allDay {
		d, err := time.Parse("2006-01-02", value)
		if err != nil {
			return fmt.Errorf("failed to parse %s date %q: %w", name, value, err)
		}
		prop := ical.NewProp(name)
		prop.SetDate(d)
		vevent.Props.Set(prop)
		return nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return fmt.Errorf("failed to parse %s time %q: %w", name, value, err)
	}
	vevent.Props.SetDateTime(name, t.UTC())
	return nil
}
