package calendar

import (
	gcal "google.golang.org/api/calendar/v3"
)

// Event is the provider-neutral view of a calendar event.
type Event struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Link        string `json:"link,omitempty"`
	CalendarID  string `json:"calendarId"`
	AllDay      bool   `json:"allDay,omitempty"`
}

// CalendarSummary describes one entry of the user's calendar list.
type CalendarSummary struct {
	ID         string `json:"id"`
	Summary    string `json:"summary"`
	TimeZone   string `json:"timeZone,omitempty"`
	Primary    bool   `json:"primary,omitempty"`
	AccessRole string `json:"accessRole,omitempty"`
}

// eventFromAPI converts an API event. All-day events only carry a date.
func eventFromAPI(calendarID string, e *gcal.Event) Event {
	ev := Event{
		ID:          e.Id,
		Summary:     e.Summary,
		Description: e.Description,
		Link:        e.HtmlLink,
		CalendarID:  calendarID,
	}
	if e.Start != nil {
		if e.Start.DateTime != "" {
			ev.Start = e.Start.DateTime
		} else {
			ev.Start = e.Start.Date
			ev.AllDay = true
		}
	}
	if e.End != nil {
		if e.End.DateTime != "" {
			ev.End = e.End.DateTime
		} else {
			ev.End = e.End.Date
		}
	}
	return ev
}

func calendarFromAPI(e *gcal.CalendarListEntry) CalendarSummary {
	return CalendarSummary{
		ID:         e.Id,
		Summary:    e.Summary,
		TimeZone:   e.TimeZone,
		Primary:    e.Primary,
		AccessRole: e.AccessRole,
	}
}
