// Package action holds the structured actions produced from a free-text prompt.
package action

import "time"

// Kind identifies the variant of an Action.
type Kind string

const (
	KindCreate Kind = "create"
	KindView   Kind = "view"
	KindDelete Kind = "delete"
)

// DefaultCalendarID is used whenever a reply omits calendarId.
const DefaultCalendarID = "primary"

// DefaultDuration is the length given to a created event that has no end.
const DefaultDuration = time.Hour

// Action is one of CreateAction, ViewAction or DeleteAction.
type Action interface {
	Kind() Kind
	isAction()
}

// CreateAction describes an event to insert.
type CreateAction struct {
	Summary     string
	Description string
	Start       OffsetTime
	End         *OffsetTime // nil until Normalize fills it in
	CalendarID  string
	// TimeZone is the IANA zone name sent alongside the start and end literals.
	TimeZone string
	// Completion is the confirmation text returned by the completion service.
	Completion string
}

func (CreateAction) Kind() Kind { return KindCreate }
func (CreateAction) isAction()  {}

// Normalize fills in the calendar and end defaults and checks that the
// event ends after it starts.
func (a CreateAction) Normalize() (CreateAction, error) {
	if a.CalendarID == "" {
		a.CalendarID = DefaultCalendarID
	}
	if a.End == nil {
		end := a.Start.Shift(DefaultDuration)
		a.End = &end
	}
	if !a.End.After(a.Start.Time) {
		return a, InvalidTimeRange(a.Start.Literal, a.End.Literal)
	}
	return a, nil
}

// ViewAction lists the events matching Query.
type ViewAction struct {
	Query EventQuery
}

func (ViewAction) Kind() Kind { return KindView }
func (ViewAction) isAction()  {}

// DeleteAction removes the first event matching Query.
type DeleteAction struct {
	Query EventQuery
}

func (DeleteAction) Kind() Kind { return KindDelete }
func (DeleteAction) isAction()  {}

// EventQuery is a partial description of the events a view or delete
// refers to. Every field is optional.
type EventQuery struct {
	Date       *Date
	Title      string
	Start      *OffsetTime
	End        *OffsetTime
	CalendarID string
}

// HasCriteria reports whether the query narrows the search beyond the
// calendar it targets.
func (q EventQuery) HasCriteria() bool {
	return q.Date != nil || q.Title != "" || q.Start != nil || q.End != nil
}

// Calendar returns the calendar the query targets.
func (q EventQuery) Calendar() string {
	if q.CalendarID == "" {
		return DefaultCalendarID
	}
	return q.CalendarID
}
