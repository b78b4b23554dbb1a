package action

import (
	"encoding/json"
	"strings"
	"time"
)

// reply mirrors the three JSON shapes the completion service may return.
type reply struct {
	ActionType      string        `json:"action_type"`
	EventParams     []eventParams `json:"eventParams"`
	EventCompletion string        `json:"eventCompletion"`
	QueryDetails    *queryDetails `json:"query_details"`
}

type eventParams struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
	CalendarID  string `json:"calendarId"`
}

type queryDetails struct {
	Date       string `json:"date"`
	Title      string `json:"title"`
	Start      string `json:"start"`
	End        string `json:"end"`
	CalendarID string `json:"calendarId"`
}

// Decode parses a completion reply into an Action. Timestamps without an
// offset are read in loc. The text must already be free of code fences.
func Decode(text string, loc *time.Location) (Action, error) {
	var r reply
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return nil, MalformedJSON(text, err)
	}

	switch kind := Kind(strings.ToLower(strings.TrimSpace(r.ActionType))); kind {
	case "":
		return nil, MissingField("action_type")
	case KindCreate:
		return decodeCreate(r, loc)
	case KindView:
		q, err := decodeQuery(r.QueryDetails, loc)
		if err != nil {
			return nil, err
		}
		return ViewAction{Query: q}, nil
	case KindDelete:
		q, err := decodeQuery(r.QueryDetails, loc)
		if err != nil {
			return nil, err
		}
		// A calendar id alone would match every event of the day.
		if !q.HasCriteria() {
			return nil, MissingField("query_details.date|title|start|end")
		}
		return DeleteAction{Query: q}, nil
	default:
		return nil, UnsupportedActionType(r.ActionType)
	}
}

func decodeCreate(r reply, loc *time.Location) (Action, error) {
	if len(r.EventParams) == 0 {
		return nil, MissingField("eventParams")
	}
	p := r.EventParams[0]

	summary := strings.TrimSpace(p.Summary)
	if summary == "" {
		return nil, MissingField("eventParams[0].summary")
	}
	if strings.TrimSpace(p.Start) == "" {
		return nil, MissingField("eventParams[0].start")
	}
	start, err := ParseOffsetTime(p.Start, loc)
	if err != nil {
		return nil, DateParse("eventParams[0].start", p.Start, err)
	}

	a := CreateAction{
		Summary:     summary,
		Description: strings.TrimSpace(p.Description),
		Start:       start,
		CalendarID:  strings.TrimSpace(p.CalendarID),
		Completion:  strings.TrimSpace(r.EventCompletion),
	}
	if strings.TrimSpace(p.End) != "" {
		end, err := ParseOffsetTime(p.End, loc)
		if err != nil {
			return nil, DateParse("eventParams[0].end", p.End, err)
		}
		a.End = &end
	}
	if a.CalendarID == "" {
		a.CalendarID = DefaultCalendarID
	}
	if loc != nil {
		a.TimeZone = loc.String()
	}
	return a, nil
}

func decodeQuery(d *queryDetails, loc *time.Location) (EventQuery, error) {
	if d == nil {
		return EventQuery{}, MissingField("query_details")
	}

	q := EventQuery{
		Title:      strings.TrimSpace(d.Title),
		CalendarID: strings.TrimSpace(d.CalendarID),
	}
	if q.CalendarID == "" {
		q.CalendarID = DefaultCalendarID
	}

	if s := strings.TrimSpace(d.Date); s != "" {
		date, err := ParseDate(s)
		if err != nil {
			return EventQuery{}, DateParse("query_details.date", d.Date, err)
		}
		q.Date = &date
	}
	if s := strings.TrimSpace(d.Start); s != "" {
		start, err := ParseOffsetTime(s, loc)
		if err != nil {
			return EventQuery{}, DateParse("query_details.start", d.Start, err)
		}
		q.Start = &start
	}
	if s := strings.TrimSpace(d.End); s != "" {
		end, err := ParseOffsetTime(s, loc)
		if err != nil {
			return EventQuery{}, DateParse("query_details.end", d.End, err)
		}
		q.End = &end
	}

	if q.Start != nil && q.End != nil && q.End.Before(q.Start.Time) {
		return EventQuery{}, InvalidTimeRange(q.Start.Literal, q.End.Literal)
	}
	if q.Start != nil && q.End == nil && q.Date != nil {
		if loc == nil {
			loc = time.UTC
		}
		nextDay := time.Date(q.Date.Year, q.Date.Month, q.Date.Day+1, 0, 0, 0, 0, loc)
		if !q.Start.Before(nextDay) {
			return EventQuery{}, InvalidTimeRange(q.Start.Literal, q.Date.String())
		}
	}
	return q, nil
}
