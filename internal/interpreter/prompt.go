package interpreter

import (
	"fmt"
	"time"
)

// promptContext is everything the instruction block is built from.
type promptContext struct {
	prompt   string
	location *time.Location
	now      time.Time // already in location
}

// offset returns the UTC offset in effect at now, e.g. "-07:00".
func (pc promptContext) offset() string {
	return pc.now.Format("-07:00")
}

// instruction renders the full single-message request for the completion service.
func (pc promptContext) instruction() string {
	offset := pc.offset()
	return fmt.Sprintf(`You are a calendar assistant. Given the user's input, decide whether they want to create a new event, view existing events or delete an event.

Today's date is %[1]s and the current time is %[2]s in timezone %[4]s (UTC offset %[3]s).

When interpreting dates and times:
- Resolve relative dates like "tomorrow" or "next week" against today's date.
- Use the current year (%[5]d) unless the user names a year.
- Never schedule events in the past.
- When the user gives a clock time such as "9 AM", use exactly that wall-clock time (09:00:00). Do not shift it.
- Write every timestamp with the UTC offset that %[4]s observes on that date. A daylight saving change between today and the event must not move the wall-clock time.

To create an event, return:
{
  "action_type": "create",
  "eventParams": [
    {
      "summary": "Event title",
      "description": "Event details",
      "start": "YYYY-MM-DDTHH:MM:SS%[3]s",
      "end": "YYYY-MM-DDTHH:MM:SS%[3]s",
      "calendarId": "primary"
    }
  ],
  "eventCompletion": "A short confirmation of the event"
}

To view events, return (include only the fields the user mentioned):
{
  "action_type": "view",
  "query_details": {
    "date": "YYYY-MM-DD",
    "title": "title of the event",
    "start": "YYYY-MM-DDTHH:MM:SS%[3]s",
    "end": "YYYY-MM-DDTHH:MM:SS%[3]s",
    "calendarId": "primary"
  }
}

To delete an event, return the same shape with "action_type": "delete". At least one of date, title, start or end must be included. A calendarId on its own is not enough.

Respond with raw JSON only. Do not wrap it in markdown code fences.

User input: %[6]s`,
		pc.now.Format("2006-01-02"),
		pc.now.Format("15:04:05"),
		offset,
		pc.location.String(),
		pc.now.Year(),
		pc.prompt,
	)
}
