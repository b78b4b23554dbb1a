// Package calendar adapts structured actions to the Google Calendar API.
package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Client is a wrapper around the Google Calendar API service.
type Client struct {
	service *gcal.Service
}

// NewClient creates a new Google Calendar API client using the provided HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &Client{service: service}, nil
}

// ListOptions narrows an event listing.
type ListOptions struct {
	TimeMin    time.Time
	TimeMax    time.Time
	Query      string
	MaxResults int64
}

// ListEvents retrieves events from a calendar within the specified time window,
// ordered by start time.
// Important: Sets SingleEvents = true to expand recurring events.
func (c *Client) ListEvents(ctx context.Context, calendarID string, opts ListOptions) ([]*gcal.Event, error) {
	call := c.service.Events.List(calendarID).
		TimeMin(opts.TimeMin.UTC().Format(time.RFC3339Nano)).
		TimeMax(opts.TimeMax.UTC().Format(time.RFC3339Nano)).
		SingleEvents(true). // Expand recurring events
		OrderBy("startTime")
	if opts.MaxResults > 0 {
		call = call.MaxResults(opts.MaxResults)
	}
	if opts.Query != "" {
		call = call.Q(opts.Query)
	}

	eventsList, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return eventsList.Items, nil
}

// InsertEvent inserts a new event into a calendar and returns the stored event.
// Important: Sets sendUpdates="none" to prevent notifications.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, event *gcal.Event) (*gcal.Event, error) {
	created, err := c.service.Events.Insert(calendarID, event).
		SendUpdates("none"). // Disable notifications
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	return created, nil
}

// DeleteEvent deletes an event from a calendar.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.service.Events.Delete(calendarID, eventID).
		SendUpdates("none"). // Disable notifications
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	return nil
}

// ListCalendars lists the calendars on the user's calendar list.
func (c *Client) ListCalendars(ctx context.Context) ([]*gcal.CalendarListEntry, error) {
	calendarList, err := c.service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	return calendarList.Items, nil
}
