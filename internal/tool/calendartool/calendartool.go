// Package calendartool exposes the user's Google Calendar to the model.
package calendartool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"agenda/internal/tool"
)

const (
	DefaultUpcomingDays = 7
	MaxUpcomingDays     = 30
)

// boundFormat renders range bounds with millisecond precision.
const boundFormat = "2006-01-02T15:04:05.000Z07:00"

// EventLister lists a user's primary calendar events between two RFC 3339
// instants.
type EventLister interface {
	ListEvents(ctx context.Context, userID, timeMin, timeMax string) ([]*gcal.Event, error)
}

// Clock supplies the current time and the location day bounds are computed in.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

func (c Clock) today() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc)
}

// Register adds the three calendar tools to registry.
func Register(registry *tool.Registry, events EventLister, clock Clock) error {
	return registry.RegisterAll(
		&TodayEvents{events: events, clock: clock},
		&CalendarEvents{events: events, clock: clock},
		&UpcomingEvents{events: events, clock: clock},
	)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

func list(ctx context.Context, events EventLister, actor, timeMin, timeMax string) (*tool.Result, error) {
	items, err := events.ListEvents(ctx, actor, timeMin, timeMax)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*gcal.Event{}
	}

	out, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode events: %w", err)
	}
	return &tool.Result{
		Success: true,
		Output:  string(out),
		Data:    map[string]any{"count": len(items), "time_min": timeMin, "time_max": timeMax},
	}, nil
}

type TodayEvents struct {
	events EventLister
	clock  Clock
}

func (t *TodayEvents) Name() string { return "get_today_events" }

func (t *TodayEvents) Description() string {
	return "Get all calendar events for today"
}

func (t *TodayEvents) BestPractices() string { return "" }

func (t *TodayEvents) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []string{},
	}
}

func (t *TodayEvents) Execute(ctx context.Context, actor string, _ json.RawMessage) (*tool.Result, error) {
	today := t.clock.today()
	return list(ctx, t.events, actor, startOfDay(today).Format(boundFormat), endOfDay(today).Format(boundFormat))
}

type CalendarEvents struct {
	events EventLister
	clock  Clock
}

type calendarEventsParams struct {
	Date    string `json:"date"`
	TimeMin string `json:"timeMin"`
	TimeMax string `json:"timeMax"`
}

func (t *CalendarEvents) Name() string { return "get_calendar_events" }

func (t *CalendarEvents) Description() string {
	return "Get calendar events for a given day or period"
}

func (t *CalendarEvents) BestPractices() string {
	return `**Calendar tools**:
- Use get_today_events for questions about today.
- Pass dates to get_calendar_events as YYYY-MM-DD; timeMin and timeMax narrow the day to a time range.
- Use get_upcoming_events for "this week" or "next N days" questions (at most 30 days).`
}

func (t *CalendarEvents) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"date": map[string]any{
				"type":        "string",
				"description": "Date in ISO 8601 format (YYYY-MM-DD)",
			},
			"timeMin": map[string]any{
				"type":        "string",
				"description": "Start time in ISO 8601 format (optional)",
			},
			"timeMax": map[string]any{
				"type":        "string",
				"description": "End time in ISO 8601 format (optional)",
			},
		},
		"required": []string{"date"},
	}
}

func (t *CalendarEvents) Execute(ctx context.Context, actor string, params json.RawMessage) (*tool.Result, error) {
	var p calendarEventsParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if p.Date == "" {
		return nil, errors.New("date is required")
	}

	day, err := parseDay(p.Date, t.clock.today().Location())
	if err != nil {
		return nil, err
	}

	timeMin, timeMax := p.TimeMin, p.TimeMax
	if timeMin == "" {
		timeMin = startOfDay(day).Format(boundFormat)
	}
	if timeMax == "" {
		timeMax = endOfDay(day).Format(boundFormat)
	}
	return list(ctx, t.events, actor, timeMin, timeMax)
}

// parseDay accepts a calendar date or a full RFC 3339 timestamp.
func parseDay(s string, loc *time.Location) (time.Time, error) {
	if d, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return d, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.In(loc), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
}

type UpcomingEvents struct {
	events EventLister
	clock  Clock
}

type upcomingEventsParams struct {
	Days *float64 `json:"days"`
}

func (t *UpcomingEvents) Name() string { return "get_upcoming_events" }

func (t *UpcomingEvents) Description() string {
	return "Get upcoming events for a given number of days"
}

func (t *UpcomingEvents) BestPractices() string { return "" }

func (t *UpcomingEvents) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"days": map[string]any{
				"type":        "integer",
				"description": "Number of days starting today",
				"minimum":     1,
				"maximum":     MaxUpcomingDays,
			},
		},
		"required": []string{"days"},
	}
}

func (t *UpcomingEvents) Execute(ctx context.Context, actor string, params json.RawMessage) (*tool.Result, error) {
	var p upcomingEventsParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	days := DefaultUpcomingDays
	if p.Days != nil {
		days = clampDays(int(*p.Days))
	}

	today := t.clock.today()
	return list(ctx, t.events, actor,
		startOfDay(today).Format(boundFormat),
		endOfDay(today.AddDate(0, 0, days)).Format(boundFormat),
	)
}

func clampDays(days int) int {
	return min(max(days, 1), MaxUpcomingDays)
}
