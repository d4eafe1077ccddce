package google

import (
	"time"

	"github.com/cockroachdb/errors"
	"google.golang.org/api/calendar/v3"

	"github.com/theakshaypant/calbridge/internal/core"
)

// Google's all-day end date is exclusive (the day after the event
// ends). Canonical events carry the inclusive end date, so the
// boundary shifts by one day in each direction.

// allDayRange translates inclusive canonical dates into the wire
// shape.
func allDayRange(startDate, endDate string) (*calendar.EventDateTime, *calendar.EventDateTime, error) {
	end, err := core.ParseDate(endDate)
	if err != nil {
		return nil, nil, errors.Mark(errors.Wrap(err, "end date"), core.ErrValidation)
	}
	return &calendar.EventDateTime{Date: startDate},
		&calendar.EventDateTime{Date: end.AddDate(0, 0, 1).Format(core.DateOnly)},
		nil
}

// inclusiveEndDate shifts a wire end date back to the last day the
// event actually covers.
func inclusiveEndDate(exclusive string) string {
	end, err := core.ParseDate(exclusive)
	if err != nil {
		return exclusive
	}
	return end.AddDate(0, 0, -1).Format(core.DateOnly)
}

// fromGoogle converts a wire event into the canonical shape. All-day
// events keep their plain calendar dates; Start/End get midnight-UTC
// stand-ins so window math still works.
func fromGoogle(item *calendar.Event, cal core.Calendar) core.Event {
	e := core.Event{
		Provider:    core.ProviderGoogle,
		Calendar:    cal,
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
		URL:         item.HtmlLink,
	}
	if item.ColorId != "" {
		e.Color = item.ColorId
	}

	if item.Start == nil || item.End == nil {
		return e
	}
	if item.Start.Date != "" {
		e.IsAllDay = true
		e.StartDate = item.Start.Date
		e.EndDate = inclusiveEndDate(item.End.Date)
		if start, err := core.ParseDate(item.Start.Date); err == nil {
			e.Start = start
		}
		if end, err := core.ParseDate(item.End.Date); err == nil {
			e.End = end
		}
		return e
	}

	if start, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
		e.Start = start
	}
	if end, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
		e.End = end
	}
	return e
}
