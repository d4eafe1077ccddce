package outlook

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/microsoftgraph/msgraph-sdk-go/models"

	"github.com/theakshaypant/calbridge/internal/core"
	"github.com/theakshaypant/calbridge/internal/util"
)

// graphTime is the wire layout for Graph date-times; the fractional
// variant is what Graph actually sends back.
const (
	graphTime     = "2006-01-02T15:04:05"
	graphTimeFrac = "2006-01-02T15:04:05.0000000"
)

const utcZone = "UTC"

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBool(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}

// isRemoved reports whether a delta item is a tombstone. Removed items
// arrive with only an id and an @removed annotation.
func isRemoved(item models.Eventable) bool {
	if item == nil {
		return false
	}
	_, ok := item.GetAdditionalData()["@removed"]
	return ok
}

func textBody(content string) models.ItemBodyable {
	body := models.NewItemBody()
	ct := models.TEXT_BODYTYPE
	body.SetContentType(&ct)
	body.SetContent(&content)
	return body
}

func graphDateTime(t time.Time) models.DateTimeTimeZoneable {
	dt := models.NewDateTimeTimeZone()
	s := t.UTC().Format(graphTime)
	z := utcZone
	dt.SetDateTime(&s)
	dt.SetTimeZone(&z)
	return dt
}

func setTimedTiming(event models.Eventable, start, end time.Time) {
	allDay := false
	event.SetIsAllDay(&allDay)
	event.SetStart(graphDateTime(start))
	event.SetEnd(graphDateTime(end))
}

// setAllDayTiming writes an all-day span. Graph wants midnight to
// midnight with the end on the day after the event; canonical dates
// are inclusive.
func setAllDayTiming(event models.Eventable, startDate, endDate string) error {
	start, err := core.ParseDate(startDate)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "start date"), core.ErrValidation)
	}
	end, err := core.ParseDate(endDate)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "end date"), core.ErrValidation)
	}
	allDay := true
	event.SetIsAllDay(&allDay)
	event.SetStart(graphDateTime(start))
	event.SetEnd(graphDateTime(end.AddDate(0, 0, 1)))
	return nil
}

// parseGraphTime reads a Graph date-time. Times come back UTC because
// every request carries the Prefer outlook.timezone header.
func parseGraphTime(dt models.DateTimeTimeZoneable) time.Time {
	if dt == nil {
		return time.Time{}
	}
	raw := dt.GetDateTime()
	if raw == nil {
		return time.Time{}
	}
	for _, layout := range []string{graphTimeFrac, graphTime} {
		if t, err := time.Parse(layout, *raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// fromGraphCalendar converts a wire calendar into the canonical shape.
// Items without an id are unusable downstream and are skipped.
func fromGraphCalendar(cal models.Calendarable) (core.Calendar, bool) {
	if cal == nil {
		return core.Calendar{}, false
	}
	c := core.Calendar{
		ID:      derefStr(cal.GetId()),
		Name:    derefStr(cal.GetName()),
		Primary: derefBool(cal.GetIsDefaultCalendar()),
	}
	if color := cal.GetHexColor(); color != nil {
		c.Color = *color
	}
	if c.ID == "" {
		return core.Calendar{}, false
	}
	return c, true
}

// fromGraph converts a wire event into the canonical shape. HTML
// bodies are flattened to terminal text; all-day events recover their
// inclusive calendar dates from the midnight span.
func fromGraph(item models.Eventable, cal core.Calendar) core.Event {
	e := core.Event{
		Provider: core.ProviderOutlook,
		Calendar: cal,
		ID:       derefStr(item.GetId()),
		Title:    derefStr(item.GetSubject()),
		URL:      derefStr(item.GetWebLink()),
	}

	if body := item.GetBody(); body != nil {
		content := derefStr(body.GetContent())
		if ct := body.GetContentType(); ct != nil && *ct == models.HTML_BODYTYPE {
			content = util.HTMLToText(content, 0)
		}
		e.Description = content
	}
	if loc := item.GetLocation(); loc != nil {
		e.Location = derefStr(loc.GetDisplayName())
	}

	e.Start = parseGraphTime(item.GetStart())
	e.End = parseGraphTime(item.GetEnd())

	if derefBool(item.GetIsAllDay()) {
		e.IsAllDay = true
		if !e.Start.IsZero() {
			e.StartDate = e.Start.Format(core.DateOnly)
		}
		if !e.End.IsZero() {
			e.EndDate = e.End.AddDate(0, 0, -1).Format(core.DateOnly)
		}
	}
	return e
}
