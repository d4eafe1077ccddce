package outlook

import (
	"context"
	"time"

	abstractions "github.com/microsoft/kiota-abstractions-go"
	"github.com/microsoftgraph/msgraph-sdk-go/users"

	"github.com/theakshaypant/calbridge/internal/core"
)

// deltaPageSize bounds each delta page. Graph defaults lower; the
// larger page keeps cold syncs to a handful of round trips.
const deltaPageSize = "odata.maxpagesize=200"

func deltaHeaders() *abstractions.RequestHeaders {
	h := abstractions.NewRequestHeaders()
	h.Add("Prefer", `outlook.timezone="UTC"`)
	h.Add("Prefer", deltaPageSize)
	return h
}

// FullSync walks the calendarView delta stream from scratch for the
// window. The delta link from the final page becomes the cursor.
func (a *Adapter) FullSync(ctx context.Context, calendarID string, window core.TimeWindow) (core.SyncResult, error) {
	start := window.Start.UTC().Format(time.RFC3339)
	end := window.End.UTC().Format(time.RFC3339)

	builder := a.client.Me().Calendars().ByCalendarId(calendarID).CalendarView().Delta()
	cfg := &users.ItemCalendarsItemCalendarViewDeltaRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.ItemCalendarsItemCalendarViewDeltaRequestBuilderGetQueryParameters{
			StartDateTime: &start,
			EndDateTime:   &end,
		},
		Headers: deltaHeaders(),
	}

	res := core.SyncResult{Full: true}
	for {
		page, err := builder.GetAsDeltaGetResponse(ctx, cfg)
		if err != nil {
			return core.SyncResult{}, mapErr(err, core.ErrCalendarNotFound)
		}
		for _, item := range page.GetValue() {
			if isRemoved(item) {
				// A tombstone on a cold sync has nothing to remove.
				continue
			}
			res.Events = append(res.Events, fromGraph(item, core.Calendar{ID: calendarID}))
		}
		next := page.GetOdataNextLink()
		if next == nil || *next == "" {
			if dl := page.GetOdataDeltaLink(); dl != nil {
				res.Cursor = *dl
			}
			return res, nil
		}
		builder = builder.WithUrl(*next)
		cfg = &users.ItemCalendarsItemCalendarViewDeltaRequestBuilderGetRequestConfiguration{
			Headers: deltaHeaders(),
		}
	}
}

// IncrementalSync resumes the delta stream from a stored delta link.
// Tombstoned items become removals; Graph answers 410 when the link is
// too old, which surfaces as a cursor-expiry error.
func (a *Adapter) IncrementalSync(ctx context.Context, calendarID, cursor string) (core.SyncResult, error) {
	builder := a.client.Me().Calendars().ByCalendarId(calendarID).CalendarView().Delta().WithUrl(cursor)
	cfg := &users.ItemCalendarsItemCalendarViewDeltaRequestBuilderGetRequestConfiguration{
		Headers: deltaHeaders(),
	}

	var res core.SyncResult
	for {
		page, err := builder.GetAsDeltaGetResponse(ctx, cfg)
		if err != nil {
			return core.SyncResult{}, mapErr(err, core.ErrCalendarNotFound)
		}
		for _, item := range page.GetValue() {
			if isRemoved(item) {
				if id := item.GetId(); id != nil {
					res.Removed = append(res.Removed, *id)
				}
				continue
			}
			res.Events = append(res.Events, fromGraph(item, core.Calendar{ID: calendarID}))
		}
		next := page.GetOdataNextLink()
		if next == nil || *next == "" {
			if dl := page.GetOdataDeltaLink(); dl != nil {
				res.Cursor = *dl
			}
			return res, nil
		}
		builder = builder.WithUrl(*next)
	}
}
