// Package google adapts the Google Calendar API to the canonical
// calendar contract: calendar listing, full-window and sync-token
// incremental fetches, and event CRUD.
package google

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/theakshaypant/calbridge/internal/core"
)

// TokenProvider hands out a currently-valid access token. The token
// authority owns refresh; the adapter never sees refresh tokens.
type TokenProvider interface {
	GetValidToken(ctx context.Context, p core.Provider) (string, error)
}

// tokenSource bridges the token authority into the oauth2.TokenSource
// shape the Google client wants. Every call goes back to the authority
// so refreshes stay single-flight there.
type tokenSource struct {
	ctx    context.Context
	tokens TokenProvider
}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	access, err := ts.tokens.GetValidToken(ts.ctx, core.ProviderGoogle)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: access, TokenType: "Bearer"}, nil
}

// Adapter talks to Google Calendar.
type Adapter struct {
	service *calendar.Service
}

var _ core.Adapter = (*Adapter)(nil)

// New builds the adapter. Extra client options come after the token
// source, so tests can redirect the endpoint.
func New(ctx context.Context, tokens TokenProvider, extra ...option.ClientOption) (*Adapter, error) {
	opts := append([]option.ClientOption{
		option.WithTokenSource(tokenSource{ctx: ctx, tokens: tokens}),
	}, extra...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "init google calendar service")
	}
	return &Adapter{service: svc}, nil
}

func (a *Adapter) Provider() core.Provider { return core.ProviderGoogle }
func (a *Adapter) Name() string            { return core.ProviderGoogle.DisplayName() }

// ListCalendars pages through the user's calendar list.
func (a *Adapter) ListCalendars(ctx context.Context) ([]core.Calendar, error) {
	var out []core.Calendar
	pageToken := ""
	for {
		req := a.service.CalendarList.List().Context(ctx)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		page, err := req.Do()
		if err != nil {
			return nil, mapErr(err, core.ErrCalendarNotFound)
		}
		for _, item := range page.Items {
			out = append(out, core.Calendar{
				ID:      item.Id,
				Name:    item.Summary,
				Color:   item.BackgroundColor,
				Primary: item.Primary,
			})
		}
		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return out, nil
}

// FullSync fetches every event in the window, following page tokens,
// and returns the sync token Google hands back with the final page.
// OrderBy cannot be used here: Google omits nextSyncToken when the
// listing is ordered.
func (a *Adapter) FullSync(ctx context.Context, calendarID string, window core.TimeWindow) (core.SyncResult, error) {
	cal := core.Calendar{ID: calendarID}

	res := core.SyncResult{Full: true}
	pageToken := ""
	for {
		req := a.service.Events.List(calendarID).
			SingleEvents(true).
			ShowDeleted(false).
			TimeMin(window.Start.Format(time.RFC3339)).
			TimeMax(window.End.Format(time.RFC3339)).
			Context(ctx)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		page, err := req.Do()
		if err != nil {
			return core.SyncResult{}, mapErr(err, core.ErrCalendarNotFound)
		}
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			res.Events = append(res.Events, fromGoogle(item, cal))
		}
		if page.NextPageToken == "" {
			res.Cursor = page.NextSyncToken
			return res, nil
		}
		pageToken = page.NextPageToken
	}
}

// IncrementalSync fetches changes since the sync token. Cancelled items
// become removals; everything else is an upsert. A 410 from Google
// means the token is too old and surfaces as a cursor-expiry error.
func (a *Adapter) IncrementalSync(ctx context.Context, calendarID, cursor string) (core.SyncResult, error) {
	cal := core.Calendar{ID: calendarID}

	var res core.SyncResult
	pageToken := ""
	for {
		req := a.service.Events.List(calendarID).
			SyncToken(cursor).
			Context(ctx)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		page, err := req.Do()
		if err != nil {
			return core.SyncResult{}, mapErr(err, core.ErrCalendarNotFound)
		}
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				res.Removed = append(res.Removed, item.Id)
				continue
			}
			res.Events = append(res.Events, fromGoogle(item, cal))
		}
		if page.NextPageToken == "" {
			res.Cursor = page.NextSyncToken
			return res, nil
		}
		pageToken = page.NextPageToken
	}
}

// CreateEvent inserts an event, all-day or timed per the draft.
func (a *Adapter) CreateEvent(ctx context.Context, draft core.EventDraft) (core.Event, error) {
	body := &calendar.Event{
		Summary:     draft.Title,
		Description: draft.Description,
		Location:    draft.Location,
	}
	if draft.AllDay() {
		start, end, err := allDayRange(draft.StartDate, draft.EndDate)
		if err != nil {
			return core.Event{}, err
		}
		body.Start = start
		body.End = end
	} else {
		body.Start = &calendar.EventDateTime{DateTime: draft.Start.Format(time.RFC3339)}
		body.End = &calendar.EventDateTime{DateTime: draft.End.Format(time.RFC3339)}
	}

	created, err := a.service.Events.Insert(draft.CalendarID, body).Context(ctx).Do()
	if err != nil {
		return core.Event{}, mapErr(err, core.ErrCalendarNotFound)
	}
	return fromGoogle(created, core.Calendar{ID: draft.CalendarID}), nil
}

// UpdateEvent applies a partial update through the patch endpoint, so
// untouched fields keep their values. Timing is only sent when the
// patch changes it, which keeps an unrelated edit from flipping an
// all-day event into a timed one.
func (a *Adapter) UpdateEvent(ctx context.Context, patch core.EventPatch) (core.Event, error) {
	body := &calendar.Event{}
	if patch.Title != nil {
		body.Summary = *patch.Title
		body.ForceSendFields = append(body.ForceSendFields, "Summary")
	}
	if patch.Description != nil {
		body.Description = *patch.Description
		body.ForceSendFields = append(body.ForceSendFields, "Description")
	}
	if patch.Location != nil {
		body.Location = *patch.Location
		body.ForceSendFields = append(body.ForceSendFields, "Location")
	}
	if patch.TimingChanged() {
		if patch.AllDay() {
			start, end, err := allDayRange(*patch.StartDate, *patch.EndDate)
			if err != nil {
				return core.Event{}, err
			}
			body.Start = start
			body.End = end
		} else {
			body.Start = &calendar.EventDateTime{DateTime: patch.Start.Format(time.RFC3339)}
			body.End = &calendar.EventDateTime{DateTime: patch.End.Format(time.RFC3339)}
		}
		// Switching between date and dateTime needs the stale field
		// cleared on the wire.
		body.Start.ForceSendFields = []string{"Date", "DateTime"}
		body.End.ForceSendFields = []string{"Date", "DateTime"}
	}

	updated, err := a.service.Events.Patch(patch.CalendarID, patch.EventID, body).Context(ctx).Do()
	if err != nil {
		return core.Event{}, mapErr(err, core.ErrEventNotFound)
	}
	return fromGoogle(updated, core.Calendar{ID: patch.CalendarID}), nil
}

// DeleteEvent removes an event.
func (a *Adapter) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := a.service.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return mapErr(err, core.ErrEventNotFound)
	}
	return nil
}

// mapErr classifies a Google client error into the shared taxonomy.
// notFound picks what a 404 means at this call site (missing calendar
// vs missing event).
func mapErr(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Mark(err, core.ErrCancelled)
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		if ge.Code == 404 {
			return errors.Mark(err, notFound)
		}
		return core.MarkStatus(err, ge.Code)
	}
	// No HTTP response at all: transport failure.
	return errors.Mark(err, core.ErrNetwork)
}
