// Package outlook adapts the Microsoft Graph calendar API to the
// canonical calendar contract. Incremental fetches ride Graph's
// calendarView delta links.
package outlook

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/cockroachdb/errors"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	msgraphcore "github.com/microsoftgraph/msgraph-sdk-go-core"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"

	"github.com/theakshaypant/calbridge/internal/core"
)

// TokenProvider hands out a currently-valid access token. Refresh
// stays with the token authority.
type TokenProvider interface {
	GetValidToken(ctx context.Context, p core.Provider) (string, error)
}

// tokenCredential bridges the token authority into the Azure SDK's
// TokenCredential shape so the Graph client can authenticate.
type tokenCredential struct {
	tokens TokenProvider
}

func (c tokenCredential) GetToken(ctx context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	access, err := c.tokens.GetValidToken(ctx, core.ProviderOutlook)
	if err != nil {
		return azcore.AccessToken{}, err
	}
	// The authority refreshes well before expiry; a short lease keeps
	// the SDK coming back instead of caching a stale token.
	return azcore.AccessToken{Token: access, ExpiresOn: time.Now().Add(time.Minute)}, nil
}

// Adapter talks to Microsoft Graph.
type Adapter struct {
	client *msgraphsdk.GraphServiceClient
}

var _ core.Adapter = (*Adapter)(nil)

// New builds the adapter over a Graph client authenticated through the
// token authority.
func New(tokens TokenProvider) (*Adapter, error) {
	client, err := msgraphsdk.NewGraphServiceClientWithCredentials(
		tokenCredential{tokens: tokens},
		[]string{"https://graph.microsoft.com/.default"},
	)
	if err != nil {
		return nil, errors.Wrap(err, "init graph client")
	}
	return &Adapter{client: client}, nil
}

func (a *Adapter) Provider() core.Provider { return core.ProviderOutlook }
func (a *Adapter) Name() string            { return core.ProviderOutlook.DisplayName() }

// ListCalendars fetches the user's calendars, following continuation
// links until the list is complete. Graph pages /me/calendars, so a
// single Get would miss anything past the first page.
func (a *Adapter) ListCalendars(ctx context.Context) ([]core.Calendar, error) {
	page, err := a.client.Me().Calendars().Get(ctx, nil)
	if err != nil {
		return nil, mapErr(err, core.ErrCalendarNotFound)
	}

	it, err := msgraphcore.NewPageIterator[models.Calendarable](
		page,
		a.client.GetAdapter(),
		models.CreateCalendarCollectionResponseFromDiscriminatorValue,
	)
	if err != nil {
		return nil, errors.Wrap(err, "create calendar page iterator")
	}

	var out []core.Calendar
	err = it.Iterate(ctx, func(cal models.Calendarable) bool {
		if c, ok := fromGraphCalendar(cal); ok {
			out = append(out, c)
		}
		return true
	})
	if err != nil {
		return nil, mapErr(err, core.ErrCalendarNotFound)
	}
	return out, nil
}

// CreateEvent posts a new event to the calendar.
func (a *Adapter) CreateEvent(ctx context.Context, draft core.EventDraft) (core.Event, error) {
	body := models.NewEvent()
	body.SetSubject(&draft.Title)
	if draft.Description != "" {
		body.SetBody(textBody(draft.Description))
	}
	if draft.Location != "" {
		loc := models.NewLocation()
		loc.SetDisplayName(&draft.Location)
		body.SetLocation(loc)
	}
	if draft.AllDay() {
		if err := setAllDayTiming(body, draft.StartDate, draft.EndDate); err != nil {
			return core.Event{}, err
		}
	} else {
		setTimedTiming(body, draft.Start, draft.End)
	}

	created, err := a.client.Me().Calendars().ByCalendarId(draft.CalendarID).Events().Post(ctx, body, nil)
	if err != nil {
		return core.Event{}, mapErr(err, core.ErrCalendarNotFound)
	}
	return fromGraph(created, core.Calendar{ID: draft.CalendarID}), nil
}

// UpdateEvent patches only the fields the caller changed. Timing (and
// with it the all-day flag) is sent only when the patch touches start
// or end, so a title edit cannot flip an all-day event into a timed
// one.
func (a *Adapter) UpdateEvent(ctx context.Context, patch core.EventPatch) (core.Event, error) {
	body := models.NewEvent()
	if patch.Title != nil {
		body.SetSubject(patch.Title)
	}
	if patch.Description != nil {
		body.SetBody(textBody(*patch.Description))
	}
	if patch.Location != nil {
		loc := models.NewLocation()
		loc.SetDisplayName(patch.Location)
		body.SetLocation(loc)
	}
	if patch.TimingChanged() {
		if patch.AllDay() {
			if err := setAllDayTiming(body, *patch.StartDate, *patch.EndDate); err != nil {
				return core.Event{}, err
			}
		} else {
			setTimedTiming(body, *patch.Start, *patch.End)
		}
	}

	updated, err := a.client.Me().Events().ByEventId(patch.EventID).Patch(ctx, body, nil)
	if err != nil {
		return core.Event{}, mapErr(err, core.ErrEventNotFound)
	}
	return fromGraph(updated, core.Calendar{ID: patch.CalendarID}), nil
}

// DeleteEvent removes an event.
func (a *Adapter) DeleteEvent(ctx context.Context, _, eventID string) error {
	if err := a.client.Me().Events().ByEventId(eventID).Delete(ctx, nil); err != nil {
		return mapErr(err, core.ErrEventNotFound)
	}
	return nil
}

// mapErr classifies a Graph error into the shared taxonomy. notFound
// picks what a 404 means at this call site.
func mapErr(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Mark(err, core.ErrCancelled)
	}
	var oe *odataerrors.ODataError
	if errors.As(err, &oe) {
		code := oe.ResponseStatusCode
		if code == 404 {
			return errors.Mark(err, notFound)
		}
		return core.MarkStatus(err, code)
	}
	return errors.Mark(err, core.ErrNetwork)
}
