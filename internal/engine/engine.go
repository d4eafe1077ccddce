// Package engine implements the per-provider sync loop: calendar
// listing, full and cursor-incremental event fetches, reconciliation
// into the canonical event cache, and create/update/delete passthrough.
// One Engine instance exists per connected provider; instances share
// the cache but own disjoint partitions of it, so they may run
// concurrently with respect to each other.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/theakshaypant/calbridge/internal/core"
	"github.com/theakshaypant/calbridge/internal/notify"
	"github.com/theakshaypant/calbridge/internal/retry"
	"github.com/theakshaypant/calbridge/internal/settings"
)

// manualCooldown is the minimum spacing between user-triggered
// refreshes. A request inside the window is a no-op with a notice,
// never queued.
const manualCooldown = 30 * time.Second

// Observer is called after each RefreshAll, exactly once per
// invocation, whether or not individual calendars failed.
type Observer func()

// Engine drives sync for one provider. Calendars are processed
// sequentially within an engine to keep reconciliation deterministic.
type Engine struct {
	adapter  core.Adapter
	cache    *core.EventCache
	settings *settings.Store
	notifier notify.Notifier
	logger   *slog.Logger
	policy   retry.Policy

	mu         sync.Mutex
	observers  []Observer
	calendars  []core.Calendar
	lastManual time.Time

	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithNotifier sets the user-notice sink.
func WithNotifier(n notify.Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithRetryPolicy overrides the backoff schedule for provider calls.
func WithRetryPolicy(p retry.Policy) Option { return func(e *Engine) { e.policy = p } }

// WithClock overrides the time source. Tests use this to step the
// manual-refresh cool-down.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// New builds an engine over an adapter. The cache and settings store
// are shared with the rest of the application; the engine only touches
// its own provider's partition and cursor keys.
func New(adapter core.Adapter, cache *core.EventCache, store *settings.Store, opts ...Option) *Engine {
	e := &Engine{
		adapter:  adapter,
		cache:    cache,
		settings: store,
		notifier: notify.Discard{},
		logger:   slog.Default(),
		policy:   retry.DefaultPolicy(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine", "provider", adapter.Provider())
	e.policy = e.policy.WithLogger(e.logger)
	return e
}

// Provider returns the backend this engine syncs.
func (e *Engine) Provider() core.Provider { return e.adapter.Provider() }

// RegisterObserver adds a data-changed observer. Observers run on the
// goroutine that called RefreshAll.
func (e *Engine) RegisterObserver(fn Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

func (e *Engine) notifyObservers() {
	e.mu.Lock()
	obs := make([]Observer, len(e.observers))
	copy(obs, e.observers)
	e.mu.Unlock()
	for _, fn := range obs {
		fn()
	}
}

// ListCalendars returns the provider's calendars, fetching on first
// use and serving the cached list afterwards.
func (e *Engine) ListCalendars(ctx context.Context) ([]core.Calendar, error) {
	e.mu.Lock()
	cached := e.calendars
	e.mu.Unlock()
	if cached != nil {
		out := make([]core.Calendar, len(cached))
		copy(out, cached)
		return out, nil
	}
	return e.ReloadCalendars(ctx)
}

// ReloadCalendars refetches the calendar list, replacing the cached
// copy.
func (e *Engine) ReloadCalendars(ctx context.Context) ([]core.Calendar, error) {
	cals, err := retry.DoValue(ctx, e.policy, "list calendars", func(ctx context.Context) ([]core.Calendar, error) {
		return e.adapter.ListCalendars(ctx)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list %s calendars", e.Provider())
	}
	e.mu.Lock()
	e.calendars = cals
	e.mu.Unlock()
	out := make([]core.Calendar, len(cals))
	copy(out, cals)
	return out, nil
}

// FetchEvents syncs one calendar into the cache. With no stored cursor
// it performs a full-window sync and stores the cursor returned with
// the final page; with a cursor it fetches the delta since then. A
// cursor-expiry signal discards the cursor and falls back to a full
// sync, at most once per call.
func (e *Engine) FetchEvents(ctx context.Context, calendarID string) error {
	if err := core.ValidateCalendarID(e.Provider(), calendarID); err != nil {
		return err
	}
	return e.fetch(ctx, calendarID, true)
}

func (e *Engine) fetch(ctx context.Context, calendarID string, allowRecovery bool) error {
	p := e.Provider()
	cursor := e.settings.Cursor(p, calendarID)

	var res core.SyncResult
	var err error
	if cursor == "" {
		window := core.DefaultWindow(e.now())
		res, err = retry.DoValue(ctx, e.policy, "full sync", func(ctx context.Context) (core.SyncResult, error) {
			return e.adapter.FullSync(ctx, calendarID, window)
		})
	} else {
		res, err = retry.DoValue(ctx, e.policy, "incremental sync", func(ctx context.Context) (core.SyncResult, error) {
			return e.adapter.IncrementalSync(ctx, calendarID, cursor)
		})
	}

	if err != nil {
		if errors.Is(err, core.ErrCursorExpired) && allowRecovery {
			e.logger.Info("sync cursor expired, falling back to full sync", "calendar", calendarID)
			if cerr := e.settings.SetCursor(p, calendarID, ""); cerr != nil {
				return errors.Wrap(cerr, "clear expired cursor")
			}
			// The cursor is gone, so the recursive call takes the
			// full-sync branch; recovery cannot loop.
			return e.fetch(ctx, calendarID, false)
		}
		return errors.Wrapf(err, "sync calendar %s", calendarID)
	}

	if res.Full {
		e.cache.ReplaceCalendar(p, calendarID, res.Events)
	} else {
		e.cache.Apply(p, calendarID, res.Events, res.Removed)
	}
	if res.Cursor != "" {
		if err := e.settings.SetCursor(p, calendarID, res.Cursor); err != nil {
			return errors.Wrap(err, "store sync cursor")
		}
	}
	return nil
}

// RefreshAll syncs every enabled calendar sequentially. A failure on
// one calendar is logged, surfaced as a notice, and skipped; the rest
// still sync. Observers are notified exactly once per invocation, even
// when some calendars failed. Context cancellation is the only thing
// that aborts the loop.
func (e *Engine) RefreshAll(ctx context.Context) error {
	ids, err := e.enabledCalendarIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return errors.Mark(ctx.Err(), core.ErrCancelled)
		}
		if err := e.fetch(ctx, id, true); err != nil {
			e.logger.Warn("calendar sync failed", "calendar", id, "error", err)
			e.notifier.Notify(core.UserMessage(e.Provider(), err))
			continue
		}
	}

	e.notifyObservers()
	return nil
}

// enabledCalendarIDs returns the persisted selection, defaulting to
// every calendar when the user never narrowed it.
func (e *Engine) enabledCalendarIDs(ctx context.Context) ([]string, error) {
	ids := e.settings.EnabledCalendars(e.Provider())
	if len(ids) > 0 {
		return ids, nil
	}
	cals, err := e.ListCalendars(ctx)
	if err != nil {
		return nil, err
	}
	ids = make([]string, 0, len(cals))
	for _, c := range cals {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// ManualRefresh is the user-triggered refresh, rate-limited to one per
// cool-down window. Inside the window it does nothing but post a
// please-wait notice.
func (e *Engine) ManualRefresh(ctx context.Context) error {
	e.mu.Lock()
	now := e.now()
	if wait := manualCooldown - now.Sub(e.lastManual); wait > 0 {
		e.mu.Unlock()
		e.notifier.Notify("Refreshed recently. Please wait a few seconds and try again.")
		return nil
	}
	e.lastManual = now
	e.mu.Unlock()

	return e.RefreshAll(ctx)
}

// CreateEvent validates and creates an event, then refreshes so the
// cache reflects the mutation.
func (e *Engine) CreateEvent(ctx context.Context, draft core.EventDraft) (core.Event, error) {
	if err := core.ValidateDraft(e.Provider(), draft); err != nil {
		return core.Event{}, err
	}
	created, err := retry.DoValue(ctx, e.policy, "create event", func(ctx context.Context) (core.Event, error) {
		return e.adapter.CreateEvent(ctx, draft)
	})
	if err != nil {
		return core.Event{}, errors.Wrap(err, "create event")
	}
	if err := e.RefreshAll(ctx); err != nil {
		return created, err
	}
	return created, nil
}

// UpdateEvent validates and applies a partial update, then refreshes.
// Timing semantics live in the adapters: all-day status is re-derived
// only when the patch touches start or end.
func (e *Engine) UpdateEvent(ctx context.Context, patch core.EventPatch) (core.Event, error) {
	if err := core.ValidatePatch(e.Provider(), patch); err != nil {
		return core.Event{}, err
	}
	updated, err := retry.DoValue(ctx, e.policy, "update event", func(ctx context.Context) (core.Event, error) {
		return e.adapter.UpdateEvent(ctx, patch)
	})
	if err != nil {
		return core.Event{}, errors.Wrap(err, "update event")
	}
	if err := e.RefreshAll(ctx); err != nil {
		return updated, err
	}
	return updated, nil
}

// DeleteEvent validates and deletes an event, then refreshes.
func (e *Engine) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := core.ValidateCalendarID(e.Provider(), calendarID); err != nil {
		return err
	}
	if err := core.ValidateEventID(e.Provider(), eventID); err != nil {
		return err
	}
	err := retry.Do(ctx, e.policy, "delete event", func(ctx context.Context) error {
		return e.adapter.DeleteEvent(ctx, calendarID, eventID)
	})
	if err != nil {
		return errors.Wrap(err, "delete event")
	}
	return e.RefreshAll(ctx)
}

// Forget clears every trace of the provider from the cache and the
// cursor store. Called on disconnect.
func (e *Engine) Forget() error {
	e.cache.DropProvider(e.Provider())
	e.mu.Lock()
	e.calendars = nil
	e.mu.Unlock()
	return e.settings.ClearCursors(e.Provider())
}
