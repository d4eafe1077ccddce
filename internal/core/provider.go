package core

import (
	"context"
	"time"
)

// TimeWindow bounds a full sync.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Default look-back/look-ahead for a full sync.
const (
	DefaultLookBack  = 30 * 24 * time.Hour
	DefaultLookAhead = 90 * 24 * time.Hour
)

// DefaultWindow returns the standard sync window around now.
func DefaultWindow(now time.Time) TimeWindow {
	return TimeWindow{
		Start: now.Add(-DefaultLookBack),
		End:   now.Add(DefaultLookAhead),
	}
}

// SyncResult is what an adapter returns from a sync call, full or
// incremental.
type SyncResult struct {
	// Full is true when Events is the complete window contents and
	// the cache slice for this calendar should be replaced wholesale.
	Full bool
	// Events to add or update (upserts on incremental sync).
	Events []Event
	// Native ids of events the provider marked removed/cancelled.
	// Only populated on incremental sync.
	Removed []string
	// Cursor to persist for the next incremental fetch. Only valid
	// once the last page has been consumed; adapters never return a
	// partial-page cursor.
	Cursor string
}

// Adapter is the contract both provider backends implement. The two
// implementations are structurally independent; nothing is shared but
// this interface.
type Adapter interface {
	// Provider returns which backend this adapter talks to.
	Provider() Provider
	// Name returns a human-readable label (e.g. "Google Calendar").
	Name() string
	// ListCalendars fetches the provider's calendar list, following
	// continuation tokens transparently.
	ListCalendars(ctx context.Context) ([]Calendar, error)
	// FullSync fetches every event in the window and the cursor to
	// resume from.
	FullSync(ctx context.Context, calendarID string, window TimeWindow) (SyncResult, error)
	// IncrementalSync fetches changes since cursor. Returns an error
	// marked ErrCursorExpired when the provider signals the cursor is
	// no longer usable.
	IncrementalSync(ctx context.Context, calendarID, cursor string) (SyncResult, error)
	CreateEvent(ctx context.Context, draft EventDraft) (Event, error)
	UpdateEvent(ctx context.Context, patch EventPatch) (Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}
