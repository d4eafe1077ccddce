package core

import (
	"sort"
	"sync"
)

// EventCache is the in-memory canonical event store. It is owned and
// mutated only by the sync engines; readers get sorted copies, never a
// reference into the map.
type EventCache struct {
	mu     sync.RWMutex
	events map[EventKey]Event
}

// NewEventCache returns an empty cache.
func NewEventCache() *EventCache {
	return &EventCache{events: make(map[EventKey]Event)}
}

// ReplaceCalendar drops everything cached for (provider, calendar) and
// installs events in its place. Used after a full sync.
func (c *EventCache) ReplaceCalendar(p Provider, calendarID string, events []Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.events {
		if k.Provider == p && k.CalendarID == calendarID {
			delete(c.events, k)
		}
	}
	for _, e := range events {
		c.events[e.Key()] = e
	}
}

// Apply merges an incremental delta: upserts first, removals second,
// so an id present in both lists ends up removed.
func (c *EventCache) Apply(p Provider, calendarID string, upserts []Event, removed []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range upserts {
		c.events[e.Key()] = e
	}
	for _, id := range removed {
		delete(c.events, EventKey{Provider: p, CalendarID: calendarID, EventID: id})
	}
}

// DropProvider clears every cached event for a provider. Used on
// disconnect.
func (c *EventCache) DropProvider(p Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.events {
		if k.Provider == p {
			delete(c.events, k)
		}
	}
}

// Get returns a single event by key.
func (c *EventCache) Get(k EventKey) (Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.events[k]
	return e, ok
}

// Len returns the number of cached events.
func (c *EventCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

// Snapshot returns a copy of every cached event, sorted by start time
// then key for a stable order.
func (c *EventCache) Snapshot() []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Event, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e)
	}
	sortEvents(out)
	return out
}

// EventsIn returns cached events overlapping the window, sorted.
func (c *EventCache) EventsIn(w TimeWindow) []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Event
	for _, e := range c.events {
		if e.Start.Before(w.End) && e.End.After(w.Start) {
			out = append(out, e)
		}
	}
	sortEvents(out)
	return out
}

func sortEvents(events []Event) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].Key().String() < events[j].Key().String()
	})
}
