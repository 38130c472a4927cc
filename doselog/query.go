package doselog

import (
	"slices"
	"time"

	"github.com/giygas/doselog/doseparser/entities"
)

// Query is a working view over a user's history. Filters return a new Query
// and never modify the receiver or the history.
//
// Only, FromYear and FromDateRange select from the full history; Via and Last
// narrow the current view. A zero or freshly started Query has an empty view.
type Query struct {
	history []entities.DoseEntry
	view    []entities.DoseEntry
	now     func() time.Time
}

// Query starts a chain with an empty view
func (u *User) Query() Query {
	return Query{history: u.entries[:len(u.entries):len(u.entries)], now: u.now}
}

// All starts a chain whose view is the whole history
func (u *User) All() Query {
	q := u.Query()
	q.view = q.history
	return q
}

// Only starts a chain with the entries for the given substances
func (u *User) Only(substances ...string) Query {
	return u.Query().Only(substances...)
}

// FromYear starts a chain with the entries logged in year
func (u *User) FromYear(year int) Query {
	return u.Query().FromYear(year)
}

// FromDateRange starts a chain with the entries logged between start and end
func (u *User) FromDateRange(start, end time.Time) Query {
	return u.Query().FromDateRange(start, end)
}

// Only selects, from the full history, entries whose substance is listed
func (q Query) Only(substances ...string) Query {
	return q.with(filter(q.history, func(e entities.DoseEntry) bool {
		return slices.Contains(substances, e.Substance)
	}))
}

// Via keeps the entries of the current view whose route is listed
func (q Query) Via(routes ...string) Query {
	return q.with(filter(q.view, func(e entities.DoseEntry) bool {
		return slices.Contains(routes, e.Route)
	}))
}

// Last keeps the n most recently logged entries of the current view
func (q Query) Last(n int) Query {
	if n <= 0 {
		return q.with(nil)
	}
	if n >= len(q.view) {
		return q.with(q.view)
	}
	return q.with(q.view[len(q.view)-n:])
}

// FromYear selects, from the full history, entries logged in year. Prior
// narrowing is discarded.
func (q Query) FromYear(year int) Query {
	return q.with(filter(q.history, func(e entities.DoseEntry) bool {
		return e.Timestamp.Year() == year
	}))
}

// FromDateRange selects, from the full history, entries with
// start <= timestamp <= end.
func (q Query) FromDateRange(start, end time.Time) Query {
	return q.with(filter(q.history, func(e entities.DoseEntry) bool {
		return !e.Timestamp.Before(start) && !e.Timestamp.After(end)
	}))
}

// Entries returns a copy of the view
func (q Query) Entries() []entities.DoseEntry {
	out := make([]entities.DoseEntry, len(q.view))
	copy(out, q.view)
	return out
}

// Len is the size of the view
func (q Query) Len() int {
	return len(q.view)
}

func (q Query) with(view []entities.DoseEntry) Query {
	q.view = view
	return q
}

func filter(entries []entities.DoseEntry, keep func(entities.DoseEntry) bool) []entities.DoseEntry {
	var out []entities.DoseEntry
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
