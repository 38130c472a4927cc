// Package doselog keeps a user's dose history and answers filtered statistical
// queries over it.
//
// A User is not safe for concurrent use; callers sharing one across
// goroutines must serialize access (see data.Container).
package doselog

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/giygas/doselog/doseparser"
	"github.com/giygas/doselog/doseparser/entities"
	"github.com/giygas/doselog/logging"
	"github.com/giygas/doselog/routes"
)

// User owns an append-only dose history
type User struct {
	Name string

	entries  []entities.DoseEntry
	registry *routes.Registry
	parser   *doseparser.Parser
	volume   doseparser.VolumePolicy
	now      func() time.Time
}

// Option configures a User
type Option func(*User)

// WithClock replaces time.Now for timestamp capture and elapsed-time reads
func WithClock(now func() time.Time) Option {
	return func(u *User) { u.now = now }
}

// WithRegistry replaces the default route registry
func WithRegistry(r *routes.Registry) Option {
	return func(u *User) { u.registry = r }
}

// WithVolumePolicy sets how millilitre doses are stored
func WithVolumePolicy(p doseparser.VolumePolicy) Option {
	return func(u *User) { u.volume = p }
}

// NewUser creates a user with an empty history
func NewUser(name string, opts ...Option) *User {
	u := &User{
		Name:     name,
		registry: routes.Default,
		volume:   doseparser.VolumeAsMass,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	u.parser = doseparser.NewParser(u.registry)
	return u
}

// LogResult is the outcome of logging one dose string. Exactly one of Entry
// (when Err is nil) or Err is meaningful.
type LogResult struct {
	Input string
	Entry entities.DoseEntry
	Err   error
}

// OK reports whether the dose was appended
func (r LogResult) OK() bool {
	return r.Err == nil
}

// Kind is the failure category, empty on success
func (r LogResult) Kind() doseparser.ErrorKind {
	if r.Err == nil {
		return ""
	}
	return doseparser.KindOf(r.Err)
}

// LogText parses text and appends the resulting entry. Failures are returned
// in the result and leave the history untouched.
func (u *User) LogText(text string) (result LogResult) {
	result.Input = text

	defer func() {
		if r := recover(); r != nil {
			result.Entry = entities.DoseEntry{}
			result.Err = &doseparser.ParseError{
				Kind:  doseparser.KindUnexpected,
				Input: text,
				Err:   fmt.Errorf("unexpected error logging dose: %v", r),
			}
		}
	}()

	parsed, err := u.parser.Parse(text)
	if err != nil {
		result.Err = err
		return result
	}

	route, ok := u.registry.Resolve(parsed.Token)
	if !ok {
		result.Err = &doseparser.ParseError{
			Kind:  doseparser.KindUnknownRoute,
			Input: text,
			Token: parsed.Token,
			Err:   doseparser.ErrUnknownRoute,
		}
		return result
	}

	amount, err := doseparser.ToMilligrams(parsed.Amount, parsed.Unit, u.volume)
	if err != nil {
		return LogResult{Input: text, Err: err}
	}
	if !validAmount(amount) {
		result.Err = &doseparser.ParseError{
			Kind:  doseparser.KindInvalidAmount,
			Input: text,
			Token: fmt.Sprintf("%g%s", parsed.Amount, parsed.Unit),
			Err:   errors.New("dose amount must be positive"),
		}
		return result
	}
	if parsed.Unit == doseparser.Millilitre {
		logging.Warn("Volume dose stored as milligrams without conversion",
			"user", u.Name, "substance", parsed.Substance, "amount", parsed.Amount)
	}

	result.Entry = u.appendEntry(parsed.Substance, amount, route)
	return result
}

// LogBatch logs every string, reporting failures and carrying on
func (u *User) LogBatch(texts ...string) []LogResult {
	results := make([]LogResult, 0, len(texts))
	for _, text := range texts {
		res := u.LogText(text)
		if !res.OK() {
			if res.Kind() == doseparser.KindUnexpected {
				logging.Error("Unexpected error logging dose", "user", u.Name, "input", text, "error", res.Err)
			} else {
				logging.Warn("Error parsing dose string", "user", u.Name, "input", text, "kind", res.Kind(), "error", res.Err)
			}
		}
		results = append(results, res)
	}
	return results
}

// Log appends a dose given explicitly in milligrams. route may be an alias or
// a canonical route name; anything else is recorded as "other". An amount
// that is not a positive finite number is logged as a warning and skipped,
// with ok false.
func (u *User) Log(substance string, amount float64, route string) (entry entities.DoseEntry, ok bool) {
	if !validAmount(amount) {
		logging.Warn("Dose amount must be positive, skipping", "user", u.Name, "substance", substance, "amount", amount)
		return entities.DoseEntry{}, false
	}
	resolved, ok := u.registry.Resolve(route)
	if !ok && routes.IsRoute(route) {
		resolved, ok = routes.Route(route), true
	}
	if !ok {
		logging.Warn("Unknown route, defaulting to other", "user", u.Name, "route", route)
		resolved = routes.Other
	}
	return u.appendEntry(doseparser.NormalizeSubstance(substance), amount, resolved), true
}

func validAmount(amount float64) bool {
	return amount > 0 && !math.IsInf(amount, 1)
}

// Restore appends previously stored entries, keeping their timestamps
func (u *User) Restore(entries []entities.DoseEntry) {
	u.entries = append(u.entries, entries...)
}

// History returns a copy of every entry in log order
func (u *User) History() []entities.DoseEntry {
	out := make([]entities.DoseEntry, len(u.entries))
	copy(out, u.entries)
	return out
}

// Len is the number of logged entries
func (u *User) Len() int {
	return len(u.entries)
}

func (u *User) appendEntry(substance string, amount float64, route routes.Route) entities.DoseEntry {
	entry := entities.DoseEntry{
		Substance: substance,
		Amount:    amount,
		Route:     string(route),
		Unit:      string(doseparser.StorageUnit),
		Timestamp: u.now(),
	}
	u.entries = append(u.entries, entry)
	return entry
}
