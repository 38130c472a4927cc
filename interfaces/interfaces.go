// Package interfaces defines the core abstractions shared between the
// directory, storage, scheduler, health and HTTP layers.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/doselog/doselog"
	"github.com/giygas/doselog/doseparser/entities"
)

// HistoryStore persists dose histories. Save replaces everything stored for
// the user with entries.
type HistoryStore interface {
	Save(ctx context.Context, user string, entries []entities.DoseEntry) error
	Load(ctx context.Context, user string) ([]entities.DoseEntry, error)
	Users(ctx context.Context) ([]string, error)
	Close() error
}

// UserDirectory gives serialized access to users and tracks which histories
// still have to be persisted
type UserDirectory interface {
	// WithUser runs fn while holding exclusive access to the named user,
	// creating it if needed
	WithUser(name string, fn func(u *doselog.User) error) error
	// ReadUser runs fn on an existing user; ok is false when it is unknown
	ReadUser(name string, fn func(u *doselog.User) error) (ok bool, err error)
	Restore(name string, entries []entities.DoseEntry)
	Users() []string
	EntryCount() int

	// Persistence bookkeeping
	DirtySnapshot() map[string][]entities.DoseEntry
	MarkClean(name string, length int)
	DirtyCount() int
	BeginSave() bool
	EndSave()
	IsSaving() bool
	SetLastSaved(t time.Time)
	GetLastSaved() time.Time
	SetServerStartTime(t time.Time)
	GetServerStartTime() time.Time
}

// Scheduler manages periodic persistence
type Scheduler interface {
	Start() error
	Stop()
	Flush(ctx context.Context) error
}

// DoseValidator checks user input before it reaches the domain
type DoseValidator interface {
	ValidateUserName(name string) error
	ValidateDoseText(text string) error
	ValidateSubstance(substance string) error
	ValidateAmount(amount float64) error
	ValidateYear(input string) (int, error)
	ValidateDate(input string) (time.Time, error)
	ValidateLast(input string) (int, error)
	ValidateBatchSize(n int) error
}

// HTTPHandler defines the endpoint handlers mounted by the server
type HTTPHandler interface {
	LogDoses(w http.ResponseWriter, r *http.Request)
	ServeDoses(w http.ResponseWriter, r *http.Request)
	ServeStats(w http.ResponseWriter, r *http.Request)
	ServeSummary(w http.ResponseWriter, r *http.Request)
	ServeRoutes(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker reports service health
type HealthChecker interface {
	HealthCheck() (status string, details map[string]any, httpStatus int)
}
