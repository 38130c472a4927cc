// Package scheduler provides periodic persistence of dose histories and
// staleness monitoring for the doselog API. It restores stored histories on
// start, flushes dirty users to the history store on a gocron schedule, and
// performs a final flush on stop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/giygas/doselog/interfaces"
	"github.com/giygas/doselog/logging"
	"github.com/giygas/doselog/metrics"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// StaleAfterIntervals is how many missed flushes make the data stale
const StaleAfterIntervals = 3

const finalFlushTimeout = 30 * time.Second

// Scheduler persists the user directory into a history store
type Scheduler struct {
	directory interfaces.UserDirectory
	store     interfaces.HistoryStore
	interval  time.Duration
	scheduler *gocron.Scheduler
	stopOnce  sync.Once
}

// NewScheduler creates a scheduler flushing every intervalMinutes
func NewScheduler(directory interfaces.UserDirectory, store interfaces.HistoryStore, intervalMinutes int) *Scheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 5
	}
	return &Scheduler{
		directory: directory,
		store:     store,
		interval:  time.Duration(intervalMinutes) * time.Minute,
		scheduler: gocron.NewScheduler(time.Local),
	}
}

// Start restores stored histories and schedules periodic flushes and
// staleness checks
func (s *Scheduler) Start() error {
	// Initial load
	if err := s.loadAll(context.Background()); err != nil {
		logging.Error("Failed to perform initial history load", "error", err)
		return fmt.Errorf("initial history load failed: %w", err)
	}

	minutes := int(s.interval / time.Minute)
	_, err := s.scheduler.Every(minutes).Minutes().WaitForSchedule().Do(func() {
		if err := s.Flush(context.Background()); err != nil {
			logging.Error("Failed to flush dose histories", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule flushes", "error", err)
		return fmt.Errorf("failed to schedule flushes: %w", err)
	}

	_, err = s.scheduler.Every(1).Hour().WaitForSchedule().Do(s.checkStaleness)
	if err != nil {
		logging.Error("Failed to schedule staleness check", "error", err)
		return fmt.Errorf("failed to schedule staleness check: %w", err)
	}

	s.scheduler.StartAsync()
	logging.Info("History scheduler started", "interval", s.interval.String())

	return nil
}

// Stop stops the schedule and flushes whatever is still dirty
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.scheduler.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
		defer cancel()
		if err := s.Flush(ctx); err != nil {
			logging.Error("Final flush failed", "error", err)
			return
		}
		logging.Info("Final flush completed")
	})
}

// Flush saves every dirty user. A failed user stays dirty and is retried on
// the next flush; the others are still saved.
func (s *Scheduler) Flush(ctx context.Context) error {
	// Prevent concurrent saves
	if !s.directory.BeginSave() {
		logging.Info("Save already in progress, skipping...")
		return nil
	}
	defer s.directory.EndSave()

	start := time.Now()
	snapshot := s.directory.DirtySnapshot()
	metrics.UsersTracked.Set(float64(len(s.directory.Users())))

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		entries := snapshot[name]
		if err := s.store.Save(ctx, name, entries); err != nil {
			metrics.HistorySavesTotal.WithLabelValues("error").Inc()
			logging.Error("Failed to save dose history", "user", name, "error", err)
			errs = append(errs, fmt.Errorf("save %s: %w", name, err))
			continue
		}
		metrics.HistorySavesTotal.WithLabelValues("success").Inc()
		s.directory.MarkClean(name, len(entries))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	s.directory.SetLastSaved(time.Now())
	if len(names) > 0 {
		logging.Info("Dose histories saved", "users", len(names), "duration", time.Since(start).String())
	}
	return nil
}

// loadAll restores every stored user into the directory
func (s *Scheduler) loadAll(ctx context.Context) error {
	start := time.Now()

	users, err := s.store.Users(ctx)
	if err != nil {
		return fmt.Errorf("list stored users: %w", err)
	}

	entries := 0
	for _, name := range users {
		history, err := s.store.Load(ctx, name)
		if err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
		s.directory.Restore(name, history)
		entries += len(history)
	}

	s.directory.SetLastSaved(time.Now())
	metrics.UsersTracked.Set(float64(len(users)))
	logging.Info("Dose histories loaded", "users", len(users), "entries", entries, "duration", time.Since(start).String())
	return nil
}

// checkStaleness warns when dirty users have not been saved for several
// intervals
func (s *Scheduler) checkStaleness() {
	if IsStale(s.directory, s.interval) {
		logging.Warn("Dose histories have not been saved recently",
			"last_saved", s.directory.GetLastSaved().Format(time.RFC3339),
			"dirty_users", s.directory.DirtyCount(),
		)
	}
}

// IsStale reports whether users are dirty and the last successful save is
// older than StaleAfterIntervals intervals
func IsStale(directory interfaces.UserDirectory, interval time.Duration) bool {
	if directory.DirtyCount() == 0 {
		return false
	}
	return time.Since(directory.GetLastSaved()) > StaleAfterIntervals*interval
}
