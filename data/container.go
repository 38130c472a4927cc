// Package data provides the thread-safe directory of users behind the HTTP
// layer and the bookkeeping the scheduler needs to persist their histories.
package data

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giygas/doselog/doselog"
	"github.com/giygas/doselog/doseparser/entities"
	"github.com/giygas/doselog/interfaces"
	"github.com/giygas/doselog/logging"
)

// Compile-time check to ensure Container implements UserDirectory
var _ interfaces.UserDirectory = (*Container)(nil)

// Container owns every user. All access to a user goes through WithUser or
// ReadUser, which serialize callers.
type Container struct {
	mu       sync.Mutex
	users    map[string]*doselog.User
	savedLen map[string]int
	options  []doselog.Option

	saving          atomic.Bool
	lastSaved       atomic.Value // time.Time
	serverStartTime atomic.Value // time.Time
}

// NewContainer creates an empty directory. opts are applied to every user it
// creates.
func NewContainer(opts ...doselog.Option) *Container {
	c := &Container{
		users:    make(map[string]*doselog.User),
		savedLen: make(map[string]int),
		options:  opts,
	}
	c.lastSaved.Store(time.Time{})
	c.serverStartTime.Store(time.Time{})
	return c
}

// WithUser runs fn with exclusive access to the named user, creating it if needed
func (c *Container) WithUser(name string, fn func(u *doselog.User) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.userLocked(name))
}

// ReadUser runs fn on an existing user without creating one
func (c *Container) ReadUser(name string, fn func(u *doselog.User) error) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.users[name]
	if !ok {
		return false, nil
	}
	return true, fn(u)
}

// Restore loads stored entries into a user; they count as already saved
func (c *Container) Restore(name string, entries []entities.DoseEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u := c.userLocked(name)
	u.Restore(entries)
	c.savedLen[name] = u.Len()
	logging.Debug("Restored dose history", "user", name, "entries", len(entries))
}

// Users returns user names in sorted order
func (c *Container) Users() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.users))
	for name := range c.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EntryCount is the number of entries across all users
func (c *Container) EntryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, u := range c.users {
		total += u.Len()
	}
	return total
}

// DirtySnapshot copies the histories that changed since they were last saved
func (c *Container) DirtySnapshot() map[string][]entities.DoseEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]entities.DoseEntry)
	for name, u := range c.users {
		if u.Len() != c.savedLen[name] {
			out[name] = u.History()
		}
	}
	return out
}

// MarkClean records that the first length entries of name are persisted
func (c *Container) MarkClean(name string, length int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.savedLen[name] = length
}

// DirtyCount is the number of users with unsaved entries
func (c *Container) DirtyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for name, u := range c.users {
		if u.Len() != c.savedLen[name] {
			n++
		}
	}
	return n
}

// BeginSave marks the start of a save. It returns false if one is running.
func (c *Container) BeginSave() bool {
	return c.saving.CompareAndSwap(false, true)
}

// EndSave marks the end of a save
func (c *Container) EndSave() {
	c.saving.Store(false)
}

// IsSaving returns true while a save is in progress
func (c *Container) IsSaving() bool {
	return c.saving.Load()
}

// SetLastSaved records the time of the last successful save
func (c *Container) SetLastSaved(t time.Time) {
	c.lastSaved.Store(t)
}

// GetLastSaved returns the time of the last successful save
func (c *Container) GetLastSaved() time.Time {
	if v, ok := c.lastSaved.Load().(time.Time); ok {
		return v
	}
	logging.Warn("Could not get the last saved value")
	return time.Time{}
}

// SetServerStartTime sets the server start time
func (c *Container) SetServerStartTime(startTime time.Time) {
	c.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (c *Container) GetServerStartTime() time.Time {
	if v, ok := c.serverStartTime.Load().(time.Time); ok {
		return v
	}
	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

func (c *Container) userLocked(name string) *doselog.User {
	u, ok := c.users[name]
	if !ok {
		u = doselog.NewUser(name, c.options...)
		c.users[name] = u
	}
	return u
}
