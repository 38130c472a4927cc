package data

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/giygas/doselog/doselog"
	"github.com/giygas/doselog/doseparser/entities"
	"github.com/giygas/doselog/logging"
)

func TestNewContainer(t *testing.T) {
	logging.InitLogger("")

	c := NewContainer()
	if c == nil {
		t.Fatal("NewContainer returned nil")
	}
	if c.IsSaving() {
		t.Error("NewContainer should not be saving")
	}
	if !c.GetLastSaved().IsZero() {
		t.Error("NewContainer should have zero lastSaved time")
	}
	if len(c.Users()) != 0 {
		t.Error("NewContainer should have no users")
	}
	if c.EntryCount() != 0 {
		t.Error("NewContainer should have no entries")
	}
}

func TestWithUserCreatesAndReuses(t *testing.T) {
	c := NewContainer()

	err := c.WithUser("sernyl", func(u *doselog.User) error {
		u.LogText("20mg methamphetamine oral")
		return nil
	})
	if err != nil {
		t.Fatalf("WithUser returned error: %v", err)
	}

	var length int
	_ = c.WithUser("sernyl", func(u *doselog.User) error {
		length = u.Len()
		return nil
	})
	if length != 1 {
		t.Errorf("Expected the same user to be reused with 1 entry, got %d", length)
	}

	wantErr := fmt.Errorf("boom")
	if err := c.WithUser("sernyl", func(*doselog.User) error { return wantErr }); err != wantErr {
		t.Errorf("Expected callback error to propagate, got %v", err)
	}
}

func TestReadUserDoesNotCreate(t *testing.T) {
	c := NewContainer()
	ok, err := c.ReadUser("ghost", func(*doselog.User) error {
		t.Error("Callback should not run for an unknown user")
		return nil
	})
	if ok || err != nil {
		t.Errorf("Expected (false, nil), got (%v, %v)", ok, err)
	}
	if len(c.Users()) != 0 {
		t.Error("ReadUser should not create users")
	}
}

func TestDirtyTracking(t *testing.T) {
	c := NewContainer()

	stored := []entities.DoseEntry{{Substance: "lsd", Amount: 0.1, Route: "sublingual", Unit: "mg", Timestamp: time.Now()}}
	c.Restore("alice", stored)
	if c.DirtyCount() != 0 {
		t.Errorf("Restored users should be clean, got %d dirty", c.DirtyCount())
	}

	_ = c.WithUser("alice", func(u *doselog.User) error {
		u.Log("caffeine", 100, "oral")
		return nil
	})
	_ = c.WithUser("bob", func(u *doselog.User) error {
		u.LogText("@ate 30mg adderall")
		return nil
	})

	snapshot := c.DirtySnapshot()
	if len(snapshot) != 2 {
		t.Fatalf("Expected 2 dirty users, got %d", len(snapshot))
	}
	if len(snapshot["alice"]) != 2 {
		t.Errorf("Expected full history for alice, got %d entries", len(snapshot["alice"]))
	}

	c.MarkClean("alice", 2)
	if c.DirtyCount() != 1 {
		t.Errorf("Expected 1 dirty user after MarkClean, got %d", c.DirtyCount())
	}
	if c.EntryCount() != 3 {
		t.Errorf("Expected 3 entries, got %d", c.EntryCount())
	}
	if got := c.Users(); len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("Expected sorted users [alice bob], got %v", got)
	}
}

func TestBeginSaveEndSave(t *testing.T) {
	c := NewContainer()

	if !c.BeginSave() {
		t.Error("BeginSave should return true first time")
	}
	if !c.IsSaving() {
		t.Error("Should be saving after BeginSave")
	}
	if c.BeginSave() {
		t.Error("BeginSave should return false when already saving")
	}
	c.EndSave()
	if c.IsSaving() {
		t.Error("Should not be saving after EndSave")
	}
	if !c.BeginSave() {
		t.Error("BeginSave should return true after EndSave")
	}
	c.EndSave()
}

func TestTimestamps(t *testing.T) {
	c := NewContainer()
	now := time.Now()

	c.SetLastSaved(now)
	if !c.GetLastSaved().Equal(now) {
		t.Errorf("Expected last saved %v, got %v", now, c.GetLastSaved())
	}
	c.SetServerStartTime(now)
	if !c.GetServerStartTime().Equal(now) {
		t.Errorf("Expected server start time %v, got %v", now, c.GetServerStartTime())
	}
}

func TestOptionsApplyToNewUsers(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	c := NewContainer(doselog.WithClock(func() time.Time { return fixed }))

	var entry entities.DoseEntry
	_ = c.WithUser("clocked", func(u *doselog.User) error {
		entry, _ = u.Log("caffeine", 50, "oral")
		return nil
	})
	if !entry.Timestamp.Equal(fixed) {
		t.Errorf("Expected injected clock timestamp %v, got %v", fixed, entry.Timestamp)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := NewContainer()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			name := fmt.Sprintf("user%d", id%3)
			for j := 0; j < 50; j++ {
				_ = c.WithUser(name, func(u *doselog.User) error {
					u.LogText("10mg caffeine oral")
					_ = u.Only("caffeine").TotalDose()
					return nil
				})
				_ = c.DirtySnapshot()
			}
		}(i)
	}
	wg.Wait()

	if c.EntryCount() != 500 {
		t.Errorf("Expected 500 entries, got %d", c.EntryCount())
	}
}
