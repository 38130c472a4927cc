package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/giygas/doselog/data"
	"github.com/giygas/doselog/doselog"
	"github.com/giygas/doselog/doseparser/entities"
	"github.com/giygas/doselog/logging"
)

// mockHistoryStore for testing scheduler
type mockHistoryStore struct {
	mu        sync.Mutex
	histories map[string][]entities.DoseEntry
	saveCount int
	failUsers map[string]bool
	failList  bool
}

func newMockHistoryStore() *mockHistoryStore {
	return &mockHistoryStore{
		histories: make(map[string][]entities.DoseEntry),
		failUsers: make(map[string]bool),
	}
}

func (m *mockHistoryStore) Save(ctx context.Context, user string, entries []entities.DoseEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUsers[user] {
		return &mockSchedulerError{"save failed"}
	}
	m.histories[user] = append([]entities.DoseEntry(nil), entries...)
	m.saveCount++
	return nil
}

func (m *mockHistoryStore) Load(ctx context.Context, user string) ([]entities.DoseEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.histories[user], nil
}

func (m *mockHistoryStore) Users(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList {
		return nil, &mockSchedulerError{"list failed"}
	}
	users := make([]string, 0, len(m.histories))
	for name := range m.histories {
		users = append(users, name)
	}
	return users, nil
}

func (m *mockHistoryStore) Close() error { return nil }

func (m *mockHistoryStore) stored(user string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.histories[user])
}

type mockSchedulerError struct {
	message string
}

func (e *mockSchedulerError) Error() string {
	return e.message
}

func logDose(t *testing.T, dir *data.Container, user, text string) {
	t.Helper()
	err := dir.WithUser(user, func(u *doselog.User) error {
		return u.LogText(text).Err
	})
	if err != nil {
		t.Fatalf("Failed to log %q: %v", text, err)
	}
}

func TestScheduler_FlushSavesDirtyUsers(t *testing.T) {
	logging.InitLogger("")

	dir := data.NewContainer()
	store := newMockHistoryStore()
	s := NewScheduler(dir, store, 5)

	logDose(t, dir, "alice", "20mg caffeine oral")
	logDose(t, dir, "alice", "@ate 30mg adderall")
	logDose(t, dir, "bob", "5mg ketamine snorted")

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if store.stored("alice") != 2 || store.stored("bob") != 1 {
		t.Errorf("Expected alice=2 bob=1, got alice=%d bob=%d", store.stored("alice"), store.stored("bob"))
	}
	if dir.DirtyCount() != 0 {
		t.Errorf("Expected no dirty users after flush, got %d", dir.DirtyCount())
	}
	if dir.GetLastSaved().IsZero() {
		t.Error("Expected last saved time to be set")
	}

	// Nothing dirty, nothing saved
	before := store.saveCount
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Second flush failed: %v", err)
	}
	if store.saveCount != before {
		t.Errorf("Expected no saves for clean users, got %d new", store.saveCount-before)
	}
}

func TestScheduler_FailedUserStaysDirty(t *testing.T) {
	dir := data.NewContainer()
	store := newMockHistoryStore()
	store.failUsers["bob"] = true
	s := NewScheduler(dir, store, 5)

	logDose(t, dir, "alice", "20mg caffeine oral")
	logDose(t, dir, "bob", "20mg caffeine oral")

	err := s.Flush(context.Background())
	if err == nil {
		t.Fatal("Expected flush error")
	}
	var mockErr *mockSchedulerError
	if !errors.As(err, &mockErr) {
		t.Errorf("Expected wrapped store error, got %v", err)
	}
	if store.stored("alice") != 1 {
		t.Error("Expected alice to be saved despite bob failing")
	}
	if dir.DirtyCount() != 1 {
		t.Errorf("Expected bob to stay dirty, got %d dirty users", dir.DirtyCount())
	}
	if !dir.GetLastSaved().IsZero() {
		t.Error("Expected last saved time to stay unset after a failed flush")
	}

	delete(store.failUsers, "bob")
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Retry flush failed: %v", err)
	}
	if store.stored("bob") != 1 {
		t.Error("Expected bob to be saved on retry")
	}
}

func TestScheduler_ConcurrentFlushPrevention(t *testing.T) {
	dir := data.NewContainer()
	store := newMockHistoryStore()
	s := NewScheduler(dir, store, 5)

	logDose(t, dir, "alice", "20mg caffeine oral")

	if !dir.BeginSave() {
		t.Fatal("BeginSave should succeed")
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Errorf("Expected skipped flush to return nil, got %v", err)
	}
	if store.saveCount != 0 {
		t.Error("Expected no saves while another save is in progress")
	}
	dir.EndSave()
}

func TestScheduler_StartRestoresAndStopFlushes(t *testing.T) {
	dir := data.NewContainer()
	store := newMockHistoryStore()
	store.histories["alice"] = []entities.DoseEntry{
		{Substance: "lsd", Amount: 0.1, Route: "sublingual", Unit: "mg", Timestamp: time.Now().Add(-time.Hour)},
	}

	s := NewScheduler(dir, store, 5)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if dir.EntryCount() != 1 {
		t.Errorf("Expected restored entry, got %d", dir.EntryCount())
	}
	if dir.DirtyCount() != 0 {
		t.Errorf("Expected restored users to be clean, got %d dirty", dir.DirtyCount())
	}

	logDose(t, dir, "alice", "20mg caffeine oral")
	s.Stop()

	if store.stored("alice") != 2 {
		t.Errorf("Expected final flush to save 2 entries, got %d", store.stored("alice"))
	}

	// Stop is idempotent
	s.Stop()
}

func TestScheduler_StartFailsWhenStoreFails(t *testing.T) {
	store := newMockHistoryStore()
	store.failList = true

	s := NewScheduler(data.NewContainer(), store, 5)
	if err := s.Start(); err == nil {
		t.Error("Expected start to fail when the store cannot list users")
	}
}

func TestIsStale(t *testing.T) {
	dir := data.NewContainer()
	interval := 5 * time.Minute

	dir.SetLastSaved(time.Now().Add(-time.Hour))
	if IsStale(dir, interval) {
		t.Error("Expected clean directory not to be stale")
	}

	logDose(t, dir, "alice", "20mg caffeine oral")
	if !IsStale(dir, interval) {
		t.Error("Expected dirty directory saved an hour ago to be stale")
	}

	dir.SetLastSaved(time.Now())
	if IsStale(dir, interval) {
		t.Error("Expected recently saved directory not to be stale")
	}
}

func TestNewSchedulerDefaultsInterval(t *testing.T) {
	s := NewScheduler(data.NewContainer(), newMockHistoryStore(), 0)
	if s.interval != 5*time.Minute {
		t.Errorf("Expected default interval 5m, got %v", s.interval)
	}
}
