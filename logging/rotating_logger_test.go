package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/giygas/doselog/config"
)

func rotateNow(t *testing.T, rl *RotatingLogger) {
	t.Helper()
	rl.mu.Lock()
	err := rl.rotate(getWeekKey(time.Now()), false)
	rl.mu.Unlock()
	if err != nil {
		t.Fatalf("Failed to rotate: %v", err)
	}
}

func TestRotatingLogger(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLogger(tempDir, 1)
	rotateNow(t, rl)

	expected := filepath.Join(tempDir, "doselog-"+getWeekKey(time.Now())+".log")
	if _, err := os.Stat(expected); os.IsNotExist(err) {
		t.Fatalf("Expected log file %s was not created", expected)
	}

	if _, err := rl.Write([]byte("Test log message")); err != nil {
		t.Fatalf("Failed to write to log: %v", err)
	}

	content, err := os.ReadFile(expected)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "Test log message") {
		t.Errorf("Log file does not contain test message: %s", content)
	}

	if err := rl.Close(); err != nil {
		t.Fatalf("Failed to close logger: %v", err)
	}
}

func TestWriteOpensFileLazily(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLogger(tempDir, 1)
	defer rl.Close()

	if _, err := rl.Write([]byte("first line\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if rl.currentWeek != getWeekKey(time.Now()) {
		t.Errorf("Expected current week %s, got %s", getWeekKey(time.Now()), rl.currentWeek)
	}
}

func TestGetWeekKey(t *testing.T) {
	got := getWeekKey(time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC))
	if got != "2025-W41" {
		t.Errorf("Expected week key 2025-W41, got %s", got)
	}

	// ISO weeks can belong to the previous year
	got = getWeekKey(time.Date(2027, 1, 1, 12, 0, 0, 0, time.UTC))
	if got != "2026-W53" {
		t.Errorf("Expected week key 2026-W53, got %s", got)
	}
}

func TestRotatingLoggerWithSizeLimit(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, 100)
	defer rl.Close()
	rotateNow(t, rl)

	if _, err := rl.Write([]byte("Small message")); err != nil {
		t.Fatalf("Failed to write small message: %v", err)
	}
	large := strings.Repeat("This line pushes the file over its limit. ", 5)
	if _, err := rl.Write([]byte(large)); err != nil {
		t.Fatalf("Failed to write large message: %v", err)
	}

	week := getWeekKey(time.Now())
	numbered := filepath.Join(tempDir, "doselog-"+week+"_01.log")
	content, err := os.ReadFile(numbered)
	if err != nil {
		t.Fatalf("Expected numbered file %s: %v", numbered, err)
	}
	if string(content) != large {
		t.Errorf("Expected the large message in the numbered file, got %q", content)
	}

	base, err := os.ReadFile(filepath.Join(tempDir, "doselog-"+week+".log"))
	if err != nil {
		t.Fatalf("Failed to read base file: %v", err)
	}
	if string(base) != "Small message" {
		t.Errorf("Expected base file to keep the small message, got %q", base)
	}
}

func TestRotationResumesHighestNumberedFile(t *testing.T) {
	tempDir := t.TempDir()
	week := getWeekKey(time.Now())

	full := strings.Repeat("x", 200)
	if err := os.WriteFile(filepath.Join(tempDir, "doselog-"+week+".log"), []byte(full), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "doselog-"+week+"_01.log"), []byte(full), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "doselog-"+week+"_02.log"), []byte("short"), 0o640); err != nil {
		t.Fatal(err)
	}

	rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, 100)
	defer rl.Close()
	rotateNow(t, rl)

	if got := filepath.Base(rl.currentFile.Name()); got != "doselog-"+week+"_02.log" {
		t.Errorf("Expected to resume _02, got %s", got)
	}
	if rl.currentSize != int64(len("short")) {
		t.Errorf("Expected current size %d, got %d", len("short"), rl.currentSize)
	}
}

func TestRotatingLoggerErrorCases(t *testing.T) {
	rl := NewRotatingLogger("/invalid/directory/that/does/not/exist", 1)
	if _, err := rl.Write([]byte("nowhere")); err == nil {
		t.Error("Expected an error writing into a missing directory")
	}
	if err := rl.Close(); err != nil {
		t.Errorf("Close should succeed without an open file, got %v", err)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLogger(tempDir, 1)

	oldFile := filepath.Join(tempDir, "doselog-2025-W30.log")
	newFile := filepath.Join(tempDir, "doselog-"+getWeekKey(time.Now())+".log")
	unrelated := filepath.Join(tempDir, "history.json")

	for _, f := range []string{oldFile, newFile, unrelated} {
		if err := os.WriteFile(f, []byte("content"), 0o640); err != nil {
			t.Fatal(err)
		}
	}
	threeWeeksAgo := time.Now().AddDate(0, 0, -21)
	for _, f := range []string{oldFile, unrelated} {
		if err := os.Chtimes(f, threeWeeksAgo, threeWeeksAgo); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := rl.cleanupOldLogs()
	if err != nil {
		t.Fatalf("Failed to cleanup old logs: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted file, got %d", deleted)
	}
	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Errorf("Old log file %s was not deleted", oldFile)
	}
	if _, err := os.Stat(newFile); err != nil {
		t.Errorf("New log file %s was incorrectly deleted", newFile)
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Errorf("Non-log file %s was incorrectly deleted", unrelated)
	}
}

func TestRotatingLoggerConcurrentWrites(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLogger(tempDir, 1)
	defer rl.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := rl.Write([]byte("line\n")); err != nil {
					t.Errorf("Write failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	content, err := os.ReadFile(filepath.Join(tempDir, "doselog-"+getWeekKey(time.Now())+".log"))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(content), "line\n"); got != 1000 {
		t.Errorf("Expected 1000 lines, got %d", got)
	}
}

func TestSetupLoggerWritesJSONToFile(t *testing.T) {
	tempDir := t.TempDir()
	logger, rotator := SetupLogger(Options{LogDir: tempDir, Env: config.EnvTest})
	if rotator == nil {
		t.Fatal("Expected a rotating logger")
	}
	defer rotator.Close()

	logger.Debug("dose logged", "substance", "caffeine")

	content, err := os.ReadFile(filepath.Join(tempDir, "doselog-"+getWeekKey(time.Now())+".log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), `"substance":"caffeine"`) {
		t.Errorf("Expected JSON record in file, got %s", content)
	}
}

func TestSetupLoggerConsoleOnly(t *testing.T) {
	logger, rotator := SetupLogger(Options{Env: config.EnvTest})
	if logger == nil {
		t.Fatal("Expected a logger")
	}
	if rotator != nil {
		t.Error("Expected no rotating logger without a directory")
	}
}

func TestGlobalLoggingService(t *testing.T) {
	tempDir := t.TempDir()
	InitLoggerWithOptions(Options{LogDir: tempDir, Env: config.EnvTest})
	t.Cleanup(func() {
		_ = Close()
		InitLogger("")
	})

	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		t.Fatal("DefaultLoggingService was not initialized")
	}

	Info("Test message from global logger")
	Warn("warn")
	Error("error")
	Debug("debug")

	expected := filepath.Join(tempDir, "doselog-"+getWeekKey(time.Now())+".log")
	if _, err := os.Stat(expected); os.IsNotExist(err) {
		t.Errorf("Expected log file %s was not created", expected)
	}
}

type recordingHandler struct {
	level   slog.Level
	records []slog.Record
	attrs   []slog.Attr
	group   string
}

func (h *recordingHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }
func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return nil
}
func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recordingHandler{level: h.level, attrs: attrs}
}
func (h *recordingHandler) WithGroup(name string) slog.Handler {
	return &recordingHandler{level: h.level, group: name}
}

func TestMultiHandlerMethods(t *testing.T) {
	info := &recordingHandler{level: slog.LevelInfo}
	errs := &recordingHandler{level: slog.LevelError}
	m := &multiHandler{handlers: []slog.Handler{info, errs}}

	if !m.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Expected info to be enabled")
	}
	if m.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Expected debug to be disabled")
	}

	logger := slog.New(m)
	logger.Info("only info handler")
	logger.Error("both handlers")

	if len(info.records) != 2 {
		t.Errorf("Expected 2 records in info handler, got %d", len(info.records))
	}
	if len(errs.records) != 1 {
		t.Errorf("Expected 1 record in error handler, got %d", len(errs.records))
	}

	withAttrs := m.WithAttrs([]slog.Attr{slog.String("user", "sernyl")}).(*multiHandler)
	if got := withAttrs.handlers[0].(*recordingHandler).attrs; len(got) != 1 {
		t.Errorf("Expected attrs to propagate, got %v", got)
	}
	withGroup := m.WithGroup("dose").(*multiHandler)
	if got := withGroup.handlers[1].(*recordingHandler).group; got != "dose" {
		t.Errorf("Expected group to propagate, got %q", got)
	}
}
