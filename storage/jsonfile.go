// Package storage persists dose histories between restarts.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/giygas/doselog/doseparser/entities"
	"github.com/giygas/doselog/interfaces"
	"github.com/giygas/doselog/logging"
	"github.com/giygas/doselog/validation"
)

var _ interfaces.HistoryStore = (*JSONFileStore)(nil)

const historyExt = ".json"

// historyFile is the on-disk document for one user
type historyFile struct {
	User    string               `json:"user"`
	SavedAt time.Time            `json:"saved_at"`
	Entries []entities.DoseEntry `json:"entries"`
}

// JSONFileStore keeps one JSON document per user in a directory
type JSONFileStore struct {
	dir       string
	mu        sync.Mutex
	validator interfaces.DoseValidator
}

// NewJSONFileStore creates dir if needed and returns a store rooted there
func NewJSONFileStore(dir string) (*JSONFileStore, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &JSONFileStore{dir: dir, validator: validation.NewDoseValidator()}, nil
}

// Save writes the full history of user, replacing the previous document.
// The write goes to a temp file that is renamed into place.
func (s *JSONFileStore) Save(ctx context.Context, user string, entries []entities.DoseEntry) (retErr error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.pathFor(user)
	if err != nil {
		return err
	}

	doc := historyFile{User: user, SavedAt: time.Now().UTC(), Entries: entries}
	if doc.Entries == nil {
		doc.Entries = []entities.DoseEntry{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history for %s: %w", user, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, user+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write history for %s: %w", user, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync history for %s: %w", user, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close history for %s: %w", user, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace history for %s: %w", user, err)
	}

	logging.Debug("Saved dose history", "user", user, "entries", len(entries), "path", path)
	return nil
}

// Load reads the stored history of user. A user with no document has an
// empty history.
func (s *JSONFileStore) Load(ctx context.Context, user string) ([]entities.DoseEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.pathFor(user)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	data, err := os.ReadFile(path)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history for %s: %w", user, err)
	}

	var doc historyFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode history for %s: %w", user, err)
	}
	return doc.Entries, nil
}

// Users lists every user with a stored document, sorted
func (s *JSONFileStore) Users(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	files, err := os.ReadDir(s.dir)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("list storage dir: %w", err)
	}

	var users []string
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != historyExt {
			continue
		}
		name := strings.TrimSuffix(f.Name(), historyExt)
		if s.validator.ValidateUserName(name) != nil {
			logging.Warn("Skipping unexpected file in storage dir", "file", f.Name())
			continue
		}
		users = append(users, name)
	}
	sort.Strings(users)
	return users, nil
}

// Close is a no-op; every Save is complete when it returns
func (s *JSONFileStore) Close() error {
	return nil
}

func (s *JSONFileStore) pathFor(user string) (string, error) {
	if err := s.validator.ValidateUserName(user); err != nil {
		return "", fmt.Errorf("storage: %w", err)
	}
	return filepath.Join(s.dir, user+historyExt), nil
}
