package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/giygas/doselog/config"
	"github.com/giygas/doselog/doseparser/entities"
	"github.com/giygas/doselog/interfaces"
	"github.com/giygas/doselog/logging"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ interfaces.HistoryStore = (*SQLiteStore)(nil)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS doses (
	user_name TEXT NOT NULL,
	seq INTEGER NOT NULL,
	substance TEXT NOT NULL,
	amount REAL NOT NULL,
	route TEXT NOT NULL,
	unit TEXT NOT NULL,
	logged_at TEXT NOT NULL,
	PRIMARY KEY (user_name, seq)
)`

// SQLiteStore keeps every dose as a row of a single table. Rows are ordered
// per user by seq, the entry's position in the history.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "doselog.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create doses table: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Save replaces every row of user with entries in one transaction
func (s *SQLiteStore) Save(ctx context.Context, user string, entries []entities.DoseEntry) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM doses WHERE user_name = ?`, user); err != nil {
		return fmt.Errorf("clear doses for %s: %w", user, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO doses(user_name, seq, substance, amount, route, unit, logged_at) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, user, i, e.Substance, e.Amount, e.Route, e.Unit, e.Timestamp.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert dose %d for %s: %w", i, user, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logging.Debug("Saved dose history", "user", user, "entries", len(entries), "path", s.path)
	return nil
}

// Load returns the rows of user in history order
func (s *SQLiteStore) Load(ctx context.Context, user string) ([]entities.DoseEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT substance, amount, route, unit, logged_at FROM doses WHERE user_name = ? ORDER BY seq`, user)
	if err != nil {
		return nil, fmt.Errorf("select doses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []entities.DoseEntry
	for rows.Next() {
		var e entities.DoseEntry
		var loggedAt string
		if err := rows.Scan(&e.Substance, &e.Amount, &e.Route, &e.Unit, &loggedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		e.Timestamp, err = time.Parse(time.RFC3339Nano, loggedAt)
		if err != nil {
			return nil, fmt.Errorf("decode timestamp for %s: %w", user, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate doses: %w", err)
	}
	return entries, nil
}

// Users lists every user with at least one stored dose, sorted
func (s *SQLiteStore) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_name FROM doses ORDER BY user_name`)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		users = append(users, name)
	}
	return users, rows.Err()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Open returns the store selected by driver. For sqlite, a path without an
// extension is treated as a directory holding doselog.db.
func Open(driver, path string) (interfaces.HistoryStore, error) {
	switch driver {
	case config.StorageJSON, "":
		return NewJSONFileStore(path)
	case config.StorageSQLite:
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "doselog.db")
		}
		return NewSQLiteStore(path)
	}
	return nil, fmt.Errorf("unknown storage driver %q", driver)
}
