// Package profile stores named calibration snapshots in SQLite so a strip
// can be switched between known-good setups.
package profile

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"piano-leds/internal/config"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when no profile has the requested name.
var ErrNotFound = errors.New("profile: not found")

// Info describes a stored profile.
type Info struct {
	Name        string
	Fingerprint string
	UpdatedAt   time.Time
}

// Store is a profile database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the profile database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("profile: open %s: %w", path, err)
	}
	if err := initDatabase(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("profile: init %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// initDatabase runs the embedded schema and sets PRAGMAs.
func initDatabase(db *sql.DB) error {
	// WAL lets the daemon read while ledmap writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		return err
	}
	_, err := db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores snap under name, replacing any previous profile of that name.
// Invalid snapshots are rejected.
func (s *Store) Save(ctx context.Context, name string, snap config.Snapshot) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("profile: name must not be empty")
	}
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("profile %q: %w", name, err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("profile %q: %w", name, err)
	}

	query := `
	INSERT INTO profiles (name, snapshot, fingerprint, created_at, updated_at)
	VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(name) DO UPDATE SET
		snapshot = excluded.snapshot,
		fingerprint = excluded.fingerprint,
		updated_at = CURRENT_TIMESTAMP;`

	if _, err := s.db.ExecContext(ctx, query, name, string(data), snap.Fingerprint()); err != nil {
		return fmt.Errorf("profile %q: save: %w", name, err)
	}
	return nil
}

// Load returns the snapshot stored under name.
func (s *Store) Load(ctx context.Context, name string) (config.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT snapshot FROM profiles WHERE name = ?", name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return config.Snapshot{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return config.Snapshot{}, fmt.Errorf("profile %q: load: %w", name, err)
	}

	var snap config.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return config.Snapshot{}, fmt.Errorf("profile %q: decode: %w", name, err)
	}
	return snap, nil
}

// List returns every stored profile ordered by name.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, fingerprint, updated_at FROM profiles ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("profile: list: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.Name, &info.Fingerprint, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("profile: list: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes the named profile.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("profile %q: delete: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}
