package saved

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lotas/tabhirte/internal/types"
	_ "modernc.org/sqlite"
)

// migration is a numbered schema change. Migrations are applied in order
// and tracked in the schema_migrations table so each runs exactly once.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS saved_tabs (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    url         TEXT NOT NULL DEFAULT '',
    saved_at    INTEGER NOT NULL,
    group_name  TEXT
);`,
	},
	{
		Version:     2,
		Description: "add icon column to saved_tabs",
		SQL:         `ALTER TABLE saved_tabs ADD COLUMN icon TEXT NOT NULL DEFAULT '';`,
	},
}

// Store owns the saved-tabs collection. Exactly one process (the
// coordinator) should open it for writing; every mutation runs as
// read-collection, compute, write-collection inside one transaction, so
// interleaved writers cannot lose updates through this type.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at the given path. It creates parent
// directories if needed, enables foreign keys and WAL mode, and runs any
// pending migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}
		if _, err := db.Exec(m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// DefaultPath returns the default database file path:
// ~/.local/share/tabhirte/tabhirte.db
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "tabhirte", "tabhirte.db"), nil
}

// List returns the saved collection newest-first (SavedAt descending,
// insertion order as tiebreak). Storage order itself carries no meaning.
func (s *Store) List() ([]types.SavedItem, error) {
	return listTx(s.db)
}

type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

func listTx(q querier) ([]types.SavedItem, error) {
	rows, err := q.Query(
		"SELECT id, title, url, icon, saved_at, group_name FROM saved_tabs ORDER BY saved_at DESC, rowid ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("query saved tabs: %w", err)
	}
	defer rows.Close()

	var result []types.SavedItem
	for rows.Next() {
		var it types.SavedItem
		var group sql.NullString
		if err := rows.Scan(&it.ID, &it.Title, &it.URL, &it.Icon, &it.SavedAt, &group); err != nil {
			return nil, fmt.Errorf("scan saved tab: %w", err)
		}
		if group.Valid {
			g := group.String
			it.Group = &g
		}
		result = append(result, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved tabs: %w", err)
	}
	return result, nil
}

// Mutate runs fn over the current collection and persists its result,
// all inside one transaction. fn returning an error aborts with no
// change. This is the single write path for every reconciliation
// operation.
func (s *Store) Mutate(fn func(items []types.SavedItem) ([]types.SavedItem, error)) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	items, err := listTx(tx)
	if err != nil {
		return err
	}

	next, err := fn(items)
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM saved_tabs"); err != nil {
		return fmt.Errorf("clear saved tabs: %w", err)
	}
	for _, it := range next {
		var group any
		if it.Group != nil {
			group = *it.Group
		}
		if _, err := tx.Exec(
			"INSERT INTO saved_tabs (id, title, url, icon, saved_at, group_name) VALUES (?, ?, ?, ?, ?, ?)",
			it.ID, it.Title, it.URL, it.Icon, it.SavedAt, group,
		); err != nil {
			return fmt.Errorf("insert saved tab %q: %w", it.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
