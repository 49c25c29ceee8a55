// internal/db/db.go
//
// Database helpers shared by the server and the terminal client.
// Responsibilities:
//   - Opening SQLite with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying embedded migrations (idempotent, recorded in _migrations).
//
// Drivers:
//   - "sqlite3": github.com/mattn/go-sqlite3 (cgo, default).
//   - "sqlite":  modernc.org/sqlite (pure Go; tests and cgo-free builds).

package db

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const (
	DriverCgo    = "sqlite3"
	DriverPureGo = "sqlite"
)

// ErrUnknownDriver is returned by Open for drivers other than the two above.
var ErrUnknownDriver = errors.New("unknown sqlite driver")

// Open opens (and creates if missing) a SQLite database.
//
//   - Ensures the parent directory exists for file DSNs (e.g. ./data/app.db).
//   - Configures busy timeout and WAL journaling; enforces foreign keys.
//   - ":memory:" is kept on a single connection so every query sees the
//     same database.
func Open(driver, dsn string) (*sql.DB, error) {
	if driver == "" {
		driver = DriverCgo
	}
	if driver != DriverCgo && driver != DriverPureGo {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	memory := dsn == ":memory:"
	if !memory {
		dir := filepath.Dir(dsn)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if memory {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{`PRAGMA foreign_keys = ON`, `PRAGMA busy_timeout = 5000`}
	if !memory {
		pragmas = append(pragmas, `PRAGMA journal_mode = WAL`)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}
	return db, nil
}

// Migrate applies every *.sql file of migrations in lexical order.
//
//   - Uses a _migrations table to track applied files.
//   - Each file runs in its own transaction, unless it manages its own
//     transaction or foreign key pragmas, in which case it runs as-is.
func Migrate(db *sql.DB, migrations fs.FS) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	var files []string
	if err := fs.WalkDir(migrations, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walk migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, f).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", f).Msg("already applied")
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("query _migrations: %w", err)
		}

		b, err := fs.ReadFile(migrations, f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		text := string(b)

		upper := strings.ToUpper(text)
		selfManaged := strings.Contains(upper, "BEGIN TRANSACTION") ||
			strings.Contains(upper, "PRAGMA FOREIGN_KEYS=OFF") ||
			strings.Contains(upper, "PRAGMA FOREIGN_KEYS = OFF")

		if selfManaged {
			if _, err := db.Exec(text); err != nil {
				return fmt.Errorf("apply %s: %w", f, err)
			}
			if _, err := db.Exec(`INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
				return fmt.Errorf("record %s: %w", f, err)
			}
			log.Info().Str("migration", f).Msg("applied (self-managed)")
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		log.Info().Str("migration", f).Msg("applied")
	}
	return nil
}

// OpenMigrated opens the database and applies migrations.
func OpenMigrated(driver, dsn string, migrations fs.FS) (*sql.DB, error) {
	db, err := Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, migrations); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
