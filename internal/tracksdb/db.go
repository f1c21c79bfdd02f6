// Package tracksdb stores particle tracks in a single SQLite file.
//
// The tracks table is named bigtracks and holds one row per particle per
// frame with the columns frame, particle, x, y, intensity and rg2, in that
// order. It can be read by any SQLite client (sqlite3, pandas, R).
package tracksdb

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DefaultFilename is the conventional name of a tracks database.
const DefaultFilename = "bigtracks.db"

var (
	// ErrExists is returned when creating over an existing file.
	ErrExists = errors.New("output file already exists")
	// ErrCorrupt is returned for files that lack the tracks table.
	ErrCorrupt = errors.New("tracks file appears to be corrupted")
	// ErrAlreadyOpen is returned by Tracks.Open when already open.
	ErrAlreadyOpen = errors.New("tracks file is already open")
	// ErrFrameNotFound is returned by Tracks.Frame for empty frames.
	ErrFrameNotFound = errors.New("frame not found")
	// ErrEmpty is returned when a question needs at least one row.
	ErrEmpty = errors.New("tracks file has no rows")
	// ErrOutsideData is returned when interpolating beyond the stored frames.
	ErrOutsideData = errors.New("frame is outside available data")
)

// DB is a connection to a tracks database.
type DB struct {
	*sql.DB
	path string
}

// OpenDB opens path for writing. The schema is not touched; see Create and
// MigrateUp.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn(path,
		"journal_mode(WAL)",
		"busy_timeout(5000)",
		"synchronous(NORMAL)",
		"temp_store(MEMORY)",
	))
	if err != nil {
		return nil, err
	}
	// One writer connection; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{DB: db, path: path}, nil
}

// OpenReadOnly opens an existing tracks database for queries. The file
// must exist and contain the tracks table.
func OpenReadOnly(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn(path, "busy_timeout(5000)"))
	if err != nil {
		return nil, err
	}
	d := &DB{DB: db, path: path}
	if err := d.checkTable(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// dsn adds per-connection pragmas in the form modernc.org/sqlite expects.
func dsn(path string, pragmas ...string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}

// Path returns the file the database was opened from.
func (db *DB) Path() string { return db.path }

// checkTable verifies that the tracks table exists.
func (db *DB) checkTable() error {
	var n int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'bigtracks'`,
	).Scan(&n)
	if err != nil {
		return corrupt(db.path, err)
	}
	if n == 0 {
		return corrupt(db.path, nil)
	}
	return nil
}

func corrupt(path string, cause error) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if cause != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, abs, cause)
	}
	return fmt.Errorf("%w: %s", ErrCorrupt, abs)
}

// createIndices indexes the frame and particle columns for fast lookups.
func (db *DB) createIndices() error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS bigtracks_frame ON bigtracks (frame);
		CREATE INDEX IF NOT EXISTS bigtracks_particle ON bigtracks (particle);
	`)
	return err
}

// CreateIndices indexes an existing tracks file. Track2Disk does this
// itself; this is only needed when a run ended before finishing.
func CreateIndices(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	db, err := OpenDB(path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.checkTable(); err != nil {
		return err
	}
	if err := db.createIndices(); err != nil {
		return fmt.Errorf("create indices on %s: %w", path, err)
	}
	return nil
}
