package tracksdb

import (
	"database/sql"
	"fmt"
	"math"
	"sync"
)

const selectRows = `SELECT frame, particle, x, y, intensity, rg2 FROM bigtracks`

// Tracks reads a tracks database. Constructing one does not open the file;
// every method opens and closes it unless the caller has opened it with
// Open, which is cheaper for many operations:
//
//	t := tracksdb.NewTracks("bigtracks.db")
//	if err := t.Open(); err != nil { ... }
//	defer t.Close()
//	rows, err := t.GetFrame(5)
type Tracks struct {
	Filename string

	mu sync.Mutex
	db *DB
}

// NewTracks returns a reader for filename.
func NewTracks(filename string) *Tracks {
	return &Tracks{Filename: filename}
}

// Open keeps the file open until Close. Opening twice is an error.
func (t *Tracks) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db != nil {
		return ErrAlreadyOpen
	}
	db, err := OpenReadOnly(t.Filename)
	if err != nil {
		return err
	}
	t.db = db
	return nil
}

// Close closes a file opened by Open. It is a no-op otherwise.
func (t *Tracks) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil {
		return nil
	}
	err := t.db.Close()
	t.db = nil
	return err
}

// With runs fn with the file open, opening it for the duration when the
// caller has not.
func (t *Tracks) With(fn func() error) error {
	t.mu.Lock()
	open := t.db != nil
	t.mu.Unlock()
	if open {
		return fn()
	}
	if err := t.Open(); err != nil {
		return err
	}
	defer t.Close()
	return fn()
}

func (t *Tracks) conn(fn func(db *DB) error) error {
	return t.With(func() error {
		t.mu.Lock()
		db := t.db
		t.mu.Unlock()
		return fn(db)
	})
}

// Query returns the rows matching an SQL condition, for example
// "particle = ?" with args 401. An empty condition selects everything.
// Rows come back in the order they were written.
func (t *Tracks) Query(cond string, args ...any) ([]Row, error) {
	q := selectRows
	if cond != "" {
		q += " WHERE " + cond
	}
	q += " ORDER BY rowid"

	var out []Row
	err := t.conn(func(db *DB) error {
		rows, err := db.Query(q, args...)
		if err != nil {
			return fmt.Errorf("query %q: %w", cond, err)
		}
		defer rows.Close()
		out, err = scanRows(rows)
		return err
	})
	return out, err
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	var out []Row
	for rows.Next() {
		var r Row
		var x, y, in, rg sql.NullFloat64
		if err := rows.Scan(&r.Frame, &r.Particle, &x, &y, &in, &rg); err != nil {
			return nil, err
		}
		r.X, r.Y, r.Intensity, r.Rg2 = orNaN(x), orNaN(y), orNaN(in), orNaN(rg)
		out = append(out, r)
	}
	return out, rows.Err()
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// GetFrame returns the rows of frame fnum, possibly none.
func (t *Tracks) GetFrame(fnum int) ([]Row, error) {
	return t.Query("frame = ?", fnum)
}

// Frame is GetFrame but fails with ErrFrameNotFound for an empty frame.
func (t *Tracks) Frame(fnum int) ([]Row, error) {
	rows, err := t.GetFrame(fnum)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrFrameNotFound, fnum)
	}
	return rows, nil
}

// GetAll returns every row.
func (t *Tracks) GetAll() ([]Row, error) {
	return t.Query("")
}

// GetParticle returns the trajectory of one particle.
func (t *Tracks) GetParticle(id int64) ([]Row, error) {
	return t.Query("particle = ?", id)
}

// endFrames returns the frame numbers of the first and last rows.
func (t *Tracks) endFrames() (first, last float64, err error) {
	err = t.conn(func(db *DB) error {
		var f, l sql.NullFloat64
		err := db.QueryRow(`
			SELECT
				(SELECT frame FROM bigtracks ORDER BY rowid ASC LIMIT 1),
				(SELECT frame FROM bigtracks ORDER BY rowid DESC LIMIT 1)
		`).Scan(&f, &l)
		if err != nil {
			return err
		}
		if !f.Valid || !l.Valid {
			return ErrEmpty
		}
		first, last = f.Float64, l.Float64
		return nil
	})
	return first, last, err
}

// MaxFrame returns the frame number of the last row in the file.
func (t *Tracks) MaxFrame() (int, error) {
	_, last, err := t.endFrames()
	if err != nil {
		return 0, err
	}
	return int(last), nil
}

// FrameRange returns the frame numbers from the first row's frame to the
// last row's, assuming a contiguous range with step 1.
func (t *Tracks) FrameRange() ([]int, error) {
	first, last, err := t.endFrames()
	if err != nil {
		return nil, err
	}
	lo, hi := int(first), int(last)
	if hi < lo {
		return nil, nil
	}
	out := make([]int, 0, hi-lo+1)
	for f := lo; f <= hi; f++ {
		out = append(out, f)
	}
	return out, nil
}

// Runs returns the tracking runs recorded in the file, oldest first.
func (t *Tracks) Runs() ([]RunInfo, error) {
	var out []RunInfo
	err := t.conn(func(db *DB) error {
		rows, err := db.Query(`
			SELECT run_id, params_json, version, started_at, COALESCE(finished_at, ''), nframes
			FROM runs ORDER BY started_at`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r RunInfo
			if err := rows.Scan(&r.RunID, &r.ParamsJSON, &r.Version, &r.StartedAt, &r.FinishedAt, &r.NFrames); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

// RunInfo describes one tracking run stored alongside the tracks.
type RunInfo struct {
	RunID      string `json:"run_id"`
	ParamsJSON string `json:"params_json"`
	Version    string `json:"version"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	NFrames    int    `json:"nframes"`
}
