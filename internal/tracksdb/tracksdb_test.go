package tracksdb

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTracks creates a database with three frames. Particle 0 moves +1 in
// x per frame, particle 1 exists only in frames 1 and 2, particle 2 appears
// in frame 3.
func writeTracks(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFilename)
	w, err := Create(path)
	require.NoError(t, err)
	defer w.Close()

	ctx := context.Background()
	_, err = w.StartRun(ctx, map[string]any{"maxdisp": 3}, "test", time.Unix(1000, 0))
	require.NoError(t, err)

	frames := [][]Row{
		{{Frame: 1, Particle: 0, X: 10, Y: 10, Intensity: 5, Rg2: 1}, {Frame: 1, Particle: 1, X: 50, Y: 50, Intensity: 6, Rg2: 2}},
		{{Frame: 2, Particle: 0, X: 11, Y: 10, Intensity: 5, Rg2: 1}, {Frame: 2, Particle: 1, X: 52, Y: 48, Intensity: 6, Rg2: 2}},
		{{Frame: 3, Particle: 0, X: 12, Y: 10, Intensity: 5, Rg2: math.NaN()}, {Frame: 3, Particle: 2, X: 80, Y: 20, Intensity: 7, Rg2: 3}},
	}
	for _, f := range frames {
		require.NoError(t, w.AppendFrame(ctx, f))
	}
	require.NoError(t, w.FinishRun(ctx, time.Unix(2000, 0), len(frames)))
	require.NoError(t, w.CreateIndices())
	return path
}

var rowCmp = cmpopts.EquateNaNs()

func TestCreateRefusesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.db")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, err := Create(path)
	assert.ErrorIs(t, err, ErrExists)
}

func TestSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.db")
	w, err := Create(path)
	require.NoError(t, err)
	defer w.Close()

	v, dirty, err := w.DB().MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)
}

func TestReadFrames(t *testing.T) {
	bt := NewTracks(writeTracks(t))

	rows, err := bt.GetFrame(2)
	require.NoError(t, err)
	want := []Row{
		{Frame: 2, Particle: 0, X: 11, Y: 10, Intensity: 5, Rg2: 1},
		{Frame: 2, Particle: 1, X: 52, Y: 48, Intensity: 6, Rg2: 2},
	}
	if diff := cmp.Diff(want, rows, rowCmp); diff != "" {
		t.Errorf("GetFrame(2) mismatch (-want +got):\n%s", diff)
	}

	rows, err = bt.GetFrame(3)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(rows[0].Rg2), "NaN survives the round trip")

	rows, err = bt.GetFrame(9)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = bt.Frame(9)
	assert.ErrorIs(t, err, ErrFrameNotFound)

	all, err := bt.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 6)

	traj, err := bt.GetParticle(1)
	require.NoError(t, err)
	require.Len(t, traj, 2)
	assert.Equal(t, 52.0, traj[1].X)

	rows, err = bt.Query("x > ? AND frame < ?", 20, 3)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = bt.Query("no_such_column = 1")
	assert.Error(t, err)
}

func TestFrameRange(t *testing.T) {
	bt := NewTracks(writeTracks(t))
	require.NoError(t, bt.Open())
	defer bt.Close()

	mf, err := bt.MaxFrame()
	require.NoError(t, err)
	assert.Equal(t, 3, mf)

	fr, err := bt.FrameRange()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, fr)

	runs, err := bt.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 3, runs[0].NFrames)
	assert.JSONEq(t, `{"maxdisp": 3}`, runs[0].ParamsJSON)
	assert.NotEmpty(t, runs[0].FinishedAt)
}

func TestEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.db")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = NewTracks(path).MaxFrame()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestOpenTwice(t *testing.T) {
	bt := NewTracks(writeTracks(t))
	require.NoError(t, bt.Open())
	assert.ErrorIs(t, bt.Open(), ErrAlreadyOpen)
	require.NoError(t, bt.Close())
	require.NoError(t, bt.Close())
	require.NoError(t, bt.Open())
	require.NoError(t, bt.Close())
}

func TestCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "junk.db")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("not a database "), 200), 0o644))

	_, err := NewTracks(path).GetAll()
	require.ErrorIs(t, err, ErrCorrupt)
	abs, _ := filepath.Abs(path)
	assert.Contains(t, err.Error(), abs)

	_, err = NewTracks(filepath.Join(dir, "missing.db")).GetAll()
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, statErr := os.Stat(filepath.Join(dir, "missing.db"))
	assert.ErrorIs(t, statErr, os.ErrNotExist, "reading does not create the file")
}

func TestCreateIndicesRecovery(t *testing.T) {
	path := writeTracks(t)
	require.NoError(t, CreateIndices(path))

	db, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND tbl_name = 'bigtracks'`).Scan(&n))
	assert.Equal(t, 2, n)

	assert.Error(t, CreateIndices(filepath.Join(t.TempDir(), "missing.db")))
}

func TestCrop(t *testing.T) {
	rows := []Row{{X: 1, Y: 1}, {X: 5, Y: 5}, {X: 10, Y: 5}}
	assert.Equal(t, []Row{{X: 5, Y: 5}}, Crop(rows, 1, 10, math.Inf(-1), math.Inf(1)))
	assert.Len(t, Crop(rows, math.Inf(-1), math.Inf(1), math.Inf(-1), math.Inf(1)), 3)
}

func TestInterpolateTracks(t *testing.T) {
	bt := NewTracks(writeTracks(t))

	rows, err := InterpolateTracks(bt, 1.5)
	require.NoError(t, err)
	want := []Row{
		{Frame: 1.5, Particle: 0, X: 10.5, Y: 10, Intensity: 5, Rg2: 1},
		{Frame: 1.5, Particle: 1, X: 51, Y: 49, Intensity: 6, Rg2: 2},
	}
	if diff := cmp.Diff(want, rows, rowCmp); diff != "" {
		t.Errorf("InterpolateTracks(1.5) mismatch (-want +got):\n%s", diff)
	}

	rows, err = InterpolateTracks(bt, 2.25)
	require.NoError(t, err)
	require.Len(t, rows, 1, "only particle 0 is in frames 2 and 3")
	assert.InDelta(t, 11.25, rows[0].X, 1e-12)

	rows, err = InterpolateTracks(bt, 3)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = InterpolateTracks(bt, 3.5)
	assert.ErrorIs(t, err, ErrOutsideData)
	_, err = InterpolateTracks(bt, 0.5)
	assert.ErrorIs(t, err, ErrOutsideData)
}

func TestInterpolateTracksDropsMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)
	w, err := Create(path)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, w.AppendFrame(ctx, []Row{
		{Frame: 1, Particle: 0, X: 1, Y: 1, Intensity: math.NaN(), Rg2: 1},
		{Frame: 1, Particle: 1, X: 5, Y: 5, Intensity: 2, Rg2: math.NaN()},
		{Frame: 1, Particle: 2, X: 9, Y: 9, Intensity: 3, Rg2: 1},
	}))
	require.NoError(t, w.AppendFrame(ctx, []Row{
		{Frame: 2, Particle: 0, X: 2, Y: 2, Intensity: 1, Rg2: 1},
		{Frame: 2, Particle: 1, X: 6, Y: 6, Intensity: 2, Rg2: 1},
		{Frame: 2, Particle: 2, X: 10, Y: 10, Intensity: 3, Rg2: math.NaN()},
	}))
	require.NoError(t, w.Close())

	rows, err := InterpolateTracks(NewTracks(path), 1.5)
	require.NoError(t, err)
	want := []Row{{Frame: 1.5, Particle: 2, X: 9.5, Y: 9.5, Intensity: 3, Rg2: 1}}
	if diff := cmp.Diff(want, rows, rowCmp); diff != "" {
		t.Errorf("InterpolateTracks(1.5) mismatch (-want +got):\n%s", diff)
	}
}

func TestAdminRoutes(t *testing.T) {
	db, err := OpenReadOnly(writeTracks(t))
	require.NoError(t, err)
	defer db.Close()

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux, "Tracks DB"))
	for _, endpoint := range []string{"/debug/backup", "/debug/tailsql/"} {
		t.Run(endpoint, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, endpoint, nil))
			assert.NotEqual(t, http.StatusNotFound, w.Code)
		})
	}
}

func TestBackupDownload(t *testing.T) {
	db, err := OpenReadOnly(writeTracks(t))
	require.NoError(t, err)
	defer db.Close()

	w := httptest.NewRecorder()
	db.serveBackup(w, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))
	require.Equal(t, http.StatusOK, w.Code)

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("SQLite format 3")))
}
