package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/bigtracks/internal/fsutil"
	"github.com/banshee-data/bigtracks/internal/runner"
	"github.com/banshee-data/bigtracks/internal/status"
	"github.com/banshee-data/bigtracks/internal/timeutil"
	"github.com/banshee-data/bigtracks/internal/tracksdb"
)

// newTestServer returns a server over three movies in temporary
// directories, with status files in memory.
func newTestServer(t *testing.T) (*Server, *fsutil.MemoryFileSystem, *timeutil.MockClock) {
	t.Helper()
	root := t.TempDir()
	dirs := []string{filepath.Join(root, "a"), filepath.Join(root, "b"), filepath.Join(root, "c")}
	r, err := runner.New(dirs, 1)
	require.NoError(t, err)
	clock := timeutil.NewMockClock(time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC))
	fsys := fsutil.NewMemoryFileSystem(clock)
	r.FS = fsys
	r.Clock = clock
	r.FramesPattern = "*.png"
	return New(r, nil), fsys, clock
}

func writeStatus(t *testing.T, s *Server, fsys fsutil.FileSystem, i int, info status.Info) {
	t.Helper()
	require.NoError(t, status.NewFileFS(fsys, s.runner.StatusPath(i), nil).Update(info))
}

func TestStatusJSON(t *testing.T) {
	s, fsys, _ := newTestServer(t)
	writeStatus(t, s, fsys, 1, status.Info{"status": "working", "mr_frame": 7})

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var rows []statusRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, s.runner.Movies[1].Path, rows[1].Movie)
	assert.Equal(t, "working", rows[1].Info["status"])
	assert.Equal(t, 7.0, rows[1].Info["mr_frame"])
	assert.Equal(t, "waiting", rows[0].Info["status"])
	assert.Empty(t, rows[0].Job)

	rec = httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBoardHTML(t *testing.T) {
	s, fsys, _ := newTestServer(t)
	writeStatus(t, s, fsys, 2, status.Info{"status": "done"})
	require.NoError(t, fsys.WriteFile(s.runner.OutPath(2), []byte("x"), 0o644))

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<table class="statusboard">`)
	assert.Contains(t, body, "<th>secs_per_frame</th>")
	assert.Contains(t, body, "<td>done</td>")
	assert.Contains(t, body, "<td>yes</td>")

	rec = httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nothing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitAndAbort(t *testing.T) {
	s, _, _ := newTestServer(t)
	started := make(chan struct{})
	s.runner.TrackFunc = func(ctx context.Context, job runner.Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	// PrepareJob needs one frame file per movie.
	for _, m := range s.runner.Movies {
		require.NoError(t, writeEmpty(filepath.Join(m.Path, "f.png")))
	}
	mux := s.ServeMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/abort?movie=0", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/submit?movie=0", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/submit?movie=9", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	form := url.Values{"movie": {"0"}}
	req := httptest.NewRequest(http.MethodPost, "/api/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, s.runner.Job(0).ID, resp["job"])
	<-started

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/abort?movie=0", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.ErrorIs(t, s.runner.Job(0).Wait(), context.Canceled)
}

func TestQualityChart(t *testing.T) {
	s, _, _ := newTestServer(t)
	mux := s.ServeMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quality?movie=0", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	writeTracks(t, s.runner.OutPath(0))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quality?movie=0&interval=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fraction dropped")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quality?movie=0&interval=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttachTracksDB(t *testing.T) {
	s, _, _ := newTestServer(t)
	mux := http.NewServeMux()
	_, err := s.AttachTracksDB(mux, 1)
	assert.Error(t, err)

	writeTracks(t, s.runner.OutPath(1))
	db, err := s.AttachTracksDB(mux, 1)
	require.NoError(t, err)
	defer db.Close()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/tailsql/", nil))
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	s, fsys, clock := newTestServer(t)
	writeStatus(t, s, fsys, 0, status.Info{"status": "done"})
	require.NoError(t, fsys.WriteFile(s.runner.OutPath(0), []byte("x"), 0o644))
	writeStatus(t, s, fsys, 1, status.Info{"status": "working", "seconds_per_frame": 1.0})

	h := s.NewHealth()
	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		resp, err := h.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		return resp.Status
	}

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(s.runner.Movies[0].Path))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVICE_UNKNOWN, check(s.runner.Movies[1].Path))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVICE_UNKNOWN, check(s.runner.Movies[2].Path))

	_, err := h.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "/not/a/movie"})
	assert.Equal(t, codes.NotFound, grpcstatus.Code(err))

	clock.Advance(10 * time.Minute)
	h.Sync()
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(s.runner.Movies[1].Path))
}

func TestServingStatus(t *testing.T) {
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(status.Done))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(status.Dead))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVICE_UNKNOWN, servingStatus(status.Failed))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVICE_UNKNOWN, servingStatus(status.Waiting))
}

func TestPollStopsOnCancel(t *testing.T) {
	s, _, _ := newTestServer(t)
	h := s.NewHealth()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		h.Poll(ctx, time.Second)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Poll did not return after cancel")
	}
}

func writeTracks(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, mkdirFor(path))
	w, err := tracksdb.Create(path)
	require.NoError(t, err)
	for f := 1; f <= 3; f++ {
		rows := []tracksdb.Row{
			{Frame: float64(f), Particle: 0, X: float64(f), Y: 1, Intensity: 1, Rg2: 1},
			{Frame: float64(f), Particle: 1, X: 5, Y: float64(f), Intensity: 1, Rg2: 1},
		}
		require.NoError(t, w.AppendFrame(context.Background(), rows))
	}
	require.NoError(t, w.CreateIndices())
	require.NoError(t, w.Close())
}
