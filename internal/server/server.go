// Package server publishes the state of a tracking runner over HTTP and
// the gRPC health protocol.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/banshee-data/bigtracks/internal/monitoring"
	"github.com/banshee-data/bigtracks/internal/quality"
	"github.com/banshee-data/bigtracks/internal/runner"
	"github.com/banshee-data/bigtracks/internal/tracksdb"
)

// Server serves the status board, per-movie quality charts and job
// control for one runner.
type Server struct {
	runner *runner.Runner
	log    *zap.SugaredLogger

	// QualityInterval is the default frame interval of quality charts.
	QualityInterval int
}

// New returns a server for r.
func New(r *runner.Runner, log *zap.SugaredLogger) *Server {
	return &Server{runner: r, log: monitoring.OrNop(log), QualityInterval: 10}
}

// ServeMux returns the HTTP routes:
//
//	/                  status board (HTML)
//	/api/status        status board (JSON)
//	/api/submit        POST movie=N [clear=1]: queue a movie
//	/api/abort         POST movie=N: cancel a movie's job
//	/quality           movie=N [interval=K]: quality chart of a movie
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.showBoard)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/submit", s.submitJob)
	mux.HandleFunc("/api/abort", s.abortJob)
	mux.HandleFunc("/quality", s.showQuality)
	return mux
}

// AttachTracksDB mounts the debug routes of movie i's tracks database on
// mux. The returned database must be closed by the caller.
func (s *Server) AttachTracksDB(mux *http.ServeMux, i int) (*tracksdb.DB, error) {
	if i < 0 || i >= len(s.runner.Movies) {
		return nil, fmt.Errorf("%w: %d", runner.ErrMovieIndex, i)
	}
	db, err := tracksdb.OpenReadOnly(s.runner.OutPath(i))
	if err != nil {
		return nil, err
	}
	if err := db.AttachAdminRoutes(mux, s.runner.Movies[i].Name()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// LoggingMiddleware logs method, path, status and duration of each request.
func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		s.log.Debugw("http request",
			"method", r.Method,
			"uri", r.RequestURI,
			"status", lrw.statusCode,
			"ms", float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) movieParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.FormValue("movie")
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 || i >= len(s.runner.Movies) {
		badRequest(w, fmt.Sprintf("invalid movie %q", v))
		return 0, false
	}
	return i, true
}

func (s *Server) showBoard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><title>bigtracks</title><meta http-equiv=\"refresh\" content=\"30\"></head><body>\n")
	if err := s.runner.StatusBoard().WriteHTML(w); err != nil {
		s.log.Warnw("render status board", "error", err)
	}
	fmt.Fprintf(w, "<p>Last update: %s</p>\n</body></html>\n", time.Now().Format(time.ANSIC))
}

type statusRow struct {
	Movie string         `json:"movie"`
	Job   string         `json:"job,omitempty"`
	State string         `json:"job_state,omitempty"`
	Info  map[string]any `json:"status"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	infos := s.runner.ReadStatuses()
	rows := make([]statusRow, len(infos))
	for i, info := range infos {
		rows[i] = statusRow{Movie: s.runner.Movies[i].Path, Info: info}
		if h := s.runner.Job(i); h != nil {
			rows[i].Job = h.ID
			rows[i].State = h.State().String()
		}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	i, ok := s.movieParam(w, r)
	if !ok {
		return
	}
	clearOut := r.FormValue("clear") == "1" || r.FormValue("clear") == "true"
	h, err := s.runner.Submit(i, clearOut)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Infow("job submitted", "movie", s.runner.Movies[i].Path, "job", h.ID, "clear", clearOut)
	writeJSON(w, http.StatusAccepted, map[string]any{"movie": i, "job": h.ID})
}

func (s *Server) abortJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	i, ok := s.movieParam(w, r)
	if !ok {
		return
	}
	if err := s.runner.Abort(i); err != nil {
		if errors.Is(err, runner.ErrNoJob) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"movie": i, "aborted": true})
}

func (s *Server) showQuality(w http.ResponseWriter, r *http.Request) {
	i, ok := s.movieParam(w, r)
	if !ok {
		return
	}
	interval := s.QualityInterval
	if v := r.FormValue("interval"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(w, fmt.Sprintf("invalid interval %q", v))
			return
		}
		interval = n
	}

	q, err := quality.ComputeQuality(tracksdb.NewTracks(s.runner.OutPath(i)), interval)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		writeJSONError(w, http.StatusNotFound, "no tracks for movie "+strconv.Itoa(i))
		return
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := quality.ChartQuality(q, s.runner.Movies[i].Name(), w); err != nil {
		s.log.Warnw("render quality chart", "movie", i, "error", err)
	}
}

// ListenAndServe serves handler on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}
	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("HTTP server listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
