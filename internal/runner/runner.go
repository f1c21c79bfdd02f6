package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/banshee-data/bigtracks/internal/config"
	"github.com/banshee-data/bigtracks/internal/fsutil"
	"github.com/banshee-data/bigtracks/internal/monitoring"
	"github.com/banshee-data/bigtracks/internal/status"
	"github.com/banshee-data/bigtracks/internal/timeutil"
	"github.com/banshee-data/bigtracks/internal/track"
	"github.com/banshee-data/bigtracks/internal/tracksdb"
)

var (
	// ErrNoFrames is returned when a movie's image files cannot be found.
	ErrNoFrames = errors.New("no image files")
	// ErrNoJob is returned by Abort for a movie that was never submitted.
	ErrNoJob = errors.New("no job submitted for movie")
	// ErrMovieIndex is returned for an index outside the movie list.
	ErrMovieIndex = errors.New("movie index out of range")
)

// Job is everything a tracking function needs to process one movie.
type Job struct {
	ID           string
	Index        int
	Movie        MovieDir
	Files        []string
	OutPath      string
	Params       *config.TrackingParams
	SelectFrames []int
	StatusPath   string
	Progress     bool
}

// TrackFunc processes one movie.
type TrackFunc func(ctx context.Context, job Job) error

// Runner tracks a list of movie directories on a bounded pool of
// goroutines. Each movie keeps the handle of its most recent job.
type Runner struct {
	Movies []MovieDir

	// TracksFilename is the output database in each movie directory;
	// missing parent directories are created.
	TracksFilename string
	// QuickParams, when set, is used for every movie instead of reading
	// ParamsFilename from each movie directory.
	QuickParams    *config.TrackingParams
	ParamsFilename string
	// FramesPattern is a glob, relative to the movie directory, matching
	// the image files in frame order.
	FramesPattern string
	// SelectFrames, when set, overrides the frame range in each movie's
	// window file.
	SelectFrames   []int
	WindowFilename string
	StatusFilename string
	// Workers bounds how many movies are tracked at once.
	Workers   int
	TrackFunc TrackFunc

	Clock  timeutil.Clock
	FS     fsutil.FileSystem
	Logger *zap.SugaredLogger

	initOnce sync.Once
	sem      *semaphore.Weighted
	mu       sync.Mutex
	recent   map[int]*JobHandle
	all      []*JobHandle
}

// New returns a runner over dirs with the conventional file names and one
// worker per movie up to workers.
func New(dirs []string, workers int) (*Runner, error) {
	r := &Runner{
		TracksFilename: tracksdb.DefaultFilename,
		ParamsFilename: config.DefaultParamsFilename,
		WindowFilename: config.DefaultWindowFilename,
		StatusFilename: status.DefaultFilename,
		Workers:        workers,
	}
	for _, d := range dirs {
		m, err := NewMovieDir(d)
		if err != nil {
			return nil, err
		}
		r.Movies = append(r.Movies, m)
	}
	return r, nil
}

func (r *Runner) init() {
	r.initOnce.Do(func() {
		w := r.Workers
		if w < 1 {
			w = 1
		}
		r.sem = semaphore.NewWeighted(int64(w))
		r.recent = make(map[int]*JobHandle)
		if r.TrackFunc == nil {
			r.TrackFunc = r.track2Disk
		}
	})
}

func (r *Runner) movie(i int) (MovieDir, error) {
	if i < 0 || i >= len(r.Movies) {
		return MovieDir{}, fmt.Errorf("%w: %d", ErrMovieIndex, i)
	}
	return r.Movies[i], nil
}

// OutPath is the tracks database of movie i.
func (r *Runner) OutPath(i int) string { return r.Movies[i].Join(r.TracksFilename) }

// StatusPath is the status file of movie i.
func (r *Runner) StatusPath(i int) string { return r.Movies[i].Join(r.StatusFilename) }

// PrepareJob decides the parameters, image files and frames for movie i.
func (r *Runner) PrepareJob(i int) (Job, error) {
	mov, err := r.movie(i)
	if err != nil {
		return Job{}, err
	}
	job := Job{
		Index:      i,
		Movie:      mov,
		OutPath:    r.OutPath(i),
		StatusPath: r.StatusPath(i),
	}

	if r.QuickParams != nil {
		job.Params = r.QuickParams
	} else if job.Params, err = config.LoadParams(mov.Join(r.ParamsFilename)); err != nil {
		return Job{}, err
	}

	if r.FramesPattern == "" {
		return Job{}, fmt.Errorf("%w: %s: no frames pattern given", ErrNoFrames, mov.Path)
	}
	job.Files, err = filepath.Glob(mov.Join(r.FramesPattern))
	if err != nil {
		return Job{}, fmt.Errorf("frames pattern %q: %w", r.FramesPattern, err)
	}
	if len(job.Files) == 0 {
		return Job{}, fmt.Errorf("%w: %s matches nothing in %s", ErrNoFrames, r.FramesPattern, mov.Path)
	}
	sort.Strings(job.Files)

	if r.SelectFrames != nil {
		job.SelectFrames = r.SelectFrames
	} else {
		win, err := config.LoadWindow(mov.Join(r.WindowFilename))
		if err != nil {
			return Job{}, err
		}
		job.SelectFrames = win.Frames(len(job.Files))
	}
	return job, nil
}

// track2Disk is the default TrackFunc.
func (r *Runner) track2Disk(ctx context.Context, job Job) error {
	if err := os.MkdirAll(filepath.Dir(job.OutPath), 0o755); err != nil {
		return err
	}
	_, err := track.Track2Disk(ctx, job.Files, job.OutPath, job.Params, track.Options{
		SelectFrames: job.SelectFrames,
		StatusPath:   job.StatusPath,
		WorkingDir:   job.Movie.Path,
		Progress:     job.Progress,
		Logger:       monitoring.OrNop(r.Logger).With("movie", job.Movie.Path, "job", job.ID),
		Clock:        r.Clock,
		FS:           r.FS,
	})
	return err
}

func (r *Runner) clearOutput(i int) error {
	fsys := fsutil.Or(r.FS)
	if err := fsutil.RemoveIfExists(fsys, r.OutPath(i)); err != nil {
		return err
	}
	return fsutil.RemoveIfExists(fsys, r.StatusPath(i))
}

// Submit queues (or re-queues) movie i. With clearOutput the previous
// output and status files are deleted first. The job waits for a free
// worker before it starts.
func (r *Runner) Submit(i int, clearOutput bool) (*JobHandle, error) {
	r.init()
	if _, err := r.movie(i); err != nil {
		return nil, err
	}
	if clearOutput {
		if err := r.clearOutput(i); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &JobHandle{
		ID:     uuid.NewString(),
		Movie:  i,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.mu.Lock()
	r.recent[i] = h
	r.all = append(r.all, h)
	r.mu.Unlock()

	log := monitoring.OrNop(r.Logger)
	go func() {
		defer close(h.done)
		defer cancel()
		if err := r.sem.Acquire(ctx, 1); err != nil {
			h.finish(err)
			return
		}
		defer r.sem.Release(1)
		h.setState(JobRunning)
		err := r.runJob(ctx, i, h.ID, false)
		if err != nil {
			log.Warnw("tracking job failed", "movie", r.Movies[i].Path, "job", h.ID, "error", err)
		} else {
			log.Infow("tracking job finished", "movie", r.Movies[i].Path, "job", h.ID)
		}
		h.finish(err)
	}()
	return h, nil
}

func (r *Runner) runJob(ctx context.Context, i int, id string, progress bool) error {
	job, err := r.PrepareJob(i)
	if err != nil {
		return err
	}
	job.ID = id
	job.Progress = progress
	return r.TrackFunc(ctx, job)
}

// Start submits every movie.
func (r *Runner) Start(clearOutput bool) ([]*JobHandle, error) {
	hs := make([]*JobHandle, 0, len(r.Movies))
	for i := range r.Movies {
		h, err := r.Submit(i, clearOutput)
		if err != nil {
			return hs, err
		}
		hs = append(hs, h)
	}
	return hs, nil
}

// Abort cancels the most recent job for movie i.
func (r *Runner) Abort(i int) error {
	r.init()
	r.mu.Lock()
	h, ok := r.recent[i]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoJob, i)
	}
	h.Abort()
	return nil
}

// Job returns the most recent job for movie i, or nil.
func (r *Runner) Job(i int) *JobHandle {
	r.init()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recent[i]
}

// Run tracks movie i in the calling goroutine, bypassing the pool.
func (r *Runner) Run(ctx context.Context, i int, clearOutput, progress bool) error {
	r.init()
	if _, err := r.movie(i); err != nil {
		return err
	}
	if clearOutput {
		if err := r.clearOutput(i); err != nil {
			return err
		}
	}
	return r.runJob(ctx, i, uuid.NewString(), progress)
}

// Result is the outcome of a movie's most recent job.
type Result struct {
	Movie int
	JobID string
	Err   error
}

// Wait blocks until every submitted job has ended and returns the outcome
// of each movie's most recent job, in movie order.
func (r *Runner) Wait() []Result {
	r.init()
	r.mu.Lock()
	all := append([]*JobHandle(nil), r.all...)
	r.mu.Unlock()
	for _, h := range all {
		<-h.done
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, 0, len(r.recent))
	for i := range r.Movies {
		if h, ok := r.recent[i]; ok {
			out = append(out, Result{Movie: i, JobID: h.ID, Err: h.Err()})
		}
	}
	return out
}
