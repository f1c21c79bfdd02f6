package track

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/banshee-data/bigtracks/internal/config"
	"github.com/banshee-data/bigtracks/internal/fsutil"
	"github.com/banshee-data/bigtracks/internal/linking"
	"github.com/banshee-data/bigtracks/internal/monitoring"
	"github.com/banshee-data/bigtracks/internal/status"
	"github.com/banshee-data/bigtracks/internal/timeutil"
	"github.com/banshee-data/bigtracks/internal/tracksdb"
	"github.com/banshee-data/bigtracks/internal/version"
)

// Options adjust Track2Disk. The zero value tracks every frame with no
// status file and no progress output.
type Options struct {
	// SelectFrames lists the frame numbers to track, counting from 1.
	// Nil means all frames.
	SelectFrames []int
	// Window crops identified features; nil means no cropping.
	Window *config.Window
	// StatusPath, when set, is a JSON status file updated every frame.
	StatusPath string
	// WorkingDir is reported in the status file. Defaults to the
	// directory of the output file.
	WorkingDir string
	// Progress logs one line per frame.
	Progress bool
	Logger   *zap.SugaredLogger
	Clock    timeutil.Clock
	FS       fsutil.FileSystem // for the status file
	// Prefetch is how many frames are identified ahead of linking.
	Prefetch int
}

// Result summarises a finished run.
type Result struct {
	Frames int
	Rows   int
	RunID  string
}

// Track2Disk identifies and links particles in imgFiles and writes the
// tracks to a new database at outPath. It refuses to overwrite an existing
// file, checking both before starting and when the file is created with
// the first frame. Indices are built at the end; the database is closed on
// every path. If ctx is cancelled the partial database is left in place
// and the status is "aborted".
func Track2Disk(ctx context.Context, imgFiles []string, outPath string, p *config.TrackingParams, opts Options) (res Result, err error) {
	log := monitoring.OrNop(opts.Logger)
	clock := timeutil.Or(opts.Clock)

	if _, statErr := os.Stat(outPath); statErr == nil {
		return res, fmt.Errorf("%w: %s", tracksdb.ErrExists, outPath)
	}
	if err := p.ValidateForTracking(); err != nil {
		return res, err
	}
	pairs, err := Pairs(imgFiles, opts.SelectFrames)
	if err != nil {
		return res, err
	}
	linker, err := linking.NewLinker(p.GetMaxDisp(), p.GetMemory())
	if err != nil {
		return res, err
	}

	var (
		sw *status.Stopwatch
		sf *status.File
	)
	report := func(info status.Info) {
		if sf == nil {
			return
		}
		if err := sf.Update(info); err != nil {
			log.Warnf("status file %s: %v", sf.Path, err)
		}
	}
	if opts.StatusPath != "" {
		wd := opts.WorkingDir
		if wd == "" {
			if abs, err := filepath.Abs(outPath); err == nil {
				wd = filepath.Dir(abs)
			}
		}
		sw = status.NewStopwatch(clock)
		sf = status.NewFileFS(opts.FS, opts.StatusPath, status.Info{
			"totalframes": len(pairs),
			"outfile":     outPath,
			"working_dir": wd,
			"process_id":  os.Getpid(),
			"started":     sw.Started,
		})
		report(status.Info{"status": status.Starting})
	}

	var w *tracksdb.Writer
	defer func() {
		if w != nil {
			if cerr := w.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			report(status.Info{"status": status.Aborted, "error": err.Error()})
		default:
			report(status.Info{"status": status.Failed, "error": err.Error()})
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	prefetch := opts.Prefetch
	if prefetch == 0 {
		prefetch = DefaultPrefetch
	}

	paths := make(map[int]string, len(pairs))
	for _, fp := range pairs {
		paths[fp.Frame] = fp.Path
	}

	for ff := range FeatureIter(ctx, pairs, p, opts.Window, prefetch) {
		if ff.Err != nil {
			return res, fmt.Errorf("frame %d: %w", ff.Frame, ff.Err)
		}
		ids := linker.Link(ff.Features)

		if sw != nil {
			sw.Lap()
			report(status.Info{
				"status":            status.Working,
				"mr_frame":          ff.Frame,
				"mr_imgfile":        paths[ff.Frame],
				"nparticles":        len(ff.Features),
				"seconds_per_frame": status.Seconds(sw.MeanLapTime()),
				"elapsed_time":      status.FormatDuration(sw.Elapsed()),
				"time_left":         sw.TimeLeft(len(pairs)),
			})
		}
		if opts.Progress {
			log.Infof("%d particles in frame %d of %d: %s", len(ff.Features), ff.Frame, len(pairs), paths[ff.Frame])
		}

		if w == nil {
			if w, err = tracksdb.Create(outPath); err != nil {
				w = nil
				return res, err
			}
			if res.RunID, err = w.StartRun(ctx, p, version.String(), clock.Now()); err != nil {
				return res, err
			}
		}
		rows := make([]tracksdb.Row, len(ff.Features))
		for i, f := range ff.Features {
			rows[i] = tracksdb.Row{
				Frame:     float64(ff.Frame),
				Particle:  int64(ids[i]),
				X:         f.X,
				Y:         f.Y,
				Intensity: f.Intensity,
				Rg2:       f.Rg2,
			}
		}
		if err := w.AppendFrame(ctx, rows); err != nil {
			return res, err
		}
		res.Frames++
		res.Rows += len(rows)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	if sw != nil {
		report(status.Info{
			"status":            status.Finishing,
			"elapsed_time":      status.FormatDuration(sw.Elapsed()),
			"seconds_per_frame": status.Seconds(sw.MeanLapTime()),
		})
	}
	if w != nil {
		if err := w.CreateIndices(); err != nil {
			return res, fmt.Errorf("create indices: %w", err)
		}
		if err := w.FinishRun(ctx, clock.Now(), res.Frames); err != nil {
			return res, err
		}
		err = w.Close()
		w = nil
		if err != nil {
			return res, err
		}
	}
	if sw != nil {
		report(status.Info{
			"status":            status.Done,
			"elapsed_time":      status.FormatDuration(sw.Elapsed()),
			"seconds_per_frame": status.Seconds(sw.MeanLapTime()),
		})
	}
	log.Debugw("tracking finished", "outfile", outPath, "frames", res.Frames, "rows", res.Rows)
	return res, nil
}
