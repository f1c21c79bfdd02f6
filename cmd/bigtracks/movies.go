package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/bigtracks/internal/config"
	"github.com/banshee-data/bigtracks/internal/runner"
	"github.com/banshee-data/bigtracks/internal/server"
	"github.com/banshee-data/bigtracks/internal/status"
	"github.com/banshee-data/bigtracks/internal/tracksdb"
)

// movieFlags are the options shared by the commands that work on a list
// of movie directories.
type movieFlags struct {
	frames     *string
	tracks     *string
	params     *string
	window     *string
	statusName *string
	workers    *int
}

func addMovieFlags(fs *flag.FlagSet) *movieFlags {
	return &movieFlags{
		frames:     fs.String("frames", "", "Glob of frame files in each movie directory (required to track)"),
		tracks:     fs.String("tracks", tracksdb.DefaultFilename, "Tracks database name in each movie directory"),
		params:     fs.String("params", config.DefaultParamsFilename, "Parameter file name in each movie directory"),
		window:     fs.String("window", config.DefaultWindowFilename, "Window file name in each movie directory"),
		statusName: fs.String("status", status.DefaultFilename, "Status file name in each movie directory"),
		workers:    fs.Int("workers", 1, "Movies tracked at once"),
	}
}

func (m *movieFlags) runner(dirs []string, log *zap.SugaredLogger) (*runner.Runner, error) {
	r, err := runner.New(dirs, *m.workers)
	if err != nil {
		return nil, err
	}
	r.FramesPattern = *m.frames
	r.TracksFilename = *m.tracks
	r.ParamsFilename = *m.params
	r.WindowFilename = *m.window
	r.StatusFilename = *m.statusName
	r.Logger = log
	return r, nil
}

func handleRun(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	mf := addMovieFlags(fs)
	clearOut := fs.Bool("clear", false, "Delete existing tracks and status files first")
	paramsFile := fs.String("quick-params", "", "Use this parameter file for every movie")
	watch := fs.Duration("watch", 0, "Print the status board at this interval while running")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := parseFlags(fs, args, 1, "[options] moviedir..."); err != nil {
		return err
	}

	log := newLogger(*debug)
	defer log.Sync()
	r, err := mf.runner(fs.Args(), log)
	if err != nil {
		return err
	}
	if *paramsFile != "" {
		if r.QuickParams, err = config.LoadParams(*paramsFile); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()
	if _, err := r.Start(*clearOut); err != nil {
		return err
	}

	finished := make(chan []runner.Result, 1)
	go func() { finished <- r.Wait() }()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	watchDone := make(chan error, 1)
	if *watch > 0 {
		go func() { watchDone <- r.Watch(watchCtx, *watch, stdout) }()
	} else {
		close(watchDone)
	}

	var results []runner.Result
	select {
	case results = <-finished:
	case <-ctx.Done():
		log.Infow("interrupted; aborting jobs")
		for i := range r.Movies {
			_ = r.Abort(i)
		}
		results = <-finished
	}
	stopWatch()
	<-watchDone

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(stdout, "%s: %v\n", r.Movies[res.Movie].Path, res.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d movies failed", failed, len(results))
	}
	fmt.Fprintf(stdout, "Tracked %d movies\n", len(results))
	return nil
}

func handleStatus(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	mf := addMovieFlags(fs)
	html := fs.Bool("html", false, "Print an HTML table")
	if err := parseFlags(fs, args, 1, "[options] moviedir..."); err != nil {
		return err
	}
	r, err := mf.runner(fs.Args(), nil)
	if err != nil {
		return err
	}
	if *html {
		return r.StatusBoard().WriteHTML(stdout)
	}
	return r.StatusBoard().WriteText(stdout)
}

func handleWatch(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	mf := addMovieFlags(fs)
	interval := fs.Duration("interval", 10*time.Second, "Time between updates")
	if err := parseFlags(fs, args, 1, "[options] moviedir..."); err != nil {
		return err
	}
	r, err := mf.runner(fs.Args(), nil)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return r.Watch(ctx, *interval, stdout)
}

func handleServe(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	mf := addMovieFlags(fs)
	listen := fs.String("listen", ":8080", "HTTP listen address")
	grpcListen := fs.String("grpc", ":9090", "gRPC health listen address (empty to disable)")
	sqlMovie := fs.Int("sql", -1, "Serve live SQL debugging for this movie's tracks (index)")
	poll := fs.Duration("poll", 10*time.Second, "Health status refresh interval")
	start := fs.Bool("start", false, "Track every movie on startup")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := parseFlags(fs, args, 1, "[options] moviedir..."); err != nil {
		return err
	}

	log := newLogger(*debug)
	defer log.Sync()
	r, err := mf.runner(fs.Args(), log)
	if err != nil {
		return err
	}
	srv := server.New(r, log)
	mux := srv.ServeMux()
	if *sqlMovie >= 0 {
		db, err := srv.AttachTracksDB(mux, *sqlMovie)
		if err != nil {
			return err
		}
		defer db.Close()
	}
	if *start {
		if _, err := r.Start(false); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(ctx, *listen, srv.LoggingMiddleware(mux))
	})
	if *grpcListen != "" {
		h := srv.NewHealth()
		g.Go(func() error {
			h.Poll(ctx, *poll)
			return nil
		})
		g.Go(func() error { return h.ServeGRPC(ctx, *grpcListen) })
	}
	fmt.Fprintf(stdout, "Serving %d movies on %s\n", len(r.Movies), *listen)
	err = g.Wait()
	for i := range r.Movies {
		_ = r.Abort(i)
	}
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
