package main

import (
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/banshee-data/bigtracks/internal/config"
	"github.com/banshee-data/bigtracks/internal/quality"
	"github.com/banshee-data/bigtracks/internal/testutil"
	"github.com/banshee-data/bigtracks/internal/track"
	"github.com/banshee-data/bigtracks/internal/tracksdb"
)

func handleTrack(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("track", flag.ContinueOnError)
	out := fs.String("o", tracksdb.DefaultFilename, "Output tracks database (must not exist)")
	paramsPath := fs.String("params", config.DefaultParamsFilename, "Tracking parameter file")
	windowPath := fs.String("window", "", "Window file limiting frames and area")
	statusPath := fs.String("status", "", "Status file updated every frame")
	progress := fs.Bool("progress", false, "Log progress every frame")
	prefetch := fs.Int("prefetch", track.DefaultPrefetch, "Frames identified ahead of linking")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := parseFlags(fs, args, 1, "[options] frame...\n\nFrames are numbered from 1 in the order given."); err != nil {
		return err
	}

	log := newLogger(*debug)
	defer log.Sync()

	p, err := config.LoadParams(*paramsPath)
	if err != nil {
		return err
	}
	files := fs.Args()
	opts := track.Options{
		StatusPath: *statusPath,
		Progress:   *progress,
		Logger:     log,
		Prefetch:   *prefetch,
	}
	if *windowPath != "" {
		win, err := config.LoadWindow(*windowPath)
		if err != nil {
			return err
		}
		opts.Window = &win
		opts.SelectFrames = win.Frames(len(files))
	}

	ctx, cancel := signalContext()
	defer cancel()
	res, err := track.Track2Disk(ctx, files, *out, p, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Tracked %d frames, %d rows, into %s (run %s)\n", res.Frames, res.Rows, *out, res.RunID)
	return nil
}

func handleIdentify(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("identify", flag.ContinueOnError)
	paramsPath := fs.String("params", config.DefaultParamsFilename, "Tracking parameter file")
	windowPath := fs.String("window", "", "Window file limiting the area")
	if err := parseFlags(fs, args, 1, "[options] image"); err != nil {
		return err
	}

	p, err := config.LoadParams(*paramsPath)
	if err != nil {
		return err
	}
	var win *config.Window
	if *windowPath != "" {
		w, err := config.LoadWindow(*windowPath)
		if err != nil {
			return err
		}
		win = &w
	}
	feats, err := track.IdentifyFrameFile(fs.Arg(0), p, win)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "x\ty\tintensity\trg2")
	for _, f := range feats {
		fmt.Fprintf(tw, "%.3f\t%.3f\t%.4g\t%.4g\n", f.X, f.Y, f.Intensity, f.Rg2)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d features\n", len(feats))
	return nil
}

func handleIndex(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("index", flag.ContinueOnError)
	if err := parseFlags(fs, args, 1, "tracks.db..."); err != nil {
		return err
	}
	for _, path := range fs.Args() {
		if err := tracksdb.CreateIndices(path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(stdout, "Indexed %s\n", path)
	}
	return nil
}

func handleQuality(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("quality", flag.ContinueOnError)
	interval := fs.Int("interval", 10, "Sample every Nth frame")
	pngPath := fs.String("png", "", "Write a plot to this PNG file")
	htmlPath := fs.String("html", "", "Write an interactive chart to this HTML file")
	if err := parseFlags(fs, args, 1, "[options] tracks.db"); err != nil {
		return err
	}

	path := fs.Arg(0)
	q, err := quality.ComputeQuality(tracksdb.NewTracks(path), *interval)
	if err != nil {
		return err
	}
	if len(q.Samples) == 0 {
		return fmt.Errorf("%s: %w", path, tracksdb.ErrEmpty)
	}

	mean, std := q.CountStats()
	last := q.Samples[len(q.Samples)-1]
	fmt.Fprintf(stdout, "Frames %d-%d, %d samples\n", q.Samples[0].Frame, last.Frame, len(q.Samples))
	fmt.Fprintf(stdout, "Particles per frame: %.1f +/- %.1f (first %d, last %d)\n", mean, std, q.N0(), last.N)
	fmt.Fprintf(stdout, "Still tracked at the end: %d of %d\n", last.NConserved, q.N0())

	if *pngPath != "" {
		if err := quality.PlotQuality(q, *pngPath); err != nil {
			return err
		}
	}
	if *htmlPath != "" {
		if err := writeChart(q, path, *htmlPath); err != nil {
			return err
		}
	}
	return nil
}

func handleFake(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("fake", flag.ContinueOnError)
	n := fs.Int("n", 10, "Number of frames")
	dark := fs.Bool("dark", false, "Dark particles on a light background")
	if err := parseFlags(fs, args, 1, "[options] dir"); err != nil {
		return err
	}
	m, err := testutil.WriteFakeMovie(fs.Arg(0), *n, *dark)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %d frames with %d particles to %s\n", len(m.Files), m.NParticles, m.Dir)
	return nil
}
