// Command bigtracks finds particles in movie frames, links them into
// tracks and writes the tracks to a database, for one movie or many.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/banshee-data/bigtracks/internal/monitoring"
	"github.com/banshee-data/bigtracks/internal/version"
)

// errUsage is returned for bad command lines; the usage has already been
// printed.
var errUsage = errors.New("usage error")

func main() {
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	if err := run(flag.Args(), os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) < 1 {
		printUsage(os.Stderr)
		return errUsage
	}
	command, rest := args[0], args[1:]

	switch command {
	case "track":
		return handleTrack(rest, stdout)
	case "identify":
		return handleIdentify(rest, stdout)
	case "run":
		return handleRun(rest, stdout)
	case "status":
		return handleStatus(rest, stdout)
	case "watch":
		return handleWatch(rest, stdout)
	case "index":
		return handleIndex(rest, stdout)
	case "quality":
		return handleQuality(rest, stdout)
	case "serve":
		return handleServe(rest, stdout)
	case "fake":
		return handleFake(rest, stdout)
	case "version":
		fmt.Fprintln(stdout, version.String())
		return nil
	case "help":
		printUsage(stdout)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage(os.Stderr)
		return errUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `bigtracks - particle tracking for large movies

Usage: bigtracks <command> [options] [arguments]

Commands:
  track      Track one movie: bigtracks track [options] frame.png...
  identify   Preview feature identification on one image
  run        Track many movie directories in parallel
  status     Print the status board of movie directories
  watch      Reprint the status board until interrupted
  index      Build the frame and particle indices of a tracks file
  quality    Summarise how well particles were tracked
  serve      Serve the status board, job control and health checks
  fake       Write a synthetic movie for testing
  version    Show the bigtracks version
  help       Show this help message

Each movie directory holds its frames, a bigtracking.toml parameter file
and optionally a window.toml file limiting the frames and the area to use:

  [tracking]                [window]
  featsize = 3              firstframe = 1
  bphigh = 2                lastframe = -1
  threshold = 0.05          xmin = 1
  maxdisp = 2.5             xmax = -1

Examples:
  # Track a movie into bigtracks.db
  bigtracks track -params bigtracking.toml -o bigtracks.db frames/*.png

  # Track every movie under data/, four at a time
  bigtracks run -frames 'frames/*.png' -workers 4 data/*/

  # Keep an eye on them
  bigtracks watch data/*/`)
}

func newLogger(debug bool) *zap.SugaredLogger {
	log, err := monitoring.NewLogger(debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v; logging disabled\n", err)
		return monitoring.OrNop(nil)
	}
	return log
}

// signalContext is cancelled on interrupt or termination.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// parseFlags parses args and requires at least minArgs positional
// arguments.
func parseFlags(fs *flag.FlagSet, args []string, minArgs int, usage string) error {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: bigtracks %s %s\n\n", fs.Name(), usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < minArgs {
		fs.Usage()
		return errUsage
	}
	return nil
}
