package runner

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/banshee-data/bigtracks/internal/fsutil"
	"github.com/banshee-data/bigtracks/internal/status"
	"github.com/banshee-data/bigtracks/internal/timeutil"
)

// MinDeadAge is the shortest silence after which a job that has not
// finished is declared dead.
const MinDeadAge = 300 * time.Second

// BoardColumns are the columns of the runner's status board.
var BoardColumns = []string{
	"working_dir", "process_id", "totalframes", "mr_frame", "secs_per_frame",
	"elapsed_time", "time_left", "status", "output", "since_update",
}

// ReadStatuses reads the status file of every movie and reconciles it
// with the presence of its tracks file.
func (r *Runner) ReadStatuses() []status.Info {
	fsys := fsutil.Or(r.FS)
	out := make([]status.Info, len(r.Movies))
	for i := range r.Movies {
		rd := status.Read(fsys, r.Clock, r.StatusPath(i))
		info := rd.Info
		hasOutput := fsys.Exists(r.OutPath(i))
		if hasOutput {
			info["output"] = "yes"
		}
		st, _ := info["status"].(string)
		switch {
		case rd.Found && isDead(st, info["seconds_per_frame"], rd.SinceUpdate):
			info["status"] = status.Dead
		case !rd.Found && hasOutput:
			info["status"] = status.Confused
		case st == status.Done && !hasOutput:
			info["status"] = status.Waiting
		}
		out[i] = info
	}
	return out
}

// isDead reports whether a job in state st, last heard from age ago,
// has stopped updating. Finished jobs, whether successful or not, are
// never dead.
func isDead(st string, spf any, age time.Duration) bool {
	switch st {
	case status.Done, status.Failed, status.Aborted, status.Confused:
		return false
	}
	limit := MinDeadAge
	if s, ok := spf.(float64); ok && !math.IsNaN(s) {
		if d := time.Duration(10 * s * float64(time.Second)); d > limit {
			limit = d
		}
	}
	return age > limit
}

// StatusBoard tabulates ReadStatuses.
func (r *Runner) StatusBoard() *status.Board {
	rows := r.ReadStatuses()
	for _, row := range rows {
		if v, ok := row["seconds_per_frame"]; ok {
			row["secs_per_frame"] = v
			delete(row, "seconds_per_frame")
		}
	}
	return &status.Board{Columns: BoardColumns, Rows: rows}
}

// Watch prints the status board to out every interval until ctx is
// cancelled, then prints it once more with the time of the last update.
func (r *Runner) Watch(ctx context.Context, interval time.Duration, out io.Writer) error {
	clock := timeutil.Or(r.Clock)
	t := clock.NewTicker(interval)
	defer t.Stop()

	for {
		if err := r.StatusBoard().WriteText(out); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			if err := r.StatusBoard().WriteText(out); err != nil {
				return err
			}
			_, err := fmt.Fprintf(out, "Last update: %s\n", clock.Now().Format(time.ANSIC))
			return err
		case <-t.C():
		}
	}
}
