package status

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/bigtracks/internal/timeutil"
)

// Stopwatch measures the pace of a job made of laps (frames).
type Stopwatch struct {
	clock   timeutil.Clock
	start   time.Time
	Started string // start time in ctime format
	laps    []time.Time
}

// NewStopwatch starts a stopwatch. A nil clock uses the wall clock.
func NewStopwatch(clock timeutil.Clock) *Stopwatch {
	clock = timeutil.Or(clock)
	now := clock.Now()
	return &Stopwatch{clock: clock, start: now, Started: now.Format(time.ANSIC)}
}

// Lap marks the completion of one lap.
func (s *Stopwatch) Lap() { s.laps = append(s.laps, s.clock.Now()) }

// Laps returns the number of laps so far.
func (s *Stopwatch) Laps() int { return len(s.laps) }

// Elapsed returns the time since the start.
func (s *Stopwatch) Elapsed() time.Duration { return s.clock.Since(s.start) }

// MeanLapTime returns the mean seconds per lap up to the latest lap, or
// NaN before the first.
func (s *Stopwatch) MeanLapTime() float64 {
	if len(s.laps) == 0 {
		return math.NaN()
	}
	return s.laps[len(s.laps)-1].Sub(s.start).Seconds() / float64(len(s.laps))
}

// EstimateCompletion estimates the time left for total laps at the mean
// pace. It reports false when more than total laps have been run or no
// lap has completed.
func (s *Stopwatch) EstimateCompletion(total int) (time.Duration, bool) {
	n := len(s.laps)
	if n > total || n == 0 {
		return 0, false
	}
	secs := s.MeanLapTime() * float64(total-n)
	return time.Duration(secs * float64(time.Second)), true
}

// FormatDuration formats d as HH:MM:SS, rounded to whole seconds. Hours
// may exceed two digits.
func FormatDuration(d time.Duration) string {
	s := int64(math.Round(d.Seconds()))
	sign := ""
	if s < 0 {
		sign, s = "-", -s
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, s/3600, (s%3600)/60, s%60)
}

// TimeLeft formats EstimateCompletion for a status file; an impossible
// estimate is nil.
func (s *Stopwatch) TimeLeft(total int) any {
	d, ok := s.EstimateCompletion(total)
	if !ok {
		return nil
	}
	return FormatDuration(d)
}
