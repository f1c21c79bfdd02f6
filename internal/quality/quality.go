// Package quality summarises how well particles were tracked across a
// movie: how the particle count drifts and how many of the first frame's
// particles keep their identity.
package quality

import (
	"errors"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/bigtracks/internal/tracksdb"
)

// Sample is the quality of one frame.
type Sample struct {
	Frame      int `json:"frame"`
	N          int `json:"n"`          // particles in the frame
	NConserved int `json:"nconserved"` // of those, particles also in the first sampled frame
}

// Quality is a series of samples, first sample first.
type Quality struct {
	Samples []Sample `json:"samples"`
}

// ComputeQuality samples every frameInterval-th frame of the file.
func ComputeQuality(t *tracksdb.Tracks, frameInterval int) (*Quality, error) {
	if frameInterval < 1 {
		return nil, errors.New("frame interval must be at least 1")
	}
	q := &Quality{}
	err := t.With(func() error {
		frames, err := t.FrameRange()
		if err != nil {
			return err
		}
		var first map[int64]bool
		for i := 0; i < len(frames); i += frameInterval {
			rows, err := t.GetFrame(frames[i])
			if err != nil {
				return err
			}
			if first == nil {
				first = make(map[int64]bool, len(rows))
				for _, r := range rows {
					first[r.Particle] = true
				}
			}
			s := Sample{Frame: frames[i], N: len(rows)}
			for _, r := range rows {
				if first[r.Particle] {
					s.NConserved++
				}
			}
			q.Samples = append(q.Samples, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// N0 is the particle count of the first sample.
func (q *Quality) N0() int {
	if len(q.Samples) == 0 {
		return 0
	}
	return q.Samples[0].N
}

// Drift returns (N - N0) / N0 per sample.
func (q *Quality) Drift() []float64 {
	n0 := float64(q.N0())
	out := make([]float64, len(q.Samples))
	for i, s := range q.Samples {
		out[i] = (float64(s.N) - n0) / n0
	}
	return out
}

// Dropped returns the fraction of the first frame's particles lost by each
// sample, -(NConserved - N0) / N0.
func (q *Quality) Dropped() []float64 {
	n0 := float64(q.N0())
	out := make([]float64, len(q.Samples))
	for i, s := range q.Samples {
		out[i] = -(float64(s.NConserved) - n0) / n0
	}
	return out
}

// CountStats returns the mean and standard deviation of N over the
// samples.
func (q *Quality) CountStats() (mean, std float64) {
	ns := make([]float64, len(q.Samples))
	for i, s := range q.Samples {
		ns[i] = float64(s.N)
	}
	return stat.MeanStdDev(ns, nil)
}
