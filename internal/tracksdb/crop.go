package tracksdb

import (
	"fmt"
	"math"
	"sort"
)

// Crop keeps rows strictly inside the rectangle. Use ±Inf for open sides.
func Crop(rows []Row, xmin, xmax, ymin, ymax float64) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.X > xmin && r.X < xmax && r.Y > ymin && r.Y < ymax {
			out = append(out, r)
		}
	}
	return out
}

// InterpolateTracks returns positions at a possibly fractional frame
// number. Whole frame numbers are read directly. Otherwise positions are
// interpolated linearly between the bracketing frames for particles
// present in both; intensity and rg2 come from the earlier frame. Rows
// with any missing value are dropped. Rows are ordered by particle.
func InterpolateTracks(t *Tracks, fnum float64) ([]Row, error) {
	whole, frac := math.Modf(fnum)
	if frac == 0 {
		return t.GetFrame(int(whole))
	}

	var out []Row
	err := t.With(func() error {
		frames, err := t.FrameRange()
		if err != nil {
			return err
		}
		idx := sort.Search(len(frames), func(i int) bool { return float64(frames[i]) >= fnum })
		if idx == 0 || idx == len(frames) {
			return fmt.Errorf("%w: %g", ErrOutsideData, fnum)
		}
		f0, f1 := frames[idx-1], frames[idx]
		frac := (fnum - float64(f0)) / float64(f1-f0)

		rows0, err := t.GetFrame(f0)
		if err != nil {
			return err
		}
		rows1, err := t.GetFrame(f1)
		if err != nil {
			return err
		}
		next := make(map[int64]Row, len(rows1))
		for _, r := range rows1 {
			next[r.Particle] = r
		}
		for _, r0 := range rows0 {
			r1, ok := next[r0.Particle]
			if !ok {
				continue
			}
			r := r0
			r.Frame = fnum
			r.X = r0.X + (r1.X-r0.X)*frac
			r.Y = r0.Y + (r1.Y-r0.Y)*frac
			if math.IsNaN(r.X) || math.IsNaN(r.Y) || math.IsNaN(r.Intensity) || math.IsNaN(r.Rg2) {
				continue
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Particle < out[j].Particle })
	return out, nil
}
