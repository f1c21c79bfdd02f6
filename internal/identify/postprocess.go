package identify

import (
	"github.com/banshee-data/bigtracks/internal/config"
	"github.com/banshee-data/bigtracks/internal/neighbors"
)

// maxGroup bounds how many features (including the first) merge at once.
const maxGroup = 6

// Postprocess applies the standard cuts to identified features: Rg2 at
// most maxrg, position strictly inside win (when non-nil), and merging of
// features closer than merge_cutoff (when positive).
func Postprocess(feats []Feature, p *config.TrackingParams, win *config.Window) []Feature {
	maxrg := p.GetMaxRG()
	out := make([]Feature, 0, len(feats))
	for _, f := range feats {
		if !(f.Rg2 <= maxrg) {
			continue
		}
		if win != nil && !win.Contains(f.X, f.Y) {
			continue
		}
		out = append(out, f)
	}
	if cutoff := p.GetMergeCutoff(); cutoff > 0 {
		return MergeGroups(out, cutoff)
	}
	return out
}

// MergeGroups merges features lying within cutoff of each other. Features
// are visited in order; each unmerged feature gathers up to five unmerged
// neighbours closer than cutoff, takes their mean position and summed
// intensity, and the neighbours are dropped. The surviving feature keeps
// its own Rg2. Extended clusters may not merge completely if a feature at the edge
// of the cluster is visited first.
func MergeGroups(feats []Feature, cutoff float64) []Feature {
	n := len(feats)
	if n == 0 {
		return feats
	}
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, f := range feats {
		xs[i], ys[i] = f.X, f.Y
	}
	ix := neighbors.New(xs, ys)

	work := append([]Feature(nil), feats...)
	merged := make([]bool, n)
	cut2 := cutoff * cutoff

	for i := range work {
		if merged[i] {
			continue
		}
		var group []int
		for _, h := range ix.NearestWithin(xs[i], ys[i], cutoff, maxGroup) {
			if h.Dist2 < cut2 && !merged[h.ID] {
				group = append(group, h.ID)
			}
		}
		if len(group) < 2 {
			continue
		}
		var sx, sy, sm float64
		for _, j := range group {
			sx += work[j].X
			sy += work[j].Y
			sm += work[j].Intensity
		}
		k := float64(len(group))
		work[i].X, work[i].Y, work[i].Intensity = sx/k, sy/k, sm
		for _, j := range group {
			if j != i {
				merged[j] = true
			}
		}
	}

	out := make([]Feature, 0, n)
	for i, f := range work {
		if !merged[i] {
			out = append(out, f)
		}
	}
	return out
}
