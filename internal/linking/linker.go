// Package linking joins features in successive frames into particle
// trajectories.
package linking

import (
	"context"
	"errors"
	"sort"

	"github.com/banshee-data/bigtracks/internal/identify"
	"github.com/banshee-data/bigtracks/internal/neighbors"
)

// ErrSearchRange is returned for a non-positive search range.
var ErrSearchRange = errors.New("linking: search range must be positive")

// track is a trajectory that may still receive features.
type track struct {
	id       int
	x, y     float64
	lastStep int
}

// Linker assigns particle ids to the features of one frame at a time.
// Candidate links join a live track to a feature closer than SearchRange;
// among the candidates the assignment with the least summed squared
// displacement wins, where leaving a track unlinked costs SearchRange².
// Features left over start new tracks. Ids count from 0 in order of
// creation.
type Linker struct {
	SearchRange float64
	// Memory is how many link steps a particle may be missing and still
	// keep its id.
	Memory int

	step   int
	nextID int
	live   []track
}

// NewLinker validates the search range.
func NewLinker(searchRange float64, memory int) (*Linker, error) {
	if !(searchRange > 0) {
		return nil, ErrSearchRange
	}
	if memory < 0 {
		memory = 0
	}
	return &Linker{SearchRange: searchRange, Memory: memory}, nil
}

// Link returns a particle id for each feature of the next frame.
func (l *Linker) Link(feats []identify.Feature) []int {
	l.step++
	l.expire()

	ids := make([]int, len(feats))
	for i := range ids {
		ids[i] = -1
	}

	if len(l.live) > 0 && len(feats) > 0 {
		l.linkSubnets(feats, ids)
	}

	for i, f := range feats {
		if ids[i] < 0 {
			ids[i] = l.nextID
			l.nextID++
			l.live = append(l.live, track{id: ids[i], x: f.X, y: f.Y, lastStep: l.step})
		}
	}
	return ids
}

// expire drops tracks last seen more than Memory+1 steps ago.
func (l *Linker) expire() {
	kept := l.live[:0]
	for _, t := range l.live {
		if l.step-t.lastStep <= l.Memory+1 {
			kept = append(kept, t)
		}
	}
	l.live = kept
}

// linkSubnets splits candidate links into independent subnetworks and
// solves each one.
func (l *Linker) linkSubnets(feats []identify.Feature, ids []int) {
	xs := make([]float64, len(feats))
	ys := make([]float64, len(feats))
	for i, f := range feats {
		xs[i], ys[i] = f.X, f.Y
	}
	ix := neighbors.New(xs, ys)
	r2 := l.SearchRange * l.SearchRange

	nt := len(l.live)
	uf := newUnionFind(nt + len(feats))
	cands := make([][]neighbors.Hit, nt)
	for ti, t := range l.live {
		for _, h := range ix.Within(t.x, t.y, l.SearchRange) {
			if h.Dist2 < r2 {
				cands[ti] = append(cands[ti], h)
				uf.union(ti, nt+h.ID)
			}
		}
	}

	type subnet struct{ tracks, feats []int }
	nets := map[int]*subnet{}
	var roots []int
	get := func(root int) *subnet {
		s, ok := nets[root]
		if !ok {
			s = &subnet{}
			nets[root] = s
			roots = append(roots, root)
		}
		return s
	}
	for ti := range l.live {
		if len(cands[ti]) > 0 {
			s := get(uf.find(ti))
			s.tracks = append(s.tracks, ti)
		}
	}
	for fi := range feats {
		root := uf.find(nt + fi)
		if s, ok := nets[root]; ok {
			s.feats = append(s.feats, fi)
		}
	}
	sort.Ints(roots)

	for _, root := range roots {
		s := nets[root]
		if len(s.tracks) == 1 && len(s.feats) == 1 {
			l.claim(s.tracks[0], s.feats[0], feats, ids)
			continue
		}
		l.solve(s.tracks, s.feats, cands, feats, ids)
	}
}

// solve finds the least-cost assignment within one subnetwork. Each track
// has a private "unlinked" column costing SearchRange², so every track can
// always be placed and forbidden entries are never needed.
func (l *Linker) solve(tracks, fidx []int, cands [][]neighbors.Hit, feats []identify.Feature, ids []int) {
	r2 := l.SearchRange * l.SearchRange
	forbidden := r2*float64(len(tracks)+1) + 1
	col := make(map[int]int, len(fidx))
	for j, fi := range fidx {
		col[fi] = j
	}

	cost := make([][]float64, len(tracks))
	for i, ti := range tracks {
		row := make([]float64, len(fidx)+len(tracks))
		for j := range row {
			row[j] = forbidden
		}
		for _, h := range cands[ti] {
			row[col[h.ID]] = h.Dist2
		}
		row[len(fidx)+i] = r2
		cost[i] = row
	}

	for i, j := range assign(cost, forbidden) {
		if j >= 0 && j < len(fidx) {
			l.claim(tracks[i], fidx[j], feats, ids)
		}
	}
}

func (l *Linker) claim(ti, fi int, feats []identify.Feature, ids []int) {
	t := &l.live[ti]
	ids[fi] = t.id
	t.x, t.y = feats[fi].X, feats[fi].Y
	t.lastStep = l.step
}

// Live returns the number of tracks that can still be linked.
func (l *Linker) Live() int { return len(l.live) }

type unionFind []int

func newUnionFind(n int) unionFind {
	u := make(unionFind, n)
	for i := range u {
		u[i] = i
	}
	return u
}

func (u unionFind) find(i int) int {
	for u[i] != i {
		u[i] = u[u[i]]
		i = u[i]
	}
	return i
}

func (u unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u[max(ra, rb)] = min(ra, rb)
	}
}

// FrameFeatures are the features identified in one frame.
type FrameFeatures struct {
	Frame    int
	Features []identify.Feature
	Err      error
}

// LinkedFrame is a frame's features with their particle ids.
type LinkedFrame struct {
	FrameFeatures
	IDs []int
}

// LinkFrames links a stream of frames. The output channel closes when in
// closes or ctx is cancelled. A frame carrying an error is passed through
// unlinked and ends the stream.
func (l *Linker) LinkFrames(ctx context.Context, in <-chan FrameFeatures) <-chan LinkedFrame {
	out := make(chan LinkedFrame)
	go func() {
		defer close(out)
		for {
			var ff FrameFeatures
			var ok bool
			select {
			case <-ctx.Done():
				return
			case ff, ok = <-in:
				if !ok {
					return
				}
			}
			lf := LinkedFrame{FrameFeatures: ff}
			if ff.Err == nil {
				lf.IDs = l.Link(ff.Features)
			}
			select {
			case <-ctx.Done():
				return
			case out <- lf:
			}
			if ff.Err != nil {
				return
			}
		}
	}()
	return out
}

// LinkAll links whole frames held in memory and returns ids per frame.
func LinkAll(searchRange float64, memory int, frames [][]identify.Feature) ([][]int, error) {
	l, err := NewLinker(searchRange, memory)
	if err != nil {
		return nil, err
	}
	out := make([][]int, len(frames))
	for i, f := range frames {
		out[i] = l.Link(f)
	}
	return out, nil
}
