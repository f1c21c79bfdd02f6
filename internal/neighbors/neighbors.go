// Package neighbors answers fixed-radius nearest-neighbour queries over 2-D
// points using gonum's k-d tree.
package neighbors

import (
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// site is one indexed point. Distance is squared Euclidean, matching the
// convention of kdtree.Point.
type site struct {
	x, y float64
	id   int
}

func (s site) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(site)
	if d == 0 {
		return s.x - q.x
	}
	return s.y - q.y
}

func (s site) Dims() int { return 2 }

func (s site) Distance(c kdtree.Comparable) float64 {
	q := c.(site)
	dx, dy := s.x-q.x, s.y-q.y
	return dx*dx + dy*dy
}

type sites []site

func (p sites) Index(i int) kdtree.Comparable { return p[i] }
func (p sites) Len() int                      { return len(p) }
func (p sites) Pivot(d kdtree.Dim) int        { return plane{sites: p, dim: d}.Pivot() }
func (p sites) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

// plane sorts sites along one dimension for median partitioning.
type plane struct {
	sites
	dim kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	if p.dim == 0 {
		return p.sites[i].x < p.sites[j].x
	}
	return p.sites[i].y < p.sites[j].y
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.sites = p.sites[start:end]
	return p
}
func (p plane) Swap(i, j int) { p.sites[i], p.sites[j] = p.sites[j], p.sites[i] }

// Hit is one neighbour found by a query.
type Hit struct {
	ID    int     // index of the point in the slice passed to New
	Dist2 float64 // squared distance to the query point
}

// Index is a static set of points.
type Index struct {
	tree *kdtree.Tree
	n    int
}

// New indexes the points (xs[i], ys[i]); hits report i as their ID.
func New(xs, ys []float64) *Index {
	if len(xs) != len(ys) {
		panic("neighbors: coordinate slices differ in length")
	}
	if len(xs) == 0 {
		return &Index{}
	}
	pts := make(sites, len(xs))
	for i := range xs {
		pts[i] = site{x: xs[i], y: ys[i], id: i}
	}
	return &Index{tree: kdtree.New(pts, false), n: len(pts)}
}

// Len returns the number of indexed points.
func (ix *Index) Len() int { return ix.n }

// Within returns every point no farther than r from (x, y), nearest first.
// Ties are broken by ID so results are deterministic.
func (ix *Index) Within(x, y, r float64) []Hit {
	if ix.tree == nil || r < 0 {
		return nil
	}
	keep := kdtree.NewDistKeeper(r * r)
	ix.tree.NearestSet(keep, site{x: x, y: y, id: -1})

	hits := make([]Hit, 0, len(keep.Heap))
	for _, cd := range keep.Heap {
		if cd.Comparable == nil {
			continue // sentinel
		}
		hits = append(hits, Hit{ID: cd.Comparable.(site).id, Dist2: cd.Dist})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Dist2 != hits[j].Dist2 {
			return hits[i].Dist2 < hits[j].Dist2
		}
		return hits[i].ID < hits[j].ID
	})
	return hits
}

// NearestWithin returns at most k points within r of (x, y), nearest first.
func (ix *Index) NearestWithin(x, y, r float64, k int) []Hit {
	hits := ix.Within(x, y, r)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
