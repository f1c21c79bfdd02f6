// Package testutil provides shared test fixtures: synthetic particle
// images and movies with known particle positions.
package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/bigtracks/internal/imageio"
)

// FakeImage renders particles on a lattice spaced 20 px apart, each moved
// by up to maxdisp from its mean position. posSeed fixes the lattice
// pairing; vary motionSeed per frame to get new displacements. Particles
// are Gaussian blobs (peak 1) on a dark background in a frame of
// (size+40)² pixels.
func FakeImage(motionSeed, posSeed int64, size int, maxdisp float64) (xs, ys []float64, frame *imageio.Frame) {
	const pad = 40

	var xl, yl []float64
	for v := 10; v < size; v += 20 {
		xl = append(xl, float64(v))
		yl = append(yl, float64(v))
	}
	prng := rand.New(rand.NewSource(posSeed))
	prng.Shuffle(len(xl), func(i, j int) { xl[i], xl[j] = xl[j], xl[i] })
	prng.Shuffle(len(yl), func(i, j int) { yl[i], yl[j] = yl[j], yl[i] })

	mrng := rand.New(rand.NewSource(motionSeed))
	xs = make([]float64, len(xl))
	ys = make([]float64, len(yl))
	for i := range xl {
		xs[i] = xl[i] + (mrng.Float64()-0.5)*2*maxdisp + pad/2
		ys[i] = yl[i] + (mrng.Float64()-0.5)*2*maxdisp + pad/2
	}

	frame = RenderBlobs(size+pad, size+pad, xs, ys, 2.5)
	return xs, ys, frame
}

// RenderBlobs draws unit-height Gaussian blobs of the given half width at
// half maximum at (xs[i], ys[i]).
func RenderBlobs(w, h int, xs, ys []float64, hwhm float64) *imageio.Frame {
	sigma := hwhm / math.Sqrt(2*math.Ln2)
	r := int(math.Ceil(4 * sigma))
	f := imageio.NewFrame(w, h)
	for i := range xs {
		cx, cy := int(math.Round(xs[i])), int(math.Round(ys[i]))
		for y := cy - r; y <= cy+r; y++ {
			for x := cx - r; x <= cx+r; x++ {
				if x < 0 || y < 0 || x >= w || y >= h {
					continue
				}
				dx, dy := float64(x)-xs[i], float64(y)-ys[i]
				v := f.At(x, y) + math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))
				f.Set(x, y, math.Min(v, 1))
			}
		}
	}
	return f
}

// Movie describes a synthetic movie written to disk.
type Movie struct {
	Dir        string
	Files      []string
	NParticles int
	X, Y       [][]float64 // true positions per frame
}

// WriteFakeMovie writes nframes frames named bttest_NNNN.png into dir.
// With dark set, particles are dark on a light background.
func WriteFakeMovie(dir string, nframes int, dark bool) (*Movie, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	m := &Movie{Dir: dir}
	for i := 0; i < nframes; i++ {
		xs, ys, frame := FakeImage(int64(i), 314, 200, 3)
		if dark {
			frame = frame.Invert()
		}
		path := filepath.Join(dir, fmt.Sprintf("bttest_%04d.png", i))
		if err := imageio.WritePNG16(path, frame); err != nil {
			return nil, err
		}
		m.Files = append(m.Files, path)
		m.X = append(m.X, xs)
		m.Y = append(m.Y, ys)
		m.NParticles = len(xs)
	}
	return m, nil
}

// MustFakeMovie is WriteFakeMovie for tests.
func MustFakeMovie(t testing.TB, dir string, nframes int, dark bool) *Movie {
	t.Helper()
	m, err := WriteFakeMovie(dir, nframes, dark)
	if err != nil {
		t.Fatalf("write fake movie: %v", err)
	}
	return m
}
