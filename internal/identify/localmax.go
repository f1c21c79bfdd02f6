package identify

import "github.com/banshee-data/bigtracks/internal/imageio"

// discOffsets lists the integer offsets within radius r of the origin.
func discOffsets(r int) []Peak {
	var offs []Peak
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				offs = append(offs, Peak{X: dx, Y: dy})
			}
		}
	}
	return offs
}

// FindLocalMax returns pixels that equal the maximum over a disc of the
// given radius around them and exceed threshold, in row-major order.
func FindLocalMax(f *imageio.Frame, radius int, threshold float64) []Peak {
	offs := discOffsets(radius)
	var peaks []Peak
	for y := 0; y < f.H; y++ {
	pixel:
		for x := 0; x < f.W; x++ {
			v := f.Pix[y*f.W+x]
			if !(v > threshold) {
				continue
			}
			for _, o := range offs {
				nx, ny := x+o.X, y+o.Y
				if nx < 0 || ny < 0 || nx >= f.W || ny >= f.H {
					continue
				}
				if f.Pix[ny*f.W+nx] > v {
					continue pixel
				}
			}
			peaks = append(peaks, Peak{X: x, Y: y})
		}
	}
	return peaks
}

// LocalMaxCrop drops peaks closer than margin to any edge of f, where a
// centroid mask of that radius would not fit.
func LocalMaxCrop(f *imageio.Frame, peaks []Peak, margin int) []Peak {
	out := peaks[:0:0]
	for _, p := range peaks {
		if p.X < margin || p.Y < margin || p.X >= f.W-margin || p.Y >= f.H-margin {
			continue
		}
		out = append(out, p)
	}
	return out
}
