package identify

import (
	"math"

	"github.com/banshee-data/bigtracks/internal/imageio"
)

// SubpixelCentroid refines each peak to the intensity-weighted centroid
// over a disc of radius maskRadius. Intensity is the summed brightness in
// the disc and Rg2 the brightness-weighted mean squared distance from the
// peak pixel. A disc with no brightness yields NaN position and Rg2.
func SubpixelCentroid(f *imageio.Frame, peaks []Peak, maskRadius int) []Feature {
	offs := discOffsets(maskRadius)
	out := make([]Feature, len(peaks))
	for i, p := range peaks {
		var m, mx, my, mr2 float64
		for _, o := range offs {
			x, y := p.X+o.X, p.Y+o.Y
			if x < 0 || y < 0 || x >= f.W || y >= f.H {
				continue
			}
			v := f.Pix[y*f.W+x]
			m += v
			mx += v * float64(o.X)
			my += v * float64(o.Y)
			mr2 += v * float64(o.X*o.X+o.Y*o.Y)
		}
		if m == 0 {
			out[i] = Feature{X: math.NaN(), Y: math.NaN(), Rg2: math.NaN()}
			continue
		}
		out[i] = Feature{
			X:         float64(p.X) + mx/m,
			Y:         float64(p.Y) + my/m,
			Intensity: m,
			Rg2:       mr2 / m,
		}
	}
	return out
}
