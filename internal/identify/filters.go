package identify

import (
	"math"

	"github.com/banshee-data/bigtracks/internal/imageio"
	"gonum.org/v1/gonum/floats"
)

// gaussianKernel returns a normalised 1-D Gaussian truncated at 4 sigma.
func gaussianKernel(sigma float64) []float64 {
	radius := int(4*sigma + 0.5)
	if radius < 1 {
		radius = 1
	}
	k := make([]float64, 2*radius+1)
	for i := range k {
		x := float64(i - radius)
		k[i] = math.Exp(-x * x / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
}

// correlate1D applies a centred 1-D kernel along rows (axis 0) or columns
// (axis 1), extending edge pixels.
func correlate1D(f *imageio.Frame, k []float64, lo int, axis int) *imageio.Frame {
	out := imageio.NewFrame(f.W, f.H)
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			var s float64
			for i, w := range k {
				off := lo + i
				if axis == 0 {
					s += w * f.AtClamped(x+off, y)
				} else {
					s += w * f.AtClamped(x, y+off)
				}
			}
			out.Pix[y*f.W+x] = s
		}
	}
	return out
}

// GaussianFilter smooths f with a Gaussian of standard deviation sigma.
func GaussianFilter(f *imageio.Frame, sigma float64) *imageio.Frame {
	k := gaussianKernel(sigma)
	lo := -(len(k) / 2)
	return correlate1D(correlate1D(f, k, lo, 0), k, lo, 1)
}

// UniformFilter replaces each pixel by the mean of the size×size box
// around it.
func UniformFilter(f *imageio.Frame, size int) *imageio.Frame {
	if size < 1 {
		size = 1
	}
	k := make([]float64, size)
	for i := range k {
		k[i] = 1 / float64(size)
	}
	lo := -(size / 2)
	return correlate1D(correlate1D(f, k, lo, 0), k, lo, 1)
}

// Convolve applies a square, point-symmetric kernel centred on each pixel.
func Convolve(f, kernel *imageio.Frame) *imageio.Frame {
	rx, ry := kernel.W/2, kernel.H/2
	out := imageio.NewFrame(f.W, f.H)
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			var s float64
			for ky := 0; ky < kernel.H; ky++ {
				for kx := 0; kx < kernel.W; kx++ {
					w := kernel.Pix[ky*kernel.W+kx]
					if w == 0 {
						continue
					}
					s += w * f.AtClamped(x+kx-rx, y+ky-ry)
				}
			}
			out.Pix[y*f.W+x] = s
		}
	}
	return out
}

// BandPass suppresses pixel noise and slow background variation. The
// image is smoothed by a Gaussian of width lhigh, a boxcar background of
// radius lnoise is subtracted, negative values are clipped to zero and a
// border of lnoise pixels is blanked.
func BandPass(f *imageio.Frame, lnoise int, lhigh float64) *imageio.Frame {
	smooth := GaussianFilter(f, lhigh)
	background := UniformFilter(f, 2*lnoise+1)

	out := imageio.NewFrame(f.W, f.H)
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			if x < lnoise || y < lnoise || x >= f.W-lnoise || y >= f.H-lnoise {
				continue
			}
			i := y*f.W + x
			if v := smooth.Pix[i] - background.Pix[i]; v > 0 {
				out.Pix[i] = v
			}
		}
	}
	return out
}
