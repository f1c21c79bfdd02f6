package identify

import (
	"math"

	"github.com/banshee-data/bigtracks/internal/config"
	"github.com/banshee-data/bigtracks/internal/imageio"
	"gonum.org/v1/gonum/floats"
)

// DonutParams configures MixedDonuts. All fields come from the tracking
// parameters of the same (lower-case) names.
type DonutParams struct {
	FeatSize  int     // feature radius in the conventional sense
	Threshold float64 // minimum mean pixel brightness in the original image
	SmWidth   float64 // small Gaussian kernel width
	LgRadius  float64 // annulus radius
	LgWidth   float64 // annulus thickness
	LgWeight  float64 // relative weight of the annulus convolution
	HiPass    int     // background box size
}

func donutParams(p *config.TrackingParams) (DonutParams, error) {
	dp := DonutParams{FeatSize: p.GetFeatSize(), Threshold: p.GetThreshold()}
	var err error
	if dp.SmWidth, err = p.RequireFloat("sm_width"); err != nil {
		return dp, err
	}
	if dp.LgRadius, err = p.RequireFloat("lg_radius"); err != nil {
		return dp, err
	}
	if dp.LgWidth, err = p.RequireFloat("lg_width"); err != nil {
		return dp, err
	}
	if dp.LgWeight, err = p.RequireFloat("lg_weight"); err != nil {
		return dp, err
	}
	hp, err := p.RequireFloat("hipass")
	if err != nil {
		return dp, err
	}
	dp.HiPass = int(hp)
	return dp, nil
}

// DonutDiagnostics holds the intermediate images of a MixedDonuts pass.
type DonutDiagnostics struct {
	KernelSmall, KernelLarge *imageio.Frame
	Uniform                  *imageio.Frame // image relative to its local mean
	ConvSmall, ConvLarge     *imageio.Frame
	Hybrid                   *imageio.Frame // pointwise max of the two convolutions
	Maxima                   *imageio.Frame // smoothed hybrid used for peak finding
	Peaks                    []Peak
	LastBandPass             *imageio.Frame // image used for sub-pixel positions
}

// radialKernel fills a (2fr+1)² kernel with fn(r) and normalises it.
func radialKernel(fr int, fn func(r float64) float64) *imageio.Frame {
	k := imageio.NewFrame(2*fr+1, 2*fr+1)
	for y := -fr; y <= fr; y++ {
		for x := -fr; x <= fr; x++ {
			k.Set(x+fr, y+fr, fn(math.Hypot(float64(x), float64(y))))
		}
	}
	floats.Scale(1/math.Abs(floats.Sum(k.Pix)), k.Pix)
	return k
}

// MixedDonuts identifies a mixture of small Gaussian-like particles and
// larger "donut" particles with a bright optical artifact at the centre.
// The frame is convolved with a Gaussian and with an annulus, the stronger
// response wins at each pixel, and peaks of the hybrid image are refined.
// Masses and Rg2 come from the hybrid image and are only qualitatively
// useful.
func MixedDonuts(im *imageio.Frame, p *config.TrackingParams, win *config.Window) ([]Feature, error) {
	feats, _, err := MixedDonutsDiag(im, p, win)
	return feats, err
}

// MixedDonutsDiag is MixedDonuts that also returns its intermediate images.
func MixedDonutsDiag(im *imageio.Frame, p *config.TrackingParams, win *config.Window) ([]Feature, *DonutDiagnostics, error) {
	dp, err := donutParams(p)
	if err != nil {
		return nil, nil, err
	}

	const (
		peakfindSmooth = 0.5
		subpixLowpass  = 0.7
	)
	peakfindRadius := dp.FeatSize - 1
	subpixHipass := dp.FeatSize - 1
	if subpixHipass < 1 {
		subpixHipass = 1
	}

	fr := int((dp.LgRadius + dp.LgWidth) * 3)
	d := &DonutDiagnostics{
		KernelSmall: radialKernel(fr, func(r float64) float64 {
			return math.Exp(-(r / dp.SmWidth) * (r / dp.SmWidth))
		}),
		KernelLarge: radialKernel(fr, func(r float64) float64 {
			u := (r - dp.LgRadius) / dp.LgWidth
			return math.Exp(-u * u)
		}),
	}

	// Make values relative to the local mean intensity.
	bg := UniformFilter(im, dp.HiPass)
	d.Uniform = im.Clone()
	floats.Sub(d.Uniform.Pix, bg.Pix)

	d.ConvSmall = Convolve(d.Uniform, d.KernelSmall)
	d.ConvLarge = Convolve(d.Uniform, d.KernelLarge)
	d.Hybrid = imageio.NewFrame(im.W, im.H)
	for i := range d.Hybrid.Pix {
		d.Hybrid.Pix[i] = math.Max(d.ConvSmall.Pix[i], d.ConvLarge.Pix[i]*dp.LgWeight)
	}

	// The hybrid image is spiky; light smoothing removes close spurious peaks.
	d.Maxima = GaussianFilter(d.Hybrid, peakfindSmooth)
	d.Peaks = LocalMaxCrop(d.Maxima, FindLocalMax(d.Maxima, peakfindRadius, 1e-15), dp.FeatSize)

	// Positions from a lumpier image; masses and Rg2 from the hybrid.
	d.LastBandPass = BandPass(d.Hybrid, subpixHipass, subpixLowpass)
	pos := SubpixelCentroid(d.LastBandPass, d.Peaks, dp.FeatSize)

	shifted := d.Hybrid.Clone()
	floats.AddConst(-d.Hybrid.Min(), shifted.Pix)
	mass := SubpixelCentroid(shifted, d.Peaks, dp.FeatSize)
	// The threshold applies to the movie's own pixels, before IdentifyFrame
	// turned dark particles into bright ones.
	raw := im
	if !p.GetBright() {
		raw = im.Invert()
	}
	original := SubpixelCentroid(raw, d.Peaks, dp.FeatSize)

	minOriginal := dp.Threshold * math.Pi * float64(dp.FeatSize*dp.FeatSize)
	feats := make([]Feature, 0, len(pos))
	for i := range pos {
		f := Feature{X: pos[i].X, Y: pos[i].Y, Intensity: mass[i].Intensity, Rg2: mass[i].Rg2}
		if math.IsNaN(f.X) || math.IsNaN(f.Y) || math.IsNaN(f.Rg2) {
			continue
		}
		if !(original[i].Intensity >= minOriginal) {
			continue
		}
		feats = append(feats, f)
	}
	return Postprocess(feats, p, win), d, nil
}
