package identify

import (
	"github.com/banshee-data/bigtracks/internal/config"
	"github.com/banshee-data/bigtracks/internal/imageio"
)

// Basic is the band-pass / sub-pixel centroid identifier. It reads
// featsize, bphigh, bplow and threshold from p.
func Basic(im *imageio.Frame, p *config.TrackingParams, win *config.Window) ([]Feature, error) {
	featsize := p.GetFeatSize()

	bp := BandPass(im, p.GetBPLow(), p.GetBPHigh())
	peaks := FindLocalMax(bp, featsize, p.GetThreshold())
	peaks = LocalMaxCrop(bp, peaks, featsize)
	feats := SubpixelCentroid(bp, peaks, featsize)
	return Postprocess(feats, p, win), nil
}
