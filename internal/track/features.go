// Package track runs the complete tracking pipeline for one movie: image
// files in, a tracks database out.
package track

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/bigtracks/internal/config"
	"github.com/banshee-data/bigtracks/internal/identify"
	"github.com/banshee-data/bigtracks/internal/imageio"
	"github.com/banshee-data/bigtracks/internal/linking"
)

// DefaultPrefetch is how many frames are decoded and identified ahead of
// the linker.
const DefaultPrefetch = 2

// FramePair is a frame number (counting from 1) and its image file.
type FramePair struct {
	Frame int
	Path  string
}

// Pairs numbers files from 1. When selected is non-nil only those frame
// numbers are returned, in the given order.
func Pairs(files []string, selected []int) ([]FramePair, error) {
	if selected == nil {
		out := make([]FramePair, len(files))
		for i, f := range files {
			out[i] = FramePair{Frame: i + 1, Path: f}
		}
		return out, nil
	}
	out := make([]FramePair, 0, len(selected))
	for _, n := range selected {
		if n < 1 || n > len(files) {
			return nil, fmt.Errorf("frame %d is outside the movie (1-%d)", n, len(files))
		}
		out = append(out, FramePair{Frame: n, Path: files[n-1]})
	}
	return out, nil
}

// IdentifyFrameFile reads one image and identifies its features. It is
// the same step the pipeline runs per frame, for previewing parameters.
func IdentifyFrameFile(path string, p *config.TrackingParams, win *config.Window) ([]identify.Feature, error) {
	im, err := imageio.Read(path, p.GetMaxGray())
	if err != nil {
		return nil, err
	}
	feats, err := identify.IdentifyFrame(im, p, win)
	if err != nil {
		return nil, fmt.Errorf("identify %s: %w", path, err)
	}
	return feats, nil
}

// FeatureIter identifies features in each frame, up to prefetch frames
// concurrently, and delivers them in frame order. The channel closes after
// the last frame, after the first frame that failed, or when ctx is
// cancelled.
func FeatureIter(ctx context.Context, pairs []FramePair, p *config.TrackingParams, win *config.Window, prefetch int) <-chan linking.FrameFeatures {
	if prefetch < 1 {
		prefetch = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan linking.FrameFeatures)
	futures := make(chan chan linking.FrameFeatures, prefetch)

	go func() {
		defer close(futures)
		var g errgroup.Group
		g.SetLimit(prefetch)
		defer g.Wait()
		for _, fp := range pairs {
			fut := make(chan linking.FrameFeatures, 1)
			select {
			case futures <- fut:
			case <-ctx.Done():
				return
			}
			g.Go(func() error {
				ff := linking.FrameFeatures{Frame: fp.Frame}
				if err := ctx.Err(); err != nil {
					ff.Err = err
				} else {
					ff.Features, ff.Err = IdentifyFrameFile(fp.Path, p, win)
				}
				fut <- ff
				return nil
			})
		}
	}()

	go func() {
		defer close(out)
		defer cancel()
		for fut := range futures {
			var ff linking.FrameFeatures
			select {
			case ff = <-fut:
			case <-ctx.Done():
				return
			}
			select {
			case out <- ff:
			case <-ctx.Done():
				return
			}
			if ff.Err != nil {
				return
			}
		}
	}()
	return out
}
