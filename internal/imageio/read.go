package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ErrUnknownDepth is returned when the maximum grey value cannot be guessed
// from the image and none was supplied.
var ErrUnknownDepth = errors.New("can't guess max gray value of image; set maxgray")

// Depth is the sample depth of a decoded image.
type Depth int

const (
	DepthUnknown Depth = 0
	Depth8       Depth = 8
	Depth16      Depth = 16
)

// MaxGray returns the largest sample value representable at depth d.
func (d Depth) MaxGray() float64 {
	switch d {
	case Depth8:
		return 1<<8 - 1
	case Depth16:
		return 1<<16 - 1
	}
	return 0
}

// Read decodes the image at path and normalises it by maxGray. When
// maxGray is 0 it is guessed from the sample depth (255 for 8-bit, 65535
// for 16-bit data). Colour images are reduced to luma.
func Read(path string, maxGray float64) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	frame, err := FromImage(img, maxGray)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return frame, nil
}

// FromImage converts a decoded image to a normalised Frame.
func FromImage(img image.Image, maxGray float64) (*Frame, error) {
	depth := depthOf(img)
	mg := maxGray
	if mg == 0 {
		mg = depth.MaxGray()
		if mg == 0 {
			return nil, ErrUnknownDepth
		}
	}

	b := img.Bounds()
	out := NewFrame(b.Dx(), b.Dy())

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < out.H; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+out.W]
			for x, v := range row {
				out.Pix[y*out.W+x] = float64(v) / mg
			}
		}
		return out, nil
	case *image.Gray16:
		for y := 0; y < out.H; y++ {
			off := y * src.Stride
			for x := 0; x < out.W; x++ {
				v := uint16(src.Pix[off+2*x])<<8 | uint16(src.Pix[off+2*x+1])
				out.Pix[y*out.W+x] = float64(v) / mg
			}
		}
		return out, nil
	}

	for y := 0; y < out.H; y++ {
		for x := 0; x < out.W; x++ {
			g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			raw := float64(g.Y)
			if depth == Depth8 {
				raw = float64(g.Y >> 8)
			}
			out.Pix[y*out.W+x] = raw / mg
		}
	}
	return out, nil
}

func depthOf(img image.Image) Depth {
	switch img.(type) {
	case *image.Gray, *image.RGBA, *image.NRGBA, *image.YCbCr, *image.Paletted, *image.CMYK, *image.Alpha:
		return Depth8
	case *image.Gray16, *image.RGBA64, *image.NRGBA64, *image.Alpha16:
		return Depth16
	}
	return DepthUnknown
}
