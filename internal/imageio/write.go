package imageio

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
)

// ToGray16 scales a frame so that scale maps to 65535 and clips the rest.
func ToGray16(f *Frame, scale float64) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, f.W, f.H))
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			v := math.Round(f.At(x, y) / scale * 65535)
			if v < 0 {
				v = 0
			} else if v > 65535 {
				v = 65535
			}
			off := y*img.Stride + 2*x
			img.Pix[off] = uint8(uint16(v) >> 8)
			img.Pix[off+1] = uint8(uint16(v))
		}
	}
	return img
}

// WritePNG16 writes f as a 16-bit greyscale PNG, mapping [0, 1] to the full
// sample range.
func WritePNG16(path string, f *Frame) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(out, ToGray16(f, 1)); err != nil {
		out.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return out.Close()
}
