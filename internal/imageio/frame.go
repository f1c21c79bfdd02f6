// Package imageio loads movie frames as normalised greyscale arrays and
// writes synthetic frames back out.
package imageio

import "fmt"

// Frame is a greyscale image stored row-major. Values are normally in
// [0, 1] after Read, but filters may produce any float.
type Frame struct {
	W, H int
	Pix  []float64
}

// NewFrame allocates a zeroed w×h frame.
func NewFrame(w, h int) *Frame {
	return &Frame{W: w, H: h, Pix: make([]float64, w*h)}
}

// At returns the value at column x, row y.
func (f *Frame) At(x, y int) float64 { return f.Pix[y*f.W+x] }

// Set stores v at column x, row y.
func (f *Frame) Set(x, y int, v float64) { f.Pix[y*f.W+x] = v }

// AtClamped returns the value at (x, y) with coordinates clamped to the
// frame, i.e. edge pixels extend outward.
func (f *Frame) AtClamped(x, y int) float64 {
	if x < 0 {
		x = 0
	} else if x >= f.W {
		x = f.W - 1
	}
	if y < 0 {
		y = 0
	} else if y >= f.H {
		y = f.H - 1
	}
	return f.Pix[y*f.W+x]
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	c := &Frame{W: f.W, H: f.H, Pix: make([]float64, len(f.Pix))}
	copy(c.Pix, f.Pix)
	return c
}

// Invert returns 1 - v for every pixel, turning dark particles on a light
// background into bright peaks.
func (f *Frame) Invert() *Frame {
	c := f.Clone()
	for i, v := range c.Pix {
		c.Pix[i] = 1 - v
	}
	return c
}

// Min and Max return the extreme pixel values.
func (f *Frame) Min() float64 {
	m := f.Pix[0]
	for _, v := range f.Pix[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func (f *Frame) Max() float64 {
	m := f.Pix[0]
	for _, v := range f.Pix[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame(%dx%d)", f.W, f.H)
}
