package config

import (
	"fmt"
	"math"
	"strings"
)

// DefaultWindowFilename is the per-movie crop and frame-range file.
const DefaultWindowFilename = "window.toml"

// Window limits where and when to look for particles. Spatial limits are
// zero-based pixel coordinates and are exclusive. FirstFrame and LastFrame
// count from 1; LastFrame -1 means "through the last frame".
type Window struct {
	XMin, XMax float64
	YMin, YMax float64

	FirstFrame int
	LastFrame  int
}

// FullWindow is the window used when nothing restricts the search.
func FullWindow() Window {
	w, _ := InterpretWindow(nil)
	return w
}

// InterpretWindow fills in missing or special values of a window section.
// Spatial values in the file are 1-based (ImageJ style) and are shifted to
// zero-based coordinates; an xmax or ymax of -1 means unbounded.
func InterpretWindow(m map[string]any) (Window, error) {
	get := func(key string, def float64) (float64, error) {
		for k, v := range m {
			if strings.EqualFold(strings.TrimSpace(k), key) {
				return toFloat(key, v)
			}
		}
		return def, nil
	}

	var vals [6]float64
	keys := [6]string{"xmin", "xmax", "ymin", "ymax", "firstframe", "lastframe"}
	defs := [6]float64{1, -1, 1, -1, 1, -1}
	for i, k := range keys {
		v, err := get(k, defs[i])
		if err != nil {
			return Window{}, err
		}
		vals[i] = v
	}

	w := Window{
		XMin:       vals[0] - 1,
		XMax:       vals[1] - 1,
		YMin:       vals[2] - 1,
		YMax:       vals[3] - 1,
		FirstFrame: int(vals[4]),
		LastFrame:  int(vals[5]),
	}
	if w.XMax < 0 {
		w.XMax = math.Inf(1)
	}
	if w.YMax < 0 {
		w.YMax = math.Inf(1)
	}
	if w.FirstFrame < 1 {
		return Window{}, fmt.Errorf("firstframe must be at least 1, got %d", w.FirstFrame)
	}
	return w, nil
}

// LoadWindow reads a window file. A missing file yields FullWindow.
func LoadWindow(path string) (Window, error) {
	section, err := ReadSection(path)
	if err != nil {
		return Window{}, err
	}
	w, err := InterpretWindow(section)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window in %s: %w", path, err)
	}
	return w, nil
}

// Contains reports whether (x, y) lies strictly inside the spatial limits.
func (w Window) Contains(x, y float64) bool {
	return x > w.XMin && x < w.XMax && y > w.YMin && y < w.YMax
}

// Frames returns the 1-based frame numbers selected by the window for a
// movie of nframes frames.
func (w Window) Frames(nframes int) []int {
	last := w.LastFrame
	if last == -1 || last > nframes {
		last = nframes
	}
	if w.FirstFrame > last {
		return nil
	}
	out := make([]int, 0, last-w.FirstFrame+1)
	for f := w.FirstFrame; f <= last; f++ {
		out = append(out, f)
	}
	return out
}
