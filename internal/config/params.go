package config

import (
	"fmt"
	"math"
	"strings"
)

// DefaultParamsFilename is the per-movie parameter file read when no
// parameters are passed in directly.
const DefaultParamsFilename = "bigtracking.toml"

// TrackingParams holds feature identification and linking parameters.
// Unset fields fall back to the defaults returned by the Get* methods, so a
// partial parameter file is safe. Keys the built-in fields do not cover are
// kept in Extra for custom identification functions.
type TrackingParams struct {
	// Identification
	IdentFunc   *string  `json:"identfunc,omitempty"`    // registered identifier name
	MaxGray     *float64 `json:"maxgray,omitempty"`      // 0 guesses from image depth
	Bright      *bool    `json:"bright,omitempty"`       // true: bright particles on dark background
	FeatSize    *int     `json:"featsize,omitempty"`     // expected feature radius (px)
	BPHigh      *float64 `json:"bphigh,omitempty"`       // Gaussian smoothing length (px)
	BPLow       *int     `json:"bplow,omitempty"`        // background boxcar radius (px)
	Threshold   *float64 `json:"threshold,omitempty"`    // ignore maxima at or below this value
	MaxRG       *float64 `json:"maxrg,omitempty"`        // cutoff on squared radius of gyration
	MergeCutoff *float64 `json:"merge_cutoff,omitempty"` // merge features closer than this (px)

	// Linking
	MaxDisp *float64 `json:"maxdisp,omitempty"` // search radius for the next frame (px)
	Memory  *int     `json:"memory,omitempty"`  // frames a particle may vanish

	Extra map[string]float64 `json:"extra,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// ParamsFromMap builds TrackingParams from the keys of a parameter section.
// Keys are case-insensitive.
func ParamsFromMap(m map[string]any) (*TrackingParams, error) {
	p := &TrackingParams{}
	for rawKey, v := range m {
		key := strings.ToLower(strings.TrimSpace(rawKey))
		switch key {
		case "identfunc":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("parameter identfunc must be a string, got %T", v)
			}
			p.IdentFunc = ptrString(strings.TrimSpace(s))
			continue
		case "identmod":
			// Identification functions are registered by name; the module
			// that used to host them is irrelevant.
			continue
		}

		f, err := toFloat(key, v)
		if err != nil {
			return nil, err
		}
		switch key {
		case "maxgray":
			p.MaxGray = ptrFloat64(f)
		case "bright":
			p.Bright = ptrBool(f != 0)
		case "featsize":
			p.FeatSize = ptrInt(int(f))
		case "bphigh":
			p.BPHigh = ptrFloat64(f)
		case "bplow":
			p.BPLow = ptrInt(int(f))
		case "threshold":
			p.Threshold = ptrFloat64(f)
		case "maxrg":
			p.MaxRG = ptrFloat64(f)
		case "merge_cutoff":
			p.MergeCutoff = ptrFloat64(f)
		case "maxdisp":
			p.MaxDisp = ptrFloat64(f)
		case "memory":
			p.Memory = ptrInt(int(f))
		default:
			if p.Extra == nil {
				p.Extra = map[string]float64{}
			}
			p.Extra[key] = f
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadParams reads TrackingParams from a single-section parameter file.
// A missing file yields empty (all default) parameters.
func LoadParams(path string) (*TrackingParams, error) {
	section, err := ReadSection(path)
	if err != nil {
		return nil, err
	}
	p, err := ParamsFromMap(section)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters in %s: %w", path, err)
	}
	return p, nil
}

// Validate checks that the set values are usable.
func (p *TrackingParams) Validate() error {
	if p.FeatSize != nil && *p.FeatSize < 1 {
		return fmt.Errorf("featsize must be at least 1, got %d", *p.FeatSize)
	}
	if p.BPHigh != nil && *p.BPHigh <= 0 {
		return fmt.Errorf("bphigh must be positive, got %f", *p.BPHigh)
	}
	if p.BPLow != nil && *p.BPLow < 1 {
		return fmt.Errorf("bplow must be at least 1, got %d", *p.BPLow)
	}
	if p.MaxGray != nil && *p.MaxGray < 0 {
		return fmt.Errorf("maxgray must be non-negative, got %f", *p.MaxGray)
	}
	if p.MaxDisp != nil && *p.MaxDisp <= 0 {
		return fmt.Errorf("maxdisp must be positive, got %f", *p.MaxDisp)
	}
	if p.Memory != nil && *p.Memory < 0 {
		return fmt.Errorf("memory must be non-negative, got %d", *p.Memory)
	}
	return nil
}

// ValidateForTracking additionally requires the linking parameters.
func (p *TrackingParams) ValidateForTracking() error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.MaxDisp == nil {
		return fmt.Errorf("maxdisp is required for linking")
	}
	return nil
}

// GetIdentFunc returns the identifier name or the default.
func (p *TrackingParams) GetIdentFunc() string {
	if p.IdentFunc == nil || *p.IdentFunc == "" {
		return "basic"
	}
	return *p.IdentFunc
}

// GetMaxGray returns maxgray, where 0 means "guess from the image".
func (p *TrackingParams) GetMaxGray() float64 {
	if p.MaxGray == nil {
		return 0
	}
	return *p.MaxGray
}

// GetBright returns the bright value or the default (dark particles).
func (p *TrackingParams) GetBright() bool {
	if p.Bright == nil {
		return false
	}
	return *p.Bright
}

// GetFeatSize returns featsize or the default.
func (p *TrackingParams) GetFeatSize() int {
	if p.FeatSize == nil {
		return 3
	}
	return *p.FeatSize
}

// GetBPHigh returns bphigh or the default.
func (p *TrackingParams) GetBPHigh() float64 {
	if p.BPHigh == nil {
		return 0.7
	}
	return *p.BPHigh
}

// GetBPLow returns bplow, defaulting to featsize.
func (p *TrackingParams) GetBPLow() int {
	if p.BPLow == nil {
		return p.GetFeatSize()
	}
	return *p.BPLow
}

// GetThreshold returns threshold or the default.
func (p *TrackingParams) GetThreshold() float64 {
	if p.Threshold == nil {
		return 1e-15
	}
	return *p.Threshold
}

// GetMaxRG returns maxrg, defaulting to no cut.
func (p *TrackingParams) GetMaxRG() float64 {
	if p.MaxRG == nil {
		return math.Inf(1)
	}
	return *p.MaxRG
}

// GetMergeCutoff returns merge_cutoff; values <= 0 disable merging.
func (p *TrackingParams) GetMergeCutoff() float64 {
	if p.MergeCutoff == nil {
		return -1
	}
	return *p.MergeCutoff
}

// GetMaxDisp returns maxdisp, or 0 when unset.
func (p *TrackingParams) GetMaxDisp() float64 {
	if p.MaxDisp == nil {
		return 0
	}
	return *p.MaxDisp
}

// GetMemory returns memory or the default.
func (p *TrackingParams) GetMemory() int {
	if p.Memory == nil {
		return 0
	}
	return *p.Memory
}

// Float returns an extra parameter used by custom identification functions.
func (p *TrackingParams) Float(key string) (float64, bool) {
	v, ok := p.Extra[strings.ToLower(key)]
	return v, ok
}

// RequireFloat is Float for parameters that have no sensible default.
func (p *TrackingParams) RequireFloat(key string) (float64, error) {
	v, ok := p.Float(key)
	if !ok {
		return 0, fmt.Errorf("parameter %q is required", key)
	}
	return v, nil
}
