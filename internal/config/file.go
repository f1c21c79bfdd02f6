package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
)

// ErrSections is returned when a parameter file does not hold exactly one
// section.
var ErrSections = errors.New("expected one section")

// ReadSection reads the single section of the parameter file at path and
// returns its keys. The files are INI-style:
//
//	[tracking]
//	featsize = 3
//	maxdisp = 2.5
//
// which is also valid TOML. A missing file (or an empty path) yields an
// empty map and no error.
func ReadSection(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}

	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var section map[string]any
	tables := 0
	for _, v := range raw {
		tbl, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w in %q: found a key outside any section", ErrSections, path)
		}
		section = tbl
		tables++
	}
	if tables != 1 {
		return nil, fmt.Errorf("%w in %q: found %d", ErrSections, path, tables)
	}
	return section, nil
}

// toFloat accepts the value shapes a TOML section can hold for a numeric
// parameter: numbers, booleans, and quoted numbers carried over from old
// INI files.
func toFloat(key string, v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(x, "%g", &f); err != nil {
			return 0, fmt.Errorf("parameter %s: %q is not a number", key, x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("parameter %s: unsupported value %v (%T)", key, v, v)
	}
}
