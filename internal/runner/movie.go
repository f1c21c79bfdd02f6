// Package runner tracks many movies in parallel and reports on their
// progress.
package runner

import (
	"path/filepath"
)

// MovieDir is a directory holding one movie's frames, parameter files and
// outputs.
type MovieDir struct {
	Path string // absolute
}

// NewMovieDir resolves dir to an absolute path.
func NewMovieDir(dir string) (MovieDir, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return MovieDir{}, err
	}
	return MovieDir{Path: abs}, nil
}

// Name is the directory's base name.
func (m MovieDir) Name() string { return filepath.Base(m.Path) }

// ParentName is the base name of the enclosing directory.
func (m MovieDir) ParentName() string { return filepath.Base(filepath.Dir(m.Path)) }

// Join resolves a movie-relative path. Absolute names are returned as is.
func (m MovieDir) Join(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(m.Path, name)
}

func (m MovieDir) String() string { return "MovieDir: " + m.Path }
