// Package status reports the progress of long-running tracking jobs
// through small JSON files that other processes can poll.
package status

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"

	"github.com/banshee-data/bigtracks/internal/fsutil"
)

// DefaultFilename is the conventional status file name in a movie
// directory.
const DefaultFilename = "trackingstatus.json"

// Status values written by tracking jobs and derived by readers.
const (
	Starting  = "starting"
	Working   = "working"
	Finishing = "finishing"
	Done      = "done"
	Aborted   = "aborted"
	Failed    = "failed"
	Waiting   = "waiting"
	Dead      = "DEAD"
	Confused  = "??"
)

// Info is the content of a status file.
type Info map[string]any

// File is a status file rewritten in full on every update.
type File struct {
	Path       string
	Persistent Info // included in every update
	FS         fsutil.FileSystem
}

// NewFile returns a status file that repeats persistent in every update.
func NewFile(path string, persistent Info) *File {
	return &File{Path: path, Persistent: maps.Clone(persistent)}
}

// NewFileFS is NewFile on a given filesystem.
func NewFileFS(fsys fsutil.FileSystem, path string, persistent Info) *File {
	f := NewFile(path, persistent)
	f.FS = fsys
	return f
}

// Update replaces the file with the persistent info overlaid by info. The
// new content is written beside the file and renamed over it.
func (f *File) Update(info Info) error {
	all := make(Info, len(f.Persistent)+len(info))
	maps.Copy(all, f.Persistent)
	maps.Copy(all, info)
	b, err := json.MarshalIndent(all, "", "    ")
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return fsutil.WriteFileAtomic(fsutil.Or(f.FS), f.Path, b, 0o644)
}

// Seconds converts a possibly NaN duration in seconds for JSON, which has
// no NaN; NaN becomes nil.
func Seconds(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
