package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bigtracks/internal/tracksdb"
)

const testParams = "[tracking]\nbright = 1\nfeatsize = 5\nbphigh = 2\nthreshold = 0.1\nmaxdisp = 8.5\n"

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(args, &out)
	return out.String(), err
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no args", nil},
		{"unknown", []string{"frobnicate"}},
		{"track without frames", []string{"track"}},
		{"bad flag", []string{"index", "-nope", "x.db"}},
		{"status without movies", []string{"status"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCmd(t, tt.args...)
			assert.ErrorIs(t, err, errUsage)
		})
	}
}

func TestVersionAndHelp(t *testing.T) {
	out, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "bigtracks "))

	out, err = runCmd(t, "help")
	require.NoError(t, err)
	assert.Contains(t, out, "Commands:")
}

func TestTrackWorkflow(t *testing.T) {
	dir := t.TempDir()
	frames := filepath.Join(dir, "frames")
	out, err := runCmd(t, "fake", "-n", "5", frames)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 5 frames")

	params := filepath.Join(dir, "bigtracking.toml")
	require.NoError(t, os.WriteFile(params, []byte(testParams), 0o644))
	files, err := filepath.Glob(filepath.Join(frames, "*.png"))
	require.NoError(t, err)
	require.Len(t, files, 5)

	out, err = runCmd(t, "identify", "-params", params, files[0])
	require.NoError(t, err)
	assert.Contains(t, out, "x  ")
	assert.Contains(t, out, " features")

	db := filepath.Join(dir, "bigtracks.db")
	args := append([]string{"track", "-params", params, "-o", db}, files...)
	out, err = runCmd(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Tracked 5 frames")

	_, err = runCmd(t, args...)
	assert.ErrorIs(t, err, tracksdb.ErrExists)

	out, err = runCmd(t, "index", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed "+db)

	png := filepath.Join(dir, "quality.png")
	html := filepath.Join(dir, "quality.html")
	out, err = runCmd(t, "quality", "-interval", "1", "-png", png, "-html", html, db)
	require.NoError(t, err)
	assert.Contains(t, out, "Frames 1-5, 5 samples")
	assert.FileExists(t, png)
	assert.FileExists(t, html)
}

func TestRunAndStatus(t *testing.T) {
	root := t.TempDir()
	var dirs []string
	for _, name := range []string{"m1", "m2"} {
		d := filepath.Join(root, name)
		_, err := runCmd(t, "fake", "-n", "3", filepath.Join(d, "frames"))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(d, "bigtracking.toml"), []byte(testParams), 0o644))
		dirs = append(dirs, d)
	}

	out, err := runCmd(t, append([]string{"status"}, dirs...)...)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "waiting"))

	out, err = runCmd(t, append([]string{"run", "-frames", "frames/*.png", "-workers", "2"}, dirs...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Tracked 2 movies")

	out, err = runCmd(t, append([]string{"status"}, dirs...)...)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "done"))
	assert.Equal(t, 2, strings.Count(out, "yes"))

	out, err = runCmd(t, append([]string{"run", "-frames", "frames/*.png"}, dirs...)...)
	assert.Error(t, err)
	assert.Contains(t, out, "already exists")

	_, err = runCmd(t, append([]string{"run", "-frames", "frames/*.png", "-clear"}, dirs...)...)
	assert.NoError(t, err)

	out, err = runCmd(t, append([]string{"status", "-html"}, dirs...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "<table")
}
