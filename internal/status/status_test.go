package status

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/bigtracks/internal/fsutil"
	"github.com/banshee-data/bigtracks/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func TestFileUpdate(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem(nil)
	sf := NewFile("/movie/trackingstatus.json", Info{"totalframes": 10, "outfile": "bigtracks.db"})
	sf.FS = mfs

	require.NoError(t, sf.Update(Info{"status": Starting}))
	require.NoError(t, sf.Update(Info{"status": Working, "mr_frame": 3, "seconds_per_frame": Seconds(math.NaN())}))

	data, err := mfs.ReadFile("/movie/trackingstatus.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    \"", "indented")

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, map[string]any{
		"totalframes":       10.0,
		"outfile":           "bigtracks.db",
		"status":            "working",
		"mr_frame":          3.0,
		"seconds_per_frame": nil,
	}, got)
	assert.False(t, mfs.Exists("/movie/trackingstatus.json"+fsutil.TempSuffix))
}

func TestStopwatch(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	sw := NewStopwatch(clock)
	assert.Equal(t, "Mon May  6 07:08:09 2024", sw.Started)
	assert.True(t, math.IsNaN(sw.MeanLapTime()))
	_, ok := sw.EstimateCompletion(5)
	assert.False(t, ok)
	assert.Nil(t, sw.TimeLeft(5))

	clock.Advance(2 * time.Second)
	sw.Lap()
	clock.Advance(4 * time.Second)
	sw.Lap()
	clock.Advance(time.Second)

	assert.Equal(t, 2, sw.Laps())
	assert.Equal(t, 7*time.Second, sw.Elapsed())
	assert.Equal(t, 3.0, sw.MeanLapTime())

	left, ok := sw.EstimateCompletion(5)
	require.True(t, ok)
	assert.Equal(t, 9*time.Second, left)
	assert.Equal(t, "00:00:09", sw.TimeLeft(5))

	_, ok = sw.EstimateCompletion(1)
	assert.False(t, ok, "more laps than expected")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00"},
		{1499 * time.Millisecond, "00:00:01"},
		{1500 * time.Millisecond, "00:00:02"},
		{61 * time.Minute, "01:01:00"},
		{100*time.Hour + 5*time.Second, "100:00:05"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), "%v", tt.in)
	}
}

func TestReadStatuses(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	mfs := fsutil.NewMemoryFileSystem(clock)
	require.NoError(t, NewFileFS(mfs, "/a/trackingstatus.json", Info{"working_dir": "/a"}).Update(Info{"status": Done}))
	require.NoError(t, mfs.WriteFile("/c/trackingstatus.json", []byte("{not json"), 0o644))
	clock.Advance(90 * time.Second)

	infos := ReadStatuses(mfs, clock, []string{"/a/trackingstatus.json", "/b/trackingstatus.json", "/c/trackingstatus.json"})
	require.Len(t, infos, 3)
	assert.Equal(t, "done", infos[0]["status"])
	assert.Equal(t, "00:01:30", infos[0]["since_update"])
	assert.Equal(t, Info{"working_dir": "/b", "status": Waiting}, infos[1])
	assert.Equal(t, Confused, infos[2]["status"])

	r := Read(mfs, clock, "/a/trackingstatus.json")
	assert.True(t, r.Found)
	assert.Equal(t, 90*time.Second, r.SinceUpdate)
}

func TestBoardRendering(t *testing.T) {
	b := &Board{
		Columns: []string{"working_dir", "secs_per_frame", "status"},
		Rows: []Info{
			{"working_dir": "/m/one", "secs_per_frame": 0.25, "status": "working", "extra": 1.0},
			{"working_dir": "/m/<two>", "status": "waiting"},
		},
	}
	assert.Equal(t, "0.25", b.Cell(0, "secs_per_frame"))
	assert.Equal(t, "", b.Cell(1, "secs_per_frame"))
	assert.Equal(t, "12", formatValue(12.0))

	var text bytes.Buffer
	require.NoError(t, b.WriteText(&text))
	lines := strings.Split(strings.TrimRight(text.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "secs_per_frame")
	assert.True(t, strings.HasPrefix(lines[1], "0 "))
	assert.NotContains(t, text.String(), "extra")

	var html bytes.Buffer
	require.NoError(t, b.WriteHTML(&html))
	assert.Contains(t, html.String(), "<td>/m/&lt;two&gt;</td>")
	assert.Contains(t, html.String(), "<th>status</th>")

	sb := StatusBoard(fsutil.NewMemoryFileSystem(nil), nil, []string{"/x/s.json"})
	assert.Equal(t, FileColumns, sb.Columns)
	assert.Equal(t, "waiting", sb.Cell(0, "status"))
}
