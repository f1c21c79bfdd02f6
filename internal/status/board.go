package status

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/bigtracks/internal/fsutil"
	"github.com/banshee-data/bigtracks/internal/timeutil"
)

// Reading is one status file as found on disk.
type Reading struct {
	Info        Info
	SinceUpdate time.Duration // age of the file; valid when Found
	Found       bool
}

// Read loads a status file. A missing or unreadable file is reported as
// not found with status waiting; a file that is not valid JSON is found
// but confused.
func Read(fsys fsutil.FileSystem, clock timeutil.Clock, path string) Reading {
	fsys, clock = fsutil.Or(fsys), timeutil.Or(clock)
	dir := filepath.Dir(path)
	if abs, err := filepath.Abs(path); err == nil {
		dir = filepath.Dir(abs)
	}

	fi, err := fsys.Stat(path)
	if err != nil {
		return Reading{Info: Info{"working_dir": dir, "status": Waiting}}
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return Reading{Info: Info{"working_dir": dir, "status": Waiting}}
	}
	r := Reading{Found: true, SinceUpdate: clock.Now().Sub(fi.ModTime())}
	if err := json.Unmarshal(data, &r.Info); err != nil || r.Info == nil {
		r.Info = Info{"working_dir": dir, "status": Confused}
	}
	r.Info["since_update"] = FormatDuration(r.SinceUpdate)
	return r
}

// ReadStatuses reads a list of status files.
func ReadStatuses(fsys fsutil.FileSystem, clock timeutil.Clock, paths []string) []Info {
	out := make([]Info, len(paths))
	for i, p := range paths {
		out[i] = Read(fsys, clock, p).Info
	}
	return out
}

// FileColumns are the columns of a board over bare status files.
var FileColumns = []string{
	"working_dir", "outfile", "process_id", "totalframes", "seconds_per_frame",
	"elapsed_time", "time_left", "status", "since_update",
}

// StatusBoard tabulates a list of status files.
func StatusBoard(fsys fsutil.FileSystem, clock timeutil.Clock, paths []string) *Board {
	return &Board{Columns: FileColumns, Rows: ReadStatuses(fsys, clock, paths)}
}

// Board is a table of status rows with fixed columns. Values missing from
// a row are shown blank.
type Board struct {
	Columns []string
	Rows    []Info
}

// Cell formats one value for display.
func (b *Board) Cell(row int, col string) string {
	return formatValue(b.Rows[row][col])
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if math.IsNaN(v) {
			return ""
		}
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', 6, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}

// WriteText renders the board as an aligned text table with a leading
// row-index column.
func (b *Board) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "\t%s\n", strings.Join(b.Columns, "\t"))
	for i := range b.Rows {
		cells := make([]string, len(b.Columns))
		for j, c := range b.Columns {
			cells[j] = b.Cell(i, c)
		}
		fmt.Fprintf(tw, "%d\t%s\n", i, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

var boardTemplate = template.Must(template.New("board").Parse(`<table class="statusboard">
<thead><tr><th></th>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range $i, $row := .Cells}}<tr><th>{{$i}}</th>{{range $row}}<td>{{.}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
`))

// WriteHTML renders the board as an HTML table.
func (b *Board) WriteHTML(w io.Writer) error {
	cells := make([][]string, len(b.Rows))
	for i := range b.Rows {
		cells[i] = make([]string, len(b.Columns))
		for j, c := range b.Columns {
			cells[i][j] = b.Cell(i, c)
		}
	}
	return boardTemplate.Execute(w, struct {
		Columns []string
		Cells   [][]string
	}{b.Columns, cells})
}
