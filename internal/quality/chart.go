package quality

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartQuality renders the same series as PlotQuality as an interactive
// HTML page.
func ChartQuality(q *Quality, title string, w io.Writer) error {
	frames := make([]string, len(q.Samples))
	drift := make([]opts.LineData, len(q.Samples))
	dropped := make([]opts.LineData, len(q.Samples))
	d, dr := q.Drift(), q.Dropped()
	for i, s := range q.Samples {
		frames[i] = strconv.Itoa(s.Frame)
		drift[i] = opts.LineData{Value: d[i]}
		dropped[i] = opts.LineData{Value: dr[i]}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Tracking quality", Width: "100%", Height: "520px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("N0=%d samples=%d", q.N0(), len(q.Samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Fraction of N0", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(frames).
		AddSeries("(N - N0) / N0", drift).
		AddSeries("fraction dropped", dropped)
	return line.Render(w)
}
