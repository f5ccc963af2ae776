package main

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// lineChart plots the decision score of every turn, with a second series
// marking the turns where the agent agreed with the real move.
func lineChart(r gameReport) *charts.Line {
	agree, total := r.Agreement()

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s (%s)", r.GameID, r.SnakeID),
			Subtitle: fmt.Sprintf("agreed on %d of %d turns", agree, total),
		}),
		charts.WithInitializationOpts(opts.Initialization{Theme: "shine"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)

	turns := make([]string, 0, len(r.Turns))
	scores := make([]opts.LineData, 0, len(r.Turns))
	agreed := make([]opts.LineData, 0, len(r.Turns))
	for _, t := range r.Turns {
		turns = append(turns, fmt.Sprintf("%d", t.Turn))
		scores = append(scores, opts.LineData{Value: t.Score, Name: fmt.Sprintf("chose %s, played %s", t.Chosen, t.Actual)})
		v := 0
		if t.Agree() {
			v = 1
		}
		agreed = append(agreed, opts.LineData{Value: v})
	}

	line.SetXAxis(turns).
		AddSeries("score", scores).
		AddSeries("agreed", agreed)
	return line
}

func renderReport(w io.Writer, reports []gameReport) error {
	page := components.NewPage()
	for _, r := range reports {
		page.AddCharts(lineChart(r))
	}
	return page.Render(w)
}
