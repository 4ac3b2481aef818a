package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/hypotrack/internal/tracking/mht"
)

// FramePanel is one frame's section of the HTML report.
type FramePanel struct {
	Label     string
	Marginals []mht.TrackMarginal
	Best      *mht.Hypothesis
	Stats     mht.SearchStats
}

// RenderHTML writes a page with one stacked bar chart of marginal
// probabilities per frame, followed by a chart of search sizes.
func RenderHTML(w io.Writer, title string, panels []FramePanel) error {
	page := components.NewPage()
	page.PageTitle = title

	for _, fp := range panels {
		page.AddCharts(marginalBar(fp))
	}
	if len(panels) > 0 {
		page.AddCharts(searchBar(panels))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

func marginalBar(fp FramePanel) *charts.Bar {
	subtitle := fmt.Sprintf("tracks=%d measurements=%d survivors=%d", fp.Stats.Tracks, fp.Stats.Measurements, fp.Stats.Survivors)
	if fp.Best != nil {
		subtitle += fmt.Sprintf(" best_ll=%.3f", fp.Best.LogLikelihood)
	}
	if fp.Stats.Truncated {
		subtitle += " (truncated: " + fp.Stats.TruncationReason + ")"
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Frame " + fp.Label, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "mass", Min: 0}),
	)

	x := make([]string, len(fp.Marginals))
	for k, m := range fp.Marginals {
		x[k] = trackLabel(m.TrackIndex)
	}
	bar.SetXAxis(x)

	for _, j := range alternatives(fp.Marginals) {
		data := make([]opts.BarData, len(fp.Marginals))
		for k, m := range fp.Marginals {
			data[k] = opts.BarData{Value: m.Probability(j)}
		}
		bar.AddSeries(alternativeLabel(j), data, charts.WithBarChartOpts(opts.BarChart{Stack: "mass"}))
	}
	return bar
}

func searchBar(panels []FramePanel) *charts.Bar {
	x := make([]string, len(panels))
	nodes := make([]opts.BarData, len(panels))
	survivors := make([]opts.BarData, len(panels))
	for i, fp := range panels {
		x[i] = fp.Label
		nodes[i] = opts.BarData{Value: fp.Stats.Nodes}
		survivors[i] = opts.BarData{Value: fp.Stats.Survivors}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Search size per frame"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "log", Name: "count"}),
	)
	bar.SetXAxis(x).
		AddSeries("nodes", nodes).
		AddSeries("survivors", survivors,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}
