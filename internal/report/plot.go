// Package report renders replay results: PNG charts with gonum/plot for
// offline review and a self-contained HTML page with go-echarts.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/hypotrack/internal/tracking/mht"
)

// FrameSummary is the per-frame input for the search statistics chart.
type FrameSummary struct {
	Label string
	Stats mht.SearchStats
}

// alternativeLabel names a marginal alternative: "missed" or "m<j>".
func alternativeLabel(measurement int) string {
	if measurement == mht.Missed {
		return "missed"
	}
	return "m" + strconv.Itoa(measurement)
}

func trackLabel(track int) string {
	return "T" + strconv.Itoa(track)
}

// alternatives returns the sorted union of measurement indices that carry
// mass for any track, Missed first.
func alternatives(marginals []mht.TrackMarginal) []int {
	seen := map[int]bool{}
	for _, m := range marginals {
		for _, e := range m.Entries {
			seen[e.MeasurementIndex] = true
		}
	}
	out := make([]int, 0, len(seen))
	for j := range seen {
		out = append(out, j)
	}
	sort.Ints(out)
	return out
}

// PlotMarginals writes a grouped bar chart of per-track marginal
// probabilities to path (PNG, SVG or PDF by extension). Each group is a
// track and each bar an alternative.
func PlotMarginals(marginals []mht.TrackMarginal, title, path string) error {
	if len(marginals) == 0 {
		return fmt.Errorf("no marginals to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Track"
	p.Y.Label.Text = "Probability mass"
	p.Y.Min = 0

	alts := alternatives(marginals)
	barWidth := vg.Points(48 / float64(len(alts)))
	for i, j := range alts {
		values := make(plotter.Values, len(marginals))
		for k, m := range marginals {
			values[k] = m.Probability(j)
		}
		bars, err := plotter.NewBarChart(values, barWidth)
		if err != nil {
			return fmt.Errorf("bar chart for %s: %w", alternativeLabel(j), err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = barWidth * vg.Length(float64(i)-float64(len(alts)-1)/2)
		p.Add(bars)
		p.Legend.Add(alternativeLabel(j), bars)
	}

	names := make([]string, len(marginals))
	for k, m := range marginals {
		names[k] = trackLabel(m.TrackIndex)
	}
	p.NominalX(names...)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return save(p, path, vg.Length(2+len(marginals))*vg.Inch, 5*vg.Inch)
}

// PlotSearchStats writes a line chart of tree nodes and surviving
// hypotheses per frame.
func PlotSearchStats(frames []FrameSummary, title, path string) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Count"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	nodes := make(plotter.XYs, len(frames))
	survivors := make(plotter.XYs, len(frames))
	for i, f := range frames {
		// Log scale needs positive values.
		nodes[i] = plotter.XY{X: float64(i), Y: float64(max(f.Stats.Nodes, 1))}
		survivors[i] = plotter.XY{X: float64(i), Y: float64(max(f.Stats.Survivors, 1))}
	}

	if err := plotutil.AddLinePoints(p, "nodes", nodes, "survivors", survivors); err != nil {
		return fmt.Errorf("add search lines: %w", err)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return save(p, path, 10*vg.Inch, 5*vg.Inch)
}

func save(p *plot.Plot, path string, w, h vg.Length) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create plot directory: %w", err)
		}
	}
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}
