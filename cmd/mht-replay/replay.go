package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/hypotrack/internal/config"
	"github.com/banshee-data/hypotrack/internal/monitoring"
	"github.com/banshee-data/hypotrack/internal/report"
	"github.com/banshee-data/hypotrack/internal/scenario"
	"github.com/banshee-data/hypotrack/internal/security"
	"github.com/banshee-data/hypotrack/internal/storage/sqlite"
	"github.com/banshee-data/hypotrack/internal/tracking/debug"
	"github.com/banshee-data/hypotrack/internal/tracking/mht"
	"github.com/banshee-data/hypotrack/internal/version"
)

// frameOutput is one frame of the -json output.
type frameOutput struct {
	Label     string              `json:"label"`
	Result    *mht.FrameResult    `json:"result"`
	Marginals []mht.TrackMarginal `json:"marginals,omitempty"`
	Debug     *debug.Frame        `json:"debug,omitempty"`
	Warnings  []string            `json:"warnings,omitempty"`
}

// runOutput is the -json document.
type runOutput struct {
	RunID    string        `json:"run_id,omitempty"`
	Scenario string        `json:"scenario"`
	Frames   []frameOutput `json:"frames"`
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func run(ctx context.Context, cfg Config, stdout, stderr io.Writer) error {
	monitoring.SetLogWriter(stderr, "[mht-replay] ")
	var diag, trace io.Writer
	if cfg.Verbose {
		diag = stderr
	}
	if cfg.Trace {
		trace = stderr
	}
	mht.SetLogWriters(stderr, diag, trace)

	sc, err := scenario.Load(cfg.ScenarioPath)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}

	tuning, err := loadTuning(cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load tuning config: %w", err)
	}
	engineCfg := mht.ConfigFromTuning(tuning)
	if cfg.Timeout > 0 {
		engineCfg.SearchTimeout = cfg.Timeout
	}

	var opts []mht.Option
	collector := debug.NewCollector()
	if cfg.Debug {
		collector.SetEnabled(true)
		opts = append(opts, mht.WithDebugCollector(collector))
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, mht.WithMetrics(monitoring.NewFrameMetrics(reg)))
		shutdown, err := serveMetrics(cfg.MetricsAddr, reg)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	engine, err := mht.NewEngine(engineCfg, opts...)
	if err != nil {
		return err
	}

	var (
		db     *sqlite.DB
		runs   *sqlite.RunStore
		frames *sqlite.FrameStore
		runRec *sqlite.Run
	)
	if cfg.DBPath != "" {
		db, err = sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		tuningJSON, err := json.Marshal(tuning)
		if err != nil {
			return fmt.Errorf("encode tuning config: %w", err)
		}
		runs = sqlite.NewRunStore(db.DB)
		frames = sqlite.NewFrameStore(db.DB)
		runRec = &sqlite.Run{ScenarioName: sc.Name, ConfigJSON: string(tuningJSON), Notes: "mht-replay " + version.String()}
		if err := runs.Insert(runRec); err != nil {
			return err
		}
		monitoring.Logf("run %s started for scenario %q (%d frames)", runRec.RunID, sc.Name, len(sc.Frames))
	}

	out := runOutput{Scenario: sc.Name}
	if runRec != nil {
		out.RunID = runRec.RunID
	}

	for i, spec := range sc.Frames {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("replay interrupted before frame %s: %w", spec.ID, err)
		}

		fo, err := replayFrame(ctx, engine, sc, i, collector)
		if err != nil {
			return err
		}
		out.Frames = append(out.Frames, fo)

		if frames != nil {
			rec := &sqlite.FrameRecord{RunID: runRec.RunID, Seq: i, Label: spec.ID}
			if err := frames.Save(rec, fo.Result, fo.Marginals); err != nil {
				return err
			}
		}
		if !cfg.JSON {
			printFrame(stdout, fo)
		}
	}

	if runs != nil {
		if err := runs.Finish(runRec.RunID, len(out.Frames)); err != nil {
			return err
		}
	}

	if cfg.PlotDir != "" {
		if err := writePlots(cfg.PlotDir, sc.Name, out.Frames); err != nil {
			return err
		}
	}
	if cfg.HTMLPath != "" {
		if err := writeHTML(cfg.HTMLPath, sc.Name, out.Frames); err != nil {
			return err
		}
	}

	if cfg.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode JSON output: %w", err)
		}
	}
	return nil
}

// replayFrame processes one scenario frame. Truncated searches and
// underflowing marginals are reported as warnings; other engine errors
// abort the replay.
func replayFrame(ctx context.Context, engine *mht.Engine, sc *scenario.Scenario, i int, collector *debug.Collector) (frameOutput, error) {
	spec := sc.Frames[i]
	fo := frameOutput{Label: spec.ID}

	f, err := sc.Frame(i)
	if err != nil {
		return fo, err
	}

	collector.BeginFrame(spec.ID)
	res, err := engine.ProcessFrame(ctx, f)
	switch {
	case errors.Is(err, mht.ErrSearchTruncated):
		monitoring.Logf("frame %s: %v", spec.ID, err)
		fo.Warnings = append(fo.Warnings, err.Error())
	case err != nil:
		collector.Reset()
		return fo, fmt.Errorf("frame %s: %w", spec.ID, err)
	}
	fo.Result = res
	fo.Debug = collector.Emit()

	marginals, err := engine.CalculateMarginalProbabilities(res.Hypotheses, len(f.Tracks), len(f.Measurements))
	switch {
	case errors.Is(err, mht.ErrMarginalUnderflow):
		monitoring.Logf("frame %s: %v", spec.ID, err)
		fo.Warnings = append(fo.Warnings, err.Error())
	case err != nil:
		return fo, fmt.Errorf("frame %s marginals: %w", spec.ID, err)
	default:
		fo.Marginals = marginals
	}
	return fo, nil
}

func printFrame(w io.Writer, fo frameOutput) {
	st := fo.Result.Stats
	fmt.Fprintf(w, "frame %s: tracks=%d measurements=%d candidates=%d nodes=%d hypotheses=%d/%d elapsed=%s\n",
		fo.Label, st.Tracks, st.Measurements, st.Candidates, st.Nodes, st.Survivors, st.Enumerated, st.Elapsed.Round(time.Microsecond))
	if best := fo.Result.Best(); best != nil {
		fmt.Fprintf(w, "  best ll=%.4f consistency=%.4f:", best.LogLikelihood, best.Consistency)
		for track := 0; track < st.Tracks; track++ {
			if m, ok := best.MeasurementFor(track); ok {
				fmt.Fprintf(w, " T%d=m%d", track, m)
			} else {
				fmt.Fprintf(w, " T%d=missed", track)
			}
		}
		fmt.Fprintln(w)
	}
	for _, m := range fo.Marginals {
		fmt.Fprintf(w, "  T%d:", m.TrackIndex)
		for _, e := range m.Entries {
			if e.MeasurementIndex == mht.Missed {
				fmt.Fprintf(w, " missed=%.4f", e.Probability)
				continue
			}
			fmt.Fprintf(w, " m%d=%.4f", e.MeasurementIndex, e.Probability)
		}
		fmt.Fprintln(w)
	}
	for _, warning := range fo.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
}

// writePlots renders one marginal chart per frame plus a search summary.
// Frame IDs come from the scenario file, so each file name is prefixed
// with the frame sequence, sanitized, and checked to stay inside dir.
func writePlots(dir, name string, frames []frameOutput) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create plot directory: %w", err)
	}
	summaries := make([]report.FrameSummary, 0, len(frames))
	for seq, fo := range frames {
		summaries = append(summaries, report.FrameSummary{Label: fo.Label, Stats: fo.Result.Stats})
		if len(fo.Marginals) == 0 {
			continue
		}
		// The sequence prefix keeps IDs that sanitize alike ("a/b", "a_b") apart.
		path, err := security.OutputPath(dir, fmt.Sprintf("%03d_%s_marginals", seq, fo.Label), ".png")
		if err != nil {
			return fmt.Errorf("frame %s: %w", fo.Label, err)
		}
		if err := report.PlotMarginals(fo.Marginals, name+" "+fo.Label, path); err != nil {
			return err
		}
	}
	if len(summaries) == 0 {
		return nil
	}
	return report.PlotSearchStats(summaries, name+" search", filepath.Join(dir, "search.png"))
}

func writeHTML(path, name string, frames []frameOutput) error {
	panels := make([]report.FramePanel, 0, len(frames))
	for _, fo := range frames {
		panels = append(panels, report.FramePanel{
			Label:     fo.Label,
			Marginals: fo.Marginals,
			Best:      fo.Result.Best(),
			Stats:     fo.Result.Stats,
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create HTML report: %w", err)
	}
	if err := report.RenderHTML(f, name, panels); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// serveMetrics starts a /metrics endpoint for reg and returns a function
// that shuts it down.
func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			monitoring.Logf("metrics server: %v", err)
		}
	}()
	monitoring.Logf("serving metrics on http://%s/metrics", ln.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
