// Command mht-replay runs a recorded scenario through the association
// engine frame by frame. It prints per-frame summaries (or JSON) and can
// store results in SQLite, render PNG and HTML reports, and expose
// Prometheus metrics while it runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/hypotrack/internal/version"
)

// Config holds the command-line options.
type Config struct {
	ScenarioPath string
	ConfigPath   string
	DBPath       string
	PlotDir      string
	HTMLPath     string
	MetricsAddr  string
	Timeout      time.Duration
	JSON         bool
	Debug        bool
	Verbose      bool
	Trace        bool
	Version      bool
}

func parseFlags(args []string, stderr io.Writer) (Config, error) {
	cfg := Config{}
	fs := flag.NewFlagSet("mht-replay", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.ScenarioPath, "scenario", "", "Scenario file (.json, .yaml or .yml)")
	fs.StringVar(&cfg.ConfigPath, "config", "", "Tuning config JSON (defaults apply when empty)")
	fs.StringVar(&cfg.DBPath, "db", "", "SQLite database to store the run in")
	fs.StringVar(&cfg.PlotDir, "plot-dir", "", "Directory for PNG marginal and search plots")
	fs.StringVar(&cfg.HTMLPath, "html", "", "Write an HTML report to this file")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the replay")
	fs.DurationVar(&cfg.Timeout, "timeout", 0, "Per-frame search timeout (overrides search_timeout)")
	fs.BoolVar(&cfg.JSON, "json", false, "Print results as JSON")
	fs.BoolVar(&cfg.Debug, "debug", false, "Collect per-pair gating records")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Enable per-frame diagnostic logging")
	fs.BoolVar(&cfg.Trace, "trace", false, "Enable per-pair trace logging")
	fs.BoolVar(&cfg.Version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.Version {
		return cfg, nil
	}
	if cfg.ScenarioPath == "" {
		return cfg, fmt.Errorf("-scenario is required")
	}
	if cfg.Timeout < 0 {
		return cfg, fmt.Errorf("-timeout must be non-negative, got %s", cfg.Timeout)
	}
	return cfg, nil
}

func main() {
	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return
		}
		log.Fatal(err)
	}
	if cfg.Version {
		fmt.Println("mht-replay " + version.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		log.Fatalf("replay failed: %v", err)
	}
}
