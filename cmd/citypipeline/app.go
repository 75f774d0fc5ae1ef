package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"k8s.io/component-base/logs"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/config"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/dataset"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/export"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/metrics"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/pipeline"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/synthetic"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/validation"
)

// NewCommand builds the citypipeline command tree
func NewCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "citypipeline",
		Short: "Collect, synthesize, validate and export Lahore city datasets",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "",
		"YAML file overlaid on environment configuration (defaults to $"+config.ConfigPathEnv+")")
	logs.AddFlags(cmd.PersistentFlags())

	load := func() (*config.Config, error) {
		if configPath == "" {
			return config.LoadFromEnv()
		}
		return config.Load(configPath)
	}

	cmd.AddCommand(
		newRunCommand(load),
		newGenerateCommand(load),
		newValidateCommand(load),
		newInspectCommand(),
	)
	return cmd
}

func newRunCommand(load func() (*config.Config, error)) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the complete pipeline and write the summary report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			recorder := metrics.NewRecorder()
			if cfg.Observability.MetricsEnabled && cfg.Observability.MetricsPort > 0 {
				server := serveMetrics(recorder, cfg.Observability.MetricsPort)
				defer shutdown(server)
			}

			// one collector across runs keeps the weather cache warm
			sources := pipeline.NewCollector(cfg, clock.RealClock{})
			for {
				if err := runOnce(ctx, cmd.OutOrStdout(), cfg, sources, recorder); err != nil {
					if interval <= 0 {
						return err
					}
					klog.ErrorS(err, "Pipeline run failed, retrying at next interval", "interval", interval)
				}
				if interval <= 0 {
					return nil
				}

				timer := time.NewTimer(interval)
				select {
				case <-ctx.Done():
					timer.Stop()
					klog.InfoS("Stopping pipeline loop", "reason", ctx.Err())
					return nil
				case <-timer.C:
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Repeat the pipeline at this interval until interrupted (0 runs once)")
	return cmd
}

func runOnce(ctx context.Context, out io.Writer, cfg *config.Config, sources pipeline.Collector, recorder *metrics.Recorder) error {
	p, err := pipeline.New(cfg, pipeline.WithCollector(sources), pipeline.WithRecorder(recorder))
	if err != nil {
		return err
	}
	results, err := p.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Pipeline %s completed\n", results.RunID)
	fmt.Fprintf(out, "Quality score: %.1f%% (%s)\n", results.QualityScore, results.Summary.DataQuality.QualityStatus)
	fmt.Fprintf(out, "Datasets: %d real, %d synthetic\n", len(results.Collected), len(results.Synthetic))
	fmt.Fprintf(out, "Export files: %d in %s\n", len(results.ExportFiles), cfg.Output.Dir)
	return nil
}

func newGenerateCommand(load func() (*config.Config, error)) *cobra.Command {
	var vehicles int

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the synthetic energy and emergency datasets only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if vehicles > 0 {
				cfg.Synthetic.VehicleCount = vehicles
			}

			p, err := pipeline.New(cfg)
			if err != nil {
				return err
			}
			result := p.Generate(p.VehicleCount(nil))

			exporter, err := export.NewFileExporter(cfg.Output.Dir, result.GeneratedAt)
			if err != nil {
				return err
			}
			if _, err := exporter.CSV("synthetic_energy", synthetic.EnergyDataset(result.Energy)); err != nil {
				return err
			}
			if _, err := exporter.CSV("synthetic_emergency", synthetic.EmergencyDataset(result.Emergency)); err != nil {
				return err
			}
			if cfg.Output.GeoJSON {
				if _, err := exporter.GeoJSON("synthetic_emergency", result.Emergency); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generated %d energy readings and %d service requests\n", len(result.Energy), len(result.Emergency))
			for _, f := range exporter.Files() {
				fmt.Fprintln(out, f)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&vehicles, "vehicles", 0, "Registered vehicle count scaling the series (0 uses configuration)")
	return cmd
}

func newValidateCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "validate NAME=PATH...",
		Short: "Validate CSV or XLSX files and print the quality report as JSON",
		Long: "Each argument pairs a dataset name with a file, for example energy=data/energy.csv. " +
			"Names are vehicles, accidents, healthcare, energy or emergency, or their traffic_/synthetic_ forms.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			datasets := make(map[string]*dataset.Dataset, len(args))
			for _, arg := range args {
				name, path, ok := strings.Cut(arg, "=")
				if !ok || name == "" || path == "" {
					return fmt.Errorf("argument %q is not NAME=PATH", arg)
				}
				if _, err := validation.ParseKind(name); err != nil {
					return err
				}
				ds, err := readDataset(path, cfg.Sources.AccidentsSheet)
				if err != nil {
					return err
				}
				datasets[name] = ds
			}

			v := validation.New(
				validation.WithDistrictTerm(cfg.Validation.DistrictTerm),
				validation.WithBounds(cfg.City.Bounds),
				validation.WithMinYear(cfg.Validation.MinYear),
			)
			overall := v.ValidateAll(datasets)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(overall); err != nil {
				return err
			}
			if overall.OverallQuality < cfg.Validation.QualityThreshold {
				return fmt.Errorf("overall quality %.1f is below threshold %.1f",
					overall.OverallQuality, cfg.Validation.QualityThreshold)
			}
			return nil
		},
	}
}

func newInspectCommand() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "inspect DB RUN_ID",
		Short: "Summarize a run stored in a SQLite bundle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, runID := args[0], args[1]
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("cannot open bundle: %w", err)
			}
			start, end, err := parseRange(from, to)
			if err != nil {
				return err
			}

			bundle, err := export.NewSQLiteExporter(path)
			if err != nil {
				return err
			}
			defer bundle.Close()

			counts, err := bundle.RequestsByService(runID)
			if err != nil {
				return err
			}
			readings, err := bundle.EnergyRange(runID, start, end)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s\n", runID)
			fmt.Fprintln(out, "Requests by service:")
			for _, service := range slices.Sorted(maps.Keys(counts)) {
				fmt.Fprintf(out, "  %s: %d\n", service, counts[service])
			}
			fmt.Fprintf(out, "Energy readings: %d\n", len(readings))
			if len(readings) > 0 {
				peak := readings[0]
				for _, r := range readings[1:] {
					if r.TotalConsumptionMW > peak.TotalConsumptionMW {
						peak = r
					}
				}
				fmt.Fprintf(out, "Peak load: %.2f MW at %s\n", peak.TotalConsumptionMW, peak.Timestamp.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Start of the energy window, RFC3339 (default: unbounded)")
	cmd.Flags().StringVar(&to, "to", "", "End of the energy window, RFC3339 (default: unbounded)")
	return cmd
}

// parseRange reads optional RFC3339 bounds; empty values leave that side open
func parseRange(from, to string) (time.Time, time.Time, error) {
	start := time.Unix(0, 0)
	end := time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
	var err error
	if from != "" {
		if start, err = time.Parse(time.RFC3339, from); err != nil {
			return start, end, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if to != "" {
		if end, err = time.Parse(time.RFC3339, to); err != nil {
			return start, end, fmt.Errorf("invalid --to: %w", err)
		}
	}
	return start, end, nil
}

func readDataset(path, sheet string) (*dataset.Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return dataset.ReadXLSXFile(path, sheet)
	default:
		return dataset.ReadCSVFile(path)
	}
}

func serveMetrics(recorder *metrics.Recorder, port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(recorder.Registry(), promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		klog.V(1).InfoS("Starting metrics server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.ErrorS(err, "Metrics server failed")
		}
	}()
	return server
}

func shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		klog.ErrorS(err, "Failed to stop metrics server")
	}
}
