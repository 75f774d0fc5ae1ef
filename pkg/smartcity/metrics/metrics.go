package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"k8s.io/klog/v2"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/validation"
)

const (
	namespace         = "smartcity"
	pipelineSubsystem = "pipeline"
)

// Recorder holds the pipeline metrics on a private registry
type Recorder struct {
	registry *prometheus.Registry

	qualityScore     *prometheus.GaugeVec
	overallQuality   prometheus.Gauge
	issues           *prometheus.CounterVec
	records          *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
	sourceUp         *prometheus.GaugeVec
	lastRunTimestamp prometheus.Gauge
}

// NewRecorder creates and registers the pipeline metrics
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		qualityScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: pipelineSubsystem,
				Name:      "dataset_quality_score",
				Help:      "Quality score of the last validation per dataset",
			},
			[]string{"dataset"},
		),
		overallQuality: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: pipelineSubsystem,
				Name:      "overall_quality_score",
				Help:      "Mean quality score across validated datasets",
			},
		),
		issues: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: pipelineSubsystem,
				Name:      "validation_issues_total",
				Help:      "Validation issues found by dataset and issue kind",
			},
			[]string{"dataset", "kind"},
		),
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: pipelineSubsystem,
				Name:      "records_total",
				Help:      "Records produced per dataset and origin",
			},
			[]string{"dataset", "origin"}, // origin: "collected", "synthetic"
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: pipelineSubsystem,
				Name:      "step_duration_seconds",
				Help:      "Duration of each pipeline step",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"step"},
		),
		sourceUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: pipelineSubsystem,
				Name:      "source_up",
				Help:      "Whether a data source was collected in the last run (1) or not (0)",
			},
			[]string{"source"},
		),
		lastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: pipelineSubsystem,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last pipeline run finished",
			},
		),
	}

	r.registry.MustRegister(
		r.qualityScore,
		r.overallQuality,
		r.issues,
		r.records,
		r.stepDuration,
		r.sourceUp,
		r.lastRunTimestamp,
	)
	return r
}

// Registry exposes the registry for an HTTP handler
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveStep records how long a pipeline step took
func (r *Recorder) ObserveStep(step string, d time.Duration) {
	r.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// AddRecords counts records for a dataset
func (r *Recorder) AddRecords(dataset, origin string, n int) {
	r.records.WithLabelValues(dataset, origin).Add(float64(n))
}

// SetSources records which sources were collected
func (r *Recorder) SetSources(status map[string]bool) {
	for source, ok := range status {
		v := 0.0
		if ok {
			v = 1
		}
		r.sourceUp.WithLabelValues(source).Set(v)
	}
}

// RecordValidation publishes scores and issue counts from one ValidateAll run
func (r *Recorder) RecordValidation(overall *validation.Overall) {
	if overall == nil {
		return
	}
	r.overallQuality.Set(overall.OverallQuality)
	for name, report := range overall.Datasets {
		r.qualityScore.WithLabelValues(name).Set(float64(report.QualityScore))
		for _, issue := range report.Details {
			r.issues.WithLabelValues(name, string(issue.Kind)).Inc()
		}
	}
}

// MarkFinished stamps the end of a run
func (r *Recorder) MarkFinished(at time.Time) {
	r.lastRunTimestamp.Set(float64(at.Unix()))
}

// WriteTextfile writes all metrics in the Prometheus text format, replacing
// path atomically
func (r *Recorder) WriteTextfile(path string) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %v", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %v", err)
	}
	defer os.Remove(tmp.Name())

	encoder := expfmt.NewEncoder(tmp, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode metric %s: %v", mf.GetName(), err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close metrics file: %v", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write metrics file: %v", err)
	}

	klog.V(2).InfoS("Wrote metrics textfile", "file", path, "families", len(families))
	return nil
}
