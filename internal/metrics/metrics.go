// Package metrics counts pipeline outcomes and exports them as a Prometheus
// textfile for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "phanatic"

// Metrics holds the collectors of one run on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	samples  *prometheus.CounterVec
	verdicts *prometheus.CounterVec
	stages   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	genomes  prometheus.Counter
	barcodes prometheus.Counter
	gaps     *prometheus.CounterVec
}

// New registers the pipeline collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Samples processed, by final status.",
		}, []string{"status"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contig_verdicts_total",
			Help:      "Candidate contigs classified, by decision.",
		}, []string{"decision"}),
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "External stage invocations, by stage and outcome.",
		}, []string{"stage", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of external stage invocations.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"stage"}),
		genomes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "genomes_extracted_total",
			Help:      "Genomes written to the extraction directory.",
		}),
		barcodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "barcodes_issued_total",
			Help:      "Barcodes issued.",
		}),
		gaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statistics_gaps_total",
			Help:      "Statistics tables that could not be read, by table.",
		}, []string{"table"}),
	}
	m.reg.MustRegister(m.samples, m.verdicts, m.stages, m.duration, m.genomes, m.barcodes, m.gaps)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveStage implements stages.Observer.
func (m *Metrics) ObserveStage(stage string, ok bool, d time.Duration) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.stages.WithLabelValues(stage, outcome).Inc()
	m.duration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveSample counts a finished sample.
func (m *Metrics) ObserveSample(status string) { m.samples.WithLabelValues(status).Inc() }
func (m *Metrics) ObserveVerdict(decision string) { m.verdicts.WithLabelValues(decision).Inc() }
func (m *Metrics) ObserveGap(table string) { m.gaps.WithLabelValues(table).Inc() }
func (m *Metrics) GenomeExtracted() { m.genomes.Inc() }
func (m *Metrics) BarcodeIssued() { m.barcodes.Inc() }

// WriteTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
