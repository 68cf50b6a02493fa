package metrics

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/randalmurphal/backupflow"
)

const namespace = "backupflow"

// Metrics holds the gauges for one job on one host.
type Metrics struct {
	registry *prometheus.Registry

	mu          sync.Mutex
	lastSuccess float64

	LastRunTimestamp     prometheus.Gauge
	LastRunSuccess       prometheus.Gauge
	LastSuccessTimestamp prometheus.Gauge
	LastRunDuration      prometheus.Gauge
	ArtifactBytes        prometheus.Gauge
	RotatedFiles         prometheus.Gauge
	DeletionFailures     prometheus.Gauge
	RunsTotal            *prometheus.CounterVec
}

// New creates Metrics on a private registry.
func New(job, host string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"job": job, "host": host}

	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	return &Metrics{
		registry:             reg,
		LastRunTimestamp:     gauge("last_run_timestamp_seconds", "Unix time the last backup run finished"),
		LastRunSuccess:       gauge("last_run_success", "Whether the last backup run succeeded (1) or failed (0)"),
		LastSuccessTimestamp: gauge("last_success_timestamp_seconds", "Unix time of the last successful backup run"),
		LastRunDuration:      gauge("last_run_duration_seconds", "Duration of the last backup run in seconds"),
		ArtifactBytes:        gauge("last_run_artifact_bytes", "Total size of the artifacts produced by the last run"),
		RotatedFiles:         gauge("last_run_rotated_files", "Old artifacts deleted by the last run"),
		DeletionFailures:     gauge("last_run_deletion_failures", "Old artifacts the last run failed to delete"),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "runs_total",
			Help:        "Backup runs since the process started, by result",
			ConstLabels: labels,
		}, []string{"result"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe updates every gauge from a finished run.
func (m *Metrics) Observe(r *backupflow.RunResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	finished := r.FinishedAt
	if finished.IsZero() {
		finished = r.StartedAt
	}
	m.LastRunTimestamp.Set(float64(finished.Unix()))
	m.LastRunDuration.Set(r.Duration().Seconds())
	m.ArtifactBytes.Set(float64(r.Bytes()))
	m.RotatedFiles.Set(float64(r.Deleted()))
	m.DeletionFailures.Set(float64(r.DeletionFailures()))

	if r.Succeeded() {
		m.lastSuccess = float64(finished.Unix())
		m.LastRunSuccess.Set(1)
		m.RunsTotal.WithLabelValues("success").Inc()
	} else {
		m.LastRunSuccess.Set(0)
		m.RunsTotal.WithLabelValues("failure").Inc()
	}
	m.LastSuccessTimestamp.Set(m.lastSuccess)
}

// WriteTextfile writes the registry to path in the text exposition format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// LoadTextfile restores the last success timestamp from a textfile written
// by an earlier process. A missing file is not an error.
func (m *Metrics) LoadTextfile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read metrics textfile: %w", err)
	}
	defer f.Close()

	name := namespace + "_last_success_timestamp_seconds"
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, name+"{") && !strings.HasPrefix(line, name+" ") {
			continue
		}
		fields := strings.Fields(line)
		v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		m.mu.Lock()
		m.lastSuccess = v
		m.LastSuccessTimestamp.Set(v)
		m.mu.Unlock()
		return nil
	}
	return scanner.Err()
}
