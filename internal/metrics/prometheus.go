package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Run outcomes used as label values
const (
	OutcomeOK       = "ok"
	OutcomeNoSpeech = "no_speech"
	OutcomeError    = "error"
	OutcomeCanceled = "canceled"
)

// Collector exposes pipeline runs as Prometheus metrics
type Collector struct {
	registry *prometheus.Registry

	RunsStarted    *prometheus.CounterVec
	RunsCompleted  *prometheus.CounterVec
	Failures       *prometheus.CounterVec
	Translations   *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	AudioDuration  prometheus.Histogram
	RealTimeFactor prometheus.Histogram
	ActiveRuns     prometheus.Gauge
}

// NewCollector registers all metrics on a private registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		RunsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudwhisper_runs_started_total",
			Help: "Pipeline runs started, by capture mode",
		}, []string{"mode"}),
		RunsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudwhisper_runs_completed_total",
			Help: "Pipeline runs finished, by capture mode and outcome",
		}, []string{"mode", "outcome"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudwhisper_failures_total",
			Help: "Pipeline failures by error kind",
		}, []string{"kind"}),
		Translations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudwhisper_translations_total",
			Help: "Translation attempts by outcome",
		}, []string{"outcome"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cloudwhisper_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"stage"}),
		AudioDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cloudwhisper_audio_duration_seconds",
			Help:    "Length of captured audio per run",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300},
		}),
		RealTimeFactor: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cloudwhisper_real_time_factor",
			Help:    "Transcription time divided by audio duration",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4},
		}),
		ActiveRuns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cloudwhisper_active_runs",
			Help: "Pipeline runs in progress",
		}),
	}
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RunStarted marks a run as in progress.
func (c *Collector) RunStarted(mode string) {
	if c == nil {
		return
	}
	c.RunsStarted.WithLabelValues(mode).Inc()
	c.ActiveRuns.Inc()
}

// RunFinished records a finished run. kind is the error kind for failed runs.
func (c *Collector) RunFinished(m *RunMetrics, outcome, kind string) {
	if c == nil {
		return
	}
	c.ActiveRuns.Dec()
	c.RunsCompleted.WithLabelValues(m.Mode, outcome).Inc()
	if kind != "" {
		c.Failures.WithLabelValues(kind).Inc()
	}

	m.mu.Lock()
	stages := make(map[string]float64, len(m.Stages))
	for stage, d := range m.Stages {
		stages[stage] = d.Seconds()
	}
	audioSeconds := m.audioDuration().Seconds()
	rtf := m.realTimeFactor()
	m.mu.Unlock()

	for stage, s := range stages {
		c.StageDuration.WithLabelValues(stage).Observe(s)
	}
	if audioSeconds > 0 {
		c.AudioDuration.Observe(audioSeconds)
		c.RealTimeFactor.Observe(rtf)
	}
}

// TranslationFinished counts one translation attempt.
func (c *Collector) TranslationFinished(err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.Translations.WithLabelValues(OutcomeError).Inc()
		return
	}
	c.Translations.WithLabelValues(OutcomeOK).Inc()
}

// Push sends the current metrics to a Prometheus Pushgateway. Short-lived
// CLI runs use it since nothing scrapes them.
func (c *Collector) Push(ctx context.Context, gatewayURL, job string) error {
	if job == "" {
		job = "cloudwhisper"
	}
	if err := push.New(gatewayURL, job).Gatherer(c.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
