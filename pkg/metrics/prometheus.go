package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
)

var _ repository.Metrics = (*Recorder)(nil)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	analyses       *prometheus.CounterVec
	analysisTime   prometheus.Histogram
	moduleFailures *prometheus.CounterVec
	scans          prometheus.Counter
	scanTickers    prometheus.Counter
	scanMatched    prometheus.Gauge
	scanTime       prometheus.Histogram
	fetchErrors    *prometheus.CounterVec
	cacheResults   *prometheus.CounterVec
	trainings      *prometheus.CounterVec
	trainSamples   *prometheus.GaugeVec
	trainScores    *prometheus.GaugeVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New registers the recorder's collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_sapta_analyses_total",
				Help: "Completed analyses by resulting status",
			},
			[]string{"status"},
		),
		analysisTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulse_sapta_analysis_seconds",
			Help:    "Wall time of a single-instrument analysis",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		moduleFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_sapta_module_failures_total",
				Help: "Scorer modules that errored or panicked",
			},
			[]string{"module"},
		),
		scans: f.NewCounter(prometheus.CounterOpts{
			Name: "pulse_sapta_scans_total",
			Help: "Completed universe scans",
		}),
		scanTickers: f.NewCounter(prometheus.CounterOpts{
			Name: "pulse_sapta_scan_tickers_total",
			Help: "Tickers considered across scans",
		}),
		scanMatched: f.NewGauge(prometheus.GaugeOpts{
			Name: "pulse_sapta_scan_matched",
			Help: "Results kept by the most recent scan",
		}),
		scanTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulse_sapta_scan_seconds",
			Help:    "Wall time of a universe scan",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		fetchErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_fetch_errors_total",
				Help: "Failed bar fetches by source",
			},
			[]string{"source"},
		),
		cacheResults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_cache_requests_total",
				Help: "Bar cache lookups by backend and result",
			},
			[]string{"backend", "result"},
		),
		trainings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_training_runs_total",
				Help: "Completed training runs by mode",
			},
			[]string{"mode"},
		),
		trainSamples: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pulse_training_samples",
				Help: "Samples used by the latest training run",
			},
			[]string{"mode"},
		),
		trainScores: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pulse_training_score",
				Help: "Evaluation metrics of the latest training run",
			},
			[]string{"mode", "metric"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordAnalysis counts a finished analysis.
func (r *Recorder) RecordAnalysis(status models.Status, seconds float64) {
	r.analyses.WithLabelValues(string(status)).Inc()
	r.analysisTime.Observe(seconds)
}

func (r *Recorder) RecordModuleFailure(module string) {
	r.moduleFailures.WithLabelValues(module).Inc()
}

// RecordScan records one scan over tickers instruments of which matched were kept.
func (r *Recorder) RecordScan(tickers, matched int, seconds float64) {
	r.scans.Inc()
	r.scanTickers.Add(float64(tickers))
	r.scanMatched.Set(float64(matched))
	r.scanTime.Observe(seconds)
}

func (r *Recorder) RecordFetchError(source string) {
	r.fetchErrors.WithLabelValues(source).Inc()
}

func (r *Recorder) RecordCacheResult(backend string, hit bool) {
	r.cacheResults.WithLabelValues(backend, hitLabel(hit)).Inc()
}

// RecordTraining stores the evaluation of the latest run per mode.
func (r *Recorder) RecordTraining(mode string, samples int, m models.ClassificationMetrics) {
	r.trainings.WithLabelValues(mode).Inc()
	r.trainSamples.WithLabelValues(mode).Set(float64(samples))
	for name, v := range map[string]float64{
		"accuracy":  m.Accuracy,
		"precision": m.Precision,
		"recall":    m.Recall,
		"f1":        m.F1,
		"auc_roc":   m.AUCROC,
	} {
		r.trainScores.WithLabelValues(mode, name).Set(v)
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
