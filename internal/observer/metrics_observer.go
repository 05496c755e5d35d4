package observer

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsObserver turns events into prometheus metrics on its own registry
type MetricsObserver struct {
	registry *prometheus.Registry

	inferencesTotal   *prometheus.CounterVec
	inferenceDuration *prometheus.HistogramVec
	historyWrites     *prometheus.CounterVec
	settingsWrites    *prometheus.CounterVec
	activeStreams     prometheus.Gauge
	mediaChanges      prometheus.Counter
}

// NewMetricsObserver creates a metrics observer with a fresh registry
func NewMetricsObserver() *MetricsObserver {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &MetricsObserver{
		registry: reg,
		inferencesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "media_analyzer_inferences_total",
				Help: "Total number of inference calls by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		inferenceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "media_analyzer_inference_duration_seconds",
				Help:    "Inference duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"mode"},
		),
		historyWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "media_analyzer_history_writes_total",
				Help: "History writes by outcome",
			},
			[]string{"outcome"},
		),
		settingsWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "media_analyzer_settings_writes_total",
				Help: "Durable settings writes by outcome",
			},
			[]string{"outcome"},
		),
		activeStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "media_analyzer_active_streams",
			Help: "Number of video streams currently running",
		}),
		mediaChanges: factory.NewCounter(prometheus.CounterOpts{
			Name: "media_analyzer_media_changes_total",
			Help: "Number of times the media element was replaced",
		}),
	}
}

// OnEvent handles events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event Event) {
	switch event.Type {
	case ResultChanged:
		o.inferencesTotal.WithLabelValues(string(event.Mode), "success").Inc()
		if event.Duration > 0 {
			o.inferenceDuration.WithLabelValues(string(event.Mode)).Observe(event.Duration.Seconds())
		}
	case InferenceFailed:
		o.inferencesTotal.WithLabelValues(string(event.Mode), "failure").Inc()
	case HistoryChanged:
		o.historyWrites.WithLabelValues(outcome(event.Success)).Inc()
	case SettingsPersisted:
		o.settingsWrites.WithLabelValues(outcome(event.Success)).Inc()
	case StreamStarted:
		o.activeStreams.Inc()
	case StreamStopped:
		o.activeStreams.Dec()
	case MediaChanged:
		o.mediaChanges.Inc()
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// Handler serves the registry in the prometheus exposition format
func (o *MetricsObserver) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (o *MetricsObserver) Registry() *prometheus.Registry {
	return o.registry
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
