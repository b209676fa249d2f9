// Package metrics содержит Prometheus-метрики одного запуска пайплайна.
// Реестр создаётся явно и передаётся в компоненты: глобальный DefaultRegisterer не используется.
package metrics

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"procedure-review/shared/models"
)

// JobName - имя job для Pushgateway.
const JobName = "procedure_review"

// Metrics группирует счётчики пайплайна. Все методы допускают nil-получатель.
type Metrics struct {
	registry *prometheus.Registry

	assetsResolved   *prometheus.CounterVec
	assemblyDuration prometheus.Histogram
	deliveries       *prometheus.CounterVec
	runs             *prometheus.CounterVec
}

// New регистрирует все метрики в новом реестре.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		assetsResolved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procedure_review_assets_resolved_total",
				Help: "Total number of asset references resolved, by kind and status.",
			},
			[]string{"kind", "status"}, // status: "success", "error"
		),
		assemblyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "procedure_review_assembly_duration_seconds",
			Help:    "Duration of procedure assembly (all asset resolutions).",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procedure_review_deliveries_total",
				Help: "Delivery outcomes per sink.",
			},
			[]string{"sink", "status"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procedure_review_runs_total",
				Help: "Pipeline runs by final status.",
			},
			[]string{"status"},
		),
	}
}

// Registry exposes the underlying registry (for /metrics handlers and tests).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveResolution учитывает разрешение одной ссылки.
func (m *Metrics) ObserveResolution(kind models.AssetKind, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.assetsResolved.WithLabelValues(string(kind), status).Inc()
}

// ObserveAssembly записывает длительность сборки.
func (m *Metrics) ObserveAssembly(d time.Duration) {
	if m == nil {
		return
	}
	m.assemblyDuration.Observe(d.Seconds())
}

// ObserveDelivery учитывает оба направления доставки, включая skipped.
func (m *Metrics) ObserveDelivery(outcome models.DeliveryOutcome) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(string(models.SinkLocal), string(outcome.Local.Status)).Inc()
	m.deliveries.WithLabelValues(string(models.SinkRemote), string(outcome.Remote.Status)).Inc()
}

// ObserveRun учитывает итог запуска.
func (m *Metrics) ObserveRun(status models.RunStatus) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(status)).Inc()
}

// Push отправляет текущие значения в Pushgateway одним запросом.
func (m *Metrics) Push(gatewayURL string) error {
	if m == nil || gatewayURL == "" {
		return nil
	}
	hostname, _ := os.Hostname()
	pusher := push.New(gatewayURL, JobName).
		Grouping("instance", hostname).
		Gatherer(m.registry)
	if err := pusher.Push(); err != nil {
		return fmt.Errorf("push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
