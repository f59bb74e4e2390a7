// Package observability adapts the node's Observability port onto
// log/slog structured JSON logging and Prometheus metrics, the same
// ambient stack the teacher repo uses.
package observability

import (
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/VamoKnut/hastig/internal/ports"
)

// PromObs is the production Observability adapter: slog for structured
// events, lazily-registered Prometheus counters/gauges/histograms for
// metrics, keyed by name and label set.
type PromObs struct {
	logger *slog.Logger

	mu        sync.Mutex
	counters  map[string]*prometheus.CounterVec
	gauges    map[string]*prometheus.GaugeVec
	latencies *prometheus.HistogramVec
}

// NewPromObs builds a PromObs writing JSON logs to stdout.
func NewPromObs() *PromObs {
	return &PromObs{
		logger:   slog.New(slog.NewJSONHandler(os.Stdout, nil)),
		counters: make(map[string]*prometheus.CounterVec),
		gauges:   make(map[string]*prometheus.GaugeVec),
		latencies: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hastig_activity_latency_seconds",
			Help:    "Latency of activity operations, labeled by activity name.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"activity"}),
	}
}

func fieldsToAttrs(fields []ports.Field) []any {
	attrs := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		attrs = append(attrs, f.Key, f.Value)
	}
	return attrs
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, fieldsToAttrs(fields)...)
}

func (p *PromObs) LogWarn(msg string, fields ...ports.Field) {
	p.logger.Warn(msg, fieldsToAttrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	attrs := fieldsToAttrs(fields)
	if err != nil {
		attrs = append(attrs, "err", err.Error())
	}
	p.logger.Error(msg, attrs...)
}

func labelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p *PromObs) IncCounter(name string, labels map[string]string, v float64) {
	p.mu.Lock()
	vec, ok := p.counters[name]
	if !ok {
		keys := labelKeys(labels)
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name,
			Help: strings.ReplaceAll(name, "_", " ") + " counter.",
		}, keys)
		prometheus.MustRegister(vec)
		p.counters[name] = vec
	}
	p.mu.Unlock()
	vec.With(labels).Add(v)
}

func (p *PromObs) SetGauge(name string, labels map[string]string, v float64) {
	p.mu.Lock()
	vec, ok := p.gauges[name]
	if !ok {
		keys := labelKeys(labels)
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: name,
			Help: strings.ReplaceAll(name, "_", " ") + " gauge.",
		}, keys)
		prometheus.MustRegister(vec)
		p.gauges[name] = vec
	}
	p.mu.Unlock()
	vec.With(labels).Set(v)
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	p.latencies.WithLabelValues(name).Observe(seconds)
}

var _ ports.Observability = (*PromObs)(nil)
