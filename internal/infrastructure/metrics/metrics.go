package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "graylogic_zigbee"

// Result label values for command outcomes.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Collector records gateway activity as Prometheus metrics.
//
// It satisfies the bridge's Metrics interface.
type Collector struct {
	registry *prometheus.Registry

	received    *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	commands    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	queueDepth  prometheus.Gauge
	httpTraffic *prometheus.CounterVec
}

// New creates a Collector with its own registry, including the Go runtime
// and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Command messages received by kind (set or get).",
		}, []string{"kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Command messages dropped before reaching the device network, by reason.",
		}, []string{"reason"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands completed against the device network, by cluster and result.",
		}, []string{"cluster", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time from dequeue to completion of a device network command.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"cluster"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Commands waiting in the queue.",
		}),
		httpTraffic: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Admin API requests by route, method, and status.",
		}, []string{"route", "method", "status"}),
	}

	c.registry.MustRegister(
		c.received,
		c.dropped,
		c.commands,
		c.duration,
		c.queueDepth,
		c.httpTraffic,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// MessageReceived counts an accepted command topic.
func (c *Collector) MessageReceived(kind string) {
	c.received.WithLabelValues(kind).Inc()
}

// MessageDropped counts a message that produced no command.
func (c *Collector) MessageDropped(reason string) {
	c.dropped.WithLabelValues(reason).Inc()
}

// SetQueueDepth reports the current queue depth.
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// RecordCommand records the outcome and latency of one command.
func (c *Collector) RecordCommand(_, _, cluster string, duration time.Duration, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	c.commands.WithLabelValues(cluster, result).Inc()
	c.duration.WithLabelValues(cluster).Observe(duration.Seconds())
}

// ObserveHTTP counts one admin API request.
func (c *Collector) ObserveHTTP(route, method string, status int) {
	c.httpTraffic.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

// Handler returns the exposition handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
