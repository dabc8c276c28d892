// Package metrics holds the Prometheus counters riskdesk updates while it
// connects, sizes and sends orders.
//
//   - riskdesk_connect_attempts_total{result}: terminal initialize attempts (ok|error)
//   - riskdesk_sizing_total{result}: sizing decisions (trade or a skip code)
//   - riskdesk_stop_adjustments_total{symbol}: stops raised to the broker minimum
//   - riskdesk_orders_total{action,status}: orders by action (open|close_half|close) and outcome
//   - riskdesk_last_run_timestamp_seconds: set when the textfile is written
//
// A command runs once and exits, so instead of serving /metrics the registry
// is written to a node-exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Registry *prometheus.Registry

	connectAttempts *prometheus.CounterVec
	sizing          *prometheus.CounterVec
	stopAdjustments *prometheus.CounterVec
	orders          *prometheus.CounterVec
	lastRun         prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		connectAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskdesk_connect_attempts_total",
				Help: "Terminal initialize attempts",
			},
			[]string{"result"},
		),
		sizing: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskdesk_sizing_total",
				Help: "Position sizing decisions by result",
			},
			[]string{"result"},
		),
		stopAdjustments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskdesk_stop_adjustments_total",
				Help: "Stop distances raised to the broker minimum",
			},
			[]string{"symbol"},
		),
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskdesk_orders_total",
				Help: "Orders by action and outcome status",
			},
			[]string{"action", "status"},
		),
		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "riskdesk_last_run_timestamp_seconds",
				Help: "Unix time the metrics textfile was last written",
			},
		),
	}
	m.Registry.MustRegister(m.connectAttempts, m.sizing, m.stopAdjustments, m.orders, m.lastRun)
	return m
}

// The recording methods are safe on a nil *Metrics.

func (m *Metrics) ConnectAttempt(ok bool) {
	if m == nil {
		return
	}
	result := "error"
	if ok {
		result = "ok"
	}
	m.connectAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) Sizing(result string) {
	if m == nil {
		return
	}
	m.sizing.WithLabelValues(result).Inc()
}

func (m *Metrics) StopAdjusted(symbol string) {
	if m == nil {
		return
	}
	m.stopAdjustments.WithLabelValues(symbol).Inc()
}

func (m *Metrics) Order(action, status string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(action, status).Inc()
}

// WriteTextfile writes the registry in text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	m.lastRun.Set(float64(time.Now().Unix()))
	return prometheus.WriteToTextfile(path, m.Registry)
}
