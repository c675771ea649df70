/*
Copyright AppsCode Inc. and Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink is the observability seam for the engine, an additive
// component beyond spec.md's explicit scope (see SPEC_FULL.md "Metrics").
// A facade that does not care about metrics can supply NopMetrics.
type MetricsSink interface {
	PacketSent()
	PacketReceived()
	Reconnected(server string)
	PingRoundTrip(d time.Duration)
	PendingQueueDepth(n int)
	SessionState(s State)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) PacketSent()                 {}
func (NopMetrics) PacketReceived()             {}
func (NopMetrics) Reconnected(string)          {}
func (NopMetrics) PingRoundTrip(time.Duration) {}
func (NopMetrics) PendingQueueDepth(int)       {}
func (NopMetrics) SessionState(State)          {}

// PrometheusMetrics is the concrete MetricsSink backing the
// zk_session_* series described in SPEC_FULL.md. Register it once per
// process with a prometheus.Registerer of the facade's choosing.
type PrometheusMetrics struct {
	sent       prometheus.Counter
	received   prometheus.Counter
	reconnects *prometheus.CounterVec
	pingRTT    prometheus.Histogram
	pendingLen prometheus.Gauge
	stateGauge prometheus.Gauge
}

// NewPrometheusMetrics constructs and registers the collector set on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zk_session_packets_sent_total",
			Help: "Packets written to the socket by the request producer.",
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zk_session_packets_received_total",
			Help: "Replies and notifications read from the socket.",
		}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zk_session_reconnects_total",
			Help: "Reconnection attempts that resulted in a new socket.",
		}, []string{"server"}),
		pingRTT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zk_session_ping_round_trip_seconds",
			Help:    "Time between sending a ping and observing the matching pong.",
			Buckets: prometheus.DefBuckets,
		}),
		pendingLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zk_session_pending_queue_depth",
			Help: "Number of requests written to the socket awaiting a reply (C3).",
		}),
		stateGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zk_session_state",
			Help: "Current session state ordinal (see session.State).",
		}),
	}
	reg.MustRegister(m.sent, m.received, m.reconnects, m.pingRTT, m.pendingLen, m.stateGauge)
	return m
}

func (m *PrometheusMetrics) PacketSent()     { m.sent.Inc() }
func (m *PrometheusMetrics) PacketReceived() { m.received.Inc() }
func (m *PrometheusMetrics) Reconnected(server string) {
	m.reconnects.WithLabelValues(server).Inc()
}
func (m *PrometheusMetrics) PingRoundTrip(d time.Duration) { m.pingRTT.Observe(d.Seconds()) }
func (m *PrometheusMetrics) PendingQueueDepth(n int)       { m.pendingLen.Set(float64(n)) }
func (m *PrometheusMetrics) SessionState(s State)          { m.stateGauge.Set(float64(s)) }
