// Package simmetrics exposes Prometheus counters and gauges for a
// Network's dispatch outcomes. Unlike an interval poller, the caller
// that drives sends (cmd/dsim run) records each outcome here as it
// happens; simnet itself never calls this package. There is no scrape
// target to poll inside one simulated process, only an optional HTTP
// listener for external inspection of a running demo.
package simmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"
)

// DropReason labels why a TrySend did not produce a delivery.
type DropReason string

const (
	DropReasonLoss       DropReason = "loss"
	DropReasonClogged    DropReason = "clogged"
	DropReasonUnresolved DropReason = "unresolved"
	DropReasonNoSocket   DropReason = "no_socket"
)

// Collector holds the metric vectors for one simulated run.
type Collector struct {
	delivered prometheus.Counter
	dropped   *prometheus.CounterVec
	cancelled prometheus.Counter
	inFlight  prometheus.Gauge
}

// New registers dsim's metric vectors under the given namespace. Two
// Collectors sharing a registry would panic on duplicate registration,
// matching promauto's usual behavior; callers only build one per
// process.
func New(registry prometheus.Registerer, namespace string) *Collector {
	factory := promauto.With(registry)
	registry.MustRegister(version.NewCollector(namespace))
	return &Collector{
		delivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Total number of packets admitted by the link oracle and handed to a destination socket.",
		}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Total number of packets that did not reach a destination socket, by reason.",
		}, []string{"reason"}),
		cancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_cancelled_total",
			Help:      "Total number of scheduled deliveries cancelled by a destination node reset before they fired.",
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_deliveries",
			Help:      "Number of deliveries scheduled but not yet fired or cancelled.",
		}),
	}
}

// RecordDelivered increments the delivered counter and should be
// paired with a DeliveryScheduled/DeliveryFinished call marking the
// in-flight window.
func (c *Collector) RecordDelivered() { c.delivered.Inc() }

// RecordDropped increments the dropped counter for the given reason.
func (c *Collector) RecordDropped(reason DropReason) {
	c.dropped.WithLabelValues(string(reason)).Inc()
}

// RecordCancelled increments the cancelled counter.
func (c *Collector) RecordCancelled() { c.cancelled.Inc() }

// DeliveryScheduled marks one more delivery as in flight; call
// DeliveryFinished when it fires or is cancelled.
func (c *Collector) DeliveryScheduled() { c.inFlight.Inc() }

// DeliveryFinished marks an in-flight delivery as resolved, one way or
// the other.
func (c *Collector) DeliveryFinished() { c.inFlight.Dec() }

// Handler returns the HTTP handler a demo process can mount at
// /metrics for external inspection.
func Handler() http.Handler {
	return promhttp.Handler()
}
