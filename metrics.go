package altid

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"aqwari.net/net/altid/altidproto"
)

// Metrics holds Prometheus collectors for 9P connections. A nil
// *Metrics records nothing.
type Metrics struct {
	requests   *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inflight   prometheus.Gauge
	queued     prometheus.Gauge
	reconnects prometheus.Counter
	discarded  prometheus.Counter
	timeouts   prometheus.Counter
}

// NewMetrics creates the altid collectors and registers them with
// reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "altid",
			Subsystem: "9p",
			Name:      "requests_total",
			Help:      "Total number of 9P requests written to a transport.",
		}, []string{"type"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "altid",
			Subsystem: "9p",
			Name:      "request_failures_total",
			Help:      "Total number of 9P requests that did not succeed, by reason.",
		}, []string{"type", "reason"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "altid",
			Subsystem: "9p",
			Name:      "request_duration_seconds",
			Help:      "Time from writing a 9P request to receiving its response.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"type"}),
		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "altid",
			Subsystem: "9p",
			Name:      "requests_in_flight",
			Help:      "Number of 9P requests awaiting a response.",
		}),
		queued: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "altid",
			Subsystem: "9p",
			Name:      "requests_queued",
			Help:      "Number of 9P requests waiting to be written, as last seen by any connection.",
		}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "altid",
			Subsystem: "9p",
			Name:      "reconnects_total",
			Help:      "Total number of reconnect attempts after an aborted transport.",
		}),
		discarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "altid",
			Subsystem: "9p",
			Name:      "discarded_responses_total",
			Help:      "Total number of responses that matched no request in flight.",
		}),
		timeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "altid",
			Subsystem: "9p",
			Name:      "timeouts_total",
			Help:      "Total number of requests that timed out and were flushed.",
		}),
	}
}

func (m *Metrics) sent(r *request) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(altidproto.MsgName(r.msg.Type())).Inc()
	m.inflight.Inc()
}

// done is called once for every request that reached sent, and
// for requests failed before they could be sent.
func (m *Metrics) done(r *request, err error) {
	if m == nil || r.msg == nil {
		return
	}
	name := altidproto.MsgName(r.msg.Type())
	if !r.sent.IsZero() {
		m.inflight.Dec()
		m.duration.WithLabelValues(name).Observe(time.Since(r.sent).Seconds())
	}
	if err != nil {
		m.failures.WithLabelValues(name, failureReason(err)).Inc()
	}
}

func failureReason(err error) string {
	var (
		re *RemoteError
		te *TransportError
	)
	switch {
	case errors.As(err, &re):
		return "remote"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.As(err, &te):
		return "transport_" + te.Kind.String()
	case errors.Is(err, ErrClosed):
		return "closed"
	}
	return "other"
}

func (m *Metrics) setQueued(n int) {
	if m != nil {
		m.queued.Set(float64(n))
	}
}

func (m *Metrics) reconnect() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) discard() {
	if m != nil {
		m.discarded.Inc()
	}
}

func (m *Metrics) timeout() {
	if m != nil {
		m.timeouts.Inc()
	}
}
