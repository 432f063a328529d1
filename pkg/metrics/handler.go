package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RecordsProduced   prometheus.Counter
	RecordsDispatched prometheus.Counter
	RecordsDropped    prometheus.Counter
	TicksSkipped      prometheus.Counter
	SinkErrors        prometheus.Counter
	DispatchLatency   prometheus.Histogram
	RecordSize        prometheus.Histogram
	ProducerUp        prometheus.Gauge
}

// NewMetrics registers the producer instruments on the given registerer.
// Pass a fresh prometheus.NewRegistry() in tests to avoid collisions.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsProduced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_produced_total",
			Help:      "The total number of records generated",
		}),
		RecordsDispatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dispatched_total",
			Help:      "The total number of records delivered to the sink",
		}),
		RecordsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "The total number of records quarantined after a failed dispatch",
		}),
		TicksSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_skipped_total",
			Help:      "Number of tick deadlines missed and skipped by the scheduler",
		}),
		SinkErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Number of sink delivery failures after retries",
		}),
		DispatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_latency_seconds",
			Help:      "Sink delivery latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		RecordSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "record_size_bytes",
			Help:      "Size of serialized records in bytes",
			Buckets:   []float64{64, 128, 256, 512, 1024, 2048, 4096, 8192},
		}),
		ProducerUp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "producer_running",
			Help:      "1 while the producer is in the running state",
		}),
	}
}
