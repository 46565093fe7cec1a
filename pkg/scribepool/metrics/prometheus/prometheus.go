package prommetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements scribepool.Metrics using Prometheus.
type Metrics struct {
	scheduleTotal      *prometheus.CounterVec
	scheduleCost       *prometheus.HistogramVec
	keySelectionsTotal *prometheus.CounterVec
	keyRemaining       *prometheus.GaugeVec
	retriesTotal       *prometheus.CounterVec
	retryDelay         *prometheus.HistogramVec
	quotaResyncsTotal  *prometheus.CounterVec
	failoversTotal     *prometheus.CounterVec
	backpressureTotal  prometheus.Counter
	backpressureWait   prometheus.Histogram
	storeOpsDuration   *prometheus.HistogramVec
	storeOpsErrors     *prometheus.CounterVec
}

// NewMetrics creates a new Prometheus metrics implementation.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		scheduleTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_total",
			Help:      "Total number of scheduling attempts.",
		}, []string{"work", "success"}),

		scheduleCost: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "schedule_cost_seconds",
			Help:      "Distribution of scheduled job costs, in audio seconds.",
			Buckets:   []float64{10, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"work"}),

		keySelectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_selections_total",
			Help:      "Total number of times each pool slot was selected.",
		}, []string{"key_index"}),

		keyRemaining: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "key_remaining_seconds",
			Help:      "Remaining quota of each pool slot at selection time.",
		}, []string{"key_index"}),

		retriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of retry attempts.",
		}, []string{"work"}),

		retryDelay: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retry_delay_seconds",
			Help:      "Distribution of backoff delays before retries.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"work"}),

		quotaResyncsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_resyncs_total",
			Help:      "Total number of authoritative usage corrections per pool slot.",
		}, []string{"key_index"}),

		failoversTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failovers_total",
			Help:      "Total number of mid-flight credential substitutions.",
		}, []string{"from", "to"}),

		backpressureTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backpressure_total",
			Help:      "Total number of jobs rejected because every key was exhausted.",
		}),

		backpressureWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backpressure_wait_seconds",
			Help:      "Suggested wait reported to callers under backpressure.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 900, 3600},
		}),

		storeOpsDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Latency of persistence operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		storeOpsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operation_errors_total",
			Help:      "Total number of persistence operation errors.",
		}, []string{"operation"}),
	}
}

func (m *Metrics) RecordSchedule(work string, cost int, success bool) {
	m.scheduleTotal.WithLabelValues(work, strconv.FormatBool(success)).Inc()
	if success {
		m.scheduleCost.WithLabelValues(work).Observe(float64(cost))
	}
}

func (m *Metrics) RecordKeySelection(keyIndex, remaining int) {
	idx := strconv.Itoa(keyIndex)
	m.keySelectionsTotal.WithLabelValues(idx).Inc()
	m.keyRemaining.WithLabelValues(idx).Set(float64(remaining))
}

func (m *Metrics) RecordRetry(work string, attempt int, delay time.Duration) {
	m.retriesTotal.WithLabelValues(work).Inc()
	m.retryDelay.WithLabelValues(work).Observe(delay.Seconds())
}

func (m *Metrics) RecordQuotaResync(keyIndex int) {
	m.quotaResyncsTotal.WithLabelValues(strconv.Itoa(keyIndex)).Inc()
}

func (m *Metrics) RecordFailover(fromIndex, toIndex int) {
	m.failoversTotal.WithLabelValues(strconv.Itoa(fromIndex), strconv.Itoa(toIndex)).Inc()
}

func (m *Metrics) RecordBackpressure(waitSeconds int) {
	m.backpressureTotal.Inc()
	m.backpressureWait.Observe(float64(waitSeconds))
}

func (m *Metrics) RecordStoreOperation(operation string, duration time.Duration, err error) {
	m.storeOpsDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.storeOpsErrors.WithLabelValues(operation).Inc()
	}
}

// DefaultMetrics returns a Metrics implementation using the default Prometheus registerer.
func DefaultMetrics(namespace string) *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer, namespace)
}
