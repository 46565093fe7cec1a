package scribepool

import "time"

// Metrics defines the interface for tracking scheduler operations.
type Metrics interface {
	// RecordSchedule records a completed scheduling attempt for a unit of work.
	RecordSchedule(work string, cost int, success bool)

	// RecordKeySelection records which pool slot was chosen and its remaining quota.
	RecordKeySelection(keyIndex, remaining int)

	// RecordRetry records one backoff wait before a retry attempt.
	RecordRetry(work string, attempt int, delay time.Duration)

	// RecordQuotaResync records an authoritative usage correction for a pool slot.
	RecordQuotaResync(keyIndex int)

	// RecordFailover records a mid-flight credential substitution.
	RecordFailover(fromIndex, toIndex int)

	// RecordBackpressure records a rejection because the whole pool was exhausted.
	RecordBackpressure(waitSeconds int)

	// RecordStoreOperation records the duration and status of a persistence operation.
	RecordStoreOperation(operation string, duration time.Duration, err error)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordSchedule(work string, cost int, success bool)                {}
func (n *NoopMetrics) RecordKeySelection(keyIndex, remaining int)                        {}
func (n *NoopMetrics) RecordRetry(work string, attempt int, delay time.Duration)         {}
func (n *NoopMetrics) RecordQuotaResync(keyIndex int)                                    {}
func (n *NoopMetrics) RecordFailover(fromIndex, toIndex int)                             {}
func (n *NoopMetrics) RecordBackpressure(waitSeconds int)                                {}
func (n *NoopMetrics) RecordStoreOperation(operation string, d time.Duration, err error) {}
