// Package metrics is a lock-free counter aggregator for submit/DLR traffic,
// kept per-bind and as a running total. Every counter is a relaxed atomic
// add; averages are derived only at snapshot time.
package metrics

import (
	"sync/atomic"
	"time"
)

// DLRState is the SMPP message_state a delivery receipt reports, collapsed
// to the set of terminal/near-terminal states this package counts.
type DLRState int

const (
	DLRUnknown DLRState = iota
	DLREnroute
	DLRDelivered
	DLRExpired
	DLRDeleted
	DLRUndeliverable
	DLRAccepted
	DLRRejected
)

// Metrics holds per-bind counters plus a running total across all binds.
type Metrics struct {
	total  bindCounters
	perBin []bindCounters
}

// New returns Metrics sized for bindCount binds.
func New(bindCount int) *Metrics {
	return &Metrics{perBin: make([]bindCounters, bindCount)}
}

type bindCounters struct {
	attempts     uint64
	success      uint64
	errorCount   uint64
	latencyMicro uint64

	dlrReceived     uint64
	dlrLatencyMicro uint64

	dlrDelivered     uint64
	dlrFailed        uint64
	dlrUnknownCount  uint64
	dlrEnrouteCount  uint64
	dlrExpiredCount  uint64
	dlrDeletedCount  uint64
	dlrAcceptedCount uint64
}

func (b *bindCounters) recordSuccess(latency time.Duration) {
	atomic.AddUint64(&b.attempts, 1)
	atomic.AddUint64(&b.success, 1)
	atomic.AddUint64(&b.latencyMicro, clampMicros(latency))
}

func (b *bindCounters) recordError(latency time.Duration) {
	atomic.AddUint64(&b.attempts, 1)
	atomic.AddUint64(&b.errorCount, 1)
	atomic.AddUint64(&b.latencyMicro, clampMicros(latency))
}

func (b *bindCounters) recordDLR(delay time.Duration) {
	atomic.AddUint64(&b.dlrReceived, 1)
	atomic.AddUint64(&b.dlrLatencyMicro, clampMicros(delay))
}

func (b *bindCounters) recordDLRStatus(delivered, failed bool) {
	switch {
	case delivered:
		atomic.AddUint64(&b.dlrDelivered, 1)
	case failed:
		atomic.AddUint64(&b.dlrFailed, 1)
	default:
		atomic.AddUint64(&b.dlrUnknownCount, 1)
	}
}

func (b *bindCounters) recordDLRState(state DLRState) {
	switch state {
	case DLREnroute:
		atomic.AddUint64(&b.dlrEnrouteCount, 1)
	case DLRDelivered:
		atomic.AddUint64(&b.dlrDelivered, 1)
	case DLRExpired:
		atomic.AddUint64(&b.dlrExpiredCount, 1)
	case DLRDeleted:
		atomic.AddUint64(&b.dlrDeletedCount, 1)
	case DLRUndeliverable, DLRRejected:
		atomic.AddUint64(&b.dlrFailed, 1)
	case DLRAccepted:
		atomic.AddUint64(&b.dlrAcceptedCount, 1)
	default:
		atomic.AddUint64(&b.dlrUnknownCount, 1)
	}
}

func clampMicros(d time.Duration) uint64 {
	micros := d.Microseconds()
	if micros < 0 {
		return 0
	}
	return uint64(micros)
}

// RecordSuccess increments attempts/success and adds latency, on both the
// bind slot and the running total.
func (m *Metrics) RecordSuccess(bindIdx int, latency time.Duration) {
	m.total.recordSuccess(latency)
	if b := m.bind(bindIdx); b != nil {
		b.recordSuccess(latency)
	}
}

// RecordError is the symmetric counterpart of RecordSuccess.
func (m *Metrics) RecordError(bindIdx int, latency time.Duration) {
	m.total.recordError(latency)
	if b := m.bind(bindIdx); b != nil {
		b.recordError(latency)
	}
}

// RecordDLR increments dlr_received and adds delay, on the bind slot only
// (DLR delay is not rolled into the process-wide total).
func (m *Metrics) RecordDLR(bindIdx int, delay time.Duration) {
	if b := m.bind(bindIdx); b != nil {
		b.recordDLR(delay)
	}
}

// RecordDLRStatus increments exactly one of {delivered, failed, unknown} on
// the bind slot, per the coarse textual-DLR classification.
func (m *Metrics) RecordDLRStatus(bindIdx int, delivered, failed bool) {
	if b := m.bind(bindIdx); b != nil {
		b.recordDLRStatus(delivered, failed)
	}
}

// RecordDLRState increments exactly one per-state counter on the bind slot.
func (m *Metrics) RecordDLRState(bindIdx int, state DLRState) {
	if b := m.bind(bindIdx); b != nil {
		b.recordDLRState(state)
	}
}

func (m *Metrics) bind(idx int) *bindCounters {
	if idx < 0 || idx >= len(m.perBin) {
		return nil
	}
	return &m.perBin[idx]
}

// BindSnapshot is a derived, point-in-time view of one bind's counters.
type BindSnapshot struct {
	Attempts      uint64
	Success       uint64
	Error         uint64
	AvgLatencyMs  float64
	DLRReceived   uint64
	AvgDLRDelayMs float64
	DLRDelivered  uint64
	DLRFailed     uint64
	DLRUnknown    uint64
	DLREnroute    uint64
	DLRExpired    uint64
	DLRDeleted    uint64
	DLRAccepted   uint64
}

// Snapshot is a derived, point-in-time view of the process totals.
type Snapshot struct {
	Attempts     uint64
	Success      uint64
	Error        uint64
	AvgLatencyMs float64
	PerBind      []BindSnapshot
}

func snapshotOf(b *bindCounters) BindSnapshot {
	attempts := atomic.LoadUint64(&b.attempts)
	success := atomic.LoadUint64(&b.success)
	errs := atomic.LoadUint64(&b.errorCount)
	latency := atomic.LoadUint64(&b.latencyMicro)
	dlr := atomic.LoadUint64(&b.dlrReceived)
	dlrLatency := atomic.LoadUint64(&b.dlrLatencyMicro)

	return BindSnapshot{
		Attempts:      attempts,
		Success:       success,
		Error:         errs,
		AvgLatencyMs:  avgMs(latency, attempts),
		DLRReceived:   dlr,
		AvgDLRDelayMs: avgMs(dlrLatency, dlr),
		DLRDelivered:  atomic.LoadUint64(&b.dlrDelivered),
		DLRFailed:     atomic.LoadUint64(&b.dlrFailed),
		DLRUnknown:    atomic.LoadUint64(&b.dlrUnknownCount),
		DLREnroute:    atomic.LoadUint64(&b.dlrEnrouteCount),
		DLRExpired:    atomic.LoadUint64(&b.dlrExpiredCount),
		DLRDeleted:    atomic.LoadUint64(&b.dlrDeletedCount),
		DLRAccepted:   atomic.LoadUint64(&b.dlrAcceptedCount),
	}
}

func avgMs(sumMicros, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return (float64(sumMicros) / float64(count)) / 1000.0
}

// Snapshot returns a consistent-enough, per-call view of all counters. Each
// counter is read once with relaxed ordering; totals may not sum exactly to
// the per-bind sums under concurrent updates (the Record methods update the
// total and the bind slot as separate atomic adds), which is
// an accepted weak invariant — callers should compare across snapshots
// taken after quiescence, not mid-flight.
func (m *Metrics) Snapshot() Snapshot {
	perBind := make([]BindSnapshot, len(m.perBin))
	for i := range m.perBin {
		perBind[i] = snapshotOf(&m.perBin[i])
	}
	total := snapshotOf(&m.total)
	return Snapshot{
		Attempts:     total.Attempts,
		Success:      total.Success,
		Error:        total.Error,
		AvgLatencyMs: total.AvgLatencyMs,
		PerBind:      perBind,
	}
}
