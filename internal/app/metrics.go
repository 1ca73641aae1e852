package app

import (
	"sync/atomic"
	"time"
)

// Metrics tracks MI engine counters. It implements debug.Recorder.
type Metrics struct {
	// Line handling
	lineCount     atomic.Uint64
	parseFailures atomic.Uint64

	// Dispatch timing
	recordCount     atomic.Uint64
	dispatchTotalNs atomic.Int64
	dispatchMinNs   atomic.Int64
	dispatchMaxNs   atomic.Int64

	// Outcomes
	unclaimed      atomic.Uint64
	protocolErrors atomic.Uint64

	// Token pool
	inFlight     atomic.Int64
	peakInFlight atomic.Int64

	startTime atomic.Int64
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.Reset()
	return m
}

// RecordLine records one output line.
func (m *Metrics) RecordLine() {
	m.lineCount.Add(1)
}

// RecordParseFailure records a line that failed to parse.
func (m *Metrics) RecordParseFailure() {
	m.parseFailures.Add(1)
}

// RecordDispatch records the time spent dispatching one record.
func (m *Metrics) RecordDispatch(duration time.Duration) {
	ns := duration.Nanoseconds()

	m.recordCount.Add(1)
	m.dispatchTotalNs.Add(ns)

	for {
		old := m.dispatchMinNs.Load()
		if ns >= old || m.dispatchMinNs.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.dispatchMaxNs.Load()
		if ns <= old || m.dispatchMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordUnclaimed records a record no handler consumed.
func (m *Metrics) RecordUnclaimed() {
	m.unclaimed.Add(1)
}

// RecordProtocolError records an error result surfaced to the user.
func (m *Metrics) RecordProtocolError() {
	m.protocolErrors.Add(1)
}

// RecordInFlight records the number of tokens currently issued.
func (m *Metrics) RecordInFlight(n int) {
	v := int64(n)
	m.inFlight.Store(v)
	for {
		old := m.peakInFlight.Load()
		if v <= old || m.peakInFlight.CompareAndSwap(old, v) {
			break
		}
	}
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	records := m.recordCount.Load()

	var avg int64
	if records > 0 {
		avg = m.dispatchTotalNs.Load() / int64(records)
	}

	minNs := m.dispatchMinNs.Load()
	if minNs == 1<<63-1 {
		minNs = 0
	}

	return MetricsSnapshot{
		Uptime:         time.Since(time.Unix(0, m.startTime.Load())),
		Lines:          m.lineCount.Load(),
		ParseFailures:  m.parseFailures.Load(),
		Records:        records,
		AvgDispatchNs:  avg,
		MinDispatchNs:  minNs,
		MaxDispatchNs:  m.dispatchMaxNs.Load(),
		Unclaimed:      m.unclaimed.Load(),
		ProtocolErrors: m.protocolErrors.Load(),
		InFlight:       int(m.inFlight.Load()),
		PeakInFlight:   int(m.peakInFlight.Load()),
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.lineCount.Store(0)
	m.parseFailures.Store(0)
	m.recordCount.Store(0)
	m.dispatchTotalNs.Store(0)
	m.dispatchMinNs.Store(1<<63 - 1)
	m.dispatchMaxNs.Store(0)
	m.unclaimed.Store(0)
	m.protocolErrors.Store(0)
	m.inFlight.Store(0)
	m.peakInFlight.Store(0)
	m.startTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Uptime         time.Duration
	Lines          uint64
	ParseFailures  uint64
	Records        uint64
	AvgDispatchNs  int64
	MinDispatchNs  int64
	MaxDispatchNs  int64
	Unclaimed      uint64
	ProtocolErrors uint64
	InFlight       int
	PeakInFlight   int
}
