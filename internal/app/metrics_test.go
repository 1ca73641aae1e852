package app

import (
	"sync"
	"testing"
	"time"

	"github.com/dshills/gdbmi/internal/integration/debug"
)

var _ debug.Recorder = (*Metrics)(nil)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	snapshot := m.Snapshot()
	if snapshot.Records != 0 {
		t.Errorf("expected 0 records, got %d", snapshot.Records)
	}
	if snapshot.MinDispatchNs != 0 {
		t.Errorf("expected 0 min dispatch time (sentinel handled), got %d", snapshot.MinDispatchNs)
	}
}

func TestMetrics_RecordDispatch(t *testing.T) {
	m := NewMetrics()

	m.RecordDispatch(10 * time.Microsecond)
	m.RecordDispatch(20 * time.Microsecond)
	m.RecordDispatch(6 * time.Microsecond)

	snapshot := m.Snapshot()
	if snapshot.Records != 3 {
		t.Errorf("expected 3 records, got %d", snapshot.Records)
	}
	if snapshot.MinDispatchNs != int64(6*time.Microsecond) {
		t.Errorf("expected min 6us, got %d ns", snapshot.MinDispatchNs)
	}
	if snapshot.MaxDispatchNs != int64(20*time.Microsecond) {
		t.Errorf("expected max 20us, got %d ns", snapshot.MaxDispatchNs)
	}
	if snapshot.AvgDispatchNs != int64(12*time.Microsecond) {
		t.Errorf("expected avg 12us, got %d ns", snapshot.AvgDispatchNs)
	}
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.RecordLine()
	m.RecordLine()
	m.RecordLine()
	m.RecordParseFailure()
	m.RecordUnclaimed()
	m.RecordUnclaimed()
	m.RecordProtocolError()

	snapshot := m.Snapshot()
	if snapshot.Lines != 3 {
		t.Errorf("expected 3 lines, got %d", snapshot.Lines)
	}
	if snapshot.ParseFailures != 1 {
		t.Errorf("expected 1 parse failure, got %d", snapshot.ParseFailures)
	}
	if snapshot.Unclaimed != 2 {
		t.Errorf("expected 2 unclaimed, got %d", snapshot.Unclaimed)
	}
	if snapshot.ProtocolErrors != 1 {
		t.Errorf("expected 1 protocol error, got %d", snapshot.ProtocolErrors)
	}
}

func TestMetrics_PeakInFlight(t *testing.T) {
	m := NewMetrics()

	m.RecordInFlight(1)
	m.RecordInFlight(4)
	m.RecordInFlight(2)

	snapshot := m.Snapshot()
	if snapshot.InFlight != 2 {
		t.Errorf("expected 2 in flight, got %d", snapshot.InFlight)
	}
	if snapshot.PeakInFlight != 4 {
		t.Errorf("expected peak 4, got %d", snapshot.PeakInFlight)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := NewMetrics()

	m.RecordLine()
	m.RecordDispatch(time.Millisecond)
	m.RecordInFlight(3)
	m.Reset()

	snapshot := m.Snapshot()
	if snapshot.Lines != 0 || snapshot.Records != 0 || snapshot.PeakInFlight != 0 {
		t.Errorf("expected cleared metrics, got %+v", snapshot)
	}
	if snapshot.MinDispatchNs != 0 {
		t.Errorf("expected min reset, got %d", snapshot.MinDispatchNs)
	}
}

func TestMetrics_Concurrent(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordLine()
				m.RecordDispatch(time.Duration(n*100+j) * time.Nanosecond)
				m.RecordInFlight(n)
			}
		}(i)
	}
	wg.Wait()

	snapshot := m.Snapshot()
	if snapshot.Lines != 800 || snapshot.Records != 800 {
		t.Errorf("expected 800 lines and records, got %d and %d", snapshot.Lines, snapshot.Records)
	}
	if snapshot.MinDispatchNs != 0 || snapshot.MaxDispatchNs != 799 {
		t.Errorf("unexpected min/max %d/%d", snapshot.MinDispatchNs, snapshot.MaxDispatchNs)
	}
	if snapshot.PeakInFlight != 7 {
		t.Errorf("expected peak 7, got %d", snapshot.PeakInFlight)
	}
}
