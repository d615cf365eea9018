package mocks

import (
	"sync"
	"time"
)

// MockMetricsCollector is a mock implementation of server.MetricsCollector for testing. It counts every call.
type MockMetricsCollector struct {
	mu                      sync.RWMutex
	WriteLatencies          []time.Duration
	WritesCommittedCount    int
	ReplicationFailureCount int
	ReplicateCount          int
	RequestVoteCount        int
	HeartbeatCount          int
	ForwardedReadCount      int
	ElectionCount           int
	ElectionDurations       []time.Duration
}

// NewMockMetricsCollector creates a new mock metrics collector
func NewMockMetricsCollector() *MockMetricsCollector {
	return &MockMetricsCollector{
		WriteLatencies:    make([]time.Duration, 0),
		ElectionDurations: make([]time.Duration, 0),
	}
}

func (m *MockMetricsCollector) RecordWriteLatency(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteLatencies = append(m.WriteLatencies, latency)
}

func (m *MockMetricsCollector) RecordWriteCommitted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WritesCommittedCount++
}

func (m *MockMetricsCollector) RecordReplicationFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplicationFailureCount++
}

func (m *MockMetricsCollector) RecordReplicate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplicateCount++
}

func (m *MockMetricsCollector) RecordRequestVote() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestVoteCount++
}

func (m *MockMetricsCollector) RecordHeartbeat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HeartbeatCount++
}

func (m *MockMetricsCollector) RecordForwardedRead() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ForwardedReadCount++
}

func (m *MockMetricsCollector) RecordElection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ElectionCount++
}

func (m *MockMetricsCollector) RecordElectionWon(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ElectionDurations = append(m.ElectionDurations, duration)
}

// MetricsCounts is a point in time copy of the counters of a MockMetricsCollector
type MetricsCounts struct {
	Writes             int
	WritesCommitted    int
	ReplicationFailure int
	Replicate          int
	RequestVote        int
	Heartbeat          int
	ForwardedRead      int
	Election           int
	ElectionsWon       int
}

// Counts returns the current counters
func (m *MockMetricsCollector) Counts() MetricsCounts {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsCounts{
		Writes:             len(m.WriteLatencies),
		WritesCommitted:    m.WritesCommittedCount,
		ReplicationFailure: m.ReplicationFailureCount,
		Replicate:          m.ReplicateCount,
		RequestVote:        m.RequestVoteCount,
		Heartbeat:          m.HeartbeatCount,
		ForwardedRead:      m.ForwardedReadCount,
		Election:           m.ElectionCount,
		ElectionsWon:       len(m.ElectionDurations),
	}
}

// Reset clears all recorded metrics
func (m *MockMetricsCollector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteLatencies = make([]time.Duration, 0)
	m.WritesCommittedCount = 0
	m.ReplicationFailureCount = 0
	m.ReplicateCount = 0
	m.RequestVoteCount = 0
	m.HeartbeatCount = 0
	m.ForwardedReadCount = 0
	m.ElectionCount = 0
	m.ElectionDurations = make([]time.Duration, 0)
}
