package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects counters and latency samples for a single node. It implements server.MetricsCollector.
type Metrics struct {
	mu sync.RWMutex

	// Write latencies, from Put being accepted by the leader to the operation being applied
	writeLatencies []time.Duration

	// RPC counters (outbound)
	replicateCount   atomic.Uint64
	requestVoteCount atomic.Uint64
	heartbeatCount   atomic.Uint64
	forwardedReads   atomic.Uint64

	writesCommitted    atomic.Uint64
	replicationFailure atomic.Uint64
	startTime          time.Time

	// Leader election metrics
	electionCount    atomic.Uint64
	electionsWon     atomic.Uint64
	electionDuration []time.Duration
	electionMu       sync.Mutex
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		writeLatencies:   make([]time.Duration, 0, 1024),
		electionDuration: make([]time.Duration, 0, 64),
		startTime:        time.Now(),
	}
}

// RecordWriteLatency records the latency of a single committed write
func (m *Metrics) RecordWriteLatency(latency time.Duration) {
	m.mu.Lock()
	m.writeLatencies = append(m.writeLatencies, latency)
	m.mu.Unlock()
}

// RecordWriteCommitted increments the count of committed writes
func (m *Metrics) RecordWriteCommitted() {
	m.writesCommitted.Add(1)
}

// RecordReplicationFailure increments the count of writes rejected because a follower did not acknowledge them
func (m *Metrics) RecordReplicationFailure() {
	m.replicationFailure.Add(1)
}

// RecordReplicate increments the Replicate RPC counter
func (m *Metrics) RecordReplicate() {
	m.replicateCount.Add(1)
}

// RecordRequestVote increments the RequestVote RPC counter
func (m *Metrics) RecordRequestVote() {
	m.requestVoteCount.Add(1)
}

// RecordHeartbeat increments the heartbeat counter
func (m *Metrics) RecordHeartbeat() {
	m.heartbeatCount.Add(1)
}

// RecordForwardedRead increments the count of reads a follower relayed to its leader
func (m *Metrics) RecordForwardedRead() {
	m.forwardedReads.Add(1)
}

// RecordElection records the start of an election
func (m *Metrics) RecordElection() {
	m.electionCount.Add(1)
}

// RecordElectionWon records how long a won election took, from candidacy to leadership
func (m *Metrics) RecordElectionWon(duration time.Duration) {
	m.electionsWon.Add(1)
	m.electionMu.Lock()
	m.electionDuration = append(m.electionDuration, duration)
	m.electionMu.Unlock()
}

// LatencyStats contains percentile statistics for latencies
type LatencyStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min_ms"`
	Max    float64 `json:"max_ms"`
	Mean   float64 `json:"mean_ms"`
	P50    float64 `json:"p50_ms"`
	P95    float64 `json:"p95_ms"`
	P99    float64 `json:"p99_ms"`
	StdDev float64 `json:"stddev_ms"`
}

// computeStats sorts a copy of samples and derives percentile statistics in milliseconds
func computeStats(samples []time.Duration) LatencyStats {
	if len(samples) == 0 {
		return LatencyStats{}
	}

	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	ms := make([]float64, len(sorted))
	var sum float64
	for i, d := range sorted {
		ms[i] = float64(d.Microseconds()) / 1000.0
		sum += ms[i]
	}
	mean := sum / float64(len(ms))

	var variance float64
	for _, v := range ms {
		diff := v - mean
		variance += diff * diff
	}

	return LatencyStats{
		Count:  len(ms),
		Min:    ms[0],
		Max:    ms[len(ms)-1],
		Mean:   mean,
		P50:    percentile(ms, 50),
		P95:    percentile(ms, 95),
		P99:    percentile(ms, 99),
		StdDev: math.Sqrt(variance / float64(len(ms))),
	}
}

// GetWriteLatencyStats computes percentile statistics from recorded write latencies
func (m *Metrics) GetWriteLatencyStats() LatencyStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return computeStats(m.writeLatencies)
}

// GetElectionStats returns statistics about won elections
func (m *Metrics) GetElectionStats() LatencyStats {
	m.electionMu.Lock()
	defer m.electionMu.Unlock()
	return computeStats(m.electionDuration)
}

// percentile calculates the nth percentile from sorted data
func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	// Linear interpolation
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// GetThroughput returns committed writes per second since the collector was created or reset
func (m *Metrics) GetThroughput() float64 {
	m.mu.RLock()
	start := m.startTime
	m.mu.RUnlock()

	elapsed := time.Since(start).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.writesCommitted.Load()) / elapsed
}

// Report contains all collected metrics
type Report struct {
	NodeID     string    `json:"node_id"`
	UptimeSecs float64   `json:"uptime_seconds"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`

	WritesCommitted     uint64       `json:"writes_committed"`
	ReplicationFailures uint64       `json:"replication_failures"`
	ThroughputWritesSec float64      `json:"throughput_writes_per_sec"`
	WriteLatency        LatencyStats `json:"write_latency"`

	ReplicateCount   uint64 `json:"replicate_count"`
	RequestVoteCount uint64 `json:"request_vote_count"`
	HeartbeatCount   uint64 `json:"heartbeat_count"`
	ForwardedReads   uint64 `json:"forwarded_reads"`

	ElectionCount uint64       `json:"election_count"`
	ElectionsWon  uint64       `json:"elections_won"`
	ElectionStats LatencyStats `json:"election_stats"`
}

// GetReport generates a report of everything collected so far
func (m *Metrics) GetReport(nodeID string) Report {
	m.mu.RLock()
	start := m.startTime
	m.mu.RUnlock()
	end := time.Now()

	return Report{
		NodeID:              nodeID,
		UptimeSecs:          end.Sub(start).Seconds(),
		StartTime:           start,
		EndTime:             end,
		WritesCommitted:     m.writesCommitted.Load(),
		ReplicationFailures: m.replicationFailure.Load(),
		ThroughputWritesSec: m.GetThroughput(),
		WriteLatency:        m.GetWriteLatencyStats(),
		ReplicateCount:      m.replicateCount.Load(),
		RequestVoteCount:    m.requestVoteCount.Load(),
		HeartbeatCount:      m.heartbeatCount.Load(),
		ForwardedReads:      m.forwardedReads.Load(),
		ElectionCount:       m.electionCount.Load(),
		ElectionsWon:        m.electionsWon.Load(),
		ElectionStats:       m.GetElectionStats(),
	}
}

// PrintReport writes the report in a human-readable format
func (r *Report) PrintReport(w io.Writer) {
	fmt.Fprintf(w, "\n==== NODE %s METRICS ====\n", r.NodeID)
	fmt.Fprintf(w, "Uptime: %.2f seconds\n", r.UptimeSecs)

	fmt.Fprintf(w, "\nWrites:\n")
	fmt.Fprintf(w, "  Committed: %d\n", r.WritesCommitted)
	fmt.Fprintf(w, "  Replication failures: %d\n", r.ReplicationFailures)
	fmt.Fprintf(w, "  Throughput: %.2f writes/sec\n", r.ThroughputWritesSec)
	if r.WriteLatency.Count > 0 {
		fmt.Fprintf(w, "  Latency mean/p50/p95/p99: %.3f/%.3f/%.3f/%.3f ms\n",
			r.WriteLatency.Mean, r.WriteLatency.P50, r.WriteLatency.P95, r.WriteLatency.P99)
	}

	fmt.Fprintf(w, "\nRPCs sent:\n")
	fmt.Fprintf(w, "  Replicate: %d\n", r.ReplicateCount)
	fmt.Fprintf(w, "  RequestVote: %d\n", r.RequestVoteCount)
	fmt.Fprintf(w, "  Heartbeat: %d\n", r.HeartbeatCount)
	fmt.Fprintf(w, "  Forwarded reads: %d\n", r.ForwardedReads)

	fmt.Fprintf(w, "\nElections:\n")
	fmt.Fprintf(w, "  Started: %d\n", r.ElectionCount)
	fmt.Fprintf(w, "  Won: %d\n", r.ElectionsWon)
	if r.ElectionStats.Count > 0 {
		fmt.Fprintf(w, "  Duration mean/p95: %.3f/%.3f ms\n", r.ElectionStats.Mean, r.ElectionStats.P95)
	}
}

// SaveJSON saves the report to a JSON file
func (r *Report) SaveJSON(filename string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Reset clears all collected metrics
func (m *Metrics) Reset() {
	m.mu.Lock()
	m.writeLatencies = make([]time.Duration, 0, 1024)
	m.startTime = time.Now()
	m.mu.Unlock()

	m.electionMu.Lock()
	m.electionDuration = make([]time.Duration, 0, 64)
	m.electionMu.Unlock()

	m.replicateCount.Store(0)
	m.requestVoteCount.Store(0)
	m.heartbeatCount.Store(0)
	m.forwardedReads.Store(0)
	m.writesCommitted.Store(0)
	m.replicationFailure.Store(0)
	m.electionCount.Store(0)
	m.electionsWon.Store(0)
}
