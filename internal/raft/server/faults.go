package server

import "replicated-kv/internal/raft"

// ForceElection makes the server a candidate right away, whatever its role. The election itself runs in the
// background, the call returns as soon as it was triggered.
func (s *Server) ForceElection() error {
	if s.stopped.Load() {
		return raft.ErrServerStopped
	}
	s.logger.Info("Forced election requested")
	go s.campaign()
	return nil
}

// SetPartition sets or clears the partition flag and returns its new value. While set, the server refuses inbound
// peer RPCs and skips outbound ones, as if it were cut off from the rest of the cluster. Client calls and these
// test hooks keep working.
func (s *Server) SetPartition(partitioned bool) bool {
	if prev := s.partitioned.Swap(partitioned); prev != partitioned {
		s.logger.WithField("partitioned", partitioned).Info("Partition flag changed")
	}
	return partitioned
}

// Partitioned reports whether the partition flag is set
func (s *Server) Partitioned() bool {
	return s.partitioned.Load()
}
