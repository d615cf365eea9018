package server

import (
	"replicated-kv/internal/raft/cluster"
	"sync"
	"time"
)

// consensusState is the term, role and vote bookkeeping of a single node. All transitions of the Server happen with
// mu held, so timers, RPC handlers and client calls never interleave inside a transition.
type consensusState struct {
	// Protects all fields below
	mu sync.RWMutex

	// The role of the server. A server starts as a Follower.
	role State
	// The latest term the server has seen. It increases monotonically and is the only ordering authority between
	// nodes: any message carrying a higher term demotes the receiver before anything else happens.
	term uint64
	// The candidate this server voted for in term, or empty if it has not voted yet. Reset whenever term advances.
	votedFor cluster.NodeID
	// The node believed to be leader in term, or empty if unknown
	leaderID cluster.NodeID
	// ready is set once the server has either won an election or heard from a leader. Until then client calls fail
	// with raft.ErrNotReady.
	ready bool
	// commitIndex is the log length after the last committed (leader) or received (follower) operation
	commitIndex uint64
	// When the current candidacy began. Only meaningful while role is Candidate.
	electionStartedAt time.Time
}

// snapshot is an immutable copy of consensusState, used to answer status queries and to make decisions outside
// the lock.
type snapshot struct {
	role        State
	term        uint64
	votedFor    cluster.NodeID
	leaderID    cluster.NodeID
	ready       bool
	commitIndex uint64
}

func (s *consensusState) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *consensusState) snapshotLocked() snapshot {
	return snapshot{
		role:        s.role,
		term:        s.term,
		votedFor:    s.votedFor,
		leaderID:    s.leaderID,
		ready:       s.ready,
		commitIndex: s.commitIndex,
	}
}

// advanceTermLocked moves to a strictly greater term, clearing the vote and the known leader. It returns false if
// term is not greater than the current one.
func (s *consensusState) advanceTermLocked(term uint64) bool {
	if term <= s.term {
		return false
	}
	s.term = term
	s.votedFor = ""
	s.leaderID = ""
	return true
}

// grantVoteLocked records a vote for candidate in the current term. A node votes at most once per term, although
// repeating the vote for the same candidate is allowed.
func (s *consensusState) grantVoteLocked(candidate cluster.NodeID) bool {
	if s.votedFor != "" && s.votedFor != candidate {
		return false
	}
	s.votedFor = candidate
	return true
}
