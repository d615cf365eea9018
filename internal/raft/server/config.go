package server

import (
	"fmt"
	"replicated-kv/internal/events"
	"replicated-kv/internal/raft"
	"replicated-kv/internal/raft/cluster"
	"replicated-kv/internal/raft/store"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultElectionTimeoutMin and DefaultElectionTimeoutMax bound the randomized election timeout
	DefaultElectionTimeoutMin = 2 * time.Second
	DefaultElectionTimeoutMax = 5 * time.Second
	// DefaultHeartbeatInterval is the period of the leader's heartbeat fan-out
	DefaultHeartbeatInterval = 1 * time.Second
	// DefaultVoteTimeout bounds a single RequestVote call
	DefaultVoteTimeout = 1 * time.Second
	// DefaultHeartbeatTimeout bounds a single Heartbeat call. It is shorter than the interval so that rounds do not
	// overlap.
	DefaultHeartbeatTimeout = 500 * time.Millisecond
	// DefaultReplicationTimeout bounds a whole replication round of a write
	DefaultReplicationTimeout = 2 * time.Second
	// DefaultForwardTimeout bounds a read forwarded to the leader
	DefaultForwardTimeout = 2 * time.Second
)

// Config holds everything needed to build a Server. Only Self and Membership are mandatory, the rest falls back to
// the defaults above.
type Config struct {
	// Self is the id of this node. It must be part of Membership.
	Self cluster.NodeID
	// Membership is the static list of cluster members, including self
	Membership *cluster.Membership

	ElectionTimeoutMin time.Duration
	ElectionTimeoutMax time.Duration
	HeartbeatInterval  time.Duration
	VoteTimeout        time.Duration
	HeartbeatTimeout   time.Duration
	ReplicationTimeout time.Duration
	ForwardTimeout     time.Duration

	Logger logrus.FieldLogger
	// Metrics is optional
	Metrics MetricsCollector
	// Events is optional. When set, role, leader and apply notifications are published on it.
	Events *events.Bus
	// Journal is optional. When set, every applied operation is appended to it.
	Journal store.Journal
}

// DefaultConfig returns a Config with default timeouts for the given node
func DefaultConfig(self cluster.NodeID, membership *cluster.Membership) Config {
	return Config{
		Self:               self,
		Membership:         membership,
		ElectionTimeoutMin: DefaultElectionTimeoutMin,
		ElectionTimeoutMax: DefaultElectionTimeoutMax,
		HeartbeatInterval:  DefaultHeartbeatInterval,
		VoteTimeout:        DefaultVoteTimeout,
		HeartbeatTimeout:   DefaultHeartbeatTimeout,
		ReplicationTimeout: DefaultReplicationTimeout,
		ForwardTimeout:     DefaultForwardTimeout,
		Logger:             logrus.StandardLogger(),
	}
}

// Validate checks the Config for values the server cannot run with
func (c Config) Validate() error {
	if c.Membership == nil {
		return fmt.Errorf("%w: membership is required", raft.ErrInvalidConfig)
	}
	if !c.Membership.Contains(c.Self) {
		return fmt.Errorf("%w: node %q is not a cluster member", raft.ErrInvalidConfig, c.Self)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: heartbeat interval must be positive", raft.ErrInvalidConfig)
	}
	if c.ElectionTimeoutMin <= c.HeartbeatInterval {
		return fmt.Errorf("%w: election timeout (%v) must exceed the heartbeat interval (%v)",
			raft.ErrInvalidConfig, c.ElectionTimeoutMin, c.HeartbeatInterval)
	}
	if c.ElectionTimeoutMax < c.ElectionTimeoutMin {
		return fmt.Errorf("%w: election timeout range [%v, %v] is empty",
			raft.ErrInvalidConfig, c.ElectionTimeoutMin, c.ElectionTimeoutMax)
	}

	timeouts := map[string]time.Duration{
		"vote":        c.VoteTimeout,
		"heartbeat":   c.HeartbeatTimeout,
		"replication": c.ReplicationTimeout,
		"forward":     c.ForwardTimeout,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%w: %s timeout must be positive", raft.ErrInvalidConfig, name)
		}
	}

	return nil
}
