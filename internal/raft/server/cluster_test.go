package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"replicated-kv/internal/raft"
	"replicated-kv/internal/raft/cluster"
	"replicated-kv/internal/raft/rpc"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnreachable = errors.New("unreachable")

// memNetwork connects Servers of one process by calling their handlers directly. Nodes can be cut off to simulate
// crashes: calls to or from a down node fail right away.
type memNetwork struct {
	mu    sync.RWMutex
	nodes map[cluster.NodeID]*Server
	down  map[cluster.NodeID]bool
}

func newMemNetwork() *memNetwork {
	return &memNetwork{
		nodes: make(map[cluster.NodeID]*Server),
		down:  make(map[cluster.NodeID]bool),
	}
}

func (n *memNetwork) register(s *Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nodes[s.ID()] = s
}

func (n *memNetwork) setDown(id cluster.NodeID, down bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.down[id] = down
}

func (n *memNetwork) route(ctx context.Context, from, to cluster.NodeID) (*Server, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.down[from] || n.down[to] {
		return nil, fmt.Errorf("%s -> %s: %w", from, to, errUnreachable)
	}
	target, ok := n.nodes[to]
	if !ok {
		return nil, fmt.Errorf("%s: %w", to, errUnreachable)
	}
	return target, nil
}

func (n *memNetwork) transport(self cluster.NodeID) *memTransport {
	return &memTransport{net: n, self: self}
}

// memTransport is the PeerTransport of a single node on a memNetwork
type memTransport struct {
	net  *memNetwork
	self cluster.NodeID
}

func (t *memTransport) RequestVote(ctx context.Context, peer cluster.Member, req *rpc.RequestVoteRequest) (*rpc.RequestVoteResponse, error) {
	target, err := t.net.route(ctx, t.self, peer.ID)
	if err != nil {
		return nil, err
	}
	return target.HandleRequestVote(SetCallerID(ctx, t.self), req)
}

func (t *memTransport) Heartbeat(ctx context.Context, peer cluster.Member, req *rpc.HeartbeatRequest) (*rpc.HeartbeatResponse, error) {
	target, err := t.net.route(ctx, t.self, peer.ID)
	if err != nil {
		return nil, err
	}
	return target.HandleHeartbeat(SetCallerID(ctx, t.self), req)
}

func (t *memTransport) Replicate(ctx context.Context, peer cluster.Member, op *rpc.Operation) (*rpc.ReplicateResponse, error) {
	target, err := t.net.route(ctx, t.self, peer.ID)
	if err != nil {
		return nil, err
	}
	return target.HandleReplicate(SetCallerID(ctx, t.self), op)
}

func (t *memTransport) Get(ctx context.Context, peer cluster.Member, req *rpc.GetRequest) (*rpc.GetResponse, error) {
	target, err := t.net.route(ctx, t.self, peer.ID)
	if err != nil {
		return nil, err
	}
	return target.Get(SetCallerID(ctx, t.self), req.Key, req.Forwarded)
}

func (t *memTransport) Close() error { return nil }

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fastConfig returns a Config with timeouts short enough for tests
func fastConfig(self cluster.NodeID, membership *cluster.Membership) Config {
	cfg := DefaultConfig(self, membership)
	cfg.ElectionTimeoutMin = 150 * time.Millisecond
	cfg.ElectionTimeoutMax = 300 * time.Millisecond
	cfg.HeartbeatInterval = 30 * time.Millisecond
	cfg.VoteTimeout = 50 * time.Millisecond
	cfg.HeartbeatTimeout = 20 * time.Millisecond
	cfg.ReplicationTimeout = 100 * time.Millisecond
	cfg.ForwardTimeout = 100 * time.Millisecond
	cfg.Logger = quietLogger()
	return cfg
}

type testCluster struct {
	net     *memNetwork
	servers map[cluster.NodeID]*Server
}

// newTestCluster starts size nodes named node1..nodeN on a memNetwork
func newTestCluster(t *testing.T, size int) *testCluster {
	t.Helper()

	members := make([]cluster.Member, 0, size)
	for i := 1; i <= size; i++ {
		members = append(members, cluster.Member{
			ID:      cluster.NodeID(fmt.Sprintf("node%d", i)),
			Address: cluster.Address(fmt.Sprintf("localhost:%d", 50050+i)),
		})
	}
	membership, err := cluster.NewMembership(members...)
	require.NoError(t, err)

	c := &testCluster{net: newMemNetwork(), servers: make(map[cluster.NodeID]*Server)}
	for _, m := range members {
		s, err := NewServer(fastConfig(m.ID, membership), c.net.transport(m.ID))
		require.NoError(t, err)
		c.net.register(s)
		c.servers[m.ID] = s
	}
	for _, s := range c.servers {
		s.Start()
	}

	t.Cleanup(func() {
		for _, s := range c.servers {
			s.Stop()
		}
	})
	return c
}

// leaders returns every node that currently believes it is leader
func (c *testCluster) leaders() []*Server {
	var out []*Server
	for _, s := range c.servers {
		if s.state.snapshot().role == Leader {
			out = append(out, s)
		}
	}
	return out
}

// waitForLeader waits until exactly one node is leader and every other node follows it
func (c *testCluster) waitForLeader(t *testing.T) *Server {
	t.Helper()

	var leader *Server
	require.Eventually(t, func() bool {
		leaders := c.leaders()
		if len(leaders) != 1 {
			return false
		}
		leader = leaders[0]
		term := leader.state.snapshot().term
		for _, s := range c.servers {
			snap := s.state.snapshot()
			if s == leader {
				continue
			}
			if c.isDown(s.ID()) {
				continue
			}
			if snap.leaderID != leader.ID() || snap.term != term || !snap.ready {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond, "cluster did not converge on a single leader")
	return leader
}

func (c *testCluster) isDown(id cluster.NodeID) bool {
	c.net.mu.RLock()
	defer c.net.mu.RUnlock()
	return c.net.down[id]
}

func (c *testCluster) followers(leader *Server) []*Server {
	var out []*Server
	for _, s := range c.servers {
		if s != leader {
			out = append(out, s)
		}
	}
	return out
}

var _ PeerTransport = (*memTransport)(nil)

func TestCluster_ElectsSingleLeader(t *testing.T) {
	c := newTestCluster(t, 3)
	leader := c.waitForLeader(t)

	status := leader.Status()
	assert.GreaterOrEqual(t, status.Term, uint64(1))
	assert.Equal(t, string(leader.ID()), status.LeaderID)

	for _, f := range c.followers(leader) {
		fs := f.Status()
		assert.Equal(t, "Follower", fs.Role)
		assert.Equal(t, status.Term, fs.Term)
		assert.Equal(t, string(leader.Address()), fs.LeaderAddress)
	}
}

func TestCluster_NoTwoLeadersInOneTerm(t *testing.T) {
	c := newTestCluster(t, 5)
	c.waitForLeader(t)

	// Sample the cluster for a while, including a forced leadership change
	start := time.Now()
	forced := false
	for time.Since(start) < 500*time.Millisecond {
		terms := make(map[uint64]cluster.NodeID)
		for _, s := range c.servers {
			snap := s.state.snapshot()
			if snap.role != Leader {
				continue
			}
			other, seen := terms[snap.term]
			require.False(t, seen, "%s and %s both lead term %d", other, s.ID(), snap.term)
			terms[snap.term] = s.ID()
		}
		if !forced && time.Since(start) > 200*time.Millisecond {
			require.NoError(t, c.servers["node1"].ForceElection())
			forced = true
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCluster_PutReplicatesToEveryNode(t *testing.T) {
	c := newTestCluster(t, 3)
	leader := c.waitForLeader(t)
	ctx := context.Background()

	op, err := leader.Put(ctx, "x", "1")
	require.NoError(t, err)
	assert.Equal(t, leader.Status().Term, op.Term)

	leaderRead, err := leader.Get(ctx, "x", false)
	require.NoError(t, err)
	require.True(t, leaderRead.Found)

	for _, s := range c.servers {
		record, ok := s.Store().Get("x")
		require.True(t, ok, "node %s is missing the write", s.ID())
		assert.Equal(t, "1", record.Value)
		assert.Equal(t, op.Timestamp, record.Timestamp)

		resp, err := s.Get(ctx, "x", false)
		require.NoError(t, err)
		assert.Equal(t, leaderRead.Value, resp.Value)
		assert.Equal(t, leaderRead.Timestamp, resp.Timestamp)
	}

	for _, f := range c.followers(leader) {
		_, err := f.Put(ctx, "y", "2")
		assert.ErrorIs(t, err, raft.ErrNotLeader)
	}
}

func TestCluster_ConcurrentPutsCommitInOrder(t *testing.T) {
	c := newTestCluster(t, 3)
	leader := c.waitForLeader(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := leader.Put(context.Background(), fmt.Sprintf("k%d", i), fmt.Sprintf("v%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	want := leader.Store().GetAll()
	assert.Len(t, want, 10)
	order := operationIDs(leader)
	for _, f := range c.followers(leader) {
		assert.Equal(t, want, f.Store().GetAll())
		assert.Equal(t, 10, f.Store().Len())
		assert.Equal(t, order, operationIDs(f))
	}
	assert.Equal(t, leader.Status().LogLength, leader.Status().CommitIndex)
}

func TestCluster_PutFailsWhileFollowerUnreachable(t *testing.T) {
	c := newTestCluster(t, 3)
	leader := c.waitForLeader(t)
	follower := c.followers(leader)[0]
	ctx := context.Background()

	_, ok := leader.Store().Get("x")
	require.False(t, ok)
	before := leader.Status().LogLength

	c.net.setDown(follower.ID(), true)

	_, err := leader.Put(ctx, "x", "1")
	assert.ErrorIs(t, err, raft.ErrReplicationFailed)

	_, ok = leader.Store().Get("x")
	assert.False(t, ok, "failed write must leave the leader store unchanged")
	assert.Equal(t, before, leader.Status().LogLength)
}

func TestCluster_ForceElectionOnLeader(t *testing.T) {
	c := newTestCluster(t, 3)
	leader := c.waitForLeader(t)
	firstTerm := leader.Status().Term

	require.NoError(t, leader.ForceElection())

	require.Eventually(t, func() bool {
		leaders := c.leaders()
		return len(leaders) == 1 && leaders[0].Status().Term > firstTerm
	}, 5*time.Second, 10*time.Millisecond)

	newLeader := c.waitForLeader(t)
	assert.GreaterOrEqual(t, newLeader.Status().Term, uint64(2))

	_, err := newLeader.Put(context.Background(), "x", "after-election")
	require.NoError(t, err)
}

func TestCluster_PartitionedLeaderIsReplaced(t *testing.T) {
	c := newTestCluster(t, 3)
	old := c.waitForLeader(t)
	oldTerm := old.Status().Term

	old.SetPartition(true)

	var replacement *Server
	require.Eventually(t, func() bool {
		for _, s := range c.followers(old) {
			if status := s.Status(); status.Role == "Leader" && status.Term > oldTerm {
				replacement = s
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	// The old leader can no longer commit
	_, err := old.Put(context.Background(), "x", "stale")
	assert.ErrorIs(t, err, raft.ErrReplicationFailed)

	// Once healed it learns about the higher term and follows
	old.SetPartition(false)
	leader := c.waitForLeader(t)
	assert.NotEqual(t, old.ID(), replacement.ID())
	assert.Equal(t, "Follower", old.Status().Role)
	assert.Equal(t, leader.Status().Term, old.Status().Term)
}

func operationIDs(s *Server) []string {
	var ids []string
	for _, op := range s.Operations().Operations {
		ids = append(ids, op.ID)
	}
	return ids
}
