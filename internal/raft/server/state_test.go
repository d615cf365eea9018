package server

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsensusState_Defaults(t *testing.T) {
	s := &consensusState{role: Follower}

	snap := s.snapshot()
	assert.Equal(t, Follower, snap.role)
	assert.Equal(t, uint64(0), snap.term)
	assert.Empty(t, snap.votedFor)
	assert.Empty(t, snap.leaderID)
	assert.False(t, snap.ready)
}

func TestConsensusState_AdvanceTerm(t *testing.T) {
	s := &consensusState{term: 3, votedFor: "node2", leaderID: "node2"}

	t.Run("lower or equal term is ignored", func(t *testing.T) {
		assert.False(t, s.advanceTermLocked(2))
		assert.False(t, s.advanceTermLocked(3))
		assert.Equal(t, uint64(3), s.term)
		assert.Equal(t, "node2", string(s.votedFor))
	})

	t.Run("higher term clears vote and leader", func(t *testing.T) {
		assert.True(t, s.advanceTermLocked(5))
		assert.Equal(t, uint64(5), s.term)
		assert.Empty(t, s.votedFor)
		assert.Empty(t, s.leaderID)
	})
}

func TestConsensusState_GrantVote(t *testing.T) {
	s := &consensusState{term: 1}

	assert.True(t, s.grantVoteLocked("node2"))
	assert.True(t, s.grantVoteLocked("node2"), "repeating the same vote is allowed")
	assert.False(t, s.grantVoteLocked("node3"), "a second candidate in the same term is refused")
	assert.Equal(t, "node2", string(s.votedFor))

	s.advanceTermLocked(2)
	assert.True(t, s.grantVoteLocked("node3"))
}

func TestConsensusState_ConcurrentSnapshots(t *testing.T) {
	s := &consensusState{}
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(term uint64) {
			defer wg.Done()
			s.mu.Lock()
			s.advanceTermLocked(term)
			s.mu.Unlock()
		}(uint64(i + 1))
		go func() {
			defer wg.Done()
			_ = s.snapshot()
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(50), s.snapshot().term)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Leader", Leader.String())
	assert.Equal(t, "Follower", Follower.String())
	assert.Equal(t, "Candidate", Candidate.String())
	assert.Equal(t, "Unknown", State(42).String())
}
