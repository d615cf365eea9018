package cluster

import (
	"replicated-kv/internal/raft"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeNodes(t *testing.T) *Membership {
	m, err := NewMembership(
		Member{ID: "node1", Address: "localhost:50051"},
		Member{ID: "node2", Address: "localhost:50052"},
		Member{ID: "node3", Address: "localhost:50053"},
	)
	require.NoError(t, err)
	return m
}

func TestNewMembership(t *testing.T) {
	t.Run("rejects empty membership", func(t *testing.T) {
		_, err := NewMembership()
		assert.ErrorIs(t, err, raft.ErrInvalidConfig)
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		_, err := NewMembership(
			Member{ID: "a", Address: "x:1"},
			Member{ID: "a", Address: "x:2"},
		)
		assert.ErrorIs(t, err, raft.ErrInvalidConfig)
	})

	t.Run("rejects empty address", func(t *testing.T) {
		_, err := NewMembership(Member{ID: "a"})
		assert.ErrorIs(t, err, raft.ErrInvalidConfig)
	})
}

func TestMembership_Quorum(t *testing.T) {
	m := threeNodes(t)
	assert.Equal(t, 3, m.Size())
	assert.Equal(t, 2, m.Quorum())

	single, err := NewMembership(Member{ID: "solo", Address: "localhost:1"})
	require.NoError(t, err)
	assert.Equal(t, 1, single.Quorum())
}

func TestMembership_Peers(t *testing.T) {
	m := threeNodes(t)

	peers := m.Peers("node2")
	require.Len(t, peers, 2)
	assert.Equal(t, NodeID("node1"), peers[0].ID)
	assert.Equal(t, NodeID("node3"), peers[1].ID)

	assert.Len(t, m.Peers("stranger"), 3)
}

func TestMembership_Lookup(t *testing.T) {
	m := threeNodes(t)

	member, ok := m.Lookup("node3")
	assert.True(t, ok)
	assert.Equal(t, Address("localhost:50053"), member.Address)
	assert.Equal(t, "node3@localhost:50053", member.String())

	_, ok = m.Lookup("node9")
	assert.False(t, ok)
	assert.True(t, m.Contains("node1"))
	assert.False(t, m.Contains("node9"))
}

func TestMembership_MembersIsACopy(t *testing.T) {
	m := threeNodes(t)
	members := m.Members()
	members[0].ID = "changed"

	assert.Equal(t, NodeID("node1"), m.Members()[0].ID)
}

func TestParseMembership(t *testing.T) {
	t.Run("parses id=address pairs", func(t *testing.T) {
		m, err := ParseMembership("node1=node1:50051, node2=node2:50051 ,node3=node3:50051,")
		require.NoError(t, err)
		assert.Equal(t, 3, m.Size())

		member, ok := m.Lookup("node2")
		require.True(t, ok)
		assert.Equal(t, Address("node2:50051"), member.Address)
	})

	t.Run("rejects malformed items", func(t *testing.T) {
		_, err := ParseMembership("node1:50051")
		assert.ErrorIs(t, err, raft.ErrInvalidConfig)
	})

	t.Run("rejects empty spec", func(t *testing.T) {
		_, err := ParseMembership("")
		assert.ErrorIs(t, err, raft.ErrInvalidConfig)
	})
}
