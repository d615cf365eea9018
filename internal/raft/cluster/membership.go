package cluster

import (
	"fmt"
	"replicated-kv/internal/raft"
	"strings"
)

// NodeID is the id of a node in the cluster
type NodeID string

// Address is the network address (host:port) a node serves its RPCs on
type Address string

// Member is the identity of a single node. Members are configured once at startup and never change.
type Member struct {
	ID      NodeID
	Address Address
}

func (m Member) String() string {
	return fmt.Sprintf("%s@%s", m.ID, m.Address)
}

// Membership is the static list of cluster members, including the local node. It is immutable after construction
// and safe to share between goroutines.
type Membership struct {
	members []Member
	byID    map[NodeID]Member
}

// NewMembership validates and builds a Membership. Ids and addresses must be non-empty and ids unique.
func NewMembership(members ...Member) (*Membership, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: empty membership", raft.ErrInvalidConfig)
	}

	m := &Membership{
		members: make([]Member, 0, len(members)),
		byID:    make(map[NodeID]Member, len(members)),
	}
	for _, member := range members {
		if member.ID == "" || member.Address == "" {
			return nil, fmt.Errorf("%w: member %q has an empty id or address", raft.ErrInvalidConfig, member)
		}
		if _, dup := m.byID[member.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate member id %q", raft.ErrInvalidConfig, member.ID)
		}
		m.members = append(m.members, member)
		m.byID[member.ID] = member
	}
	return m, nil
}

// ParseMembership parses the bootstrap form "id=host:port,id=host:port". Whitespace around items is ignored.
func ParseMembership(spec string) (*Membership, error) {
	var members []Member
	for _, item := range strings.Split(spec, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		id, addr, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("%w: member %q is not of the form id=host:port", raft.ErrInvalidConfig, item)
		}
		members = append(members, Member{
			ID:      NodeID(strings.TrimSpace(id)),
			Address: Address(strings.TrimSpace(addr)),
		})
	}
	return NewMembership(members...)
}

// Size returns N, the number of members including self.
func (m *Membership) Size() int {
	return len(m.members)
}

// Quorum returns floor(N/2)+1.
func (m *Membership) Quorum() int {
	return raft.Majority(len(m.members))
}

// Members returns a copy of all members in configuration order.
func (m *Membership) Members() []Member {
	out := make([]Member, len(m.members))
	copy(out, m.members)
	return out
}

// Peers returns every member except self.
func (m *Membership) Peers(self NodeID) []Member {
	peers := make([]Member, 0, len(m.members))
	for _, member := range m.members {
		if member.ID != self {
			peers = append(peers, member)
		}
	}
	return peers
}

// Lookup returns the member with the given id.
func (m *Membership) Lookup(id NodeID) (Member, bool) {
	member, ok := m.byID[id]
	return member, ok
}

// Contains reports whether id is a member.
func (m *Membership) Contains(id NodeID) bool {
	_, ok := m.byID[id]
	return ok
}
