package server

import (
	"fmt"
	"replicated-kv/internal/raft/cluster"
	"strings"

	"google.golang.org/grpc/resolver"
)

const kvraftScheme = "kvraft"

// resolverTarget is the dial target of a node, "kvraft:///<id>"
func resolverTarget(id cluster.NodeID) string {
	return fmt.Sprintf("%s:///%s", kvraftScheme, id)
}

// membershipBuilder resolves "kvraft:///<id>" targets against a static membership. It is handed to each channel with
// grpc.WithResolvers, so no process-wide registration is needed and two transports with different memberships can
// live side by side.
type membershipBuilder struct {
	membership *cluster.Membership
}

func newMembershipBuilder(membership *cluster.Membership) *membershipBuilder {
	return &membershipBuilder{membership: membership}
}

func (*membershipBuilder) Scheme() string { return kvraftScheme }

func (b *membershipBuilder) Build(target resolver.Target, cc resolver.ClientConn, _ resolver.BuildOptions) (resolver.Resolver, error) {
	id := cluster.NodeID(strings.TrimPrefix(target.Endpoint(), "/"))
	if id == "" {
		return nil, fmt.Errorf("kvraft resolver: empty target endpoint: %s", target.URL.String())
	}

	member, ok := b.membership.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("kvraft resolver: %s is not a cluster member", id)
	}

	r := &memberResolver{addr: member.Address, cc: cc}
	if err := r.push(); err != nil {
		return nil, fmt.Errorf("kvraft resolver: %w", err)
	}
	return r, nil
}

// memberResolver always resolves to the single address of one member
type memberResolver struct {
	addr cluster.Address
	cc   resolver.ClientConn
}

func (r *memberResolver) push() error {
	return r.cc.UpdateState(resolver.State{
		Addresses: []resolver.Address{{Addr: string(r.addr)}},
	})
}

// ResolveNow pushes the address again. Membership never changes, so there is nothing new to look up.
func (r *memberResolver) ResolveNow(resolver.ResolveNowOptions) { _ = r.push() }

func (*memberResolver) Close() {}
