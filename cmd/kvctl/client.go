package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"replicated-kv/internal/raft"
	"replicated-kv/internal/raft/cluster"
	"replicated-kv/internal/raft/rpc"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const requestTimeout = 5 * time.Second

// node is a connection to a single cluster member
type node struct {
	member cluster.Member
	conn   *grpc.ClientConn
	client rpc.KVRaftClient
}

// clusterClient talks to every member of the cluster. Requests go to a random node, like any client that does not
// know who the leader is.
type clusterClient struct {
	nodes []*node
}

func dialCluster(membership *cluster.Membership) (*clusterClient, error) {
	c := &clusterClient{}
	for _, m := range membership.Members() {
		conn, err := grpc.NewClient(string(m.Address), grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			c.close()
			return nil, fmt.Errorf("dial %s: %w", m, err)
		}
		c.nodes = append(c.nodes, &node{member: m, conn: conn, client: rpc.NewKVRaftClient(conn)})
	}
	return c, nil
}

func (c *clusterClient) close() {
	for _, n := range c.nodes {
		_ = n.conn.Close()
	}
}

func (c *clusterClient) random() *node {
	return c.nodes[rand.IntN(len(c.nodes))]
}

func (c *clusterClient) byID(id cluster.NodeID) (*node, bool) {
	for _, n := range c.nodes {
		if n.member.ID == id {
			return n, true
		}
	}
	return nil, false
}

// put writes through a random node. A follower refuses the write, in which case the write is sent once more to
// the leader that follower knows about.
func (c *clusterClient) put(key, value string) (*rpc.Operation, *node, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	target := c.random()
	resp, err := target.client.Put(ctx, &rpc.PutRequest{Key: key, Value: value})
	if err == nil {
		return resp.Operation, target, nil
	}
	err = raft.FromStatus(err)
	if !errors.Is(err, raft.ErrNotLeader) {
		return nil, target, err
	}

	status, statusErr := target.client.GetStatus(ctx, &rpc.StatusRequest{})
	if statusErr != nil {
		return nil, target, err
	}
	leader, ok := c.byID(cluster.NodeID(status.LeaderID))
	if !ok {
		return nil, target, raft.ErrNoLeaderAvailable
	}

	resp, err = leader.client.Put(ctx, &rpc.PutRequest{Key: key, Value: value})
	if err != nil {
		return nil, leader, raft.FromStatus(err)
	}
	return resp.Operation, leader, nil
}

// get reads through a random node, which forwards the read to the leader if needed
func (c *clusterClient) get(key string) (*rpc.GetResponse, *node, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	target := c.random()
	resp, err := target.client.Get(ctx, &rpc.GetRequest{Key: key})
	if err != nil {
		return nil, target, raft.FromStatus(err)
	}
	return resp, target, nil
}

func (c *clusterClient) status(n *node) (*rpc.StatusResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	resp, err := n.client.GetStatus(ctx, &rpc.StatusRequest{})
	return resp, raft.FromStatus(err)
}

func (c *clusterClient) operations(n *node) (*rpc.OperationsResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	resp, err := n.client.GetOperations(ctx, &rpc.OperationsRequest{})
	return resp, raft.FromStatus(err)
}

func (c *clusterClient) forceElection(n *node) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	_, err := n.client.ForceElection(ctx, &rpc.ForceElectionRequest{})
	return raft.FromStatus(err)
}

func (c *clusterClient) setPartition(n *node, partitioned bool) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	resp, err := n.client.SetPartition(ctx, &rpc.SetPartitionRequest{Partitioned: partitioned})
	if err != nil {
		return false, raft.FromStatus(err)
	}
	return resp.Partitioned, nil
}
