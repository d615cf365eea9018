package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"replicated-kv/internal/raft"
	"replicated-kv/internal/raft/cluster"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultCluster = "node1=localhost:50051,node2=localhost:50052,node3=localhost:50053"

func main() {
	clusterSpec := flag.String("cluster", os.Getenv("CLUSTER"), "Cluster members as id=host:port,... (env CLUSTER)")
	flag.Parse()
	if *clusterSpec == "" {
		*clusterSpec = defaultCluster
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log := logger.WithField("component", "kvctl")

	membership, err := cluster.ParseMembership(*clusterSpec)
	if err != nil {
		log.WithError(err).Fatal("Invalid cluster membership")
	}
	client, err := dialCluster(membership)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to cluster")
	}
	defer client.close()

	fmt.Printf("================================================\n")
	fmt.Printf("Replicated KV Store Client\n")
	fmt.Printf("================================================\n")
	for _, m := range membership.Members() {
		fmt.Printf("  %s\n", m)
	}

	c := &console{client: client, in: bufio.NewScanner(os.Stdin), log: log}
	c.run()
}

// console is the interactive menu
type console struct {
	client *clusterClient
	in     *bufio.Scanner
	log    logrus.FieldLogger
}

func (c *console) prompt(label string) (string, bool) {
	fmt.Print(label)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

func (c *console) run() {
	for {
		fmt.Println()
		fmt.Println("-------------------------")
		fmt.Println("1. PUT key-value pair")
		fmt.Println("2. GET value by key")
		fmt.Println("3. Show operation history")
		fmt.Println("4. Show cluster status")
		fmt.Println("5. Force election on a node")
		fmt.Println("6. Toggle partition on a node")
		fmt.Println("7. Exit")
		fmt.Println("-------------------------")

		choice, ok := c.prompt("Select an option (1-7): ")
		if !ok {
			return
		}
		switch choice {
		case "1":
			c.put()
		case "2":
			c.get()
		case "3":
			c.showOperations()
		case "4":
			c.showStatus()
		case "5":
			c.forceElection()
		case "6":
			c.togglePartition()
		case "7":
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Println("Invalid option. Please try again.")
		}
	}
}

func (c *console) put() {
	key, ok := c.prompt("Enter key: ")
	if !ok || key == "" {
		return
	}
	value, ok := c.prompt("Enter value: ")
	if !ok {
		return
	}

	op, via, err := c.client.put(key, value)
	if err != nil {
		c.log.WithError(err).WithField("node", via.member.ID).Error("PUT failed")
		return
	}
	fmt.Printf("PUT %s = %s (via %s, op %s)\n", op.Key, op.Value, via.member.ID, op.ID)
}

func (c *console) get() {
	key, ok := c.prompt("Enter key: ")
	if !ok || key == "" {
		return
	}

	resp, via, err := c.client.get(key)
	if err == nil && !resp.Found {
		err = raft.ErrKeyNotFound
	}
	if err != nil {
		entry := c.log.WithError(err).WithField("node", via.member.ID)
		if errors.Is(err, raft.ErrKeyNotFound) {
			entry.Warn("GET found nothing")
			return
		}
		entry.Error("GET failed")
		return
	}
	fmt.Printf("GET %s = %s (via %s, timestamp: %s)\n", resp.Key, resp.Value, via.member.ID,
		time.UnixMilli(resp.Timestamp).UTC().Format(time.RFC3339Nano))
}

func (c *console) showOperations() {
	fmt.Println("\nOperation History:")
	fmt.Println("-----------------")
	for _, n := range c.client.nodes {
		resp, err := c.client.operations(n)
		if err != nil {
			c.log.WithError(err).WithField("node", n.member.ID).Error("Failed to get operations")
			continue
		}
		fmt.Printf("\nNode: %s (leader: %t)\n", resp.NodeID, resp.IsLeader)
		for _, op := range resp.Operations {
			fmt.Printf("  [%s] %s %s = %s\n", op.Time().UTC().Format(time.RFC3339Nano),
				strings.ToUpper(string(op.Type)), op.Key, op.Value)
		}
	}
}

func (c *console) showStatus() {
	fmt.Printf("\n%-10s %-10s %-6s %-10s %-6s %-6s %s\n", "NODE", "ROLE", "TERM", "LEADER", "READY", "LOG", "PARTITIONED")
	for _, n := range c.client.nodes {
		st, err := c.client.status(n)
		if err != nil {
			fmt.Printf("%-10s unreachable: %v\n", n.member.ID, err)
			continue
		}
		fmt.Printf("%-10s %-10s %-6d %-10s %-6t %-6d %t\n", st.NodeID, st.Role, st.Term, st.LeaderID, st.IsReady,
			st.LogLength, st.Partitioned)
	}
}

// pickNode asks for a node id and returns the matching node
func (c *console) pickNode() (*node, bool) {
	id, ok := c.prompt("Enter node id: ")
	if !ok {
		return nil, false
	}
	n, found := c.client.byID(cluster.NodeID(id))
	if !found {
		fmt.Printf("Unknown node %q\n", id)
	}
	return n, found
}

func (c *console) forceElection() {
	n, ok := c.pickNode()
	if !ok {
		return
	}
	if err := c.client.forceElection(n); err != nil {
		c.log.WithError(err).WithField("node", n.member.ID).Error("Force election failed")
		return
	}
	fmt.Printf("Election started on %s\n", n.member.ID)
}

func (c *console) togglePartition() {
	n, ok := c.pickNode()
	if !ok {
		return
	}
	st, err := c.client.status(n)
	if err != nil {
		c.log.WithError(err).WithField("node", n.member.ID).Error("Failed to get status")
		return
	}
	partitioned, err := c.client.setPartition(n, !st.Partitioned)
	if err != nil {
		c.log.WithError(err).WithField("node", n.member.ID).Error("Set partition failed")
		return
	}
	fmt.Printf("%s partitioned: %t\n", n.member.ID, partitioned)
}
