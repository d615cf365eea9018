package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"replicated-kv/internal/events"
	"replicated-kv/internal/httpapi"
	"replicated-kv/internal/raft/cluster"
	"replicated-kv/internal/raft/metrics"
	"replicated-kv/internal/raft/server"
	"replicated-kv/internal/raft/store"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultCluster = "node1=localhost:50051,node2=localhost:50052,node3=localhost:50053"

// envOr returns the environment variable key, or fallback if it is unset
func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func main() {
	// Command line flags, each one falls back to an environment variable
	nodeID := flag.String("id", envOr("NODE_ID", "node1"), "ID of this node, must appear in -cluster (env NODE_ID)")
	clusterSpec := flag.String("cluster", envOr("CLUSTER", defaultCluster), "Cluster members as id=host:port,... (env CLUSTER)")
	httpAddr := flag.String("http", envOr("HTTP_ADDR", ""), "Address of the HTTP gateway, disabled when empty (env HTTP_ADDR)")
	journalPath := flag.String("journal", envOr("JOURNAL_PATH", ""), "Path of the bbolt operation journal, disabled when empty (env JOURNAL_PATH)")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "Log level: debug, info, warn, error (env LOG_LEVEL)")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logger.WithError(err).Fatal("Invalid log level")
	}
	logger.SetLevel(level)
	log := logger.WithField("node", *nodeID)

	membership, err := cluster.ParseMembership(*clusterSpec)
	if err != nil {
		log.WithError(err).Fatal("Invalid cluster membership")
	}

	bus := events.NewBus(256, logger)
	defer bus.Close()
	collector := metrics.NewMetrics()

	cfg := server.DefaultConfig(cluster.NodeID(*nodeID), membership)
	cfg.Logger = logger
	cfg.Metrics = collector
	cfg.Events = bus

	if *journalPath != "" {
		journal, err := store.OpenBboltJournal(*journalPath)
		if err != nil {
			log.WithError(err).Fatal("Failed to open operation journal")
		}
		defer func() {
			if err := journal.Close(); err != nil {
				log.WithError(err).Warn("Failed to close operation journal")
			}
		}()
		cfg.Journal = journal
		log.WithField("path", *journalPath).Info("Journaling applied operations")
	}

	transport, err := server.NewGRPCTransport(cfg.Self, membership, logger)
	if err != nil {
		log.WithError(err).Fatal("Failed to create peer transport")
	}

	srv, err := server.NewServer(cfg, transport)
	if err != nil {
		log.WithError(err).Fatal("Failed to create server")
	}

	// Start server
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.WithError(err).Fatal("gRPC server failed")
		}
	}()
	srv.Start()

	var httpServer *http.Server
	if *httpAddr != "" {
		httpServer = &http.Server{
			Addr:              *httpAddr,
			Handler:           httpapi.NewGateway(srv, collector, bus, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.WithField("addr", *httpAddr).Info("HTTP gateway listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Fatal("HTTP gateway failed")
			}
		}()
	}

	log.WithFields(logrus.Fields{
		"addr":    srv.Address(),
		"members": membership.Size(),
	}).Info("Node is running, press Ctrl+C to stop")

	// Wait for shutdown signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("Shutting down")
	srv.Stop()
	// Closing the bus ends open event streams, so the gateway can drain
	bus.Close()
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("HTTP gateway did not shut down cleanly")
		}
		cancel()
	}

	report := collector.GetReport(*nodeID)
	report.PrintReport(os.Stdout)
}
