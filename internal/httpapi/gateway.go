// Package httpapi exposes a node over HTTP with JSON bodies. It is a thin layer: every route maps onto one
// operation of the node, and consensus errors map onto HTTP status codes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"replicated-kv/internal/events"
	"replicated-kv/internal/raft"
	"replicated-kv/internal/raft/metrics"
	"replicated-kv/internal/raft/rpc"
	"replicated-kv/internal/raft/server"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// Node is the part of server.Server the gateway needs
type Node interface {
	Put(ctx context.Context, key, value string) (*rpc.Operation, error)
	Get(ctx context.Context, key string, forwarded bool) (*rpc.GetResponse, error)
	Status() *rpc.StatusResponse
	Operations() *rpc.OperationsResponse
	ForceElection() error
	SetPartition(partitioned bool) bool
}

// ReportSource produces a metrics report. *metrics.Metrics implements it.
type ReportSource interface {
	GetReport(nodeID string) metrics.Report
}

// Gateway is an http.Handler serving the key-value API of a single node
type Gateway struct {
	node    Node
	reports ReportSource
	bus     *events.Bus
	logger  logrus.FieldLogger
	mux     *http.ServeMux
}

// NewGateway builds the gateway. reports and bus are optional, the routes depending on them answer 404 when unset.
func NewGateway(node Node, reports ReportSource, bus *events.Bus, logger logrus.FieldLogger) *Gateway {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	g := &Gateway{
		node:    node,
		reports: reports,
		bus:     bus,
		logger:  logger.WithField("component", "http"),
		mux:     http.NewServeMux(),
	}

	// Literal paths take precedence over the {key} wildcard
	g.mux.HandleFunc("GET /status", g.handleStatus)
	g.mux.HandleFunc("GET /operations", g.handleOperations)
	g.mux.HandleFunc("GET /metrics", g.handleMetrics)
	g.mux.HandleFunc("GET /events", g.handleEvents)
	g.mux.HandleFunc("POST /force-election", g.handleForceElection)
	g.mux.HandleFunc("POST /partition", g.handlePartition)
	g.mux.HandleFunc("PUT /{key}", g.handlePut)
	g.mux.HandleFunc("GET /{key}", g.handleGet)

	return g
}

// ServeHTTP tags every request with an id and logs it once served
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("Access-Control-Allow-Origin", "*")

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	g.mux.ServeHTTP(rec, r)

	g.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     r.Method,
		"path":       r.URL.Path,
		"status":     rec.status,
		"duration":   time.Since(start),
	}).Debug("Served HTTP request")
}

type putBody struct {
	Value string `json:"value"`
}

func (g *Gateway) handlePut(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var body putBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid body: %v", err)})
		return
	}

	op, err := g.node.Put(r.Context(), key, body.Value)
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

type getBody struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"`
}

func (g *Gateway) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	resp, err := g.node.Get(r.Context(), key, false)
	if err != nil {
		g.writeError(w, err)
		return
	}
	if !resp.Found {
		g.writeError(w, fmt.Errorf("%w: %q", raft.ErrKeyNotFound, key))
		return
	}
	writeJSON(w, http.StatusOK, getBody{Key: resp.Key, Value: resp.Value, Timestamp: resp.Timestamp})
}

func (g *Gateway) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.node.Status())
}

func (g *Gateway) handleOperations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.node.Operations())
}

func (g *Gateway) handleForceElection(w http.ResponseWriter, _ *http.Request) {
	if err := g.node.ForceElection(); err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rpc.ForceElectionResponse{Success: true})
}

func (g *Gateway) handlePartition(w http.ResponseWriter, r *http.Request) {
	var req rpc.SetPartitionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid body: %v", err)})
		return
	}
	writeJSON(w, http.StatusOK, rpc.SetPartitionResponse{Success: true, Partitioned: g.node.SetPartition(req.Partitioned)})
}

func (g *Gateway) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if g.reports == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, g.reports.GetReport(g.node.Status().NodeID))
}

type errorBody struct {
	Error string `json:"error"`
	// Leader is set on writes sent to a follower, so that clients can retry against the leader
	Leader string `json:"leader,omitempty"`
}

// statusFor maps consensus errors onto HTTP status codes. Order matters: a failed forward wraps both
// raft.ErrLeaderUnreachable and the underlying cause.
func statusFor(err error) int {
	switch {
	case errors.Is(err, raft.ErrNotLeader):
		return http.StatusConflict
	case errors.Is(err, raft.ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, raft.ErrLeaderUnreachable), errors.Is(err, raft.ErrReplicationFailed):
		return http.StatusBadGateway
	case errors.Is(err, raft.ErrNotReady), errors.Is(err, raft.ErrNoLeaderAvailable),
		errors.Is(err, raft.ErrPartitioned), errors.Is(err, raft.ErrServerStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (g *Gateway) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	body := errorBody{Error: err.Error()}
	if errors.Is(err, raft.ErrNotLeader) {
		body.Leader = g.node.Status().LeaderAddress
	}
	if code >= http.StatusInternalServerError {
		g.logger.WithError(err).WithField("status", code).Warn("Request failed")
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusRecorder remembers the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush lets server-sent events through the recorder
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

var _ Node = (*server.Server)(nil)
