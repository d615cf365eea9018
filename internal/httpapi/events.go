package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"replicated-kv/internal/events"
	"replicated-kv/internal/raft/server"
)

const sseBuffer = 32

// handleEvents streams role changes, leader changes and applied operations as server-sent events until the client
// goes away or the bus is closed.
func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	if g.bus == nil {
		http.NotFound(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming unsupported"})
		return
	}

	roles := make(chan *events.Event[server.RoleChangedPayload], sseBuffer)
	leaders := make(chan *events.Event[server.LeaderChangedPayload], sseBuffer)
	applied := make(chan *events.Event[server.OperationAppliedPayload], sseBuffer)

	roleID := events.Subscribe(g.bus, server.RoleChanged, roles)
	leaderID := events.Subscribe(g.bus, server.LeaderChanged, leaders)
	appliedID := events.Subscribe(g.bus, server.OperationApplied, applied)
	defer func() {
		g.bus.Unsubscribe(server.RoleChanged, roleID)
		g.bus.Unsubscribe(server.LeaderChanged, leaderID)
		g.bus.Unsubscribe(server.OperationApplied, appliedID)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		var (
			name    string
			payload any
		)
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-roles:
			if !ok {
				return
			}
			name, payload = "role", ev.Payload
		case ev, ok := <-leaders:
			if !ok {
				return
			}
			name, payload = "leader", ev.Payload
		case ev, ok := <-applied:
			if !ok {
				return
			}
			name, payload = "applied", ev.Payload
		}

		if err := writeEvent(w, name, payload); err != nil {
			g.logger.WithError(err).Debug("Event stream closed")
			return
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
