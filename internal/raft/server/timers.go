package server

import (
	"replicated-kv/internal/raft"
	"sync"
	"time"
)

/*
The two background schedules of a Server live in this file. Both are cancellable and both can be closed for good on
shutdown, after which they ignore further requests so that no goroutine outlives the Server.
*/

// electionTimer fires onExpire once the randomized election timeout elapses without a Reset. Every Reset or Stop
// bumps an epoch, and a callback carrying an old epoch is ignored by the Server. time.Timer.Stop cannot recall a
// callback that already started running, so the epoch is what makes Reset reliable.
type electionTimer struct {
	mu       sync.Mutex
	timer    *time.Timer
	epoch    uint64
	closed   bool
	minTTL   time.Duration
	maxTTL   time.Duration
	onExpire func(epoch uint64)
}

func newElectionTimer(minTTL, maxTTL time.Duration, onExpire func(epoch uint64)) *electionTimer {
	return &electionTimer{minTTL: minTTL, maxTTL: maxTTL, onExpire: onExpire}
}

// Reset (re)arms the timer with a freshly drawn timeout and returns it
func (t *electionTimer) Reset() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0
	}
	t.stopLocked()

	timeout := raft.RandomElectionTimeout(t.minTTL, t.maxTTL)
	epoch := t.epoch
	t.timer = time.AfterFunc(timeout, func() { t.onExpire(epoch) })
	return timeout
}

// Stop cancels the timer
func (t *electionTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Close cancels the timer and turns every later Reset into a no-op
func (t *electionTimer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.closed = true
}

// IsCurrent reports whether epoch belongs to the latest arming of the timer
func (t *electionTimer) IsCurrent(epoch uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && t.timer != nil && t.epoch == epoch
}

func (t *electionTimer) stopLocked() {
	t.epoch++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// heartbeatTicker calls send on a fixed period while the server is leader. The first call happens right away so
// that followers learn about a new leader without waiting a full interval.
type heartbeatTicker struct {
	mu       sync.Mutex
	stopCh   chan struct{}
	closed   bool
	interval time.Duration
	send     func(term uint64)
}

func newHeartbeatTicker(interval time.Duration, send func(term uint64)) *heartbeatTicker {
	return &heartbeatTicker{interval: interval, send: send}
}

// Start begins sending heartbeats for term, replacing any previous schedule
func (h *heartbeatTicker) Start(term uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.stopLocked()

	stopCh := make(chan struct{})
	h.stopCh = stopCh
	go h.run(term, stopCh)
}

// Stop cancels the schedule. Heartbeats already in flight are not recalled.
func (h *heartbeatTicker) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
}

// Close stops the schedule and turns every later Start into a no-op
func (h *heartbeatTicker) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
	h.closed = true
}

// Running reports whether a schedule is active
func (h *heartbeatTicker) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopCh != nil
}

func (h *heartbeatTicker) stopLocked() {
	if h.stopCh != nil {
		close(h.stopCh)
		h.stopCh = nil
	}
}

func (h *heartbeatTicker) run(term uint64, stopCh <-chan struct{}) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.send(term)
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			// A stop may race with the tick, prefer the stop
			select {
			case <-stopCh:
				return
			default:
			}
			h.send(term)
		}
	}
}
