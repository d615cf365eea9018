package store

import (
	"replicated-kv/internal/raft/rpc"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Record is the current value of a key together with the timestamp of the operation that wrote it
type Record struct {
	Value     string
	Timestamp int64
}

// Journal receives every operation applied to a KVStore. It is an audit trail only: nothing is ever read back into
// the store.
type Journal interface {
	Append(op *rpc.Operation) error
	Close() error
}

// journalBuffer bounds the number of applied operations waiting to be journaled
const journalBuffer = 1024

// KVStore is the replicated key-value map plus the append-only history of operations applied to it. The leader
// applies an operation after every follower acknowledged it; followers apply on receipt.
type KVStore struct {
	mu      sync.RWMutex
	records map[string]Record
	history []*rpc.Operation
	// ids of operations already applied, so that a replayed Replicate call is a no-op
	applied map[string]struct{}

	// Applied operations are handed to a single writer goroutine, so Apply never waits on the disk. journalCh is
	// nil without a journal, and is closed by Close under mu.
	journal     Journal
	journalCh   chan *rpc.Operation
	journalDone chan struct{}
	closed      bool

	logger logrus.FieldLogger
}

// NewKVStore creates an empty store. journal may be nil.
func NewKVStore(logger logrus.FieldLogger, journal Journal) *KVStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &KVStore{
		records: make(map[string]Record),
		applied: make(map[string]struct{}),
		journal: journal,
		logger:  logger.WithField("component", "store"),
	}
	if journal != nil {
		s.journalCh = make(chan *rpc.Operation, journalBuffer)
		s.journalDone = make(chan struct{})
		go s.runJournal()
	}
	return s
}

func (s *KVStore) runJournal() {
	defer close(s.journalDone)
	for op := range s.journalCh {
		if err := s.journal.Append(op); err != nil {
			// The in-memory store stays authoritative, a journal failure only loses audit data
			s.logger.WithError(err).WithField("op", op.ID).Error("Failed to journal operation")
		}
	}
}

// Apply records op in the history and sets its key. It returns false, leaving the store untouched, if an operation
// with the same id was already applied.
func (s *KVStore) Apply(op *rpc.Operation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.applied[op.ID]; dup {
		s.logger.WithField("op", op.ID).Debug("Operation already applied, skipping")
		return false
	}

	s.applied[op.ID] = struct{}{}
	s.history = append(s.history, op)
	s.records[op.Key] = Record{Value: op.Value, Timestamp: op.Timestamp}

	if s.journalCh != nil && !s.closed {
		select {
		case s.journalCh <- op:
		default:
			s.logger.WithField("op", op.ID).Warn("Journal backlog full, operation not journaled")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"key":  op.Key,
		"op":   op.ID,
		"term": op.Term,
	}).Debugf("Applied PUT %s=%s", op.Key, op.Value)
	return true
}

// Close waits until every queued operation reached the journal. Operations applied afterwards are kept in memory
// only. Close does not close the journal itself, which belongs to the caller. It is safe to call more than once.
func (s *KVStore) Close() {
	s.mu.Lock()
	if s.journalCh == nil || s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.journalCh)
	s.mu.Unlock()

	<-s.journalDone
}

// Get returns the record for key.
func (s *KVStore) Get(key string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[key]
	return r, ok
}

// GetAll returns a copy of every key and its current value.
func (s *KVStore) GetAll() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.records))
	for k, r := range s.records {
		out[k] = r.Value
	}
	return out
}

// Operations returns the history ordered by timestamp. Operations with equal timestamps keep the order in which
// they were applied.
func (s *KVStore) Operations() []*rpc.Operation {
	s.mu.RLock()
	ops := make([]*rpc.Operation, len(s.history))
	copy(ops, s.history)
	s.mu.RUnlock()

	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].Timestamp < ops[j].Timestamp
	})
	return ops
}

// Len returns the number of applied operations.
func (s *KVStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}
