package raft

import "sync"

// LogEntry is a single slot of the replicated log. Index is 1-based and strictly increasing. The first entry a
// node appends after winning an election is a sentinel without an Operation.
type LogEntry[T any] struct {
	Term      uint64
	Index     uint64
	Operation *T
}

// Log is a linear, in-memory append log. It is only used to size the commit index: there is no consistency check
// and no reconciliation of divergent histories.
type Log[T any] struct {
	mu      sync.RWMutex
	entries []LogEntry[T]
}

// NewLog creates an empty log.
func NewLog[T any]() *Log[T] {
	return &Log[T]{}
}

// Append adds a new entry for the given term at the next index and returns it.
func (l *Log[T]) Append(term uint64, op *T) LogEntry[T] {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := LogEntry[T]{
		Term:      term,
		Index:     uint64(len(l.entries)) + 1,
		Operation: op,
	}
	l.entries = append(l.entries, entry)
	return entry
}

// Discard removes entry from the log and shifts every later entry down by one index. It returns false, leaving
// the log untouched, when the slot at entry.Index no longer holds that entry.
func (l *Log[T]) Discard(entry LogEntry[T]) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Index == 0 || entry.Index > uint64(len(l.entries)) {
		return false
	}
	pos := entry.Index - 1
	if current := l.entries[pos]; current.Term != entry.Term || current.Operation != entry.Operation {
		return false
	}

	l.entries = append(l.entries[:pos], l.entries[pos+1:]...)
	for i := pos; i < uint64(len(l.entries)); i++ {
		l.entries[i].Index = i + 1
	}
	return true
}

// Len returns the number of entries, which is also the index of the last entry (0 if the log is empty).
func (l *Log[T]) Len() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.entries))
}
