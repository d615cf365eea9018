package raft

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOp struct {
	Key string
}

func TestLog_Append(t *testing.T) {
	l := NewLog[testOp]()
	assert.Equal(t, uint64(0), l.Len())

	sentinel := l.Append(1, nil)
	assert.Equal(t, uint64(1), sentinel.Index)
	assert.Nil(t, sentinel.Operation)

	entry := l.Append(1, &testOp{Key: "x"})
	assert.Equal(t, uint64(2), entry.Index)
	assert.Equal(t, uint64(1), entry.Term)
	assert.Equal(t, "x", entry.Operation.Key)
	assert.Equal(t, uint64(2), l.Len())
}

func TestLog_Discard(t *testing.T) {
	t.Run("removes the last entry", func(t *testing.T) {
		l := NewLog[testOp]()
		l.Append(1, nil)
		entry := l.Append(1, &testOp{Key: "x"})

		assert.True(t, l.Discard(entry))
		assert.Equal(t, uint64(1), l.Len())

		next := l.Append(1, &testOp{Key: "y"})
		assert.Equal(t, uint64(2), next.Index)
	})

	t.Run("keeps entries appended after it", func(t *testing.T) {
		l := NewLog[testOp]()
		l.Append(1, nil)
		failed := l.Append(1, &testOp{Key: "x"})
		l.Append(2, &testOp{Key: "y"})
		l.Append(2, &testOp{Key: "z"})

		require.True(t, l.Discard(failed))
		require.Equal(t, uint64(3), l.Len())

		assert.Equal(t, "y", l.entries[1].Operation.Key)
		assert.Equal(t, uint64(2), l.entries[1].Index)
		assert.Equal(t, "z", l.entries[2].Operation.Key)
		assert.Equal(t, uint64(3), l.entries[2].Index)
	})

	t.Run("ignores an entry that is no longer in its slot", func(t *testing.T) {
		l := NewLog[testOp]()
		first := l.Append(1, &testOp{Key: "x"})
		second := l.Append(1, &testOp{Key: "y"})
		require.True(t, l.Discard(first))

		// second moved to index 1, its old slot is gone
		assert.False(t, l.Discard(second))
		assert.False(t, l.Discard(first))
		assert.Equal(t, uint64(1), l.Len())
	})

	t.Run("ignores out of range indexes", func(t *testing.T) {
		l := NewLog[testOp]()
		l.Append(1, nil)

		assert.False(t, l.Discard(LogEntry[testOp]{}))
		assert.False(t, l.Discard(LogEntry[testOp]{Index: 5, Term: 1}))
		assert.Equal(t, uint64(1), l.Len())
	})
}

func TestLog_ConcurrentAppendKeepsIndexesDense(t *testing.T) {
	l := NewLog[testOp]()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Append(1, &testOp{})
		}()
	}
	wg.Wait()

	require.Equal(t, uint64(100), l.Len())
	for i, e := range l.entries {
		assert.Equal(t, uint64(i+1), e.Index)
	}
}
