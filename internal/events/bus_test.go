package events

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStarted Type = iota
	testStopped
)

func quietBus() *Bus {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewBus(16, l)
}

func receive[T any](t *testing.T, ch chan *Event[T]) *Event[T] {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBus_PublishSubscribe(t *testing.T) {
	b := quietBus()
	defer b.Close()

	started := make(chan *Event[string], 1)
	stopped := make(chan *Event[int], 1)
	Subscribe(b, testStarted, started)
	Subscribe(b, testStopped, stopped)

	Publish(b, NewEvent(testStarted, "node1"))
	Publish(b, NewEvent(testStopped, 42))

	assert.Equal(t, "node1", receive(t, started).Payload)
	ev := receive(t, stopped)
	assert.Equal(t, testStopped, ev.Type)
	assert.Equal(t, 42, ev.Payload)
}

func TestBus_FanOut(t *testing.T) {
	b := quietBus()
	defer b.Close()

	a := make(chan *Event[string], 1)
	c := make(chan *Event[string], 1)
	Subscribe(b, testStarted, a)
	Subscribe(b, testStarted, c)

	Publish(b, NewEvent(testStarted, "x"))

	assert.Equal(t, "x", receive(t, a).Payload)
	assert.Equal(t, "x", receive(t, c).Payload)
}

func TestBus_TypeMismatchIsDropped(t *testing.T) {
	b := quietBus()
	defer b.Close()

	ch := make(chan *Event[string], 1)
	Subscribe(b, testStarted, ch)

	Publish(b, NewEvent(testStarted, 7))
	Publish(b, NewEvent(testStarted, "ok"))

	assert.Equal(t, "ok", receive(t, ch).Payload)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := quietBus()
	defer b.Close()

	ch := make(chan *Event[string], 1)
	id := Subscribe(b, testStarted, ch)
	b.Unsubscribe(testStarted, id)

	_, ok := <-ch
	assert.False(t, ok)

	// unknown subscriptions are ignored
	b.Unsubscribe(testStopped, id)
}

func TestBus_FullChannelDropsEvents(t *testing.T) {
	b := quietBus()
	defer b.Close()

	ch := make(chan *Event[int], 1)
	Subscribe(b, testStarted, ch)

	for i := 0; i < 5; i++ {
		Publish(b, NewEvent(testStarted, i))
	}

	assert.Equal(t, 0, receive(t, ch).Payload)
}

func TestBus_Close(t *testing.T) {
	b := quietBus()
	ch := make(chan *Event[string], 4)
	Subscribe(b, testStarted, ch)

	Publish(b, NewEvent(testStarted, "before"))
	b.Close()
	b.Close()

	// queued events are delivered before channels are closed
	assert.Equal(t, "before", receive(t, ch).Payload)
	_, ok := <-ch
	assert.False(t, ok)

	// publishing after close is a no-op
	Publish(b, NewEvent(testStarted, "after"))
}

func TestPublish_NilBus(t *testing.T) {
	assert.NotPanics(t, func() {
		Publish[string](nil, NewEvent(testStarted, "x"))
	})
}
