package live

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func TestBroadcastDeliversToSubscribers(t *testing.T) {
	h := startHub(t)

	c := &client{send: make(chan []byte, 4)}
	h.register <- c

	h.Broadcast(MsgTypeVoteUpdate, map[string]int{"votes": 3})

	select {
	case raw := <-c.send:
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		require.Equal(t, MsgTypeVoteUpdate, msg.Type)
		require.NotZero(t, msg.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}

func TestConcurrentBroadcastsDropStalledClients(t *testing.T) {
	h := startHub(t)

	// Unbuffered send channels with no reader: every delivery attempt
	// stalls, so each client must be evicted instead.
	stalled := make([]*client, 0, 200)
	for i := 0; i < 200; i++ {
		c := &client{send: make(chan []byte)}
		h.register <- c
		stalled = append(stalled, c)
	}
	require.Eventually(t, func() bool { return h.ClientCount() == 200 },
		time.Second, 5*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Broadcast(MsgTypeQueueUpdate, map[string]string{"track": "t"})
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return h.ClientCount() == 0 },
		time.Second, 5*time.Millisecond)

	// Every evicted channel must be closed exactly once; a second close
	// would have panicked the run loop above.
	for _, c := range stalled {
		select {
		case _, open := <-c.send:
			require.False(t, open)
		default:
			t.Fatal("send channel left open after eviction")
		}
	}
}

func TestUnregisterTwiceIsHarmless(t *testing.T) {
	h := startHub(t)

	c := &client{send: make(chan []byte, 1)}
	h.register <- c
	h.unregister <- c
	h.unregister <- c

	require.Eventually(t, func() bool { return h.ClientCount() == 0 },
		time.Second, 5*time.Millisecond)

	h.Broadcast(MsgTypePrequeue, map[string]string{"id": "x"})
	select {
	case _, open := <-c.send:
		require.False(t, open)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("send channel left open after unregister")
	}
}

func TestStopDisconnectsSubscribers(t *testing.T) {
	h := NewHub()
	go h.Run()

	c := &client{send: make(chan []byte, 1)}
	h.register <- c
	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	h.Stop()

	select {
	case _, open := <-c.send:
		require.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed on stop")
	}
	require.Equal(t, 0, h.ClientCount())

	// Broadcast after stop must not block the caller.
	done := make(chan struct{})
	go func() {
		h.Broadcast(MsgTypeConfig, map[string]string{"k": "v"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked after stop")
	}
}
