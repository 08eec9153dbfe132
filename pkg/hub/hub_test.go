package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(id string, buf int) *Client {
	return &Client{ID: id, send: make(chan []byte, buf)}
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message")
		return nil
	}
}

func TestHub_BroadcastFansOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("test", nil)
	go h.Run(ctx)

	a, b := testClient("a", 4), testClient("b", 4)
	require.True(t, h.join(a))
	require.True(t, h.join(b))
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, h.IsRunning())

	require.NoError(t, h.BroadcastJSON(map[string]bool{"shown": true}))
	assert.JSONEq(t, `{"shown":true}`, string(recv(t, a)))
	assert.JSONEq(t, `{"shown":true}`, string(recv(t, b)))

	h.leave(a)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	_, ok := <-a.send
	assert.False(t, ok, "unregistered client channel is closed")
}

func TestHub_RetainReplaysLatest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("overlay", nil, WithRetain())
	go h.Run(ctx)

	early := testClient("early", 4)
	require.True(t, h.join(early))
	h.Broadcast([]byte(`{"n":1}`))
	h.Broadcast([]byte(`{"n":2}`))
	recv(t, early)
	recv(t, early)

	late := testClient("late", 4)
	require.True(t, h.join(late))
	assert.Equal(t, `{"n":2}`, string(recv(t, late)))
}

func TestHub_DropsSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("test", nil)
	go h.Run(ctx)

	slow := testClient("slow", 1)
	require.True(t, h.join(slow))

	h.Broadcast([]byte(`1`))
	h.Broadcast([]byte(`2`))
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test", nil)
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	c := testClient("c", 1)
	require.True(t, h.join(c))
	cancel()
	<-stopped

	_, ok := <-c.send
	assert.False(t, ok)
	assert.False(t, h.IsRunning())
	assert.False(t, h.join(testClient("after", 1)), "join fails after stop")
}
