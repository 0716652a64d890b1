package bus

import (
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func dialObserver(t *testing.T, port int) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("ws://127.0.0.1:%d%s?replay=false", port, WebSocketEndpoint)
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		c, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, 20*time.Millisecond)
	return conn
}

func TestObserverStreamsEvents(t *testing.T) {
	b := New()
	defer b.Close()

	o := NewObserver(b, freePort(t))
	require.NoError(t, o.Start())
	defer o.Stop()

	conn := dialObserver(t, o.port)
	defer conn.Close()
	require.Eventually(t, func() bool { return o.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Publish(NewEvent(EventActivation)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, EventActivation, got.Type)
}

func TestObserverStopReturnsWithConnectedClient(t *testing.T) {
	b := New()
	defer b.Close()

	o := NewObserver(b, freePort(t))
	require.NoError(t, o.Start())

	conn := dialObserver(t, o.port)
	defer conn.Close()
	require.Eventually(t, func() bool { return o.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	// A client that never closes its side must not wedge shutdown.
	done := make(chan error, 1)
	go func() { done <- o.Stop() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return while a client was connected")
	}
}
