package live

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub, cancel
}

// dial connects a websocket client to room through a throwaway server.
func dial(t *testing.T, hub *Hub, room string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go NewClient(hub, conn, room).Serve()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.Subscribers(room) > 0 }, time.Second, 5*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestPublishReachesTournamentRoom(t *testing.T) {
	hub, _ := startHub(t)
	watcher := dial(t, hub, RoomForTournament(7))
	other := dial(t, hub, RoomForTournament(8))

	hub.Publish(7, "match.scheduled", map[string]int{"match_id": 3})

	msg := readMessage(t, watcher)
	assert.Equal(t, "match.scheduled", msg.Type)
	assert.Equal(t, "tournament_7", msg.RoomID)
	assert.Equal(t, map[string]interface{}{"match_id": float64(3)}, msg.Payload)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "a different room must not receive the event")
}

func TestClientDisconnectLeavesRoom(t *testing.T) {
	hub, _ := startHub(t)
	room := RoomForTournament(1)
	conn := dial(t, hub, room)
	assert.Equal(t, 1, hub.Subscribers(room))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Subscribers(room) == 0 }, time.Second, 5*time.Millisecond)

	// публикация в пустую комнату ничего не делает
	hub.Publish(1, "match.status_changed", nil)
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub, cancel := startHub(t)
	conn := dial(t, hub, RoomForTournament(2))

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived), "unexpected error: %v", err)
	assert.Equal(t, 0, hub.Subscribers(RoomForTournament(2)))
}

func TestRoomForTournament(t *testing.T) {
	assert.Equal(t, "tournament_42", RoomForTournament(42))
}
