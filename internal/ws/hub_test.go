package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"realtime-chat/backend/internal/broadcast"
	"realtime-chat/backend/internal/models"
	"realtime-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.done
	})
	return hub
}

func testClient(hub *Hub, id string, buffer int) *Client {
	return &Client{ID: id, Send: make(chan []byte, buffer), Hub: hub}
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case payload, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		return payload
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.ID)
		return nil
	}
}

func eventPayload(t *testing.T, body string) []byte {
	t.Helper()
	msg := &models.Message{ID: 1, UserID: 2, Body: body, CreatedAt: time.Now().UTC()}
	payload, err := broadcast.MessageSent(models.Author{ID: 2, Name: "Bob"}, msg).Encode()
	require.NoError(t, err)
	return payload
}

func TestHubFansOutToEveryClient(t *testing.T) {
	hub := startHub(t)
	a := testClient(hub, "a", 4)
	b := testClient(hub, "b", 4)
	require.True(t, hub.Register(a))
	require.True(t, hub.Register(b))

	require.NoError(t, hub.Broadcast([]byte("one")))
	require.NoError(t, hub.Broadcast([]byte("two")))

	for _, c := range []*Client{a, b} {
		assert.Equal(t, "one", string(receive(t, c)))
		assert.Equal(t, "two", string(receive(t, c)))
	}
	assert.Equal(t, 2, hub.ClientCount())
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)
	slow := testClient(hub, "slow", 1)
	fast := testClient(hub, "fast", 4)
	require.True(t, hub.Register(slow))
	require.True(t, hub.Register(fast))

	require.NoError(t, hub.Broadcast([]byte("one")))
	require.NoError(t, hub.Broadcast([]byte("two")))

	assert.Equal(t, "one", string(receive(t, fast)))
	assert.Equal(t, "two", string(receive(t, fast)))
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, "one", string(<-slow.Send))
	_, open := <-slow.Send
	assert.False(t, open, "slow client should be disconnected")
}

func TestHubUnregister(t *testing.T) {
	hub := startHub(t)
	c := testClient(hub, "c", 1)
	require.True(t, hub.Register(c))

	hub.Unregister(c)
	_, open := <-c.Send
	assert.False(t, open)
	assert.Equal(t, 0, hub.ClientCount())

	// A second unregister is a no-op
	hub.Unregister(c)
}

func TestHubStopped(t *testing.T) {
	hub := NewHub(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	c := testClient(hub, "c", 1)

	go hub.Run(ctx)
	require.True(t, hub.Register(c))
	cancel()
	<-hub.done

	_, open := <-c.Send
	assert.False(t, open)
	assert.ErrorIs(t, hub.Broadcast([]byte("late")), ErrHubStopped)
	assert.False(t, hub.Register(testClient(hub, "d", 1)))
}

func TestHubRelaysRedisMessages(t *testing.T) {
	hub := startHub(t)
	c := testClient(hub, "c", 4)
	require.True(t, hub.Register(c))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages := make(chan *redis.Message, 2)
	go hub.relay(ctx, messages)

	messages <- &redis.Message{Channel: "chat", Payload: "not json"}
	valid := eventPayload(t, "relayed")
	messages <- &redis.Message{Channel: "chat", Payload: string(valid)}

	assert.JSONEq(t, string(valid), string(receive(t, c)))
}

func TestServeWs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := startHub(t)

	router := gin.New()
	router.GET("/ws", NewHandler(hub, []string{"http://allowed.example"}).ServeWs)
	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	t.Run("hello frame then events", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, hello, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, `{"event":"connected"}`, string(hello))

		payload := eventPayload(t, "live")
		require.NoError(t, hub.Broadcast(payload))

		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)
		event, err := broadcast.DecodeEvent(frame)
		require.NoError(t, err)
		assert.Equal(t, "live", event.Message.Body)
		assert.Equal(t, "Bob", event.User.Name)
	})

	t.Run("foreign origin rejected", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://evil.example"}}
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("configured origin accepted", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://allowed.example"}}
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
		require.NoError(t, err)
		conn.Close()
	})
}

func TestOriginChecker(t *testing.T) {
	check := originChecker(nil)
	req := httptest.NewRequest(http.MethodGet, "http://chat.local/ws", nil)
	assert.True(t, check(req), "no origin header")

	req.Header.Set("Origin", "http://chat.local")
	assert.True(t, check(req), "same host")

	req.Header.Set("Origin", "http://other.local")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
