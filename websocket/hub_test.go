package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"libraryhub_go/middleware"
	"libraryhub_go/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetLogger(zap.NewNop())
}

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (string, models.Role, error) {
	switch {
	case strings.HasPrefix(token, "student:"):
		return strings.TrimPrefix(token, "student:"), models.RoleStudent, nil
	case strings.HasPrefix(token, "admin:"):
		return strings.TrimPrefix(token, "admin:"), models.RoleAdmin, nil
	}
	return "", 0, errors.New("bad token")
}

func startServer(t *testing.T, hub *Hub) string {
	t.Helper()
	r := gin.New()
	r.GET("/ws", hub.HandleConnection)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url, token string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHandleConnectionRejects(t *testing.T) {
	hub := NewHub(stubVerifier{}, nil)
	url := startServer(t, hub)

	cases := []struct {
		token  string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"garbage", http.StatusUnauthorized},
		{"admin:a1", http.StatusForbidden},
	}
	for _, tc := range cases {
		_, resp, err := websocket.DefaultDialer.Dial(url+"?token="+tc.token, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, tc.status, resp.StatusCode, "token=%q", tc.token)
	}
}

func TestNotifyLocalDelivery(t *testing.T) {
	hub := NewHub(stubVerifier{}, nil)
	url := startServer(t, hub)

	first := dial(t, url, "student:s1")
	second := dial(t, url, "student:s1")
	other := dial(t, url, "student:s2")
	require.Eventually(t, func() bool {
		return hub.Connected("s1") == 2 && hub.Connected("s2") == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Notify("s1", "badge_unlocked", map[string]string{"badge": "first-book"})

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		assert.Equal(t, "badge_unlocked", msg["type"])
		assert.Equal(t, map[string]interface{}{"badge": "first-book"}, msg["data"])
		assert.NotContains(t, msg, "studentId")
	}

	// s2 only sees its own event
	hub.Notify("s2", "level_up", map[string]int{"level": 2})
	assert.Equal(t, "level_up", readMessage(t, other)["type"])

	// unknown students are ignored
	hub.Notify("nobody", "streak", nil)
}

func TestPingPongAndDisconnect(t *testing.T) {
	hub := NewHub(stubVerifier{}, nil)
	url := startServer(t, hub)

	conn := dial(t, url, "student:s1")
	require.Eventually(t, func() bool { return hub.Connected("s1") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, "pong", readMessage(t, conn)["type"])

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return hub.Connected("s1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestNotifyThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	// two instances sharing one channel
	sender := NewHub(stubVerifier{}, rdb)
	receiver := NewHub(stubVerifier{}, rdb)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go receiver.Run(ctx)

	url := startServer(t, receiver)
	conn := dial(t, url, "student:s1")
	require.Eventually(t, func() bool {
		return receiver.Connected("s1") == 1 && len(mr.PubSubChannels("")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sender.Notify("s1", "streak", map[string]int{"current": 3})

	msg := readMessage(t, conn)
	assert.Equal(t, "streak", msg["type"])
	assert.Equal(t, map[string]interface{}{"current": float64(3)}, msg["data"])
	assert.NotZero(t, msg["timestamp"])
}

func TestCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(stubVerifier{}, nil)
	url := startServer(t, hub)

	conn := dial(t, url, "student:s1")
	require.Eventually(t, func() bool { return hub.Connected("s1") == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.Connected("s1"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
