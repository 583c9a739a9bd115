package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"libraryhub_go/middleware"
	"libraryhub_go/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NotificationChannel is the Redis channel shared by every server instance
const NotificationChannel = "library:notifications"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is one event pushed to a student
type Message struct {
	Type      string      `json:"type"`
	StudentID string      `json:"-"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// envelope is the pub/sub form of Message
type envelope struct {
	StudentID string          `json:"studentId"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Client is one open connection of a student
type Client struct {
	hub       *Hub
	studentID string
	conn      *websocket.Conn
	send      chan *Message
}

// Hub tracks connected students and delivers their notifications. With a
// Redis client, notifications fan out through NotificationChannel so any
// instance can reach any student.
type Hub struct {
	verifier middleware.TokenVerifier
	rdb      *redis.Client

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

// NewHub creates a hub. rdb may be nil for single-instance delivery.
func NewHub(verifier middleware.TokenVerifier, rdb *redis.Client) *Hub {
	return &Hub{
		verifier: verifier,
		rdb:      rdb,
		clients:  make(map[string]map[*Client]struct{}),
	}
}

// Run relays pub/sub notifications to local clients until ctx is done
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		return
	}
	pubsub := h.rdb.Subscribe(ctx, NotificationChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				middleware.WarnLogger("bad notification payload", zap.Error(err))
				continue
			}
			h.deliver(&Message{
				Type:      env.Type,
				StudentID: env.StudentID,
				Data:      env.Data,
				Timestamp: env.Timestamp,
			})
		}
	}
}

// Notify sends an event to every connection of studentID
func (h *Hub) Notify(studentID, eventType string, data interface{}) {
	msg := &Message{
		Type:      eventType,
		StudentID: studentID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if h.rdb == nil {
		h.deliver(msg)
		return
	}

	raw, err := json.Marshal(data)
	if err != nil {
		middleware.WarnLogger("failed to encode notification", zap.String("type", eventType), zap.Error(err))
		return
	}
	payload, _ := json.Marshal(envelope{
		StudentID: studentID,
		Type:      eventType,
		Data:      raw,
		Timestamp: msg.Timestamp,
	})
	if err := h.rdb.Publish(context.Background(), NotificationChannel, payload).Err(); err != nil {
		middleware.WarnLogger("failed to publish notification, delivering locally", zap.Error(err))
		h.deliver(msg)
	}
}

// Connected reports how many connections studentID has on this instance
func (h *Hub) Connected(studentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[studentID])
}

func (h *Hub) deliver(msg *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[msg.StudentID] {
		select {
		case c.send <- msg:
		default:
			middleware.WarnLogger("notification dropped, client too slow", zap.String("student_id", msg.StudentID))
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.studentID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.studentID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.studentID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.studentID)
	}
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, id)
	}
}

// HandleConnection upgrades a student request carrying ?token= to a
// notification stream
func (h *Hub) HandleConnection(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = middleware.TokenFromRequest(c)
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated"})
		return
	}
	studentID, role, err := h.verifier.Verify(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
		return
	}
	if role != models.RoleStudent {
		c.JSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		middleware.WarnLogger("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:       h,
		studentID: studentID,
		conn:      conn,
		send:      make(chan *Message, sendBuffer),
	}
	h.register(client)
	middleware.DebugLogger("student connected", zap.String("student_id", studentID))

	go client.writePump()
	go client.readPump()
}

// readPump only keeps the connection alive; clients answer pings and may
// send {"type":"ping"}
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		middleware.DebugLogger("student disconnected", zap.String("student_id", c.studentID))
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in Message
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.DebugLogger("websocket read error", zap.String("student_id", c.studentID), zap.Error(err))
			}
			return
		}
		if in.Type == "ping" {
			c.hub.mu.RLock()
			// send is closed once the client leaves the hub
			if _, open := c.hub.clients[c.studentID][c]; open {
				select {
				case c.send <- &Message{Type: "pong", Timestamp: time.Now().Unix()}:
				default:
				}
			}
			c.hub.mu.RUnlock()
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
