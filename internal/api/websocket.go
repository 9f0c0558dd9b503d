package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Global trade stream and its filtered variants.
	TopicTrades      = "trades.stream"
	topicTokenPrefix = "trades.stream.token:"
	topicPairPrefix  = "trades.stream.pair:"

	pingInterval = 25 * time.Second
	// A connection that has not ponged by the next ping cycle is dropped.
	pongWait     = 2 * pingInterval
	writeTimeout = 10 * time.Second
	sendBuffer   = 256
)

// TokenTopic builds a per-token trade topic from an id, symbol or denom.
func TokenTopic(key string) string { return topicTokenPrefix + key }

// PairTopic builds a per-pool trade topic from the pair contract.
func PairTopic(pairContract string) string { return topicPairPrefix + pairContract }

// --- WebSocket Hub ---

// Hub fans broadcast frames out to clients by topic. The subscriber map is
// read-mostly: publishers take the read lock and iterate a copied slice so
// a slow client registering mid-broadcast never blocks fan-out.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[*Client]bool)}
}

func (h *Hub) subscribe(topic string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.topics[topic]
	if set == nil {
		set = make(map[*Client]bool)
		h.topics[topic] = set
	}
	set[c] = true
}

func (h *Hub) unsubscribe(topic string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.topics[topic]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.topics, topic)
		}
	}
}

func (h *Hub) dropClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, set := range h.topics {
		delete(set, c)
		if len(set) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish sends a pre-marshalled frame to every subscriber of the topic.
// Clients whose send buffer is full are dropped: a stuck reader must not
// stall the pump.
func (h *Hub) Publish(topic string, frame []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.topics[topic]))
	for c := range h.topics[topic] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- frame:
		default:
			c.close()
		}
	}
}

// SubscriberCount is used by /status.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// --- Client ---

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// close deregisters the client and signals its writeLoop. The send channel
// is never closed: Publish goroutines may still hold a reference from a
// pre-drop snapshot, and a send to a closed channel would panic the pump.
// The abandoned buffer is reclaimed by GC once the loops exit.
func (c *Client) close() {
	c.once.Do(func() {
		c.hub.dropClient(c)
		close(c.done)
	})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// controlFrame is the single-JSON-frame client protocol.
type controlFrame struct {
	Op    string `json:"op"`
	Topic string `json:"topic"`
}

type controlAck struct {
	OK           bool   `json:"ok"`
	Subscribed   string `json:"subscribed,omitempty"`
	Unsubscribed string `json:"unsubscribed,omitempty"`
	Error        string `json:"error,omitempty"`
}

type helloFrame struct {
	OK    bool   `json:"ok"`
	Hello string `json:"hello"`
	Path  string `json:"path"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("WebSocket upgrade error:", err)
		return
	}

	client := newClient(s.hub, conn)

	hello, _ := json.Marshal(helloFrame{OK: true, Hello: "degenter-ws", Path: "/ws"})
	client.send <- hello

	go client.writeLoop()
	client.readLoop()
}

// writeLoop owns the connection's write side: outbound frames plus the
// 25-second keepalive pings.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeTimeout))
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop handles control frames and enforces the pong deadline.
func (c *Client) readLoop() {
	defer func() {
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame controlFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			c.reply(controlAck{OK: false, Error: "invalid_json"})
			continue
		}

		switch frame.Op {
		case "subscribe":
			c.hub.subscribe(frame.Topic, c)
			c.reply(controlAck{OK: true, Subscribed: frame.Topic})
		case "unsubscribe":
			c.hub.unsubscribe(frame.Topic, c)
			c.reply(controlAck{OK: true, Unsubscribed: frame.Topic})
		default:
			c.reply(controlAck{OK: false, Error: "unknown_op"})
		}
	}
}

func (c *Client) reply(ack controlAck) {
	frame, _ := json.Marshal(ack)
	select {
	case c.send <- frame:
	default:
	}
}
