// Package notify is the WebSocket client-notification consumer fanned out
// from the output ring. Each connected client subscribes to one or more
// topics - a symbol ("BTCUSD") for trade/market-data updates, or a user ID
// ("user:alice") for their own order's status changes - and receives every
// message published to that topic from the moment it subscribes onward,
// plus a short replay buffer so a brief disconnect doesn't lose messages.
//
// Adapted from the sharded Hub in Aidin1998-finalex/internal/ws/hub.go:
// the sharding-by-client-id, replay-ring-per-topic, and register/
// unregister/broadcast goroutine shape are unchanged; subscriptions are
// driven by this exchange's symbols and user IDs instead of an open topic
// namespace, and Handle adapts journal events into outbound messages.
package notify

import (
	"encoding/json"
	"hash/fnv"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/novaxchg/matching-engine/internal/events"
)

// Message wraps an outbound payload with a per-topic sequence number for
// replay.
type Message struct {
	Topic string          `json:"topic"`
	Seq   uint64          `json:"seq"`
	Data  json.RawMessage `json:"data"`
}

type replayBuffer struct {
	mu    sync.RWMutex
	buf   []Message
	size  int
	start int
	count int
}

func newReplayBuffer(size int) *replayBuffer {
	return &replayBuffer{buf: make([]Message, size), size: size}
}

func (r *replayBuffer) add(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := (r.start + r.count) % r.size
	if r.count == r.size {
		r.start = (r.start + 1) % r.size
		r.count--
	}
	r.buf[idx] = msg
	r.count++
}

func (r *replayBuffer) getSince(since uint64) []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Message
	for i := 0; i < r.count; i++ {
		msg := r.buf[(r.start+i)%r.size]
		if msg.Seq > since {
			out = append(out, msg)
		}
	}
	return out
}

// Client is a single WebSocket connection.
type Client struct {
	id            string
	conn          *websocket.Conn
	send          chan Message
	subscriptions map[string]uint64
	hub           *Hub
}

type hubShard struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// Hub manages all WebSocket clients, sharded by client ID for concurrency.
type Hub struct {
	shards     []*hubShard
	shardCount uint32

	register   chan *Client
	unregister chan *Client
	broadcast  chan Message

	buffers    map[string]*replayBuffer
	replaySize int
	bufMu      sync.Mutex
	seqMu      sync.Mutex
	nextSeq    uint64

	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub creates a Hub with shardCount shards and replaySize messages
// retained per topic.
func NewHub(shardCount int, replaySize int, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		shards:     make([]*hubShard, shardCount),
		shardCount: uint32(shardCount),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 1024),
		buffers:    make(map[string]*replayBuffer),
		replaySize: replaySize,
		nextSeq:    1,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
	for i := range h.shards {
		h.shards[i] = &hubShard{clients: make(map[*Client]struct{})}
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			sh := h.shardFor(client.id)
			sh.mu.Lock()
			sh.clients[client] = struct{}{}
			sh.mu.Unlock()
		case client := <-h.unregister:
			sh := h.shardFor(client.id)
			sh.mu.Lock()
			delete(sh.clients, client)
			sh.mu.Unlock()
			close(client.send)
		case msg := <-h.broadcast:
			h.bufMu.Lock()
			buf, ok := h.buffers[msg.Topic]
			if !ok {
				size := h.replaySize
				if size <= 0 {
					size = 1000
				}
				buf = newReplayBuffer(size)
				h.buffers[msg.Topic] = buf
			}
			buf.add(msg)
			h.bufMu.Unlock()

			for _, sh := range h.shards {
				sh.mu.RLock()
				for c := range sh.clients {
					if _, subscribed := c.subscriptions[msg.Topic]; subscribed {
						select {
						case c.send <- msg:
						default:
							h.logger.Warn("dropping notification for slow client", zap.String("client", c.id), zap.String("topic", msg.Topic))
						}
					}
				}
				sh.mu.RUnlock()
			}
		}
	}
}

func (h *Hub) shardFor(key string) *hubShard {
	hasher := fnv.New32a()
	hasher.Write([]byte(key))
	idx := hasher.Sum32() % h.shardCount
	return h.shards[idx]
}

// ServeWS upgrades the connection and registers a client under clientID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, clientID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &Client{
		id:            clientID,
		conn:          conn,
		send:          make(chan Message, 256),
		subscriptions: make(map[string]uint64),
		hub:           h,
	}
	h.register <- c
	go c.writePump()
	go c.readPump()
	return nil
}

// Publish broadcasts data on topic to every subscribed client.
func (h *Hub) Publish(topic string, data any) {
	encoded, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("notify: marshal failed", zap.Error(err), zap.String("topic", topic))
		return
	}
	h.seqMu.Lock()
	seq := h.nextSeq
	h.nextSeq++
	h.seqMu.Unlock()
	h.broadcast <- Message{Topic: topic, Seq: seq, Data: encoded}
}

// Handle is a ring.Handler[events.Event]. OrderPlaced is published on the
// placing user's topic; TradeExecuted is published to both counterparties'
// topics and the symbol's topic; MarketDataUpdated is published on the
// symbol's topic.
func (h *Hub) Handle(seq int64, ev events.Event) {
	switch ev.Kind {
	case events.KindOrderPlaced:
		order := ev.OrderPlaced.Order
		h.Publish(userTopic(order.UserID), ev.OrderPlaced)
	case events.KindTradeExecuted:
		trade := ev.TradeExecuted.Trade
		h.Publish(symbolTopic(trade.Symbol), ev.TradeExecuted)
		h.Publish(userTopic(trade.BuyUserID), ev.TradeExecuted)
		h.Publish(userTopic(trade.SellUserID), ev.TradeExecuted)
	case events.KindMarketDataUpdated:
		h.Publish(symbolTopic(ev.MarketDataUpdated.Symbol), ev.MarketDataUpdated)
	}
}

func symbolTopic(symbol string) string { return symbol }
func userTopic(userID string) string   { return "user:" + userID }

func (c *Client) readPump() {
	defer func() { c.hub.unregister <- c; c.conn.Close() }()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req map[string][]string
		if err := json.Unmarshal(msg, &req); err != nil {
			continue
		}
		for _, topic := range req["subscribe"] {
			c.subscriptions[topic] = 0
			for _, m := range c.hub.replay(topic, 0) {
				c.send <- m
			}
		}
		for _, topic := range req["unsubscribe"] {
			delete(c.subscriptions, topic)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() { ticker.Stop(); c.conn.Close() }()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			encoded, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, encoded); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) replay(topic string, since uint64) []Message {
	h.bufMu.Lock()
	defer h.bufMu.Unlock()
	if buf, ok := h.buffers[topic]; ok {
		return buf.getSince(since)
	}
	return nil
}
