package streaming

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	queueSize      = 256
	clientBuffer   = 64
	defaultBeat    = 30 * time.Second
	readLimitBytes = 512
)

// HubConfig configures a Hub.
type HubConfig struct {
	Heartbeat time.Duration
	// CheckOrigin decides whether an upgrade is allowed. Nil allows all.
	CheckOrigin func(r *http.Request) bool
}

// DefaultHubConfig returns sensible defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{Heartbeat: defaultBeat}
}

// Hub fans events out to connected clients. All membership changes and
// deliveries happen on the Run goroutine.
type Hub struct {
	upgrader  websocket.Upgrader
	heartbeat time.Duration
	log       *logrus.Entry

	events chan Event
	joins  chan *client
	leaves chan *client
	done   chan struct{}

	mu        sync.RWMutex
	clients   map[*client]struct{}
	seq       uint64
	lastBoard []byte

	// OnClientCount is called after a client connects or disconnects.
	OnClientCount func(n int)
	// OnBroadcast is called for each event handed to the fan-out.
	OnBroadcast func(t EventType)
}

// NewHub creates a hub. Call Run before serving connections.
func NewHub(cfg HubConfig, log *logrus.Entry) *Hub {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultBeat
	}
	if cfg.CheckOrigin == nil {
		cfg.CheckOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		heartbeat: cfg.Heartbeat,
		log:       log.WithField("component", "ws"),
		events:    make(chan Event, queueSize),
		joins:     make(chan *client),
		leaves:    make(chan *client),
		done:      make(chan struct{}),
		clients:   make(map[*client]struct{}),
	}
}

// Run owns the client set until ctx is done, then closes every client.
// A hub runs at most once.
func (h *Hub) Run(ctx context.Context) {
	beat := time.NewTicker(h.heartbeat)
	defer beat.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.dropAll()
			return
		case c := <-h.joins:
			h.join(c)
		case c := <-h.leaves:
			h.leave(c, "client disconnected")
		case ev := <-h.events:
			h.deliver(ev)
		case now := <-beat.C:
			h.deliver(Event{
				Type:      EventTypeHeartbeat,
				Timestamp: now,
				Data:      map[string]int{"clients": h.ClientCount()},
			})
		}
	}
}

// Broadcast queues ev for subscribed clients. It never blocks; events are
// dropped when the queue is full.
func (h *Hub) Broadcast(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case h.events <- ev:
	default:
		h.log.WithField("type", ev.Type).Warn("broadcast queue full, dropping event")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("upgrade failed")
		return
	}

	c := newClient(h, conn)
	select {
	case h.joins <- c:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go c.writeLoop()
	go c.readLoop()
}

func (h *Hub) join(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	snapshot := h.lastBoard
	h.mu.Unlock()

	if snapshot != nil {
		c.send <- snapshot
	}
	h.log.WithFields(logrus.Fields{"client": c.id, "total": n}).Info("client connected")
	h.countChanged(n)
}

func (h *Hub) leave(c *client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.log.WithFields(logrus.Fields{"client": c.id, "remaining": n}).Info(reason)
		h.countChanged(n)
	}
}

func (h *Hub) deliver(ev Event) {
	h.mu.Lock()
	h.seq++
	ev.Seq = h.seq
	data, err := json.Marshal(ev)
	if err != nil {
		h.mu.Unlock()
		h.log.WithError(err).WithField("type", ev.Type).Error("marshalling event")
		return
	}
	if ev.Type == EventTypeBoard {
		h.lastBoard = data
	}

	var slow []*client
	for c := range h.clients {
		if !c.subs.has(ev.Type) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.leave(c, "send buffer full, disconnecting")
	}
	if h.OnBroadcast != nil {
		h.OnBroadcast(ev.Type)
	}
}

func (h *Hub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) countChanged(n int) {
	if h.OnClientCount != nil {
		h.OnClientCount(n)
	}
}

func newClient(h *Hub, conn *websocket.Conn) *client {
	return &client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientBuffer),
		subs: newSubscriptions(EventTypes()),
	}
}
