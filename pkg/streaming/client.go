package streaming

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingEvery  = pongWait * 9 / 10
	writeLimit = 10 * time.Second
)

type client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs *subscriptions
}

// subscriptions is the set of event types a client receives.
type subscriptions struct {
	mu  sync.RWMutex
	set map[EventType]bool
}

func newSubscriptions(types []EventType) *subscriptions {
	s := &subscriptions{set: make(map[EventType]bool, len(types))}
	for _, t := range types {
		s.set[t] = true
	}
	return s
}

func (s *subscriptions) has(t EventType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set[t]
}

func (s *subscriptions) update(types []EventType, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range types {
		if on {
			s.set[t] = true
		} else {
			delete(s.set, t)
		}
	}
}

// controlMessage is what clients send, e.g.
//
//	{"type": "unsubscribe", "events": ["heartbeat"]}
type controlMessage struct {
	Type   string      `json:"type"`
	Events []EventType `json:"events"`
}

func (c *client) apply(raw []byte) {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.hub.log.WithField("client", c.id).Debug("ignoring malformed control message")
		return
	}
	switch msg.Type {
	case "subscribe":
		c.subs.update(msg.Events, true)
	case "unsubscribe":
		c.subs.update(msg.Events, false)
	}
}

func (c *client) readLoop() {
	defer func() {
		select {
		case c.hub.leaves <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimitBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).WithField("client", c.id).Warn("read error")
			}
			return
		}
		c.apply(raw)
	}
}

func (c *client) writeLoop() {
	ping := time.NewTicker(pingEvery)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeLimit))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeLimit))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
