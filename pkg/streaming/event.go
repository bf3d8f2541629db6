// Package streaming pushes board updates to dashboard clients over WebSocket.
package streaming

import "time"

// EventType names a stream a client can subscribe to.
type EventType string

const (
	EventTypeBoard     EventType = "board"
	EventTypeLiquidity EventType = "liquidity"
	EventTypeFormat    EventType = "format"
	EventTypeStatus    EventType = "status"
	EventTypeError     EventType = "error"
	EventTypeHeartbeat EventType = "heartbeat"
)

// EventTypes lists every type a client is subscribed to on connect.
func EventTypes() []EventType {
	return []EventType{
		EventTypeBoard, EventTypeLiquidity, EventTypeFormat,
		EventTypeStatus, EventTypeError, EventTypeHeartbeat,
	}
}

// Event is one message on the wire. Seq is assigned by the hub in delivery
// order.
type Event struct {
	Seq       uint64      `json:"seq"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type formatChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

type streamError struct {
	Error  string `json:"error"`
	Source string `json:"source"`
}

// BroadcastBoard sends a board summary. The latest one is replayed to
// clients that connect later.
func (h *Hub) BroadcastBoard(summary interface{}) {
	h.Broadcast(Event{Type: EventTypeBoard, Data: summary})
}

// BroadcastLiquidity sends a liquidity change for one event.
func (h *Hub) BroadcastLiquidity(change interface{}) {
	h.Broadcast(Event{Type: EventTypeLiquidity, Data: change})
}

// BroadcastFormat sends an odds display format change.
func (h *Hub) BroadcastFormat(old, new string) {
	h.Broadcast(Event{Type: EventTypeFormat, Data: formatChange{Old: old, New: new}})
}

// BroadcastStatus sends a poller status update.
func (h *Hub) BroadcastStatus(status interface{}) {
	h.Broadcast(Event{Type: EventTypeStatus, Data: status})
}

// BroadcastError sends a source failure.
func (h *Hub) BroadcastError(err error, source string) {
	h.Broadcast(Event{Type: EventTypeError, Data: streamError{Error: err.Error(), Source: source}})
}
