// Package eventsink provides a reference, non-core implementation of
// modules.EventSink: a hub that fans wallet events out to any number of
// websocket subscribers. It exists to demonstrate that the core's narrow
// EventSink interface is genuinely implementable by an external
// collaborator (the specification treats event delivery as out of core
// scope); nothing in modules/wallet imports this package.
package eventsink

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/kryptokrona/kryptokrona-walletcore-go/modules"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub broadcasts every Notify call to all currently-connected websocket
// subscribers, dropping events for subscribers that fall behind.
type Hub struct {
	log *logrus.Entry

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	send chan modules.Event
}

// NewHub creates an empty hub.
func NewHub(log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{
		log:         log,
		subscribers: make(map[*subscriber]struct{}),
	}
}

// Notify implements modules.EventSink.
func (h *Hub) Notify(ev modules.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		select {
		case sub.send <- ev:
		default:
			h.log.Warn("eventsink: subscriber too slow, dropping event")
		}
	}
}

// ServeHTTP upgrades the connection to a websocket and streams every
// subsequent event to it until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("eventsink: websocket upgrade failed")
		return
	}
	sub := &subscriber{conn: conn, send: make(chan modules.Event, 64)}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.subscribers, sub)
		h.mu.Unlock()
		conn.Close()
	}()

	for ev := range sub.send {
		payload, err := json.Marshal(eventWire{
			Kind:   string(ev.Kind),
			Height: ev.Height,
			Tx:     ev.Transaction,
		})
		if err != nil {
			h.log.WithError(err).Warn("eventsink: failed to encode event")
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

type eventWire struct {
	Kind   string      `json:"kind"`
	Height uint64      `json:"height,omitempty"`
	Tx     interface{} `json:"transaction,omitempty"`
}
