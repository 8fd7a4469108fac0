package rest_interface

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/funder/internal/core/application"
)

const (
	clientBufferSize = 64
	pingInterval     = 30 * time.Second
	pongTimeout      = 60 * time.Second
	writeTimeout     = 10 * time.Second
	maxReadSize      = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// eventHub fans the funding events out to every connected websocket client.
// A client that can not keep up is dropped.
type eventHub struct {
	lock    *sync.RWMutex
	clients map[*eventClient]struct{}
	closed  bool

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
	hub  *eventHub
}

func newEventHub() *eventHub {
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("event hub: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("event hub: %s", format)
		log.WithError(err).Warnf(format, a...)
	}
	return &eventHub{
		lock:    &sync.RWMutex{},
		clients: make(map[*eventClient]struct{}),
		log:     logFn,
		warn:    warnFn,
	}
}

// publish is registered as handler of every funding event type.
func (h *eventHub) publish(event application.FundingEvent) {
	data, err := json.Marshal(newEventMessage(event))
	if err != nil {
		h.warn(err, "failed to marshal %s event", event.EventType)
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log("dropping slow client")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *eventHub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.warn(err, "websocket upgrade failed")
		return
	}

	c := &eventClient{
		conn: conn,
		send: make(chan []byte, clientBufferSize),
		hub:  h,
	}

	h.lock.Lock()
	if h.closed {
		h.lock.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.lock.Unlock()

	h.log("client %s connected, %d listening", conn.RemoteAddr(), count)

	go c.writePump()
	go c.readPump()
}

func (h *eventHub) unregister(c *eventClient) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *eventHub) clientCount() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

// close disconnects every client and refuses new ones.
func (h *eventHub) close() {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// readPump only handles control frames, messages from clients are
// discarded.
func (c *eventClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxReadSize)
	// nolint
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err, websocket.CloseGoingAway, websocket.CloseNormalClosure,
			) {
				c.hub.warn(err, "client %s disconnected", c.conn.RemoteAddr())
			}
			return
		}
	}
}

func (c *eventClient) writePump() {
	pingTicker := time.NewTicker(pingInterval)
	defer func() {
		pingTicker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			// nolint
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// nolint
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-pingTicker.C:
			// nolint
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
