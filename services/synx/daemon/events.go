// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package daemon

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/A5873/synx/pkg/logging"
	"github.com/A5873/synx/services/synx/datatypes"
)

// Event types pushed to /v1/events subscribers.
const (
	EventValidated = "validated"
	EventRemoved   = "removed"
)

// Event is one message on the event stream.
type Event struct {
	ID     string            `json:"id"`
	Type   string            `json:"type"`
	Path   string            `json:"path"`
	Time   time.Time         `json:"time"`
	Result *datatypes.Result `json:"result,omitempty"`
}

func newEvent(typ, path string, res *datatypes.Result) Event {
	return Event{ID: uuid.New().String(), Type: typ, Path: path, Time: time.Now(), Result: res}
}

const (
	clientBuffer = 64
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts clients that send no Origin (CLI tools) and browsers on
// the daemon's own host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan Event
}

// hub fans events out to websocket subscribers. Slow subscribers lose
// events instead of blocking validation.
type hub struct {
	mu      sync.Mutex
	clients map[string]*client
	closed  bool
	wg      sync.WaitGroup
	logger  *logging.Logger
}

func newHub(logger *logging.Logger) *hub {
	return &hub{clients: make(map[string]*client), logger: logger}
}

func (h *hub) broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		select {
		case c.send <- ev:
		default:
			h.logger.Debug("event dropped for slow subscriber", "client", c.id)
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// handle upgrades the request and streams events until either side closes.
func (h *hub) handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	cl := &client{id: uuid.New().String(), conn: conn, send: make(chan Event, clientBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[cl.id] = cl
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	h.logger.Debug("event subscriber connected", "client", cl.id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range cl.send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("event write failed", "client", cl.id, "error", err)
				conn.Close()
				for range cl.send {
				}
				return
			}
		}
	}()

	// Reads only detect disconnects; subscribers never send anything useful.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(cl.id)
	<-done
	conn.Close()
	h.logger.Debug("event subscriber disconnected", "client", cl.id)
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cl, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(cl.send)
	}
}

// close disconnects every subscriber and waits for their handlers.
func (h *hub) close() {
	h.mu.Lock()
	h.closed = true
	for id, cl := range h.clients {
		delete(h.clients, id)
		close(cl.send)
		_ = cl.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon stopping"),
			time.Now().Add(time.Second))
		cl.conn.Close()
	}
	h.mu.Unlock()
	h.wg.Wait()
}
