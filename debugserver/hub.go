// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package debugserver

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lesismal/memcheck"
	"github.com/lesismal/memcheck/logging"
)

const (
	// DefaultQueueSize is the number of events buffered per watcher.
	DefaultQueueSize = 256

	writeTimeout = 5 * time.Second
)

// Hub fans registry events out to websocket watchers. Publish is meant to
// be used as memcheck.Config.OnEvent. A watcher whose queue is full misses
// events rather than blocking the registry.
type Hub struct {
	mux     sync.Mutex
	closed  bool
	clients map[*watcher]struct{}

	queueSize int
	dropped   uint64
	logger    logging.Logger
	upgrader  websocket.Upgrader
}

type watcher struct {
	conn *websocket.Conn
	send chan memcheck.Event
	done chan struct{}
}

// NewHub creates a Hub. A nil logger means logging.DefaultLogger.
func NewHub(logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &Hub{
		clients:   map[*watcher]struct{}{},
		queueSize: DefaultQueueSize,
		logger:    logger,
	}
}

// Publish queues ev for every watcher.
func (h *Hub) Publish(ev memcheck.Event) {
	h.mux.Lock()
	defer h.mux.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			atomic.AddUint64(&h.dropped, 1)
		}
	}
}

// Len returns the number of connected watchers.
func (h *Hub) Len() int {
	h.mux.Lock()
	defer h.mux.Unlock()
	return len(h.clients)
}

// Dropped returns how many events were not delivered because a watcher's
// queue was full.
func (h *Hub) Dropped() uint64 {
	return atomic.LoadUint64(&h.dropped)
}

// Close disconnects every watcher and refuses new ones.
func (h *Hub) Close() {
	h.mux.Lock()
	defer h.mux.Unlock()
	h.closed = true
	for c := range h.clients {
		c.conn.Close()
	}
}

func (h *Hub) register(c *watcher) bool {
	h.mux.Lock()
	defer h.mux.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *watcher) {
	h.mux.Lock()
	defer h.mux.Unlock()
	delete(h.clients, c)
}

// ServeHTTP upgrades the request and streams events until the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("debugserver: upgrade %v failed: %v", r.RemoteAddr, err)
		return
	}
	c := &watcher{
		conn: conn,
		send: make(chan memcheck.Event, h.queueSize),
		done: make(chan struct{}),
	}
	if !h.register(c) {
		conn.Close()
		return
	}
	h.logger.Debug("debugserver: watcher %v connected", conn.RemoteAddr())

	go c.writeLoop()
	err = c.readLoop()

	h.unregister(c)
	close(c.done)
	conn.Close()
	h.logger.Debug("debugserver: watcher %v disconnected: %v", conn.RemoteAddr(), err)
}

// readLoop discards inbound messages; it returns when the connection fails.
func (c *watcher) readLoop() error {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return err
		}
	}
}

func (c *watcher) writeLoop() {
	for {
		select {
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
