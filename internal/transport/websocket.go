// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"spectral/internal/freqtable"
	"spectral/internal/log"
	"spectral/internal/pipeline"
)

const (
	writeWait      = time.Second
	broadcastQueue = 64
)

// Greeting is sent to every client when it connects so it can lay out the
// bins before the first result arrives.
type Greeting struct {
	Type        string    `json:"type"`
	Pipeline    string    `json:"pipeline"`
	SampleRate  float64   `json:"sampleRate"`
	Frequencies []float64 `json:"frequencies"`
	Notes       []string  `json:"notes"`
}

// NewGreeting describes a pipeline instance.
func NewGreeting(id uuid.UUID, table freqtable.Table, sampleRate float64) Greeting {
	g := Greeting{
		Type:        "hello",
		Pipeline:    id.String(),
		SampleRate:  sampleRate,
		Frequencies: append([]float64(nil), table[:]...),
		Notes:       make([]string, freqtable.Bins),
	}
	for k := range g.Notes {
		g.Notes[k] = freqtable.NoteName(k)
	}
	return g
}

// WebSocketTransport implements the Transport interface for WebSocket
// connections. Messages are queued and broadcast as JSON from a single
// goroutine; when the queue is full a result is dropped, while a pipeline
// failure message evicts the oldest queued messages instead.
type WebSocketTransport struct {
	addr      string
	path      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	greeting  any
	broadcast chan any
	done      chan struct{}
	server    *http.Server
	listener  net.Listener
	closeOnce sync.Once
	log       log.Logger
}

// NewWebSocketTransport creates a transport serving clients on addr at
// path. Call Start to begin accepting connections.
func NewWebSocketTransport(addr, path string) *WebSocketTransport {
	if path == "" {
		path = "/ws"
	}
	return &WebSocketTransport{
		addr: addr,
		path: path,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // The visualiser is served from anywhere
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, broadcastQueue),
		done:      make(chan struct{}),
		log:       log.For("websocket"),
	}
}

// SetGreeting sets the message sent to each new client.
func (wst *WebSocketTransport) SetGreeting(v any) {
	wst.clientsMu.Lock()
	wst.greeting = v
	wst.clientsMu.Unlock()
}

// Start listens on the configured address and serves in the background.
func (wst *WebSocketTransport) Start() error {
	ln, err := net.Listen("tcp", wst.addr)
	if err != nil {
		return err
	}
	wst.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc(wst.path, wst.handleWebSocket)
	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		wst.log.Infof("serving on ws://%s%s", ln.Addr(), wst.path)
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wst.log.Errorf("server error: %v", err)
		}
	}()
	go wst.handleBroadcasts()
	return nil
}

// Addr returns the address the server listens on, once started.
func (wst *WebSocketTransport) Addr() string {
	if wst.listener == nil {
		return wst.addr
	}
	return wst.listener.Addr().String()
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// handleWebSocket upgrades HTTP connections to WebSocket.
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wst.log.Warnf("upgrade error: %v", err)
		return
	}

	// The greeting is written under the lock so it always precedes the
	// first broadcast this client sees.
	wst.clientsMu.Lock()
	if wst.greeting != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(wst.greeting); err != nil {
			wst.clientsMu.Unlock()
			wst.log.Warnf("greeting %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			return
		}
	}
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	wst.log.Infof("client %s connected, total: %d", conn.RemoteAddr(), total)

	// Clients never send anything meaningful; reading detects disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.drop(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	if ok {
		conn.Close()
		wst.log.Infof("client %s disconnected, total: %d", conn.RemoteAddr(), total)
	}
}

// handleBroadcasts sends messages to all connected clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				_ = client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteJSON(data); err != nil {
					wst.log.Warnf("send to %s: %v", client.RemoteAddr(), err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		}
	}
}

// Send queues data for broadcast. It never blocks; when the queue is full
// the message is dropped, unless it is a pipeline.ErrorMessage.
func (wst *WebSocketTransport) Send(data any) error {
	if _, ok := data.(pipeline.ErrorMessage); ok {
		wst.sendEvicting(data)
		return nil
	}
	select {
	case wst.broadcast <- data:
	default:
	}
	return nil
}

// sendEvicting queues data, discarding the oldest queued messages until it
// fits.
func (wst *WebSocketTransport) sendEvicting(data any) {
	for {
		select {
		case wst.broadcast <- data:
			return
		default:
		}
		select {
		case <-wst.broadcast:
		default:
		}
	}
}

// Close shuts down the WebSocket server.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		wst.log.Debugf("closing server")
		close(wst.done)

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		if wst.server != nil {
			err = wst.server.Close()
		}
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface at compile time.
var _ Transport = (*WebSocketTransport)(nil)
