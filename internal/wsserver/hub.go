package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeDeadline bounds a single websocket write.
const writeDeadline = 5 * time.Second

// readDeadline is extended on every pong. 90 seconds allows ~3 missed pings.
const readDeadline = 90 * time.Second

const pingInterval = 30 * time.Second

// maxReadMessageSize limits incoming subscribe payloads.
const maxReadMessageSize = 32 * 1024

// maxClients caps concurrent feed consumers.
const maxClients = 32

var wsUpgrader = websocket.Upgrader{
	// The listener only accepts loopback connections.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 4 * 1024,
}

var errHubStarted = errors.New("wsserver: already started")

// HubOptions configures the activation feed.
type HubOptions struct {
	// Port is the loopback TCP port. Zero lets the OS pick one.
	Port int
}

// client is one connected feed consumer.
type client struct {
	conn *websocket.Conn

	// writeMu serializes WriteMessage calls; gorilla/websocket does not
	// support concurrent writers.
	writeMu sync.Mutex

	// filter is nil until the client subscribes. Guarded by Hub.mu.
	filter map[string]bool
}

// Hub fans activation events out to every connected websocket client.
//
// mu guards the client set and every client's filter and is never held
// across a network write. Any write failure disconnects that client; it
// must reconnect.
type Hub struct {
	opts HubOptions

	mu      sync.RWMutex
	clients map[*client]struct{}

	listener net.Listener
	server   *http.Server
	url      string
	wg       sync.WaitGroup

	closeOnce sync.Once
}

// NewHub creates a Hub. It does not listen until Start.
func NewHub(opts HubOptions) *Hub {
	return &Hub{
		opts:    opts,
		clients: make(map[*client]struct{}),
	}
}

// Start listens on 127.0.0.1 and serves the feed at /events. The server
// keeps running until Stop.
func (h *Hub) Start(ctx context.Context) error {
	if h.server != nil {
		return errHubStarted
	}
	if h.opts.Port < 0 || h.opts.Port > 65535 {
		return fmt.Errorf("wsserver: port %d out of range", h.opts.Port)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", h.opts.Port))
	if err != nil {
		return fmt.Errorf("wsserver: listen: %w", err)
	}
	h.listener = ln
	h.url = fmt.Sprintf("ws://127.0.0.1:%d/events", ln.Addr().(*net.TCPAddr).Port)

	mux := http.NewServeMux()
	mux.HandleFunc("/events", h.handleWS)
	h.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	h.wg.Go(func() {
		if serveErr := h.server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("[DEBUG-WS] server error", "error", serveErr)
		}
	})

	slog.Info("[DEBUG-WS] activation feed started", "url", h.url)
	return nil
}

// Stop closes every client and shuts the HTTP server down. Idempotent.
func (h *Hub) Stop() error {
	var stopErr error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		clients := make([]*client, 0, len(h.clients))
		for c := range h.clients {
			clients = append(clients, c)
		}
		h.clients = make(map[*client]struct{})
		h.mu.Unlock()

		for _, c := range clients {
			closeConn(c.conn, "hub stop")
		}

		if h.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.server.Shutdown(shutdownCtx); err != nil {
				stopErr = fmt.Errorf("wsserver: shutdown: %w", err)
			}
			h.wg.Wait()
		}
		slog.Info("[DEBUG-WS] activation feed stopped")
	})
	return stopErr
}

// URL returns the feed URL, or "" before Start.
func (h *Hub) URL() string {
	return h.url
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends ev to every client whose filter accepts ev.Binding.
// Slow or broken clients are dropped.
func (h *Hub) Broadcast(ev Event) {
	payload, err := EncodeEvent(ev)
	if err != nil {
		slog.Warn("[DEBUG-WS] failed to encode activation event", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if c.filter == nil || c.filter[ev.Binding] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := h.write(c, websocket.TextMessage, payload); err != nil {
			slog.Warn("[DEBUG-WS] write failed, dropping client", "binding", ev.Binding, "error", err)
			h.drop(c, "write error in Broadcast")
		}
	}
}

func (h *Hub) write(c *client, messageType int, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return err
	}
	err := c.conn.WriteMessage(messageType, payload)
	if clearErr := c.conn.SetWriteDeadline(time.Time{}); clearErr != nil {
		slog.Debug("[DEBUG-WS] clear write deadline failed (non-fatal)", "error", clearErr)
	}
	return err
}

// drop removes c from the hub and closes its connection.
func (h *Hub) drop(c *client, reason string) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	closeConn(c.conn, reason)
}

// closeConn tolerates double close; gorilla/websocket reports it as an error
// with no other effect.
func closeConn(conn *websocket.Conn, reason string) {
	if err := conn.Close(); err != nil {
		slog.Debug("[DEBUG-WS] connection close", "reason", reason, "error", err)
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if h.ClientCount() >= maxClients {
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[DEBUG-WS] upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxReadMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		slog.Warn("[DEBUG-WS] SetReadDeadline failed on new connection", "error", err)
		closeConn(conn, "initial SetReadDeadline failure")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	slog.Info("[DEBUG-WS] client connected", "remoteAddr", conn.RemoteAddr())

	pingDone := make(chan struct{})
	go h.pingLoop(c, pingDone)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] wsserver handleWS recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
		close(pingDone)
		h.drop(c, "read pump exit")
		slog.Info("[DEBUG-WS] client disconnected")
	}()

	for {
		msgType, msg, readErr := conn.ReadMessage()
		if readErr != nil {
			if websocket.IsUnexpectedCloseError(readErr, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("[DEBUG-WS] read error", "error", readErr)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var sub subscribeMsg
		if jsonErr := json.Unmarshal(msg, &sub); jsonErr != nil {
			slog.Debug("[DEBUG-WS] invalid JSON from client", "error", jsonErr)
			h.sendError(c, fmt.Sprintf("invalid JSON: %s", jsonErr))
			continue
		}
		if !h.applySubscription(c, sub) {
			h.sendError(c, fmt.Sprintf("unknown action %q", sub.Action))
		}
	}
}

// applySubscription updates c's filter. It reports false for an unknown
// action.
func (h *Hub) applySubscription(c *client, msg subscribeMsg) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch msg.Action {
	case subscribeAction:
		if c.filter == nil {
			c.filter = make(map[string]bool)
		}
		for _, name := range msg.Bindings {
			if name == "" {
				continue
			}
			c.filter[name] = true
			slog.Debug("[DEBUG-WS] subscribed", "binding", name)
		}
	case unsubscribeAction:
		if c.filter == nil {
			// Unsubscribing from the implicit "everything" set leaves nothing.
			c.filter = make(map[string]bool)
		}
		for _, name := range msg.Bindings {
			delete(c.filter, name)
			slog.Debug("[DEBUG-WS] unsubscribed", "binding", name)
		}
	default:
		slog.Debug("[DEBUG-WS] unknown action", "action", msg.Action)
		return false
	}
	return true
}

func (h *Hub) pingLoop(c *client, done <-chan struct{}) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] wsserver pingLoop recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			h.drop(c, "pingLoop panic recovery")
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := h.write(c, websocket.PingMessage, nil); err != nil {
				slog.Debug("[DEBUG-WS] ping failed, connection likely dead", "error", err)
				h.drop(c, "ping failure")
				return
			}
		}
	}
}

func (h *Hub) sendError(c *client, message string) {
	payload, err := json.Marshal(errorMsg{Type: eventTypeError, Message: message})
	if err != nil {
		slog.Debug("[DEBUG-WS] failed to marshal error message", "error", err)
		return
	}
	if err := h.write(c, websocket.TextMessage, payload); err != nil {
		slog.Debug("[DEBUG-WS] failed to send error to client", "error", err)
		h.drop(c, "write error in sendError")
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
