package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// WebSocketEndpoint is the path for WebSocket connections.
	WebSocketEndpoint = "/events"

	// HealthEndpoint is the path for health checks.
	HealthEndpoint = "/health"

	// writeWait is the timeout for writing to a WebSocket.
	writeWait = 10 * time.Second

	// pongWait is the timeout for pong responses.
	pongWait = 60 * time.Second

	// pingPeriod is how often to send ping frames.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum inbound message size allowed.
	maxMessageSize = 512
)

// Observer is a WebSocket server that streams Parvis pipeline events to
// external monitors. It subscribes to all bus events and forwards them to
// connected clients, with optional history replay on connect.
type Observer struct {
	bus      *Bus
	port     int
	upgrader websocket.Upgrader
	server   *http.Server

	clients    map[*client]bool
	clientsMu  sync.RWMutex
	register   chan *client
	unregister chan *client

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
	runningMu sync.RWMutex
}

// client is a single WebSocket connection.
type client struct {
	conn          *websocket.Conn
	send          chan []byte
	replayHistory bool
	historyCount  int
}

// NewObserver creates an observer attached to the given bus.
func NewObserver(b *Bus, port int) *Observer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Observer{
		bus:  b,
		port: port,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Local monitor tooling only; not exposed beyond loopback.
				return true
			},
		},
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins serving WebSocket clients.
func (o *Observer) Start() error {
	o.runningMu.Lock()
	if o.running {
		o.runningMu.Unlock()
		return fmt.Errorf("observer already running")
	}
	o.running = true
	o.runningMu.Unlock()

	o.bus.Subscribe(EventType(""), o.handleBusEvent)

	o.wg.Add(1)
	go o.runClientManager()

	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketEndpoint, o.handleWebSocket)
	mux.HandleFunc(HealthEndpoint, o.handleHealth)

	o.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", o.port),
		Handler: mux,
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		log.Info().Int("port", o.port).Msg("event observer listening")
		if err := o.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("event observer server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the observer.
func (o *Observer) Stop() error {
	o.runningMu.Lock()
	if !o.running {
		o.runningMu.Unlock()
		return nil
	}
	o.running = false
	o.runningMu.Unlock()

	o.cancel()

	// Shutdown below does not touch hijacked websocket connections, so
	// close them here to unblock their read pumps.
	o.clientsMu.Lock()
	for c := range o.clients {
		close(c.send)
		c.conn.Close()
		delete(o.clients, c)
	}
	o.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("observer shutdown: %w", err)
	}

	o.wg.Wait()
	return nil
}

// ClientCount returns the number of connected WebSocket clients.
func (o *Observer) ClientCount() int {
	o.clientsMu.RLock()
	defer o.clientsMu.RUnlock()
	return len(o.clients)
}

// runClientManager handles client registration and teardown.
func (o *Observer) runClientManager() {
	defer o.wg.Done()
	for {
		select {
		case c := <-o.register:
			o.clientsMu.Lock()
			o.clients[c] = true
			total := len(o.clients)
			o.clientsMu.Unlock()
			log.Debug().Int("clients", total).Msg("observer client connected")
			if c.replayHistory {
				o.replayTo(c, c.historyCount)
			}

		case c := <-o.unregister:
			o.clientsMu.Lock()
			if _, ok := o.clients[c]; ok {
				delete(o.clients, c)
				close(c.send)
				c.conn.Close()
			}
			remaining := len(o.clients)
			o.clientsMu.Unlock()
			log.Debug().Int("clients", remaining).Msg("observer client disconnected")

		case <-o.ctx.Done():
			return
		}
	}
}

// replayTo sends recent events to a newly connected client.
func (o *Observer) replayTo(c *client, count int) {
	for _, event := range o.bus.Recent(count) {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
		default:
			return
		}
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket.
func (o *Observer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	replay := r.URL.Query().Get("replay") != "false"
	count := 100
	if n := r.URL.Query().Get("count"); n != "" {
		fmt.Sscanf(n, "%d", &count)
	}

	conn, err := o.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		conn:          conn,
		send:          make(chan []byte, 256),
		replayHistory: replay,
		historyCount:  count,
	}

	select {
	case o.register <- c:
	case <-o.ctx.Done():
		conn.Close()
		return
	}

	o.wg.Add(2)
	go o.writePump(c)
	go o.readPump(c)
}

// writePump sends events to a WebSocket client with keepalive pings.
func (o *Observer) writePump(c *client) {
	defer o.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-o.ctx.Done():
			return
		}
	}
}

// readPump drains the client connection to process control frames.
func (o *Observer) readPump(c *client) {
	defer o.wg.Done()
	defer o.dropClient(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("observer websocket closed")
			}
			break
		}
		// Inbound messages are ignored; the observer is one-way.
	}
}

// handleBusEvent forwards every published event to all connected clients.
func (o *Observer) handleBusEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal event for observer")
		return
	}

	o.clientsMu.RLock()
	clients := make([]*client, 0, len(o.clients))
	for c := range o.clients {
		clients = append(clients, c)
	}
	o.clientsMu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			o.dropClient(c)
		}
	}
}

// dropClient hands a client to the manager for teardown. The manager is
// gone once the observer context ends, so the send must not block past
// shutdown or Stop's wg.Wait deadlocks on the sender.
func (o *Observer) dropClient(c *client) {
	select {
	case o.unregister <- c:
	case <-o.ctx.Done():
	}
}

// handleHealth responds to health check requests.
func (o *Observer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := struct {
		Status      string `json:"status"`
		Service     string `json:"service"`
		Port        int    `json:"port"`
		Clients     int    `json:"clients"`
		BusSubs     int    `json:"bus_subscriptions"`
		HistorySize int    `json:"history_size"`
	}{
		Status:      "healthy",
		Service:     "parvis-observer",
		Port:        o.port,
		Clients:     o.ClientCount(),
		BusSubs:     o.bus.SubscriptionCount(),
		HistorySize: len(o.bus.History()),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
