package broadcast

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Monpress1/GlobalNews/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	commandTimeout = 5 * time.Second // Actor command timeout
	stopTimeout    = 10 * time.Second
)

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	errorChannel chan error
}

type activateCmd struct {
	baseHubCmd
	connection *websocket.Conn
	first      []byte
}

type unregisterCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type broadcastCmd struct {
	baseHubCmd
	data []byte
}

type sendCmd struct {
	baseHubCmd
	connection *websocket.Conn
	data       []byte
}

type clientCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub manages WebSocket connections and fans out feed events to all of them.
// Every event is serialized exactly once and the same bytes go to every
// client. Clients whose send buffer is full are evicted rather than allowed
// to stall the fan-out.
type Hub struct {
	cmdCh         chan hubCmd
	clock         clockwork.Clock
	clients       map[*websocket.Conn]*clientWriter
	done          chan struct{}
	stopTimeout   time.Duration
	maxClients    int
	pendingBuffer int
}

// NewHub creates a hub and starts its actor goroutine.
// maxClients bounds concurrent connections (0 means unbounded).
// pendingBuffer sizes each client's outbound queue (0 uses the default).
func NewHub(clock clockwork.Clock, maxClients, pendingBuffer int) *Hub {
	h := &Hub{
		cmdCh:         make(chan hubCmd, 256),
		clock:         clock,
		clients:       make(map[*websocket.Conn]*clientWriter),
		done:          make(chan struct{}),
		stopTimeout:   stopTimeout,
		maxClients:    maxClients,
		pendingBuffer: pendingBuffer,
	}
	go h.run()
	return h
}

// Register admits a connection in the gated state: its writer buffers
// outbound events but writes nothing until Activate installs the first
// frame. Returns an error if the hub is at capacity.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- registerCmd{connection: conn, errorChannel: errCh}

	// Use timeout to prevent blocking forever if the hub is stuck
	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Activate opens a registered connection's gate. first is serialized and
// written before anything the connection buffered while gated; events that
// arrived during admission follow it in order. Activating an unknown
// connection is a no-op.
func (h *Hub) Activate(conn *websocket.Conn, first any) error {
	var data []byte
	if first != nil {
		var err error
		data, err = json.Marshal(first)
		if err != nil {
			return fmt.Errorf("failed to marshal first frame: %w", err)
		}
	}
	h.cmdCh <- activateCmd{connection: conn, first: data}
	return nil
}

// Unregister removes a connection and stops its writer. Idempotent.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.cmdCh <- unregisterCmd{connection: conn}
}

// Broadcast serializes v once and queues it to every connected client,
// including gated ones. Serialization failures are logged and dropped;
// callers hand over delivery responsibility here.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal broadcast message", "error", err)
		return
	}
	h.cmdCh <- broadcastCmd{data: data}
}

// Send queues a message to a single client. Unknown connections are a no-op.
func (h *Hub) Send(conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal targeted message", "error", err)
		return
	}
	h.cmdCh <- sendCmd{connection: conn, data: data}
}

// ClientCount returns the number of connected clients.
// Returns -1 if the command times out.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- clientCountCmd{replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop shuts down the hub, closing all client connections with a close frame.
// Blocks until the hub goroutine has exited or the timeout is reached.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timeout := h.clock.NewTimer(h.stopTimeout)
	defer timeout.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Hub stop timeout exceeded, forcing exit", "timeout", h.stopTimeout)
		metrics.HubStopTimeoutsTotal.Inc()

		// Force goroutine exit
		close(h.done)

		slog.Error("Hub goroutine may have leaked", "connected_clients", len(h.clients))
	}
}

func (h *Hub) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			metrics.HubPanicsTotal.Inc()
			h.closeAllClients("hub panic")
		}
	}()

	defer close(h.done)

	// Track command channel depth every second
	depthTicker := h.clock.NewTicker(1 * time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			depth := len(h.cmdCh)
			metrics.HubCommandChannelDepth.Set(float64(depth))

			if depth > 200 { // 80% of 256
				slog.Warn("Command channel near capacity",
					"depth", depth,
					"capacity", cap(h.cmdCh),
				)
			}

		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				h.handleRegister(c)
			case activateCmd:
				h.handleActivate(c)
			case unregisterCmd:
				h.handleUnregister(c)
			case broadcastCmd:
				h.handleBroadcast(c)
			case sendCmd:
				h.handleSend(c)
			case clientCountCmd:
				c.replyChannel <- len(h.clients)
			case stopCmd:
				h.handleStop()
				return
			default:
				slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if h.maxClients > 0 && len(h.clients) >= h.maxClients {
		slog.Warn("Rejecting client: max connections reached", "max_clients", h.maxClients)
		c.connection.Close()
		c.errorChannel <- fmt.Errorf("max connections (%d) reached", h.maxClients)
		return
	}

	cw := newClientWriter(c.connection, h.clock, h.pendingBuffer)
	h.clients[c.connection] = cw

	metrics.HubConnectedClients.Set(float64(len(h.clients)))

	slog.Debug("Client registered", "conn_id", cw.id.String(), "total_clients", len(h.clients))
	c.errorChannel <- nil
}

func (h *Hub) handleActivate(c activateCmd) {
	cw, exists := h.clients[c.connection]
	if !exists {
		// Connection evicted or unregistered while its snapshot was being fetched
		return
	}
	cw.open(c.first)
	slog.Debug("Client activated", "conn_id", cw.id.String())
}

func (h *Hub) handleUnregister(c unregisterCmd) {
	cw, exists := h.clients[c.connection]
	if !exists {
		return
	}

	cw.stop()
	delete(h.clients, c.connection)

	metrics.HubConnectedClients.Set(float64(len(h.clients)))

	slog.Debug("Client unregistered", "conn_id", cw.id.String(), "remaining_clients", len(h.clients))
}

func (h *Hub) handleBroadcast(c broadcastCmd) {
	var slow []*websocket.Conn
	for conn, cw := range h.clients {
		select {
		case cw.sendChannel <- c.data:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow client", "conn_id", h.clients[conn].id.String())
		metrics.HubSlowClientsEvicted.Inc()
		h.handleUnregister(unregisterCmd{connection: conn})
	}

	metrics.HubBroadcastsTotal.Inc()
}

func (h *Hub) handleSend(c sendCmd) {
	cw, exists := h.clients[c.connection]
	if !exists {
		return
	}

	select {
	case cw.sendChannel <- c.data:
	default:
		slog.Warn("Disconnecting slow client", "conn_id", cw.id.String())
		metrics.HubSlowClientsEvicted.Inc()
		h.handleUnregister(unregisterCmd{connection: c.connection})
	}
}

func (h *Hub) handleStop() {
	slog.Info("Hub shutting down", "connected_clients", len(h.clients))
	h.closeAllClients("Server shutting down")
	slog.Info("Hub shutdown complete")
}

// closeAllClients closes all client connections with the given reason.
// Used during panic recovery and graceful shutdown.
func (h *Hub) closeAllClients(reason string) {
	for conn, cw := range h.clients {
		cw.stopGraceful(reason)
		delete(h.clients, conn)
	}
	metrics.HubConnectedClients.Set(0)
}
