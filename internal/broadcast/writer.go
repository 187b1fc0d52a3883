package broadcast

import (
	"sync"
	"time"

	"github.com/Monpress1/GlobalNews/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 16
)

// clientWriter owns all writes to one connection. It starts gated: messages
// queue on sendChannel but nothing is written until open installs the first
// frame. The hub actor is the only caller of open, stop and stopGraceful.
type clientWriter struct {
	id          uuid.UUID
	connection  *websocket.Conn
	clock       clockwork.Clock
	sendChannel chan []byte
	gateChannel chan struct{}
	doneChannel chan struct{}
	first       []byte
	gateOnce    sync.Once
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func newClientWriter(connection *websocket.Conn, clock clockwork.Clock, pending int) *clientWriter {
	if pending <= 0 {
		pending = messageBufferSize
	}
	cw := &clientWriter{
		id:          uuid.New(),
		connection:  connection,
		clock:       clock,
		sendChannel: make(chan []byte, pending),
		gateChannel: make(chan struct{}),
		doneChannel: make(chan struct{}),
	}
	cw.configurePongHandler()
	cw.wg.Add(1)
	go cw.run()
	return cw
}

// open releases the gate. first (if non-nil) is written before anything
// queued on the send channel.
func (cw *clientWriter) open(first []byte) {
	cw.gateOnce.Do(func() {
		cw.first = first
		close(cw.gateChannel)
	})
}

func (cw *clientWriter) run() {
	defer cw.wg.Done()

	// Hold writes until the hub opens the gate. Events queued meanwhile
	// stay buffered behind the first frame.
	select {
	case <-cw.gateChannel:
	case <-cw.doneChannel:
		return
	}

	if cw.first != nil {
		if err := cw.write(cw.first); err != nil {
			return
		}
	}

	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-cw.sendChannel:
			if !ok {
				return
			}
			start := cw.clock.Now()
			if err := cw.write(msg); err != nil {
				return
			}
			metrics.WebSocketMessageSendDuration.Observe(cw.clock.Since(start).Seconds())
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				// Ping failed - client likely disconnected
				metrics.WebSocketPingFailures.Inc()
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

func (cw *clientWriter) write(msg []byte) error {
	cw.updateWriteDeadline()
	return cw.connection.WriteMessage(websocket.TextMessage, msg)
}

func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

// stopGraceful sends a WebSocket close frame with reason before closing.
func (cw *clientWriter) stopGraceful(reason string) {
	cw.stopOnce.Do(func() {
		// Signal the run goroutine to exit first
		close(cw.doneChannel)

		// Wait for run goroutine to exit before writing close frame
		// This prevents concurrent writes to the WebSocket connection
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		cw.updateWriteDeadline()
		_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)

		_ = cw.connection.Close()
	})
}

func (cw *clientWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.connection.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		return nil
	})
}

func (cw *clientWriter) updateWriteDeadline() {
	deadline := cw.clock.Now().Add(writeDeadline)
	_ = cw.connection.SetWriteDeadline(deadline)
}

func (cw *clientWriter) updateReadDeadline() {
	deadline := cw.clock.Now().Add(pongDeadline)
	_ = cw.connection.SetReadDeadline(deadline)
}
