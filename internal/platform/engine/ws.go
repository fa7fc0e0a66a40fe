package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soltradehq/soltrade/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message.
	pongWait = 30 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// EventHandler is called for every decoded lifecycle event.
type EventHandler func(domain.LifecycleEvent)

// WSClient is a WebSocket client for the engine's pushed lifecycle-event
// channel. Reconnection policy lives in the owning feed, not here; on
// disconnect the read loop exits and the error surfaces through Err.
type WSClient struct {
	wsURL  string
	apiKey string
	conn   *websocket.Conn

	mu     sync.RWMutex
	closed bool
	err    error

	// Tracked subscription for visibility.
	wallet string

	handlerMu sync.RWMutex
	handlers  []EventHandler

	// done is closed when the client shuts down or the connection drops.
	done chan struct{}
}

// wsSubscribeCmd asks the engine to push lifecycle events for a wallet.
type wsSubscribeCmd struct {
	Op     string `json:"op"`
	Wallet string `json:"wallet"`
}

// NewWSClient creates a new engine WebSocket client.
//
// wsURL is the WebSocket endpoint, e.g. "wss://engine.soltradehq.com/v1/events".
func NewWSClient(wsURL, apiKey string) *WSClient {
	return &WSClient{
		wsURL:  wsURL,
		apiKey: apiKey,
		done:   make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("engine/ws: client is closed")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	var header map[string][]string
	if w.apiKey != "" {
		header = map[string][]string{"Authorization": {"Bearer " + w.apiKey}}
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, header)
	if err != nil {
		return fmt.Errorf("engine/ws: connect: %w", err)
	}

	w.conn = conn

	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop()
	go w.pingLoop()

	return nil
}

// Subscribe asks the engine to push lifecycle events for the given wallet.
func (w *WSClient) Subscribe(ctx context.Context, walletAddress string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("engine/ws: not connected")
	}

	cmd := wsSubscribeCmd{Op: "subscribe", Wallet: walletAddress}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("engine/ws: marshal subscribe: %w", err)
	}

	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("engine/ws: subscribe: %w", err)
	}

	w.wallet = walletAddress
	return nil
}

// OnEvent registers a handler called for every decoded lifecycle event.
func (w *WSClient) OnEvent(handler EventHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Done is closed when the connection drops or the client is closed.
func (w *WSClient) Done() <-chan struct{} {
	return w.done
}

// Err reports the read-loop error that ended the connection, if any.
func (w *WSClient) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.err
}

// Close shuts down the WebSocket connection. Idempotent.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// readLoop continuously reads frames and dispatches decoded events. On read
// failure it records the error and signals done so the owner can reconnect.
func (w *WSClient) readLoop() {
	for {
		w.mu.RLock()
		conn := w.conn
		closed := w.closed
		w.mu.RUnlock()

		if conn == nil || closed {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			if !w.closed {
				w.err = fmt.Errorf("%w: %v", domain.ErrWSDisconnect, err)
				w.closed = true
				close(w.done)
				conn.Close()
			}
			w.mu.Unlock()
			return
		}

		w.handleMessage(message)
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (w *WSClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.RLock()
			conn := w.conn
			w.mu.RUnlock()

			if conn == nil {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage decodes one frame and fans it out to handlers. Frames that
// fail to decode are dropped; the channel must survive unknown kinds.
func (w *WSClient) handleMessage(raw []byte) {
	ev, err := decodeEvent(raw)
	if err != nil {
		return
	}

	w.handlerMu.RLock()
	handlers := w.handlers
	w.handlerMu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
