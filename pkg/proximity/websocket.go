package proximity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Reconnect backoff bounds for the websocket feed.
const (
	wsInitialBackoff = 500 * time.Millisecond
	wsMaxBackoff     = 10 * time.Second
	wsHandshake      = 10 * time.Second
)

// WebSocketSensor consumes JSON readings streamed by a companion device:
//
//	{"distance": 3.0, "max_range": 5.0}
//
// The connection is re-established with exponential backoff until the
// sensor is unregistered.
type WebSocketSensor struct {
	cfg    Config
	logger *slog.Logger
	dialer websocket.Dialer

	mu         sync.Mutex
	conn       *websocket.Conn
	registered bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewWebSocketSensor creates a websocket-fed sensor.
func NewWebSocketSensor(cfg Config, logger *slog.Logger) *WebSocketSensor {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketSensor{
		cfg:    cfg,
		logger: logger.With("sensor", "websocket", "url", cfg.URL),
		dialer: websocket.Dialer{HandshakeTimeout: wsHandshake},
	}
}

// Register starts the connect/read loop. The first dial happens
// synchronously so configuration errors surface immediately.
func (s *WebSocketSensor) Register(ctx context.Context, fn Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registered {
		return nil
	}

	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("proximity: dial %s: %w", s.cfg.URL, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.conn = conn
	s.cancel = cancel
	s.done = make(chan struct{})
	s.registered = true

	go s.run(ctx, conn, fn, s.done)

	s.logger.Info("websocket proximity sensor registered")
	return nil
}

func (s *WebSocketSensor) run(ctx context.Context, conn *websocket.Conn, fn Listener, done chan struct{}) {
	defer close(done)

	backoff := wsInitialBackoff
	for {
		s.readAll(ctx, conn, fn)
		if ctx.Err() != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}

			next, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
			if err == nil {
				conn = next
				backoff = wsInitialBackoff
				s.mu.Lock()
				s.conn = conn
				s.mu.Unlock()
				s.logger.Info("websocket proximity feed reconnected")
				break
			}

			s.logger.Debug("websocket reconnect failed", "error", err, "backoff", backoff)
			backoff *= 2
			if backoff > wsMaxBackoff {
				backoff = wsMaxBackoff
			}
		}

		// Unregister may have closed the previous connection before the
		// new one was published.
		if ctx.Err() != nil {
			conn.Close()
			return
		}
	}
}

func (s *WebSocketSensor) readAll(ctx context.Context, conn *websocket.Conn, fn Listener) {
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("websocket proximity feed lost", "error", err)
			}
			return
		}

		var r Reading
		if err := json.Unmarshal(msg, &r); err != nil {
			s.logger.Debug("skipping sensor message", "error", err)
			continue
		}
		if r.MaxRange == 0 {
			r.MaxRange = s.cfg.MaxRange
		}
		r.At = time.Now()
		fn(r)
	}
}

// Unregister stops the feed and closes the connection.
func (s *WebSocketSensor) Unregister() error {
	s.mu.Lock()
	if !s.registered {
		s.mu.Unlock()
		return nil
	}
	s.registered = false
	conn, cancel, done := s.conn, s.cancel, s.done
	s.conn = nil
	s.mu.Unlock()

	cancel()
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
	<-done

	s.logger.Info("websocket proximity sensor unregistered")
	return nil
}

// Name returns "websocket".
func (s *WebSocketSensor) Name() string {
	return string(BackendWebSocket)
}

var _ Sensor = (*WebSocketSensor)(nil)
