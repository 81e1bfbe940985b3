package stream

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/okian/matchpulse/internal/domain/types"
	"github.com/okian/matchpulse/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

var pingText = []byte("ping")

// WSSubscriber adapts a gorilla WebSocket connection to Subscriber.
// Writes are serialized; Serve runs the read pump and keep-alive pings.
type WSSubscriber struct {
	conn    *websocket.Conn
	matchID string

	writeMu sync.Mutex

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration

	closeOnce sync.Once
	done      chan struct{}

	logger logger.Logger
}

// NewWSSubscriber wraps conn for matchID.
func NewWSSubscriber(conn *websocket.Conn, matchID string, opts ...SubscriberOption) *WSSubscriber {
	s := &WSSubscriber{
		conn:       conn,
		matchID:    matchID,
		writeWait:  writeWait,
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("stream-subscriber")
	}
	return s
}

// Done is closed once the subscriber is closed.
func (s *WSSubscriber) Done() <-chan struct{} { return s.done }

// Send writes one text frame. The frame deadline is the earlier of ctx's
// deadline and the configured write wait.
func (s *WSSubscriber) Send(ctx context.Context, msg []byte) error {
	select {
	case <-s.done:
		return ErrSubscriberClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(s.writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}

// SendJSON encodes v and sends it.
func (s *WSSubscriber) SendJSON(ctx context.Context, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Send(ctx, b)
}

// Close sends a close frame with code and reason, then drops the connection.
func (s *WSSubscriber) Close(code int, reason string) error {
	var err error
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, reason)
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeWait))
		err = s.conn.Close()
		close(s.done)
	})
	return err
}

// Serve blocks reading client frames until the connection ends or ctx is
// canceled. Text "ping" is answered with a pong message.
func (s *WSSubscriber) Serve(ctx context.Context) {
	defer func() { _ = s.Close(websocket.CloseNormalClosure, "") }()

	go s.keepAlive(ctx)

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Debug(ctx, "stream read ended",
					logger.String("match_id", s.matchID),
					logger.Error(err),
				)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
		if kind != websocket.TextMessage || !bytes.Equal(bytes.TrimSpace(data), pingText) {
			continue
		}
		if err := s.SendJSON(ctx, types.StreamControl{Type: types.StreamTypePong}); err != nil {
			return
		}
	}
}

func (s *WSSubscriber) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = s.Close(websocket.CloseGoingAway, ReasonShutdown)
			return
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeWait)); err != nil {
				_ = s.Close(websocket.CloseGoingAway, "")
				return
			}
		}
	}
}
