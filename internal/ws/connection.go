package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chat-sync/internal/credentials"
	"chat-sync/internal/observability"
)

type outgoing struct {
	data string
	errc chan error
}

// Connection is one scope's duplex channel. It is restartable only by
// opening the scope again on the manager.
type Connection struct {
	m      *Manager
	scope  Scope
	id     string
	frames chan Frame
	send   chan outgoing
	state  atomicState

	done      chan struct{}
	closeOnce sync.Once

	connMu sync.Mutex
	conn   *websocket.Conn
}

func newConnection(m *Manager, scope Scope) *Connection {
	return &Connection{
		m:      m,
		scope:  scope,
		id:     newConnID(),
		frames: make(chan Frame, m.cfg.FrameBufferSize),
		send:   make(chan outgoing, m.cfg.SendBufferSize),
		done:   make(chan struct{}),
	}
}

func (c *Connection) Scope() Scope { return c.scope }

func (c *Connection) State() State { return c.state.Load() }

// Frames yields inbound frames until the connection ends.
func (c *Connection) Frames() <-chan Frame { return c.frames }

// Done is closed once the connection has stopped for good.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Send queues frame for writing and waits for the write to complete.
func (c *Connection) Send(ctx context.Context, frame string) error {
	if c.State() != Open {
		return ErrNotConnected
	}
	out := outgoing{data: frame, errc: make(chan error, 1)}
	select {
	case c.send <- out:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-out.errc:
		return err
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the connection. Safe to call multiple times.
func (c *Connection) Close() {
	c.finish()
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn != nil {
		deadline := time.Now().Add(c.m.cfg.WriteWait)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}
}

func (c *Connection) finish() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Connection) finished() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Connection) run() {
	logger := c.m.logger.With(zap.Stringer("scope", c.scope), zap.String("conn_id", c.id))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-c.done
		cancel()
	}()
	defer func() {
		c.state.Store(Disconnected)
		c.m.forget(c)
		c.finish()
		close(c.frames)
	}()

	attempt := 0
	for {
		c.state.Store(Connecting)
		conn, err := c.dial(ctx)
		if err == nil {
			info := ConnInfo{ConnID: c.id, Scope: c.scope, UserID: c.m.cfg.LocalUserID, Attempt: attempt, ConnectedAt: time.Now()}
			attempt = 0
			err = c.serve(ctx, conn, info, logger)
		}
		if c.finished() {
			return
		}
		if errors.Is(err, credentials.ErrUnauthorized) {
			logger.Warn("websocket unauthorized", zap.Error(err))
			c.terminate(err)
			return
		}

		delay, retry := c.m.policy.Next(attempt)
		if !retry {
			logger.Info("websocket closed", zap.Error(err), zap.Int("attempts", attempt))
			c.terminate(err)
			return
		}
		attempt++
		observability.IncWSReconnect(c.scope.Kind())
		logger.Info("websocket reconnecting", zap.Error(err), zap.Int("attempt", attempt), zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-c.done:
			timer.Stop()
			return
		}
	}
}

func (c *Connection) dial(ctx context.Context) (*websocket.Conn, error) {
	token, err := c.m.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := c.m.dialer.DialContext(ctx, c.m.url(c.scope), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: handshake rejected", credentials.ErrUnauthorized)
		}
		return nil, fmt.Errorf("dial %s: %w", c.scope, err)
	}
	return conn, nil
}

// serve pumps frames until the connection breaks or is closed.
func (c *Connection) serve(ctx context.Context, conn *websocket.Conn, info ConnInfo, logger *zap.Logger) error {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	if c.finished() {
		conn.Close()
		return ErrClosed
	}

	c.state.Store(Open)
	observability.IncWSActive(c.scope.Kind())
	observability.IncWSEvent(c.scope.Kind(), "ws_connect")
	c.publish(ctx, info, "ws_connect", "")
	logger.Info("websocket open", zap.Int("attempt", info.Attempt))

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(conn, stop, logger)
	}()

	var closeReason string
	defer func() {
		close(stop)
		conn.Close()
		<-writerDone
		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()
		observability.DecWSActive(c.scope.Kind())
		observability.IncWSEvent(c.scope.Kind(), "ws_disconnect")
		c.publish(context.Background(), info, "ws_disconnect", closeReason)
	}()

	conn.SetReadLimit(c.m.cfg.MaxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(c.m.cfg.PongWait)); err != nil {
		closeReason = err.Error()
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.m.cfg.PongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if c.finished() {
				return ErrClosed
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent(c.scope.Kind(), "ws_error")
				c.publish(context.Background(), info, "ws_error", closeReason)
			}
			return err
		}
		select {
		case c.frames <- Frame{Scope: c.scope, Data: string(raw)}:
		case <-c.done:
			return ErrClosed
		}
	}
}

func (c *Connection) writePump(conn *websocket.Conn, stop <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(c.m.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case out := <-c.send:
			if err := conn.SetWriteDeadline(time.Now().Add(c.m.cfg.WriteWait)); err != nil {
				out.errc <- err
				conn.Close()
				return
			}
			err := conn.WriteMessage(websocket.TextMessage, []byte(out.data))
			out.errc <- err
			if err != nil {
				logger.Warn("websocket write failed", zap.Error(err))
				conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(c.m.cfg.WriteWait)); err != nil {
				conn.Close()
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("ping failed", zap.Error(err))
				conn.Close()
				return
			}
		}
	}
}

func (c *Connection) terminate(err error) {
	if err == nil {
		err = ErrClosed
	}
	select {
	case c.frames <- Frame{Scope: c.scope, Err: err}:
	case <-c.done:
	}
}

func (c *Connection) publish(ctx context.Context, info ConnInfo, event, reason string) {
	var duration int64
	if event != "ws_connect" {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	envelope := observability.WSEvent(c.scope.Kind(), c.scope.ChatID, event, info.ConnID, duration, reason, info.UserID)
	_ = observability.PublishEvent(ctx, routingKey(c.scope), envelope, observability.BuildHeaders(info.ConnID, ""))
}
