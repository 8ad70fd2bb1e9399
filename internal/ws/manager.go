package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrNotConnected  = errors.New("scope is not connected")
	ErrClosed        = errors.New("connection closed")
	ErrManagerClosed = errors.New("connection manager closed")
)

// TokenSource returns the current bearer token or credentials.ErrUnauthorized.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config holds websocket timings and the server base URL (ws:// or wss://).
type Config struct {
	BaseURL          string
	LocalUserID      int
	PingPeriod       time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration
	HandshakeTimeout time.Duration
	MaxMessageSize   int64
	SendBufferSize   int
	FrameBufferSize  int
}

// DefaultConfig returns keepalive settings matching the server's defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		PingPeriod:       54 * time.Second,
		PongWait:         60 * time.Second,
		WriteWait:        10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		MaxMessageSize:   1 << 20,
		SendBufferSize:   64,
		FrameBufferSize:  64,
	}
}

// Manager owns at most one global connection and one chat connection.
type Manager struct {
	cfg    Config
	tokens TokenSource
	policy ReconnectPolicy
	dialer *websocket.Dialer
	logger *zap.Logger

	mu     sync.Mutex
	conns  map[Scope]*Connection
	closed bool
}

// NewManager builds a manager. A nil policy means NoReconnect.
func NewManager(cfg Config, tokens TokenSource, policy ReconnectPolicy, logger *zap.Logger) *Manager {
	if policy == nil {
		policy = NoReconnect{}
	}
	if cfg.FrameBufferSize <= 0 {
		cfg.FrameBufferSize = 64
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 64
	}
	return &Manager{
		cfg:    cfg,
		tokens: tokens,
		policy: policy,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: logger,
		conns:  make(map[Scope]*Connection),
	}
}

// Open starts a connection for scope. It fails only when no credential is
// available or the manager is closed; network failures arrive as a terminal
// frame. Opening a chat scope closes any other chat scope.
func (m *Manager) Open(ctx context.Context, scope Scope) (*Connection, error) {
	if _, err := m.tokens.Token(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if existing, ok := m.conns[scope]; ok && !existing.finished() {
		m.mu.Unlock()
		return existing, nil
	}
	var stale []*Connection
	if !scope.IsGlobal() {
		for s, c := range m.conns {
			if !s.IsGlobal() {
				stale = append(stale, c)
				delete(m.conns, s)
			}
		}
	}
	conn := newConnection(m, scope)
	m.conns[scope] = conn
	m.mu.Unlock()

	for _, c := range stale {
		m.logger.Debug("closing previous chat scope", zap.Stringer("scope", c.scope))
		c.Close()
	}

	go conn.run()
	return conn, nil
}

// Close stops consuming scope and releases its connection.
func (m *Manager) Close(scope Scope) {
	m.mu.Lock()
	conn, ok := m.conns[scope]
	delete(m.conns, scope)
	m.mu.Unlock()
	if ok {
		conn.Close()
	}
}

// CloseAll closes every scope and refuses further opens.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	m.closed = true
	conns := make([]*Connection, 0, len(m.conns))
	for s, c := range m.conns {
		conns = append(conns, c)
		delete(m.conns, s)
	}
	m.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// Connection returns the live connection for scope.
func (m *Manager) Connection(scope Scope) (*Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.conns[scope]
	return conn, ok
}

// State reports the lifecycle state of scope.
func (m *Manager) State(scope Scope) State {
	if conn, ok := m.Connection(scope); ok {
		return conn.State()
	}
	return Disconnected
}

// Send writes one frame on scope's connection.
func (m *Manager) Send(ctx context.Context, scope Scope, frame string) error {
	conn, ok := m.Connection(scope)
	if !ok {
		return ErrNotConnected
	}
	return conn.Send(ctx, frame)
}

func (m *Manager) forget(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.conns[c.scope]; ok && current == c {
		delete(m.conns, c.scope)
	}
}

func (m *Manager) url(scope Scope) string {
	return strings.TrimSuffix(m.cfg.BaseURL, "/") + scope.Path()
}

// Subscribe opens scope and returns its frame channel.
func (m *Manager) Subscribe(ctx context.Context, scope Scope) (<-chan Frame, error) {
	conn, err := m.Open(ctx, scope)
	if err != nil {
		return nil, err
	}
	return conn.Frames(), nil
}
