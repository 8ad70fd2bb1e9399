package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chat-sync/internal/credentials"
)

type staticTokens struct{ token string }

func (s staticTokens) Token(context.Context) (string, error) {
	if s.token == "" {
		return "", credentials.ErrUnauthorized
	}
	return s.token, nil
}

type testServer struct {
	*httptest.Server
	upgrader websocket.Upgrader
	hits     atomic.Int32

	mu       sync.Mutex
	received []string
	conns    map[string]*websocket.Conn
	onConn   func(path string, conn *websocket.Conn)
}

func newTestServer(t *testing.T, onConn func(path string, conn *websocket.Conn)) *testServer {
	t.Helper()
	ts := &testServer{conns: map[string]*websocket.Conn{}, onConn: onConn}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.hits.Add(1)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := ts.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.mu.Lock()
		ts.conns[r.URL.Path] = conn
		ts.mu.Unlock()
		if ts.onConn != nil {
			ts.onConn(r.URL.Path, conn)
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ts.mu.Lock()
			ts.received = append(ts.received, string(data))
			ts.mu.Unlock()
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func (ts *testServer) messages() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.received...)
}

func testConfig(baseURL string) Config {
	cfg := DefaultConfig(baseURL)
	cfg.HandshakeTimeout = 2 * time.Second
	return cfg
}

func nextFrame(t *testing.T, conn *Connection) (Frame, bool) {
	t.Helper()
	select {
	case f, ok := <-conn.Frames():
		return f, ok
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}, false
	}
}

func TestOpenWithoutCredentialsNeverDials(t *testing.T) {
	ts := newTestServer(t, nil)
	m := NewManager(testConfig(ts.wsURL()), staticTokens{}, nil, zap.NewNop())

	_, err := m.Open(context.Background(), GlobalScope)
	require.ErrorIs(t, err, credentials.ErrUnauthorized)
	assert.Equal(t, int32(0), ts.hits.Load())
	assert.Equal(t, Disconnected, m.State(GlobalScope))
}

func TestFramesArriveInOrder(t *testing.T) {
	ts := newTestServer(t, func(path string, conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`DELETE_CHAT#{"id":1}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`DELETE_CHAT#{"id":2}`))
	})
	m := NewManager(testConfig(ts.wsURL()), staticTokens{token: "good"}, nil, zap.NewNop())
	defer m.CloseAll()

	conn, err := m.Open(context.Background(), GlobalScope)
	require.NoError(t, err)

	first, ok := nextFrame(t, conn)
	require.True(t, ok)
	assert.Equal(t, `DELETE_CHAT#{"id":1}`, first.Data)
	second, ok := nextFrame(t, conn)
	require.True(t, ok)
	assert.Equal(t, `DELETE_CHAT#{"id":2}`, second.Data)
	assert.Equal(t, GlobalScope, second.Scope)
}

func TestSendReachesServer(t *testing.T) {
	ts := newTestServer(t, nil)
	m := NewManager(testConfig(ts.wsURL()), staticTokens{token: "good"}, nil, zap.NewNop())
	defer m.CloseAll()

	_, err := m.Open(context.Background(), ChatScope(2))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return m.State(ChatScope(2)) == Open }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Send(context.Background(), ChatScope(2), `READ_MESSAGE#{"id":4}`))
	require.Eventually(t, func() bool { return len(ts.messages()) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{`READ_MESSAGE#{"id":4}`}, ts.messages())
}

func TestSendWithoutConnection(t *testing.T) {
	m := NewManager(testConfig("ws://127.0.0.1:1"), staticTokens{token: "good"}, nil, zap.NewNop())
	err := m.Send(context.Background(), ChatScope(9), "x")
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestOpeningChatClosesPreviousChat(t *testing.T) {
	ts := newTestServer(t, nil)
	m := NewManager(testConfig(ts.wsURL()), staticTokens{token: "good"}, nil, zap.NewNop())
	defer m.CloseAll()

	global, err := m.Open(context.Background(), GlobalScope)
	require.NoError(t, err)
	first, err := m.Open(context.Background(), ChatScope(1))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return first.State() == Open }, 3*time.Second, 10*time.Millisecond)

	_, err = m.Open(context.Background(), ChatScope(2))
	require.NoError(t, err)

	select {
	case <-first.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("previous chat connection still running")
	}
	_, ok := m.Connection(ChatScope(1))
	assert.False(t, ok)
	_, ok = m.Connection(GlobalScope)
	assert.True(t, ok)
	assert.False(t, global.finished())
}

func TestOpenReturnsExistingConnection(t *testing.T) {
	ts := newTestServer(t, nil)
	m := NewManager(testConfig(ts.wsURL()), staticTokens{token: "good"}, nil, zap.NewNop())
	defer m.CloseAll()

	a, err := m.Open(context.Background(), GlobalScope)
	require.NoError(t, err)
	b, err := m.Open(context.Background(), GlobalScope)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestDialFailureIsTerminalWithoutPolicy(t *testing.T) {
	ts := newTestServer(t, nil)
	url := ts.wsURL()
	ts.Close()

	m := NewManager(testConfig(url), staticTokens{token: "good"}, NoReconnect{}, zap.NewNop())
	conn, err := m.Open(context.Background(), GlobalScope)
	require.NoError(t, err)

	frame, ok := nextFrame(t, conn)
	require.True(t, ok)
	require.Error(t, frame.Err)

	_, ok = nextFrame(t, conn)
	assert.False(t, ok)
	assert.Equal(t, Disconnected, m.State(GlobalScope))
}

func TestHandshakeUnauthorizedIsTerminal(t *testing.T) {
	ts := newTestServer(t, nil)
	policy := ExponentialBackoff{Initial: time.Millisecond, Max: time.Millisecond, Multiplier: 2, MaxAttempts: 5}
	m := NewManager(testConfig(ts.wsURL()), staticTokens{token: "stale"}, policy, zap.NewNop())

	conn, err := m.Open(context.Background(), GlobalScope)
	require.NoError(t, err)

	frame, ok := nextFrame(t, conn)
	require.True(t, ok)
	require.ErrorIs(t, frame.Err, credentials.ErrUnauthorized)
	assert.Equal(t, int32(1), ts.hits.Load())
}

func TestReconnectAfterServerDrop(t *testing.T) {
	var n atomic.Int32
	ts := newTestServer(t, func(path string, conn *websocket.Conn) {
		if n.Add(1) == 1 {
			conn.Close()
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`LEFT_CHAT#5`))
	})
	policy := ExponentialBackoff{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Multiplier: 2, MaxAttempts: 3}
	m := NewManager(testConfig(ts.wsURL()), staticTokens{token: "good"}, policy, zap.NewNop())
	defer m.CloseAll()

	conn, err := m.Open(context.Background(), ChatScope(3))
	require.NoError(t, err)

	frame, ok := nextFrame(t, conn)
	require.True(t, ok)
	require.NoError(t, frame.Err)
	assert.Equal(t, `LEFT_CHAT#5`, frame.Data)
	assert.GreaterOrEqual(t, n.Load(), int32(2))
}

func TestCloseAllRefusesOpen(t *testing.T) {
	m := NewManager(testConfig("ws://127.0.0.1:1"), staticTokens{token: "good"}, nil, zap.NewNop())
	m.CloseAll()

	_, err := m.Open(context.Background(), GlobalScope)
	require.ErrorIs(t, err, ErrManagerClosed)
}

func TestExponentialBackoff(t *testing.T) {
	p := ExponentialBackoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2, MaxAttempts: 5}

	d, ok := p.Next(0)
	assert.True(t, ok)
	assert.Equal(t, 100*time.Millisecond, d)

	d, ok = p.Next(2)
	assert.True(t, ok)
	assert.Equal(t, 400*time.Millisecond, d)

	d, ok = p.Next(4)
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)

	_, ok = p.Next(5)
	assert.False(t, ok)

	_, ok = NoReconnect{}.Next(0)
	assert.False(t, ok)
}

func TestScopePaths(t *testing.T) {
	assert.Equal(t, "/api/v1/chats/ws", GlobalScope.Path())
	assert.Equal(t, "/api/v1/chats/7/ws", ChatScope(7).Path())
	assert.Equal(t, "chat:7", ChatScope(7).String())
	assert.Equal(t, "chats", GlobalScope.Kind())
}
