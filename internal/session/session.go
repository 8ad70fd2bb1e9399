// Package session runs one signed-in user's sync lifecycle: the chat list
// stream, at most one open chat with its history cursor, the projection cache
// and the notification mirror.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"chat-sync/internal/api"
	"chat-sync/internal/engine"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/paginator"
	"chat-sync/internal/protocol"
	"chat-sync/internal/repositories"
	"chat-sync/internal/telemetry"
	"chat-sync/internal/ws"
)

var ErrNoOpenChat = errors.New("no chat is open")

// Streams opens and closes scope subscriptions. ws.Manager satisfies it.
type Streams interface {
	Subscribe(ctx context.Context, scope ws.Scope) (<-chan ws.Frame, error)
	Close(scope ws.Scope)
	CloseAll()
	State(scope ws.Scope) ws.State
}

// Notifier mirrors notifications outside the process.
type Notifier interface {
	Emit(ctx context.Context, localUserID int, payload telemetry.NotificationPayload)
}

// CredentialStore is cleared on logout.
type CredentialStore interface {
	Clear(ctx context.Context) error
}

type Deps struct {
	API         api.ChatAPI
	Streams     Streams
	Engine      *engine.Engine
	Chats       repositories.ChatRepository
	Messages    repositories.MessageRepository
	Notifier    Notifier
	Credentials CredentialStore
	Logger      *zap.Logger
	PageSize    int
}

type Session struct {
	api      api.ChatAPI
	streams  Streams
	engine   *engine.Engine
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	notifier Notifier
	creds    CredentialStore
	logger   *zap.Logger
	pageSize int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	chatID int
	cursor *paginator.Cursor[models.Message, int]
	closed bool
}

func New(deps Deps) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	if deps.PageSize <= 0 {
		deps.PageSize = 30
	}
	return &Session{
		api:      deps.API,
		streams:  deps.Streams,
		engine:   deps.Engine,
		chats:    deps.Chats,
		messages: deps.Messages,
		notifier: deps.Notifier,
		creds:    deps.Credentials,
		logger:   deps.Logger,
		pageSize: deps.PageSize,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Session) Engine() *engine.Engine { return s.engine }

// Start shows the cached chat list, loads the fresh one and opens the chat
// list stream.
func (s *Session) Start(ctx context.Context) error {
	if s.chats != nil {
		cached, err := s.chats.ListChats(ctx)
		if err != nil {
			s.logger.Warn("chat cache unreadable", zap.Error(err))
		} else if len(cached) > 0 {
			if err := s.engine.SetChats(ctx, cached); err != nil {
				return err
			}
		}
	}

	s.startBackground()

	frames, err := s.streams.Subscribe(ctx, ws.GlobalScope)
	if err != nil {
		return fmt.Errorf("open chat list stream: %w", err)
	}
	s.consume(ws.GlobalScope, frames)

	chats, err := s.api.ListChats(ctx)
	if err != nil {
		return fmt.Errorf("load chats: %w", err)
	}
	return s.engine.SetChats(ctx, chats)
}

// Refresh reloads the chat list from the server.
func (s *Session) Refresh(ctx context.Context) error {
	chats, err := s.api.ListChats(ctx)
	if err != nil {
		return err
	}
	return s.engine.SetChats(ctx, chats)
}

// OpenChat makes chatID the open chat, subscribes to its stream and loads the
// first page. A previously open chat is closed.
func (s *Session) OpenChat(ctx context.Context, chatID int) error {
	chat, err := s.api.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if err := s.engine.OpenChat(ctx, chatID, &chat); err != nil {
		return err
	}

	cursor := paginator.New(
		func(ctx context.Context, page int) ([]models.Message, error) {
			return s.api.ListMessages(ctx, chatID, page, s.pageSize)
		},
		func(m models.Message) int { return m.ID },
		paginator.WithLoadingObserver[models.Message, int](func(loading bool) {
			if err := s.engine.SetLoading(s.ctx, chatID, loading); err != nil {
				s.logger.Debug("loading state not applied", zap.Error(err))
			}
		}),
	)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return engine.ErrClosed
	}
	previous := s.chatID
	s.chatID = chatID
	s.cursor = cursor
	s.mu.Unlock()

	if previous != 0 {
		s.streams.Close(ws.ChatScope(previous))
	}

	frames, err := s.streams.Subscribe(ctx, ws.ChatScope(chatID))
	if err != nil {
		return fmt.Errorf("open chat stream: %w", err)
	}
	s.consume(ws.ChatScope(chatID), frames)

	if err := s.LoadMore(ctx); err != nil {
		if api.Classify(err) == api.KindConnectivity {
			s.seedMessages(ctx, chatID)
		}
		return err
	}
	return nil
}

// seedMessages shows cached history when the first page cannot be fetched.
func (s *Session) seedMessages(ctx context.Context, chatID int) {
	if s.messages == nil {
		return
	}
	cached, err := s.messages.ListMessages(ctx, chatID, s.pageSize)
	if err != nil || len(cached) == 0 {
		return
	}
	if err := s.engine.AppendPage(ctx, chatID, cached, false); err != nil {
		s.logger.Debug("cached messages not applied", zap.Error(err))
	}
}

// LoadMore fetches the next page of the open chat's history.
func (s *Session) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	chatID, cursor := s.chatID, s.cursor
	s.mu.Unlock()
	if cursor == nil {
		return ErrNoOpenChat
	}

	res, err := cursor.LoadNext(ctx)
	if err != nil {
		return err
	}
	if res.Skipped {
		return nil
	}
	return s.engine.AppendPage(ctx, chatID, res.Items, res.EndReached)
}

// ReloadChat rewinds the open chat's history and loads it again from page one.
func (s *Session) ReloadChat(ctx context.Context) error {
	s.mu.Lock()
	chatID, cursor := s.chatID, s.cursor
	s.mu.Unlock()
	if cursor == nil {
		return ErrNoOpenChat
	}

	cursor.Reset()
	state := s.engine.OpenChatState()
	if err := s.engine.OpenChat(ctx, chatID, state.Chat); err != nil {
		return err
	}
	return s.LoadMore(ctx)
}

// CloseChat stops consuming the open chat's stream and clears its projection.
func (s *Session) CloseChat(ctx context.Context) error {
	s.mu.Lock()
	chatID := s.chatID
	s.chatID = 0
	s.cursor = nil
	s.mu.Unlock()

	if chatID != 0 {
		s.streams.Close(ws.ChatScope(chatID))
	}
	return s.engine.CloseChat(ctx)
}

func (s *Session) OpenChatID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// StreamStates reports the connection state of the chat list stream and of the
// open chat's stream.
func (s *Session) StreamStates() map[string]string {
	out := map[string]string{ws.GlobalScope.String(): s.streams.State(ws.GlobalScope).String()}
	if id := s.OpenChatID(); id != 0 {
		out[ws.ChatScope(id).String()] = s.streams.State(ws.ChatScope(id)).String()
	}
	return out
}

// Close tears the session down. Stored credentials are kept.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.streams.CloseAll()
	s.engine.Close()
	s.wg.Wait()
}

// Logout closes the session and forgets the stored credential.
func (s *Session) Logout(ctx context.Context) error {
	s.Close()
	if s.creds == nil {
		return nil
	}
	return s.creds.Clear(ctx)
}

func (s *Session) consume(scope ws.Scope, frames <-chan ws.Frame) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for frame := range frames {
			s.applyFrame(scope, frame)
		}
	}()
}

func (s *Session) applyFrame(scope ws.Scope, frame ws.Frame) {
	if frame.Err != nil {
		s.logger.Warn("stream ended", zap.Stringer("scope", scope), zap.Error(frame.Err))
		return
	}

	ev, err := protocol.Decode(frame.Data)
	if err != nil {
		observability.IncFrame(scope.Kind(), "dropped")
		s.logger.Warn("dropping frame", zap.Stringer("scope", scope), zap.Error(err))
		return
	}
	observability.IncFrame(scope.Kind(), "applied")

	if scope.IsGlobal() {
		err = s.engine.HandleGlobal(s.ctx, ev)
	} else {
		err = s.engine.HandleChat(s.ctx, scope.ChatID, ev)
	}
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Warn("event not applied", zap.Stringer("scope", scope), zap.Error(err))
		}
		return
	}

	if deleted, ok := ev.(protocol.MessageDeleted); ok && s.messages != nil {
		if err := s.messages.DeleteMessage(s.ctx, deleted.MessageID); err != nil && s.ctx.Err() == nil {
			s.logger.Warn("message cache delete failed", zap.Int("message_id", deleted.MessageID), zap.Error(err))
		}
	}
}
