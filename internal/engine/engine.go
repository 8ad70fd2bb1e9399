package engine

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"chat-sync/internal/models"
	"chat-sync/internal/protocol"
)

var ErrClosed = errors.New("engine closed")

type op[S any] struct {
	apply func(S) (S, []Notification)
	done  chan struct{}
}

// actor owns one projection. Operations run strictly in submission order.
type actor[S any] struct {
	ops   chan op[S]
	mu    sync.RWMutex
	state S
	snaps *snapshots[S]
	notes *notifier
}

func newActor[S any](initial S, notes *notifier) *actor[S] {
	return &actor[S]{
		ops:   make(chan op[S], 128),
		state: initial,
		snaps: newSnapshots[S](),
		notes: notes,
	}
}

func (a *actor[S]) run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case o := <-a.ops:
			a.mu.RLock()
			current := a.state
			a.mu.RUnlock()

			next, notes := o.apply(current)

			a.mu.Lock()
			a.state = next
			a.mu.Unlock()
			// notifications are queued before the snapshot that reflects them
			a.notes.push(notes)
			a.snaps.publish(next)
			close(o.done)
		}
	}
}

func (a *actor[S]) snapshot() S {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Engine reconciles remote events, command confirmations and pages into the
// chat list and open chat projections.
type Engine struct {
	self   int
	logger *zap.Logger

	list  *actor[ChatListState]
	chat  *actor[ChatState]
	notes *notifier

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New starts the projection actors. self is the local user id.
func New(self int, logger *zap.Logger) *Engine {
	notes := newNotifier()
	e := &Engine{
		self:   self,
		logger: logger,
		list:   newActor(ChatListState{}, notes),
		chat:   newActor(ChatState{}, notes),
		notes:  notes,
		done:   make(chan struct{}),
	}
	e.wg.Add(3)
	go func() { defer e.wg.Done(); e.list.run(e.done) }()
	go func() { defer e.wg.Done(); e.chat.run(e.done) }()
	go func() { defer e.wg.Done(); e.notes.run(e.done) }()
	return e
}

func (e *Engine) Self() int { return e.self }

// Close stops the actors and closes every subscription channel.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
		e.wg.Wait()
		e.list.snaps.close()
		e.chat.snaps.close()
		e.notes.close()
	})
}

func submit[S any](ctx context.Context, e *Engine, a *actor[S], apply func(S) (S, []Notification)) error {
	o := op[S]{apply: apply, done: make(chan struct{})}
	select {
	case a.ops <- o:
	case <-e.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-o.done:
		return nil
	case <-e.done:
		return ErrClosed
	}
}

func (e *Engine) drop(scope string, ev protocol.Event, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidDialog):
		e.logger.Warn("dropping invalid dialog", zap.String("scope", scope), zap.String("event", string(ev.Name())), zap.Error(err))
	default:
		e.logger.Debug("event dropped", zap.String("scope", scope), zap.String("event", string(ev.Name())), zap.Error(err))
	}
}

func (e *Engine) updateList(ctx context.Context, fn func(ChatListState) (ChatListState, error), ev protocol.Event) error {
	return submit(ctx, e, e.list, func(s ChatListState) (ChatListState, []Notification) {
		next, err := fn(s)
		if err != nil {
			e.drop("chats", ev, err)
			return s, nil
		}
		return next, nil
	})
}

func (e *Engine) updateChat(ctx context.Context, fn func(ChatState) (ChatState, []Notification, error), ev protocol.Event) error {
	return submit(ctx, e, e.chat, func(s ChatState) (ChatState, []Notification) {
		next, notes, err := fn(s)
		if err != nil {
			e.drop("chat", ev, err)
			return s, nil
		}
		return next, notes
	})
}

// HandleGlobal applies an event received on the chat-list scope. Chat header
// changes and deletions also reach the open chat.
func (e *Engine) HandleGlobal(ctx context.Context, ev protocol.Event) error {
	if err := e.updateList(ctx, func(s ChatListState) (ChatListState, error) {
		return reduceGlobal(s, ev)
	}, ev); err != nil {
		return err
	}

	switch v := ev.(type) {
	case protocol.ChatUpdated:
		return e.updateChat(ctx, func(s ChatState) (ChatState, []Notification, error) {
			next, err := replaceHeader(s, v.Chat)
			return next, nil, quiet(err)
		}, ev)
	case protocol.ChatDeleted:
		return e.updateChat(ctx, func(s ChatState) (ChatState, []Notification, error) {
			next, notes, err := markDeleted(s, v.ChatID)
			return next, notes, quiet(err)
		}, ev)
	}
	return nil
}

// quiet hides the expected mismatch errors of cross-projection routing.
func quiet(err error) error {
	if errors.Is(err, errNotOpen) || errors.Is(err, errOtherChat) || errors.Is(err, errClosedChat) {
		return nil
	}
	return err
}

// HandleChat applies an event received on chatID's scope. Events for any chat
// other than the open one are dropped.
func (e *Engine) HandleChat(ctx context.Context, chatID int, ev protocol.Event) error {
	return e.updateChat(ctx, func(s ChatState) (ChatState, []Notification, error) {
		if s.ChatID != chatID {
			return s, nil, errOtherChat
		}
		return reduceChat(s, e.self, ev)
	}, ev)
}

// ConfirmChat merges a chat returned by a successful REST command.
func (e *Engine) ConfirmChat(ctx context.Context, chat models.Chat) error {
	ev := protocol.ChatUpdated{Chat: chat}
	if err := e.updateList(ctx, func(s ChatListState) (ChatListState, error) {
		return upsertChat(s, chat)
	}, ev); err != nil {
		return err
	}
	return e.updateChat(ctx, func(s ChatState) (ChatState, []Notification, error) {
		next, err := replaceHeader(s, chat)
		return next, nil, quiet(err)
	}, ev)
}

// ConfirmChatDeleted removes a chat the local user deleted.
func (e *Engine) ConfirmChatDeleted(ctx context.Context, chatID int) error {
	return e.HandleGlobal(ctx, protocol.ChatDeleted{ChatID: chatID})
}

// ConfirmLeft removes a chat the local user left and closes it if open.
func (e *Engine) ConfirmLeft(ctx context.Context, chatID int) error {
	ev := protocol.LeftChat{UserID: e.self}
	if err := e.updateList(ctx, func(s ChatListState) (ChatListState, error) {
		return removeChat(s, chatID), nil
	}, ev); err != nil {
		return err
	}
	return e.updateChat(ctx, func(s ChatState) (ChatState, []Notification, error) {
		if s.ChatID != chatID {
			return s, nil, nil
		}
		next, notes, err := reduceChat(s, e.self, ev)
		return next, notes, quiet(err)
	}, ev)
}

// SetChats replaces the chat list, for the initial load or a cache seed.
func (e *Engine) SetChats(ctx context.Context, chats []models.Chat) error {
	return submit(ctx, e, e.list, func(ChatListState) (ChatListState, []Notification) {
		next, errs := replaceChats(chats)
		for _, err := range errs {
			e.logger.Warn("skipping invalid chat", zap.Error(err))
		}
		return next, nil
	})
}

// OpenChat makes chatID the open chat with an empty message list.
func (e *Engine) OpenChat(ctx context.Context, chatID int, header *models.Chat) error {
	if header != nil {
		if err := header.Validate(); err != nil {
			return err
		}
	}
	return submit(ctx, e, e.chat, func(ChatState) (ChatState, []Notification) {
		return openChat(chatID, header), nil
	})
}

func (e *Engine) CloseChat(ctx context.Context) error {
	return submit(ctx, e, e.chat, func(ChatState) (ChatState, []Notification) {
		return ChatState{}, nil
	})
}

// AppendPage merges a page of older messages into the open chat.
func (e *Engine) AppendPage(ctx context.Context, chatID int, items []models.Message, endReached bool) error {
	return submit(ctx, e, e.chat, func(s ChatState) (ChatState, []Notification) {
		next, err := appendPage(s, chatID, items, endReached)
		if err != nil {
			e.logger.Debug("page dropped", zap.Int("chat_id", chatID), zap.Error(err))
			return s, nil
		}
		return next, nil
	})
}

func (e *Engine) SetLoading(ctx context.Context, chatID int, loading bool) error {
	return submit(ctx, e, e.chat, func(s ChatState) (ChatState, []Notification) {
		if s.ChatID != chatID {
			return s, nil
		}
		s.Loading = loading
		return s, nil
	})
}

func (e *Engine) ChatList() ChatListState { return e.list.snapshot().Clone() }

func (e *Engine) OpenChatState() ChatState { return e.chat.snapshot().Clone() }

// SubscribeChatList yields the current list then every later snapshot,
// conflated to the newest. The channel closes when ctx ends or the engine closes.
func (e *Engine) SubscribeChatList(ctx context.Context) <-chan ChatListState {
	return e.list.snaps.subscribe(ctx, e.list.snapshot, e.done)
}

// SubscribeChat is SubscribeChatList for the open chat projection.
func (e *Engine) SubscribeChat(ctx context.Context) <-chan ChatState {
	return e.chat.snaps.subscribe(ctx, e.chat.snapshot, e.done)
}

// SubscribeNotifications yields every notification emitted after the call.
// The channel closes when ctx ends or the engine closes.
func (e *Engine) SubscribeNotifications(ctx context.Context) <-chan Notification {
	return e.notes.subscribe(ctx, e.done)
}
