package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chat-sync/internal/models"
	"chat-sync/internal/protocol"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(self, zap.NewNop())
	t.Cleanup(e.Close)
	return e
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	var zero T
	return zero
}

func assertNoNotification(t *testing.T, ch <-chan Notification) {
	t.Helper()
	select {
	case n := <-ch:
		t.Fatalf("unexpected notification %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngineChatListScenario(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	require.NoError(t, e.HandleGlobal(ctx, protocol.ChatCreated{Chat: group(10, 100, self)}))
	require.NoError(t, e.HandleGlobal(ctx, protocol.ChatCreated{Chat: group(11, 150, self)}))
	require.NoError(t, e.HandleGlobal(ctx, protocol.ChatUpdated{Chat: group(10, 200, self)}))

	list := e.ChatList()
	assert.Equal(t, []int{10, 11}, ids(list.Chats))
	assert.True(t, list.Chats[0].LastMessage.CreatedAt.Equal(at(200)))
}

func TestEngineLeftChatNotifiesExactlyOnce(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	notes := e.SubscribeNotifications(ctx)

	header := group(7, 0, self, 2)
	require.NoError(t, e.OpenChat(ctx, 7, &header))
	require.NoError(t, e.HandleChat(ctx, 7, protocol.LeftChat{UserID: self}))
	require.NoError(t, e.HandleChat(ctx, 7, protocol.LeftChat{UserID: self}))
	require.NoError(t, e.HandleChat(ctx, 7, protocol.ParticipantsAdded{Participants: []models.ChatParticipant{participant(self, models.RoleMember)}}))

	n := receive(t, notes)
	assert.Equal(t, NotifyLeftChat, n.Kind)
	assert.Equal(t, 7, n.ChatID)
	assertNoNotification(t, notes)

	state := e.OpenChatState()
	assert.True(t, state.Closed)
	_, present := state.Chat.Participant(self)
	assert.False(t, present)
}

func TestEngineKickedFromChat(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	notes := e.SubscribeNotifications(ctx)

	header := group(4, 0, self, 2)
	require.NoError(t, e.OpenChat(ctx, 4, &header))
	require.NoError(t, e.HandleChat(ctx, 4, protocol.ParticipantDeleted{UserID: self}))

	n := receive(t, notes)
	assert.Equal(t, NotifyKickedFromChat, n.Kind)
	assert.Equal(t, 4, n.ChatID)
	state := e.OpenChatState()
	_, present := state.Chat.Participant(self)
	assert.False(t, present)
	assert.True(t, state.Closed)
	assertNoNotification(t, notes)
}

func TestEngineGlobalDeleteReachesOpenChat(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	notes := e.SubscribeNotifications(ctx)

	require.NoError(t, e.SetChats(ctx, []models.Chat{group(3, 10, self), group(4, 20, self)}))
	require.NoError(t, e.OpenChat(ctx, 3, nil))
	require.NoError(t, e.HandleGlobal(ctx, protocol.ChatDeleted{ChatID: 3}))

	n := receive(t, notes)
	assert.Equal(t, Notification{Kind: NotifyChatDeleted, ChatID: 3}, n)
	assert.Equal(t, []int{4}, ids(e.ChatList().Chats))

	require.NoError(t, e.HandleGlobal(ctx, protocol.ChatDeleted{ChatID: 3}))
	assertNoNotification(t, notes)
}

func TestEngineGlobalUpdateRefreshesOpenHeader(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	require.NoError(t, e.OpenChat(ctx, 3, nil))
	renamed := group(3, 10, self)
	renamed.Name = "renamed"
	require.NoError(t, e.HandleGlobal(ctx, protocol.ChatUpdated{Chat: renamed}))

	state := e.OpenChatState()
	require.NotNil(t, state.Chat)
	assert.Equal(t, "renamed", state.Chat.Name)
}

func TestEngineDropsEventsForOtherChat(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	notes := e.SubscribeNotifications(ctx)

	require.NoError(t, e.OpenChat(ctx, 2, nil))
	require.NoError(t, e.HandleChat(ctx, 3, protocol.MessageSent{Message: msg(1, 3, 1)}))

	assert.Empty(t, e.OpenChatState().Messages)
	assertNoNotification(t, notes)
}

func TestEngineMessagesAndPages(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	notes := e.SubscribeNotifications(ctx)

	require.NoError(t, e.OpenChat(ctx, 2, nil))
	require.NoError(t, e.AppendPage(ctx, 2, []models.Message{msg(5, 2, 5), msg(4, 2, 4)}, false))
	require.NoError(t, e.HandleChat(ctx, 2, protocol.MessageSent{Message: msg(6, 2, 6)}))
	require.NoError(t, e.AppendPage(ctx, 2, []models.Message{msg(4, 2, 4), msg(3, 2, 3)}, false))
	require.NoError(t, e.AppendPage(ctx, 2, nil, true))

	n := receive(t, notes)
	assert.Equal(t, NotifyNewMessage, n.Kind)
	assert.Equal(t, 6, n.MessageID)

	state := e.OpenChatState()
	assert.Equal(t, []int{6, 5, 4, 3}, messageIDs(state.Messages))
	assert.True(t, state.EndReached)
}

func TestEngineAccessorsReturnCopies(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	header := group(2, 3, self, 2)
	require.NoError(t, e.HandleGlobal(ctx, protocol.ChatCreated{Chat: header}))
	require.NoError(t, e.OpenChat(ctx, 2, &header))
	require.NoError(t, e.AppendPage(ctx, 2, []models.Message{msg(3, 2, 3)}, false))

	list := e.ChatList()
	list.Chats[0].Name = "changed"
	list.Chats[0].Participants[0].Role = models.RoleAdmin
	*list.Chats[0].LastMessage.Text = "changed"

	state := e.OpenChatState()
	state.Chat.Name = "changed"
	state.Messages[0].ID = 99
	*state.Messages[0].Text = "changed"

	fresh := e.ChatList()
	assert.Equal(t, "g", fresh.Chats[0].Name)
	assert.Equal(t, models.RoleMember, fresh.Chats[0].Participants[0].Role)
	assert.Equal(t, "m", *fresh.Chats[0].LastMessage.Text)

	open := e.OpenChatState()
	assert.Equal(t, "g", open.Chat.Name)
	assert.Equal(t, []int{3}, messageIDs(open.Messages))
	assert.Equal(t, "m", *open.Messages[0].Text)
}

func TestEngineConfirmLeft(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	notes := e.SubscribeNotifications(ctx)

	header := group(9, 0, self, 2)
	require.NoError(t, e.SetChats(ctx, []models.Chat{header}))
	require.NoError(t, e.OpenChat(ctx, 9, &header))
	require.NoError(t, e.ConfirmLeft(ctx, 9))

	assert.Empty(t, e.ChatList().Chats)
	n := receive(t, notes)
	assert.Equal(t, NotifyLeftChat, n.Kind)
	assert.True(t, e.OpenChatState().Closed)
}

func TestEngineConfirmChatUpsertsListAndHeader(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	require.NoError(t, e.OpenChat(ctx, 5, nil))
	chat := group(5, 0, self, 2, 3)
	require.NoError(t, e.ConfirmChat(ctx, chat))

	assert.Equal(t, []int{5}, ids(e.ChatList().Chats))
	require.NotNil(t, e.OpenChatState().Chat)
	assert.Len(t, e.OpenChatState().Chat.Participants, 3)
}

func TestEngineSnapshotSubscriptionConflates(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := e.SubscribeChatList(ctx)
	first := receive(t, sub)
	assert.Empty(t, first.Chats)

	for i := 1; i <= 5; i++ {
		require.NoError(t, e.HandleGlobal(ctx, protocol.ChatCreated{Chat: group(i, i, self)}))
	}

	latest := receive(t, sub)
	assert.Len(t, latest.Chats, 5)
	select {
	case extra := <-sub:
		t.Fatalf("expected conflated snapshot, got another: %v", ids(extra.Chats))
	default:
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestEngineSetLoading(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	sub := e.SubscribeChat(ctx)
	receive(t, sub)

	require.NoError(t, e.OpenChat(ctx, 2, nil))
	require.NoError(t, e.SetLoading(ctx, 2, true))
	assert.True(t, e.OpenChatState().Loading)
	require.NoError(t, e.SetLoading(ctx, 3, false))
	assert.True(t, e.OpenChatState().Loading)

	require.NoError(t, e.CloseChat(ctx))
	assert.False(t, e.OpenChatState().IsOpen())
}

func TestEngineClosed(t *testing.T) {
	e := New(self, zap.NewNop())
	notes := e.SubscribeNotifications(context.Background())
	e.Close()

	err := e.HandleGlobal(context.Background(), protocol.ChatDeleted{ChatID: 1})
	require.ErrorIs(t, err, ErrClosed)
	_, ok := <-notes
	assert.False(t, ok)
}
