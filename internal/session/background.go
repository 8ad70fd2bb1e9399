package session

import (
	"go.uber.org/zap"

	"chat-sync/internal/engine"
	"chat-sync/internal/telemetry"
	"chat-sync/internal/ws"
)

func (s *Session) startBackground() {
	notes := s.engine.SubscribeNotifications(s.ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for n := range notes {
			s.onNotification(n)
		}
	}()

	if s.chats != nil {
		list := s.engine.SubscribeChatList(s.ctx)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for state := range list {
				if err := s.chats.ReplaceChats(s.ctx, state.Chats); err != nil && s.ctx.Err() == nil {
					s.logger.Warn("chat cache write failed", zap.Error(err))
				}
			}
		}()
	}

	if s.messages != nil {
		chat := s.engine.SubscribeChat(s.ctx)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for state := range chat {
				if !state.IsOpen() || state.Closed || len(state.Messages) == 0 {
					continue
				}
				if err := s.messages.ReplaceMessages(s.ctx, state.ChatID, state.Messages); err != nil && s.ctx.Err() == nil {
					s.logger.Warn("message cache write failed", zap.Int("chat_id", state.ChatID), zap.Error(err))
				}
			}
		}()
	}
}

// onNotification stops the open chat's stream when the user must navigate
// away, drops deleted chats from the cache and mirrors the notification.
func (s *Session) onNotification(n engine.Notification) {
	if n.NavigateAway() {
		s.mu.Lock()
		if s.chatID == n.ChatID {
			s.cursor = nil
		}
		s.mu.Unlock()
		s.streams.Close(ws.ChatScope(n.ChatID))
	}
	if n.Kind == engine.NotifyChatDeleted && s.chats != nil {
		if err := s.chats.DeleteChat(s.ctx, n.ChatID); err != nil && s.ctx.Err() == nil {
			s.logger.Warn("chat cache delete failed", zap.Int("chat_id", n.ChatID), zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.Emit(s.ctx, s.engine.Self(), telemetry.NotificationPayload{
			Kind:      string(n.Kind),
			ChatID:    n.ChatID,
			MessageID: n.MessageID,
			UserID:    n.UserID,
		})
	}
	s.logger.Debug("notification", zap.String("kind", string(n.Kind)), zap.Int("chat_id", n.ChatID))
}
