package chat

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spiritonline/DatingApp-sub002/internal/cache"
	"github.com/spiritonline/DatingApp-sub002/internal/domain"
	"github.com/spiritonline/DatingApp-sub002/internal/events"
	"github.com/spiritonline/DatingApp-sub002/internal/metrics"
	"github.com/spiritonline/DatingApp-sub002/internal/store"
)

// Service owns the send protocol, the reaction ledger and the receipt
// tracker. Every exported operation swallows internal failures: it logs
// the detail and reports success as a bool, so callers check return
// values instead of catching errors.
type Service struct {
	store  store.Store
	cache  *cache.Client     // optional
	events *events.Publisher // optional
	log    *zap.SugaredLogger
}

func NewService(st store.Store, c *cache.Client, pub *events.Publisher, log *zap.SugaredLogger) *Service {
	return &Service{store: st, cache: c, events: pub, log: log}
}

// SendMessage validates and writes one outgoing message, then refreshes
// the chat's last-message summary. The message write and the summary
// update are separate operations: a summary failure after a successful
// write leaves the message visible to subscribers and is tolerated.
func (s *Service) SendMessage(ctx context.Context, chatID, senderID string, p domain.Payload) bool {
	if senderID == "" {
		s.log.Warnw("send rejected: no sender identity", "chat_id", chatID)
		return false
	}
	if chatID == "" {
		s.log.Warnw("send rejected: empty chat id", "sender_id", senderID)
		return false
	}
	if err := p.Validate(); err != nil {
		s.log.Warnw("send rejected: invalid payload", "chat_id", chatID, "type", p.Type, "err", err)
		metrics.MessagesSent.WithLabelValues("rejected").Inc()
		return false
	}

	if !s.ensureChat(ctx, chatID, senderID, p.Recipients) {
		return false
	}

	var replyTo *domain.ReplySnapshot
	if p.ReplyToID != "" {
		orig, err := s.store.GetMessage(ctx, chatID, p.ReplyToID)
		if err != nil {
			s.log.Warnw("send rejected: reply target missing", "chat_id", chatID, "reply_to", p.ReplyToID, "err", err)
			return false
		}
		replyTo = domain.NewReplySnapshot(orig)
	}

	m := &domain.Message{
		ChatID:       chatID,
		SenderID:     senderID,
		Type:         p.Type,
		Content:      p.Content,
		MediaURL:     p.MediaURL,
		ThumbnailURL: p.ThumbnailURL,
		DurationMS:   p.DurationMS,
		Width:        p.Width,
		Height:       p.Height,
		Gallery:      p.Gallery,
		ReplyTo:      replyTo,
		Reactions:    map[string][]string{},
		ReadBy:       []string{},
		Status:       domain.StatusSending,
	}

	id, err := s.store.InsertMessage(ctx, m)
	if err != nil {
		s.log.Errorw("message write failed", "chat_id", chatID, "err", err)
		metrics.MessagesSent.WithLabelValues("failed").Inc()
		return false
	}
	if err := s.store.SetMessageStatus(ctx, chatID, id, domain.StatusSent); err != nil {
		s.log.Errorw("status advance to sent failed", "chat_id", chatID, "message_id", id, "err", err)
		if ferr := s.store.SetMessageStatus(ctx, chatID, id, domain.StatusFailed); ferr != nil {
			s.log.Errorw("marking message failed also failed", "message_id", id, "err", ferr)
		}
		metrics.MessagesSent.WithLabelValues("failed").Inc()
		return false
	}
	m.Status = domain.StatusSent

	if err := s.store.SetChatSummary(ctx, chatID, domain.NewSummary(m)); err != nil {
		// tolerated: summary is stale until the next successful update
		s.log.Warnw("chat summary update failed", "chat_id", chatID, "err", err)
	}
	s.invalidateSummary(ctx, chatID)

	if s.events != nil {
		s.events.MessageCreated(chatID, m)
	}
	metrics.MessagesSent.WithLabelValues("ok").Inc()
	return true
}

func (s *Service) ensureChat(ctx context.Context, chatID, senderID string, recipients []string) bool {
	_, err := s.store.GetChat(ctx, chatID)
	if err == nil {
		return true
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.log.Errorw("chat lookup failed", "chat_id", chatID, "err", err)
		return false
	}

	participants := dedupe(append([]string{senderID}, recipients...))
	if len(participants) < 2 {
		s.log.Warnw("send rejected: chat missing and no recipients", "chat_id", chatID)
		return false
	}
	if err := s.store.EnsureChat(ctx, chatID, participants); err != nil {
		s.log.Errorw("chat create failed", "chat_id", chatID, "err", err)
		return false
	}
	return true
}

// ToggleReaction flips userID's reaction on a message. A user holds at
// most one active reaction per message; toggling a new emoji moves the
// reaction, toggling the current one removes it. The whole
// read-modify-write runs inside a single store transaction.
func (s *Service) ToggleReaction(ctx context.Context, chatID, messageID, emoji, userID string) bool {
	if chatID == "" || messageID == "" || emoji == "" || userID == "" {
		s.log.Warnw("toggle rejected: missing argument", "chat_id", chatID, "message_id", messageID)
		return false
	}
	err := s.store.MutateMessage(ctx, chatID, messageID, func(m *domain.Message) error {
		m.Reactions = toggleReaction(m.Reactions, emoji, userID)
		return nil
	})
	if err != nil {
		s.log.Errorw("reaction toggle failed", "chat_id", chatID, "message_id", messageID, "err", err)
		return false
	}
	metrics.ReactionToggles.Inc()
	return true
}

func toggleReaction(reactions map[string][]string, emoji, userID string) map[string][]string {
	out := make(map[string][]string, len(reactions))
	for e, users := range reactions {
		if e == emoji {
			continue
		}
		kept := remove(users, userID)
		if len(kept) > 0 {
			out[e] = kept
		}
	}
	if !contains(reactions[emoji], userID) {
		out[emoji] = append(remove(reactions[emoji], userID), userID)
	} else if kept := remove(reactions[emoji], userID); len(kept) > 0 {
		out[emoji] = kept
	}
	return out
}

// MarkMessagesAsDelivered advances every sent peer message to delivered
// in one batched update. Nothing eligible is a no-op success.
func (s *Service) MarkMessagesAsDelivered(ctx context.Context, chatID, actingUserID string) bool {
	if chatID == "" || actingUserID == "" {
		return false
	}
	if err := s.store.MarkDelivered(ctx, chatID, actingUserID); err != nil {
		s.log.Errorw("delivered batch failed", "chat_id", chatID, "user_id", actingUserID, "err", err)
		return false
	}
	metrics.ReceiptBatches.WithLabelValues("delivered").Inc()
	return true
}

// MarkMessagesAsRead records actingUserID's read receipt on every peer
// message it has not read yet and advances their status. readBy only
// grows; re-invoking with nothing unread is a no-op success.
func (s *Service) MarkMessagesAsRead(ctx context.Context, chatID, actingUserID string) bool {
	if chatID == "" || actingUserID == "" {
		return false
	}
	if err := s.store.MarkRead(ctx, chatID, actingUserID); err != nil {
		s.log.Errorw("read batch failed", "chat_id", chatID, "user_id", actingUserID, "err", err)
		return false
	}
	if s.events != nil {
		s.events.ReceiptUpdated(chatID, actingUserID, "read")
	}
	metrics.ReceiptBatches.WithLabelValues("read").Inc()
	return true
}

// ListMessages returns one chronological page of chat history for the
// initial render before the client subscribes.
func (s *Service) ListMessages(ctx context.Context, chatID string, limit int64, before time.Time) ([]*domain.Message, error) {
	return s.store.ListMessages(ctx, chatID, limit, before)
}

// ChatSummary returns the chat document with its denormalized last
// message, serving from the redis cache when warm.
func (s *Service) ChatSummary(ctx context.Context, chatID string) (*domain.Chat, error) {
	if s.cache != nil {
		if c, err := s.cache.GetChatSummary(ctx, chatID); err == nil {
			return c, nil
		}
	}
	c, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetChatSummary(ctx, c); err != nil {
			s.log.Debugw("summary cache write failed", "chat_id", chatID, "err", err)
		}
	}
	return c, nil
}

func (s *Service) invalidateSummary(ctx context.Context, chatID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateChatSummary(ctx, chatID); err != nil {
		s.log.Debugw("summary cache invalidate failed", "chat_id", chatID, "err", err)
	}
}

func dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func remove(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
