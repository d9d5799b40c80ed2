package store

import (
	"context"
	"time"

	"github.com/spiritonline/DatingApp-sub002/internal/domain"
)

// Store is the document-store contract the chat core runs against. The
// mutable message fields (reactions, read_by, status) may only change
// through MutateMessage, MarkDelivered and MarkRead; everything else is
// written once.
type Store interface {
	// EnsureChat creates the chat if it does not exist. The participant
	// set is fixed by the first successful creation and ignored on every
	// later call.
	EnsureChat(ctx context.Context, chatID string, participants []string) error
	GetChat(ctx context.Context, chatID string) (*domain.Chat, error)
	SetChatSummary(ctx context.Context, chatID string, s *domain.Summary) error

	// InsertMessage persists m, assigning its id and created_at, and
	// returns the assigned id.
	InsertMessage(ctx context.Context, m *domain.Message) (string, error)
	GetMessage(ctx context.Context, chatID, messageID string) (*domain.Message, error)
	SetMessageStatus(ctx context.Context, chatID, messageID string, st domain.Status) error

	// ListMessages returns the chat's messages ordered by created_at
	// ascending. A zero before and limit of 0 mean the full stream.
	ListMessages(ctx context.Context, chatID string, limit int64, before time.Time) ([]*domain.Message, error)

	// MutateMessage runs fn against the current message inside a single
	// transaction and writes back the mutable fields. Concurrent calls
	// each observe a consistent pre-state.
	MutateMessage(ctx context.Context, chatID, messageID string, fn func(*domain.Message) error) error

	// MarkDelivered advances every sent message not authored by
	// actingUserID to delivered, as one multi-document update.
	MarkDelivered(ctx context.Context, chatID, actingUserID string) error

	// MarkRead adds actingUserID to read_by on every message it has not
	// read and did not author, and advances eligible statuses to read.
	// The whole batch succeeds or fails together.
	MarkRead(ctx context.Context, chatID, actingUserID string) error

	// WatchChat invokes fn(nil) after every change to the chat's
	// messages. A non-nil argument means the stream is broken and no
	// further calls will follow. The returned func cancels the watch.
	WatchChat(ctx context.Context, chatID string, fn func(error)) (func(), error)
}
