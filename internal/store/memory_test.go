package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spiritonline/DatingApp-sub002/internal/domain"
)

func insert(t *testing.T, s *Memory, chatID, sender, content string) string {
	t.Helper()
	id, err := s.InsertMessage(context.Background(), &domain.Message{
		ChatID:   chatID,
		SenderID: sender,
		Type:     domain.TypeText,
		Content:  content,
		Status:   domain.StatusSent,
	})
	require.NoError(t, err)
	return id
}

func TestInsertAssignsIncreasingTimestamps(t *testing.T) {
	s := NewMemory()
	insert(t, s, "c1", "u1", "one")
	insert(t, s, "c1", "u1", "two")
	insert(t, s, "c1", "u1", "three")

	msgs, err := s.ListMessages(context.Background(), "c1", 0, time.Time{})
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i].CreatedAt.After(msgs[i-1].CreatedAt))
	}
	assert.Equal(t, "one", msgs[0].Content)
}

func TestListMessagesLimitAndBefore(t *testing.T) {
	s := NewMemory()
	insert(t, s, "c1", "u1", "one")
	insert(t, s, "c1", "u1", "two")
	insert(t, s, "c1", "u1", "three")
	ctx := context.Background()

	page, err := s.ListMessages(ctx, "c1", 2, time.Time{})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "two", page[0].Content)
	assert.Equal(t, "three", page[1].Content)

	older, err := s.ListMessages(ctx, "c1", 2, page[0].CreatedAt)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, "one", older[0].Content)
}

func TestSetMessageStatusNeverRegresses(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	id := insert(t, s, "c1", "u1", "hi")

	require.NoError(t, s.SetMessageStatus(ctx, "c1", id, domain.StatusDelivered))
	assert.Error(t, s.SetMessageStatus(ctx, "c1", id, domain.StatusSent))

	m, err := s.GetMessage(ctx, "c1", id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, m.Status)
}

func TestWatchChatNotifiesOnMutation(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	calls := 0
	cancel, err := s.WatchChat(ctx, "c1", func(err error) {
		require.NoError(t, err)
		calls++
	})
	require.NoError(t, err)

	insert(t, s, "c1", "u1", "one")
	assert.Equal(t, 1, calls)

	insert(t, s, "c2", "u1", "other chat")
	assert.Equal(t, 1, calls, "watcher only sees its own chat")

	cancel()
	insert(t, s, "c1", "u1", "two")
	assert.Equal(t, 1, calls, "cancelled watcher stays silent")
}

func TestMutateMessageWritesBackMutableFields(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	id := insert(t, s, "c1", "u1", "hi")

	err := s.MutateMessage(ctx, "c1", id, func(m *domain.Message) error {
		m.Reactions["❤️"] = []string{"u2"}
		m.ReadBy = append(m.ReadBy, "u2")
		m.Status = domain.StatusRead
		return nil
	})
	require.NoError(t, err)

	m, err := s.GetMessage(ctx, "c1", id)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, m.Reactions["❤️"])
	assert.Equal(t, []string{"u2"}, m.ReadBy)
	assert.Equal(t, domain.StatusRead, m.Status)
}

func TestGetMessageReturnsCopy(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	id := insert(t, s, "c1", "u1", "hi")

	m, err := s.GetMessage(ctx, "c1", id)
	require.NoError(t, err)
	m.Reactions["❤️"] = []string{"hacker"}
	m.ReadBy = append(m.ReadBy, "hacker")

	fresh, err := s.GetMessage(ctx, "c1", id)
	require.NoError(t, err)
	assert.Empty(t, fresh.Reactions)
	assert.Empty(t, fresh.ReadBy)
}

func TestEnsureChatFirstWriterWins(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.EnsureChat(ctx, "c1", []string{"u1", "u2"}))
	require.NoError(t, s.EnsureChat(ctx, "c1", []string{"u3", "u4"}))

	c, err := s.GetChat(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, c.Participants)
}
