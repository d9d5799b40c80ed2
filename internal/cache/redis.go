package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spiritonline/DatingApp-sub002/internal/domain"
)

const summaryTTL = 5 * time.Minute

type Client struct {
	cli *redis.Client
}

func New(addr, password string, db int) (*Client, error) {
	r := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Client{cli: r}, nil
}

func (c *Client) Close() error { return c.cli.Close() }

func summaryKey(chatID string) string { return "chat:summary:" + chatID }

func (c *Client) GetChatSummary(ctx context.Context, chatID string) (*domain.Chat, error) {
	b, err := c.cli.Get(ctx, summaryKey(chatID)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var chat domain.Chat
	if err := json.Unmarshal(b, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *Client) SetChatSummary(ctx context.Context, chat *domain.Chat) error {
	b, err := json.Marshal(chat)
	if err != nil {
		return err
	}
	return c.cli.Set(ctx, summaryKey(chat.ID), b, summaryTTL).Err()
}

func (c *Client) InvalidateChatSummary(ctx context.Context, chatID string) error {
	return c.cli.Del(ctx, summaryKey(chatID)).Err()
}

func (c *Client) SetPresence(ctx context.Context, userID string, online bool) error {
	val := "0"
	if online {
		val = "1"
	}
	return c.cli.Set(ctx, "presence:"+userID, val, 0).Err()
}

func (c *Client) GetPresence(ctx context.Context, userID string) (bool, error) {
	s, err := c.cli.Get(ctx, "presence:"+userID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s == "1", nil
}
