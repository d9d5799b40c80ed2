package chat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spiritonline/DatingApp-sub002/internal/domain"
	"github.com/spiritonline/DatingApp-sub002/internal/metrics"
	"github.com/spiritonline/DatingApp-sub002/internal/store"
)

// Snapshot receives the chat's complete message list, ordered by
// created_at ascending, after every store change. An empty list is also
// what a broken stream delivers, so consumers treat it as "re-render
// and, if the subscription reported an error, re-subscribe".
type Snapshot func(msgs []*domain.Message)

// Channel fans one store watch per chat out to all of that chat's live
// subscribers. The watch starts with the first subscriber and stops
// with the last; a transport error tears the feed down without any
// reconnect attempt — re-subscribing is the caller's job.
type Channel struct {
	store store.Store
	log   *zap.SugaredLogger

	mu    sync.Mutex
	feeds map[string]*feed
}

type feed struct {
	subs   map[*subscriber]struct{}
	cancel func()
}

type subscriber struct {
	fn Snapshot

	// mu is held around every fn invocation, so deliveries to one
	// subscriber never interleave and cancellation can wait out an
	// in-flight callback. closed is guarded by Channel.mu.
	mu     sync.Mutex
	closed bool
}

func NewChannel(st store.Store, log *zap.SugaredLogger) *Channel {
	return &Channel{store: st, log: log, feeds: make(map[string]*feed)}
}

// Subscribe registers fn for chatID and delivers an initial snapshot
// before returning. The returned func cancels the subscription; it is
// synchronous, idempotent, and no callback runs after it returns. It
// must not be called from inside the callback itself.
func (c *Channel) Subscribe(ctx context.Context, chatID string, fn Snapshot) (func(), error) {
	sub := &subscriber{fn: fn}

	// holding sub.mu from before registration until the initial
	// snapshot is out keeps any concurrent fan-out behind it, so the
	// first delivery a subscriber sees is always its initial snapshot
	sub.mu.Lock()

	c.mu.Lock()
	f, ok := c.feeds[chatID]
	if !ok {
		f = &feed{subs: make(map[*subscriber]struct{})}
		cancel, err := c.store.WatchChat(ctx, chatID, func(werr error) {
			c.onChange(chatID, werr)
		})
		if err != nil {
			c.mu.Unlock()
			sub.mu.Unlock()
			return nil, err
		}
		f.cancel = cancel
		c.feeds[chatID] = f
	}
	f.subs[sub] = struct{}{}
	c.mu.Unlock()

	metrics.ActiveSubscriptions.Inc()

	msgs, err := c.store.ListMessages(ctx, chatID, 0, time.Time{})
	if err != nil {
		c.log.Errorw("initial snapshot failed", "chat_id", chatID, "err", err)
		msgs = []*domain.Message{}
	}
	sub.fn(msgs)
	sub.mu.Unlock()

	unsubscribe := func() {
		c.mu.Lock()
		if !sub.closed {
			sub.closed = true
			metrics.ActiveSubscriptions.Dec()
			if f, ok := c.feeds[chatID]; ok {
				delete(f.subs, sub)
				if len(f.subs) == 0 {
					f.cancel()
					delete(c.feeds, chatID)
				}
			}
		}
		c.mu.Unlock()

		// wait out a delivery that already passed the closed check
		sub.mu.Lock()
		sub.mu.Unlock() //nolint:staticcheck // empty critical section is the fence
	}
	return unsubscribe, nil
}

func (c *Channel) onChange(chatID string, werr error) {
	if werr != nil {
		// broken stream: every subscriber gets an empty snapshot and the
		// feed is dropped; no automatic reconnect
		c.log.Errorw("realtime feed broken", "chat_id", chatID, "err", werr)
		c.fail(chatID)
		return
	}

	msgs, err := c.store.ListMessages(context.Background(), chatID, 0, time.Time{})
	if err != nil {
		c.log.Errorw("snapshot query failed", "chat_id", chatID, "err", err)
		c.fail(chatID)
		return
	}

	c.mu.Lock()
	subs := c.subscribers(chatID)
	c.mu.Unlock()
	for _, sub := range subs {
		c.deliver(sub, msgs)
	}
}

func (c *Channel) fail(chatID string) {
	c.mu.Lock()
	f, ok := c.feeds[chatID]
	if !ok {
		c.mu.Unlock()
		return
	}
	subs := c.subscribers(chatID)
	f.cancel()
	delete(c.feeds, chatID)
	c.mu.Unlock()

	empty := []*domain.Message{}
	for _, sub := range subs {
		sub.mu.Lock()
		c.mu.Lock()
		closed := sub.closed
		if !closed {
			sub.closed = true
			metrics.ActiveSubscriptions.Dec()
		}
		c.mu.Unlock()
		if !closed {
			sub.fn(empty)
		}
		sub.mu.Unlock()
	}
}

// deliver invokes the callback unless the subscription was cancelled.
// The check and the call share sub.mu, so once unsubscribe returns no
// callback can start, and one that already started has finished.
func (c *Channel) deliver(sub *subscriber, msgs []*domain.Message) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	c.mu.Lock()
	closed := sub.closed
	c.mu.Unlock()
	if closed {
		return
	}
	sub.fn(msgs)
}

// subscribers must be called with c.mu held.
func (c *Channel) subscribers(chatID string) []*subscriber {
	f, ok := c.feeds[chatID]
	if !ok {
		return nil
	}
	out := make([]*subscriber, 0, len(f.subs))
	for sub := range f.subs {
		out = append(out, sub)
	}
	return out
}
