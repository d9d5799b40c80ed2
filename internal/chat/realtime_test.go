package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spiritonline/DatingApp-sub002/internal/domain"
)

type recorder struct {
	mu        sync.Mutex
	snapshots [][]*domain.Message
}

func (r *recorder) record(msgs []*domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, msgs)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *recorder) last() []*domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	svc, st := newTestService(t)
	ch := NewChannel(st, zap.NewNop().Sugar())
	ctx := context.Background()

	require.True(t, svc.SendMessage(ctx, "c1", "u1", textPayload("hi", "u2")))

	rec := &recorder{}
	cancel, err := ch.Subscribe(ctx, "c1", rec.record)
	require.NoError(t, err)
	defer cancel()

	require.Equal(t, 1, rec.count())
	last := rec.last()
	require.Len(t, last, 1)
	assert.Equal(t, "hi", last[0].Content)
}

func TestSubscribeDeliversOrderedSnapshotsOnChange(t *testing.T) {
	svc, st := newTestService(t)
	ch := NewChannel(st, zap.NewNop().Sugar())
	ctx := context.Background()

	rec := &recorder{}
	cancel, err := ch.Subscribe(ctx, "c1", rec.record)
	require.NoError(t, err)
	defer cancel()

	require.True(t, svc.SendMessage(ctx, "c1", "u1", textPayload("one", "u2")))
	require.True(t, svc.SendMessage(ctx, "c1", "u2", textPayload("two")))
	require.True(t, svc.SendMessage(ctx, "c1", "u1", textPayload("three")))

	last := rec.last()
	require.Len(t, last, 3)
	assert.Equal(t, "one", last[0].Content)
	assert.Equal(t, "two", last[1].Content)
	assert.Equal(t, "three", last[2].Content)
	for i := 1; i < len(last); i++ {
		assert.True(t, last[i].CreatedAt.After(last[i-1].CreatedAt),
			"snapshot must be ascending by created_at")
	}
}

func TestSubscribeSeesReactionAndReceiptChanges(t *testing.T) {
	svc, st := newTestService(t)
	ch := NewChannel(st, zap.NewNop().Sugar())
	ctx := context.Background()

	require.True(t, svc.SendMessage(ctx, "c1", "u1", textPayload("hi", "u2")))
	id := seedMessage(t, svc, st, "u1")

	rec := &recorder{}
	cancel, err := ch.Subscribe(ctx, "c1", rec.record)
	require.NoError(t, err)
	defer cancel()

	require.True(t, svc.ToggleReaction(ctx, "c1", id, "❤️", "u2"))
	require.True(t, svc.MarkMessagesAsRead(ctx, "c1", "u2"))

	last := rec.last()
	var target *domain.Message
	for _, m := range last {
		if m.ID == id {
			target = m
		}
	}
	require.NotNil(t, target)
	assert.Equal(t, []string{"u2"}, target.Reactions["❤️"])
	assert.Contains(t, target.ReadBy, "u2")
	assert.Equal(t, domain.StatusRead, target.Status)
}

func TestUnsubscribeStopsCallbacks(t *testing.T) {
	svc, st := newTestService(t)
	ch := NewChannel(st, zap.NewNop().Sugar())
	ctx := context.Background()

	rec := &recorder{}
	cancel, err := ch.Subscribe(ctx, "c1", rec.record)
	require.NoError(t, err)

	require.True(t, svc.SendMessage(ctx, "c1", "u1", textPayload("one", "u2")))
	seen := rec.count()

	cancel()
	require.True(t, svc.SendMessage(ctx, "c1", "u1", textPayload("two")))
	assert.Equal(t, seen, rec.count(), "no callbacks after unsubscribe")

	// cancelling twice is harmless
	cancel()
}

func TestUnsubscribeWaitsForInFlightCallback(t *testing.T) {
	svc, st := newTestService(t)
	ch := NewChannel(st, zap.NewNop().Sugar())
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	var finished atomic.Bool
	cancel, err := ch.Subscribe(ctx, "c1", func([]*domain.Message) {
		// call 1 is the initial snapshot; block inside the first
		// change-driven delivery
		if atomic.AddInt32(&calls, 1) == 2 {
			close(entered)
			<-release
			finished.Store(true)
		}
	})
	require.NoError(t, err)

	go svc.SendMessage(ctx, "c1", "u1", textPayload("hi", "u2"))
	<-entered

	done := make(chan struct{})
	go func() {
		cancel()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("cancel returned while a callback was still executing")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cancel did not return after the callback finished")
	}
	assert.True(t, finished.Load(), "cancel must not return before the callback completes")
}

func TestSnapshotDeliveriesAreSerializedPerSubscriber(t *testing.T) {
	svc, st := newTestService(t)
	ch := NewChannel(st, zap.NewNop().Sugar())
	ctx := context.Background()

	var inFlight int32
	var overlapped atomic.Bool
	rec := &recorder{}
	cancel, err := ch.Subscribe(ctx, "c1", func(msgs []*domain.Message) {
		if atomic.AddInt32(&inFlight, 1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(200 * time.Microsecond)
		rec.record(msgs)
		atomic.AddInt32(&inFlight, -1)
	})
	require.NoError(t, err)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				svc.SendMessage(ctx, "c1", "u1", textPayload("m", "u2"))
			}
		}()
	}
	wg.Wait()

	assert.False(t, overlapped.Load(), "one subscriber never sees concurrent callbacks")
	assert.Greater(t, rec.count(), 1)
}

func TestTwoSubscribersShareOneFeed(t *testing.T) {
	svc, st := newTestService(t)
	ch := NewChannel(st, zap.NewNop().Sugar())
	ctx := context.Background()

	a, b := &recorder{}, &recorder{}
	cancelA, err := ch.Subscribe(ctx, "c1", a.record)
	require.NoError(t, err)
	cancelB, err := ch.Subscribe(ctx, "c1", b.record)
	require.NoError(t, err)
	defer cancelB()

	require.True(t, svc.SendMessage(ctx, "c1", "u1", textPayload("hi", "u2")))
	require.Len(t, a.last(), 1)
	require.Len(t, b.last(), 1)

	// dropping one subscriber leaves the other live
	cancelA()
	require.True(t, svc.SendMessage(ctx, "c1", "u2", textPayload("again")))
	assert.Len(t, b.last(), 2)
}

func TestBrokenFeedDeliversEmptySnapshot(t *testing.T) {
	svc, st := newTestService(t)
	ch := NewChannel(st, zap.NewNop().Sugar())
	ctx := context.Background()

	require.True(t, svc.SendMessage(ctx, "c1", "u1", textPayload("hi", "u2")))

	rec := &recorder{}
	cancel, err := ch.Subscribe(ctx, "c1", rec.record)
	require.NoError(t, err)
	defer cancel()
	require.Len(t, rec.last(), 1)

	st.BreakWatch("c1", errors.New("stream reset"))

	assert.Empty(t, rec.last(), "transport error surfaces as an empty snapshot")

	// no reconnect: later writes are not delivered
	seen := rec.count()
	require.True(t, svc.SendMessage(ctx, "c1", "u2", textPayload("after")))
	assert.Equal(t, seen, rec.count())
}
