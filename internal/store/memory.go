package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spiritonline/DatingApp-sub002/internal/domain"
)

// Memory is an in-process Store used by tests and local development. It
// mirrors the Mongo implementation's semantics, including watcher
// notification on every mutation.
type Memory struct {
	mu       sync.Mutex
	chats    map[string]*domain.Chat
	messages map[string][]*domain.Message
	watchers map[string]map[int]func(error)
	nextID   int
	seq      int64

	failErr  error
	failSkip int
}

func NewMemory() *Memory {
	return &Memory{
		chats:    make(map[string]*domain.Chat),
		messages: make(map[string][]*domain.Message),
		watchers: make(map[string]map[int]func(error)),
	}
}

// FailNext makes the next store operation return err.
func (s *Memory) FailNext(err error) {
	s.FailAfter(0, err)
}

// FailAfter lets skip operations succeed, then fails the next one with
// err.
func (s *Memory) FailAfter(skip int, err error) {
	s.mu.Lock()
	s.failSkip = skip
	s.failErr = err
	s.mu.Unlock()
}

// BreakWatch delivers a transport error to every watcher of chatID and
// drops them, the way a dying change stream would.
func (s *Memory) BreakWatch(chatID string, err error) {
	s.mu.Lock()
	fns := make([]func(error), 0, len(s.watchers[chatID]))
	for _, fn := range s.watchers[chatID] {
		fns = append(fns, fn)
	}
	delete(s.watchers, chatID)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (s *Memory) takeFailure() error {
	if s.failErr == nil {
		return nil
	}
	if s.failSkip > 0 {
		s.failSkip--
		return nil
	}
	err := s.failErr
	s.failErr = nil
	return err
}

func (s *Memory) EnsureChat(ctx context.Context, chatID string, participants []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	if _, ok := s.chats[chatID]; ok {
		return nil
	}
	now := time.Now().UTC()
	s.chats[chatID] = &domain.Chat{
		ID:           chatID,
		Participants: append([]string(nil), participants...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return nil
}

func (s *Memory) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	c, ok := s.chats[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	return &cp, nil
}

func (s *Memory) SetChatSummary(ctx context.Context, chatID string, sum *domain.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	c, ok := s.chats[chatID]
	if !ok {
		return domain.ErrNotFound
	}
	cp := *sum
	c.LastMessage = &cp
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Memory) InsertMessage(ctx context.Context, m *domain.Message) (string, error) {
	s.mu.Lock()
	if err := s.takeFailure(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	m.ID = uuid.NewString()
	s.seq++
	// strictly increasing within the process so ordering is deterministic
	m.CreatedAt = time.Now().UTC().Add(time.Duration(s.seq) * time.Microsecond)
	if m.Reactions == nil {
		m.Reactions = map[string][]string{}
	}
	if m.ReadBy == nil {
		m.ReadBy = []string{}
	}
	s.messages[m.ChatID] = append(s.messages[m.ChatID], copyMessage(m))
	id := m.ID
	fns := s.watcherFns(m.ChatID)
	s.mu.Unlock()

	notify(fns)
	return id, nil
}

func (s *Memory) GetMessage(ctx context.Context, chatID, messageID string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	m := s.find(chatID, messageID)
	if m == nil {
		return nil, domain.ErrNotFound
	}
	return copyMessage(m), nil
}

func (s *Memory) SetMessageStatus(ctx context.Context, chatID, messageID string, st domain.Status) error {
	s.mu.Lock()
	if err := s.takeFailure(); err != nil {
		s.mu.Unlock()
		return err
	}
	m := s.find(chatID, messageID)
	if m == nil || !m.Status.CanAdvanceTo(st) {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	m.Status = st
	fns := s.watcherFns(chatID)
	s.mu.Unlock()

	notify(fns)
	return nil
}

func (s *Memory) ListMessages(ctx context.Context, chatID string, limit int64, before time.Time) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	return s.list(chatID, limit, before), nil
}

func (s *Memory) list(chatID string, limit int64, before time.Time) []*domain.Message {
	out := []*domain.Message{}
	for _, m := range s.messages[chatID] {
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		out = append(out, copyMessage(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out
}

func (s *Memory) MutateMessage(ctx context.Context, chatID, messageID string, fn func(*domain.Message) error) error {
	s.mu.Lock()
	if err := s.takeFailure(); err != nil {
		s.mu.Unlock()
		return err
	}
	m := s.find(chatID, messageID)
	if m == nil {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	cp := copyMessage(m)
	if err := fn(cp); err != nil {
		s.mu.Unlock()
		return err
	}
	m.Reactions = cp.Reactions
	m.ReadBy = cp.ReadBy
	m.Status = cp.Status
	fns := s.watcherFns(chatID)
	s.mu.Unlock()

	notify(fns)
	return nil
}

func (s *Memory) MarkDelivered(ctx context.Context, chatID, actingUserID string) error {
	s.mu.Lock()
	if err := s.takeFailure(); err != nil {
		s.mu.Unlock()
		return err
	}
	changed := false
	for _, m := range s.messages[chatID] {
		if m.SenderID == actingUserID || m.Status != domain.StatusSent {
			continue
		}
		m.Status = domain.StatusDelivered
		changed = true
	}
	var fns []func(error)
	if changed {
		fns = s.watcherFns(chatID)
	}
	s.mu.Unlock()

	notify(fns)
	return nil
}

func (s *Memory) MarkRead(ctx context.Context, chatID, actingUserID string) error {
	s.mu.Lock()
	if err := s.takeFailure(); err != nil {
		s.mu.Unlock()
		return err
	}
	changed := false
	for _, m := range s.messages[chatID] {
		if m.SenderID == actingUserID {
			continue
		}
		if !contains(m.ReadBy, actingUserID) {
			m.ReadBy = append(m.ReadBy, actingUserID)
			changed = true
		}
		if m.Status == domain.StatusSent || m.Status == domain.StatusDelivered {
			m.Status = domain.StatusRead
			changed = true
		}
	}
	var fns []func(error)
	if changed {
		fns = s.watcherFns(chatID)
	}
	s.mu.Unlock()

	notify(fns)
	return nil
}

func (s *Memory) WatchChat(ctx context.Context, chatID string, fn func(error)) (func(), error) {
	s.mu.Lock()
	if err := s.takeFailure(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.watchers[chatID] == nil {
		s.watchers[chatID] = make(map[int]func(error))
	}
	id := s.nextID
	s.nextID++
	s.watchers[chatID][id] = fn
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if set, ok := s.watchers[chatID]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(s.watchers, chatID)
			}
		}
		s.mu.Unlock()
	}
	return cancel, nil
}

func (s *Memory) watcherFns(chatID string) []func(error) {
	fns := make([]func(error), 0, len(s.watchers[chatID]))
	for _, fn := range s.watchers[chatID] {
		fns = append(fns, fn)
	}
	return fns
}

func (s *Memory) find(chatID, messageID string) *domain.Message {
	for _, m := range s.messages[chatID] {
		if m.ID == messageID {
			return m
		}
	}
	return nil
}

func notify(fns []func(error)) {
	for _, fn := range fns {
		fn(nil)
	}
}

func copyMessage(m *domain.Message) *domain.Message {
	cp := *m
	cp.ReadBy = append([]string(nil), m.ReadBy...)
	cp.Reactions = make(map[string][]string, len(m.Reactions))
	for e, users := range m.Reactions {
		cp.Reactions[e] = append([]string(nil), users...)
	}
	if m.ReplyTo != nil {
		r := *m.ReplyTo
		cp.ReplyTo = &r
	}
	cp.Gallery = append([]domain.GalleryItem(nil), m.Gallery...)
	return &cp
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
