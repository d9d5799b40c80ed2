package api

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/spiritonline/DatingApp-sub002/internal/auth"
	"github.com/spiritonline/DatingApp-sub002/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

type snapshotFrame struct {
	Type     string            `json:"type"`
	ChatID   string            `json:"chat_id"`
	Messages []*domain.Message `json:"messages"`
}

// handleStream streams full ordered message snapshots for one chat over
// a websocket until the client disconnects.
func (s *Server) handleStream(conn *websocket.Conn) {
	userID, _ := conn.Locals(auth.LocalsUserID).(string)
	chatID := conn.Params("chat_id")
	if userID == "" || chatID == "" {
		_ = conn.Close()
		return
	}

	updates := make(chan []*domain.Message, 8)
	cancel, err := s.channel.Subscribe(context.Background(), chatID, func(msgs []*domain.Message) {
		select {
		case updates <- msgs:
		default:
			// slow client: drop the stale snapshot, a newer one follows
		}
	})
	if err != nil {
		s.log.Errorw("subscribe failed", "chat_id", chatID, "err", err)
		_ = conn.Close()
		return
	}
	defer cancel()

	s.setPresence(userID, true)
	defer s.setPresence(userID, false)

	done := make(chan struct{})
	go s.writePump(conn, chatID, updates, done)
	s.readPump(conn)
	close(done)
}

func (s *Server) writePump(conn *websocket.Conn, chatID string, updates <-chan []*domain.Message, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msgs := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snapshotFrame{Type: "snapshot", ChatID: chatID, Messages: msgs}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// the stream is one-way; reads only surface the disconnect
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) setPresence(userID string, online bool) {
	if s.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.presence.SetPresence(ctx, userID, online); err != nil {
		s.log.Debugw("presence update failed", "user_id", userID, "err", err)
	}
}
