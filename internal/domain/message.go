package domain

import (
	"strings"
	"time"
)

type MessageType string

const (
	TypeText    MessageType = "text"
	TypeImage   MessageType = "image"
	TypeVideo   MessageType = "video"
	TypeAudio   MessageType = "audio"
	TypeGallery MessageType = "gallery"
)

type Status string

const (
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

var statusRank = map[Status]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// CanAdvanceTo reports whether a message may move from s to next.
// Status only moves forward; failed is reachable from any non-terminal
// state and is terminal itself.
func (s Status) CanAdvanceTo(next Status) bool {
	if s == StatusFailed || s == StatusRead {
		return false
	}
	if next == StatusFailed {
		return true
	}
	cur, ok := statusRank[s]
	if !ok {
		return false
	}
	nxt, ok := statusRank[next]
	if !ok {
		return false
	}
	return nxt > cur
}

// ReplySnapshot is a denormalized copy of the message being replied to,
// captured at send time. It is never updated afterwards, even if the
// original message changes.
type ReplySnapshot struct {
	MessageID string `bson:"message_id" json:"message_id"`
	Content   string `bson:"content" json:"content"`
	SenderID  string `bson:"sender_id" json:"sender_id"`
}

type GalleryItem struct {
	URI          string `bson:"uri" json:"uri"`
	Type         string `bson:"type" json:"type"`
	ThumbnailURL string `bson:"thumbnail_url,omitempty" json:"thumbnail_url,omitempty"`
	Caption      string `bson:"caption,omitempty" json:"caption,omitempty"`
	Width        int    `bson:"width,omitempty" json:"width,omitempty"`
	Height       int    `bson:"height,omitempty" json:"height,omitempty"`
	DurationMS   int64  `bson:"duration_ms,omitempty" json:"duration_ms,omitempty"`
}

// Message is immutable after creation except for reactions, read_by and
// status. The reactions map holds emoji -> user ids; a key is present
// only while its bucket is non-empty.
type Message struct {
	ID           string              `bson:"_id,omitempty" json:"id"`
	ChatID       string              `bson:"chat_id" json:"chat_id"`
	SenderID     string              `bson:"sender_id" json:"sender_id"`
	Type         MessageType         `bson:"type" json:"type"`
	Content      string              `bson:"content" json:"content"`
	MediaURL     string              `bson:"media_url,omitempty" json:"media_url,omitempty"`
	ThumbnailURL string              `bson:"thumbnail_url,omitempty" json:"thumbnail_url,omitempty"`
	DurationMS   int64               `bson:"duration_ms,omitempty" json:"duration_ms,omitempty"`
	Width        int                 `bson:"width,omitempty" json:"width,omitempty"`
	Height       int                 `bson:"height,omitempty" json:"height,omitempty"`
	Gallery      []GalleryItem       `bson:"gallery,omitempty" json:"gallery,omitempty"`
	Reactions    map[string][]string `bson:"reactions" json:"reactions"`
	ReplyTo      *ReplySnapshot      `bson:"reply_to,omitempty" json:"reply_to,omitempty"`
	ReadBy       []string            `bson:"read_by" json:"read_by"`
	Status       Status              `bson:"status" json:"status"`
	CreatedAt    time.Time           `bson:"created_at" json:"created_at"`
}

// Payload is the client-supplied part of an outgoing message. Recipients
// is only consulted when the chat does not exist yet and is ignored
// otherwise (the participant set is fixed at chat creation).
type Payload struct {
	Type         MessageType   `json:"type"`
	Content      string        `json:"content"`
	MediaURL     string        `json:"media_url,omitempty"`
	ThumbnailURL string        `json:"thumbnail_url,omitempty"`
	DurationMS   int64         `json:"duration_ms,omitempty"`
	Width        int           `json:"width,omitempty"`
	Height       int           `json:"height,omitempty"`
	Gallery      []GalleryItem `json:"gallery,omitempty"`
	ReplyToID    string        `json:"reply_to_id,omitempty"`
	Recipients   []string      `json:"recipients,omitempty"`
}

// Validate enforces the per-type payload invariants before anything is
// written to the store.
func (p *Payload) Validate() error {
	switch p.Type {
	case TypeText:
		if strings.TrimSpace(p.Content) == "" {
			return ErrValidation
		}
	case TypeImage, TypeVideo, TypeAudio:
		if p.MediaURL == "" {
			return ErrValidation
		}
	case TypeGallery:
		if len(p.Gallery) == 0 {
			return ErrValidation
		}
		for _, it := range p.Gallery {
			if it.URI == "" {
				return ErrValidation
			}
		}
	default:
		return ErrValidation
	}
	return nil
}

const replySnapshotLimit = 80

// NewReplySnapshot captures the reply target as it is right now.
func NewReplySnapshot(m *Message) *ReplySnapshot {
	return &ReplySnapshot{
		MessageID: m.ID,
		Content:   Truncate(m.Content, replySnapshotLimit),
		SenderID:  m.SenderID,
	}
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
