package domain

import "time"

// Summary is the denormalized last-message view stored on the chat
// document so list screens never have to read the messages collection.
type Summary struct {
	Content   string         `bson:"content" json:"content"`
	SenderID  string         `bson:"sender_id" json:"sender_id"`
	Type      MessageType    `bson:"type" json:"type"`
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`
	ReplyTo   *ReplySnapshot `bson:"reply_to,omitempty" json:"reply_to,omitempty"`
}

type Chat struct {
	ID           string    `bson:"_id" json:"id"`
	Participants []string  `bson:"participants" json:"participants"`
	LastMessage  *Summary  `bson:"last_message,omitempty" json:"last_message,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// NewSummary builds the chat summary for a just-written message.
func NewSummary(m *Message) *Summary {
	return &Summary{
		Content:   m.Content,
		SenderID:  m.SenderID,
		Type:      m.Type,
		Timestamp: m.CreatedAt,
		ReplyTo:   m.ReplyTo,
	}
}
