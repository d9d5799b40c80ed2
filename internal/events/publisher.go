package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spiritonline/DatingApp-sub002/internal/domain"
)

// Publisher pushes chat events to the push-notification pipeline. All
// publishes are fire-and-forget: a broker failure never fails the chat
// operation that triggered it.
type Publisher struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

func NewPublisher(brokers []string, topic string, log *zap.SugaredLogger) *Publisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Publisher{writer: w, log: log}
}

type messageCreated struct {
	Event   string          `json:"event"`
	ChatID  string          `json:"chat_id"`
	Message *domain.Message `json:"message"`
}

type receiptUpdated struct {
	Event  string `json:"event"`
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
}

func (p *Publisher) MessageCreated(chatID string, m *domain.Message) {
	p.publish(chatID, messageCreated{Event: "message.created", ChatID: chatID, Message: m})
}

func (p *Publisher) ReceiptUpdated(chatID, userID, kind string) {
	p.publish(chatID, receiptUpdated{Event: "receipt.updated", ChatID: chatID, UserID: userID, Kind: kind})
}

func (p *Publisher) publish(key string, ev interface{}) {
	b, err := json.Marshal(ev)
	if err != nil {
		p.log.Errorw("marshal event", "err", err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b, Time: time.Now()}); err != nil {
			p.log.Errorw("publish event", "key", key, "err", err)
		}
	}()
}

func (p *Publisher) Close() error { return p.writer.Close() }
