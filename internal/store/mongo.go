package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/spiritonline/DatingApp-sub002/internal/domain"
)

const (
	writeTimeout = 3 * time.Second
	readTimeout  = 5 * time.Second
)

type Mongo struct {
	client   *mongo.Client
	chats    *mongo.Collection
	messages *mongo.Collection
	log      *zap.SugaredLogger
}

func NewMongo(client *mongo.Client, dbName string, log *zap.SugaredLogger) *Mongo {
	db := client.Database(dbName)
	m := &Mongo{
		client:   client,
		chats:    db.Collection("chats"),
		messages: db.Collection("messages"),
		log:      log,
	}
	_, _ = m.messages.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return m
}

func (m *Mongo) EnsureChat(ctx context.Context, chatID string, participants []string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	now := time.Now().UTC()
	doc := bson.M{
		"_id":          chatID,
		"participants": participants,
		"created_at":   now,
		"updated_at":   now,
	}
	_, err := m.chats.UpdateByID(ctx, chatID, bson.M{"$setOnInsert": doc}, options.Update().SetUpsert(true))
	return err
}

func (m *Mongo) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var c domain.Chat
	if err := m.chats.FindOne(ctx, bson.M{"_id": chatID}).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (m *Mongo) SetChatSummary(ctx context.Context, chatID string, s *domain.Summary) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := m.chats.UpdateByID(ctx, chatID, bson.M{
		"$set": bson.M{"last_message": s, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (m *Mongo) InsertMessage(ctx context.Context, msg *domain.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now().UTC()
	if msg.Reactions == nil {
		msg.Reactions = map[string][]string{}
	}
	if msg.ReadBy == nil {
		msg.ReadBy = []string{}
	}
	if _, err := m.messages.InsertOne(ctx, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (m *Mongo) GetMessage(ctx context.Context, chatID, messageID string) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var msg domain.Message
	err := m.messages.FindOne(ctx, bson.M{"_id": messageID, "chat_id": chatID}).Decode(&msg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	normalize(&msg)
	return &msg, nil
}

func (m *Mongo) SetMessageStatus(ctx context.Context, chatID, messageID string, st domain.Status) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := m.messages.UpdateOne(ctx,
		bson.M{
			"_id":     messageID,
			"chat_id": chatID,
			"status":  bson.M{"$in": statusPredecessors(st)},
		},
		bson.M{"$set": bson.M{"status": st}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (m *Mongo) ListMessages(ctx context.Context, chatID string, limit int64, before time.Time) ([]*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	filter := bson.M{"chat_id": chatID}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := m.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*domain.Message{}
	for cur.Next(ctx) {
		var msg domain.Message
		if err := cur.Decode(&msg); err != nil {
			return nil, err
		}
		normalize(&msg)
		out = append(out, &msg)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	// newest-first page, returned in chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (m *Mongo) MutateMessage(ctx context.Context, chatID, messageID string, fn func(*domain.Message) error) error {
	sess, err := m.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var msg domain.Message
		if err := m.messages.FindOne(sc, bson.M{"_id": messageID, "chat_id": chatID}).Decode(&msg); err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, domain.ErrNotFound
			}
			return nil, err
		}
		normalize(&msg)
		if err := fn(&msg); err != nil {
			return nil, err
		}
		_, err := m.messages.UpdateOne(sc,
			bson.M{"_id": messageID, "chat_id": chatID},
			bson.M{"$set": bson.M{
				"reactions": msg.Reactions,
				"read_by":   msg.ReadBy,
				"status":    msg.Status,
			}},
		)
		return nil, err
	})
	return err
}

func (m *Mongo) MarkDelivered(ctx context.Context, chatID, actingUserID string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err := m.messages.UpdateMany(ctx,
		bson.M{
			"chat_id":   chatID,
			"sender_id": bson.M{"$ne": actingUserID},
			"status":    domain.StatusSent,
		},
		bson.M{"$set": bson.M{"status": domain.StatusDelivered}},
	)
	return err
}

func (m *Mongo) MarkRead(ctx context.Context, chatID, actingUserID string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	sess, err := m.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	// both updates commit together; a failure rolls the batch back so a
	// wholesale retry starts from the pre-batch state
	notMine := bson.M{"$ne": actingUserID}
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return m.messages.BulkWrite(sc, []mongo.WriteModel{
			mongo.NewUpdateManyModel().
				SetFilter(bson.M{
					"chat_id":   chatID,
					"sender_id": notMine,
					"read_by":   bson.M{"$ne": actingUserID},
				}).
				SetUpdate(bson.M{"$addToSet": bson.M{"read_by": actingUserID}}),
			mongo.NewUpdateManyModel().
				SetFilter(bson.M{
					"chat_id":   chatID,
					"sender_id": notMine,
					"status":    bson.M{"$in": bson.A{domain.StatusSent, domain.StatusDelivered}},
				}).
				SetUpdate(bson.M{"$set": bson.M{"status": domain.StatusRead}}),
		}, options.BulkWrite().SetOrdered(true))
	})
	return err
}

func (m *Mongo) WatchChat(ctx context.Context, chatID string, fn func(error)) (func(), error) {
	pipeline := mongo.Pipeline{bson.D{{Key: "$match", Value: bson.D{
		{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace"}}}},
		{Key: "fullDocument.chat_id", Value: chatID},
	}}}}

	streamCtx, cancel := context.WithCancel(context.Background())
	cs, err := m.messages.Watch(streamCtx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, err
	}

	go func() {
		defer cs.Close(context.Background())
		for cs.Next(streamCtx) {
			if streamCtx.Err() != nil {
				return
			}
			fn(nil)
		}
		if err := cs.Err(); err != nil && streamCtx.Err() == nil {
			m.log.Errorw("change stream broken", "chat_id", chatID, "err", err)
			fn(err)
		}
	}()
	return cancel, nil
}

func statusPredecessors(st domain.Status) bson.A {
	switch st {
	case domain.StatusSent:
		return bson.A{domain.StatusSending}
	case domain.StatusDelivered:
		return bson.A{domain.StatusSending, domain.StatusSent}
	case domain.StatusRead:
		return bson.A{domain.StatusSending, domain.StatusSent, domain.StatusDelivered}
	case domain.StatusFailed:
		return bson.A{domain.StatusSending, domain.StatusSent, domain.StatusDelivered}
	default:
		return bson.A{}
	}
}

func normalize(m *domain.Message) {
	if m.Reactions == nil {
		m.Reactions = map[string][]string{}
	}
	if m.ReadBy == nil {
		m.ReadBy = []string{}
	}
}
