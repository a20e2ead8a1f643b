package chatstore

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "chat_history"

// MongoStore writes chat messages to the chat_history collection, matching
// the document shape the rest of the product reads.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *slog.Logger
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(collectionName),
		logger: logger.With(slog.String("component", "chatstore_mongo")),
	}, nil
}

func (s *MongoStore) SaveMessage(ctx context.Context, msg Message) error {
	doc := bson.M{
		"chatId":      msg.ChatID,
		"projectId":   nil,
		"senderId":    msg.SenderID,
		"senderName":  msg.SenderName,
		"message":     msg.Body,
		"messageType": msg.MessageType,
		"timestamp":   msg.SentAt,
		"metadata": bson.M{
			"mentions":     bson.A{},
			"fileInfo":     nil,
			"codeLanguage": nil,
		},
	}
	if msg.ProjectID != nil {
		doc["projectId"] = *msg.ProjectID
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
