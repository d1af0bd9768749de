package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SaiNageswarS/go-api-boot/odm"
	"github.com/SaiNageswarS/go-collection-boot/async"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore keeps one document per session.
type MongoStore struct {
	sessions odm.OdmCollectionInterface[Session]
	// odm has no update primitive; appends need a single $push upsert to
	// write a user/assistant pair atomically.
	raw odm.CollectionInterface
	now func() time.Time
}

func NewMongoStore(client odm.MongoClient, database string) *MongoStore {
	return &MongoStore{
		sessions: odm.CollectionOf[Session](client, database),
		raw:      client.Database(database).Collection(Session{}.CollectionName()),
		now:      time.Now,
	}
}

func (s *MongoStore) CreateSession(ctx context.Context, userID string) (string, error) {
	session := Session{
		ID:        newSessionID(),
		UserID:    userID,
		Turns:     []Turn{},
		CreatedAt: s.now().UTC(),
	}

	if _, err := async.Await(s.sessions.Save(ctx, session)); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return session.ID, nil
}

func (s *MongoStore) LoadHistory(ctx context.Context, sessionID string) ([]Turn, error) {
	session, err := s.find(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return []Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return session.Turns, nil
}

func (s *MongoStore) AppendTurn(ctx context.Context, sessionID, userText, assistantText string) error {
	_, err := s.raw.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: sessionID}},
		appendTurnUpdate(exchange(userText, assistantText), s.now().UTC()),
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *MongoStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	session, err := s.find(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, err
}

func (s *MongoStore) find(ctx context.Context, sessionID string) (*Session, error) {
	session, err := async.Await(s.sessions.FindOneByID(ctx, sessionID))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if session.Turns == nil {
		session.Turns = []Turn{}
	}
	return session, nil
}

func appendTurnUpdate(turns []Turn, now time.Time) bson.D {
	return bson.D{
		{Key: "$push", Value: bson.D{
			{Key: "turns", Value: bson.D{{Key: "$each", Value: turns}}},
		}},
		{Key: "$inc", Value: bson.D{{Key: "metadata.totalQueries", Value: 1}}},
		{Key: "$set", Value: bson.D{{Key: "metadata.lastActivityAt", Value: now}}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "createdAt", Value: now},
			{Key: "userId", Value: ""},
		}},
	}
}
