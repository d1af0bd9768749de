// Package memory persists conversation sessions and exposes the history an
// agent run is primed with.
package memory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrSessionNotFound = errors.New("session not found")

type Turn struct {
	Role    string `json:"role" bson:"role"`
	Content string `json:"content" bson:"content"`
}

type SessionMetadata struct {
	TotalQueries   int       `json:"totalQueries" bson:"totalQueries"`
	LastActivityAt time.Time `json:"lastActivityAt" bson:"lastActivityAt"`
}

type Session struct {
	ID        string          `json:"id" bson:"_id"`
	UserID    string          `json:"userId" bson:"userId"`
	Turns     []Turn          `json:"turns" bson:"turns"`
	CreatedAt time.Time       `json:"createdAt" bson:"createdAt"`
	Metadata  SessionMetadata `json:"metadata" bson:"metadata"`
}

func (s Session) Id() string {
	return s.ID
}

func (s Session) CollectionName() string {
	return "sessions"
}

// Store is safe for concurrent use. Appends to one session are serialized and
// land as a user/assistant pair or not at all.
type Store interface {
	CreateSession(ctx context.Context, userID string) (string, error)
	// LoadHistory returns an empty slice for unknown sessions.
	LoadHistory(ctx context.Context, sessionID string) ([]Turn, error)
	// AppendTurn creates the session when it does not exist yet.
	AppendTurn(ctx context.Context, sessionID, userText, assistantText string) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
}

func newSessionID() string {
	return uuid.NewString()
}

func exchange(userText, assistantText string) []Turn {
	return []Turn{
		{Role: RoleUser, Content: userText},
		{Role: RoleAssistant, Content: assistantText},
	}
}
