package memory

import (
	"context"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-collection-boot/linq"
	"github.com/SaiNageswarS/kb-agent/llm"
	"go.uber.org/zap"
)

// ConversationManager turns stored sessions into model context.
type ConversationManager struct {
	store           Store
	maxHistoryTurns int
}

func NewConversationManager(store Store, maxHistoryTurns int) *ConversationManager {
	return &ConversationManager{
		store:           store,
		maxHistoryTurns: maxHistoryTurns,
	}
}

func (cm *ConversationManager) Store() Store {
	return cm.store
}

// LoadHistory returns the windowed history of a session as chat messages.
// Load failures are logged and yield an empty history so the query can still
// be answered.
func (cm *ConversationManager) LoadHistory(ctx context.Context, sessionID string) []llm.Message {
	if cm.store == nil || sessionID == "" {
		return []llm.Message{}
	}

	turns, err := cm.store.LoadHistory(ctx, sessionID)
	if err != nil {
		logger.Error("Failed to load session history", zap.String("sessionId", sessionID), zap.Error(err))
		return []llm.Message{}
	}

	messages, err := linq.Pipe2(
		linq.FromSlice(ctx, cm.trimForSession(turns)),
		linq.Select(func(t Turn) llm.Message {
			return llm.Message{Role: t.Role, Content: t.Content}
		}),
		linq.ToSlice[llm.Message](),
	)
	if err != nil {
		logger.Error("Failed to build session history", zap.String("sessionId", sessionID), zap.Error(err))
		return []llm.Message{}
	}
	return messages
}

// SaveExchange appends one user/assistant pair.
func (cm *ConversationManager) SaveExchange(ctx context.Context, sessionID, userText, assistantText string) error {
	if cm.store == nil {
		return nil
	}

	if err := cm.store.AppendTurn(ctx, sessionID, userText, assistantText); err != nil {
		logger.Error("Failed to save session", zap.String("sessionId", sessionID), zap.Error(err))
		return err
	}
	return nil
}

// trimForSession keeps the last maxHistoryTurns user turns and everything
// that follows them.
func (cm *ConversationManager) trimForSession(turns []Turn) []Turn {
	if cm.maxHistoryTurns <= 0 || len(turns) == 0 {
		return []Turn{}
	}

	usersSeen := 0
	start := 0
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleUser {
			usersSeen++
			if usersSeen == cm.maxHistoryTurns {
				start = i
				break
			}
		}
	}

	return turns[start:]
}

func (cm *ConversationManager) GetMaxHistoryTurns() int {
	return cm.maxHistoryTurns
}
