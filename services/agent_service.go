package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-collection-boot/linq"
	"github.com/SaiNageswarS/kb-agent/agentboot"
	"github.com/SaiNageswarS/kb-agent/llm"
	"github.com/SaiNageswarS/kb-agent/memory"
	"github.com/SaiNageswarS/kb-agent/prompts"
	"github.com/SaiNageswarS/kb-agent/sources"
	"go.uber.org/zap"
)

// FallbackAnswer replaces an empty final answer.
const FallbackAnswer = "I wasn't able to produce an answer to that question. Please try rephrasing it."

// GenericErrorMessage is shown to callers for failures they cannot fix.
const GenericErrorMessage = "Sorry, something went wrong while generating an answer. Please try again."

var (
	ErrEmptyQuery       = errors.New("query must not be empty")
	ErrInvalidProfile   = errors.New("invalid prompt profile")
	ErrModelUnavailable = errors.New("language model unavailable")
)

type PromptProfile struct {
	Tone           string `json:"tone"`
	IncludeHistory bool   `json:"includeHistory"`
}

func DefaultProfile() PromptProfile {
	return PromptProfile{Tone: prompts.ToneDefault, IncludeHistory: true}
}

type AgentResponse struct {
	Answer    string           `json:"answer"`
	Sources   []sources.Source `json:"sources"`
	Query     string           `json:"query"`
	SessionID string           `json:"sessionId"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  ResponseMetadata `json:"metadata"`
}

type ResponseMetadata struct {
	ToolsUsed      []string `json:"toolsUsed"`
	Turns          int      `json:"turns"`
	ForcedStop     bool     `json:"forcedStop"`
	ProcessingTime int64    `json:"processingTimeMs"`
}

type AgentService struct {
	agent         *agentboot.Agent
	conversations *memory.ConversationManager
	storeTimeout  time.Duration
	now           func() time.Time
}

func ProvideAgentService(agent *agentboot.Agent, conversations *memory.ConversationManager, storeTimeout time.Duration) *AgentService {
	return &AgentService{
		agent:         agent,
		conversations: conversations,
		storeTimeout:  storeTimeout,
		now:           time.Now,
	}
}

func (s *AgentService) CreateSession(ctx context.Context, userID string) (string, error) {
	id, err := s.conversations.Store().CreateSession(ctx, userID)
	if err != nil {
		logger.Error("Error creating session", zap.Error(err))
		return "", err
	}
	return id, nil
}

func (s *AgentService) GetSession(ctx context.Context, sessionID string) (*memory.Session, error) {
	return s.conversations.Store().GetSession(ctx, sessionID)
}

// Query answers text within sessionID, creating a session when the id is
// empty. The response echoes text as given; the model and the session see it
// trimmed. The exchange is persisted after the answer is produced;
// persistence failures are logged and do not fail the query.
func (s *AgentService) Query(ctx context.Context, sessionID, query string, profile PromptProfile) (*AgentResponse, error) {
	text := strings.TrimSpace(query)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	if !prompts.ValidTone(profile.Tone) {
		return nil, fmt.Errorf("%w: unknown tone %q", ErrInvalidProfile, profile.Tone)
	}

	if sessionID == "" {
		id, err := s.CreateSession(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		sessionID = id
	}

	// 1. Build the prompt from system instructions, history and the query.
	var history []llm.Message
	if profile.IncludeHistory {
		history = s.conversations.LoadHistory(ctx, sessionID)
	}

	toolInfos, err := linq.Pipe2(
		linq.FromSlice(ctx, s.agent.Tools()),
		linq.Select(func(t agentboot.MCPTool) prompts.ToolInfo {
			return prompts.ToolInfo{Name: t.Function.Name, Description: t.Function.Description}
		}),
		linq.ToSlice[prompts.ToolInfo](),
	)
	if err != nil {
		return nil, err
	}

	systemPrompt, err := prompts.RenderSystemPrompt(prompts.SystemPromptData{
		Tone:       profile.Tone,
		Tools:      toolInfos,
		HasHistory: len(history) > 0,
	})
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})

	// 2. Run the agent loop.
	result, err := s.agent.Run(ctx, &agentboot.LogProgressReporter{SessionID: sessionID}, messages)
	if err != nil {
		var modelErr *agentboot.ModelError
		if errors.As(err, &modelErr) {
			logger.Error("Model call failed", zap.String("sessionId", sessionID), zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		}
		return nil, err
	}

	answer := strings.TrimSpace(result.Answer)
	if answer == "" {
		answer = FallbackAnswer
	}

	// 3. Derive citations from what the tools returned.
	cited := sources.Extract(result.ToolMessages)

	// 4. Persist the exchange even if the caller has gone away.
	s.saveExchange(ctx, sessionID, text, answer)

	logger.Info("Query answered",
		zap.String("sessionId", sessionID),
		zap.Int("turns", result.Turns),
		zap.Int("sources", len(cited)),
		zap.Bool("forcedStop", result.ForcedStop))

	return &AgentResponse{
		Answer:    answer,
		Sources:   cited,
		Query:     query,
		SessionID: sessionID,
		Timestamp: s.now().UTC(),
		Metadata: ResponseMetadata{
			ToolsUsed:      result.ToolsUsed,
			Turns:          result.Turns,
			ForcedStop:     result.ForcedStop,
			ProcessingTime: result.ProcessingTime,
		},
	}, nil
}

func (s *AgentService) saveExchange(ctx context.Context, sessionID, userText, answer string) {
	storeCtx := context.WithoutCancel(ctx)
	if s.storeTimeout > 0 {
		var cancel context.CancelFunc
		storeCtx, cancel = context.WithTimeout(storeCtx, s.storeTimeout)
		defer cancel()
	}

	// ConversationManager already logs the failure.
	_ = s.conversations.SaveExchange(storeCtx, sessionID, userText, answer)
}
