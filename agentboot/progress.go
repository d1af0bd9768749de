package agentboot

import (
	"time"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"go.uber.org/zap"
)

type Stage string

const (
	StageModelCall              Stage = "model_call"
	StageToolExecutionStarting  Stage = "tool_execution_starting"
	StageToolExecutionCompleted Stage = "tool_execution_completed"
	StageForcedStop             Stage = "forced_stop"
	StageComplete               Stage = "complete"
	StageError                  Stage = "error"
)

// ProgressEvent is a single step of a run, as seen by a ProgressReporter.
type ProgressEvent struct {
	Stage     Stage  `json:"stage"`
	Turn      int    `json:"turn"`
	ToolName  string `json:"toolName,omitempty"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ProgressReporter is an interface for reporting agent execution progress
type ProgressReporter interface {
	// Send sends a progress update
	Send(event *ProgressEvent) error
}

// NoOpProgressReporter implements ProgressReporter with no-op operations
type NoOpProgressReporter struct{}

func (r *NoOpProgressReporter) Send(event *ProgressEvent) error {
	return nil
}

// LogProgressReporter writes every event to the application log.
type LogProgressReporter struct {
	SessionID string
}

func (r *LogProgressReporter) Send(event *ProgressEvent) error {
	fields := []zap.Field{
		zap.String("stage", string(event.Stage)),
		zap.Int("turn", event.Turn),
		zap.String("message", event.Message),
	}
	if r.SessionID != "" {
		fields = append(fields, zap.String("sessionId", r.SessionID))
	}
	if event.ToolName != "" {
		fields = append(fields, zap.String("tool", event.ToolName))
	}

	if event.Stage == StageError {
		logger.Error("Agent progress", fields...)
		return nil
	}
	logger.Info("Agent progress", fields...)
	return nil
}

// Helper functions for creating progress events
func NewProgressUpdate(stage Stage, turn int, message string) *ProgressEvent {
	return &ProgressEvent{
		Stage:     stage,
		Turn:      turn,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}
}

func NewToolProgress(stage Stage, turn int, toolName, message string) *ProgressEvent {
	event := NewProgressUpdate(stage, turn, message)
	event.ToolName = toolName
	return event
}

func NewProgressError(turn int, message string) *ProgressEvent {
	return NewProgressUpdate(StageError, turn, message)
}
