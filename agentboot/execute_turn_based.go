package agentboot

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-collection-boot/async"
	"github.com/SaiNageswarS/kb-agent/llm"
	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

type LoopState int

const (
	StateAwaitingModel LoopState = iota
	StateExecutingTools
	StateDone
)

func (s LoopState) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateExecutingTools:
		return "executing_tools"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("LoopState(%d)", int(s))
}

// RunResult is the outcome of one agent run.
type RunResult struct {
	Answer string
	// Turns counts model calls made during the run.
	Turns int
	// ForcedStop is set when the turn limit ended the run while the model was
	// still asking for tools.
	ForcedStop bool
	// ToolMessages holds every tool result of the run in the order it was fed
	// back to the model.
	ToolMessages []llm.Message
	ToolsUsed    []string
	// ProcessingTime in milliseconds.
	ProcessingTime int64
}

type modelTurn struct {
	content   string
	toolCalls []llm.ToolCall
}

// Run drives the model through tool rounds until it answers without
// requesting tools or MaxTurns model calls have been made. messages is the
// full prompt (system, history, user query) and is not modified.
func (a *Agent) Run(ctx context.Context, reporter ProgressReporter, messages []llm.Message) (*RunResult, error) {
	if reporter == nil {
		reporter = &NoOpProgressReporter{}
	}
	if a.config.Model == nil {
		return nil, &ModelError{Err: fmt.Errorf("no model configured")}
	}

	startTime := getCurrentTimeMs()
	conversation := slices.Clone(messages)
	result := &RunResult{ToolsUsed: []string{}}
	apiTools := toAPITools(a.config.Tools)

	var lastText string
	var pending []llm.ToolCall

	state := StateAwaitingModel
	for state != StateDone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch state {
		case StateAwaitingModel:
			result.Turns++
			reporter.Send(NewProgressUpdate(StageModelCall, result.Turns,
				fmt.Sprintf("Calling model %s", a.config.Model.GetModel())))

			turn, err := a.callModel(ctx, conversation, apiTools)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				logger.Error("Model call failed", zap.Int("turn", result.Turns), zap.Error(err))
				reporter.Send(NewProgressError(result.Turns, err.Error()))
				return nil, &ModelError{Turn: result.Turns, Err: err}
			}

			if strings.TrimSpace(turn.content) != "" {
				lastText = turn.content
			}

			if len(turn.toolCalls) == 0 {
				result.Answer = turn.content
				state = StateDone
				continue
			}

			if result.Turns >= a.config.MaxTurns {
				result.ForcedStop = true
				result.Answer = lastText
				if strings.TrimSpace(result.Answer) == "" {
					result.Answer = ForcedStopAnswer
				}
				logger.Info("Turn limit reached with pending tool calls",
					zap.Int("turns", result.Turns), zap.Int("pendingCalls", len(turn.toolCalls)))
				reporter.Send(NewProgressUpdate(StageForcedStop, result.Turns, "Turn limit reached"))
				state = StateDone
				continue
			}

			pending = withCallIDs(result.Turns, turn.toolCalls)
			conversation = append(conversation, llm.Message{
				Role:      llm.RoleAssistant,
				Content:   turn.content,
				ToolCalls: pending,
			})
			state = StateExecutingTools

		case StateExecutingTools:
			toolResults := a.runToolCalls(ctx, reporter, result.Turns, pending)
			for _, tr := range toolResults {
				msg := toolMessage(tr)
				conversation = append(conversation, msg)
				result.ToolMessages = append(result.ToolMessages, msg)
				if !slices.Contains(result.ToolsUsed, tr.ToolName) {
					result.ToolsUsed = append(result.ToolsUsed, tr.ToolName)
				}
			}
			pending = nil
			state = StateAwaitingModel
		}
	}

	result.ProcessingTime = getCurrentTimeMs() - startTime
	reporter.Send(NewProgressUpdate(StageComplete, result.Turns,
		fmt.Sprintf("Answered after %d model call(s)", result.Turns)))
	return result, nil
}

func (a *Agent) callModel(ctx context.Context, conversation []llm.Message, apiTools []api.Tool) (*modelTurn, error) {
	callCtx := ctx
	cancel := func() {}
	if a.config.ModelTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, a.config.ModelTimeout)
	}
	defer cancel()

	opts := []llm.LLMOption{
		llm.WithMaxTokens(a.config.MaxTokens),
		llm.WithTemperature(a.config.Temperature),
	}

	turn := &modelTurn{}
	var content strings.Builder
	onContent := func(chunk string) error {
		content.WriteString(chunk)
		return nil
	}

	var err error
	if len(apiTools) == 0 {
		err = a.config.Model.GenerateInference(callCtx, conversation, onContent, opts...)
	} else {
		err = a.config.Model.GenerateInferenceWithTools(callCtx, conversation, onContent,
			func(calls []llm.ToolCall) error {
				turn.toolCalls = append(turn.toolCalls, calls...)
				return nil
			},
			append(opts, llm.WithTools(apiTools))...,
		)
	}
	if err != nil {
		return nil, err
	}

	turn.content = content.String()
	return turn, nil
}

// runToolCalls dispatches the calls of one turn concurrently and returns
// their results in request order.
func (a *Agent) runToolCalls(ctx context.Context, reporter ProgressReporter, turn int, calls []llm.ToolCall) []ToolResult {
	tasks := make([]<-chan async.Result[ToolResult], 0, len(calls))
	for _, call := range calls {
		tasks = append(tasks, async.Go(func() (ToolResult, error) {
			return a.RunTool(ctx, reporter, turn, call), nil
		}))
	}

	results := make([]ToolResult, 0, len(calls))
	for i, task := range tasks {
		res, err := async.Await(task)
		if err != nil {
			res = ToolResult{
				ToolName: calls[i].Function.Name,
				CallID:   calls[i].ID,
				Content:  "Error: " + err.Error(),
				IsError:  true,
			}
		}
		results = append(results, res)
	}
	return results
}
