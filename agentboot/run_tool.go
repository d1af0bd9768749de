package agentboot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/kb-agent/llm"
	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// RunTool executes one requested tool call. It never fails: unknown tools,
// invalid arguments, handler errors, panics and timeouts all come back as
// error text for the model to read.
func (a *Agent) RunTool(ctx context.Context, reporter ProgressReporter, turn int, call llm.ToolCall) ToolResult {
	name := call.Function.Name
	result := ToolResult{ToolName: name, CallID: call.ID}

	reporter.Send(NewToolProgress(StageToolExecutionStarting, turn, name,
		formatToolInputsToMarkdown(name, call.Function.Arguments)))

	fail := func(content string) ToolResult {
		result.Content = content
		result.IsError = true
		logger.Error("Tool call failed", zap.String("tool", name), zap.String("result", content))
		reporter.Send(NewToolProgress(StageToolExecutionCompleted, turn, name, content))
		return result
	}

	tool := findMCPToolByName(a.config.Tools, name)
	if tool == nil {
		return fail(fmt.Sprintf("Error: unknown tool %q", name))
	}
	if call.ArgumentsError != "" {
		return fail(fmt.Sprintf("Error: invalid arguments for tool %s: %s", name, call.ArgumentsError))
	}
	if err := ValidateArguments(tool.Tool, call.Function.Arguments); err != nil {
		return fail(fmt.Sprintf("Error: invalid arguments for tool %s: %v", name, err))
	}
	if tool.Handler == nil {
		return fail(fmt.Sprintf("Error: tool %s has no handler", name))
	}

	content, err := a.invokeHandler(ctx, tool, call.Function.Arguments)
	if err != nil {
		return fail("Error: " + err.Error())
	}

	result.Content = content
	reporter.Send(NewToolProgress(StageToolExecutionCompleted, turn, name,
		fmt.Sprintf("Tool %s completed successfully", name)))
	return result
}

type handlerOutcome struct {
	content string
	err     error
}

func (a *Agent) invokeHandler(ctx context.Context, tool *MCPTool, args api.ToolCallFunctionArguments) (string, error) {
	toolCtx := ctx
	cancel := func() {}
	if a.config.ToolTimeout > 0 {
		toolCtx, cancel = context.WithTimeout(ctx, a.config.ToolTimeout)
	}
	defer cancel()

	// Buffered so an abandoned handler can still finish and exit.
	done := make(chan handlerOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- handlerOutcome{err: fmt.Errorf("tool %s panicked: %v", tool.Function.Name, r)}
			}
		}()
		content, err := tool.Handler(toolCtx, args)
		done <- handlerOutcome{content: content, err: err}
	}()

	select {
	case out := <-done:
		return out.content, out.err
	case <-toolCtx.Done():
		if errors.Is(toolCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("tool %s timed out after %s", tool.Function.Name, a.config.ToolTimeout)
		}
		return "", fmt.Errorf("tool %s cancelled: %w", tool.Function.Name, toolCtx.Err())
	}
}

// formatToolInputsToMarkdown renders tool inputs for progress messages.
func formatToolInputsToMarkdown(toolName string, params api.ToolCallFunctionArguments) string {
	if len(params) == 0 {
		return fmt.Sprintf("Tool: `%s` (no parameters)", mdEscape(toolName))
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Tool: `%s`\n\n", mdEscape(toolName)))

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString("Parameters:\n")
	for _, k := range keys {
		var valueStr string
		switch v := params[k].(type) {
		case string:
			valueStr = v
		case []string:
			valueStr = strings.Join(v, ", ")
		case []any:
			strs := make([]string, len(v))
			for i, item := range v {
				strs[i] = fmt.Sprintf("%v", item)
			}
			valueStr = strings.Join(strs, ", ")
		default:
			valueStr = fmt.Sprintf("%v", v)
		}

		b.WriteString(fmt.Sprintf("- **%s**: %s\n", mdEscape(k), mdEscape(valueStr)))
	}

	return b.String()
}

// Minimal Markdown escaper for inline text.
func mdEscape(s string) string {
	if s == "" {
		return s
	}
	r := strings.NewReplacer(
		`\`, `\\`,
		"|", `\|`,
		"*", `\*`,
		"_", `\_`,
		"~", `\~`,
		"`", "\\`",
		"[", `\[`,
		"]", `\]`,
		"#", `\#`,
		"<", "&lt;",
		">", "&gt;",
	)
	return r.Replace(s)
}
