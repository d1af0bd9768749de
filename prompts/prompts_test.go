package prompts

import (
	"strings"
	"testing"
)

func testTools() []ToolInfo {
	return []ToolInfo{
		{Name: "search_knowledge_base", Description: "Search the curated knowledge base"},
		{Name: "search_web", Description: "Search the public web"},
	}
}

func TestRenderSystemPrompt(t *testing.T) {
	prompt, err := RenderSystemPrompt(SystemPromptData{Tone: ToneDefault, Tools: testTools()})
	if err != nil {
		t.Fatalf("Failed to render system prompt: %v", err)
	}

	expected := []string{
		"research assistant",
		"- **search_knowledge_base**: Search the curated knowledge base",
		"- **search_web**: Search the public web",
		"Never invent URLs",
		"moderate length",
	}
	for _, e := range expected {
		if !strings.Contains(prompt, e) {
			t.Errorf("System prompt should contain '%s'", e)
		}
	}

	if strings.Contains(prompt, "Earlier turns") {
		t.Error("System prompt should not mention history when there is none")
	}
}

func TestRenderSystemPromptTones(t *testing.T) {
	tests := []struct {
		tone     string
		contains string
	}{
		{"", "moderate length"},
		{ToneDefault, "moderate length"},
		{ToneConcise, "a few sentences"},
		{ToneDetailed, "thorough answer"},
	}

	for _, tt := range tests {
		t.Run(tt.tone, func(t *testing.T) {
			prompt, err := RenderSystemPrompt(SystemPromptData{Tone: tt.tone, Tools: testTools()})
			if err != nil {
				t.Fatalf("Failed to render prompt: %v", err)
			}
			if !strings.Contains(prompt, tt.contains) {
				t.Errorf("Prompt for tone %q should contain '%s'", tt.tone, tt.contains)
			}
		})
	}
}

func TestRenderSystemPromptWithHistory(t *testing.T) {
	prompt, err := RenderSystemPrompt(SystemPromptData{Tools: testTools(), HasHistory: true})
	if err != nil {
		t.Fatalf("Failed to render prompt: %v", err)
	}
	if !strings.Contains(prompt, "Earlier turns of this conversation") {
		t.Error("System prompt should mention conversation history")
	}
}

func TestRenderSystemPromptUnknownTone(t *testing.T) {
	if _, err := RenderSystemPrompt(SystemPromptData{Tone: "pirate"}); err == nil {
		t.Error("Expected an error for an unknown tone")
	}
	if ValidTone("pirate") {
		t.Error("pirate should not be a valid tone")
	}
}

func TestRenderSystemPromptConsistency(t *testing.T) {
	data := SystemPromptData{Tone: ToneConcise, Tools: testTools()}
	first, err1 := RenderSystemPrompt(data)
	second, err2 := RenderSystemPrompt(data)
	if err1 != nil || err2 != nil {
		t.Fatalf("Render failed: %v %v", err1, err2)
	}
	if first != second {
		t.Error("System prompts should be consistent between calls")
	}
}
