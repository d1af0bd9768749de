package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed templates/*
var templatesFS embed.FS

const (
	ToneDefault  = "default"
	ToneDetailed = "detailed"
	ToneConcise  = "concise"
)

type ToolInfo struct {
	Name        string
	Description string
}

type SystemPromptData struct {
	Tone       string
	Tools      []ToolInfo
	HasHistory bool
}

// ValidTone reports whether tone selects a known answer style. Empty means default.
func ValidTone(tone string) bool {
	switch tone {
	case "", ToneDefault, ToneDetailed, ToneConcise:
		return true
	}
	return false
}

// RenderSystemPrompt renders the agent system prompt using embedded Go templates
func RenderSystemPrompt(data SystemPromptData) (string, error) {
	if !ValidTone(data.Tone) {
		return "", fmt.Errorf("unknown tone %q", data.Tone)
	}

	content, err := templatesFS.ReadFile("templates/system_prompt.md")
	if err != nil {
		return "", err
	}

	tmpl, err := template.New("system_prompt").Parse(string(content))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
