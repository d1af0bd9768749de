package agentboot

import (
	"time"

	"github.com/SaiNageswarS/kb-agent/llm"
)

type AgentBuilder struct {
	config AgentConfig
}

func NewAgentBuilder() *AgentBuilder {
	return &AgentBuilder{
		config: AgentConfig{
			MaxTurns:     6,
			MaxTokens:    2000,
			Temperature:  0.2,
			ModelTimeout: 60 * time.Second,
			ToolTimeout:  15 * time.Second,
		},
	}
}

func (b *AgentBuilder) WithModel(client llm.LLMClient) *AgentBuilder {
	b.config.Model = client
	return b
}

func (b *AgentBuilder) AddTool(tool MCPTool) *AgentBuilder {
	b.config.Tools = append(b.config.Tools, tool)
	return b
}

func (b *AgentBuilder) WithMaxTokens(max int) *AgentBuilder {
	b.config.MaxTokens = max
	return b
}

func (b *AgentBuilder) WithMaxTurns(maxTurns int) *AgentBuilder {
	b.config.MaxTurns = maxTurns
	return b
}

func (b *AgentBuilder) WithTemperature(temp float64) *AgentBuilder {
	b.config.Temperature = temp
	return b
}

func (b *AgentBuilder) WithModelTimeout(d time.Duration) *AgentBuilder {
	b.config.ModelTimeout = d
	return b
}

func (b *AgentBuilder) WithToolTimeout(d time.Duration) *AgentBuilder {
	b.config.ToolTimeout = d
	return b
}

func (b *AgentBuilder) Build() *Agent {
	if b.config.MaxTurns < 1 {
		b.config.MaxTurns = 1
	}
	return &Agent{config: b.config}
}
