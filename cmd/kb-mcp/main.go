package main

import (
	"github.com/SaiNageswarS/go-api-boot/config"
	"github.com/SaiNageswarS/go-api-boot/dotenv"
	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/kb-agent/app"
	"github.com/SaiNageswarS/kb-agent/appconfig"
	"github.com/SaiNageswarS/kb-agent/mcpserver"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Serves the knowledge base and web search tools, plus the full agent as an
// "ask" tool, to MCP clients over stdio.
func main() {
	dotenv.LoadEnv()

	ccfgg := &appconfig.AppConfig{}
	if err := config.LoadConfig("config.ini", ccfgg); err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	ccfgg.ApplyDefaults()
	if err := ccfgg.Validate(); err != nil {
		logger.Fatal("Invalid config", zap.Error(err))
	}

	boot, err := app.Build(ccfgg)
	if err != nil {
		logger.Fatal("Failed to build application", zap.Error(err))
	}
	defer boot.Close()

	s := mcpserver.NewServer("kb-agent-mcp", "1.0.0", boot.Agent.Tools(), boot.Service)
	if err := server.ServeStdio(s); err != nil {
		logger.Error("Failed to serve MCP", zap.Error(err))
	}
}
