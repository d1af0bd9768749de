package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SaiNageswarS/go-api-boot/config"
	"github.com/SaiNageswarS/go-api-boot/dotenv"
	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/kb-agent/app"
	"github.com/SaiNageswarS/kb-agent/appconfig"
	"github.com/SaiNageswarS/kb-agent/httpapi"
	"go.uber.org/zap"
)

func main() {
	dotenv.LoadEnv()

	// load config file
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:        ccfgg.HTTPPort,
		Handler:     httpapi.NewRouter(httpapi.NewHandler(boot.Service)),
		ReadTimeout: 30 * time.Second,
		// Answers can take several model and tool rounds.
		WriteTimeout: ccfgg.ModelTimeout()*time.Duration(ccfgg.MaxAgentTurns) + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Server listening",
			zap.String("addr", srv.Addr),
			zap.String("provider", ccfgg.LLMProvider),
			zap.String("model", boot.Model.GetModel()),
			zap.String("kbBackend", ccfgg.KBBackend),
			zap.String("sessionStore", ccfgg.SessionStore))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
}
