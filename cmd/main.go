package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"transcribot/internal/config"
	"transcribot/internal/entities"
	"transcribot/internal/infrastructure"
	httpapi "transcribot/internal/interfaces/http"
	"transcribot/internal/repository"
	"transcribot/internal/usecases"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := newLogger()
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := repository.OpenMessageStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	waClient, err := infrastructure.NewWhatsAppClient(cfg.WhatsApp.SessionPath, logger)
	if err != nil {
		return err
	}

	transcriber := infrastructure.NewOpenAITranscriber(cfg.OpenAI.APIKey)

	pipeline := usecases.NewPipeline(cfg.WhatsApp, cfg.SendRate, waClient, transcriber, store, logger)
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		notifier, err := infrastructure.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			logger.Warn("telegram mirror disabled", "error", err)
		} else {
			pipeline.WithNotifier(notifier)
			logger.Info("telegram mirror enabled", "chat_id", cfg.Telegram.ChatID)
		}
	}

	// Each inbound message gets its own pipeline run; failures stay inside it.
	waClient.OnMessage(func(msg entities.Message) {
		go pipeline.Handle(context.Background(), msg)
	})

	if err := waClient.Connect(); err != nil {
		return err
	}
	defer waClient.Disconnect()

	srv := startHTTP(cfg, waClient, store, logger)

	// Block until shutdown is requested, then release in reverse order.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.Info("shutting down", "signal", sig.String())

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
	}
	return nil
}

func startHTTP(cfg *config.Config, waClient *infrastructure.WhatsAppClient, store httpapi.HistoryStore, logger *slog.Logger) *http.Server {
	if cfg.HTTP.Addr == "" {
		return nil
	}

	auth, err := usecases.NewAuthUsecase(cfg.HTTP)
	if err != nil {
		logger.Error("http api disabled", "error", err)
		return nil
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	httpapi.SetupRoutes(r, auth, waClient, store, httpapi.NewMiddleware(cfg.HTTP.JWTSecret))

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: r}
	go func() {
		logger.Info("http api listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
		}
	}()
	return srv
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
