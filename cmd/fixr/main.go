package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mr1hm/fixr/internal/api"
	"github.com/mr1hm/fixr/internal/config"
	"github.com/mr1hm/fixr/internal/draft"
	"github.com/mr1hm/fixr/internal/feed"
	"github.com/mr1hm/fixr/internal/logging"
	"github.com/mr1hm/fixr/internal/metrics"
	"github.com/mr1hm/fixr/internal/ratelimit"
	"github.com/mr1hm/fixr/internal/repository"
	"github.com/mr1hm/fixr/internal/service"
	"github.com/mr1hm/fixr/internal/share"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	metrics.Register()

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port, "store", cfg.Store.Driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := repository.Open(ctx, cfg.Store)
	if err != nil {
		logging.Fatalf("Failed to initialize store: %v", err)
	}
	defer repo.Close()

	completer, closeAI, err := newCompleter(ctx, cfg.AI)
	if err != nil {
		logging.Fatalf("Failed to initialize AI client: %v", err)
	}
	defer closeAI()

	drafts := draft.NewGenerator(completer, cfg.AI.Timeout)
	if drafts.AIEnabled() {
		slog.Info("AI drafting enabled", "provider", cfg.AI.Provider, "model", completer.Model())
	} else {
		slog.Info("AI drafting disabled, using templates")
	}

	broadcaster := feed.NewBroadcaster()
	limiter := ratelimit.New(cfg.RateLimit.Max, cfg.RateLimit.Window, nil)
	svc := service.New(repo, drafts, limiter, broadcaster, service.Config{
		PublicBaseURL: cfg.Share.PublicBaseURL,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.RequestID(slog.Default()))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", api.HeaderXRequestID},
		ExposeHeaders:    []string{"Content-Length", "Retry-After", api.HeaderXRequestID},
		AllowCredentials: false,
	}))
	router.Use(api.RateLimitMiddleware(cfg.RateLimit.GlobalRPS))

	handler := api.NewHandler(svc, drafts, broadcaster, share.NewQRCoder(cfg.Share.QRSize, "M"))
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	broadcaster.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}

// newCompleter returns a nil Completer when the selected provider has no key.
func newCompleter(ctx context.Context, cfg config.AIConfig) (draft.Completer, func(), error) {
	noop := func() {}
	if !cfg.Enabled() {
		return nil, noop, nil
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		client, err := draft.NewGeminiClient(ctx, cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, err
		}
		return client, func() {
			if err := client.Close(); err != nil {
				slog.Warn("error closing gemini client", "error", err)
			}
		}, nil
	default:
		return draft.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), noop, nil
	}
}
