// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/promptbattle/internal/assistant"
	"github.com/jason-s-yu/promptbattle/internal/auth"
	"github.com/jason-s-yu/promptbattle/internal/battle"
	"github.com/jason-s-yu/promptbattle/internal/cache"
	"github.com/jason-s-yu/promptbattle/internal/config"
	"github.com/jason-s-yu/promptbattle/internal/database"
	"github.com/jason-s-yu/promptbattle/internal/handlers"
	"github.com/jason-s-yu/promptbattle/internal/judge"
	"github.com/jason-s-yu/promptbattle/internal/realtime"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// backend is a battle store the server can also health-check and close.
type backend interface {
	battle.Store
	Ping(ctx context.Context) error
	Close()
}

func main() {
	logger := logrus.New()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	if cfg.Server.LogJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.Auth.SigningSeed != "" {
		err = auth.InitFromSeed(cfg.Auth.SigningSeed, cfg.Auth.TokenExpire)
	} else {
		logger.Warn("auth.signing_seed not set; tokens will not survive a restart")
		err = auth.Init(cfg.Auth.TokenExpire)
	}
	if err != nil {
		logger.Fatalf("failed to init auth: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := openStore(ctx, cfg, logger)
	defer store.Close()

	deps := battle.Deps{Store: store, Logger: logger}
	var limiter *cache.RateLimiter
	if cfg.Redis.Enabled() {
		rdb, err := cache.Connect(ctx, cfg.Redis)
		if err != nil {
			logger.Fatalf("failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		deps.Broker = realtime.NewRedisBroker(rdb, logger)
		deps.Locker = cache.NewRedisLocker(rdb)
		deps.Leaderboard = cache.NewLeaderboard(rdb, cfg.Redis.LeaderboardTTL)
		limiter = cache.NewRateLimiter(rdb, cfg.Redis.RateLimitMax, cfg.Redis.RateLimitWindow)
		logger.Infof("using redis at %s", cfg.Redis.Addr)
	} else {
		logger.Warn("redis.addr not set; room feeds and judge locks are local to this process")
		deps.Broker = realtime.NewMemoryBroker(logger)
		deps.Locker = cache.NewLocalLocker()
	}

	aiConfig := openai.DefaultConfig(cfg.AI.APIKey)
	if cfg.AI.BaseURL != "" {
		aiConfig.BaseURL = cfg.AI.BaseURL
	}
	if cfg.AI.APIKey == "" {
		logger.Warn("ai.api_key not set; judging and assistant requests will fail")
	}
	api := openai.NewClientWithConfig(aiConfig)

	evaluator, err := judge.NewOpenAIEvaluator(api, cfg.AI.JudgeModel)
	if err != nil {
		logger.Fatalf("failed to build judge: %v", err)
	}
	deps.Evaluator = evaluator

	svc := battle.NewService(deps, battle.Settings{
		MaxPlayers:       cfg.Game.MaxPlayers,
		CountdownSeconds: cfg.Game.CountdownSeconds,
		CodeAttempts:     cfg.Game.CodeAttempts,
		MaxPromptLength:  cfg.Game.MaxPromptLength,
		JudgeTimeout:     cfg.Game.JudgeTimeout,
		JudgeLockTTL:     cfg.Game.JudgeLockTTL,
	})
	svc.Coordinator().Start(ctx)
	defer svc.Coordinator().Stop()

	sweeper, err := battle.NewSweeper(svc, cfg.Game.SweepInterval, logger)
	if err != nil {
		logger.Fatalf("failed to build sweeper: %v", err)
	}
	if err := sweeper.Start(ctx); err != nil {
		logger.Fatalf("failed to start sweeper: %v", err)
	}
	defer sweeper.Stop()

	server := &handlers.Server{
		Service: svc,
		Assistant: assistant.New(api, assistant.Config{
			ChatModel: cfg.AI.ChatModel,
			TTSModel:  cfg.AI.TTSModel,
			TTSVoice:  cfg.AI.TTSVoice,
		}),
		Health:         store,
		Logger:         logger,
		OriginPatterns: cfg.Server.OriginPatterns,
	}
	if limiter != nil {
		server.Limiter = limiter
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: server.Routes(),
	}

	go func() {
		logger.Infof("Running on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) backend {
	if cfg.Database.URL == "" {
		logger.Warn("database.url not set; using in-memory store, data is lost on exit")
		return database.NewMemoryStore()
	}
	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(ctx, cfg.Database.URL); err != nil {
			logger.Fatalf("failed to migrate database: %v", err)
		}
	}
	store, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	logger.Info("connected to postgres")
	return store
}
