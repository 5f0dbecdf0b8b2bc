package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pageza/nutriplan/backend/config"
	"github.com/pageza/nutriplan/backend/internal/api"
	"github.com/pageza/nutriplan/backend/internal/database"
	"github.com/pageza/nutriplan/backend/internal/logger"
	"github.com/pageza/nutriplan/backend/internal/metrics"
	"github.com/pageza/nutriplan/backend/internal/middleware"
	"github.com/pageza/nutriplan/backend/internal/server"
	"github.com/pageza/nutriplan/backend/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog := logger.New(cfg.LogLevel, cfg.LogFormat, !config.IsProduction())
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx := context.Background()

	db, err := database.Open(cfg, zlog)
	if err != nil {
		return err
	}
	if err := database.RunMigrations(db, "migrations", zlog); err != nil {
		return err
	}

	// Redis backs sessions and the plan limiter when configured; without it
	// both fall back to process memory.
	var redisClient *redis.Client
	if cfg.SessionStore == "redis" {
		redisClient, err = database.NewRedisClient(cfg, zlog)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	httpClient := &http.Client{Timeout: cfg.GenerationTimeout + 10*time.Second}
	tokens := service.NewIAMTokenSource(cfg.IBMAPIKey, "", httpClient)
	generator := service.NewWatsonxClient(service.WatsonxConfig{
		APIKey:    cfg.IBMAPIKey,
		ProjectID: cfg.IBMProjectID,
		Region:    cfg.IBMRegion,
		ModelID:   cfg.GenerationModel,
	}, tokens, httpClient, zlog)
	embedder, err := service.NewEmbedder(cfg.Embedder, service.WatsonxConfig{
		APIKey:    cfg.IBMAPIKey,
		ProjectID: cfg.IBMProjectID,
		Region:    cfg.IBMRegion,
		ModelID:   cfg.EmbeddingModel,
	}, tokens, httpClient)
	if err != nil {
		return err
	}
	zlog.Info("query embedder selected", zap.String("model", embedder.Model()))

	index := service.NewPassageIndex(db, embedder, zlog)
	if n, err := index.Count(ctx); err != nil || n == 0 {
		zlog.Warn("semantic index is empty; run cmd/ingest before generating plans", zap.Error(err))
	}

	catalog := service.NewFoodCatalog(cfg.CatalogPath, zlog)
	columns, err := catalog.Columns()
	if err != nil {
		return err
	}
	zlog.Info("catalog loaded", zap.String("path", cfg.CatalogPath), zap.Strings("columns", columns))
	plans := service.NewPlanService(index, catalog, generator, m, cfg.GenerationTimeout, zlog)

	s3Config, err := config.NewS3Config(ctx, cfg)
	if err != nil {
		return err
	}
	var photos service.PhotoStore
	if s3Config != nil {
		photos = service.NewS3PhotoStore(s3Config)
	}
	classifier := service.NewHuggingFaceClassifier(cfg.VisionAPIURL, cfg.VisionAPIToken, &http.Client{Timeout: 60 * time.Second}, zlog)
	meals := service.NewMealService(
		service.NewVisionDescriber(classifier),
		service.NewMacroEstimator(generator, zlog),
		photos,
		zlog,
	)

	var sessions service.ISessionStore = service.NewMemorySessionStore(cfg.SessionTTL)
	if redisClient != nil {
		sessions = service.NewRedisSessionStore(redisClient, cfg.SessionTTL)
	}

	secret := cfg.SessionSecret
	if secret == "" {
		secret = randomSecret()
		zlog.Warn("SESSION_SECRET not set; using an ephemeral secret")
	}

	srv := server.NewServer(api.Services{
		Sessions:    sessions,
		Tokens:      service.NewSessionTokens(secret, cfg.SessionTTL),
		Plans:       plans,
		Meals:       meals,
		Catalog:     catalog,
		PlanLimiter: middleware.NewPlanRateLimiter(redisClient),
		Logger:      zlog,
	}, server.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Gatherer:       reg,
		Metrics:        m,
	})

	return srv.Start(net.JoinHostPort(cfg.ServerHost, cfg.ServerPort))
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
