// Command ingest chunks reference documents, embeds each chunk and writes the
// passages into the semantic index.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pageza/nutriplan/backend/config"
	"github.com/pageza/nutriplan/backend/internal/database"
	"github.com/pageza/nutriplan/backend/internal/logger"
	"github.com/pageza/nutriplan/backend/internal/service"
)

func main() {
	var (
		chunkSize = flag.Int("chunk-size", service.DefaultChunkSize, "maximum characters per chunk")
		overlap   = flag.Int("overlap", service.DefaultChunkOverlap, "characters shared by consecutive chunks")
		migrate   = flag.String("migrations", "migrations", "migrations directory")
	)
	flag.Usage = func() {
		log.Printf("usage: %s [flags] <file or directory>...", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	zlog := logger.New(cfg.LogLevel, cfg.LogFormat, !config.IsProduction())
	defer func() { _ = zlog.Sync() }()

	db, err := database.Open(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to open index database", zap.Error(err))
	}
	if err := database.RunMigrations(db, *migrate, zlog); err != nil {
		zlog.Fatal("failed to migrate index database", zap.Error(err))
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	wcfg := service.WatsonxConfig{
		APIKey:    cfg.IBMAPIKey,
		ProjectID: cfg.IBMProjectID,
		Region:    cfg.IBMRegion,
		ModelID:   cfg.EmbeddingModel,
	}
	// EMBEDDER must match the API server's or searches find nothing.
	embedder, err := service.NewEmbedder(cfg.Embedder, wcfg, service.NewIAMTokenSource(cfg.IBMAPIKey, "", httpClient), httpClient)
	if err != nil {
		zlog.Fatal("failed to create embedder", zap.Error(err))
	}
	zlog.Info("embedding passages", zap.String("model", embedder.Model()))
	index := service.NewPassageIndex(db, embedder, zlog)

	files, err := collectFiles(flag.Args())
	if err != nil {
		zlog.Fatal("failed to list input files", zap.Error(err))
	}

	ctx := context.Background()
	total := 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			zlog.Fatal("failed to read document", zap.String("path", path), zap.Error(err))
		}
		chunks := service.ChunkText(string(data), *chunkSize, *overlap)
		n, err := index.Add(ctx, filepath.Base(path), chunks)
		if err != nil {
			zlog.Fatal("failed to index document", zap.String("path", path), zap.Error(err))
		}
		zlog.Info("indexed document", zap.String("path", path), zap.Int("passages", n))
		total += n
	}

	count, err := index.Count(ctx)
	if err != nil {
		zlog.Fatal("failed to count passages", zap.Error(err))
	}
	zlog.Info("ingestion complete", zap.Int("written", total), zap.Int64("index_size", count))
}

// collectFiles expands directories into the .txt and .md files they contain.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".txt", ".md":
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
