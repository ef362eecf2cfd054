// File path: cmd/accelmatch/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/nicodishanthj/accelmatch/internal/api"
	"github.com/nicodishanthj/accelmatch/internal/app"
	"github.com/nicodishanthj/accelmatch/internal/common"
)

func main() {
	logger := common.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("accelmatch: .env file not loaded", "error", err)
	} else {
		logger.Info("accelmatch: environment loaded from .env")
	}

	addr := flag.String("addr", ":8080", "listen address")
	dataDir := flag.String("data", defaultDataDir(), "directory holding csv exports, token lists, and caches")
	topK := flag.Int("k", 0, "default ranking depth (0 uses the built-in default)")
	threshold := flag.Float64("threshold", 0, "default relevance threshold (0 uses the built-in default)")
	flag.Parse()

	logger.Info("accelmatch: startup initiated", "addr", *addr, "data", *dataDir)

	cfg, err := app.LoadConfig()
	if err != nil {
		logger.Error("accelmatch: config load failed", "error", err)
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*dataDir); trimmed != "" && trimmed != cfg.DataDir {
		cfg = app.DefaultConfig(trimmed)
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("accelmatch: startup failed", "error", err)
		fmt.Println("startup error:", err)
		os.Exit(1)
	}
	defer application.Close()

	apiCfg := api.Config{TopK: *topK, Threshold: *threshold}
	server, err := api.NewServer(application.Catalog, application.Requests,
		application.Embedder, application.Recorder, application.Analyzer,
		application.Gaps, &apiCfg)
	if err != nil {
		logger.Error("accelmatch: server build failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("accelmatch: serving", "addr", *addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("accelmatch: server stopped", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}
}

func defaultDataDir() string {
	if dir := strings.TrimSpace(os.Getenv("ACCELMATCH_DATA")); dir != "" {
		return dir
	}
	return "data"
}
