// File path: internal/app/app.go
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nicodishanthj/accelmatch/internal/cache"
	"github.com/nicodishanthj/accelmatch/internal/common"
	"github.com/nicodishanthj/accelmatch/internal/corpus"
	"github.com/nicodishanthj/accelmatch/internal/coverage"
	"github.com/nicodishanthj/accelmatch/internal/embedding"
	"github.com/nicodishanthj/accelmatch/internal/ingest"
	"github.com/nicodishanthj/accelmatch/internal/sqlite"
	"github.com/nicodishanthj/accelmatch/internal/tokens"
)

// CatalogFields is the fixed ordered field list joined into catalog record
// texts. It matches the accelerator CSV export columns.
var CatalogFields = []string{"name", "description"}

// Config names every on-disk artifact the application reads or writes.
// All paths default relative to DataDir.
type Config struct {
	DataDir string

	CatalogCSV  string
	RequestsCSV string

	CatalogTokens string
	RequestTokens string

	CatalogVectors string
	CatalogTexts   string
	RequestVectors string
	RequestTexts   string

	SQLite sqlite.Config
}

// DefaultConfig returns the standard file layout under dir.
func DefaultConfig(dir string) Config {
	cfg := Config{DataDir: dir}
	return cfg.applyDefaults()
}

// LoadConfig builds the configuration from the environment. ACCELMATCH_DATA
// overrides the data directory.
func LoadConfig() (Config, error) {
	dir := strings.TrimSpace(os.Getenv("ACCELMATCH_DATA"))
	if dir == "" {
		dir = "data"
	}
	sqliteCfg, err := sqlite.LoadConfig()
	if err != nil {
		return Config{}, err
	}
	cfg := Config{DataDir: dir, SQLite: sqliteCfg}
	return cfg.applyDefaults(), nil
}

func (c Config) applyDefaults() Config {
	dir := c.DataDir
	if strings.TrimSpace(dir) == "" {
		dir = "data"
		c.DataDir = dir
	}
	def := func(current, name string) string {
		if strings.TrimSpace(current) != "" {
			return current
		}
		return filepath.Join(dir, name)
	}
	c.CatalogCSV = def(c.CatalogCSV, "accelerators.csv")
	c.RequestsCSV = def(c.RequestsCSV, "u_hack.csv")
	c.CatalogTokens = def(c.CatalogTokens, "accel_tokens.txt")
	c.RequestTokens = def(c.RequestTokens, "hack_tokens.txt")
	c.CatalogVectors = def(c.CatalogVectors, "accel_vectors.bin")
	c.CatalogTexts = def(c.CatalogTexts, "accel_text.txt")
	c.RequestVectors = def(c.RequestVectors, "user_vectors.bin")
	c.RequestTexts = def(c.RequestTexts, "user_text.txt")
	if strings.TrimSpace(c.SQLite.Path) == "" {
		c.SQLite.Path = filepath.Join(dir, "requests.db")
	}
	return c
}

// App owns the wired component graph: the record store, both corpus
// indexes, the embedding service, and the analysis services built on them.
type App struct {
	Config   Config
	Store    *sqlite.Store
	Embedder *embedding.Service
	Catalog  *corpus.Index
	Requests *corpus.Index
	Gaps     *tokens.GapTracker
	Recorder *ingest.Recorder
	Analyzer *coverage.Analyzer
}

// New builds the application: open the record store (seeding it from the
// request CSV on first run), load vocabularies, then load or build both
// corpus indexes from their cache pairs.
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := common.Logger()
	cfg = cfg.applyDefaults()

	store, err := sqlite.OpenWithConfig(cfg.SQLite)
	if err != nil {
		return nil, fmt.Errorf("open request store: %w", err)
	}
	requestRows, err := loadRequestRows(ctx, store, cfg.RequestsCSV)
	if err != nil {
		store.Close()
		return nil, err
	}

	catalogRows, err := corpus.LoadCSVIfPresent(cfg.CatalogCSV)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load catalog csv: %w", err)
	}
	if len(catalogRows) == 0 {
		logger.Warn("app: catalog csv missing or empty", "path", cfg.CatalogCSV)
	}

	catalogVocab, err := tokens.LoadVocabulary(cfg.CatalogTokens)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load catalog tokens: %w", err)
	}
	requestVocab, err := tokens.LoadVocabulary(cfg.RequestTokens)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load request tokens: %w", err)
	}

	embedder, err := embedding.NewServiceFromEnv(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build embedding service: %w", err)
	}

	catalog := corpus.NewIndex("catalog", CatalogFields,
		cache.NewPair(cfg.CatalogVectors, cfg.CatalogTexts), embedder)
	if err := catalog.Load(ctx, catalogRows); err != nil {
		store.Close()
		return nil, fmt.Errorf("load catalog index: %w", err)
	}
	requests := corpus.NewIndex("requests", sqlite.RequestFields,
		cache.NewPair(cfg.RequestVectors, cfg.RequestTexts), embedder)
	if err := requests.Load(ctx, requestRows); err != nil {
		store.Close()
		return nil, fmt.Errorf("load request index: %w", err)
	}

	gaps := tokens.NewGapTracker(catalogVocab, requestVocab)
	gaps.Rebuild(requests.Texts())

	logger.Info("app: ready",
		"catalog", catalog.Len(), "requests", requests.Len(),
		"provider", embedder.Name(), "gap_tokens", gaps.Size())
	return &App{
		Config:   cfg,
		Store:    store,
		Embedder: embedder,
		Catalog:  catalog,
		Requests: requests,
		Gaps:     gaps,
		Recorder: ingest.NewRecorder(requests, store, gaps),
		Analyzer: coverage.NewAnalyzer(catalog, requests, gaps),
	}, nil
}

// Close releases the record store.
func (a *App) Close() error {
	if a == nil || a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

// loadRequestRows returns the request corpus rows from the store, seeding
// the store from the legacy CSV export when the table is empty.
func loadRequestRows(ctx context.Context, store *sqlite.Store, csvPath string) ([]corpus.Row, error) {
	logger := common.Logger()
	count, err := store.CountRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("count requests: %w", err)
	}
	if count == 0 {
		seed, err := corpus.LoadCSVIfPresent(csvPath)
		if err != nil {
			return nil, fmt.Errorf("load request csv: %w", err)
		}
		if len(seed) > 0 {
			if err := store.ImportRequests(ctx, sqlite.FromRows(seed)); err != nil {
				return nil, fmt.Errorf("seed request store: %w", err)
			}
			logger.Info("app: request store seeded from csv", "path", csvPath, "records", len(seed))
		}
	}
	records, err := store.AllRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan requests: %w", err)
	}
	return sqlite.ToRows(records), nil
}
