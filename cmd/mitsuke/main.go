// Package main is the Mitsuke CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hyperjump/mitsuke/internal/ai"
	"github.com/hyperjump/mitsuke/internal/catalog"
	"github.com/hyperjump/mitsuke/internal/cli"
	"github.com/hyperjump/mitsuke/internal/config"
	"github.com/hyperjump/mitsuke/internal/keyword"
	"github.com/hyperjump/mitsuke/internal/models"
	"github.com/hyperjump/mitsuke/internal/planner"
	"github.com/hyperjump/mitsuke/internal/retrieval"
	"github.com/hyperjump/mitsuke/internal/server"
	"github.com/hyperjump/mitsuke/internal/session"
	"github.com/hyperjump/mitsuke/internal/store"
	"github.com/hyperjump/mitsuke/internal/watcher"
	"github.com/hyperjump/mitsuke/internal/workflow"
	"github.com/hyperjump/mitsuke/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/mitsuke/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "mitsuke server" from the project dir uses the project's config.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "build":
		runBuild()
	case "query":
		runQuery()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("mitsuke version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (retrieval traces, artifact reloads, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if !components.Store.Loaded() {
		logger.Warn("catalog artifacts not loaded; run \"mitsuke build\" first",
			zap.String("vector_index", cfg.Storage.VectorIndexPath),
			zap.String("database", cfg.Storage.DatabasePath),
		)
	}

	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	artifactWatch := watcher.NewArtifactWatcher(
		[]string{cfg.Storage.VectorIndexPath, cfg.Storage.DatabasePath},
		func() {
			if err := components.Store.Restore(context.Background()); err != nil {
				logger.Warn("artifact reload failed", zap.Error(err))
				return
			}
			logger.Info("catalog reloaded", zap.Int("products", components.Store.Size()))
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := artifactWatch.Start(watchCtx); err != nil {
		logger.Warn("artifact watcher unavailable", zap.Error(err))
	}
	defer artifactWatch.Stop()

	srv := server.NewServer(
		components.Orchestrator,
		components.Store,
		components.KeywordIndex,
		components.Transcriber,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	maxItems := fs.Int("max-items", 0, "cap on catalog rows (0 uses the config value)")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	limit := cfg.Catalog.MaxItems
	if *maxItems > 0 {
		limit = *maxItems
	}
	loader := catalog.NewLoader(cfg.Catalog.CSVPath, cfg.Catalog.ImagesPath,
		catalog.WithMaxItems(limit),
		catalog.WithLogger(logger),
	)
	items, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Catalog load failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d catalog items\n", len(items))

	encoder := newEncoder(cfg, logger)
	st, err := store.NewProductStore(
		cfg.Storage.VectorIndexPath,
		cfg.Storage.DatabasePath,
		cfg.Encoder.Dimensions,
		store.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Store init failed: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	start := time.Now()
	if err := st.Build(ctx, items, encoder); err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}
	if err := st.Persist(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Persist failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Indexed %d products in %s\n", st.Size(), time.Since(start).Round(time.Millisecond))

	keywordIndex, err := keyword.NewCatalogIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Keyword index init failed: %v\n", err)
		os.Exit(1)
	}
	defer keywordIndex.Close()
	if err := keywordIndex.IndexItems(ctx, st.Items()); err != nil {
		fmt.Fprintf(os.Stderr, "Keyword indexing failed: %v\n", err)
		os.Exit(1)
	}
	docs, _ := keywordIndex.DocCount()
	fmt.Printf("Keyword index holds %d documents\n", docs)
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL; use --server \"\" for direct mode")
	imagePath := fs.String("image", "", "image file to search with")
	gender := fs.String("gender", "", "gender preference (men, women, both)")
	sessionID := fs.String("session", "", "session ID for follow-up queries")
	outputFormat := fs.String("output", cli.OutputText, "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	text := ""
	if fs.NArg() > 0 {
		text = fs.Arg(0)
		for _, arg := range fs.Args()[1:] {
			text += " " + arg
		}
	}
	if text == "" && *imagePath == "" {
		fmt.Fprintf(os.Stderr, "Usage: mitsuke query [flags] <text>\n")
		fs.PrintDefaults()
		os.Exit(1)
	}

	req := &models.QueryRequest{
		Text:      text,
		ImagePath: *imagePath,
		Gender:    *gender,
		SessionID: *sessionID,
	}

	if *serverURL != "" {
		resp, err := queryViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteQueryResponse(os.Stdout, resp, *outputFormat); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	resp := components.Orchestrator.Run(context.Background(), req)
	if err := cli.WriteQueryResponse(os.Stdout, resp, *outputFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// queryViaHTTP sends the request to a running server. Text-only requests go as
// JSON; requests with an image upload the file as multipart form data.
func queryViaHTTP(serverURL string, req *models.QueryRequest) (*models.QueryResponse, error) {
	var (
		body        io.Reader
		contentType string
	)
	if req.ImagePath == "" {
		payload, err := json.Marshal(req)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	} else {
		buf := &bytes.Buffer{}
		mw := multipart.NewWriter(buf)
		f, err := os.Open(req.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("open image: %w", err)
		}
		defer f.Close()
		part, err := mw.CreateFormFile("image", filepath.Base(req.ImagePath))
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, f); err != nil {
			return nil, err
		}
		_ = mw.WriteField("text", req.Text)
		_ = mw.WriteField("gender", req.Gender)
		_ = mw.WriteField("session_id", req.SessionID)
		if err := mw.Close(); err != nil {
			return nil, err
		}
		body = buf
		contentType = mw.FormDataContentType()
	}

	httpReq, err := http.NewRequest(http.MethodPost, serverURL+"/api/v1/query", body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", contentType)

	client := &http.Client{Timeout: 120 * time.Second}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("is the server running? %w", err)
	}
	defer httpResp.Body.Close()

	var resp models.QueryResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL; use --server \"\" for direct mode")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		status, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	fmt.Printf("Loaded:    %v\n", components.Store.Loaded())
	fmt.Printf("Products:  %d\n", components.Store.Size())
	if components.KeywordIndex != nil {
		if docs, err := components.KeywordIndex.DocCount(); err == nil {
			fmt.Printf("Keyword:   %d documents\n", docs)
		}
	}
	fmt.Printf("Database:  %s\n", cfg.Storage.DatabasePath)
	fmt.Printf("Vectors:   %s\n", cfg.Storage.VectorIndexPath)
}

func statusViaHTTP(serverURL string) (map[string]any, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("is the server running? %w", err)
	}
	defer resp.Body.Close()
	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return status, nil
}

// Components holds initialized services.
type Components struct {
	Store        *store.ProductStore
	Encoder      ai.Encoder
	Memory       *session.Memory
	Planner      *planner.Planner
	Engine       *retrieval.Engine
	Orchestrator *workflow.Orchestrator
	KeywordIndex *keyword.CatalogIndex
	Transcriber  ai.Transcriber
}

func (c *Components) Close() {
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

// newEncoder selects the embedding backend. An empty encoder base URL selects
// the deterministic in-process encoder, which keeps the pipeline runnable
// without a model service.
func newEncoder(cfg *config.Config, logger *zap.Logger) ai.Encoder {
	if cfg.Encoder.BaseURL == "" {
		if logger != nil {
			logger.Warn("no encoder service configured, using deterministic encoder",
				zap.Int("dimensions", cfg.Encoder.Dimensions))
		}
		return ai.NewMockEncoder(cfg.Encoder.Dimensions)
	}
	return ai.NewOpenAIEncoder(ai.ClientOptions{
		BaseURL: cfg.Encoder.BaseURL,
		APIKey:  cfg.Encoder.APIKey,
		Model:   cfg.Encoder.Model,
		Timeout: time.Duration(cfg.Encoder.TimeoutSeconds) * time.Second,
	}, cfg.Encoder.Dimensions, cfg.Encoder.CacheSize)
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	encoder := newEncoder(cfg, logger)

	st, err := store.NewProductStore(
		cfg.Storage.VectorIndexPath,
		cfg.Storage.DatabasePath,
		cfg.Encoder.Dimensions,
		store.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := st.Restore(context.Background()); err != nil {
		if logger != nil {
			logger.Warn("catalog restore skipped (run \"mitsuke build\")", zap.Error(err))
		}
	}

	keywordIndex, err := keyword.NewCatalogIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	memory := session.NewMemory(
		time.Duration(cfg.Session.TTLMinutes)*time.Minute,
		time.Duration(cfg.Session.SweepMinutes)*time.Minute,
		cfg.Session.MaxHistory,
	)

	var expander ai.Expander
	var textClassifier ai.TextClassifier
	var transcriber ai.Transcriber
	if !cfg.Expander.Disabled && cfg.Expander.BaseURL != "" {
		opts := ai.ClientOptions{
			BaseURL: cfg.Expander.BaseURL,
			APIKey:  cfg.Expander.APIKey,
			Model:   cfg.Expander.Model,
			Timeout: time.Duration(cfg.Expander.TimeoutSeconds) * time.Second,
		}
		expander = ai.NewOpenAIExpander(opts)
		textClassifier = ai.NewOpenAITextClassifier(opts)
		transcriber = ai.NewOpenAITranscriber(ai.ClientOptions{
			BaseURL: cfg.Expander.BaseURL,
			APIKey:  cfg.Expander.APIKey,
			Timeout: time.Duration(cfg.Expander.TimeoutSeconds) * time.Second,
		})
	} else if logger != nil {
		logger.Info("query expansion service not configured, using rule-based planning")
	}

	vocab := catalog.BuildVocabulary(st.Items())
	gate := ai.NewZeroShotGate(encoder)
	describer := ai.NewZeroShotDescriber(encoder, vocab.ArticleTypes, vocab.Colors, vocab.Genders)

	plannerOpts := []planner.Option{planner.WithMaxSubQueries(cfg.Search.MaxSubQueries)}
	if logger != nil {
		plannerOpts = append(plannerOpts, planner.WithLogger(logger))
	}
	queryPlanner := planner.New(memory, expander, plannerOpts...)
	engine := retrieval.NewEngine(st, encoder, cfg.Search, logger)

	orchestrator := workflow.NewOrchestrator(workflow.Deps{
		Store:           st,
		Planner:         queryPlanner,
		Engine:          engine,
		Encoder:         encoder,
		ImageClassifier: gate,
		Describer:       describer,
		TextClassifier:  textClassifier,
		Logger:          logger,
	})

	return &Components{
		Store:        st,
		Encoder:      encoder,
		Memory:       memory,
		Planner:      queryPlanner,
		Engine:       engine,
		Orchestrator: orchestrator,
		KeywordIndex: keywordIndex,
		Transcriber:  transcriber,
	}, nil
}

func printUsage() {
	fmt.Println(`mitsuke - Multimodal fashion product discovery

Usage:
  mitsuke server [flags]          Start the HTTP server
  mitsuke build [flags]           Build the catalog indexes from the CSV source
  mitsuke query [flags] <text>    Run a discovery query
  mitsuke status [flags]          Show catalog/index status
  mitsuke version                 Show version
  mitsuke help                    Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/mitsuke/config.yaml)
  --debug            Enable debug logging (retrieval traces, artifact reloads, etc.)

Build Flags:
  --config string    Config file path
  --max-items int    Cap on catalog rows (0 uses the config value)

Query Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct mode.
  --image string     Image file to search with
  --gender string    Gender preference: men, women, or both
  --session string   Session ID, reuse across queries for follow-ups
  --output string    Output format: text or json (default: text)

Examples:
  mitsuke build
  mitsuke query red summer dress
  mitsuke query --image shirt.jpg
  mitsuke query --gender women --session s1 "formal shoes"
  mitsuke status`)
}
