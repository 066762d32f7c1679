// Documind is a RAG document Q&A backend.
//
// Users upload documents over HTTP; the server extracts text, chunks it,
// embeds the chunks into Qdrant, and answers questions with an LLM using
// retrieved chunks (and prior conversation turns) as context.
//
// Usage:
//
//	# Start server with defaults
//	documind
//
//	# Configure via file and environment
//	documind -config config.yaml
//	SERVER_HTTP_PORT=9000 AUTH_JWT_SECRET=... documind
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/documind/internal/auth"
	"github.com/fyrsmithlabs/documind/internal/chat"
	"github.com/fyrsmithlabs/documind/internal/config"
	"github.com/fyrsmithlabs/documind/internal/documents"
	"github.com/fyrsmithlabs/documind/internal/embeddings"
	httpserver "github.com/fyrsmithlabs/documind/internal/http"
	"github.com/fyrsmithlabs/documind/internal/parser"
	"github.com/fyrsmithlabs/documind/internal/retriever"
	"github.com/fyrsmithlabs/documind/internal/store"
	"github.com/fyrsmithlabs/documind/internal/tasks"
	"github.com/fyrsmithlabs/documind/internal/telemetry"
	"github.com/fyrsmithlabs/documind/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	workerMode := flag.Bool("worker", false, "run as a queue worker instead of the HTTP server")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  documind            Start the API server\n")
			fmt.Fprintf(os.Stderr, "  documind -worker    Start a processing worker\n")
			fmt.Fprintf(os.Stderr, "  documind version    Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath, *workerMode); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Shutdown complete")
}

func printVersion() {
	fmt.Printf("documind\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires all dependencies and blocks until the context is cancelled.
func run(ctx context.Context, configPath string, workerMode bool) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Starting documind",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("worker_mode", workerMode),
		zap.Bool("async_uploads", cfg.Upload.Async))

	tel, err := telemetry.New(telemetry.Config{
		ServiceName:    "documind",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	deps, err := initDependencies(ctx, cfg, workerMode, logger)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}
	defer deps.Close()

	processor := documents.NewProcessor(deps.store, deps.parser, deps.embedder, deps.vectors,
		documents.ProcessorConfig{
			ChunkSize:    cfg.Upload.ChunkSize,
			ChunkOverlap: cfg.Upload.ChunkOverlap,
		}, logger)

	if workerMode {
		return runWorker(ctx, cfg, deps, processor, logger)
	}

	var dispatcher documents.Dispatcher
	if cfg.Upload.Async {
		dispatcher = tasks.NewDispatcher(deps.natsConn, cfg.NATS.Subject, logger)
	}

	docService, err := documents.NewService(deps.store, processor, deps.vectors, dispatcher,
		documents.ServiceConfig{
			Dir:               cfg.Upload.Dir,
			MaxFileSize:       cfg.Upload.MaxFileSize,
			AllowedExtensions: cfg.Upload.AllowedExtensions,
			Async:             cfg.Upload.Async,
		}, logger)
	if err != nil {
		return fmt.Errorf("initializing document service: %w", err)
	}

	search, err := retriever.New(deps.vectors, retriever.Config{
		Limit:      cfg.Retrieval.Limit,
		DocWeight:  cfg.Retrieval.DocumentWeight,
		ChatWeight: cfg.Retrieval.ChatWeight,
	})
	if err != nil {
		return fmt.Errorf("initializing retriever: %w", err)
	}

	generator, err := chat.NewGenerator(chat.GeneratorConfig{
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.ChatModel,
		APIKey:      cfg.OpenAI.APIKey.Value(),
		Temperature: cfg.OpenAI.Temperature,
		MaxTokens:   cfg.OpenAI.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("initializing generator: %w", err)
	}

	chatService := chat.NewService(deps.embedder, search, deps.vectors, deps.store, generator, logger)

	tokens, err := auth.NewTokens(auth.Config{
		Secret:   []byte(cfg.Auth.JWTSecret.Value()),
		TokenTTL: cfg.Auth.TokenTTL.Duration(),
	})
	if err != nil {
		return fmt.Errorf("initializing token issuer: %w", err)
	}

	metrics := httpserver.NewHTTPMetrics(logger)
	srv, err := httpserver.NewServer(httpserver.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
	},
		tokens,
		httpserver.NewUserHandler(deps.store, tokens, logger),
		httpserver.NewUploadHandler(docService, logger),
		httpserver.NewChatHandler(chatService, deps.store, logger),
		metrics,
		logger,
	)
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// runWorker consumes processing jobs from the queue until cancelled.
func runWorker(ctx context.Context, cfg *config.Config, deps *dependencies, processor *documents.Processor, logger *zap.Logger) error {
	if deps.natsConn == nil {
		return fmt.Errorf("worker mode requires a NATS connection")
	}

	worker := tasks.NewWorker(deps.natsConn, cfg.NATS.Subject, cfg.NATS.Queue, processor, logger)
	if err := worker.Start(ctx); err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}

	<-ctx.Done()
	return worker.Stop()
}

// dependencies holds all infrastructure dependencies.
type dependencies struct {
	store    *store.Store
	vectors  *vectorstore.Store
	embedder *embeddings.Service
	parser   *parser.Parser
	natsConn *nats.Conn
}

// Close releases all infrastructure resources.
func (d *dependencies) Close() {
	if d.natsConn != nil {
		d.natsConn.Close()
	}
	if d.vectors != nil {
		_ = d.vectors.Close()
	}
	if d.store != nil {
		d.store.Close()
	}
}

// initDependencies connects to PostgreSQL, Qdrant, the embedding API, and
// NATS when async uploads are enabled or the process runs as a worker.
func initDependencies(ctx context.Context, cfg *config.Config, workerMode bool, logger *zap.Logger) (*dependencies, error) {
	st, err := store.New(ctx, cfg.Database.ConnString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	logger.Info("Connected to PostgreSQL",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name))

	vectors, err := vectorstore.New(vectorstore.Config{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		UseTLS:     cfg.Qdrant.UseTLS,
		VectorSize: uint64(cfg.OpenAI.EmbeddingDim),
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}
	logger.Info("Connected to Qdrant",
		zap.String("host", cfg.Qdrant.Host),
		zap.Int("port", cfg.Qdrant.Port))

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.EmbeddingModel,
		APIKey:  cfg.OpenAI.APIKey.Value(),
		Dim:     cfg.OpenAI.EmbeddingDim,
	})
	if err != nil {
		_ = vectors.Close()
		st.Close()
		return nil, fmt.Errorf("initializing embedding service: %w", err)
	}

	deps := &dependencies{
		store:    st,
		vectors:  vectors,
		embedder: embedder,
		parser:   parser.New(),
	}

	if queueRequired(cfg, workerMode) {
		nc, err := tasks.Connect(tasks.Config{
			URL:     cfg.NATS.URL,
			Subject: cfg.NATS.Subject,
			Queue:   cfg.NATS.Queue,
		})
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		deps.natsConn = nc
		logger.Info("Connected to NATS", zap.String("url", cfg.NATS.URL))
	}

	return deps, nil
}

// queueRequired reports whether a NATS connection must be established.
// Workers consume from the queue even when uploads are configured
// synchronous, so worker mode always needs the connection.
func queueRequired(cfg *config.Config, workerMode bool) bool {
	return cfg.Upload.Async || workerMode
}

// initLogger initializes the structured logger.
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Server.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
