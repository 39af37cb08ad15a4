package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tnedr/cognitive-memory-core/internal/config"
	"github.com/tnedr/cognitive-memory-core/internal/domain"
	logpkg "github.com/tnedr/cognitive-memory-core/internal/logger"
	"github.com/tnedr/cognitive-memory-core/internal/metrics"
	"github.com/tnedr/cognitive-memory-core/internal/repository/blockstore"
	"github.com/tnedr/cognitive-memory-core/internal/repository/embcache"
	"github.com/tnedr/cognitive-memory-core/internal/repository/graphmem"
	"github.com/tnedr/cognitive-memory-core/internal/repository/kv"
	"github.com/tnedr/cognitive-memory-core/internal/repository/vectorindex"
	chiTransport "github.com/tnedr/cognitive-memory-core/internal/transport/chi"
	openaiEmb "github.com/tnedr/cognitive-memory-core/internal/transport/openai"
	compressuc "github.com/tnedr/cognitive-memory-core/internal/usecase/compress"
	decayuc "github.com/tnedr/cognitive-memory-core/internal/usecase/decay"
	knowledgeuc "github.com/tnedr/cognitive-memory-core/internal/usecase/knowledge"
	reflectionuc "github.com/tnedr/cognitive-memory-core/internal/usecase/reflection"
	retrievaluc "github.com/tnedr/cognitive-memory-core/internal/usecase/retrieval"
	"github.com/tnedr/cognitive-memory-core/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting cmemory API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("knowledge_path", cfg.Storage.KnowledgePath),
	)

	// Register application metrics explicitly (no init())
	metrics.Register()

	ctx := context.Background()

	// Build the embedder chain: OpenAI base, optionally wrapped in a
	// key-value cache when a cache backend is configured.
	var embedder domain.Embedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	if len(cfg.Cache.Addrs) > 0 {
		kvStore, err := kv.New(kv.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer kvStore.Close()

		if err := kvStore.Ping(ctx); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))

		embedder = embcache.New(embedder, kvStore, metrics.EmbeddingCacheTotal, logger)
	}

	// Repositories
	store, err := blockstore.New(cfg.Storage.KnowledgePath)
	if err != nil {
		logger.Fatal("Failed to open block store", zap.Error(err))
	}
	index := vectorindex.New(embedder)
	graph := graphmem.New()

	// Use case services
	knowledgeSvc := knowledgeuc.New(store, index, graph, logger)
	decaySvc := decayuc.New(store, store, index, logger)
	retrievalSvc := retrievaluc.New(index, blockReader{store: store}, decaySvc, logger)
	reflectionSvc := reflectionuc.New(store, index, graph, logger)
	compressSvc := compressuc.New(retrievalSvc, store, nil, logger)

	// Warm the vector index from the on-disk corpus.
	count, err := knowledgeSvc.Reindex(ctx)
	if err != nil {
		logger.Fatal("Failed to index knowledge corpus", zap.Error(err))
	}
	logger.Info("Knowledge corpus indexed", zap.Int("blocks", count))

	// HTTP server
	defaults := chiTransport.Defaults{
		TopK:        cfg.Retrieval.DefaultTopK,
		RRFK:        cfg.Retrieval.RRFK,
		DecayPolicy: cfg.Decay.Policy,
		DecayDays:   cfg.Decay.DaysThreshold,
		DecayUsage:  cfg.Decay.UsageThreshold,
	}
	server := chiTransport.NewServer(knowledgeSvc, retrievalSvc, reflectionSvc, decaySvc, compressSvc, defaults, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.Mount("/", server.Routes())

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// blockReader narrows the block store to the read-only view the retrieval
// engine expects.
type blockReader struct {
	store *blockstore.Store
}

func (br blockReader) Read(ctx context.Context, blockID string) (retrievaluc.BlockView, error) {
	b, err := br.store.Read(ctx, blockID)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
