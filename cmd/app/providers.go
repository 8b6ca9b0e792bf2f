package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/ragviet/ragviet-service/internal/domain/auth"
	"github.com/ragviet/ragviet-service/internal/domain/rag"
	"github.com/ragviet/ragviet-service/internal/infra/authstore"
	"github.com/ragviet/ragviet-service/internal/infra/blobstore"
	"github.com/ragviet/ragviet-service/internal/infra/chatstore"
	"github.com/ragviet/ragviet-service/internal/infra/config"
	"github.com/ragviet/ragviet-service/internal/infra/embedder"
	"github.com/ragviet/ragviet-service/internal/infra/llm/chatgpt"
	"github.com/ragviet/ragviet-service/internal/infra/pdfextract"
	"github.com/ragviet/ragviet-service/internal/infra/reranker"
	"github.com/ragviet/ragviet-service/internal/infra/vectorstore"
)

func provideAuthConfig(cfg *config.Config) auth.Config {
	return auth.Config{SessionTTL: cfg.Auth.SessionTTL}
}

func provideModelPolicy(cfg *config.Config) rag.ModelPolicy {
	return rag.ModelPolicy{Primary: cfg.LLM.Primary, Fallback: cfg.LLM.Fallback}
}

func provideChatGPTClient(cfg *config.Config, logger *slog.Logger) (*chatgpt.Client, error) {
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return nil, nil
	}
	return chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Temperature, logger)
}

// provideLLM adapts the ChatGPT client to rag.LLM, falling back to an
// echo responder when no API key is configured so the service still
// boots for local development without upstream credentials.
func provideLLM(client *chatgpt.Client, logger *slog.Logger) rag.LLM {
	if client == nil {
		logger.Warn("llm api key not set, using echo responder")
		return echoLLM{}
	}
	return client
}

type echoLLM struct{}

func (echoLLM) Complete(_ context.Context, prompt string, _ string, _ int) (string, error) {
	return "Xin lỗi, dịch vụ trả lời chưa được cấu hình. Vui lòng liên hệ quản trị viên.", nil
}

// provideEmbedder resolves the fallback chain described by the
// configuration: a remote model first, the deterministic hash embedder
// as the guaranteed-to-load last resort.
func provideEmbedder(client *chatgpt.Client, cfg *config.Config, logger *slog.Logger) rag.Embedder {
	chain := embedder.NewChain(logger)
	candidates := make([]embedder.NamedEmbedder, 0, len(cfg.Embedder.RemoteModels)+1)
	if client != nil {
		for _, model := range cfg.Embedder.RemoteModels {
			if strings.TrimSpace(model) == "" {
				continue
			}
			candidates = append(candidates, embedder.NamedEmbedder{
				Name:     model,
				Embedder: embedder.NewRemote(client, model, logger),
			})
		}
	}
	candidates = append(candidates, embedder.NamedEmbedder{
		Name:     "deterministic",
		Embedder: embedder.NewDeterministic(cfg.Embedder.DeterministicDim),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := chain.LoadFirst(ctx, candidates); err != nil {
		logger.Error("embedder chain failed to load any candidate", "error", err)
	}
	return chain
}

func provideVectorStore(emb rag.Embedder, cfg *config.Config, logger *slog.Logger) rag.VectorStore {
	snapshot := vectorstore.NewFileSnapshotter(cfg.VectorDisk.SnapshotPath)
	return vectorstore.New(emb, snapshot, logger)
}

func provideReranker(cfg *config.Config) rag.Reranker {
	return reranker.NewLexical(cfg.Reranker.Enabled)
}

func provideNaturalLanguageFilter() rag.NaturalLanguageFilter {
	return rag.NewVietnameseFilter()
}

func providePDFProcessor(cfg *config.Config, logger *slog.Logger) rag.PDFProcessor {
	return rag.NewPDFProcessor(pdfextract.New(), cfg.Chunking.WindowSize, cfg.Chunking.Overlap, logger)
}

// provideChatStore wires Postgres when a DSN is configured, falling back
// to the in-memory store for local development, then layers a Valkey
// cache-through decorator over auth-session reads when enabled.
func provideChatStore(cfg *config.Config, logger *slog.Logger) rag.ChatStore {
	var store rag.ChatStore
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, using memory chat store")
		store = chatstore.NewMemory()
	} else {
		poolConfig, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			logger.Error("invalid postgres dsn, using memory chat store", "error", err)
			return chatstore.NewMemory()
		}
		if cfg.Postgres.MaxConns > 0 {
			poolConfig.MaxConns = cfg.Postgres.MaxConns
		}
		if cfg.Postgres.MinConns > 0 {
			poolConfig.MinConns = cfg.Postgres.MinConns
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			logger.Error("failed to initialize postgres pool, using memory chat store", "error", err)
			return chatstore.NewMemory()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("postgres ping failed, using memory chat store", "error", err)
			pool.Close()
			return chatstore.NewMemory()
		}
		logger.Info("postgres chat store enabled")
		store = chatstore.NewPostgres(pool)
	}

	if !cfg.Valkey.Enabled {
		return store
	}
	opt, err := buildValkeyOptions(cfg.Valkey.Addr)
	if err != nil {
		logger.Error("invalid valkey configuration, skipping session cache", "error", err)
		return store
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, skipping session cache", "error", err)
		return store
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, skipping session cache", "error", err)
		return store
	}
	logger.Info("valkey session cache enabled", "addr", cfg.Valkey.Addr)
	return authstore.NewCachedSessionStore(store, client, logger)
}

// provideBlobStore wires the Minio/S3-compatible adapter when credentials
// are present, falling back to the in-memory store otherwise.
func provideBlobStore(cfg *config.Config, logger *slog.Logger) rag.BlobStore {
	endpoint := strings.TrimSpace(cfg.Storage.Endpoint)
	accessKey := strings.TrimSpace(cfg.Storage.AccessKey)
	secretKey := strings.TrimSpace(cfg.Storage.SecretKey)
	bucket := strings.TrimSpace(cfg.Storage.Bucket)
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		logger.Info("object storage not fully configured, using memory blob store")
		return blobstore.NewMemory()
	}
	store, err := blobstore.NewMinio(endpoint, accessKey, secretKey, bucket, cfg.Storage.Region, logger)
	if err != nil {
		logger.Error("failed to initialize object storage, using memory blob store", "error", err)
		return blobstore.NewMemory()
	}
	logger.Info("minio blob store enabled", "endpoint", endpoint, "bucket", bucket)
	return store
}

func provideIngestionConcurrency(cfg *config.Config) int {
	return cfg.Ingestion.Concurrency
}

func provideAdminKey(cfg *config.Config) string {
	return cfg.Admin.APIKey
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	addr = strings.TrimSpace(addr)
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}
