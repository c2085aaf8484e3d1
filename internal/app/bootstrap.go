package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"google.golang.org/api/option"

	"docindex/internal/adapter/gemini"
	"docindex/internal/config"
	"docindex/internal/history"
	"docindex/internal/pipeline"
	"docindex/internal/vector"
)

// Dependencies holds the external clients of one run. DB and NSQProducer
// are nil when run history or progress events are disabled.
type Dependencies struct {
	DB          *sql.DB
	Weaviate    *weaviate.Client
	Embedder    pipeline.Embedder
	NSQProducer *nsq.Producer
}

func (d *Dependencies) Close() {
	if d.NSQProducer != nil {
		d.NSQProducer.Stop()
	}
	if c, ok := d.Embedder.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close embedder", "error", err)
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			slog.Warn("failed to close db", "error", err)
		}
	}
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{}
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	// Weaviate
	wCfg := weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme}
	if cfg.WeaviateAPIKey != "" {
		wCfg.AuthConfig = auth.ApiKey{Value: cfg.WeaviateAPIKey}
	}
	wClient, err := weaviate.NewClient(wCfg)
	if err != nil {
		return nil, fmt.Errorf("weaviate client error: %w", err)
	}
	deps.Weaviate = wClient

	adapter := vector.NewSchemaAdapter(wClient)
	if err := VerifyIndexWithRetry(ctx, adapter, cfg.IndexName, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
		return nil, fmt.Errorf("weaviate index error: %w", err)
	}

	// Embeddings
	var opts []option.ClientOption
	if cfg.GeminiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.GeminiEndpoint))
	}
	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini client error: %w", err)
	}
	deps.Embedder = embedder

	// Run history
	if cfg.HistoryEnabled() {
		db, err := openDB(ctx, cfg, retryDelay)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.DB = db
		if err := history.Migrate(db, cfg.MigrationPath); err != nil {
			deps.Close()
			return nil, err
		}
	}

	// Progress events
	if cfg.EventsEnabled() {
		producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("nsq producer error: %w", err)
		}
		deps.NSQProducer = producer
		if cfg.NSQDHTTP != "" {
			createTopics(ctx, cfg.NSQDHTTP)
		}
	}

	return deps, nil
}

func openDB(ctx context.Context, cfg *config.Config, retryDelay time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	attempts := max(cfg.BootstrapRetryAttempts, 1)
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return db, nil
		}
		slog.WarnContext(ctx, "failed to ping db, retrying...", "attempt", i+1, "error", err)
		if i < attempts-1 && sleep(ctx, retryDelay) != nil {
			break
		}
	}
	db.Close()
	return nil, fmt.Errorf("failed to ping db: %w", err)
}

func createTopics(ctx context.Context, nsqdHTTP string) {
	for _, topic := range []string{config.TopicIngestProgress, config.TopicIngestCompleted} {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			slog.WarnContext(ctx, "failed to create NSQ topic", "topic", topic, "error", err)
			continue
		}
		resp, err := http.DefaultClient.Do(req) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.WarnContext(ctx, "failed to create NSQ topic", "topic", topic, "error", err)
			continue
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.WarnContext(ctx, "failed to close NSQ topic creation response body", "error", closeErr)
		}
	}
}

// VerifyIndexWithRetry retries transient failures of the index preflight.
// A missing index is reported immediately.
func VerifyIndexWithRetry(ctx context.Context, client vector.SchemaClient, className string, attempts int, delay time.Duration) error {
	attempts = max(attempts, 1)
	var err error
	for i := 0; i < attempts; i++ {
		if err = vector.VerifyIndex(ctx, client, className); err == nil || errors.Is(err, vector.ErrIndexNotFound) {
			return err
		}
		slog.WarnContext(ctx, "failed to verify weaviate index, retrying...", "attempt", i+1, "error", err)
		if i < attempts-1 {
			if sleepErr := sleep(ctx, delay); sleepErr != nil {
				return sleepErr
			}
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
