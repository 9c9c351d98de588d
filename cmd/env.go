package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/finsight/reportminer/internal/backend"
	"github.com/finsight/reportminer/internal/config"
	"github.com/finsight/reportminer/internal/extract"
	"github.com/finsight/reportminer/internal/jobs"
	"github.com/finsight/reportminer/internal/score"
	"github.com/finsight/reportminer/internal/store"
	anthropicpkg "github.com/finsight/reportminer/pkg/anthropic"
	"github.com/finsight/reportminer/pkg/openaichat"
)

// pipelineEnv holds the store, backends, and processor shared by the
// serve/run commands.
type pipelineEnv struct {
	Store     store.Store
	Pipeline  *jobs.Pipeline
	Processor *jobs.Processor

	closers []func() error
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Processor != nil {
		pe.Processor.Close()
	}
	for _, closeFn := range pe.closers {
		_ = closeFn()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "reportminer.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initBackends builds one Backend per configured provider, in a fixed order
// so candidate collection is deterministic.
func initBackends(ctx context.Context) ([]backend.Backend, []func() error, error) {
	var backends []backend.Backend
	var closers []func() error

	if cfg.Backends.Claude.Key != "" {
		client := anthropicpkg.NewClient(cfg.Backends.Claude.Key)
		backends = append(backends, backend.NewAnthropic(client, cfg.Backends.Claude.Model))
	}
	if cfg.Backends.Gemini.Key != "" {
		g, err := backend.NewGemini(ctx, cfg.Backends.Gemini.Key, cfg.Backends.Gemini.Model)
		if err != nil {
			return nil, closers, err
		}
		backends = append(backends, g)
		closers = append(closers, g.Close)
	}
	for _, oc := range []struct {
		id  string
		cfg config.OpenAICompatConfig
	}{
		{"qwen", cfg.Backends.Qwen},
		{"deepseek", cfg.Backends.DeepSeek},
		{"spark", cfg.Backends.Spark},
	} {
		if oc.cfg.Key == "" {
			continue
		}
		client := openaichat.NewClient(oc.cfg.Key, oc.cfg.BaseURL)
		backends = append(backends, backend.NewOpenAICompat(oc.id, client, oc.cfg.Model))
	}
	if cfg.Backends.Mock {
		backends = append(backends, backend.NewMock("mock"))
		zap.L().Info("mock backend enabled")
	}

	if len(backends) == 0 {
		return nil, closers, eris.New("no backends configured (set a backend key or REPORTMINER_BACKENDS_MOCK=true)")
	}
	return backends, closers, nil
}

// initPipeline sets up the store, backends, orchestrator, and worker pool.
// Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	backends, closers, err := initBackends(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	orch, err := extract.New(backends, extract.Options{
		CallTimeout:      time.Duration(cfg.Extract.TimeoutSecs) * time.Second,
		ChunkConcurrency: cfg.Extract.ChunkConcurrency,
		Verify:           cfg.Extract.Verification,
		RateLimit:        cfg.Extract.RatePerSec,
		RateBurst:        cfg.Extract.RateBurst,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	pipeline := &jobs.Pipeline{
		Orchestrator:  orch,
		ChunkSize:     cfg.Chunk.Size,
		ChunkOverlap:  cfg.Chunk.Overlap,
		TotalBackends: len(backends),
		Weights: score.Weights{
			Agreement:    cfg.Score.Agreement,
			Completeness: cfg.Score.Completeness,
			Breadth:      cfg.Score.Breadth,
		},
	}

	ids := make([]string, len(backends))
	for i, b := range backends {
		ids[i] = b.ID()
	}
	zap.L().Info("pipeline initialized",
		zap.Strings("backends", ids),
		zap.Int("chunk_size", cfg.Chunk.Size),
		zap.Int("chunk_overlap", cfg.Chunk.Overlap),
		zap.Bool("verification", cfg.Extract.Verification),
	)

	return &pipelineEnv{
		Store:     st,
		Pipeline:  pipeline,
		Processor: jobs.NewProcessor(st, pipeline, cfg.Jobs.Workers, cfg.Jobs.QueueSize),
		closers:   closers,
	}, nil
}
