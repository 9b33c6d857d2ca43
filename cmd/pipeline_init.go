package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wikiqa/internal/cost"
	"github.com/sells-group/wikiqa/internal/inference"
	"github.com/sells-group/wikiqa/internal/nlp"
	"github.com/sells-group/wikiqa/internal/pipeline"
	"github.com/sells-group/wikiqa/internal/query"
	"github.com/sells-group/wikiqa/internal/rank"
	"github.com/sells-group/wikiqa/internal/resilience"
	"github.com/sells-group/wikiqa/internal/store"
	"github.com/sells-group/wikiqa/internal/wiki"
	anthropicpkg "github.com/sells-group/wikiqa/pkg/anthropic"
	"github.com/sells-group/wikiqa/pkg/mediawiki"
)

// embedCacheSize is the number of texts whose embeddings are kept in memory.
const embedCacheSize = 4096

// pipelineEnv holds the store, models and the pipeline needed by the
// ask/batch/serve/worker commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	closers  []func() error
}

// Close releases models and the store.
func (pe *pipelineEnv) Close() {
	for i := len(pe.closers) - 1; i >= 0; i-- {
		if err := pe.closers[i](); err != nil {
			zap.L().Warn("close failed", zap.Error(err))
		}
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline builds the store, the wiki client, the annotator and both
// models, and wires them into a Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{Store: st}

	retry := resilience.FromConfig(cfg.Retry)

	api := mediawiki.NewClient(
		mediawiki.WithBaseURL(cfg.Wiki.Endpoint()),
		mediawiki.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Wiki.TimeoutSecs) * time.Second}),
		mediawiki.WithUserAgent(cfg.Wiki.UserAgent),
		mediawiki.WithRateLimit(cfg.Wiki.RateLimit),
		mediawiki.WithRetry(retry),
		mediawiki.WithBreaker(resilience.BreakerFromConfig("mediawiki", cfg.Retry)),
	)
	pageCache := wiki.NewCache(cfg.Cache.PageSize, time.Duration(cfg.Cache.PageTTLHours)*time.Hour, st)
	wikiClient := wiki.NewClient(api,
		wiki.WithSearchLimit(cfg.Wiki.SearchLimit),
		wiki.WithCache(pageCache),
	)

	annotator, err := initAnnotator(retry)
	if err != nil {
		env.Close()
		return nil, err
	}

	if err := inference.InitRuntime(cfg.Inference.LibraryPath); err != nil {
		env.Close()
		return nil, err
	}
	env.closers = append(env.closers, inference.ShutdownRuntime)

	embedder, err := initEmbedder(env, retry)
	if err != nil {
		env.Close()
		return nil, err
	}

	qa, err := inference.NewOnnxQA(inference.QAConfig{
		ModelPath:     cfg.Inference.QAModelPath,
		TokenizerPath: cfg.Inference.QATokenizerPath,
		MaxSeqLen:     cfg.Inference.MaxSeqLen,
		TokenTypeIDs:  cfg.Inference.QATokenTypeIDs,
	})
	if err != nil {
		env.Close()
		return nil, err
	}
	env.closers = append(env.closers, qa.Close)

	env.Pipeline = pipeline.New(pipeline.Deps{
		Queries: query.NewExtractor(annotator),
		Search:  pipeline.WikiSearcher{Client: wikiClient},
		Ranker:  rank.New(embedder),
		Extractor: inference.NewSpanExtractor(qa,
			inference.WithBatchSize(cfg.Inference.BatchSize),
			inference.WithClampSpan(cfg.Inference.ClampSpan),
		),
		Runs: st,
	}, pipeline.Options{
		MaxConcurrentQueries: cfg.Pipeline.MaxConcurrentQueries,
		QuestionTimeout:      time.Duration(cfg.Pipeline.QuestionTimeoutSecs) * time.Second,
	})

	zap.L().Info("pipeline ready",
		zap.String("wiki", cfg.Wiki.Endpoint()),
		zap.String("annotator", cfg.Annotator.Provider),
		zap.String("embedder", cfg.Inference.Embedder),
		zap.String("qa_model", cfg.Inference.QAModel),
		zap.String("store", cfg.Store.Driver),
	)
	return env, nil
}

// initAnnotator builds the configured annotator behind an LRU cache.
func initAnnotator(retry resilience.RetryConfig) (nlp.Annotator, error) {
	var base nlp.Annotator
	switch cfg.Annotator.Provider {
	case "claude":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("anthropic key is required for the claude annotator (WIKIQA_ANTHROPIC_KEY)")
		}
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		base = nlp.NewClaudeAnnotator(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens,
			nlp.WithCostCalculator(cost.NewCalculator(cost.DefaultRates())))
	default:
		base = nlp.NewHTTPAnnotator(cfg.Annotator.URL,
			nlp.WithRetry(retry),
			nlp.WithBreaker(resilience.BreakerFromConfig("annotator", cfg.Retry)),
		)
	}
	if cfg.Annotator.CacheSize <= 0 {
		return base, nil
	}
	cached, err := nlp.NewCachedAnnotator(base, cfg.Annotator.CacheSize)
	if err != nil {
		return nil, eris.Wrap(err, "init annotator cache")
	}
	return cached, nil
}

// initEmbedder builds the configured sentence embedder behind an LRU cache.
func initEmbedder(env *pipelineEnv, retry resilience.RetryConfig) (inference.Embedder, error) {
	var base inference.Embedder
	switch cfg.Inference.Embedder {
	case "tei":
		base = inference.NewTEIEmbedder(cfg.Inference.TEIURL, inference.WithTEIRetry(retry))
	default:
		onnx, err := inference.NewOnnxEmbedder(inference.EmbedConfig{
			ModelPath:     cfg.Inference.EmbedModelPath,
			TokenizerPath: cfg.Inference.EmbedTokenizerPath,
			MaxSeqLen:     cfg.Inference.MaxSeqLen,
		})
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, onnx.Close)
		base = onnx
	}
	cached, err := inference.NewCachedEmbedder(base, cfg.Inference.EmbedModel, embedCacheSize)
	if err != nil {
		return nil, eris.Wrap(err, "init embedding cache")
	}
	return cached, nil
}
