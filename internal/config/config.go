package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Wiki      WikiConfig      `yaml:"wiki" mapstructure:"wiki"`
	Inference InferenceConfig `yaml:"inference" mapstructure:"inference"`
	Annotator AnnotatorConfig `yaml:"annotator" mapstructure:"annotator"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Temporal  TemporalConfig  `yaml:"temporal" mapstructure:"temporal"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// WikiConfig configures the MediaWiki content source.
type WikiConfig struct {
	Lang        string  `yaml:"lang" mapstructure:"lang"`
	APIURL      string  `yaml:"api_url" mapstructure:"api_url"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	SearchLimit int     `yaml:"search_limit" mapstructure:"search_limit"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Endpoint returns the api.php URL, derived from the language when no
// explicit URL is configured.
func (w WikiConfig) Endpoint() string {
	if w.APIURL != "" {
		return w.APIURL
	}
	lang := w.Lang
	if lang == "" {
		lang = "en"
	}
	return fmt.Sprintf("https://%s.wikipedia.org/w/api.php", lang)
}

// InferenceConfig configures the span-extraction and embedding models.
type InferenceConfig struct {
	LibraryPath        string `yaml:"library_path" mapstructure:"library_path"`
	QAModel            string `yaml:"qa_model" mapstructure:"qa_model"`
	QAModelPath        string `yaml:"qa_model_path" mapstructure:"qa_model_path"`
	QATokenizerPath    string `yaml:"qa_tokenizer_path" mapstructure:"qa_tokenizer_path"`
	QATokenTypeIDs     bool   `yaml:"qa_token_type_ids" mapstructure:"qa_token_type_ids"`
	BatchSize          int    `yaml:"batch_size" mapstructure:"batch_size"`
	MaxSeqLen          int    `yaml:"max_seq_len" mapstructure:"max_seq_len"`
	ClampSpan          bool   `yaml:"clamp_span" mapstructure:"clamp_span"`
	Embedder           string `yaml:"embedder" mapstructure:"embedder"`
	EmbedModel         string `yaml:"embed_model" mapstructure:"embed_model"`
	EmbedModelPath     string `yaml:"embed_model_path" mapstructure:"embed_model_path"`
	EmbedTokenizerPath string `yaml:"embed_tokenizer_path" mapstructure:"embed_tokenizer_path"`
	TEIURL             string `yaml:"tei_url" mapstructure:"tei_url"`
}

// AnnotatorConfig selects the linguistic annotator backend.
type AnnotatorConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"`
	URL       string `yaml:"url" mapstructure:"url"`
	CacheSize int    `yaml:"cache_size" mapstructure:"cache_size"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PipelineConfig configures answer resolution.
type PipelineConfig struct {
	MaxConcurrentQueries int `yaml:"max_concurrent_queries" mapstructure:"max_concurrent_queries"`
	QuestionTimeoutSecs  int `yaml:"question_timeout_secs" mapstructure:"question_timeout_secs"`
}

// CacheConfig configures page content caching.
type CacheConfig struct {
	PageSize     int `yaml:"page_size" mapstructure:"page_size"`
	PageTTLHours int `yaml:"page_ttl_hours" mapstructure:"page_ttl_hours"`
}

// RetryConfig configures retries of outbound HTTP calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// TemporalConfig configures the Temporal client used for batch runs.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WIKIQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("wiki.lang", "en")
	v.SetDefault("wiki.user_agent", "wikiqa/0.1 (https://github.com/sells-group/wikiqa)")
	v.SetDefault("wiki.search_limit", 10)
	v.SetDefault("wiki.rate_limit", 10.0)
	v.SetDefault("wiki.timeout_secs", 20)
	v.SetDefault("inference.qa_model", "twmkn9/distilbert-base-uncased-squad2")
	v.SetDefault("inference.batch_size", 4)
	v.SetDefault("inference.max_seq_len", 384)
	v.SetDefault("inference.embedder", "onnx")
	v.SetDefault("inference.embed_model", "sentence-transformers/paraphrase-distilroberta-base-v2")
	v.SetDefault("annotator.provider", "http")
	v.SetDefault("annotator.url", "http://localhost:8090/annotate")
	v.SetDefault("annotator.cache_size", 1024)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("pipeline.max_concurrent_queries", 1)
	v.SetDefault("pipeline.question_timeout_secs", 120)
	v.SetDefault("cache.page_size", 256)
	v.SetDefault("cache.page_ttl_hours", 24)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("retry.failure_threshold", 5)
	v.SetDefault("retry.reset_timeout_secs", 30)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "wikiqa.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "wikiqa-batch")
	v.SetDefault("batch.max_concurrent", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Inference.BatchSize <= 0 {
		return eris.Errorf("config: inference.batch_size must be positive, got %d", c.Inference.BatchSize)
	}
	switch c.Annotator.Provider {
	case "http", "claude":
	default:
		return eris.Errorf("config: unknown annotator.provider %q", c.Annotator.Provider)
	}
	switch c.Inference.Embedder {
	case "onnx", "tei":
	default:
		return eris.Errorf("config: unknown inference.embedder %q", c.Inference.Embedder)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
