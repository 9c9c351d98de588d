package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Chunk    ChunkConfig    `yaml:"chunk" mapstructure:"chunk"`
	Extract  ExtractConfig  `yaml:"extract" mapstructure:"extract"`
	Backends BackendsConfig `yaml:"backends" mapstructure:"backends"`
	Score    ScoreConfig    `yaml:"score" mapstructure:"score"`
	Jobs     JobsConfig     `yaml:"jobs" mapstructure:"jobs"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ChunkConfig configures document windowing.
type ChunkConfig struct {
	Size    int `yaml:"size" mapstructure:"size"`
	Overlap int `yaml:"overlap" mapstructure:"overlap"`
}

// ExtractConfig configures the extraction rounds.
type ExtractConfig struct {
	Verification     bool    `yaml:"verification" mapstructure:"verification"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	ChunkConcurrency int     `yaml:"chunk_concurrency" mapstructure:"chunk_concurrency"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RateBurst        int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// BackendsConfig holds per-backend credentials and models. A backend is
// enabled when its key is set; the mock backend needs no key.
type BackendsConfig struct {
	Mock     bool               `yaml:"mock" mapstructure:"mock"`
	Claude   ClaudeConfig       `yaml:"claude" mapstructure:"claude"`
	Gemini   GeminiConfig       `yaml:"gemini" mapstructure:"gemini"`
	Qwen     OpenAICompatConfig `yaml:"qwen" mapstructure:"qwen"`
	DeepSeek OpenAICompatConfig `yaml:"deepseek" mapstructure:"deepseek"`
	Spark    OpenAICompatConfig `yaml:"spark" mapstructure:"spark"`
}

// ClaudeConfig holds Anthropic API settings.
type ClaudeConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OpenAICompatConfig holds settings for an OpenAI-compatible chat endpoint.
type OpenAICompatConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// ScoreConfig holds the confidence sub-score weights.
type ScoreConfig struct {
	Agreement    float64 `yaml:"agreement" mapstructure:"agreement"`
	Completeness float64 `yaml:"completeness" mapstructure:"completeness"`
	Breadth      float64 `yaml:"breadth" mapstructure:"breadth"`
}

// JobsConfig configures the report worker pool.
type JobsConfig struct {
	Workers   int `yaml:"workers" mapstructure:"workers"`
	QueueSize int `yaml:"queue_size" mapstructure:"queue_size"`
}

// EnabledBackendCount reports how many extraction backends are configured.
func (c *BackendsConfig) EnabledBackendCount() int {
	n := 0
	if c.Mock {
		n++
	}
	if c.Claude.Key != "" {
		n++
	}
	if c.Gemini.Key != "" {
		n++
	}
	for _, oc := range []OpenAICompatConfig{c.Qwen, c.DeepSeek, c.Spark} {
		if oc.Key != "" {
			n++
		}
	}
	return n
}

// Validate checks the configuration for a given run mode ("serve", "run",
// "migrate") and returns an aggregate error listing every problem.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		fallthrough
	case "run":
		if c.Chunk.Size <= 0 || c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size {
			problems = append(problems, "chunk.overlap must satisfy 0 <= overlap < size")
		}
		if c.Backends.EnabledBackendCount() == 0 {
			problems = append(problems, "at least one backend must be configured")
		}
		if c.Score.Agreement < 0 || c.Score.Completeness < 0 || c.Score.Breadth < 0 {
			problems = append(problems, "score weights must be >= 0")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	case "migrate":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REPORTMINER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "reportminer.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("chunk.size", 8)
	v.SetDefault("chunk.overlap", 2)
	v.SetDefault("extract.verification", true)
	v.SetDefault("extract.timeout_secs", 30)
	v.SetDefault("extract.chunk_concurrency", 4)
	v.SetDefault("extract.rate_per_sec", 2)
	v.SetDefault("extract.rate_burst", 4)
	v.SetDefault("backends.claude.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("backends.gemini.model", "gemini-2.0-flash")
	v.SetDefault("backends.qwen.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("backends.qwen.model", "qwen-plus")
	v.SetDefault("backends.deepseek.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("backends.deepseek.model", "deepseek-chat")
	v.SetDefault("backends.spark.base_url", "https://spark-api-open.xf-yun.com/v1")
	v.SetDefault("backends.spark.model", "generalv3.5")
	v.SetDefault("score.agreement", 90)
	v.SetDefault("score.completeness", 5)
	v.SetDefault("score.breadth", 5)
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.queue_size", 32)

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

	return &cfg, nil
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
