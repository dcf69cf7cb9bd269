// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Sitemap SitemapConfig `mapstructure:"sitemap"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Index   IndexConfig   `mapstructure:"index"`
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Logging LoggingConfig `mapstructure:"logging"`
	Archive ArchiveConfig `mapstructure:"archive"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
}

// SiteConfig identifies the content origin and how we present ourselves to it.
type SiteConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
}

// HTTPConfig configures outbound page and sitemap fetches.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxBodyMB      int `mapstructure:"max_body_mb"`
}

// SitemapConfig governs sitemap traversal.
type SitemapConfig struct {
	Workers int `mapstructure:"workers"`
}

// CrawlerConfig governs article fetching.
type CrawlerConfig struct {
	Workers        int `mapstructure:"workers"`
	RequestDelayMs int `mapstructure:"request_delay_ms"`
	ProgressEvery  int `mapstructure:"progress_every"`
}

// OpenAIConfig holds provider credentials and model choices.
type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	ChatModel      string `mapstructure:"chat_model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// IndexConfig locates the persisted vector collection.
type IndexConfig struct {
	Path           string `mapstructure:"path"`
	Collection     string `mapstructure:"collection"`
	MaxBatchSize   int    `mapstructure:"max_batch_size"`
	EmbedBatchSize int    `mapstructure:"embed_batch_size"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int    `mapstructure:"port"`
	StaticDir             string `mapstructure:"static_dir"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ArchiveConfig selects where raw article HTML is archived, if anywhere.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig points at the optional Postgres ingest-run ledger.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for index-rebuilt notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Archive backends.
const (
	ArchiveNone   = "none"
	ArchiveMemory = "memory"
	ArchiveLocal  = "local"
	ArchiveGCS    = "gcs"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TGCRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindWellKnownEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// bindWellKnownEnv maps the unprefixed variables operators already use.
func bindWellKnownEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"openai.api_key": {"TGCRAG_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"index.path":     {"TGCRAG_INDEX_PATH", "CHROMA_PATH"},
		"site.base_url":  {"TGCRAG_SITE_BASE_URL", "TGC_BASE_URL"},
		"server.port":    {"TGCRAG_SERVER_PORT", "PORT"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://www.thegospelcoalition.org")
	v.SetDefault("site.user_agent", "TGC-MVP-Scraper/1.0")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_body_mb", 50)
	v.SetDefault("sitemap.workers", 8)
	v.SetDefault("crawler.workers", 20)
	v.SetDefault("crawler.request_delay_ms", 1500)
	v.SetDefault("crawler.progress_every", 50)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.chat_model", "gpt-4o-mini")
	v.SetDefault("openai.timeout_seconds", 60)
	v.SetDefault("index.path", "./data/chroma")
	v.SetDefault("index.collection", "tgc-articles")
	v.SetDefault("index.max_batch_size", 5000)
	v.SetDefault("index.embed_batch_size", 100)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.static_dir", "static")
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("archive.backend", ArchiveNone)
	v.SetDefault("archive.prefix", "pages")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Site.BaseURL) == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Sitemap.Workers <= 0 {
		return fmt.Errorf("sitemap.workers must be > 0")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.RequestDelayMs < 0 {
		return fmt.Errorf("crawler.request_delay_ms must be >= 0")
	}
	if c.Index.MaxBatchSize <= 0 || c.Index.EmbedBatchSize <= 0 {
		return fmt.Errorf("index.max_batch_size and index.embed_batch_size must be > 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Archive.Backend {
	case "", ArchiveNone, ArchiveMemory:
	case ArchiveLocal:
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set for the local backend")
		}
	case ArchiveGCS:
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend %q is not supported", c.Archive.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// FetchTimeout converts the HTTP timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RequestDelay is the politeness gap used by the sequential crawl path.
func (c Config) RequestDelay() time.Duration {
	return time.Duration(c.Crawler.RequestDelayMs) * time.Millisecond
}

// HasOpenAIKey reports whether a provider credential is configured.
func (c Config) HasOpenAIKey() bool {
	return strings.TrimSpace(c.OpenAI.APIKey) != ""
}
