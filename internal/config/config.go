// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Crawl      CrawlConfig      `mapstructure:"crawl"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Store      StoreConfig      `mapstructure:"store"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	OCR        OCRConfig        `mapstructure:"ocr"`
	Ops        OpsConfig        `mapstructure:"ops"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// CrawlConfig governs traversal behavior.
type CrawlConfig struct {
	StartURL           string   `mapstructure:"start_url"`
	AllowedDomains     []string `mapstructure:"allowed_domains"`
	MaxDepth           int      `mapstructure:"max_depth"`
	CheckpointInterval int      `mapstructure:"checkpoint_interval"`
	DefiniteOnly       bool     `mapstructure:"definite_only"`
	RootFallbackLinks  int      `mapstructure:"root_fallback_links"`
	TimeoutSeconds     int      `mapstructure:"timeout_seconds"`
	UserAgent          string   `mapstructure:"user_agent"`
}

// BrowserConfig configures the shared browser session.
type BrowserConfig struct {
	Headless      bool `mapstructure:"headless"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// StoreConfig sets the filesystem locations for crawl artifacts.
type StoreConfig struct {
	RawDir    string `mapstructure:"raw_dir"`
	CorpusDir string `mapstructure:"corpus_dir"`
	StateDir  string `mapstructure:"state_dir"`
	LogPath   string `mapstructure:"log_path"`
}

// ClassifierConfig points at the content classification collaborator.
type ClassifierConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	APIKey          string `mapstructure:"api_key"`
	Model           string `mapstructure:"model"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	MaxContentChars int    `mapstructure:"max_content_chars"`
	MaxLinks        int    `mapstructure:"max_links"`
}

// OCRConfig points at the OCR conversion collaborator.
type OCRConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// OpsConfig controls the operational HTTP listener.
type OpsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POLICYHARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.max_depth", 3)
	v.SetDefault("crawl.checkpoint_interval", 5)
	v.SetDefault("crawl.definite_only", false)
	v.SetDefault("crawl.root_fallback_links", 20)
	v.SetDefault("crawl.timeout_seconds", 30)
	v.SetDefault("crawl.user_agent", "policy-harvester/0.1")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.nav_timeout_seconds", 25)
	v.SetDefault("store.raw_dir", "data/raw")
	v.SetDefault("store.corpus_dir", "data/corpus")
	v.SetDefault("store.state_dir", "data/state")
	v.SetDefault("store.log_path", "data/crawl_log.csv")
	v.SetDefault("classifier.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("classifier.model", "gpt-4o-mini")
	v.SetDefault("classifier.timeout_seconds", 120)
	v.SetDefault("classifier.max_content_chars", 40000)
	v.SetDefault("classifier.max_links", 50)
	v.SetDefault("ocr.timeout_seconds", 180)
	v.SetDefault("ops.enabled", false)
	v.SetDefault("ops.port", 9090)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawl.MaxDepth < 0 {
		return fmt.Errorf("crawl.max_depth must be >= 0")
	}
	if c.Crawl.CheckpointInterval <= 0 {
		return fmt.Errorf("crawl.checkpoint_interval must be > 0")
	}
	if c.Crawl.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawl.timeout_seconds must be > 0")
	}
	if c.Classifier.MaxLinks <= 0 || c.Classifier.MaxLinks > 50 {
		return fmt.Errorf("classifier.max_links must be in (0, 50]")
	}
	if c.Ops.Enabled && c.Ops.Port <= 0 {
		return fmt.Errorf("ops.port must be > 0 when ops is enabled")
	}
	return nil
}

// RequestTimeout converts the configured crawl timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Crawl.TimeoutSeconds) * time.Second
}
