package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Host           string   `yaml:"host"`
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		ScreenshotDir  string   `yaml:"screenshot_dir"`
		ShutdownSec    int      `yaml:"shutdown_timeout_sec"`
	} `yaml:"server"`

	Database struct {
		Driver      string `yaml:"driver"` // postgres | sqlite
		DSN         string `yaml:"dsn"`
		AutoMigrate bool   `yaml:"auto_migrate"`
	} `yaml:"database"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json | console
	} `yaml:"log"`

	AI struct {
		DefaultModel      string `yaml:"default_model"`
		BatchModel        string `yaml:"batch_model"`
		XModel            string `yaml:"x_model"`
		AnthropicBaseURL  string `yaml:"anthropic_base_url"`
		OpenRouterBaseURL string `yaml:"openrouter_base_url"`
		AnthropicKey      string `yaml:"anthropic_api_key"`
		OpenRouterKey     string `yaml:"openrouter_api_key"`
		GeminiKey         string `yaml:"gemini_api_key"`
		TimeoutSec        int    `yaml:"timeout_sec"`
		MaxRetries        int    `yaml:"max_retries"`
		RetryDelayMs      int    `yaml:"retry_delay_ms"`
	} `yaml:"ai"`

	Prices struct {
		GeckoBaseURL       string `yaml:"gecko_base_url"`
		GeckoAPIKey        string `yaml:"gecko_api_key"`
		DexScreenerBaseURL string `yaml:"dexscreener_base_url"`
		BatchSize          int    `yaml:"batch_size"`
		RequestDelayMs     int    `yaml:"request_delay_ms"`
		GeckoDelayMs       int    `yaml:"gecko_delay_ms"`
		TimeoutSec         int    `yaml:"timeout_sec"`
	} `yaml:"prices"`

	X struct {
		ScraperAPIKey  string `yaml:"scraperapi_key"`
		ScraperAPIBase string `yaml:"scraperapi_base_url"`
		NitterBaseURL  string `yaml:"nitter_base_url"`
		MaxTweets      int    `yaml:"max_tweets"`
		BatchDelayMs   int    `yaml:"batch_delay_ms"`
		TimeoutSec     int    `yaml:"timeout_sec"`
	} `yaml:"x"`

	Cron struct {
		Secret       string `yaml:"secret"`
		PriceBatch   int    `yaml:"price_batch"`
		AnalyzeBatch int    `yaml:"analyze_batch"`
		XBatch       int    `yaml:"x_batch"`
	} `yaml:"cron"`

	Screenshot struct {
		MicrolinkBaseURL string `yaml:"microlink_base_url"`
		PlaceholderURL   string `yaml:"placeholder_url"`
		ChromeBin        string `yaml:"chrome_bin"`
		Width            int    `yaml:"width"`
		Height           int    `yaml:"height"`
		TimeoutSec       int    `yaml:"timeout_sec"`
	} `yaml:"screenshot"`
}

// Load reads the YAML file at path (a missing file is not an error), loads
// .env into the process environment, applies environment overrides and defaults.
func Load(path string) (Config, error) {
	var cfg Config

	_ = godotenv.Load()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Database.DSN, "DATABASE_URL")
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Cron.Secret, "CRON_SECRET")
	setString(&cfg.AI.AnthropicKey, "ANTHROPIC_API_KEY")
	setString(&cfg.AI.OpenRouterKey, "OPENROUTER_API_KEY")
	setString(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	setString(&cfg.X.ScraperAPIKey, "SCRAPERAPI_KEY")
	setString(&cfg.Prices.GeckoAPIKey, "GECKO_TERMINAL_API_KEY")

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, o)
			}
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Server.ScreenshotDir == "" {
		cfg.Server.ScreenshotDir = "./screenshots"
	}
	if cfg.Server.ShutdownSec <= 0 {
		cfg.Server.ShutdownSec = 10
	}

	if cfg.Database.Driver == "" {
		if strings.HasPrefix(cfg.Database.DSN, "postgres") {
			cfg.Database.Driver = "postgres"
		} else {
			cfg.Database.Driver = "sqlite"
		}
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "krom.db"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "claude-3-haiku-20240307"
	}
	if cfg.AI.BatchModel == "" {
		cfg.AI.BatchModel = "gemini-2.5-pro"
	}
	if cfg.AI.XModel == "" {
		cfg.AI.XModel = "claude-3-haiku-20240307"
	}
	if cfg.AI.AnthropicBaseURL == "" {
		cfg.AI.AnthropicBaseURL = "https://api.anthropic.com/v1"
	}
	if cfg.AI.OpenRouterBaseURL == "" {
		cfg.AI.OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.AI.TimeoutSec <= 0 {
		cfg.AI.TimeoutSec = 60
	}
	if cfg.AI.MaxRetries <= 0 {
		cfg.AI.MaxRetries = 3
	}
	if cfg.AI.RetryDelayMs <= 0 {
		cfg.AI.RetryDelayMs = 1000
	}

	if cfg.Prices.GeckoBaseURL == "" {
		cfg.Prices.GeckoBaseURL = "https://api.geckoterminal.com/api/v2"
	}
	if cfg.Prices.DexScreenerBaseURL == "" {
		cfg.Prices.DexScreenerBaseURL = "https://api.dexscreener.com"
	}
	if cfg.Prices.BatchSize <= 0 {
		cfg.Prices.BatchSize = 30
	}
	if cfg.Prices.RequestDelayMs <= 0 {
		cfg.Prices.RequestDelayMs = 2000
	}
	if cfg.Prices.GeckoDelayMs <= 0 {
		cfg.Prices.GeckoDelayMs = 200
	}
	if cfg.Prices.TimeoutSec <= 0 {
		cfg.Prices.TimeoutSec = 15
	}

	if cfg.X.ScraperAPIBase == "" {
		cfg.X.ScraperAPIBase = "https://api.scraperapi.com/"
	}
	if cfg.X.NitterBaseURL == "" {
		cfg.X.NitterBaseURL = "https://nitter.net"
	}
	if cfg.X.MaxTweets <= 0 {
		cfg.X.MaxTweets = 15
	}
	if cfg.X.BatchDelayMs <= 0 {
		cfg.X.BatchDelayMs = 3000
	}
	if cfg.X.TimeoutSec <= 0 {
		cfg.X.TimeoutSec = 60
	}

	if cfg.Cron.PriceBatch <= 0 {
		cfg.Cron.PriceBatch = 10
	}
	if cfg.Cron.AnalyzeBatch <= 0 {
		cfg.Cron.AnalyzeBatch = 20
	}
	if cfg.Cron.XBatch <= 0 {
		cfg.Cron.XBatch = 5
	}

	if cfg.Screenshot.MicrolinkBaseURL == "" {
		cfg.Screenshot.MicrolinkBaseURL = "https://api.microlink.io"
	}
	if cfg.Screenshot.PlaceholderURL == "" {
		cfg.Screenshot.PlaceholderURL = "https://via.placeholder.com/400x600/667eea/ffffff"
	}
	if cfg.Screenshot.Width <= 0 {
		cfg.Screenshot.Width = 1280
	}
	if cfg.Screenshot.Height <= 0 {
		cfg.Screenshot.Height = 800
	}
	if cfg.Screenshot.TimeoutSec <= 0 {
		cfg.Screenshot.TimeoutSec = 30
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be 1..65535")
	}
	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver %q not supported", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn (or DATABASE_URL) is required")
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format %q must be json or console", cfg.Log.Format)
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownSec) * time.Second
}

func (c Config) AITimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSec) * time.Second
}

func (c Config) AIRetryDelay() time.Duration {
	return time.Duration(c.AI.RetryDelayMs) * time.Millisecond
}

func (c Config) PriceTimeout() time.Duration {
	return time.Duration(c.Prices.TimeoutSec) * time.Second
}

func (c Config) PriceRequestDelay() time.Duration {
	return time.Duration(c.Prices.RequestDelayMs) * time.Millisecond
}

func (c Config) GeckoDelay() time.Duration {
	return time.Duration(c.Prices.GeckoDelayMs) * time.Millisecond
}

func (c Config) XTimeout() time.Duration {
	return time.Duration(c.X.TimeoutSec) * time.Second
}

func (c Config) XBatchDelay() time.Duration {
	return time.Duration(c.X.BatchDelayMs) * time.Millisecond
}

func (c Config) ScreenshotTimeout() time.Duration {
	return time.Duration(c.Screenshot.TimeoutSec) * time.Second
}
