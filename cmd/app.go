package cmd

import (
	"context"
	"fmt"

	"krom-analysis/config"
	"krom-analysis/database"
	"krom-analysis/repository"
	"krom-analysis/services/ai"
	"krom-analysis/services/analysis"
	"krom-analysis/services/dexscreener"
	"krom-analysis/services/geckoterminal"
	"krom-analysis/services/pricing"
	"krom-analysis/services/website"
	"krom-analysis/services/xscraper"

	"go.uber.org/zap"
)

// app is everything a command needs once the database is open.
type app struct {
	calls     *repository.Calls
	discovery *repository.Discovery
	pricing   *pricing.Service
	analysis  *analysis.Service
	dex       *dexscreener.Client
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	if err := database.InitDB(cfg.Database.Driver, cfg.Database.DSN, cfg.Database.AutoMigrate); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	db := database.GetDB()

	router, err := newAIRouter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gecko := geckoterminal.New(cfg.Prices.GeckoBaseURL, cfg.Prices.GeckoAPIKey, cfg.PriceTimeout(), cfg.GeckoDelay())
	dex := dexscreener.New(cfg.Prices.DexScreenerBaseURL, cfg.PriceTimeout())

	a := &app{
		calls:     repository.NewCalls(db),
		discovery: repository.NewDiscovery(db),
		dex:       dex,
	}
	a.pricing = pricing.New(a.calls, gecko, dex, pricing.Options{
		BatchSize:    cfg.Prices.BatchSize,
		RequestDelay: cfg.PriceRequestDelay(),
		GeckoDelay:   cfg.GeckoDelay(),
	})

	var tweets analysis.TweetSource
	if xConfigured(cfg) {
		tweets = xscraper.New(cfg.X.ScraperAPIKey, cfg.X.ScraperAPIBase, cfg.X.NitterBaseURL, cfg.X.MaxTweets, cfg.XTimeout())
	}
	a.analysis = analysis.New(a.calls, a.discovery, router, tweets, website.NewScraper(cfg.ScreenshotTimeout()), analysis.Options{
		DefaultModel: cfg.AI.DefaultModel,
		BatchModel:   cfg.AI.BatchModel,
		XModel:       cfg.AI.XModel,
		XDelay:       cfg.XBatchDelay(),
	})
	return a, nil
}

func xConfigured(cfg config.Config) bool {
	return cfg.X.ScraperAPIKey != ""
}

// newAIRouter registers a provider only when its key is set, so requests
// for an unconfigured provider fail with ai.ErrNotConfigured.
func newAIRouter(ctx context.Context, cfg config.Config) (*ai.Router, error) {
	r := &ai.Router{}
	if cfg.AI.AnthropicKey != "" {
		r.Anthropic = ai.NewAnthropic(cfg.AI.AnthropicKey, cfg.AI.AnthropicBaseURL,
			cfg.AITimeout(), cfg.AI.MaxRetries, cfg.AIRetryDelay())
	}
	if cfg.AI.OpenRouterKey != "" {
		r.OpenRouter = ai.NewOpenRouter(cfg.AI.OpenRouterKey, cfg.AI.OpenRouterBaseURL,
			cfg.AITimeout(), cfg.AI.MaxRetries, cfg.AIRetryDelay())
	}
	if cfg.AI.GeminiKey != "" {
		g, err := ai.NewGemini(ctx, cfg.AI.GeminiKey)
		if err != nil {
			return nil, err
		}
		r.Gemini = g
	}
	log.Info("ai providers",
		zap.Bool("anthropic", r.Anthropic != nil),
		zap.Bool("openrouter", r.OpenRouter != nil),
		zap.Bool("gemini", r.Gemini != nil))
	return r, nil
}
