package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// DiscoveryToken is a row of token_discovery, fed by the new-pair crawler.
type DiscoveryToken struct {
	ID                          uint           `json:"id" gorm:"primaryKey"`
	Symbol                      string         `json:"symbol"`
	Name                        string         `json:"name"`
	Network                     string         `json:"network"`
	ContractAddress             string         `json:"contract_address" gorm:"index"`
	WebsiteURL                  string         `json:"website_url" gorm:"column:website_url"`
	TwitterURL                  string         `json:"twitter_url" gorm:"column:twitter_url"`
	TelegramURL                 string         `json:"telegram_url" gorm:"column:telegram_url"`
	DiscordURL                  string         `json:"discord_url" gorm:"column:discord_url"`
	WebsiteAnalyzedAt           *time.Time     `json:"website_analyzed_at"`
	WebsiteStage1Score          *float64       `json:"website_stage1_score" gorm:"column:website_stage1_score"`
	WebsiteStage1Tier           string         `json:"website_stage1_tier" gorm:"column:website_stage1_tier"`
	WebsiteStage1Analysis       datatypes.JSON `json:"website_stage1_analysis" gorm:"column:website_stage1_analysis"`
	CurrentLiquidityUSD         *float64       `json:"current_liquidity_usd" gorm:"column:current_liquidity_usd"`
	CurrentVolume24h            *float64       `json:"current_volume_24h" gorm:"column:current_volume_24h"`
	CurrentMarketCap            *float64       `json:"current_market_cap"`
	FirstSeenAt                 time.Time      `json:"first_seen_at"`
	WebsiteScreenshotURL        string         `json:"website_screenshot_url" gorm:"column:website_screenshot_url"`
	WebsiteScreenshotCapturedAt *time.Time     `json:"website_screenshot_captured_at" gorm:"column:website_screenshot_captured_at"`
}

func (DiscoveryToken) TableName() string { return "token_discovery" }

// ScrapeFailedBelow is the extracted-text length under which a website scrape
// is considered failed.
const ScrapeFailedBelow = 500

// Stage1Analysis is the JSON document stored in website_stage1_analysis.
type Stage1Analysis struct {
	Score         float64       `json:"score"`
	Tier          string        `json:"tier"`
	Reasoning     string        `json:"reasoning,omitempty"`
	Model         string        `json:"model,omitempty"`
	ScrapeMetrics ScrapeMetrics `json:"scrape_metrics"`
}

type ScrapeMetrics struct {
	TextLength int    `json:"text_length"`
	LinkCount  int    `json:"link_count"`
	Title      string `json:"title,omitempty"`
}

// TextLength returns scrape_metrics.text_length, or -1 when it is absent.
func (d DiscoveryToken) TextLength() int {
	if len(d.WebsiteStage1Analysis) == 0 {
		return -1
	}
	var a struct {
		ScrapeMetrics struct {
			TextLength *int `json:"text_length"`
		} `json:"scrape_metrics"`
	}
	if err := json.Unmarshal(d.WebsiteStage1Analysis, &a); err != nil || a.ScrapeMetrics.TextLength == nil {
		return -1
	}
	return *a.ScrapeMetrics.TextLength
}

// ScrapeFailed reports whether the website was analyzed but yielded too little text.
func (d DiscoveryToken) ScrapeFailed() bool {
	if d.WebsiteAnalyzedAt == nil {
		return false
	}
	n := d.TextLength()
	return n >= 0 && n < ScrapeFailedBelow
}
