package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Call is one row of crypto_calls: a ticker/contract announced by a group,
// plus everything we later learn about it.
type Call struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	KromID          string         `json:"krom_id" gorm:"uniqueIndex;size:64"`
	Ticker          string         `json:"ticker" gorm:"index"`
	Network         string         `json:"network"`
	ContractAddress string         `json:"contract_address" gorm:"index"`
	PoolAddress     string         `json:"pool_address"`
	Source          string         `json:"source"`
	BuyTimestamp    *time.Time     `json:"buy_timestamp" gorm:"index"`
	CreatedAt       time.Time      `json:"created_at"`
	RawData         datatypes.JSON `json:"raw_data"`

	AnalysisScore            *float64   `json:"analysis_score"`
	AnalysisTier             string     `json:"analysis_tier"`
	AnalysisTokenType        string     `json:"analysis_token_type"`
	AnalysisLegitimacyFactor string     `json:"analysis_legitimacy_factor"`
	AnalysisModel            string     `json:"analysis_model"`
	AnalysisReasoning        string     `json:"analysis_reasoning"`
	AnalysisDescription      string     `json:"analysis_description"`
	AnalysisBatchID          string     `json:"analysis_batch_id" gorm:"index"`
	AnalysisBatchTimestamp   *time.Time `json:"analysis_batch_timestamp"`
	AnalysisPromptUsed       string     `json:"analysis_prompt_used"`
	AnalysisDurationMS       *int64     `json:"analysis_duration_ms"`
	AnalysisConfidence       *float64   `json:"analysis_confidence"`
	AnalyzedAt               *time.Time `json:"analyzed_at"`
	AnalysisReanalyzedAt     *time.Time `json:"analysis_reanalyzed_at"`

	XAnalysisScore           *float64       `json:"x_analysis_score"`
	XAnalysisTier            string         `json:"x_analysis_tier"`
	XAnalysisTokenType       string         `json:"x_analysis_token_type"`
	XAnalysisSummary         string         `json:"x_analysis_summary"`
	XAnalysisReasoning       string         `json:"x_analysis_reasoning"`
	XAnalysisAssessment      string         `json:"x_analysis_assessment"`
	XLegitimacyFactor        string         `json:"x_legitimacy_factor"`
	XBestTweet               string         `json:"x_best_tweet"`
	XAnalysisModel           string         `json:"x_analysis_model"`
	XAnalysisBatchID         string         `json:"x_analysis_batch_id"`
	XAnalysisBatchTimestamp  *time.Time     `json:"x_analysis_batch_timestamp"`
	XAnalysisDurationMS      *int64         `json:"x_analysis_duration_ms"`
	XAnalysisPromptUsed      string         `json:"x_analysis_prompt_used"`
	XRawTweets               datatypes.JSON `json:"x_raw_tweets"`
	XAnalyzedAt              *time.Time     `json:"x_analyzed_at"`
	XReanalyzedAt            *time.Time     `json:"x_reanalyzed_at"`

	PriceAtCall      *float64   `json:"price_at_call"`
	CurrentPrice     *float64   `json:"current_price"`
	ATHPrice         *float64   `json:"ath_price" gorm:"column:ath_price"`
	ATHTimestamp     *time.Time `json:"ath_timestamp" gorm:"column:ath_timestamp"`
	ROIPercent       *float64   `json:"roi_percent" gorm:"column:roi_percent"`
	ATHROIPercent    *float64   `json:"ath_roi_percent" gorm:"column:ath_roi_percent"`
	PriceNetwork     string     `json:"price_network"`
	PriceFetchedAt   *time.Time `json:"price_fetched_at"`
	PriceUpdatedAt   *time.Time `json:"price_updated_at"`
	ATHLastChecked   *time.Time `json:"ath_last_checked" gorm:"column:ath_last_checked"`
	MarketCapAtCall  *float64   `json:"market_cap_at_call"`
	CurrentMarketCap *float64   `json:"current_market_cap"`
	ATHMarketCap     *float64   `json:"ath_market_cap" gorm:"column:ath_market_cap"`
	FDVAtCall        *float64   `json:"fdv_at_call" gorm:"column:fdv_at_call"`
	CurrentFDV       *float64   `json:"current_fdv" gorm:"column:current_fdv"`
	ATHFDV           *float64   `json:"ath_fdv" gorm:"column:ath_fdv"`
	TokenSupply      string     `json:"token_supply"`
	LiquidityUSD     *float64   `json:"liquidity_usd" gorm:"column:liquidity_usd"`

	WebsiteURL                  string     `json:"website_url" gorm:"column:website_url"`
	TwitterURL                  string     `json:"twitter_url" gorm:"column:twitter_url"`
	TelegramURL                 string     `json:"telegram_url" gorm:"column:telegram_url"`
	DiscordURL                  string     `json:"discord_url" gorm:"column:discord_url"`
	WebsiteScore                *float64   `json:"website_score"`
	WebsiteTier                 string     `json:"website_tier"`
	WebsiteAnalysisReasoning    string     `json:"website_analysis_reasoning"`
	WebsiteScreenshotURL        string     `json:"website_screenshot_url" gorm:"column:website_screenshot_url"`
	WebsiteScreenshotCapturedAt *time.Time `json:"website_screenshot_captured_at" gorm:"column:website_screenshot_captured_at"`

	IsImposter             bool       `json:"is_imposter" gorm:"not null;default:false"`
	ImposterMarkedAt       *time.Time `json:"imposter_marked_at"`
	IsCoinOfInterest       bool       `json:"is_coin_of_interest" gorm:"not null;default:false"`
	CoinOfInterestMarkedAt *time.Time `json:"coin_of_interest_marked_at"`
	CoinOfInterestNotes    string     `json:"coin_of_interest_notes"`
	IsInvalidated          bool       `json:"is_invalidated" gorm:"not null;default:false"`
	InvalidatedAt          *time.Time `json:"invalidated_at"`
	InvalidationReason     string     `json:"invalidation_reason"`
	IsDead                 bool       `json:"is_dead" gorm:"not null;default:false"`
	IsRugged               bool       `json:"is_rugged" gorm:"not null;default:false"`
	UserComment            string     `json:"user_comment"`
	UserCommentUpdatedAt   *time.Time `json:"user_comment_updated_at"`
}

func (Call) TableName() string { return "crypto_calls" }

// CombinedTokenType merges the call and X token classifications.
func (c Call) CombinedTokenType() string {
	return CombineTokenTypes(c.AnalysisTokenType, c.XAnalysisTokenType)
}

// CallTime is the moment the call was made: buy_timestamp when known,
// otherwise the row creation time.
func (c Call) CallTime() time.Time {
	if c.BuyTimestamp != nil {
		return *c.BuyTimestamp
	}
	return c.CreatedAt
}

// Tweet is one element of the x_raw_tweets array.
type Tweet struct {
	Text string `json:"text"`
}

// Tweets returns the non-empty stored tweet texts.
func (c Call) Tweets() []string {
	if len(c.XRawTweets) == 0 {
		return nil
	}
	var raw []Tweet
	if err := json.Unmarshal(c.XRawTweets, &raw); err != nil {
		return nil
	}
	var out []string
	for _, t := range raw {
		if strings.TrimSpace(t.Text) != "" {
			out = append(out, t.Text)
		}
	}
	return out
}

// EncodeTweets stores at most max texts in the x_raw_tweets layout.
func EncodeTweets(texts []string, max int) datatypes.JSON {
	if len(texts) > max {
		texts = texts[:max]
	}
	raw := make([]Tweet, len(texts))
	for i, t := range texts {
		raw[i] = Tweet{Text: t}
	}
	b, _ := json.Marshal(raw)
	return datatypes.JSON(b)
}
