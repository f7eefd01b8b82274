package models

import "time"

// RatedProject is a row of crypto_projects_rated.
type RatedProject struct {
	ID                      uint       `json:"id" gorm:"primaryKey"`
	Symbol                  string     `json:"symbol"`
	Name                    string     `json:"name"`
	Network                 string     `json:"network"`
	ContractAddress         string     `json:"contract_address"`
	WebsiteURL              string     `json:"website_url" gorm:"column:website_url"`
	WebsiteStage1Score      *float64   `json:"website_stage1_score" gorm:"column:website_stage1_score"`
	WebsiteStage1Tier       string     `json:"website_stage1_tier" gorm:"column:website_stage1_tier"`
	WebsiteStage1AnalyzedAt *time.Time `json:"website_stage1_analyzed_at" gorm:"column:website_stage1_analyzed_at"`
	CurrentLiquidityUSD     *float64   `json:"current_liquidity_usd" gorm:"column:current_liquidity_usd"`
	CurrentMarketCap        *float64   `json:"current_market_cap"`
	CurrentROIPercent       *float64   `json:"current_roi_percent" gorm:"column:current_roi_percent"`
	XAnalysisScore          *float64   `json:"x_analysis_score"`
	WebsiteScore            *float64   `json:"website_score"`
	IsRugged                bool       `json:"is_rugged" gorm:"not null;default:false"`
	IsDead                  bool       `json:"is_dead" gorm:"not null;default:false"`
	IsImposter              bool       `json:"is_imposter" gorm:"not null;default:false"`
	CreatedAt               time.Time  `json:"created_at"`
}

func (RatedProject) TableName() string { return "crypto_projects_rated" }
