package repository

import (
	"context"

	"krom-analysis/models"

	"gorm.io/gorm"
)

// Discovery filters accepted by Debug.
const (
	DiscoveryAll          = "all"
	DiscoveryAnalyzed     = "analyzed"
	DiscoveryUnanalyzed   = "unanalyzed"
	DiscoveryLowScore     = "lowscore"
	DiscoveryScrapeFailed = "scrape_failed"
	DiscoveryPromoted     = "promoted"
)

const (
	lowScoreMax   = 6
	promotableMin = 7
)

var discoverySortColumns = []string{
	"first_seen_at", "website_analyzed_at", "website_stage1_score",
	"current_liquidity_usd", "current_volume_24h", "current_market_cap", "symbol",
}

type Discovery struct {
	db *gorm.DB
}

func NewDiscovery(db *gorm.DB) *Discovery {
	return &Discovery{db: db}
}

func (r *Discovery) withWebsite(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.DiscoveryToken{}).Where("COALESCE(website_url, '') <> ''")
}

// Debug pages discovery tokens that have a website, narrowed by filter.
// The scrape_failed filter reads the JSON analysis document, so it is
// applied after loading and paginated in memory.
func (r *Discovery) Debug(ctx context.Context, filter string, s Sort, p Page) ([]models.DiscoveryToken, int64, error) {
	order := s.clause(discoverySortColumns, "first_seen_at")

	if filter == DiscoveryScrapeFailed {
		var all []models.DiscoveryToken
		if err := r.withWebsite(ctx).Order(order).Find(&all).Error; err != nil {
			return nil, 0, err
		}
		matched := make([]models.DiscoveryToken, 0, len(all))
		for _, t := range all {
			if n := t.TextLength(); n >= 0 && n < models.ScrapeFailedBelow {
				matched = append(matched, t)
			}
		}
		total := int64(len(matched))
		lo := min(p.Offset(), len(matched))
		hi := min(lo+p.Limit, len(matched))
		return matched[lo:hi], total, nil
	}

	q := func() *gorm.DB {
		q := r.withWebsite(ctx)
		switch filter {
		case DiscoveryAnalyzed:
			q = q.Where("website_analyzed_at IS NOT NULL")
		case DiscoveryUnanalyzed:
			q = q.Where("website_analyzed_at IS NULL")
		case DiscoveryLowScore:
			q = q.Where("website_stage1_score IS NOT NULL AND website_stage1_score <= ?", lowScoreMax)
		case DiscoveryPromoted:
			q = q.Where("website_stage1_score >= ?", promotableMin)
		}
		return q
	}

	var total int64
	if err := q().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var tokens []models.DiscoveryToken
	err := p.apply(q()).Order(order).Find(&tokens).Error
	return tokens, total, err
}

type DiscoveryStats struct {
	Total        int `json:"total"`
	Analyzed     int `json:"analyzed"`
	Promotable   int `json:"promotable"`
	ScrapeFailed int `json:"scrapeFailed"`
}

func (r *Discovery) Stats(ctx context.Context) (*DiscoveryStats, error) {
	var tokens []models.DiscoveryToken
	err := r.withWebsite(ctx).
		Select("id", "website_analyzed_at", "website_stage1_score", "website_stage1_analysis").
		Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	st := &DiscoveryStats{Total: len(tokens)}
	for _, t := range tokens {
		if t.WebsiteAnalyzedAt != nil {
			st.Analyzed++
		}
		if t.WebsiteStage1Score != nil && *t.WebsiteStage1Score >= promotableMin {
			st.Promotable++
		}
		if t.ScrapeFailed() {
			st.ScrapeFailed++
		}
	}
	return st, nil
}

func (r *Discovery) Get(ctx context.Context, id uint) (*models.DiscoveryToken, error) {
	var t models.DiscoveryToken
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *Discovery) Update(ctx context.Context, id uint, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.DiscoveryToken{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
