package repository

import (
	"context"
	"time"

	"krom-analysis/models"

	"gorm.io/gorm"
)

// Stats runs the count queries behind the dashboard widgets.
type Stats struct {
	db *gorm.DB
}

func NewStats(db *gorm.DB) *Stats {
	return &Stats{db: db}
}

func (s *Stats) count(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Call{}).Scopes(scopes...).Count(&n).Error
	return n, err
}

func where(query string, args ...any) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB { return q.Where(query, args...) }
}

type AnalysisCounts struct {
	Total         int64 `json:"total"`
	CallAnalysis  int64 `json:"callAnalysis"`
	XAnalysis     int64 `json:"xAnalysis"`
	WithContracts int64 `json:"withContracts"`
	PricesFetched int64 `json:"pricesFetched"`
}

func (s *Stats) AnalysisCounts(ctx context.Context) (*AnalysisCounts, error) {
	var (
		c   AnalysisCounts
		err error
	)
	if c.Total, err = s.count(ctx); err != nil {
		return nil, err
	}
	if c.CallAnalysis, err = s.count(ctx, where("analysis_score IS NOT NULL")); err != nil {
		return nil, err
	}
	if c.XAnalysis, err = s.count(ctx, where("x_analysis_score IS NOT NULL")); err != nil {
		return nil, err
	}
	if c.WithContracts, err = s.count(ctx, where(hasContract)); err != nil {
		return nil, err
	}
	if c.PricesFetched, err = s.count(ctx, where(hasContract), where("current_price IS NOT NULL")); err != nil {
		return nil, err
	}
	return &c, nil
}

// PriceCoverage counts how much of the call set has historical price data.
type PriceCoverage struct {
	TotalWithContracts   int64 `json:"totalWithContracts"`
	WithPriceData        int64 `json:"withPriceData"`
	NeedsPriceData       int64 `json:"needsPriceData"`
	AnalyzedWithoutPrice int64 `json:"analyzedWithoutPrice"`
}

type RecentFetch struct {
	Ticker         string     `json:"ticker"`
	PriceFetchedAt *time.Time `json:"price_fetched_at"`
}

func (s *Stats) PriceCoverage(ctx context.Context) (*PriceCoverage, error) {
	var (
		c   PriceCoverage
		err error
	)
	if c.TotalWithContracts, err = s.count(ctx, where(hasContract)); err != nil {
		return nil, err
	}
	if c.WithPriceData, err = s.count(ctx, where(hasContract), where("price_at_call IS NOT NULL")); err != nil {
		return nil, err
	}
	c.AnalyzedWithoutPrice, err = s.count(ctx,
		where(hasContract),
		where("price_at_call IS NULL"),
		where("analysis_score IS NOT NULL OR x_analysis_score IS NOT NULL"))
	if err != nil {
		return nil, err
	}
	c.NeedsPriceData = c.TotalWithContracts - c.WithPriceData
	return &c, nil
}

func (s *Stats) RecentFetches(ctx context.Context, limit int) ([]RecentFetch, error) {
	out := []RecentFetch{}
	err := s.db.WithContext(ctx).Model(&models.Call{}).
		Select("ticker", "price_fetched_at").
		Where("price_fetched_at IS NOT NULL").
		Order("price_fetched_at DESC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// Metrics are the raw counters of the operations dashboard.
type Metrics struct {
	ATHTotal            int64
	ATHProcessed        int64
	CheckedLastHour     int64
	PriceUpdatesToday   int64
	PriceUpdatesStale   int64
	CallAnalysisPending int64
	XAnalysisPending    int64
	HighROIToday        int64
}

// DashboardMetrics counts pipeline progress relative to now. "Today" starts
// at local midnight.
func (s *Stats) DashboardMetrics(ctx context.Context, now time.Time) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	hourAgo := now.Add(-time.Hour)
	y, mo, d := now.Date()
	today := time.Date(y, mo, d, 0, 0, 0, 0, now.Location())

	withPool := []func(*gorm.DB) *gorm.DB{
		where("COALESCE(pool_address, '') <> ''"),
		where("price_at_call IS NOT NULL"),
	}

	steps := []struct {
		dst    *int64
		scopes []func(*gorm.DB) *gorm.DB
	}{
		{&m.ATHTotal, withPool},
		{&m.ATHProcessed, append(withPool[:2:2], where("ath_price IS NOT NULL"))},
		{&m.CheckedLastHour, []func(*gorm.DB) *gorm.DB{where("ath_last_checked >= ?", hourAgo)}},
		{&m.PriceUpdatesToday, []func(*gorm.DB) *gorm.DB{where("price_updated_at >= ?", today)}},
		{&m.PriceUpdatesStale, []func(*gorm.DB) *gorm.DB{
			where("current_price IS NOT NULL"),
			where("price_updated_at < ?", hourAgo),
		}},
		{&m.CallAnalysisPending, []func(*gorm.DB) *gorm.DB{where("analyzed_at IS NULL")}},
		{&m.XAnalysisPending, []func(*gorm.DB) *gorm.DB{
			where("x_raw_tweets IS NOT NULL"),
			where("x_analyzed_at IS NULL"),
		}},
		{&m.HighROIToday, []func(*gorm.DB) *gorm.DB{
			where("ath_roi_percent >= ?", 100),
			where("ath_timestamp >= ?", today),
		}},
	}
	for _, st := range steps {
		if *st.dst, err = s.count(ctx, st.scopes...); err != nil {
			return nil, err
		}
	}
	return &m, nil
}
