package repository

import (
	"context"
	"time"

	"krom-analysis/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Calls struct {
	db *gorm.DB
}

func NewCalls(db *gorm.DB) *Calls {
	return &Calls{db: db}
}

func (r *Calls) model(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Call{})
}

// CallFilter narrows call listings. Zero values mean "no filter".
type CallFilter struct {
	TokenType          string // meme | utility | hybrid; "" or "all" disables
	Networks           []string
	Tier               string
	ExcludeRugs        bool
	ExcludeImposters   bool
	IncludeInvalidated bool
	OnlyAnalyzed       bool
	CoinsOfInterest    bool
	MinScore           float64
	MinXScore          float64
	MinWebsiteScore    float64
	Search             string
}

// Active reports whether any user-facing filter is set.
func (f CallFilter) Active() bool {
	return (f.TokenType != "" && f.TokenType != "all") || len(f.Networks) > 0 || f.Tier != "" ||
		f.ExcludeRugs || f.ExcludeImposters || f.OnlyAnalyzed || f.CoinsOfInterest ||
		f.MinScore > 0 || f.MinXScore > 0 || f.MinWebsiteScore > 0 || f.Search != ""
}

func (f CallFilter) scope(q *gorm.DB) *gorm.DB {
	if !f.IncludeInvalidated {
		q = q.Where(notInvalidated, false)
	}
	switch f.TokenType {
	case models.TokenTypeMeme, models.TokenTypeUtility:
		q = q.Where("analysis_token_type = ? OR x_analysis_token_type = ?", f.TokenType, f.TokenType)
	case models.TokenTypeHybrid:
		q = q.Where("(analysis_token_type = ? OR (analysis_token_type <> '' AND x_analysis_token_type <> '' AND analysis_token_type <> x_analysis_token_type))", models.TokenTypeHybrid)
	}
	if len(f.Networks) > 0 {
		q = q.Where("LOWER(network) IN ?", lowerAll(f.Networks))
	}
	if f.Tier != "" && f.Tier != "all" {
		q = q.Where("analysis_tier = ?", f.Tier)
	}
	if f.ExcludeRugs {
		q = q.Where("is_rugged = ?", false)
	}
	if f.ExcludeImposters {
		q = q.Where("is_imposter = ?", false)
	}
	if f.OnlyAnalyzed {
		q = q.Where("analysis_score IS NOT NULL")
	}
	if f.CoinsOfInterest {
		q = q.Where("is_coin_of_interest = ?", true)
	}
	if f.MinScore > 0 {
		q = q.Where("analysis_score >= ?", f.MinScore)
	}
	if f.MinXScore > 0 {
		q = q.Where("x_analysis_score >= ?", f.MinXScore)
	}
	if f.MinWebsiteScore > 0 {
		q = q.Where("website_score >= ?", f.MinWebsiteScore)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where("LOWER(ticker) LIKE ? ESCAPE '\\' OR LOWER(contract_address) LIKE ? ESCAPE '\\'", p, p)
	}
	return q
}

var callSortColumns = []string{
	"created_at", "buy_timestamp", "analysis_score", "x_analysis_score", "website_score",
	"roi_percent", "ath_roi_percent", "current_market_cap", "liquidity_usd", "ticker",
}

// List returns one page of calls matching f plus the total match count.
func (r *Calls) List(ctx context.Context, f CallFilter, s Sort, p Page) ([]models.Call, int64, error) {
	var total int64
	if err := f.scope(r.model(ctx)).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var calls []models.Call
	err := p.apply(f.scope(r.model(ctx))).
		Order(s.clause(callSortColumns, "buy_timestamp")).
		Find(&calls).Error
	return calls, total, err
}

func (r *Calls) GetByKromID(ctx context.Context, kromID string) (*models.Call, error) {
	var c models.Call
	if err := r.db.WithContext(ctx).Where("krom_id = ?", kromID).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *Calls) GetByID(ctx context.Context, id uint) (*models.Call, error) {
	var c models.Call
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *Calls) GetByIDs(ctx context.Context, ids []uint) ([]models.Call, error) {
	var calls []models.Call
	if len(ids) == 0 {
		return calls, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&calls).Error
	return calls, err
}

// Upsert inserts a call or refreshes the feed-owned columns of an existing
// one with the same krom_id. Analysis and annotations are left untouched.
func (r *Calls) Upsert(ctx context.Context, c *models.Call) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "krom_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"ticker", "network", "contract_address", "pool_address", "source", "buy_timestamp", "raw_data",
		}),
	}).Create(c).Error
}

// UpdateByKromID applies column updates; ErrNotFound when no row matched.
func (r *Calls) UpdateByKromID(ctx context.Context, kromID string, updates map[string]any) error {
	res := r.model(ctx).Where("krom_id = ?", kromID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Calls) UpdateByID(ctx context.Context, id uint, updates map[string]any) error {
	res := r.model(ctx).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Analyzed lists calls with a call-analysis score, newest call first.
func (r *Calls) Analyzed(ctx context.Context, limit, offset int) ([]models.Call, int64, error) {
	q := func() *gorm.DB { return r.model(ctx).Where("analysis_score IS NOT NULL") }
	var total int64
	if err := q().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var calls []models.Call
	err := q().Order("buy_timestamp DESC NULLS LAST").Offset(offset).Limit(limit).Find(&calls).Error
	return calls, total, err
}

func (r *Calls) Recent(ctx context.Context, limit, offset int) ([]models.Call, error) {
	var calls []models.Call
	err := r.model(ctx).Where(notInvalidated, false).
		Order("buy_timestamp DESC NULLS LAST").Offset(offset).Limit(limit).Find(&calls).Error
	return calls, err
}

// TopByATH returns the best ATH ROIs for calls made at or after since
// (nil means all time). Invalidated calls are included.
func (r *Calls) TopByATH(ctx context.Context, since *time.Time, limit int) ([]models.Call, error) {
	q := r.model(ctx).Where("ath_roi_percent > ?", 0)
	if since != nil {
		q = q.Where("buy_timestamp >= ?", *since)
	}
	var calls []models.Call
	err := q.Order("ath_roi_percent DESC").Limit(limit).Find(&calls).Error
	return calls, err
}

// TopPerformers returns calls that hit at least minROI percent, by ATH or now.
func (r *Calls) TopPerformers(ctx context.Context, minROI float64, limit int) ([]models.Call, error) {
	var calls []models.Call
	err := r.model(ctx).
		Where("ath_roi_percent >= ? OR roi_percent >= ?", minROI, minROI).
		Where("COALESCE(ticker, '') <> ''").
		Order("ath_roi_percent DESC NULLS LAST").
		Limit(limit).Find(&calls).Error
	return calls, err
}

func (r *Calls) ByBatch(ctx context.Context, batchID string) ([]models.Call, error) {
	var calls []models.Call
	err := r.model(ctx).Where("analysis_batch_id = ?", batchID).
		Order("analysis_score DESC NULLS LAST").Find(&calls).Error
	return calls, err
}

// AnalyzedSources returns the id, network, source and raw_data of every valid
// analyzed call, for group and chain extraction.
func (r *Calls) AnalyzedSources(ctx context.Context) ([]models.Call, error) {
	var calls []models.Call
	err := r.model(ctx).Select("id", "network", "source", "raw_data").
		Where("analysis_score IS NOT NULL").
		Where(notInvalidated, false).
		Find(&calls).Error
	return calls, err
}

// Unanalyzed returns calls with no call-analysis score, oldest first by
// orderColumn (buy_timestamp or created_at).
func (r *Calls) Unanalyzed(ctx context.Context, orderColumn string, limit int) ([]models.Call, error) {
	if orderColumn != "created_at" {
		orderColumn = "buy_timestamp"
	}
	var calls []models.Call
	err := r.model(ctx).Where("analysis_score IS NULL").
		Order(orderColumn + " ASC").Limit(limit).Find(&calls).Error
	return calls, err
}

// UnanalyzedX returns call-analyzed calls with a contract but no X analysis.
func (r *Calls) UnanalyzedX(ctx context.Context, limit int) ([]models.Call, error) {
	var calls []models.Call
	err := r.model(ctx).
		Where("x_analyzed_at IS NULL").
		Where(hasContract).
		Where("COALESCE(analysis_tier, '') <> ''").
		Order("buy_timestamp ASC").Limit(limit).Find(&calls).Error
	return calls, err
}

// UnscoredTweets returns calls holding stored tweets but no X score, oldest first.
func (r *Calls) UnscoredTweets(ctx context.Context, limit int) ([]models.Call, error) {
	var calls []models.Call
	err := r.model(ctx).
		Where("x_raw_tweets IS NOT NULL").
		Where("x_analysis_score IS NULL").
		Order("created_at ASC").Limit(limit).Find(&calls).Error
	return calls, err
}

// PendingPrice returns analyzed calls with a contract and no call price,
// newest first.
func (r *Calls) PendingPrice(ctx context.Context, limit int) ([]models.Call, error) {
	var calls []models.Call
	err := r.model(ctx).
		Where(hasContract).
		Where("price_at_call IS NULL").
		Where("analysis_score IS NOT NULL OR x_analysis_score IS NOT NULL").
		Order("created_at DESC").Limit(limit).Find(&calls).Error
	return calls, err
}

func (r *Calls) TopUtility(ctx context.Context, limit int) ([]models.Call, error) {
	var calls []models.Call
	err := r.model(ctx).
		Where("analysis_token_type = ? OR x_analysis_token_type = ?", models.TokenTypeUtility, models.TokenTypeUtility).
		Where("liquidity_usd IS NOT NULL").
		Order("liquidity_usd DESC").Limit(limit).Find(&calls).Error
	return calls, err
}

// AnalyzedWithWebsites returns well-scored calls that have a website and reasoning.
func (r *Calls) AnalyzedWithWebsites(ctx context.Context, minScore float64, limit int) ([]models.Call, error) {
	var calls []models.Call
	err := r.model(ctx).
		Where(hasWebsite).
		Where("COALESCE(analysis_reasoning, '') <> ''").
		Where("analysis_score >= ?", minScore).
		Order("analysis_score DESC").Limit(limit).Find(&calls).Error
	return calls, err
}

// UtilityWithWebsites pages utility calls that have a usable website.
func (r *Calls) UtilityWithWebsites(ctx context.Context, minWebsiteScore float64, s Sort, p Page) ([]models.Call, int64, error) {
	q := func() *gorm.DB {
		q := r.model(ctx).Where("analysis_token_type = ?", models.TokenTypeUtility).Where(hasWebsite)
		if minWebsiteScore > 0 {
			q = q.Where("website_score >= ?", minWebsiteScore)
		}
		return q
	}
	var total int64
	if err := q().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var calls []models.Call
	err := p.apply(q()).Order(s.clause([]string{"buy_timestamp", "website_score"}, "buy_timestamp")).Find(&calls).Error
	return calls, total, err
}

// PricesFor looks calls up by contract address or, failing that, ticker.
func (r *Calls) PricesFor(ctx context.Context, contract, ticker string) ([]models.Call, error) {
	q := r.model(ctx)
	switch {
	case contract != "":
		q = q.Where("LOWER(contract_address) = ?", lowerAll([]string{contract})[0])
	case ticker != "":
		q = q.Where("ticker = ?", ticker)
	default:
		return nil, nil
	}
	var calls []models.Call
	err := q.Order("buy_timestamp DESC NULLS LAST").Find(&calls).Error
	return calls, err
}

var priceColumns = []string{
	"price_at_call", "current_price", "ath_price", "ath_timestamp", "roi_percent", "ath_roi_percent",
	"price_network", "price_fetched_at", "price_updated_at", "market_cap_at_call", "current_market_cap",
	"ath_market_cap", "fdv_at_call", "current_fdv", "ath_fdv", "token_supply",
}

// ClearPrices nulls every price column for the given calls.
func (r *Calls) ClearPrices(ctx context.Context, kromIDs []string) (int64, error) {
	updates := make(map[string]any, len(priceColumns))
	for _, c := range priceColumns {
		updates[c] = nil
	}
	res := r.model(ctx).Where("krom_id IN ?", kromIDs).Updates(updates)
	return res.RowsAffected, res.Error
}

var analysisColumns = []string{
	"analysis_score", "analysis_token_type", "analysis_legitimacy_factor", "analysis_model",
	"analysis_reasoning", "analysis_batch_id", "analysis_batch_timestamp", "analysis_prompt_used",
	"analysis_duration_ms", "analysis_confidence", "analysis_reanalyzed_at",
	"x_analysis_score", "x_analysis_tier", "x_analysis_token_type", "x_analysis_summary",
	"x_analysis_reasoning", "x_analysis_assessment", "x_legitimacy_factor", "x_best_tweet",
	"x_analysis_model", "x_analysis_batch_id", "x_analysis_batch_timestamp", "x_analysis_duration_ms",
	"x_analysis_prompt_used", "x_raw_tweets", "x_analyzed_at", "x_reanalyzed_at",
}

// ClearAnalysis drops model output for a call. The legacy analysis_tier,
// analysis_description and analyzed_at columns are kept.
func (r *Calls) ClearAnalysis(ctx context.Context, kromID string) error {
	updates := make(map[string]any, len(analysisColumns))
	for _, c := range analysisColumns {
		updates[c] = nil
	}
	return r.UpdateByKromID(ctx, kromID, updates)
}

// CallSummary aggregates the calls matching a filter for the dashboard header.
type CallSummary struct {
	Total    int64
	Alpha    int64
	Solid    int64
	Utility  int64
	Meme     int64
	AvgScore float64
}

func (r *Calls) Summary(ctx context.Context, f CallFilter) (*CallSummary, error) {
	var s CallSummary
	base := func() *gorm.DB { return f.scope(r.model(ctx)) }

	counts := []struct {
		dst   *int64
		where string
		arg   any
	}{
		{&s.Alpha, "analysis_tier = ?", models.TierAlpha},
		{&s.Solid, "analysis_tier = ?", models.TierSolid},
		{&s.Utility, "analysis_token_type = ?", models.TokenTypeUtility},
		{&s.Meme, "analysis_token_type = ?", models.TokenTypeMeme},
	}
	if err := base().Count(&s.Total).Error; err != nil {
		return nil, err
	}
	for _, c := range counts {
		if err := base().Where(c.where, c.arg).Count(c.dst).Error; err != nil {
			return nil, err
		}
	}
	var avg *float64
	if err := base().Select("AVG(analysis_score)").Scan(&avg).Error; err != nil {
		return nil, err
	}
	if avg != nil {
		s.AvgScore = *avg
	}
	return &s, nil
}
