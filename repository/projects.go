package repository

import (
	"context"

	"krom-analysis/models"

	"gorm.io/gorm"
)

// MaxLiquidityFilter is the maxLiquidity value that means "unbounded".
const MaxLiquidityFilter = 1_000_000_000

var projectSortColumns = []string{
	"website_stage1_score", "current_liquidity_usd", "current_market_cap",
	"current_roi_percent", "created_at", "website_stage1_analyzed_at",
}

// ProjectSortColumn returns col when it may be sorted on, else the default.
func ProjectSortColumn(col string) string {
	for _, c := range projectSortColumns {
		if c == col {
			return c
		}
	}
	return projectSortColumns[0]
}

type ProjectFilter struct {
	MinScore     float64
	MaxScore     float64
	MinLiquidity float64
	MaxLiquidity float64
	Network      string
	Tier         string
	Search       string
}

type Projects struct {
	db *gorm.DB
}

func NewProjects(db *gorm.DB) *Projects {
	return &Projects{db: db}
}

func (f ProjectFilter) scope(q *gorm.DB) *gorm.DB {
	q = q.Where("website_stage1_score >= ? AND website_stage1_score <= ?", f.MinScore, f.MaxScore).
		Where("is_rugged = ?", false)
	if f.MinLiquidity > 0 {
		q = q.Where("current_liquidity_usd >= ?", f.MinLiquidity)
	}
	if f.MaxLiquidity > 0 && f.MaxLiquidity < MaxLiquidityFilter {
		q = q.Where("current_liquidity_usd <= ?", f.MaxLiquidity)
	}
	if f.Network != "" && f.Network != "all" {
		q = q.Where("network = ?", f.Network)
	}
	if f.Tier != "" && f.Tier != "all" {
		q = q.Where("website_stage1_tier = ?", f.Tier)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where("LOWER(symbol) LIKE ? ESCAPE '\\' OR LOWER(name) LIKE ? ESCAPE '\\'", p, p)
	}
	return q
}

// Rated pages rated projects. Nulls sort last in both directions.
func (r *Projects) Rated(ctx context.Context, f ProjectFilter, s Sort, p Page) ([]models.RatedProject, int64, error) {
	base := func() *gorm.DB {
		return f.scope(r.db.WithContext(ctx).Model(&models.RatedProject{}))
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	dir := " DESC NULLS LAST"
	if s.Asc {
		dir = " ASC NULLS LAST"
	}
	projects := []models.RatedProject{}
	err := p.apply(base()).Order(ProjectSortColumn(s.Column) + dir).Find(&projects).Error
	return projects, total, err
}
