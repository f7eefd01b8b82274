package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"krom-analysis/models"
	"krom-analysis/repository"
	"krom-analysis/services/analysis"

	"github.com/gin-gonic/gin"
)

type websiteToken struct {
	models.Call
	BulletPoints []string `json:"bulletPoints"`
}

// AnalyzedWithWebsites returns the best analyzed calls that have a website,
// each with a few highlight lines for the showcase cards.
func (h *Handler) AnalyzedWithWebsites(c *gin.Context) {
	calls, err := h.Calls.AnalyzedWithWebsites(c.Request.Context(), 5, 9)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to fetch tokens", err)
		return
	}
	out := make([]websiteToken, len(calls))
	for i, call := range calls {
		out[i] = websiteToken{Call: call, BulletPoints: bulletPoints(call)}
	}
	c.JSON(http.StatusOK, out)
}

func bulletPoints(c models.Call) []string {
	reasoning := c.AnalysisReasoning
	if reasoning == "" {
		reasoning = c.XAnalysisReasoning
	}
	reasoning = strings.ToLower(reasoning)

	tokenType := c.AnalysisTokenType
	if tokenType == "" {
		tokenType = c.XAnalysisTokenType
	}
	if tokenType == "" {
		tokenType = "Unknown"
	}
	points := []string{strings.ToUpper(tokenType[:1]) + tokenType[1:] + " token"}

	has := func(s string) bool { return strings.Contains(reasoning, s) }
	if has("team") {
		points = append(points, "Active development team")
	}
	if has("communit") {
		points = append(points, "Strong community presence")
	}
	if has("partner") || has("investor") {
		points = append(points, "Notable partnerships")
	}
	if has("innovative") || has("unique") {
		points = append(points, "Innovative technology")
	}
	if has("launch") && has("recent") {
		points = append(points, "Recently launched")
	}

	switch {
	case c.ROIPercent != nil && *c.ROIPercent > 100:
		points = append(points, fmt.Sprintf("%.0f%% ROI since call", *c.ROIPercent))
	case c.ATHROIPercent != nil && *c.ATHROIPercent > 100:
		points = append(points, fmt.Sprintf("%.0f%% ATH ROI", *c.ATHROIPercent))
	}

	for len(points) < 3 {
		switch {
		case c.LiquidityUSD != nil && *c.LiquidityUSD > 100_000:
			points = append(points, fmt.Sprintf("$%.1fM liquidity", *c.LiquidityUSD/1e6))
		case c.CurrentMarketCap != nil && *c.CurrentMarketCap > 100_000:
			points = append(points, fmt.Sprintf("$%.1fM market cap", *c.CurrentMarketCap/1e6))
		default:
			points = append(points, "Early stage project")
		}
	}
	if len(points) > 4 {
		points = points[:4]
	}
	return points
}

type discoveryToken struct {
	ID                   uint       `json:"id"`
	Name                 string     `json:"name"`
	Ticker               string     `json:"ticker"`
	URL                  string     `json:"url"`
	WebsiteScore         float64    `json:"websiteScore"`
	Description          string     `json:"description"`
	MarketCap            *float64   `json:"marketCap"`
	Liquidity            *float64   `json:"liquidity"`
	CallDate             *time.Time `json:"callDate"`
	Network              string     `json:"network"`
	ContractAddress      string     `json:"contractAddress"`
	AnalysisScore        *float64   `json:"analysisScore"`
	AnalysisTier         string     `json:"analysisTier"`
	AnalysisReasoning    string     `json:"analysisReasoning"`
	ROI                  *float64   `json:"roi"`
	CurrentPrice         *float64   `json:"currentPrice"`
	PriceAtCall          *float64   `json:"priceAtCall"`
	ScreenshotURL        string     `json:"screenshotUrl"`
	ScreenshotCapturedAt *time.Time `json:"screenshotCapturedAt"`
}

func toDiscoveryToken(c models.Call) discoveryToken {
	t := discoveryToken{
		ID:                   c.ID,
		Name:                 strings.TrimPrefix(c.Ticker, "$"),
		Ticker:               c.Ticker,
		URL:                  c.WebsiteURL,
		Description:          c.AnalysisDescription,
		MarketCap:            c.CurrentMarketCap,
		Liquidity:            c.LiquidityUSD,
		CallDate:             c.BuyTimestamp,
		Network:              c.Network,
		ContractAddress:      c.ContractAddress,
		AnalysisScore:        c.AnalysisScore,
		AnalysisTier:         c.AnalysisTier,
		AnalysisReasoning:    c.AnalysisReasoning,
		ROI:                  c.ROIPercent,
		CurrentPrice:         c.CurrentPrice,
		PriceAtCall:          c.PriceAtCall,
		ScreenshotURL:        c.WebsiteScreenshotURL,
		ScreenshotCapturedAt: c.WebsiteScreenshotCapturedAt,
	}
	if t.Name == "" {
		t.Name = "Unknown"
	}
	if t.Ticker == "" {
		t.Ticker = "$UNKNOWN"
	}
	if c.WebsiteScore != nil {
		t.WebsiteScore = *c.WebsiteScore
	}
	if t.MarketCap == nil {
		t.MarketCap = c.MarketCapAtCall
	}
	if t.AnalysisTier == "" {
		t.AnalysisTier = c.WebsiteTier
	}
	if t.AnalysisReasoning == "" {
		t.AnalysisReasoning = c.WebsiteAnalysisReasoning
	}
	return t
}

// DiscoveryTokens pages utility calls with websites for the discovery grid.
func (h *Handler) DiscoveryTokens(c *gin.Context) {
	p := repository.NewPage(queryInt(c, "page", 1), queryInt(c, "limit", 8), 8, 100)
	calls, total, err := h.Calls.UtilityWithWebsites(c.Request.Context(),
		queryFloat(c, "minWebsiteScore", 0), sortFrom(c, "buy_timestamp"), p)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to fetch discovery tokens", err)
		return
	}
	tokens := make([]discoveryToken, len(calls))
	for i, call := range calls {
		tokens[i] = toDiscoveryToken(call)
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens, "pagination": pagination(p, total)})
}

// DiscoveryDebug pages crawler tokens with a website by analysis state.
func (h *Handler) DiscoveryDebug(c *gin.Context) {
	ctx := c.Request.Context()
	p := repository.NewPage(queryInt(c, "page", 1), queryInt(c, "limit", 20), 20, 200)
	filter := c.DefaultQuery("filter", repository.DiscoveryAll)

	tokens, total, err := h.Discovery.Debug(ctx, filter, sortFrom(c, "first_seen_at"), p)
	if err != nil {
		h.failDetails(c, http.StatusInternalServerError, "Failed to fetch tokens", err)
		return
	}
	stats, err := h.Discovery.Stats(ctx)
	if err != nil {
		h.failDetails(c, http.StatusInternalServerError, "Failed to fetch tokens", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tokens":     tokens,
		"hasMore":    total > int64(p.Offset()+p.Limit),
		"stats":      stats,
		"pagination": pagination(p, total),
	})
}

// AnalyzeWebsite runs the stage-1 website score for one discovery token.
func (h *Handler) AnalyzeWebsite(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token id"})
		return
	}
	res, err := h.Analysis.AnalyzeWebsite(c.Request.Context(), uint(id))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
		return
	case errors.Is(err, analysis.ErrNoWebsite):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token has no website"})
		return
	case err != nil:
		h.aiFailure(c, "Failed to analyze website", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analysis": res})
}

// CryptoProjectsRated pages the rated projects table with score, liquidity
// and text filters.
func (h *Handler) CryptoProjectsRated(c *gin.Context) {
	p := repository.NewPage(queryInt(c, "page", 1), queryInt(c, "limit", 20), 20, 100)
	s := sortFrom(c, "website_stage1_score")
	s.Column = repository.ProjectSortColumn(s.Column)
	f := repository.ProjectFilter{
		MinScore:     queryFloat(c, "minScore", 0),
		MaxScore:     queryFloat(c, "maxScore", 10),
		MinLiquidity: queryFloat(c, "minLiquidity", 0),
		MaxLiquidity: queryFloat(c, "maxLiquidity", repository.MaxLiquidityFilter),
		Network:      c.Query("network"),
		Tier:         c.Query("tier"),
		Search:       strings.TrimSpace(c.Query("search")),
	}

	projects, total, err := h.Projects.Rated(c.Request.Context(), f, s, p)
	if err != nil {
		h.failDetails(c, http.StatusInternalServerError, "Failed to fetch projects", err)
		return
	}
	order := "desc"
	if s.Asc {
		order = "asc"
	}
	pages := p.TotalPages(total)
	c.JSON(http.StatusOK, gin.H{
		"data": projects,
		"pagination": gin.H{
			"page":       p.Page,
			"limit":      p.Limit,
			"total":      total,
			"totalPages": pages,
			"hasMore":    p.Page < pages,
		},
		"filters": gin.H{
			"sortBy":       s.Column,
			"sortOrder":    order,
			"minScore":     f.MinScore,
			"maxScore":     f.MaxScore,
			"network":      f.Network,
			"tier":         f.Tier,
			"search":       f.Search,
			"minLiquidity": f.MinLiquidity,
			"maxLiquidity": f.MaxLiquidity,
		},
	})
}
