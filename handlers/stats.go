package handlers

import (
	"fmt"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
)

// pricesPerRun is how many calls one price-fetch cron run handles.
const pricesPerRun = 20

func (h *Handler) AnalysisCounts(c *gin.Context) {
	counts, err := h.Stats.AnalysisCounts(c.Request.Context())
	if err != nil {
		h.failDetails(c, http.StatusInternalServerError, "Failed to fetch analysis counts", err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// PriceStats reports price coverage and how long the backlog will take at
// the cron rate of one batch every five minutes.
func (h *Handler) PriceStats(c *gin.Context) {
	ctx := c.Request.Context()
	cov, err := h.Stats.PriceCoverage(ctx)
	if err != nil {
		h.failDetails(c, http.StatusInternalServerError, "Failed to fetch price stats", err)
		return
	}
	recent, err := h.Stats.RecentFetches(ctx, 10)
	if err != nil {
		h.failDetails(c, http.StatusInternalServerError, "Failed to fetch price stats", err)
		return
	}

	var pct float64
	if cov.TotalWithContracts > 0 {
		pct = float64(cov.WithPriceData) / float64(cov.TotalWithContracts) * 100
	}
	left := float64(cov.NeedsPriceData)
	runs := math.Ceil(left / pricesPerRun)

	c.JSON(http.StatusOK, gin.H{
		"stats": gin.H{
			"totalWithContracts":   cov.TotalWithContracts,
			"withPriceData":        cov.WithPriceData,
			"needsPriceData":       cov.NeedsPriceData,
			"analyzedWithoutPrice": cov.AnalyzedWithoutPrice,
			"percentComplete":      fmt.Sprintf("%.1f", pct),
		},
		"recentFetches": recent,
		"estimatedTime": gin.H{
			"totalMinutes":   runs,
			"totalHours":     fmt.Sprintf("%.1f", left/pricesPerRun/60),
			"cronRuns":       runs,
			"daysToComplete": fmt.Sprintf("%.1f", left/pricesPerRun/12),
		},
	})
}

// DashboardMetrics feeds the operations panel. estimatedCompletion is in
// minutes at the last hour's ATH processing rate.
func (h *Handler) DashboardMetrics(c *gin.Context) {
	m, err := h.Stats.DashboardMetrics(c.Request.Context(), h.now())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to fetch metrics", err)
		return
	}
	var coverage float64
	if m.ATHTotal > 0 {
		coverage = float64(m.ATHProcessed) / float64(m.ATHTotal) * 100
	}
	rate := math.Round(float64(m.CheckedLastHour)/60*10) / 10
	var eta int64
	if rate > 0 {
		eta = int64(math.Round(float64(m.ATHTotal-m.ATHProcessed) / rate))
	}
	c.JSON(http.StatusOK, gin.H{
		"athCoverage":         coverage,
		"athTotal":            m.ATHTotal,
		"athProcessed":        m.ATHProcessed,
		"processingRate":      rate,
		"estimatedCompletion": eta,
		"priceUpdatesTotal":   m.PriceUpdatesToday,
		"priceUpdatesStale":   m.PriceUpdatesStale,
		"highRoiAlerts":       m.HighROIToday,
		"callAnalysisPending": m.CallAnalysisPending,
		"xAnalysisPending":    m.XAnalysisPending,
	})
}
