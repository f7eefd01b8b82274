package handlers

import (
	"net/http"

	"krom-analysis/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AllowedOrigins []string
	CronSecret     string
	// ScreenshotDir is served at /screenshots when set.
	ScreenshotDir string
	Log           *zap.Logger
}

// NewRouter builds the gin engine with every page and API route.
func NewRouter(h *Handler, cfg RouterConfig) (*gin.Engine, error) {
	log := cfg.Log
	if log == nil {
		log = zap.L()
	}
	tmpl, err := Templates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(log), middleware.Recovery(log), middleware.CORS(cfg.AllowedOrigins))
	r.SetHTMLTemplate(tmpl)

	if cfg.ScreenshotDir != "" {
		r.Static("/screenshots", cfg.ScreenshotDir)
	}

	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/dashboard")
	})
	r.GET("/dashboard", h.Dashboard)
	r.GET("/reanalyze/:krom_id", h.ReanalyzePage)

	api := r.Group("/api")
	{
		api.GET("/calls", h.ListCalls)
		api.POST("/calls", h.IngestCall)
		api.GET("/analyzed", h.Analyzed)
		api.GET("/recent-calls", h.RecentCalls)
		api.GET("/top-calls", h.TopCalls)
		api.GET("/top-performers", h.TopPerformers)
		api.GET("/batch/:batchId", h.BatchResults)
		api.GET("/groups", h.Groups)
		api.GET("/chains", h.Chains)
		api.GET("/top-utility-tokens", h.TopUtilityTokens)
		api.GET("/analyzed-with-websites", h.AnalyzedWithWebsites)
		api.GET("/unanalyzed-x", h.UnanalyzedX)

		api.GET("/analysis-counts", h.AnalysisCounts)
		api.GET("/price-stats", h.PriceStats)
		api.GET("/dashboard/metrics", h.DashboardMetrics)

		api.POST("/comment", h.PostComment)
		api.GET("/comment", h.GetComment)
		api.POST("/mark-imposter", h.MarkImposter)
		api.POST("/mark-coin-of-interest", h.MarkCoinOfInterest)
		api.POST("/invalidate", h.Invalidate)
		api.POST("/delete-analysis", h.DeleteAnalysis)

		api.POST("/token-price", h.TokenPrice)
		api.POST("/refresh-prices", h.RefreshPrices)
		api.POST("/batch-price-fetch", h.BatchPriceFetch)
		api.POST("/save-price-data", h.SavePriceData)
		api.POST("/clear-prices", h.ClearPrices)
		api.POST("/get-token-prices", h.GetTokenPrices)
		api.GET("/token-info", h.TokenInfo)

		api.POST("/analyze", h.Analyze)
		api.POST("/reanalyze-call", h.ReanalyzeCall)
		api.POST("/analyze-batch", h.AnalyzeBatch)
		api.POST("/x-analyze", h.XAnalyze)
		api.POST("/reanalyze-x", h.ReanalyzeX)
		api.POST("/x-batch", h.XBatch)

		api.GET("/discovery-tokens", h.DiscoveryTokens)
		api.GET("/discovery-debug", h.DiscoveryDebug)
		api.POST("/discovery/:id/analyze-website", h.AnalyzeWebsite)
		api.GET("/crypto-projects-rated", h.CryptoProjectsRated)

		api.GET("/website-preview", h.WebsitePreview)
		api.POST("/website-preview", h.WebsitePreviews)
		api.POST("/capture-screenshot", h.CaptureScreenshot)

		api.POST("/download-csv", h.DownloadCSV)
		api.GET("/download-csv", h.ExportCalls)
	}

	cron := api.Group("/cron", middleware.CronAuth(cfg.CronSecret))
	{
		jobs := map[string]gin.HandlerFunc{
			"/price-fetch": h.CronPriceFetch,
			"/analyze":     h.CronAnalyze,
			"/x-analyze":   h.CronXAnalyze,
		}
		for path, fn := range jobs {
			cron.GET(path, fn)
			cron.HEAD(path, fn)
		}
	}

	return r, nil
}
