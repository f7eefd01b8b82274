package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"krom-analysis/repository"
	"krom-analysis/services/analysis"
	"krom-analysis/services/dexscreener"
	"krom-analysis/services/pricing"
	"krom-analysis/services/screenshot"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenInfoSource looks up socials and market data for a contract.
type TokenInfoSource interface {
	TokenInfo(ctx context.Context, contract, network string) (*dexscreener.TokenInfo, error)
}

type Previewer interface {
	Preview(ctx context.Context, site string) screenshot.Preview
	ScreenshotOnly(ctx context.Context, site string) screenshot.Preview
}

// ScreenshotStore captures a site and returns the public URL of the image.
type ScreenshotStore interface {
	Save(ctx context.Context, site, table string, id uint) (string, error)
}

// CronLimits sizes the batches run by the cron endpoints.
type CronLimits struct {
	PriceBatch   int
	AnalyzeBatch int
	XBatch       int
}

type Handler struct {
	Calls       *repository.Calls
	Stats       *repository.Stats
	Discovery   *repository.Discovery
	Projects    *repository.Projects
	Pricing     *pricing.Service
	Analysis    *analysis.Service
	Dex         TokenInfoSource
	Previews    Previewer
	Screenshots ScreenshotStore
	Cron        CronLimits
	// XConfigured is false when no scraper key is set.
	XConfigured bool

	now func() time.Time
	log *zap.Logger
}

func New(h Handler) *Handler {
	if h.Cron.PriceBatch <= 0 {
		h.Cron.PriceBatch = 10
	}
	if h.Cron.AnalyzeBatch <= 0 {
		h.Cron.AnalyzeBatch = 20
	}
	if h.Cron.XBatch <= 0 {
		h.Cron.XBatch = 5
	}
	h.now = time.Now
	h.log = zap.L().Named("http")
	return &h
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// queryLimit reads ?limit, falling back to def when missing or not positive
// and capping at ceiling.
func queryLimit(c *gin.Context, def, ceiling int) int {
	v := queryInt(c, "limit", def)
	if v <= 0 {
		v = def
	}
	return min(v, ceiling)
}

func queryOffset(c *gin.Context) int {
	return max(queryInt(c, "offset", 0), 0)
}

func queryFloat(c *gin.Context, key string, def float64) float64 {
	v, err := strconv.ParseFloat(c.Query(key), 64)
	if err != nil {
		return def
	}
	return v
}

func queryBool(c *gin.Context, key string) bool {
	b, _ := strconv.ParseBool(c.Query(key))
	return b
}

// queryList accepts both ?k=a&k=b and ?k=a,b.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.QueryArray(key) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func sortFrom(c *gin.Context, def string) repository.Sort {
	return repository.Sort{
		Column: c.DefaultQuery("sortBy", def),
		Asc:    strings.EqualFold(c.Query("sortOrder"), "asc"),
	}
}

func pagination(p repository.Page, total int64) gin.H {
	return gin.H{
		"page":       p.Page,
		"limit":      p.Limit,
		"total":      total,
		"totalPages": p.TotalPages(total),
	}
}

// fail answers with a JSON error, 404 for missing rows and status otherwise.
func (h *Handler) fail(c *gin.Context, status int, msg string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		status = http.StatusNotFound
	}
	if err != nil {
		_ = c.Error(err)
		h.log.Warn(msg, zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}

func (h *Handler) failDetails(c *gin.Context, status int, msg string, err error) {
	_ = c.Error(err)
	h.log.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(status, gin.H{"error": msg, "details": err.Error()})
}
