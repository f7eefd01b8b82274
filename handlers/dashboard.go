package handlers

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"krom-analysis/models"
	"krom-analysis/repository"
	"krom-analysis/tokenutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"tierClass": func(tier string) string {
		if tier == "" {
			return "tier-none"
		}
		return "tier-" + strings.ToLower(tier)
	},
	"freshness": func(updatedAt *time.Time, now time.Time) string {
		return string(models.PriceFreshness(updatedAt, now))
	},
	"roiClass": models.ROIClass,
	"score": func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.1f", *v)
	},
	"percent": func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%+.0f%%", *v)
	},
	"when": func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.UTC().Format("2006-01-02 15:04")
	},
	"list": func(v ...string) []string { return v },
	"group": func(c models.Call) string {
		return tokenutil.GroupFor(c.RawData, c.Source)
	},
}

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
}

type DashboardData struct {
	Filters FilterParams
	Calls   []models.Call
	Stats   *StatsData
	Now     time.Time
}

type FilterParams struct {
	Tier      string
	Network   string
	TokenType string
	Search    string
	MinScore  float64
}

type StatsData struct {
	Total    int64
	Alpha    int64
	Solid    int64
	Utility  int64
	Meme     int64
	AvgScore float64
}

func (h *Handler) Dashboard(c *gin.Context) {
	fp := FilterParams{
		Tier:      c.Query("tier"),
		Network:   c.Query("network"),
		TokenType: c.Query("tokenType"),
		Search:    strings.TrimSpace(c.Query("search")),
		MinScore:  queryFloat(c, "minScore", 0),
	}
	f := repository.CallFilter{
		Tier:      fp.Tier,
		TokenType: fp.TokenType,
		Search:    fp.Search,
		MinScore:  fp.MinScore,
	}
	if fp.Network != "" {
		f.Networks = []string{fp.Network}
	}

	ctx := c.Request.Context()
	calls, _, err := h.Calls.List(ctx, f, repository.Sort{Column: "buy_timestamp"}, repository.NewPage(1, 50, 50, 50))
	if err != nil {
		h.log.Error("dashboard calls", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"error": "Database error"})
		return
	}

	// Stats only when a filter narrows the list.
	var stats *StatsData
	if f.Active() {
		s, err := h.Calls.Summary(ctx, f)
		if err != nil {
			h.log.Error("dashboard stats", zap.Error(err))
			c.HTML(http.StatusInternalServerError, "error.html", gin.H{"error": "Database error"})
			return
		}
		stats = &StatsData{
			Total:    s.Total,
			Alpha:    s.Alpha,
			Solid:    s.Solid,
			Utility:  s.Utility,
			Meme:     s.Meme,
			AvgScore: s.AvgScore,
		}
	}

	c.HTML(http.StatusOK, "dashboard.html", DashboardData{
		Filters: fp,
		Calls:   calls,
		Stats:   stats,
		Now:     h.now(),
	})
}
