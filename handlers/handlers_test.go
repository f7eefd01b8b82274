package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"krom-analysis/database"
	"krom-analysis/models"
	"krom-analysis/repository"
	"krom-analysis/services/ai"
	"krom-analysis/services/analysis"
	"krom-analysis/services/dexscreener"
	"krom-analysis/services/pricing"
	"krom-analysis/services/screenshot"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

const (
	pepeCA     = "0x6982508145454ce325ddbe47a25d4ec3d2311933"
	cronSecret = "s3cret"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeAI struct {
	reply func(ai.Request) (string, error)
}

func (f fakeAI) Complete(_ context.Context, req ai.Request) (string, error) {
	if f.reply == nil {
		return "", ai.ErrNotConfigured
	}
	return f.reply(req)
}

type fakeDex struct {
	info *dexscreener.TokenInfo
	err  error
}

func (f fakeDex) TokenInfo(context.Context, string, string) (*dexscreener.TokenInfo, error) {
	return f.info, f.err
}

type fakePreviewer struct{}

func (fakePreviewer) Preview(_ context.Context, site string) screenshot.Preview {
	return screenshot.Preview{URL: site, Success: true, ScreenshotURL: "https://img.test/" + site, Method: screenshot.MethodMicrolink}
}

func (fakePreviewer) ScreenshotOnly(_ context.Context, site string) screenshot.Preview {
	return screenshot.Preview{URL: site, Success: true, ScreenshotURL: "https://img.test/" + site}
}

type fakeShots struct {
	saves int
}

func (f *fakeShots) Save(_ context.Context, _ string, table string, id uint) (string, error) {
	f.saves++
	return fmt.Sprintf("/screenshots/%s-%d.png", table, id), nil
}

type server struct {
	db    *gorm.DB
	calls *repository.Calls
	h     *Handler
	r     *gin.Engine
	shots *fakeShots
}

func newServer(t *testing.T, reply func(ai.Request) (string, error)) *server {
	t.Helper()
	db, err := database.OpenMemory(t.Name())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	calls := repository.NewCalls(db)
	discovery := repository.NewDiscovery(db)
	s := &server{db: db, calls: calls, shots: &fakeShots{}}
	s.h = New(Handler{
		Calls:     calls,
		Stats:     repository.NewStats(db),
		Discovery: discovery,
		Projects:  repository.NewProjects(db),
		Pricing:   pricing.New(calls, nil, nil, pricing.Options{}),
		Analysis: analysis.New(calls, discovery, fakeAI{reply: reply}, nil, nil, analysis.Options{
			DefaultModel: "claude-3-haiku-20240307",
			BatchModel:   "gemini-2.5-pro",
			XModel:       "moonshotai/kimi-k2",
		}),
		Dex:         fakeDex{err: errors.New("dexscreener down")},
		Previews:    fakePreviewer{},
		Screenshots: s.shots,
	})
	s.h.now = func() time.Time { return fixedNow }
	s.r, err = NewRouter(s.h, RouterConfig{CronSecret: cronSecret})
	require.NoError(t, err)
	return s
}

func (s *server) seed(t *testing.T, rows ...any) {
	t.Helper()
	for _, row := range rows {
		require.NoError(t, s.db.Create(row).Error)
	}
}

func (s *server) do(method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func (s *server) get(t *testing.T, kromID string) *models.Call {
	t.Helper()
	c, err := s.calls.GetByKromID(context.Background(), kromID)
	require.NoError(t, err)
	return c
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func f64(v float64) *float64 { return &v }

func ts(day int) *time.Time {
	t := time.Date(2025, 2, day, 9, 0, 0, 0, time.UTC)
	return &t
}

func TestRootRedirectsToDashboard(t *testing.T) {
	s := newServer(t, nil)
	w := s.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
}

func TestListCalls(t *testing.T) {
	s := newServer(t, nil)
	s.seed(t,
		&models.Call{KromID: "k1", Ticker: "AIX", Network: "ethereum", AnalysisScore: f64(8), AnalysisTier: models.TierAlpha, BuyTimestamp: ts(1)},
		&models.Call{KromID: "k2", Ticker: "DOGE2", Network: "solana", AnalysisScore: f64(2), AnalysisTier: models.TierTrash, BuyTimestamp: ts(2)},
		&models.Call{KromID: "k3", Ticker: "FAKE", Network: "ethereum", AnalysisScore: f64(9), AnalysisTier: models.TierAlpha, IsInvalidated: true},
	)

	var out struct {
		Data       []models.Call `json:"data"`
		Pagination struct {
			Total      int64 `json:"total"`
			TotalPages int   `json:"totalPages"`
		} `json:"pagination"`
	}
	w := s.do(http.MethodGet, "/api/calls?tier=ALPHA", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, "k1", out.Data[0].KromID)
	assert.Equal(t, int64(1), out.Pagination.Total)

	w = s.do(http.MethodGet, "/api/calls?sortBy=buy_timestamp&sortOrder=desc", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Data, 2)
	assert.Equal(t, "k2", out.Data[0].KromID)
}

func TestIngestCall(t *testing.T) {
	s := newServer(t, nil)

	w := s.do(http.MethodPost, "/api/calls", map[string]any{
		"krom_id":  "k9",
		"ticker":   "PEPE",
		"raw_data": map[string]any{"token": map[string]any{"ca": pepeCA}, "groupName": "Zeus"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	c := s.get(t, "k9")
	assert.Equal(t, pepeCA, c.ContractAddress)
	assert.NotEmpty(t, c.Network)
	assert.Equal(t, "krom", c.Source)

	w = s.do(http.MethodPost, "/api/calls", map[string]any{"ticker": "PEPE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommentRoundTrip(t *testing.T) {
	s := newServer(t, nil)
	s.seed(t, &models.Call{KromID: "k1", Ticker: "AIX"})

	out := decode(t, s.do(http.MethodGet, "/api/comment?krom_id=k1", nil))
	assert.Nil(t, out["comment"])

	w := s.do(http.MethodPost, "/api/comment", map[string]any{"krom_id": "k1", "comment": " watch this "})
	require.Equal(t, http.StatusOK, w.Code)

	out = decode(t, s.do(http.MethodGet, "/api/comment?krom_id=k1", nil))
	assert.Equal(t, "watch this", out["comment"])
	assert.NotNil(t, out["updated_at"])

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/comment", map[string]any{"comment": "x"}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/comment", map[string]any{"krom_id": "nope", "comment": "x"}).Code)
}

func TestMarkImposterAndInvalidate(t *testing.T) {
	s := newServer(t, nil)
	call := &models.Call{KromID: "k1", Ticker: "AIX"}
	s.seed(t, call)

	out := decode(t, s.do(http.MethodPost, "/api/mark-imposter", map[string]any{"callId": call.ID, "isImposter": true}))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, true, out["data"].(map[string]any)["is_imposter"])
	assert.NotNil(t, s.get(t, "k1").ImposterMarkedAt)

	w := s.do(http.MethodPost, "/api/mark-imposter", map[string]any{"isImposter": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	out = decode(t, s.do(http.MethodPost, "/api/invalidate", map[string]any{"krom_id": "k1", "is_invalidated": true}))
	data := out["data"].(map[string]any)
	assert.Equal(t, true, data["is_invalidated"])
	assert.Equal(t, "Incorrect data", data["invalidation_reason"])

	out = decode(t, s.do(http.MethodPost, "/api/invalidate", map[string]any{"id": call.ID, "is_invalidated": false}))
	data = out["data"].(map[string]any)
	assert.Equal(t, false, data["is_invalidated"])
	assert.Nil(t, data["invalidated_at"])
	assert.Equal(t, "", data["invalidation_reason"])

	w = s.do(http.MethodPost, "/api/invalidate", map[string]any{"is_invalidated": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkCoinOfInterest(t *testing.T) {
	s := newServer(t, nil)
	s.seed(t, &models.Call{KromID: "k1", Ticker: "AIX"})

	out := decode(t, s.do(http.MethodPost, "/api/mark-coin-of-interest",
		map[string]any{"krom_id": "k1", "is_marked": true, "notes": "strong dev"}))
	assert.Equal(t, "Marked as coin of interest", out["message"])
	c := s.get(t, "k1")
	assert.True(t, c.IsCoinOfInterest)
	assert.Equal(t, "strong dev", c.CoinOfInterestNotes)
	assert.NotNil(t, c.CoinOfInterestMarkedAt)

	out = decode(t, s.do(http.MethodPost, "/api/mark-coin-of-interest", map[string]any{"krom_id": "k1", "is_marked": false}))
	assert.Equal(t, "Unmarked as coin of interest", out["message"])
	c = s.get(t, "k1")
	assert.False(t, c.IsCoinOfInterest)
	assert.Empty(t, c.CoinOfInterestNotes)
	assert.Nil(t, c.CoinOfInterestMarkedAt)
}

func TestDeleteAnalysis(t *testing.T) {
	s := newServer(t, nil)
	s.seed(t, &models.Call{KromID: "k1", Ticker: "AIX", AnalysisScore: f64(7), AnalysisReasoning: "ok", XAnalysisScore: f64(5)})

	out := decode(t, s.do(http.MethodPost, "/api/delete-analysis", map[string]any{"krom_id": "k1"}))
	assert.Equal(t, "Analysis data cleared successfully", out["message"])
	c := s.get(t, "k1")
	assert.Nil(t, c.AnalysisScore)
	assert.Nil(t, c.XAnalysisScore)
	assert.Empty(t, c.AnalysisReasoning)
}

func TestGroupsAndChains(t *testing.T) {
	s := newServer(t, nil)
	s.seed(t,
		&models.Call{KromID: "k1", AnalysisScore: f64(5), RawData: datatypes.JSON(`{"groupName":"Zeus Calls","token":{"network":"Solana"}}`)},
		&models.Call{KromID: "k2", AnalysisScore: f64(6), Network: "ethereum", RawData: datatypes.JSON(`{"group":{"name":"Alpha Hub"}}`)},
		&models.Call{KromID: "k3", AnalysisScore: f64(4), Network: "unknown", RawData: datatypes.JSON(`{"groupName":"Unknown"}`)},
		&models.Call{KromID: "k4", Network: "base", RawData: datatypes.JSON(`{"groupName":"Hidden"}`)},
	)

	out := decode(t, s.do(http.MethodGet, "/api/groups", nil))
	assert.Equal(t, []any{"Alpha Hub", "Zeus Calls"}, out["groups"])

	out = decode(t, s.do(http.MethodGet, "/api/chains", nil))
	assert.Equal(t, []any{
		map[string]any{"value": "ethereum", "label": "Ethereum"},
		map[string]any{"value": "solana", "label": "Solana"},
	}, out["chains"])
}

func TestTopPerformers(t *testing.T) {
	s := newServer(t, nil)
	s.seed(t,
		&models.Call{KromID: "k1", Ticker: "MOON", ATHROIPercent: f64(500), ROIPercent: f64(20), RawData: datatypes.JSON(`{"groupName":"Zeus"}`)},
		&models.Call{KromID: "k2", Ticker: "MEH", ATHROIPercent: f64(5), ROIPercent: f64(3)},
		&models.Call{KromID: "k3", ATHROIPercent: f64(900)},
	)

	var out struct {
		Performers []performer `json:"performers"`
		Count      int         `json:"count"`
	}
	w := s.do(http.MethodGet, "/api/top-performers", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, 1, out.Count)
	p := out.Performers[0]
	assert.Equal(t, "MOON", p.Ticker)
	assert.Equal(t, "Zeus", p.Group)
	assert.Equal(t, "krom", p.Source)
	assert.Equal(t, 500.0, p.ATHROIPercent)
}

func TestTopCallsPeriod(t *testing.T) {
	s := newServer(t, nil)
	recent := fixedNow.Add(-2 * time.Hour)
	old := fixedNow.Add(-30 * 24 * time.Hour)
	s.seed(t,
		&models.Call{KromID: "k1", Ticker: "NEW", ATHROIPercent: f64(50), BuyTimestamp: &recent},
		&models.Call{KromID: "k2", Ticker: "OLD", ATHROIPercent: f64(300), BuyTimestamp: &old},
	)

	var out struct {
		Data []models.Call `json:"data"`
	}
	require.NoError(t, json.Unmarshal(s.do(http.MethodGet, "/api/top-calls?period=24h", nil).Body.Bytes(), &out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, "NEW", out.Data[0].Ticker)

	require.NoError(t, json.Unmarshal(s.do(http.MethodGet, "/api/top-calls", nil).Body.Bytes(), &out))
	require.Len(t, out.Data, 2)
	assert.Equal(t, "OLD", out.Data[0].Ticker)
}

func TestListLimitsAreClamped(t *testing.T) {
	s := newServer(t, nil)
	calls := make([]models.Call, 120)
	for i := range calls {
		calls[i] = models.Call{
			KromID:            fmt.Sprintf("k%03d", i),
			Ticker:            fmt.Sprintf("T%d", i),
			ContractAddress:   fmt.Sprintf("0x%040d", i),
			AnalysisScore:     f64(5),
			AnalysisTier:      models.TierSolid,
			AnalysisTokenType: models.TokenTypeUtility,
			LiquidityUSD:      f64(float64(1000 + i)),
			BuyTimestamp:      ts(1 + i%27),
		}
	}
	require.NoError(t, s.db.CreateInBatches(calls, 40).Error)

	out := decode(t, s.do(http.MethodGet, "/api/analyzed?limit=-1&offset=-5", nil))
	assert.Equal(t, 50.0, out["limit"])
	assert.Equal(t, 0.0, out["offset"])
	assert.Equal(t, 50.0, out["count"])
	out = decode(t, s.do(http.MethodGet, "/api/analyzed?limit=100000", nil))
	assert.Equal(t, 500.0, out["limit"])
	assert.Equal(t, 120.0, out["count"])

	var recent struct {
		Data []callWithGroup `json:"data"`
	}
	require.NoError(t, json.Unmarshal(s.do(http.MethodGet, "/api/recent-calls?limit=-1", nil).Body.Bytes(), &recent))
	assert.Len(t, recent.Data, 10)
	require.NoError(t, json.Unmarshal(s.do(http.MethodGet, "/api/recent-calls?limit=100000", nil).Body.Bytes(), &recent))
	assert.Len(t, recent.Data, 100)

	var utility []models.Call
	require.NoError(t, json.Unmarshal(s.do(http.MethodGet, "/api/top-utility-tokens?limit=-1", nil).Body.Bytes(), &utility))
	assert.Len(t, utility, 9)
	require.NoError(t, json.Unmarshal(s.do(http.MethodGet, "/api/top-utility-tokens?limit=100000", nil).Body.Bytes(), &utility))
	assert.Len(t, utility, 50)

	assert.Equal(t, 10.0, decode(t, s.do(http.MethodGet, "/api/unanalyzed-x?limit=-1", nil))["count"])
	assert.Equal(t, 100.0, decode(t, s.do(http.MethodGet, "/api/unanalyzed-x?limit=100000", nil))["count"])
}

func TestBulletPoints(t *testing.T) {
	full := models.Call{
		AnalysisTokenType: "utility",
		AnalysisReasoning: "Strong team and a growing community. Recently launched mainnet.",
		ROIPercent:        f64(250),
	}
	assert.Equal(t, []string{
		"Utility token", "Active development team", "Strong community presence", "Recently launched",
	}, bulletPoints(full))

	sparse := models.Call{LiquidityUSD: f64(2_500_000)}
	assert.Equal(t, []string{"Unknown token", "$2.5M liquidity", "$2.5M liquidity"}, bulletPoints(sparse))

	roi := models.Call{XAnalysisTokenType: "meme", ATHROIPercent: f64(420)}
	assert.Equal(t, []string{"Meme token", "420% ATH ROI", "Early stage project"}, bulletPoints(roi))
}

func TestAnalyzeNothingPending(t *testing.T) {
	s := newServer(t, nil)
	w := s.do(http.MethodPost, "/api/analyze", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No unanalyzed calls found", decode(t, w)["error"])
}

func TestAnalyzeBatchWithoutKey(t *testing.T) {
	s := newServer(t, nil)
	s.seed(t, &models.Call{KromID: "k1", Ticker: "AIX"})

	w := s.do(http.MethodPost, "/api/analyze-batch", map[string]any{"limit": 3})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Gemini API key not configured", decode(t, w)["error"])
}

func TestReanalyzeCall(t *testing.T) {
	reply := "Score: 8\nToken Type: Utility\nLegitimacy Factor: High\nReasoning: Shipping product."
	s := newServer(t, func(ai.Request) (string, error) { return reply, nil })
	s.seed(t, &models.Call{KromID: "k1", Ticker: "AIX", ContractAddress: pepeCA})

	out := decode(t, s.do(http.MethodPost, "/api/reanalyze-call", map[string]any{"krom_id": "k1"}))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, models.TierAlpha, out["result"].(map[string]any)["tier"])

	w := s.do(http.MethodPost, "/api/reanalyze-call", map[string]any{"krom_id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Call not found", decode(t, w)["error"])
}

func TestXAnalyzeNotConfigured(t *testing.T) {
	s := newServer(t, nil)
	s.seed(t, &models.Call{KromID: "k1", Ticker: "AIX", ContractAddress: pepeCA})

	w := s.do(http.MethodPost, "/api/x-analyze", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Call ID is required", decode(t, w)["error"])

	w = s.do(http.MethodPost, "/api/x-analyze", map[string]any{"krom_id": "k1"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, xNotConfigured, decode(t, w)["error"])
}

func TestReanalyzeXWithoutTweets(t *testing.T) {
	s := newServer(t, nil)
	s.seed(t, &models.Call{KromID: "k1", Ticker: "AIX"})

	w := s.do(http.MethodPost, "/api/reanalyze-x", map[string]any{"krom_id": "k1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "No tweets available")

	w = s.do(http.MethodPost, "/api/reanalyze-x", map[string]any{"krom_id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestXBatchEmpty(t *testing.T) {
	s := newServer(t, nil)
	out := decode(t, s.do(http.MethodPost, "/api/x-batch", nil))
	assert.Equal(t, "No calls found that need X analysis", out["message"])
	assert.Equal(t, 0.0, out["analyzed"])
}

func TestReanalyzePage(t *testing.T) {
	reply := "Score: 5\nToken Type: Meme\nLegitimacy Factor: Medium\nReasoning: Hype only."
	s := newServer(t, func(ai.Request) (string, error) { return reply, nil })
	s.seed(t, &models.Call{KromID: "k1", Ticker: "AIX"})

	w := s.do(http.MethodGet, "/reanalyze/k1", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
	assert.Equal(t, models.TierBasic, s.get(t, "k1").AnalysisTier)

	w = s.do(http.MethodGet, "/reanalyze/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Call not found")
}

func TestDashboard(t *testing.T) {
	s := newServer(t, nil)
	updated := fixedNow.Add(-10 * time.Minute)
	s.seed(t,
		&models.Call{KromID: "k1", Ticker: "ZEUSX", AnalysisScore: f64(8), AnalysisTier: models.TierAlpha,
			ROIPercent: f64(150), PriceUpdatedAt: &updated},
		&models.Call{KromID: "k2", Ticker: "RUGME", AnalysisScore: f64(1), AnalysisTier: models.TierTrash},
	)

	w := s.do(http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "ZEUSX")
	assert.Contains(t, body, "RUGME")
	assert.Contains(t, body, `class="roi-moon"`)
	assert.Contains(t, body, `class="fresh"`)
	assert.NotContains(t, body, "Avg score")

	w = s.do(http.MethodGet, "/dashboard?tier=ALPHA", nil)
	body = w.Body.String()
	assert.Contains(t, body, "ZEUSX")
	assert.NotContains(t, body, "RUGME")
	assert.Contains(t, body, "Avg score: <b>8.0</b>")
}

func TestDownloadCSV(t *testing.T) {
	s := newServer(t, nil)

	w := s.do(http.MethodPost, "/api/download-csv", map[string]any{
		"data":     json.RawMessage(`[{"ticker":"AIX","note":"a,b"},{"ticker":"PEPE","note":null}]`),
		"filename": "out.csv",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="out.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "ticker,note\nAIX,\"a,b\"\nPEPE,\n", w.Body.String())

	w = s.do(http.MethodPost, "/api/download-csv", map[string]any{"data": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportCalls(t *testing.T) {
	s := newServer(t, nil)
	s.seed(t,
		&models.Call{KromID: "k1", Ticker: "AIX", AnalysisScore: f64(7)},
		&models.Call{KromID: "k2", Ticker: "NOPE"},
	)

	w := s.do(http.MethodGet, "/api/download-csv?type=analyzed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="krom-analyzed-data.csv"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "k1,AIX")
	assert.NotContains(t, w.Body.String(), "NOPE")

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/download-csv?type=bogus", nil).Code)
}

func TestPriceEndpoints(t *testing.T) {
	s := newServer(t, nil)
	s.seed(t, &models.Call{KromID: "k1", Ticker: "AIX", ContractAddress: pepeCA, PriceAtCall: f64(1), ATHPrice: f64(3)})

	out := decode(t, s.do(http.MethodPost, "/api/get-token-prices", map[string]any{"ticker": "NONE"}))
	assert.Nil(t, out["priceData"])
	assert.Equal(t, "No price data found", out["message"])

	out = decode(t, s.do(http.MethodPost, "/api/get-token-prices", map[string]any{"contractAddress": pepeCA}))
	assert.Equal(t, 3.0, out["priceData"].(map[string]any)["ath"])

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/get-token-prices", map[string]any{}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/clear-prices", map[string]any{"kromIds": []string{}}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/save-price-data", map[string]any{"roi": 5}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/token-price", map[string]any{}).Code)

	out = decode(t, s.do(http.MethodPost, "/api/save-price-data", map[string]any{"kromId": "k1", "currentPrice": 2.5, "roi": 150}))
	assert.Equal(t, true, out["success"])
	c := s.get(t, "k1")
	require.NotNil(t, c.CurrentPrice)
	assert.Equal(t, 2.5, *c.CurrentPrice)
	assert.NotNil(t, c.PriceFetchedAt)

	out = decode(t, s.do(http.MethodPost, "/api/clear-prices", map[string]any{"kromIds": []string{"k1"}}))
	assert.Equal(t, "Cleared prices for 1 calls", out["message"])
	assert.Nil(t, s.get(t, "k1").CurrentPrice)
}

func TestTokenInfoFallsBackToEmpty(t *testing.T) {
	s := newServer(t, nil)

	w := s.do(http.MethodGet, "/api/token-info?contract="+pepeCA, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/token-info?contract="+pepeCA+"&network=ethereum", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Contains(t, out, "website")
	assert.Nil(t, out["website"])
}

func TestCronAuth(t *testing.T) {
	s := newServer(t, nil)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/cron/analyze", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodHead, "/api/cron/analyze", nil).Code)

	out := decode(t, s.do(http.MethodGet, "/api/cron/analyze?auth="+cronSecret, nil))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, 0.0, out["processed"])

	req := httptest.NewRequest(http.MethodGet, "/api/cron/price-fetch", nil)
	req.Header.Set("Authorization", "Bearer "+cronSecret)
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	out = decode(t, w)
	assert.Equal(t, true, out["cron"])
	assert.Equal(t, "In 5 minutes", out["nextRun"])
	assert.Equal(t, "No calls found that need price data", out["message"])
}

func TestWebsitePreview(t *testing.T) {
	s := newServer(t, nil)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/website-preview", nil).Code)

	out := decode(t, s.do(http.MethodGet, "/api/website-preview?url=aix.io", nil))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "https://img.test/aix.io", out["screenshotUrl"])

	out = decode(t, s.do(http.MethodPost, "/api/website-preview", map[string]any{"urls": []string{"a.io", "b.io"}}))
	assert.Len(t, out["previews"], 2)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/website-preview", map[string]any{}).Code)
}

func TestCaptureScreenshot(t *testing.T) {
	s := newServer(t, nil)
	call := &models.Call{KromID: "k1", Ticker: "AIX", WebsiteURL: "https://aix.io"}
	s.seed(t, call)

	body := map[string]any{"url": "https://aix.io", "tokenId": call.ID}
	out := decode(t, s.do(http.MethodPost, "/api/capture-screenshot", body))
	want := fmt.Sprintf("/screenshots/crypto_calls-%d.png", call.ID)
	assert.Equal(t, want, out["screenshot_url"])
	assert.Equal(t, false, out["cached"])
	c := s.get(t, "k1")
	assert.Equal(t, want, c.WebsiteScreenshotURL)
	assert.NotNil(t, c.WebsiteScreenshotCapturedAt)

	out = decode(t, s.do(http.MethodPost, "/api/capture-screenshot", body))
	assert.Equal(t, true, out["cached"])
	assert.Equal(t, 1, s.shots.saves)

	body["forceRefresh"] = true
	decode(t, s.do(http.MethodPost, "/api/capture-screenshot", body))
	assert.Equal(t, 2, s.shots.saves)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/capture-screenshot", map[string]any{}).Code)
	assert.Equal(t, http.StatusBadRequest,
		s.do(http.MethodPost, "/api/capture-screenshot", map[string]any{"url": "x", "table": "users"}).Code)
}

func TestDiscoveryDebug(t *testing.T) {
	s := newServer(t, nil)
	analyzed := fixedNow.Add(-time.Hour)
	s.seed(t,
		&models.DiscoveryToken{Symbol: "GOOD", WebsiteURL: "https://good.io", WebsiteAnalyzedAt: &analyzed,
			WebsiteStage1Score: f64(8), FirstSeenAt: fixedNow.Add(-3 * time.Hour),
			WebsiteStage1Analysis: datatypes.JSON(`{"score":8,"tier":"ALPHA","scrape_metrics":{"text_length":4000,"link_count":12}}`)},
		&models.DiscoveryToken{Symbol: "THIN", WebsiteURL: "https://thin.io", WebsiteAnalyzedAt: &analyzed,
			WebsiteStage1Score: f64(1), FirstSeenAt: fixedNow.Add(-2 * time.Hour),
			WebsiteStage1Analysis: datatypes.JSON(`{"score":1,"tier":"TRASH","scrape_metrics":{"text_length":0,"link_count":0}}`)},
		&models.DiscoveryToken{Symbol: "NEW", WebsiteURL: "https://new.io", FirstSeenAt: fixedNow.Add(-time.Hour)},
		&models.DiscoveryToken{Symbol: "NOSITE", FirstSeenAt: fixedNow},
	)

	out := decode(t, s.do(http.MethodGet, "/api/discovery-debug?filter=scrape_failed", nil))
	tokens := out["tokens"].([]any)
	require.Len(t, tokens, 1)
	assert.Equal(t, "THIN", tokens[0].(map[string]any)["symbol"])
	assert.Equal(t, false, out["hasMore"])

	stats := out["stats"].(map[string]any)
	assert.Equal(t, 3.0, stats["total"])
	assert.Equal(t, 2.0, stats["analyzed"])
	assert.Equal(t, 1.0, stats["promotable"])
	assert.Equal(t, 1.0, stats["scrapeFailed"])

	out = decode(t, s.do(http.MethodGet, "/api/discovery-debug?limit=2", nil))
	assert.Len(t, out["tokens"], 2)
	assert.Equal(t, true, out["hasMore"])
}

func TestCryptoProjectsRated(t *testing.T) {
	s := newServer(t, nil)
	s.seed(t,
		&models.RatedProject{Symbol: "AAA", WebsiteStage1Score: f64(9), WebsiteStage1Tier: models.TierAlpha},
		&models.RatedProject{Symbol: "BBB", WebsiteStage1Score: f64(4), WebsiteStage1Tier: models.TierBasic},
		&models.RatedProject{Symbol: "RUG", WebsiteStage1Score: f64(8), IsRugged: true},
	)

	out := decode(t, s.do(http.MethodGet, "/api/crypto-projects-rated?minScore=5&sortBy=bogus", nil))
	data := out["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "AAA", data[0].(map[string]any)["symbol"])
	filters := out["filters"].(map[string]any)
	assert.Equal(t, "website_stage1_score", filters["sortBy"])
	assert.Equal(t, "desc", filters["sortOrder"])
	assert.Equal(t, false, out["pagination"].(map[string]any)["hasMore"])
}

func TestStatsEndpoints(t *testing.T) {
	s := newServer(t, nil)
	s.seed(t,
		&models.Call{KromID: "k1", ContractAddress: pepeCA, AnalysisScore: f64(7), PriceAtCall: f64(1), CurrentPrice: f64(2)},
		&models.Call{KromID: "k2", ContractAddress: "So11111111111111111111111111111111111111112", AnalysisScore: f64(3)},
		&models.Call{KromID: "k3"},
	)

	out := decode(t, s.do(http.MethodGet, "/api/analysis-counts", nil))
	assert.Equal(t, 3.0, out["total"])
	assert.Equal(t, 2.0, out["callAnalysis"])
	assert.Equal(t, 2.0, out["withContracts"])
	assert.Equal(t, 1.0, out["pricesFetched"])

	out = decode(t, s.do(http.MethodGet, "/api/price-stats", nil))
	stats := out["stats"].(map[string]any)
	assert.Equal(t, "50.0", stats["percentComplete"])
	assert.Equal(t, 1.0, stats["needsPriceData"])
	est := out["estimatedTime"].(map[string]any)
	assert.Equal(t, 1.0, est["cronRuns"])

	out = decode(t, s.do(http.MethodGet, "/api/dashboard/metrics", nil))
	assert.Equal(t, 3.0, out["callAnalysisPending"])
	assert.Equal(t, 0.0, out["processingRate"])
}
