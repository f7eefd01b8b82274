package handlers

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"krom-analysis/models"
	"krom-analysis/repository"
	"krom-analysis/tokenutil"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

func callFilterFrom(c *gin.Context) repository.CallFilter {
	return repository.CallFilter{
		TokenType:          c.Query("tokenType"),
		Networks:           queryList(c, "networks"),
		Tier:               c.Query("tier"),
		ExcludeRugs:        queryBool(c, "excludeRugs"),
		ExcludeImposters:   queryBool(c, "excludeImposters"),
		IncludeInvalidated: queryBool(c, "includeInvalidated"),
		OnlyAnalyzed:       queryBool(c, "onlyAnalyzed"),
		CoinsOfInterest:    queryBool(c, "coinsOfInterest"),
		MinScore:           queryFloat(c, "minScore", 0),
		MinXScore:          queryFloat(c, "minXScore", 0),
		MinWebsiteScore:    queryFloat(c, "minWebsiteScore", 0),
		Search:             strings.TrimSpace(c.Query("search")),
	}
}

// ListCalls pages through calls with the dashboard filters.
func (h *Handler) ListCalls(c *gin.Context) {
	p := repository.NewPage(queryInt(c, "page", 1), queryInt(c, "limit", 50), 50, 500)
	calls, total, err := h.Calls.List(c.Request.Context(), callFilterFrom(c), sortFrom(c, "buy_timestamp"), p)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to fetch calls", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": calls, "pagination": pagination(p, total)})
}

type ingestRequest struct {
	KromID          string         `json:"krom_id" binding:"required"`
	Ticker          string         `json:"ticker"`
	Network         string         `json:"network"`
	ContractAddress string         `json:"contract_address"`
	PoolAddress     string         `json:"pool_address"`
	Source          string         `json:"source"`
	BuyTimestamp    *time.Time     `json:"buy_timestamp"`
	RawData         datatypes.JSON `json:"raw_data"`
}

// IngestCall creates or refreshes a call from the feed. Contract and network
// are filled from the raw payload when the feed leaves them out.
func (h *Handler) IngestCall(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "krom_id is required"})
		return
	}
	raw := tokenutil.ParseRaw(req.RawData)
	call := models.Call{
		KromID:          req.KromID,
		Ticker:          req.Ticker,
		Network:         req.Network,
		ContractAddress: req.ContractAddress,
		PoolAddress:     req.PoolAddress,
		Source:          req.Source,
		BuyTimestamp:    req.BuyTimestamp,
		RawData:         req.RawData,
	}
	if call.ContractAddress == "" {
		call.ContractAddress = raw.Contract()
	}
	if call.ContractAddress == "" {
		call.ContractAddress = tokenutil.ExtractContracts(raw.Message()).First()
	}
	if call.Network == "" {
		call.Network = raw.Network()
	}
	if call.Network == "" && call.ContractAddress != "" {
		call.Network = tokenutil.GuessNetwork(call.ContractAddress)
	}
	if call.Source == "" {
		call.Source = "krom"
	}

	if err := h.Calls.Upsert(c.Request.Context(), &call); err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to save call", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": call})
}

type analyzedCall struct {
	KromID                 string     `json:"krom_id"`
	Token                  string     `json:"token"`
	Contract               string     `json:"contract"`
	Network                string     `json:"network"`
	Score                  *float64   `json:"score"`
	LegitimacyFactor       string     `json:"legitimacy_factor"`
	AnalysisModel          string     `json:"analysis_model"`
	BuyTimestamp           *time.Time `json:"buy_timestamp"`
	AnalyzedAt             time.Time  `json:"analyzed_at"`
	AnalysisReasoning      string     `json:"analysis_reasoning"`
	AnalysisBatchID        string     `json:"analysis_batch_id"`
	AnalysisBatchTimestamp *time.Time `json:"analysis_batch_timestamp"`
	AnalysisPromptUsed     string     `json:"analysis_prompt_used"`
	AnalysisDurationMS     *int64     `json:"analysis_duration_ms"`
	HasComment             bool       `json:"has_comment"`
}

func (h *Handler) Analyzed(c *gin.Context) {
	limit := queryLimit(c, 50, 500)
	offset := queryOffset(c)
	calls, _, err := h.Calls.Analyzed(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to fetch analyzed calls", err)
		return
	}
	out := make([]analyzedCall, len(calls))
	for i, call := range calls {
		analyzedAt := call.CreatedAt
		switch {
		case call.AnalysisReanalyzedAt != nil:
			analyzedAt = *call.AnalysisReanalyzedAt
		case call.AnalyzedAt != nil:
			analyzedAt = *call.AnalyzedAt
		}
		out[i] = analyzedCall{
			KromID:                 call.KromID,
			Token:                  call.Ticker,
			Contract:               call.ContractAddress,
			Network:                call.Network,
			Score:                  call.AnalysisScore,
			LegitimacyFactor:       call.AnalysisLegitimacyFactor,
			AnalysisModel:          call.AnalysisModel,
			BuyTimestamp:           call.BuyTimestamp,
			AnalyzedAt:             analyzedAt,
			AnalysisReasoning:      call.AnalysisReasoning,
			AnalysisBatchID:        call.AnalysisBatchID,
			AnalysisBatchTimestamp: call.AnalysisBatchTimestamp,
			AnalysisPromptUsed:     call.AnalysisPromptUsed,
			AnalysisDurationMS:     call.AnalysisDurationMS,
			HasComment:             strings.TrimSpace(call.UserComment) != "",
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(out),
		"limit":   limit,
		"offset":  offset,
		"results": out,
	})
}

type callWithGroup struct {
	models.Call
	GroupName string `json:"group_name"`
}

func (h *Handler) RecentCalls(c *gin.Context) {
	calls, err := h.Calls.Recent(c.Request.Context(), queryLimit(c, 10, 100), queryOffset(c))
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to fetch recent calls", err)
		return
	}
	out := make([]callWithGroup, len(calls))
	for i, call := range calls {
		out[i] = callWithGroup{Call: call, GroupName: recentGroupName(call)}
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func recentGroupName(call models.Call) string {
	raw := tokenutil.ParseRaw(call.RawData)
	if g := raw.FirstString("group_username", "group_name", "groupName", "group.name"); g != "" {
		return g
	}
	return "Unknown Group"
}

var topCallPeriods = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

// TopCalls returns the nine best ATH ROIs in the requested period.
func (h *Handler) TopCalls(c *gin.Context) {
	var since *time.Time
	if d, ok := topCallPeriods[c.DefaultQuery("period", "all")]; ok {
		t := h.now().Add(-d)
		since = &t
	}
	calls, err := h.Calls.TopByATH(c.Request.Context(), since, 9)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to fetch top calls", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": calls})
}

type performer struct {
	Ticker            string     `json:"ticker"`
	Group             string     `json:"group"`
	Source            string     `json:"source"`
	ATHROIPercent     float64    `json:"ath_roi_percent"`
	CurrentROIPercent float64    `json:"current_roi_percent"`
	ContractAddress   string     `json:"contract_address"`
	Network           string     `json:"network"`
	BuyTimestamp      *time.Time `json:"buy_timestamp"`
}

func (h *Handler) TopPerformers(c *gin.Context) {
	calls, err := h.Calls.TopPerformers(c.Request.Context(), 10, 30)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to fetch performers", err)
		return
	}
	out := []performer{}
	for _, call := range calls {
		p := performer{
			Ticker:          call.Ticker,
			Group:           tokenutil.GroupFor(call.RawData, call.Source),
			Source:          call.Source,
			ContractAddress: call.ContractAddress,
			Network:         call.Network,
			BuyTimestamp:    call.BuyTimestamp,
		}
		if p.Source == "" {
			p.Source = "krom"
		}
		if call.ATHROIPercent != nil {
			p.ATHROIPercent = *call.ATHROIPercent
		}
		if call.ROIPercent != nil {
			p.CurrentROIPercent = *call.ROIPercent
		}
		if p.ATHROIPercent > 0 || p.CurrentROIPercent > 0 {
			out = append(out, p)
		}
	}
	c.JSON(http.StatusOK, gin.H{"performers": out, "count": len(out)})
}

type batchEntry struct {
	KromID           string   `json:"krom_id"`
	Token            string   `json:"token"`
	Contract         string   `json:"contract"`
	Network          string   `json:"network"`
	Score            *float64 `json:"score"`
	LegitimacyFactor string   `json:"legitimacy_factor"`
	Tier             string   `json:"tier"`
}

func (h *Handler) BatchResults(c *gin.Context) {
	batchID := c.Param("batchId")
	calls, err := h.Calls.ByBatch(c.Request.Context(), batchID)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to fetch batch", err)
		return
	}
	if len(calls) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Batch not found"})
		return
	}
	out := make([]batchEntry, len(calls))
	for i, call := range calls {
		out[i] = batchEntry{
			KromID:           call.KromID,
			Token:            call.Ticker,
			Contract:         call.ContractAddress,
			Network:          call.Network,
			Score:            call.AnalysisScore,
			LegitimacyFactor: call.AnalysisLegitimacyFactor,
			Tier:             call.AnalysisTier,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"batchId":   batchID,
		"timestamp": calls[0].AnalysisBatchTimestamp,
		"count":     len(out),
		"results":   out,
	})
}

// Groups lists the distinct structured group names of analyzed calls.
func (h *Handler) Groups(c *gin.Context) {
	calls, err := h.Calls.AnalyzedSources(c.Request.Context())
	if err != nil {
		h.failDetails(c, http.StatusInternalServerError, "Failed to fetch groups", err)
		return
	}
	seen := map[string]bool{}
	groups := []string{}
	for _, call := range calls {
		g := tokenutil.ParseRaw(call.RawData).GroupName()
		if g == "" || g == tokenutil.UnknownGroup || seen[g] {
			continue
		}
		seen[g] = true
		groups = append(groups, g)
	}
	sort.Strings(groups)
	c.JSON(http.StatusOK, gin.H{"success": true, "groups": groups})
}

type chainOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Chains lists the networks seen on analyzed calls, from the column and the
// raw payload.
func (h *Handler) Chains(c *gin.Context) {
	calls, err := h.Calls.AnalyzedSources(c.Request.Context())
	if err != nil {
		h.failDetails(c, http.StatusInternalServerError, "Failed to fetch chains", err)
		return
	}
	seen := map[string]bool{}
	for _, call := range calls {
		for _, n := range []string{call.Network, tokenutil.ParseRaw(call.RawData).Network()} {
			if n = strings.ToLower(strings.TrimSpace(n)); n != "" && n != "unknown" {
				seen[n] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	chains := make([]chainOption, len(names))
	for i, n := range names {
		chains[i] = chainOption{Value: n, Label: strings.ToUpper(n[:1]) + n[1:]}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "chains": chains})
}

func (h *Handler) TopUtilityTokens(c *gin.Context) {
	calls, err := h.Calls.TopUtility(c.Request.Context(), queryLimit(c, 9, 50))
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to fetch utility tokens", err)
		return
	}
	c.JSON(http.StatusOK, calls)
}

type unanalyzedX struct {
	KromID        string     `json:"krom_id"`
	Ticker        string     `json:"ticker"`
	BuyTimestamp  *time.Time `json:"buy_timestamp"`
	Contract      string     `json:"contract"`
	AnalysisScore *float64   `json:"analysis_score"`
	AnalysisTier  string     `json:"analysis_tier"`
}

func (h *Handler) UnanalyzedX(c *gin.Context) {
	calls, err := h.Calls.UnanalyzedX(c.Request.Context(), queryLimit(c, 10, 100))
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to fetch calls", err)
		return
	}
	out := make([]unanalyzedX, len(calls))
	for i, call := range calls {
		out[i] = unanalyzedX{
			KromID:        call.KromID,
			Ticker:        call.Ticker,
			BuyTimestamp:  call.BuyTimestamp,
			Contract:      call.ContractAddress,
			AnalysisScore: call.AnalysisScore,
			AnalysisTier:  call.AnalysisTier,
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(out), "results": out})
}
