package handlers

import (
	"errors"
	"net/http"

	"krom-analysis/repository"
	"krom-analysis/services/ai"
	"krom-analysis/services/analysis"

	"github.com/gin-gonic/gin"
)

type AnalysisRequest struct {
	Limit int    `json:"limit"`
	Model string `json:"model"`
}

// bindOptional decodes a JSON body when one is sent. An empty body keeps
// the defaults already in dst.
func bindOptional(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return false
	}
	return true
}

func (h *Handler) aiFailure(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
		return
	case errors.Is(err, ai.ErrNotConfigured):
		h.fail(c, http.StatusInternalServerError, "AI provider API key not configured", err)
		return
	}
	h.failDetails(c, http.StatusInternalServerError, msg, err)
}

// Analyze scores the next unanalyzed calls one request at a time.
func (h *Handler) Analyze(c *gin.Context) {
	req := AnalysisRequest{Limit: 5}
	if !bindOptional(c, &req) {
		return
	}
	run, err := h.Analysis.AnalyzePending(c.Request.Context(), req.Limit, req.Model)
	if errors.Is(err, analysis.ErrNothingToAnalyze) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No unanalyzed calls found"})
		return
	}
	if err != nil {
		h.aiFailure(c, "Failed to analyze calls", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"count":    run.Count,
		"model":    run.Model,
		"duration": run.Duration,
		"results":  run.Results,
	})
}

func (h *Handler) ReanalyzeCall(c *gin.Context) {
	var req struct {
		KromID string `json:"krom_id"`
		Model  string `json:"model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.KromID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "krom_id is required"})
		return
	}
	res, err := h.Analysis.Reanalyze(c.Request.Context(), req.KromID, req.Model)
	if err != nil {
		h.aiFailure(c, "Failed to reanalyze call", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}

// AnalyzeBatch scores several calls with a single model request.
func (h *Handler) AnalyzeBatch(c *gin.Context) {
	req := AnalysisRequest{Limit: 5}
	if !bindOptional(c, &req) {
		return
	}
	run, err := h.Analysis.AnalyzeBatch(c.Request.Context(), req.Limit, req.Model)
	switch {
	case errors.Is(err, analysis.ErrNothingToAnalyze):
		c.JSON(http.StatusNotFound, gin.H{"error": "No unanalyzed calls found"})
		return
	case errors.Is(err, ai.ErrNotConfigured):
		h.fail(c, http.StatusInternalServerError, "Gemini API key not configured", err)
		return
	case errors.Is(err, analysis.ErrBatchParse):
		h.failDetails(c, http.StatusInternalServerError, "Failed to parse batch analysis results", err)
		return
	case err != nil:
		h.failDetails(c, http.StatusInternalServerError, "Failed to analyze batch", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"batchId":         run.BatchID,
		"count":           run.Count,
		"model":           run.Model,
		"duration":        run.Duration,
		"batchProcessing": true,
		"tokensPerCall":   run.TokensPerCall,
		"results":         run.Results,
	})
}

const xNotConfigured = "X analysis is not configured. Please add SCRAPERAPI_KEY to environment variables."

// XAnalyze scrapes recent tweets for one call and scores them.
func (h *Handler) XAnalyze(c *gin.Context) {
	var req struct {
		KromID string `json:"krom_id"`
		Force  bool   `json:"force"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.KromID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Call ID is required"})
		return
	}
	if !h.XConfigured {
		c.JSON(http.StatusInternalServerError, gin.H{"error": xNotConfigured})
		return
	}
	res, err := h.Analysis.AnalyzeX(c.Request.Context(), req.KromID, req.Force)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
		return
	case errors.Is(err, analysis.ErrNoContract):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No contract address found for this call"})
		return
	case errors.Is(err, analysis.ErrTweetFetch):
		h.failDetails(c, http.StatusInternalServerError, "Failed to fetch X data", err)
		return
	case errors.Is(err, analysis.ErrTweetAnalysis):
		h.fail(c, http.StatusInternalServerError, "Failed to analyze tweets", err)
		return
	case err != nil:
		h.fail(c, http.StatusInternalServerError, "Failed to analyze X data", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

// ReanalyzeX rescores the tweets already stored for a call.
func (h *Handler) ReanalyzeX(c *gin.Context) {
	var req struct {
		KromID string `json:"krom_id"`
		Model  string `json:"model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.KromID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "krom_id is required"})
		return
	}
	res, err := h.Analysis.ReanalyzeX(c.Request.Context(), req.KromID, req.Model)
	if errors.Is(err, analysis.ErrNoTweets) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "No tweets available for this token. X analysis requires historical tweet data.",
		})
		return
	}
	if err != nil {
		h.aiFailure(c, "Failed to reanalyze X data", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}

func (h *Handler) XBatch(c *gin.Context) {
	req := AnalysisRequest{Limit: 10}
	if !bindOptional(c, &req) {
		return
	}
	run, err := h.Analysis.XBatch(c.Request.Context(), req.Limit, req.Model)
	if err != nil {
		h.aiFailure(c, "Failed to run X batch", err)
		return
	}
	if run.BatchID == "" {
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"message":  "No calls found that need X analysis",
			"analyzed": 0,
		})
		return
	}
	out := gin.H{
		"success":           true,
		"batch_id":          run.BatchID,
		"analyzed":          run.Analyzed,
		"results":           run.Results,
		"total_duration_ms": run.TotalDurationMS,
		"model_used":        run.Model,
	}
	if len(run.Errors) > 0 {
		out["errors"] = run.Errors
	}
	c.JSON(http.StatusOK, out)
}
