package handlers

import (
	"errors"
	"net/http"
	"time"

	"krom-analysis/services/analysis"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) stamp() string {
	return h.now().UTC().Format(time.RFC3339)
}

// CronPriceFetch backfills one batch of historical prices.
func (h *Handler) CronPriceFetch(c *gin.Context) {
	res, err := h.Pricing.BatchFetch(c.Request.Context(), h.Cron.PriceBatch)
	if err != nil {
		h.failDetails(c, http.StatusInternalServerError, "Failed to process price fetch cron", err)
		return
	}
	h.log.Info("cron price fetch", zap.Int("processed", res.Processed), zap.Int("failed", res.Failed))
	c.JSON(http.StatusOK, gin.H{
		"message":    res.Message,
		"processed":  res.Processed,
		"successful": res.Successful,
		"failed":     res.Failed,
		"errors":     res.Errors,
		"cron":       true,
		"timestamp":  h.stamp(),
		"nextRun":    "In 5 minutes",
	})
}

func (h *Handler) CronAnalyze(c *gin.Context) {
	run, err := h.Analysis.AnalyzePending(c.Request.Context(), h.Cron.AnalyzeBatch, "")
	if errors.Is(err, analysis.ErrNothingToAnalyze) {
		c.JSON(http.StatusOK, gin.H{"success": true, "processed": 0, "timestamp": h.stamp()})
		return
	}
	if err != nil {
		h.failDetails(c, http.StatusInternalServerError, "Failed to run analysis", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": run.Count,
		"duration":  run.Duration,
		"timestamp": h.stamp(),
	})
}

// CronXAnalyze rescores stored tweets for the next batch of calls.
func (h *Handler) CronXAnalyze(c *gin.Context) {
	run, err := h.Analysis.XBatch(c.Request.Context(), h.Cron.XBatch, "")
	if err != nil {
		h.failDetails(c, http.StatusInternalServerError, "Failed to run X analysis", err)
		return
	}
	out := gin.H{
		"success":   true,
		"processed": run.Analyzed,
		"timestamp": h.stamp(),
		"model":     run.Model,
		"duration":  analysis.Seconds(time.Duration(run.TotalDurationMS) * time.Millisecond) + "s",
		"results":   len(run.Results),
	}
	if run.BatchID != "" {
		out["batch_id"] = run.BatchID
	}
	c.JSON(http.StatusOK, out)
}
