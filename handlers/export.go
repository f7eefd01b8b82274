package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"krom-analysis/export"
	"krom-analysis/repository"

	"github.com/gin-gonic/gin"
)

const exportLimit = 10_000

func sendCSV(c *gin.Context, filename string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "text/csv", body)
}

// DownloadCSV turns rows posted by the UI into a CSV attachment.
func (h *Handler) DownloadCSV(c *gin.Context) {
	var req struct {
		Data     json.RawMessage `json:"data"`
		Filename string          `json:"filename"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Data) == 0 || string(req.Data) == "null" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}
	if req.Filename == "" {
		req.Filename = "krom-analysis.csv"
	}
	var buf bytes.Buffer
	err := export.WriteJSON(&buf, req.Data)
	if errors.Is(err, export.ErrNoData) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}
	if err != nil {
		h.failDetails(c, http.StatusInternalServerError, "Failed to generate CSV", err)
		return
	}
	sendCSV(c, req.Filename, buf.Bytes())
}

// ExportCalls streams calls from the database as CSV. type=analyzed keeps
// only calls with a call analysis.
func (h *Handler) ExportCalls(c *gin.Context) {
	kind := c.DefaultQuery("type", "calls")
	if kind != "calls" && kind != "analyzed" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be calls or analyzed"})
		return
	}
	f := callFilterFrom(c)
	f.OnlyAnalyzed = f.OnlyAnalyzed || kind == "analyzed"
	calls, _, err := h.Calls.List(c.Request.Context(), f, sortFrom(c, "buy_timestamp"),
		repository.NewPage(1, exportLimit, exportLimit, exportLimit))
	if err != nil {
		h.failDetails(c, http.StatusInternalServerError, "Failed to generate CSV", err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCalls(&buf, calls); err != nil {
		h.failDetails(c, http.StatusInternalServerError, "Failed to generate CSV", err)
		return
	}
	sendCSV(c, "krom-"+kind+"-data.csv", buf.Bytes())
}
