package handlers

import (
	"errors"
	"net/http"

	"krom-analysis/repository"

	"github.com/gin-gonic/gin"
)

// ReanalyzePage reruns the call analysis from a dashboard link and sends the
// browser back to the dashboard.
func (h *Handler) ReanalyzePage(c *gin.Context) {
	kromID := c.Param("krom_id")

	_, err := h.Analysis.Reanalyze(c.Request.Context(), kromID, "")
	if errors.Is(err, repository.ErrNotFound) {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Call not found"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"error": "Analysis generation failed"})
		return
	}

	c.Redirect(http.StatusSeeOther, "/dashboard")
}
