package handlers

import (
	"net/http"

	"krom-analysis/services/screenshot"

	"github.com/gin-gonic/gin"
)

// WebsitePreview returns a screenshot URL for one site, with fallbacks.
func (h *Handler) WebsitePreview(c *gin.Context) {
	site := c.Query("url")
	if site == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL parameter is required"})
		return
	}
	c.JSON(http.StatusOK, h.Previews.Preview(c.Request.Context(), site))
}

// WebsitePreviews captures several sites in one request.
func (h *Handler) WebsitePreviews(c *gin.Context) {
	var req struct {
		URLs []string `json:"urls"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.URLs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URLs array is required"})
		return
	}
	ctx := c.Request.Context()
	previews := make([]screenshot.Preview, len(req.URLs))
	for i, u := range req.URLs {
		previews[i] = h.Previews.ScreenshotOnly(ctx, u)
	}
	c.JSON(http.StatusOK, gin.H{"previews": previews})
}

type captureRequest struct {
	URL          string `json:"url"`
	TokenID      uint   `json:"tokenId"`
	Table        string `json:"table"`
	ForceRefresh bool   `json:"forceRefresh"`
}

const (
	tableCalls     = "crypto_calls"
	tableDiscovery = "token_discovery"
)

// CaptureScreenshot renders a site in headless Chrome, stores the image and
// records its URL on the token row. An existing screenshot is kept unless
// forceRefresh is set.
func (h *Handler) CaptureScreenshot(c *gin.Context) {
	req := captureRequest{Table: tableCalls}
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
		return
	}
	if req.Table != tableCalls && req.Table != tableDiscovery {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported table"})
		return
	}
	if h.Screenshots == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Screenshot capture is not configured"})
		return
	}
	ctx := c.Request.Context()

	if req.TokenID != 0 && !req.ForceRefresh {
		existing, err := h.storedScreenshot(c, req.Table, req.TokenID)
		if err != nil {
			h.fail(c, http.StatusInternalServerError, err.Error(), err)
			return
		}
		if existing != "" {
			c.JSON(http.StatusOK, gin.H{"success": true, "screenshot_url": existing, "cached": true})
			return
		}
	}

	shot, err := h.Screenshots.Save(ctx, req.URL, req.Table, req.TokenID)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err.Error(), err)
		return
	}
	if req.TokenID != 0 {
		updates := map[string]any{
			"website_screenshot_url":         shot,
			"website_screenshot_captured_at": h.now(),
		}
		if req.Table == tableCalls {
			err = h.Calls.UpdateByID(ctx, req.TokenID, updates)
		} else {
			err = h.Discovery.Update(ctx, req.TokenID, updates)
		}
		if err != nil {
			h.fail(c, http.StatusInternalServerError, err.Error(), err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "screenshot_url": shot, "cached": false})
}

func (h *Handler) storedScreenshot(c *gin.Context, table string, id uint) (string, error) {
	ctx := c.Request.Context()
	if table == tableCalls {
		call, err := h.Calls.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		return call.WebsiteScreenshotURL, nil
	}
	tok, err := h.Discovery.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return tok.WebsiteScreenshotURL, nil
}
