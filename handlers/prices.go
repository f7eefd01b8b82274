package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"krom-analysis/services/dexscreener"
	"krom-analysis/services/pricing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type tokenPriceRequest struct {
	ContractAddress string `json:"contractAddress"`
	CallTimestamp   int64  `json:"callTimestamp"`
	Network         string `json:"network"`
}

// TokenPrice quotes the call price, ATH and current price of one contract
// without storing anything.
func (h *Handler) TokenPrice(c *gin.Context) {
	var req tokenPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ContractAddress == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Contract address is required"})
		return
	}
	q, err := h.Pricing.FetchTokenPrice(c.Request.Context(), req.ContractAddress, req.Network, req.CallTimestamp)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to fetch token price data", err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *Handler) RefreshPrices(c *gin.Context) {
	var req struct {
		Tokens []pricing.TokenRef `json:"tokens"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Tokens == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	res, err := h.Pricing.Refresh(c.Request.Context(), req.Tokens)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to refresh prices", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "prices": res.Prices, "summary": res.Summary})
}

// BatchPriceFetch backfills historical prices for calls that have none.
func (h *Handler) BatchPriceFetch(c *gin.Context) {
	req := struct {
		Count int `json:"count"`
	}{Count: 10}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}
	if req.Count <= 0 {
		req.Count = 10
	}
	res, err := h.Pricing.BatchFetch(c.Request.Context(), min(req.Count, 100))
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to process batch price fetch", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) SavePriceData(c *gin.Context) {
	var req pricing.PriceData
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kromId is required"})
		return
	}
	if err := h.Pricing.Save(c.Request.Context(), req); err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to save price data", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) ClearPrices(c *gin.Context) {
	var req struct {
		KromIDs []string `json:"kromIds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.KromIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or empty kromIds array"})
		return
	}
	n, err := h.Pricing.Clear(c.Request.Context(), req.KromIDs)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to clear prices", err)
		return
	}
	h.log.Info("prices cleared", zap.Int64("rows", n))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Cleared prices for %d calls", len(req.KromIDs)),
	})
}

func (h *Handler) GetTokenPrices(c *gin.Context) {
	var req struct {
		ContractAddress string `json:"contractAddress"`
		Ticker          string `json:"ticker"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || (req.ContractAddress == "" && req.Ticker == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Contract address or ticker is required"})
		return
	}
	prices, err := h.Pricing.Lookup(c.Request.Context(), req.ContractAddress, req.Ticker)
	if errors.Is(err, pricing.ErrNoPriceData) {
		c.JSON(http.StatusOK, gin.H{"priceData": nil, "message": "No price data found"})
		return
	}
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to fetch price data", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"priceData": prices})
}

// TokenInfo proxies DexScreener socials and market data. Lookup failures
// answer with empty fields so the UI can render the card anyway.
func (h *Handler) TokenInfo(c *gin.Context) {
	contract, network := c.Query("contract"), c.Query("network")
	if contract == "" || network == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing contract or network"})
		return
	}
	info, err := h.Dex.TokenInfo(c.Request.Context(), contract, network)
	if err != nil {
		h.log.Warn("token info lookup failed", zap.String("contract", contract), zap.Error(err))
		info = &dexscreener.TokenInfo{}
	}
	c.JSON(http.StatusOK, info)
}
