package handlers

import (
	"errors"
	"net/http"
	"strings"

	"krom-analysis/models"
	"krom-analysis/repository"

	"github.com/gin-gonic/gin"
)

type commentRequest struct {
	KromID  string `json:"krom_id"`
	Comment string `json:"comment"`
}

func (h *Handler) PostComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.KromID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "krom_id is required"})
		return
	}
	err := h.Calls.UpdateByKromID(c.Request.Context(), req.KromID, map[string]any{
		"user_comment":            strings.TrimSpace(req.Comment),
		"user_comment_updated_at": h.now(),
	})
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to save comment", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) GetComment(c *gin.Context) {
	kromID := c.Query("krom_id")
	if kromID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "krom_id is required"})
		return
	}
	call, err := h.Calls.GetByKromID(c.Request.Context(), kromID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && call.UserComment == "") {
		c.JSON(http.StatusOK, gin.H{"comment": nil, "updated_at": nil})
		return
	}
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to fetch comment", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": call.UserComment, "updated_at": call.UserCommentUpdatedAt})
}

type imposterRequest struct {
	CallID     uint `json:"callId"`
	IsImposter bool `json:"isImposter"`
}

func (h *Handler) MarkImposter(c *gin.Context) {
	var req imposterRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CallID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Call ID is required"})
		return
	}
	ctx := c.Request.Context()
	updates := map[string]any{"is_imposter": req.IsImposter, "imposter_marked_at": nil}
	if req.IsImposter {
		updates["imposter_marked_at"] = h.now()
	}
	if err := h.Calls.UpdateByID(ctx, req.CallID, updates); err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to update imposter status", err)
		return
	}
	call, err := h.Calls.GetByID(ctx, req.CallID)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to update imposter status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"id": call.ID, "ticker": call.Ticker, "is_imposter": call.IsImposter},
	})
}

type coinOfInterestRequest struct {
	KromID   string `json:"krom_id"`
	IsMarked bool   `json:"is_marked"`
	Notes    string `json:"notes"`
}

func (h *Handler) MarkCoinOfInterest(c *gin.Context) {
	var req coinOfInterestRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.KromID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "krom_id is required"})
		return
	}
	updates := map[string]any{
		"is_coin_of_interest":        req.IsMarked,
		"coin_of_interest_marked_at": nil,
		"coin_of_interest_notes":     nil,
	}
	msg := "Unmarked as coin of interest"
	if req.IsMarked {
		updates["coin_of_interest_marked_at"] = h.now()
		if req.Notes != "" {
			updates["coin_of_interest_notes"] = req.Notes
		} else {
			delete(updates, "coin_of_interest_notes")
		}
		msg = "Marked as coin of interest"
	}
	if err := h.Calls.UpdateByKromID(c.Request.Context(), req.KromID, updates); err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to update coin of interest status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg, "krom_id": req.KromID})
}

type invalidateRequest struct {
	KromID        string `json:"krom_id"`
	ID            uint   `json:"id"`
	IsInvalidated bool   `json:"is_invalidated"`
	Reason        string `json:"reason"`
}

// Invalidate flags a call as bad data so it drops out of listings, or
// clears the flag.
func (h *Handler) Invalidate(c *gin.Context) {
	var req invalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.KromID == "" && req.ID == 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "krom_id or id is required"})
		return
	}
	ctx := c.Request.Context()
	updates := map[string]any{
		"is_invalidated":      req.IsInvalidated,
		"invalidated_at":      nil,
		"invalidation_reason": nil,
	}
	if req.IsInvalidated {
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			reason = "Incorrect data"
		}
		updates["invalidated_at"] = h.now()
		updates["invalidation_reason"] = reason
	}

	var err error
	if req.KromID != "" {
		err = h.Calls.UpdateByKromID(ctx, req.KromID, updates)
	} else {
		err = h.Calls.UpdateByID(ctx, req.ID, updates)
	}
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to update invalidation status", err)
		return
	}

	var call *models.Call
	if req.KromID != "" {
		call, err = h.Calls.GetByKromID(ctx, req.KromID)
	} else {
		call, err = h.Calls.GetByID(ctx, req.ID)
	}
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to update invalidation status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"id":                  call.ID,
			"krom_id":             call.KromID,
			"is_invalidated":      call.IsInvalidated,
			"invalidated_at":      call.InvalidatedAt,
			"invalidation_reason": call.InvalidationReason,
		},
	})
}

func (h *Handler) DeleteAnalysis(c *gin.Context) {
	var req struct {
		KromID string `json:"krom_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.KromID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "krom_id is required"})
		return
	}
	if err := h.Calls.ClearAnalysis(c.Request.Context(), req.KromID); err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to clear analysis", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Analysis data cleared successfully",
		"krom_id": req.KromID,
	})
}
