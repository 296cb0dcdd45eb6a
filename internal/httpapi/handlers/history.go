package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ringlabs/twitposter/internal/common"
	"github.com/ringlabs/twitposter/internal/generator"
)

func (h *Handler) GetHistory(c *gin.Context) {
	nicheID := c.Param("niche_id")
	if !generator.KnownNiche(nicheID) {
		common.Fail(c, http.StatusBadRequest, 10010, "unknown niche")
		return
	}

	turns, err := h.GenSvc.History(c.Request.Context(), scopeFrom(c), nicheID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to load history")
		return
	}
	common.OK(c, gin.H{"messages": turns})
}

// DeleteTurn removes one turn, identified by its unix-millisecond timestamp.
func (h *Handler) DeleteTurn(c *gin.Context) {
	nicheID := c.Param("niche_id")
	if !generator.KnownNiche(nicheID) {
		common.Fail(c, http.StatusBadRequest, 10010, "unknown niche")
		return
	}
	ms, err := strconv.ParseInt(c.Param("timestamp"), 10, 64)
	if err != nil || ms <= 0 {
		common.Fail(c, http.StatusBadRequest, 10011, "invalid timestamp")
		return
	}

	if err := h.GenSvc.DeleteTurn(c.Request.Context(), scopeFrom(c), nicheID, time.UnixMilli(ms).UTC()); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to delete message")
		return
	}
	common.OK(c, gin.H{"deleted": true})
}

func (h *Handler) ClearHistory(c *gin.Context) {
	nicheID := c.Param("niche_id")
	if !generator.KnownNiche(nicheID) {
		common.Fail(c, http.StatusBadRequest, 10010, "unknown niche")
		return
	}

	if err := h.GenSvc.ClearHistory(c.Request.Context(), scopeFrom(c), nicheID); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to clear history")
		return
	}
	common.OK(c, gin.H{"cleared": true})
}
