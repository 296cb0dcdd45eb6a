package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ringlabs/twitposter/internal/common"
	"github.com/ringlabs/twitposter/internal/generator"
)

func (h *Handler) GetAPIKey(c *gin.Context) {
	key := h.SettingsSvc.GetAPIKey(c.Request.Context(), scopeFrom(c))
	common.OK(c, gin.H{"api_key": key})
}

type putAPIKeyReq struct {
	APIKey string `json:"api_key" binding:"required"`
}

func (h *Handler) PutAPIKey(c *gin.Context) {
	var req putAPIKeyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	h.SettingsSvc.SetAPIKey(c.Request.Context(), scopeFrom(c), req.APIKey)
	common.OK(c, gin.H{"saved": true})
}

func (h *Handler) DeleteAPIKey(c *gin.Context) {
	h.SettingsSvc.ClearAPIKey(c.Request.Context(), scopeFrom(c))
	common.OK(c, gin.H{"cleared": true})
}

func (h *Handler) GetNichePreference(c *gin.Context) {
	niche := h.SettingsSvc.GetNichePreference(c.Request.Context(), scopeFrom(c))
	common.OK(c, gin.H{"niche_id": niche})
}

type putNicheReq struct {
	NicheID string `json:"niche_id" binding:"required"`
}

func (h *Handler) PutNichePreference(c *gin.Context) {
	var req putNicheReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if !generator.KnownNiche(req.NicheID) {
		common.Fail(c, http.StatusBadRequest, 10010, "unknown niche")
		return
	}
	h.SettingsSvc.SetNichePreference(c.Request.Context(), scopeFrom(c), req.NicheID)
	common.OK(c, gin.H{"saved": true})
}

func (h *Handler) GetTrialStatus(c *gin.Context) {
	scope := scopeFrom(c)
	used := h.SettingsSvc.GetFreeTrialUsage(c.Request.Context(), scope)
	common.OK(c, gin.H{
		"used":      used,
		"limit":     h.SettingsSvc.TrialLimit(),
		"exhausted": used >= h.SettingsSvc.TrialLimit(),
	})
}
