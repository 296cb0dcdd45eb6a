package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ringlabs/twitposter/internal/common"
	"github.com/ringlabs/twitposter/internal/generator"
	"github.com/ringlabs/twitposter/internal/settings"
)

type generateReq struct {
	NicheID string `json:"niche_id" binding:"required"`
	Topic   string `json:"topic"`
}

func (h *Handler) GeneratePost(c *gin.Context) {
	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if !generator.KnownNiche(req.NicheID) {
		common.Fail(c, http.StatusBadRequest, 10010, "unknown niche")
		return
	}

	scope := scopeFrom(c)
	text, err := h.GenSvc.Generate(c.Request.Context(), scope, req.NicheID, req.Topic)
	if err != nil {
		// Trial exhaustion gets its own code so clients can branch to the
		// API-key entry flow instead of a generic failure.
		if errors.Is(err, settings.ErrTrialExhausted) {
			common.Fail(c, http.StatusForbidden, 40310, "free trial exhausted, please enter your API key")
			return
		}
		common.Fail(c, http.StatusBadGateway, 50201, "failed to generate post")
		return
	}

	common.OK(c, gin.H{
		"post":     text,
		"niche_id": req.NicheID,
		"topic":    req.Topic,
	})
}

func (h *Handler) ListPosts(c *gin.Context) {
	nicheID := c.Query("niche_id")
	if !generator.KnownNiche(nicheID) {
		common.Fail(c, http.StatusBadRequest, 10010, "unknown niche")
		return
	}

	posts, err := h.GenSvc.Posts(c.Request.Context(), scopeFrom(c), nicheID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to load posts")
		return
	}
	common.OK(c, gin.H{"posts": posts})
}

func (h *Handler) ListNiches(c *gin.Context) {
	common.OK(c, gin.H{"niches": generator.Niches})
}
