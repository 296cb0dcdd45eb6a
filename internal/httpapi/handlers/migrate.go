package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ringlabs/twitposter/internal/common"
)

// Migrate runs the local-to-remote reconciliation synchronously for the
// signed-in caller. The login hook normally handles this; the endpoint lets
// clients re-trigger it (safe: the reconciliation is idempotent).
func (h *Handler) Migrate(c *gin.Context) {
	scope := scopeFrom(c)
	if scope.DeviceID == "" {
		common.Fail(c, http.StatusBadRequest, 10012, "device id required")
		return
	}

	if err := h.Reconciler.Run(c.Request.Context(), scope.UserID, scope.DeviceID); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50005, "migration failed")
		return
	}
	common.OK(c, gin.H{"migrated": true})
}
