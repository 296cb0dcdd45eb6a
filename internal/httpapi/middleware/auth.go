package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ringlabs/twitposter/internal/auth"
	"github.com/ringlabs/twitposter/internal/common"
	"github.com/ringlabs/twitposter/internal/store/redisstore"
)

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func resolveClaims(c *gin.Context, secret string, denylist *redisstore.Store) *auth.Claims {
	token := bearerToken(c)
	if token == "" {
		return nil
	}
	claims, err := auth.ParseJWT(token, secret)
	if err != nil {
		return nil
	}
	if denylist != nil {
		revoked, err := denylist.IsTokenRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			// Denylist unreachable: accept the token rather than lock every
			// signed-in user out.
			log.Printf("auth: denylist check err=%v", err)
		} else if revoked {
			return nil
		}
	}
	return claims
}

// AuthRequired rejects requests without a valid, non-revoked token.
func AuthRequired(secret string, denylist *redisstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := resolveClaims(c, secret, denylist)
		if claims == nil {
			common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
			c.Abort()
			return
		}
		c.Set(UserIDKey, claims.UserID)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// AuthOptional attaches the session when a valid token is present and lets
// anonymous requests through untouched.
func AuthOptional(secret string, denylist *redisstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims := resolveClaims(c, secret, denylist); claims != nil {
			c.Set(UserIDKey, claims.UserID)
			c.Set(ClaimsKey, claims)
		}
		c.Next()
	}
}
