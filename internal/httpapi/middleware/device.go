package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

// Device resolves the caller's device ID from the X-Device-ID header. A
// client without one gets a fresh ULID minted and returned in the response
// header; it is expected to persist and resend it, since the device ID scopes
// all anonymous state.
func Device() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Device-ID")
		if id == "" {
			id = ulid.Make().String()
			c.Header("X-Device-ID", id)
		}
		c.Set(DeviceIDKey, id)
		c.Next()
	}
}
