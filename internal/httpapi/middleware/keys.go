package middleware

// Context keys set by the middleware chain.
const (
	UserIDKey    = "user_id"
	ClaimsKey    = "auth_claims"
	DeviceIDKey  = "device_id"
	RequestIDKey = "request_id"
)
