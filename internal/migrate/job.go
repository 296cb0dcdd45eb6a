package migrate

// Job is the queue message asking the worker to reconcile one device's local
// state into a user's account.
type Job struct {
	UserID   uint64 `json:"user_id"`
	DeviceID string `json:"device_id"`
}
