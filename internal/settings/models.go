package settings

import (
	"errors"
	"time"
)

// ErrNotAuthenticated marks a remote-store write attempted without a session.
// Callers treat it as the signal to fall back to the device-local store.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrTrialExhausted marks a generation request with no own credential and the
// free-trial counter at the ceiling. The HTTP layer maps it to a dedicated
// response so clients can prompt for an API key instead of showing a generic
// failure.
var ErrTrialExhausted = errors.New("free trial exhausted")

// Scope identifies who owns a piece of state: the signed-in user (UserID set)
// and/or the device the request came from. Anonymous callers carry only a
// device ID.
type Scope struct {
	UserID   uint64
	DeviceID string
}

func (s Scope) Authenticated() bool { return s.UserID != 0 }

// UserSettings is the one settings row per user.
type UserSettings struct {
	UserID          uint64    `gorm:"primaryKey" json:"-"`
	NichePreference string    `gorm:"type:varchar(64)" json:"niche_preference"`
	GeminiAPIKey    string    `gorm:"type:varchar(512)" json:"-"`
	FreeTrialUsed   int       `gorm:"not null;default:0" json:"free_trial_used"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (UserSettings) TableName() string { return "user_settings" }
