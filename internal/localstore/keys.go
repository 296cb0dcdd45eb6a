package localstore

// Keys used by the settings and conversation fallback paths. These match the
// keys clients already hold, so existing device data migrates as-is.
const (
	KeyAPIKey     = "gemini_api_key"
	KeyNiche      = "selected_niche"
	KeyTrialUsage = "free_trial_used"

	ChatHistoryPrefix = "chat_history_"
)

// ChatHistoryKey returns the per-niche conversation log key.
func ChatHistoryKey(nicheID string) string {
	return ChatHistoryPrefix + nicheID
}
