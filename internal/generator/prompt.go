package generator

import "fmt"

// BuildPrompt composes the single instruction sent to the generation backend.
// It always asks for an engaging tone, relevant hashtags, and a hard length
// ceiling matching the target platform's post limit.
func BuildPrompt(nicheID, topic string, charLimit int) string {
	if topic != "" {
		return fmt.Sprintf(
			"Create an engaging Twitter post about %s for the %s niche. Include relevant hashtags and keep it under %d characters.",
			topic, nicheID, charLimit,
		)
	}
	return fmt.Sprintf(
		"Create an engaging Twitter post for the %s niche. Include relevant hashtags and keep it under %d characters.",
		nicheID, charLimit,
	)
}
