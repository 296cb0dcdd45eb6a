package ai

import "context"

type Message struct {
	Role    string
	Content string
}

// Provider is a text-generation backend. One call in, one text out; no
// retries, no streaming.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
