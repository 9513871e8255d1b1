package chat

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn sent to the chat-completion endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Provider interface {
	// Complete sends the ordered message list and returns the reply text.
	Complete(ctx context.Context, msgs []Message) (string, error)
	Close() error
}
