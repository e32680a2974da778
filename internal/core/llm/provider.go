package llm

import "context"

// Provider is a chat-completion backend used for summarization
type Provider interface {
	GenerateResponse(ctx context.Context, systemPrompt, userMessage string) (string, error)
	GetProviderName() string
}
