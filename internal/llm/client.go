// Package llm provides the AI reply collaborator interface and provider
// implementations. Reply reasoning is owned by the provider; this package
// only adapts the wire contract.
package llm

import (
	"context"
)

// ChatMessage represents one turn of conversation history for the provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ReplyInput is the dispatcher's input for one AI turn. ImageURL is passed
// opaquely; interpreting it is the provider's responsibility.
type ReplyInput struct {
	Text     string
	ImageURL string
	History  []ChatMessage
	Topic    string
}

// Client is the interface for AI reply providers.
type Client interface {
	// GenerateReply produces a customer-facing reply for the turn.
	GenerateReply(ctx context.Context, input *ReplyInput) (reply string, toolsUsed []string, err error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of AI provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a new AI client based on provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	default:
		return NewAnthropicClient(apiKey)
	}
}

const systemPrompt = "You are a customer support agent. Answer the customer's " +
	"message helpfully and concisely. If the message references an attached " +
	"image, acknowledge it and ask for any details you cannot see."
