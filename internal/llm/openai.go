package llm

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
)

const openAIModel = "gpt-4o"

// OpenAIClient is the OpenAI reply provider.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	client := openai.NewClient(apiKey)

	return &OpenAIClient{
		client: client,
	}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// GenerateReply produces a reply for the turn.
func (c *OpenAIClient) GenerateReply(ctx context.Context, input *ReplyInput) (string, []string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(input.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, msg := range input.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	text := input.Text
	if input.ImageURL != "" {
		text += "\n[customer attached an image: " + input.ImageURL + "]"
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     openAIModel,
		Messages:  messages,
		MaxTokens: 1024,
	})
	if err != nil {
		return "", nil, err
	}

	if len(resp.Choices) == 0 {
		return "", nil, errors.New("empty completion response")
	}

	return resp.Choices[0].Message.Content, nil, nil
}
