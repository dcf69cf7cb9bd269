package openai

import (
	"context"
	"fmt"
)

// ChatRequest is a single-turn completion with a system prompt.
type ChatRequest struct {
	System    string
	User      string
	MaxTokens int
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete returns the first choice's message content. A null content is
// returned as "". Chat calls are not retried.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (string, error) {
	body := chatCompletionRequest{
		Model:     c.chatModel,
		MaxTokens: req.MaxTokens,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.User})

	var resp chatCompletionResponse
	if err := c.post(ctx, "chat", "/chat/completions", body, &resp); err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: %w", ErrEmptyResponse)
	}
	if content := resp.Choices[0].Message.Content; content != nil {
		return *content, nil
	}
	return "", nil
}
