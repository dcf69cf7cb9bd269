package openai

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// MaxInputChars caps each embedding input, in characters.
const MaxInputChars = 8000

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed returns the embedding for one text using QueryRetry.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, QueryRetry, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one request using BatchRetry. The result is in
// input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return c.embed(ctx, BatchRetry, texts)
}

func (c *Client) embed(ctx context.Context, policy RetryPolicy, texts []string) ([][]float32, error) {
	req := embeddingRequest{Model: c.embeddingModel, Input: make([]string, len(texts))}
	for i, t := range texts {
		req.Input[i] = truncateInput(t)
	}

	var resp embeddingResponse
	err := c.retry(ctx, policy, "embeddings", func() error {
		resp = embeddingResponse{}
		return c.post(ctx, "embeddings", "/embeddings", req, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embed: index %d out of range: %w", d.Index, ErrEmptyResponse)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("embed: no vector for input %d: %w", i, ErrEmptyResponse)
		}
	}
	return vectors, nil
}

func truncateInput(s string) string {
	if utf8.RuneCountInString(s) <= MaxInputChars {
		return s
	}
	return string([]rune(s)[:MaxInputChars])
}
