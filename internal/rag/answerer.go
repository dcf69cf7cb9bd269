package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/JakeFAU/tgc-rag/internal/openai"
)

// NoContextAnswer is returned when retrieval found nothing.
const NoContextAnswer = "I don't have any relevant articles to answer that. Try rephrasing or run the ingest to add more content."

// SystemPrompt constrains the model to the supplied excerpts.
const SystemPrompt = "You answer questions based only on the provided excerpts from The Gospel Coalition (TGC) articles. " +
	"If the excerpts do not contain enough information, say so. " +
	"Keep answers concise and cite the articles (by title or author) when relevant."

const defaultMaxTokens = 500

// ChatCompleter runs one chat completion.
type ChatCompleter interface {
	Complete(ctx context.Context, req openai.ChatRequest) (string, error)
}

// Answerer turns retrieved chunks into an answer.
type Answerer struct {
	chat      ChatCompleter
	maxTokens int
}

// NewAnswerer constructs an Answerer. maxTokens <= 0 selects 500.
func NewAnswerer(chat ChatCompleter, maxTokens int) *Answerer {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Answerer{chat: chat, maxTokens: maxTokens}
}

// Answer asks the model to answer query from chunks. With no chunks it returns
// NoContextAnswer without calling the model.
func (a *Answerer) Answer(ctx context.Context, query string, chunks []RetrievedChunk) (string, error) {
	if len(chunks) == 0 {
		return NoContextAnswer, nil
	}
	out, err := a.chat.Complete(ctx, openai.ChatRequest{
		System:    SystemPrompt,
		User:      UserPrompt(query, chunks),
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("answer: %w", err)
	}
	return out, nil
}

// BuildContext numbers each excerpt from 1 with its title and author.
func BuildContext(chunks []RetrievedChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("[%d] From \"%s\" by %s:\n%s", i+1, c.Title, c.Author, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

// UserPrompt wraps the excerpts and the question.
func UserPrompt(query string, chunks []RetrievedChunk) string {
	return "Use the following excerpts from TGC articles to answer the question.\n\nExcerpts:\n" +
		BuildContext(chunks) + "\n\nQuestion: " + query
}
