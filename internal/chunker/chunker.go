// Package chunker splits article content into overlapping windows sized for
// embedding. All lengths are counted in runes.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/tgc-rag/internal/crawler"
)

// Defaults mirror roughly 600-token windows with 100 tokens of overlap.
const (
	DefaultSize      = 2400
	DefaultOverlap   = 400
	DefaultMinLength = 800
)

// Chunk is one embeddable window of an article plus the article metadata.
type Chunk struct {
	Text       string `json:"text"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	Section    string `json:"section"`
	Date       string `json:"date"`
	SourceURL  string `json:"source_url"`
	ChunkIndex int    `json:"chunk_index"`
}

// Config overrides the window parameters. Zero values select the defaults.
type Config struct {
	Size      int
	Overlap   int
	MinLength int
}

// Chunker splits articles. The zero value is not usable; call New.
type Chunker struct {
	size      int
	overlap   int
	minLength int
}

// New returns a Chunker. Overlap must be smaller than half of Size or the
// defaults are used instead.
func New(cfg Config) *Chunker {
	c := &Chunker{size: DefaultSize, overlap: DefaultOverlap, minLength: DefaultMinLength}
	if cfg.Size > 0 && cfg.Overlap >= 0 && cfg.Overlap < cfg.Size/2 {
		c.size = cfg.Size
		c.overlap = cfg.Overlap
	}
	if cfg.MinLength > 0 {
		c.minLength = cfg.MinLength
	}
	return c
}

// Split returns the chunks for one article with contiguous indexes from 0.
func (c *Chunker) Split(article crawler.Article) []Chunk {
	content := strings.TrimSpace(article.Content)
	if content == "" {
		return nil
	}
	base := Chunk{
		Title:     article.Title,
		Author:    article.Author,
		Section:   article.Section,
		Date:      article.Date,
		SourceURL: article.URL,
	}
	if utf8.RuneCountInString(content) < c.minLength {
		base.Text = content
		return []Chunk{base}
	}

	runes := []rune(content)
	var chunks []Chunk
	for _, w := range c.windows(runes) {
		text := strings.TrimSpace(string(runes[w.start:w.end]))
		if text == "" {
			continue
		}
		ch := base
		ch.Text = text
		ch.ChunkIndex = len(chunks)
		chunks = append(chunks, ch)
	}
	return chunks
}

// SplitAll chunks every article in order.
func (c *Chunker) SplitAll(articles []crawler.Article) []Chunk {
	var out []Chunk
	for _, a := range articles {
		out = append(out, c.Split(a)...)
	}
	return out
}

type window struct {
	start, end int
}

// windows slides over runes, preferring to cut just after the last sentence
// or paragraph break found past the middle of the window.
func (c *Chunker) windows(runes []rune) []window {
	var out []window
	n := len(runes)
	start := 0
	for start < n {
		end := min(start+c.size, n)
		cut := end
		if rel := lastBreak(runes[start:end]); rel > c.size/2 {
			cut = start + rel + 1
		}
		out = append(out, window{start: start, end: cut})
		if cut >= n {
			break
		}
		start = cut - c.overlap
	}
	return out
}

// lastBreak returns the rune offset of the last ". " or "\n\n" in segment,
// or -1.
func lastBreak(segment []rune) int {
	s := string(segment)
	best := max(strings.LastIndex(s, ". "), strings.LastIndex(s, "\n\n"))
	if best < 0 {
		return -1
	}
	return utf8.RuneCountInString(s[:best])
}
