package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/tgc-rag/internal/crawler"
)

func article(content string) crawler.Article {
	return crawler.Article{
		URL:     "https://example.org/article/a/",
		Title:   "Title",
		Author:  "Author",
		Section: "Section",
		Date:    "2024-01-02",
		Content: content,
	}
}

// prose builds n numbered sentences so every cut point is unambiguous.
func prose(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "Sentence number %04d speaks of grace.", i)
	}
	return b.String()
}

func TestSplitEmpty(t *testing.T) {
	t.Parallel()

	require.Empty(t, New(Config{}).Split(article("  \n\t ")))
}

func TestSplitShortArticleIsSingleChunk(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("x", DefaultMinLength-1)
	chunks := New(Config{}).Split(article("  " + content + "\n"))
	require.Len(t, chunks, 1)
	require.Equal(t, content, chunks[0].Text)
	require.Zero(t, chunks[0].ChunkIndex)
	require.Equal(t, "https://example.org/article/a/", chunks[0].SourceURL)
	require.Equal(t, "Title", chunks[0].Title)
	require.Equal(t, "2024-01-02", chunks[0].Date)
}

func TestSplitAtMinLengthUsesWindows(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("y", DefaultMinLength)
	chunks := New(Config{}).Split(article(content))
	require.Len(t, chunks, 1)
	require.Equal(t, content, chunks[0].Text)
}

func TestSplitLongArticleBreaksOnSentences(t *testing.T) {
	t.Parallel()

	content := prose(200)
	chunks := New(Config{}).Split(article(content))
	require.Greater(t, len(chunks), 2)
	for i, ch := range chunks {
		require.Equal(t, i, ch.ChunkIndex)
		require.LessOrEqual(t, len([]rune(ch.Text)), DefaultSize)
		require.Contains(t, content, ch.Text)
		if i < len(chunks)-1 {
			require.True(t, strings.HasSuffix(ch.Text, "."), "chunk %d should end on a sentence", i)
		}
	}
	require.True(t, strings.HasPrefix(content, chunks[0].Text))
	require.True(t, strings.HasSuffix(content, chunks[len(chunks)-1].Text))
}

func TestWindowsReconstructContent(t *testing.T) {
	t.Parallel()

	c := New(Config{})
	for _, content := range []string{prose(150), strings.Repeat("z", 7000), "é" + strings.Repeat("ü. ", 3000)} {
		runes := []rune(content)
		ws := c.windows(runes)
		require.NotEmpty(t, ws)
		require.Zero(t, ws[0].start)
		require.Equal(t, len(runes), ws[len(ws)-1].end)

		var rebuilt []rune
		prevEnd := 0
		for i, w := range ws {
			if i > 0 {
				require.Equal(t, prevEnd-DefaultOverlap, w.start)
			}
			rebuilt = append(rebuilt, runes[max(w.start, prevEnd):w.end]...)
			prevEnd = w.end
		}
		require.Equal(t, content, string(rebuilt))
	}
}

func TestWindowsHardCutWithoutBreaks(t *testing.T) {
	t.Parallel()

	ws := New(Config{}).windows([]rune(strings.Repeat("a", 5000)))
	require.Equal(t, []window{{0, 2400}, {2000, 4400}, {4000, 5000}}, ws)
}

func TestWindowsIgnoresEarlyBreak(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("a", 100) + ". " + strings.Repeat("b", 4000)
	ws := New(Config{}).windows([]rune(content))
	require.Equal(t, 2400, ws[0].end)
}

func TestWindowsCutsAfterParagraph(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("a", 1500) + "\n\n" + strings.Repeat("b", 2000)
	ws := New(Config{}).windows([]rune(content))
	require.Equal(t, 1501, ws[0].end)
	require.Equal(t, 1101, ws[1].start)
}

func TestSplitCountsRunes(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("ñ", 700)
	chunks := New(Config{}).Split(article(content))
	require.Len(t, chunks, 1)
}

func TestSplitAllKeepsArticleOrder(t *testing.T) {
	t.Parallel()

	a := article("first article body")
	b := article(prose(120))
	b.URL = "https://example.org/article/b/"
	chunks := New(Config{}).SplitAll([]crawler.Article{a, b})
	require.Equal(t, a.URL, chunks[0].SourceURL)
	require.Zero(t, chunks[1].ChunkIndex)
	require.Equal(t, b.URL, chunks[len(chunks)-1].SourceURL)
}

func TestNewRejectsBadOverlap(t *testing.T) {
	t.Parallel()

	c := New(Config{Size: 100, Overlap: 80})
	require.Equal(t, DefaultSize, c.size)
	require.Equal(t, DefaultOverlap, c.overlap)

	c = New(Config{Size: 100, Overlap: 10, MinLength: 50})
	require.Equal(t, 100, c.size)
	require.Equal(t, 50, c.minLength)
}
