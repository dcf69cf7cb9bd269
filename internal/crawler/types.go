// Package crawler defines core types shared across subsystems.
package crawler

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNonSuccessStatus marks fetches that completed with a non-2xx response.
var ErrNonSuccessStatus = errors.New("non-success status")

// StatusError reports the status code of a rejected fetch.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// Unwrap lets callers match StatusError with errors.Is(err, ErrNonSuccessStatus).
func (e *StatusError) Unwrap() error {
	return ErrNonSuccessStatus
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result of a single GET.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Article is one parsed content page. Content is plain text.
type Article struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	Section string `json:"section"`
	Date    string `json:"date"`
	Content string `json:"content"`
}

// Result summarises a crawl over a URL list.
type Result struct {
	// Articles holds every page that parsed successfully, in the order produced.
	Articles []Article
	// Total is the number of URLs handed to the crawl.
	Total int
	// Processed counts URLs whose fetch+parse attempt finished.
	Processed int
	// Failed counts URLs that yielded no article.
	Failed int
	// Cancelled is true when the context ended before every URL was processed.
	Cancelled bool
	// Elapsed is the wall time of the crawl.
	Elapsed time.Duration
}
