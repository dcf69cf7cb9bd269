package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata. Non-2xx responses
// are reported as errors wrapping ErrNonSuccessStatus.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Parser converts one HTML page into an Article. ok is false when the page is
// not an article; that is a normal outcome rather than an error.
type Parser interface {
	Parse(html []byte, pageURL string) (article Article, ok bool)
}

// Pacer enforces the politeness interval between consecutive requests.
type Pacer interface {
	Wait(ctx context.Context, rawURL string) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Hasher computes digests for deduplication/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
