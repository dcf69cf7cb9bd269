package sitemap

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/tgc-rag/internal/crawler"
	"github.com/JakeFAU/tgc-rag/internal/metrics"
)

// DefaultPaths are probed in order until one parses as XML.
var DefaultPaths = []string{"/sitemap.xml", "/wp-sitemap.xml", "/sitemap_index.xml"}

const defaultWorkers = 8

// Config tunes a Resolver.
type Config struct {
	// Paths overrides DefaultPaths.
	Paths []string
	// Workers bounds concurrent child sitemap fetches.
	Workers int
}

// Resolver walks sitemaps to collect content URLs.
type Resolver struct {
	fetcher crawler.Fetcher
	paths   []string
	workers int
	logger  *zap.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(fetcher crawler.Fetcher, cfg Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	paths := cfg.Paths
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Resolver{
		fetcher: fetcher,
		paths:   paths,
		workers: workers,
		logger:  logger.Named("sitemap"),
	}
}

type fetched struct {
	doc Document
	ok  bool
}

// Resolve returns the filtered, deduplicated content URLs reachable from
// baseURL's sitemap. maxFetches caps sitemap documents fetched, the entry
// point included; zero means unlimited. A site without a sitemap yields an
// empty list. Only cancellation is reported as an error.
func (r *Resolver) Resolve(ctx context.Context, baseURL string, maxFetches int) ([]string, error) {
	rootURL, root, found := r.findEntry(ctx, baseURL)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolve sitemap: %w", err)
	}
	if !found {
		r.logger.Warn("no sitemap found", zap.String("base_url", baseURL), zap.Strings("paths", r.paths))
		return []string{}, nil
	}
	if !root.IsIndex {
		return FilterContentURLs(root.Locs), nil
	}

	processed := map[string]struct{}{rootURL: {}}
	fetches := 1
	queue := append([]string(nil), root.Locs...)
	var candidates []string

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("resolve sitemap: %w", err)
		}
		var batch []string
		for len(queue) > 0 && len(batch) < r.workers {
			next := queue[0]
			queue = queue[1:]
			if _, seen := processed[next]; seen {
				continue
			}
			if maxFetches > 0 && fetches >= maxFetches {
				queue = nil
				break
			}
			processed[next] = struct{}{}
			fetches++
			batch = append(batch, next)
		}
		if len(batch) == 0 {
			break
		}

		results := r.fetchBatch(ctx, batch)
		for _, res := range results {
			if !res.ok {
				continue
			}
			if res.doc.IsIndex {
				queue = append(queue, res.doc.Locs...)
			} else {
				candidates = append(candidates, res.doc.Locs...)
			}
		}
		r.logger.Debug("sitemap batch done",
			zap.Int("fetched", fetches),
			zap.Int("queued", len(queue)),
			zap.Int("candidates", len(candidates)),
		)
	}

	urls := FilterContentURLs(candidates)
	r.logger.Info("sitemaps resolved",
		zap.Int("documents", fetches),
		zap.Int("candidates", len(candidates)),
		zap.Int("urls", len(urls)),
	)
	return urls, nil
}

func (r *Resolver) findEntry(ctx context.Context, baseURL string) (string, Document, bool) {
	for _, p := range r.paths {
		if ctx.Err() != nil {
			return "", Document{}, false
		}
		target, err := crawler.ResolveReference(baseURL, p)
		if err != nil {
			r.logger.Warn("bad sitemap path", zap.String("path", p), zap.Error(err))
			continue
		}
		r.logger.Debug("trying sitemap", zap.String("url", target))
		if res := r.fetchOne(ctx, target); res.ok {
			r.logger.Info("found sitemap", zap.String("url", target), zap.Bool("index", res.doc.IsIndex))
			return target, res.doc, true
		}
	}
	return "", Document{}, false
}

// fetchBatch fetches every URL concurrently; results keep batch order.
func (r *Resolver) fetchBatch(ctx context.Context, batch []string) []fetched {
	results := make([]fetched, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range batch {
		g.Go(func() error {
			results[i] = r.fetchOne(gctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// fetchOne never fails: fetch and parse errors contribute nothing.
func (r *Resolver) fetchOne(ctx context.Context, target string) fetched {
	resp, err := r.fetcher.Fetch(ctx, crawler.FetchRequest{URL: target})
	if err != nil {
		metrics.ObserveSitemapFetch("fetch_error")
		r.logger.Debug("sitemap fetch failed", zap.String("url", target), zap.Error(err))
		return fetched{}
	}
	doc, err := Parse(resp.Body)
	if err != nil {
		metrics.ObserveSitemapFetch("parse_error")
		r.logger.Debug("sitemap parse failed", zap.String("url", target), zap.Error(err))
		return fetched{}
	}
	metrics.ObserveSitemapFetch("ok")
	return fetched{doc: doc, ok: true}
}
