// Package sitemap discovers article URLs by walking a site's XML sitemaps.
//
// The resolver probes a fixed list of well-known sitemap paths, then walks a
// sitemap index breadth-first, fetching each level in bounded concurrent
// batches. Candidate URLs are filtered down to content sections and
// deduplicated while preserving first-seen order.
package sitemap
