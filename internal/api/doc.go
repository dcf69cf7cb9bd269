// Package api hosts the HTTP query service. Notable routes:
//   - POST /ask answers a question from the indexed articles.
//   - GET /health reports whether the index is readable and its size.
//   - GET / serves the chat UI; GET /api describes the service.
//   - GET /api/runs lists recent ingest runs from the run ledger.
//   - GET /metrics for Prometheus scraping.
package api
