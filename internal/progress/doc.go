// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces that the ingest pipeline uses to report run progress. Events are
// batched on a background goroutine and fanned out to pluggable sinks such as
// structured logs, Prometheus metrics, or the Postgres run ledger.
package progress
