// Package store defines persistence contracts for the ingest-run ledger.
// Implementations live elsewhere; this package must not import drivers.
package store
