// Package postgres provides the Postgres-backed ingest-run ledger.
package postgres
