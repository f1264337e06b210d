// Package sinks implements concrete progress consumers: structured logging and
// Prometheus metrics. The Postgres event store lives in storage/postgres.
package sinks
