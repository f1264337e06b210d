// Package api hosts the optional status server that runs next to a scrape:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for a JSON snapshot of the queue and worker counters.
//   - GET /v1/countries for the countries selected for the run.
package api
