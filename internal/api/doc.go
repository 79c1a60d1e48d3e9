// Package api hosts the HTTP interface of the harvester. Notable routes:
//   - POST / and POST /v1/harvest run one operation chosen by operationType.
//   - GET /healthz and /readyz for liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
package api
