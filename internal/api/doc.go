// Package api hosts the HTTP server, middleware, and handlers. Routes:
//   - POST /snapshot/toPDF renders posted HTML.
//   - POST /snapshot/URL2PDF renders a live page.
//   - POST /snapshot/URLs2ZIP renders several pages into one ZIP.
//   - GET / serves a short index page.
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//
// Only the /snapshot routes are authenticated and throttled.
package api
