// Package httpserver exposes the relay over HTTP: health, stats, publish and
// a Server-Sent Events subscription endpoint.
//
// Routes:
//   - GET  /v1/healthz
//   - GET  /v1/stats
//   - POST /v1/channels/publish   {"channel","event","sender","data"}
//   - GET  /v1/channels/subscribe?channel=board&filter=event=="new-task"
package httpserver
