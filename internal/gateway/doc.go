// ABOUTME: Package documentation for the gateway package
// ABOUTME: Describes the HTTP surface and its lifecycle

// Package gateway is the HTTP transport of firewatch-gateway. It exposes
// the chat endpoint (streaming orchestration events over SSE), the
// dashboard event stream and publish endpoint backed by the hub, and the
// info/health endpoints, and it owns startup and shutdown ordering for the
// server, the hub and the telemetry publishers.
package gateway
