// ABOUTME: Package documentation for the hub package
// ABOUTME: Explains the fan-out model, eviction policy and telemetry producers

// Package hub fans dashboard events out to any number of subscribers.
//
// Each subscriber owns a bounded queue. Publishing waits up to the
// configured timeout for room in a full queue and then evicts the
// subscriber, so one stalled SSE client never blocks delivery to the rest.
// Subscribers also receive periodic keepalive markers, which the transport
// turns into SSE comments rather than events.
//
// The package also hosts the periodic telemetry producers that simulate
// drone location updates and region device counts during a mission.
package hub
