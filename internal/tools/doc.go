// ABOUTME: Package documentation for the tools package
// ABOUTME: Describes the tool gateway and the mock CAMARA backend

// Package tools provides the tool gateway the conversation engine invokes
// tools through, plus the mock CAMARA network backend registered on it.
//
// Every registered tool carries a JSON Schema for its arguments; the
// gateway validates arguments before the handler runs and guarantees every
// response is a valid JSON document. The CAMARA backend simulates the
// network APIs of a real deployment (QoS, connectivity, geofencing, edge
// discovery, WebRTC signalling, SIM integrity) with deterministic canned
// payloads, so the system runs without any operator network credentials.
package tools
