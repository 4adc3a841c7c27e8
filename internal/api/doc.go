// Package api implements the operations HTTP API and WebSocket server for the
// sound switch bridge.
//
// This package provides:
//   - REST endpoints for devices, nodes, discovery status and the handle mapping
//   - Device level commands routed through the device registry to the bridge
//   - WebSocket hub for device and discovery events
//   - Prometheus exposition on /metrics
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The API sits beside the bridge, not in front of it. Reads come from bridge
// snapshots and the device registry; writes go through device.Registry, which
// validates the command and hands it to the bridge's command handler. Bridge
// events reach WebSocket clients through Hub.Broadcast.
//
// # Graceful Degradation
//
// The server runs without a bridge attached: device and mapping reads work,
// status endpoints report the bridge as unavailable.
package api
