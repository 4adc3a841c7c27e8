// Package soundswitch is the discovery and sync engine for Z-Wave Sound
// Switch (command class 121) devices reachable through a zwavejs2mqtt bus.
//
// The Bridge owns the gateway locator, the node registry and the handle
// allocator. It consumes bus messages, drives tone discovery, and keeps the
// device registry in step with what it has learnt:
//
//	┌──────────────┐   MQTT   ┌──────────────┐   upsert   ┌─────────────────┐
//	│ zwavejs2mqtt │◄────────►│    Bridge    │───────────►│ device.Registry │
//	└──────────────┘          └──────────────┘◄───────────└─────────────────┘
//	                                              commands
//
// # Subscription sequence
//
//  1. zwave/_CLIENTS/# until the gateway's status and version are known.
//  2. The gateway's api/sendCommand topic and zwave/+/121/+/#.
//  3. zwave/<node>/status for every node seen.
//
// # Tone discovery
//
// Each node is asked for its tone count, then for each missing tone in
// ascending order, one request at a time. Results that do not advance the
// node are dropped. There is no timeout: a node whose gateway stops
// answering stays incomplete and is reported as such by Status and the
// health message.
//
// # Thread Safety
//
// Every entry point (bus messages, user commands, removals, Status) holds
// one engine mutex, so the registry is only ever touched by one goroutine.
package soundswitch
