// Package zwave models the Z-Wave JS MQTT gateway as seen by the sound switch
// bridge.
//
// It holds the pure, transport-free parts of the engine:
//
//   - Topic addressing: parsing bus topics into structured addresses
//   - Gateway locator: discovering the gateway's command/response roots
//   - Node/endpoint registry: nodes exposing the Sound Switch command class (121)
//   - Tone discovery: the per-node getToneCount/getToneInfo state machine
//   - Translation: bus integer values to user-facing levels and back
//
// # Tone discovery
//
// Each node moves through four states:
//
//	Unstarted ──Start()──▶ AwaitingToneCount ──ApplyToneCount(n>0)──▶ AwaitingToneInfo
//	                              │                                          │
//	                              └──ApplyToneCount(0)──▶ Ready ◀──last tone─┘
//
// Missing tones are always requested in ascending id order. Tone ids 0 ("Off")
// and 255 ("Default") are pre-seeded and never requested.
//
// # Thread Safety
//
// Nothing in this package locks. Gateway and Registry are owned by a single
// writer (the soundswitch bridge) which serialises access.
//
// # Topic Layout
//
//	zwave/_CLIENTS/ZWAVE_GATEWAY-<name>/status            gateway status {"value":bool}
//	zwave/_CLIENTS/ZWAVE_GATEWAY-<name>/version           gateway version {"value":string}
//	zwave/_CLIENTS/ZWAVE_GATEWAY-<name>/api/sendCommand   command results
//	zwave/<node>/status                                   node status
//	zwave/<node>/121/<endpoint>/<attribute>               endpoint values
//	zwave/<node>/121/<endpoint>/<attribute>/set           set commands
package zwave
