package soundswitch

import (
	"time"

	"github.com/nerrad567/gray-logic-soundswitch/internal/zwave"
)

// HealthStatus is the bridge state carried in health messages.
type HealthStatus string

const (
	HealthStarting   HealthStatus = "starting"
	HealthHealthy    HealthStatus = "healthy"
	HealthDegraded   HealthStatus = "degraded"
	HealthIncomplete HealthStatus = "incomplete"
	HealthStopping   HealthStatus = "stopping"
)

// HealthMessage is published retained to the health topic.
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Status        HealthStatus `json:"status"`
	Reason        string       `json:"reason,omitempty"`
	Version       string       `json:"version,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Gateway       bool         `json:"gateway_ready"`
	Nodes         int          `json:"nodes"`
	NodesReady    int          `json:"nodes_ready"`
	PendingNodes  []int        `json:"pending_nodes,omitempty"`
	Handles       int          `json:"handles"`
	Timestamp     time.Time    `json:"timestamp"`
}

// DeviceState is published retained to soundswitch/device/<handle>/state
// whenever a device is synced.
type DeviceState struct {
	Handle     int       `json:"handle"`
	ExternalID string    `json:"external_id"`
	NodeID     int       `json:"node_id"`
	EndpointID int       `json:"endpoint_id"`
	Attribute  string    `json:"attribute"`
	Enabled    bool      `json:"enabled"`
	Level      int       `json:"level"`
	BusValue   int       `json:"bus_value"`
	Timestamp  time.Time `json:"timestamp"`
}

// Event channels broadcast to API clients.
const (
	EventDeviceUpdated = "device.updated"
	EventDeviceRemoved = "device.removed"
	EventNodeReady     = "node.ready"
)

// NodeReadyEvent is the payload of EventNodeReady.
type NodeReadyEvent struct {
	NodeID    int                    `json:"node_id"`
	ToneCount int                    `json:"tone_count"`
	Tones     []zwave.ToneDefinition `json:"tones"`
}

// DeviceRemovedEvent is the payload of EventDeviceRemoved.
type DeviceRemovedEvent struct {
	Handle     int    `json:"handle"`
	ExternalID string `json:"external_id,omitempty"`
}

// Status is a point-in-time view of the bridge.
type Status struct {
	GatewayReady  bool                 `json:"gateway_ready"`
	ResponseTopic string               `json:"response_topic,omitempty"`
	CommandTopic  string               `json:"command_topic,omitempty"`
	Nodes         []zwave.NodeSnapshot `json:"nodes"`
	NodesReady    int                  `json:"nodes_ready"`
	Handles       int                  `json:"handles"`
	MQTTConnected bool                 `json:"mqtt_connected"`
}

// Complete reports whether the gateway and every known node are done.
func (s Status) Complete() bool {
	return s.GatewayReady && s.NodesReady == len(s.Nodes)
}
