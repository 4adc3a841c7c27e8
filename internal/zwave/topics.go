package zwave

import (
	"fmt"
	"strconv"
	"strings"
)

// Protocol constants for the Sound Switch command class.
const (
	// CommandClassSoundSwitch is the Z-Wave command class id for Sound Switch.
	CommandClassSoundSwitch = 121

	// AttributeVolume is the endpoint attribute carrying the default volume (0-100).
	AttributeVolume = "defaultVolume"

	// AttributeTone is the endpoint attribute carrying the active tone id.
	AttributeTone = "toneId"

	// DefaultPrefix is the zwavejs2mqtt topic prefix.
	DefaultPrefix = "zwave"

	// DefaultClientsSegment is the segment under which gateway clients publish.
	DefaultClientsSegment = "_CLIENTS"

	// DefaultGatewayMarker identifies gateway client topics.
	DefaultGatewayMarker = "ZWAVE_GATEWAY"

	// commandResultSuffix terminates every sendCommand response topic.
	commandResultSuffix = "sendCommand"

	// endpointTopicParts is the segment count of zwave/<node>/121/<ep>/<attr>.
	endpointTopicParts = 5

	// nodeStatusTopicParts is the segment count of zwave/<node>/status.
	nodeStatusTopicParts = 3
)

// Kind classifies a parsed bus topic.
type Kind int

// Topic kinds.
const (
	KindUnrecognized Kind = iota
	KindGatewayStatus
	KindClientCommandResult
	KindNodeStatus
	KindEndpointAttribute
	KindEndpointSet
)

// String returns the kind name used in logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindGatewayStatus:
		return "gateway_status"
	case KindClientCommandResult:
		return "command_result"
	case KindNodeStatus:
		return "node_status"
	case KindEndpointAttribute:
		return "endpoint_attribute"
	case KindEndpointSet:
		return "endpoint_set"
	default:
		return "unrecognized"
	}
}

// Address is the structured form of a bus topic.
// Only the fields relevant to Kind are populated.
type Address struct {
	Kind Kind

	// Root and Field are set for KindGatewayStatus.
	Root  string
	Field string

	// NodeID is set for node status and endpoint kinds.
	NodeID int

	// EndpointID and Attribute are set for endpoint kinds.
	EndpointID int
	Attribute  string
}

// TopicScheme describes the bus topic layout. The zero value is not usable;
// start from DefaultTopicScheme.
type TopicScheme struct {
	Prefix         string
	ClientsSegment string
	GatewayMarker  string
	CommandClass   int
}

// DefaultTopicScheme returns the zwavejs2mqtt layout.
func DefaultTopicScheme() TopicScheme {
	return TopicScheme{
		Prefix:         DefaultPrefix,
		ClientsSegment: DefaultClientsSegment,
		GatewayMarker:  DefaultGatewayMarker,
		CommandClass:   CommandClassSoundSwitch,
	}
}

// Parse maps a topic string to an Address. It never fails: anything that does
// not match a known shape is KindUnrecognized.
//
// Example:
//
//	addr := zwave.DefaultTopicScheme().Parse("zwave/12/121/1/defaultVolume")
//	// addr.Kind == KindEndpointAttribute, NodeID 12, EndpointID 1
func (s TopicScheme) Parse(topic string) Address {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[0] != s.Prefix {
		return Address{Kind: KindUnrecognized}
	}

	last := parts[len(parts)-1]

	if parts[1] == s.ClientsSegment {
		if last == commandResultSuffix {
			return Address{Kind: KindClientCommandResult}
		}
		if s.GatewayMarker != "" && strings.Contains(topic, s.GatewayMarker) && len(parts) > 2 {
			return Address{
				Kind:  KindGatewayStatus,
				Root:  strings.Join(parts[:len(parts)-1], "/"),
				Field: last,
			}
		}
		return Address{Kind: KindUnrecognized}
	}

	nodeID, err := strconv.Atoi(parts[1])
	if err != nil || nodeID < 0 {
		return Address{Kind: KindUnrecognized}
	}

	if len(parts) == nodeStatusTopicParts && parts[2] == "status" {
		return Address{Kind: KindNodeStatus, NodeID: nodeID}
	}

	if len(parts) < endpointTopicParts || parts[2] != strconv.Itoa(s.CommandClass) {
		return Address{Kind: KindUnrecognized}
	}

	endpointID, err := strconv.Atoi(parts[3])
	if err != nil || endpointID < 0 || parts[4] == "" {
		return Address{Kind: KindUnrecognized}
	}

	switch {
	case len(parts) == endpointTopicParts:
		return Address{Kind: KindEndpointAttribute, NodeID: nodeID, EndpointID: endpointID, Attribute: parts[4]}
	case len(parts) == endpointTopicParts+1 && last == "set":
		return Address{Kind: KindEndpointSet, NodeID: nodeID, EndpointID: endpointID, Attribute: parts[4]}
	default:
		return Address{Kind: KindUnrecognized}
	}
}

// ParseTopic parses topic with DefaultTopicScheme.
func ParseTopic(topic string) Address {
	return DefaultTopicScheme().Parse(topic)
}

// ClientsWildcard returns the subscription used while searching for the gateway.
//
// Example: zwave/_CLIENTS/#
func (s TopicScheme) ClientsWildcard() string {
	return fmt.Sprintf("%s/%s/#", s.Prefix, s.ClientsSegment)
}

// EndpointWildcard returns the subscription matching every sound switch endpoint value.
//
// Example: zwave/+/121/+/#
func (s TopicScheme) EndpointWildcard() string {
	return fmt.Sprintf("%s/+/%d/+/#", s.Prefix, s.CommandClass)
}

// NodeStatusTopic returns the status topic of a node.
//
// Example: zwave/12/status
func (s TopicScheme) NodeStatusTopic(nodeID int) string {
	return fmt.Sprintf("%s/%d/status", s.Prefix, nodeID)
}

// EndpointSetTopic returns the topic used to write an endpoint attribute.
//
// Example: zwave/12/121/1/toneId/set
func (s TopicScheme) EndpointSetTopic(nodeID, endpointID int, attribute string) string {
	return fmt.Sprintf("%s/%d/%d/%d/%s/set", s.Prefix, nodeID, s.CommandClass, endpointID, attribute)
}
