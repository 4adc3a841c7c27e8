package zwave

import (
	"fmt"
	"strconv"
	"strings"
)

// UnknownValue marks an endpoint attribute that has not been reported yet.
const UnknownValue = -1

// MaxToneCount is the largest tone count a node may report. Tone ids are one
// byte wide and 255 is the Default tone.
const MaxToneCount = ToneDefault - 1

// ValidToneCount reports ErrMalformedPayload for counts outside
// [0, MaxToneCount].
func ValidToneCount(count int) error {
	if count < 0 || count > MaxToneCount {
		return fmt.Errorf("%w: tone count %d outside [0, %d]", ErrMalformedPayload, count, MaxToneCount)
	}
	return nil
}

// DiscoveryState is the position of a node in the tone discovery protocol.
type DiscoveryState int

// Discovery states.
const (
	DiscoveryUnstarted DiscoveryState = iota
	DiscoveryAwaitingToneCount
	DiscoveryAwaitingToneInfo
	DiscoveryReady
)

// String returns the state name.
func (s DiscoveryState) String() string {
	switch s {
	case DiscoveryUnstarted:
		return "unstarted"
	case DiscoveryAwaitingToneCount:
		return "awaiting_tone_count"
	case DiscoveryAwaitingToneInfo:
		return "awaiting_tone_info"
	case DiscoveryReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Endpoint is one sound switch endpoint of a node.
type Endpoint struct {
	NodeID     int `json:"node_id"`
	EndpointID int `json:"endpoint_id"`
	Volume     int `json:"volume"`
	Tone       int `json:"tone"`
}

func newEndpoint(nodeID, endpointID int) *Endpoint {
	return &Endpoint{NodeID: nodeID, EndpointID: endpointID, Volume: UnknownValue, Tone: UnknownValue}
}

// VolumeKnown reports whether a defaultVolume value has been received.
func (e Endpoint) VolumeKnown() bool { return e.Volume >= 0 }

// ToneKnown reports whether a toneId value has been received.
func (e Endpoint) ToneKnown() bool { return e.Tone >= 0 }

// IsComplete reports whether both attributes are known.
func (e Endpoint) IsComplete() bool { return e.VolumeKnown() && e.ToneKnown() }

// Value returns the raw bus value of attribute.
func (e Endpoint) Value(attribute string) (int, error) {
	switch attribute {
	case AttributeVolume:
		return e.Volume, nil
	case AttributeTone:
		return e.Tone, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAttribute, attribute)
	}
}

// set stores value for a known attribute and reports whether it changed.
func (e *Endpoint) set(attribute string, value int) bool {
	switch attribute {
	case AttributeVolume:
		if e.Volume == value {
			return false
		}
		e.Volume = value
	case AttributeTone:
		if e.Tone == value {
			return false
		}
		e.Tone = value
	default:
		return false
	}
	return true
}

// ExternalID formats the identity of one endpoint attribute.
//
// Example: ExternalID(12, 1, "toneId") == "12_1_toneId"
func ExternalID(nodeID, endpointID int, attribute string) string {
	return fmt.Sprintf("%d_%d_%s", nodeID, endpointID, attribute)
}

// ParseExternalID is the inverse of ExternalID.
func ParseExternalID(id string) (nodeID, endpointID int, attribute string, err error) {
	parts := strings.SplitN(id, "_", 3)
	if len(parts) != 3 || parts[2] == "" {
		return 0, 0, "", fmt.Errorf("%w: %q", ErrInvalidExternalID, id)
	}
	nodeID, err = strconv.Atoi(parts[0])
	if err != nil || nodeID < 0 {
		return 0, 0, "", fmt.Errorf("%w: %q", ErrInvalidExternalID, id)
	}
	endpointID, err = strconv.Atoi(parts[1])
	if err != nil || endpointID < 0 {
		return 0, 0, "", fmt.Errorf("%w: %q", ErrInvalidExternalID, id)
	}
	return nodeID, endpointID, parts[2], nil
}

// Node is a Z-Wave node exposing the Sound Switch command class.
//
// ToneCount is UnknownValue until a getToneCount result has been applied.
// Tones always holds the reserved entries and otherwise only ids in
// [1, ToneCount].
type Node struct {
	ID        int
	ToneCount int
	Tones     ToneCatalog
	Alive     bool
	Status    string
	State     DiscoveryState
	Endpoints map[int]*Endpoint
}

// NewNode creates an unstarted node with the reserved tones.
func NewNode(id int) *Node {
	return &Node{
		ID:        id,
		ToneCount: UnknownValue,
		Tones:     NewToneCatalog(),
		State:     DiscoveryUnstarted,
		Endpoints: make(map[int]*Endpoint),
	}
}

// Start moves an unstarted node to AwaitingToneCount. It returns false when
// discovery is already under way, in which case no request should be sent.
func (n *Node) Start() bool {
	if n.State != DiscoveryUnstarted {
		return false
	}
	n.State = DiscoveryAwaitingToneCount
	return true
}

// Reset returns the node to Unstarted so discovery is retried. Acquired tones
// are kept.
func (n *Node) Reset() {
	n.State = DiscoveryUnstarted
}

// ApplyToneCount records a getToneCount result. When request is true the
// caller must send getToneInfo for tone id next.
//
// A count equal to the known one is ignored unless the node is waiting for
// it, so retransmitted results never trigger a second request. Counts
// rejected by ValidToneCount leave the node untouched.
func (n *Node) ApplyToneCount(count int) (next int, request bool) {
	if ValidToneCount(count) != nil {
		return 0, false
	}
	if count == n.ToneCount && n.State != DiscoveryAwaitingToneCount {
		return 0, false
	}

	if n.ToneCount != UnknownValue && count < n.ToneCount {
		for id := range n.Tones {
			if id != ToneOff && id != ToneDefault && id > count {
				delete(n.Tones, id)
			}
		}
	}
	n.ToneCount = count

	return n.advance()
}

// ApplyToneInfo records a getToneInfo result for tone id. The device name
// carries a three character index prefix which is stripped.
//
// Results for ids outside [1, ToneCount], or for tones already known, leave
// the node untouched.
func (n *Node) ApplyToneInfo(id int, name string, durationSeconds int) (next int, request bool) {
	if n.ToneCount == UnknownValue || id < 1 || id > n.ToneCount {
		return 0, false
	}
	if _, ok := n.Tones[id]; ok {
		return 0, false
	}

	n.Tones[id] = ToneDefinition{ID: id, Name: stripTonePrefix(name), DurationSeconds: durationSeconds}

	return n.advance()
}

func (n *Node) advance() (int, bool) {
	next, ok := n.NextMissingTone()
	if !ok {
		n.State = DiscoveryReady
		return 0, false
	}
	n.State = DiscoveryAwaitingToneInfo
	return next, true
}

// NextMissingTone returns the smallest id in [1, ToneCount] without a
// definition.
func (n *Node) NextMissingTone() (int, bool) {
	for id := 1; id <= n.ToneCount; id++ {
		if _, ok := n.Tones[id]; !ok {
			return id, true
		}
	}
	return 0, false
}

// MissingTones returns every id in [1, ToneCount] without a definition.
func (n *Node) MissingTones() []int {
	var missing []int
	for id := 1; id <= n.ToneCount; id++ {
		if _, ok := n.Tones[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// ToneDiscoveryComplete reports whether the node's tone catalog is final.
func (n *Node) ToneDiscoveryComplete() bool {
	return n.State == DiscoveryReady
}

// IsComplete reports whether the node is alive and its tones are known.
func (n *Node) IsComplete() bool {
	return n.Alive && n.ToneDiscoveryComplete()
}
