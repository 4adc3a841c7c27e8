package zwave

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Gateway tracks the Z-Wave JS gateway client discovered on the bus.
//
// The response and command roots are captured from the first gateway topic
// seen and never recomputed afterwards.
type Gateway struct {
	// ResponseTopic is where sendCommand results are published.
	ResponseTopic string

	// CommandTopic is where sendCommand requests are published.
	CommandTopic string

	// StatusKnown is true once a status message has been decoded.
	StatusKnown bool

	// Status is the last decoded gateway status value.
	Status bool

	// Version is the last decoded gateway version.
	Version string

	marker string
}

// gatewayValue is the payload of gateway status/version topics.
type gatewayValue struct {
	Value json.RawMessage `json:"value"`
}

// NewGateway creates a gateway locator matching topics that contain marker.
func NewGateway(marker string) *Gateway {
	return &Gateway{marker: marker}
}

// Observe feeds one bus message to the locator. Topics without the gateway
// marker are ignored.
//
// A malformed payload returns an error wrapping ErrMalformedPayload and leaves
// the corresponding field unknown; the roots are still captured.
func (g *Gateway) Observe(topic string, payload []byte) error {
	if g.marker == "" || !strings.Contains(topic, g.marker) {
		return nil
	}

	idx := strings.LastIndex(topic, "/")
	if idx <= 0 {
		return nil
	}
	field := topic[idx+1:]

	if g.ResponseTopic == "" {
		g.ResponseTopic = topic[:idx] + "/api/sendCommand"
		g.CommandTopic = g.ResponseTopic + "/set"
	}

	switch field {
	case "status":
		var v gatewayValue
		var status bool
		if err := json.Unmarshal(payload, &v); err != nil {
			return fmt.Errorf("%w: gateway status: %w", ErrMalformedPayload, err)
		}
		if err := json.Unmarshal(v.Value, &status); err != nil {
			return fmt.Errorf("%w: gateway status value %s", ErrMalformedPayload, string(v.Value))
		}
		g.Status = status
		g.StatusKnown = true
	case "version":
		var v gatewayValue
		var version string
		if err := json.Unmarshal(payload, &v); err != nil {
			return fmt.Errorf("%w: gateway version: %w", ErrMalformedPayload, err)
		}
		if err := json.Unmarshal(v.Value, &version); err != nil {
			return fmt.Errorf("%w: gateway version value %s", ErrMalformedPayload, string(v.Value))
		}
		g.Version = version
	}

	return nil
}

// IsComplete reports whether the command root, a live status and a version
// are all known.
func (g *Gateway) IsComplete() bool {
	return g.CommandTopic != "" && g.StatusKnown && g.Status && g.Version != ""
}
