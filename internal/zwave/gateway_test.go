package zwave

import (
	"errors"
	"testing"
)

const gatewayRoot = "zwave/_CLIENTS/ZWAVE_GATEWAY-main"

func TestGatewayDiscovery(t *testing.T) {
	g := NewGateway(DefaultGatewayMarker)

	if err := g.Observe(gatewayRoot+"/status", []byte(`{"value":true}`)); err != nil {
		t.Fatalf("Observe(status) error = %v", err)
	}
	if g.IsComplete() {
		t.Fatal("IsComplete() = true before version is known")
	}

	if err := g.Observe(gatewayRoot+"/version", []byte(`{"value":"9.1"}`)); err != nil {
		t.Fatalf("Observe(version) error = %v", err)
	}
	if !g.IsComplete() {
		t.Fatal("IsComplete() = false after status and version")
	}

	if g.ResponseTopic != gatewayRoot+"/api/sendCommand" {
		t.Errorf("ResponseTopic = %q", g.ResponseTopic)
	}
	if g.CommandTopic != gatewayRoot+"/api/sendCommand/set" {
		t.Errorf("CommandTopic = %q", g.CommandTopic)
	}
	if g.Version != "9.1" {
		t.Errorf("Version = %q, want 9.1", g.Version)
	}
}

func TestGatewayFirstWriterWins(t *testing.T) {
	g := NewGateway(DefaultGatewayMarker)

	_ = g.Observe(gatewayRoot+"/status", []byte(`{"value":true}`))
	_ = g.Observe("zwave/_CLIENTS/ZWAVE_GATEWAY-other/version", []byte(`{"value":"1.0"}`))

	if g.CommandTopic != gatewayRoot+"/api/sendCommand/set" {
		t.Errorf("CommandTopic = %q, roots must not be recomputed", g.CommandTopic)
	}
	if g.Version != "1.0" {
		t.Errorf("Version = %q, later messages still update fields", g.Version)
	}
}

func TestGatewayStatusFalse(t *testing.T) {
	g := NewGateway(DefaultGatewayMarker)
	_ = g.Observe(gatewayRoot+"/version", []byte(`{"value":"9.1"}`))
	_ = g.Observe(gatewayRoot+"/status", []byte(`{"value":false}`))

	if !g.StatusKnown {
		t.Error("StatusKnown = false after a status message")
	}
	if g.IsComplete() {
		t.Error("IsComplete() = true with status false")
	}
}

func TestGatewayMalformedPayload(t *testing.T) {
	g := NewGateway(DefaultGatewayMarker)

	err := g.Observe(gatewayRoot+"/status", []byte(`not json`))
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("Observe() error = %v, want ErrMalformedPayload", err)
	}
	if g.StatusKnown {
		t.Error("StatusKnown = true after malformed payload")
	}
	if g.CommandTopic == "" {
		t.Error("roots should be captured even when the payload is malformed")
	}

	err = g.Observe(gatewayRoot+"/version", []byte(`{"value":42}`))
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("Observe(version) error = %v, want ErrMalformedPayload", err)
	}
	if g.Version != "" {
		t.Errorf("Version = %q, want empty", g.Version)
	}
}

func TestGatewayIgnoresUnmarkedTopics(t *testing.T) {
	g := NewGateway(DefaultGatewayMarker)

	if err := g.Observe("zwave/12/status", []byte(`garbage`)); err != nil {
		t.Errorf("Observe() error = %v, want nil for unrelated topic", err)
	}
	if g.ResponseTopic != "" {
		t.Errorf("ResponseTopic = %q, want empty", g.ResponseTopic)
	}
}
