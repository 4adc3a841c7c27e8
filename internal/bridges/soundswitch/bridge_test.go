package soundswitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-soundswitch/internal/device"
	"github.com/nerrad567/gray-logic-soundswitch/internal/mapping"
	"github.com/nerrad567/gray-logic-soundswitch/internal/zwave"
)

const (
	gatewayRoot   = "zwave/_CLIENTS/ZWAVE_GATEWAY-home"
	responseTopic = gatewayRoot + "/api/sendCommand"
	commandTopic  = responseTopic + "/set"
)

type fixture struct {
	bridge  *Bridge
	mqtt    *MockMQTTClient
	devices *fakeDevices
	sinks   *fakeSinks
	store   *memStore
	alloc   *mapping.Allocator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, Config{
		QoS:            1,
		HealthInterval: time.Hour,
		BridgeID:       "soundswitch-test",
		Version:        "test",
	})
}

func newFixtureWithConfig(t *testing.T, cfg Config) *fixture {
	t.Helper()

	f := &fixture{
		mqtt:    NewMockMQTTClient(),
		devices: newFakeDevices(),
		sinks:   &fakeSinks{},
		store:   &memStore{},
	}
	f.alloc = mapping.NewAllocator(f.store)

	b, err := NewBridge(Options{
		Config:     cfg,
		MQTTClient: f.mqtt,
		Devices:    f.devices,
		Allocator:  f.alloc,
		Points:     f.sinks,
		Events:     f.sinks,
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	f.bridge = b
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	if err := f.bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(f.bridge.Stop)
}

// send delivers a message through the mock broker and fails the test when
// nothing is subscribed or the handler errors.
func (f *fixture) send(t *testing.T, topic, payload string) {
	t.Helper()
	delivered, err := f.mqtt.SimulateMessage(topic, payload)
	if !delivered {
		t.Fatalf("no subscription matches %s", topic)
	}
	if err != nil {
		t.Fatalf("handling %s: %v", topic, err)
	}
}

func (f *fixture) completeGateway(t *testing.T) {
	t.Helper()
	f.send(t, gatewayRoot+"/status", `{"value":true}`)
	f.send(t, gatewayRoot+"/version", `{"value":"9.1.0"}`)
}

// discoverNode runs a full discovery of node with one endpoint, volume 50,
// tone Default and the given number of tones.
func (f *fixture) discoverNode(t *testing.T, node, tones int) {
	t.Helper()
	f.send(t, endpointTopic(node, 1, zwave.AttributeVolume), valuePayload(50))
	f.send(t, endpointTopic(node, 1, zwave.AttributeTone), valuePayload(255))
	f.send(t, fmt.Sprintf("zwave/%d/status", node), fmt.Sprintf(`{"nodeId":%d,"value":true,"status":"Alive"}`, node))
	f.send(t, responseTopic, toneCountResult(node, tones))
	for id := 1; id <= tones; id++ {
		f.send(t, responseTopic, toneInfoResult(node, id, fmt.Sprintf("%02d Tone%d", id, id), id))
	}
}

func endpointTopic(node, ep int, attr string) string {
	return fmt.Sprintf("zwave/%d/121/%d/%s", node, ep, attr)
}

func valuePayload(v int) string {
	return fmt.Sprintf(`{"time":1700000000,"value":%d,"nodeName":"siren","nodeLocation":"hall"}`, v)
}

func toneCountResult(node, count int) string {
	return fmt.Sprintf(`{"success":true,"message":"OK","result":%d,"args":[{"nodeId":%d,"commandClass":121,"endpoint":0},"getToneCount",[]]}`, count, node)
}

func toneInfoResult(node, id int, name string, duration int) string {
	return fmt.Sprintf(`{"success":true,"message":"OK","result":{"name":%q,"duration":%d},"args":[{"nodeId":%d,"commandClass":121,"endpoint":0},"getToneInfo",[%d]]}`, name, duration, node, id)
}

func payloads(pubs []mockPublish) []string {
	out := make([]string, 0, len(pubs))
	for _, p := range pubs {
		out = append(out, string(p.Payload))
	}
	return out
}

func mustRequest(t *testing.T) func([]byte, error) string {
	return func(b []byte, err error) string {
		t.Helper()
		if err != nil {
			t.Fatalf("building request: %v", err)
		}
		return string(b)
	}
}

func nodeState(t *testing.T, b *Bridge, id int) string {
	t.Helper()
	n, err := b.Node(id)
	if err != nil {
		t.Fatalf("Node(%d) error = %v", id, err)
	}
	return n.State
}

func TestNewBridgeValidation(t *testing.T) {
	mock := NewMockMQTTClient()
	alloc := mapping.NewAllocator(&memStore{})
	devices := newFakeDevices()

	tests := []struct {
		name string
		opts Options
	}{
		{"no mqtt", Options{Devices: devices, Allocator: alloc}},
		{"no devices", Options{MQTTClient: mock, Allocator: alloc}},
		{"no allocator", Options{MQTTClient: mock, Devices: devices}},
		{"bad qos", Options{MQTTClient: mock, Devices: devices, Allocator: alloc, Config: Config{QoS: 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBridge(tt.opts); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("NewBridge() error = %v, want ErrInvalidOptions", err)
			}
		})
	}

	b, err := NewBridge(Options{MQTTClient: mock, Devices: devices, Allocator: alloc})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	if b.cfg.Scheme != zwave.DefaultTopicScheme() {
		t.Errorf("Scheme = %+v, want default", b.cfg.Scheme)
	}
}

func TestStartSubscribesGatewaySearch(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	if !f.mqtt.HasSubscription("zwave/_CLIENTS/#") {
		t.Fatal("not subscribed to zwave/_CLIENTS/#")
	}
	if f.mqtt.HasSubscription("zwave/+/121/+/#") {
		t.Error("subscribed to endpoints before the gateway is known")
	}

	health := f.mqtt.GetPublished("soundswitch/health")
	if len(health) == 0 {
		t.Fatal("no health message published")
	}
	var msg HealthMessage
	if err := json.Unmarshal(health[0].Payload, &msg); err != nil {
		t.Fatalf("health payload: %v", err)
	}
	if msg.Status != HealthStarting || !health[0].Retained {
		t.Errorf("first health = %+v retained=%v, want retained starting", msg, health[0].Retained)
	}
}

func TestStartReconcilesStaleHandles(t *testing.T) {
	f := newFixture(t)
	f.store.entries = []mapping.Entry{
		{ExternalID: "12_1_defaultVolume", NodeID: 12, EndpointID: 1, Attribute: zwave.AttributeVolume, Handle: 1},
		{ExternalID: "12_1_toneId", NodeID: 12, EndpointID: 1, Attribute: zwave.AttributeTone, Handle: 2},
	}
	f.devices.handles[1] = struct{}{}

	f.start(t)

	if got := f.alloc.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
	if _, err := f.alloc.ByHandle(2); !errors.Is(err, mapping.ErrHandleNotFound) {
		t.Errorf("ByHandle(2) error = %v, want ErrHandleNotFound", err)
	}
}

func TestGatewayScenario(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.send(t, gatewayRoot+"/status", `{"value":true}`)
	if f.bridge.Status().GatewayReady {
		t.Fatal("gateway ready before version")
	}
	if f.mqtt.HasSubscription(responseTopic) {
		t.Fatal("subscribed to response topic before gateway complete")
	}

	f.send(t, gatewayRoot+"/version", `{"value":"9.1.0"}`)

	s := f.bridge.Status()
	if !s.GatewayReady {
		t.Fatal("gateway not ready after status and version")
	}
	if s.ResponseTopic != responseTopic || s.CommandTopic != commandTopic {
		t.Errorf("topics = %q, %q", s.ResponseTopic, s.CommandTopic)
	}
	for _, topic := range []string{responseTopic, "zwave/+/121/+/#"} {
		if !f.mqtt.HasSubscription(topic) {
			t.Errorf("not subscribed to %s", topic)
		}
	}
	if f.mqtt.HasSubscription("zwave/_CLIENTS/#") {
		t.Error("gateway search subscription kept")
	}
}

func TestEndpointDiscoveryScenario(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.completeGateway(t)

	f.send(t, endpointTopic(12, 1, zwave.AttributeVolume), valuePayload(50))

	if !f.mqtt.HasSubscription("zwave/12/status") {
		t.Error("not subscribed to node status")
	}
	want := mustRequest(t)(zwave.ToneCountRequest(12))
	if got := payloads(f.mqtt.GetPublished(commandTopic)); !slices.Equal(got, []string{want}) {
		t.Fatalf("requests = %v, want [%s]", got, want)
	}

	ep, err := f.bridge.nodes.Endpoint(12, 1)
	if err != nil || ep.Volume != 50 || ep.Tone != zwave.UnknownValue {
		t.Errorf("endpoint = %+v, %v", ep, err)
	}

	// A second attribute of the same node must not restart discovery.
	f.send(t, endpointTopic(12, 1, zwave.AttributeTone), valuePayload(0))
	if got := len(f.mqtt.GetPublished(commandTopic)); got != 1 {
		t.Errorf("requests = %d after second attribute, want 1", got)
	}
	if len(f.devices.Updates()) != 0 {
		t.Error("devices created before tone discovery")
	}
}

func TestToneDiscoveryAscendingOrder(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.completeGateway(t)
	f.send(t, endpointTopic(5, 0, zwave.AttributeVolume), valuePayload(10))

	f.send(t, responseTopic, toneCountResult(5, 3))
	for id := 1; id <= 3; id++ {
		f.send(t, responseTopic, toneInfoResult(5, id, fmt.Sprintf("%02d T", id), 1))
	}

	want := []string{
		mustRequest(t)(zwave.ToneCountRequest(5)),
		mustRequest(t)(zwave.ToneInfoRequest(5, 1)),
		mustRequest(t)(zwave.ToneInfoRequest(5, 2)),
		mustRequest(t)(zwave.ToneInfoRequest(5, 3)),
	}
	if got := payloads(f.mqtt.GetPublished(commandTopic)); !slices.Equal(got, want) {
		t.Errorf("requests:\n got %v\nwant %v", got, want)
	}
	if got := nodeState(t, f.bridge, 5); got != "ready" {
		t.Errorf("state = %s, want ready", got)
	}
}

func TestDuplicateResultsIgnored(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.completeGateway(t)
	f.send(t, endpointTopic(5, 0, zwave.AttributeVolume), valuePayload(10))

	f.send(t, responseTopic, toneCountResult(5, 2))
	f.send(t, responseTopic, toneCountResult(5, 2))
	f.send(t, responseTopic, toneInfoResult(5, 1, "01 A", 1))
	f.send(t, responseTopic, toneInfoResult(5, 1, "01 A", 1))

	want := []string{
		mustRequest(t)(zwave.ToneCountRequest(5)),
		mustRequest(t)(zwave.ToneInfoRequest(5, 1)),
		mustRequest(t)(zwave.ToneInfoRequest(5, 2)),
	}
	if got := payloads(f.mqtt.GetPublished(commandTopic)); !slices.Equal(got, want) {
		t.Errorf("requests:\n got %v\nwant %v", got, want)
	}
}

func TestDevicesSyncedOnCompletion(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.completeGateway(t)
	f.discoverNode(t, 12, 3)

	updates := f.devices.Updates()
	if len(updates) != 2 {
		t.Fatalf("updates = %d, want 2: %+v", len(updates), updates)
	}

	vol, _ := f.devices.latest("12_1_defaultVolume")
	wantVol := device.DeviceUpdate{
		Handle: 1, ExternalID: "12_1_defaultVolume", Name: "N12E1: volume",
		Kind: device.KindVolume, Enabled: true, Level: 50, NodeID: 12, EndpointID: 1,
	}
	if !sameUpdate(vol, wantVol) {
		t.Errorf("volume = %+v, want %+v", vol, wantVol)
	}

	tone, _ := f.devices.latest("12_1_toneId")
	wantNames := []string{"Off", "Tone1 (1s)", "Tone2 (2s)", "Tone3 (3s)", "Default"}
	if tone.Handle != 2 || tone.Kind != device.KindTone || !tone.Enabled || tone.Level != 20 {
		t.Errorf("tone = %+v, want handle 2 level 20", tone)
	}
	if !slices.Equal(tone.LevelNames, wantNames) {
		t.Errorf("LevelNames = %v, want %v", tone.LevelNames, wantNames)
	}

	state := f.mqtt.GetPublished("soundswitch/device/2/state")
	if len(state) != 1 || !state[0].Retained {
		t.Fatalf("device state publishes = %+v", state)
	}
	var ds DeviceState
	if err := json.Unmarshal(state[0].Payload, &ds); err != nil {
		t.Fatalf("device state payload: %v", err)
	}
	if ds.BusValue != 255 || ds.Level != 20 || ds.Attribute != zwave.AttributeTone {
		t.Errorf("device state = %+v", ds)
	}

	if got := len(f.sinks.Events(EventNodeReady)); got != 1 {
		t.Errorf("node.ready events = %d, want 1", got)
	}
	if got := len(f.sinks.Events(EventDeviceUpdated)); got != 2 {
		t.Errorf("device.updated events = %d, want 2", got)
	}
	if len(f.sinks.discovery) != 1 || f.sinks.discovery[0].ToneCount != 3 {
		t.Errorf("discovery samples = %+v", f.sinks.discovery)
	}
	if len(f.sinks.samples) != 2 {
		t.Errorf("device samples = %d, want 2", len(f.sinks.samples))
	}
	if !f.bridge.Status().Complete() {
		t.Error("Status().Complete() = false after discovery")
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.completeGateway(t)
	f.discoverNode(t, 12, 1)

	before := len(f.devices.Updates())
	f.send(t, endpointTopic(12, 1, zwave.AttributeTone), valuePayload(255))
	f.send(t, endpointTopic(12, 1, zwave.AttributeVolume), valuePayload(50))
	if got := len(f.devices.Updates()); got != before {
		t.Errorf("updates = %d after repeats, want %d", got, before)
	}

	f.send(t, endpointTopic(12, 1, zwave.AttributeVolume), valuePayload(30))
	vol, _ := f.devices.latest("12_1_defaultVolume")
	if got := len(f.devices.Updates()); got != before+1 || vol.Level != 30 {
		t.Errorf("updates = %d, volume level = %d; want %d and 30", got, vol.Level, before+1)
	}
}

func TestNodeWaitsForAliveStatus(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.completeGateway(t)

	f.send(t, endpointTopic(3, 1, zwave.AttributeVolume), valuePayload(20))
	f.send(t, endpointTopic(3, 1, zwave.AttributeTone), valuePayload(1))
	f.send(t, responseTopic, toneCountResult(3, 0))

	if len(f.devices.Updates()) != 0 {
		t.Fatal("devices created for a node that is not alive")
	}

	f.send(t, "zwave/3/status", `{"nodeId":3,"value":true,"status":"Alive"}`)
	if got := len(f.devices.Updates()); got != 2 {
		t.Errorf("updates = %d after alive, want 2", got)
	}
}

func TestNodeSeenBeforeGateway(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	// Deliver directly: the endpoint wildcard is not yet subscribed.
	if err := f.bridge.handleMessage(endpointTopic(7, 0, zwave.AttributeVolume), []byte(valuePayload(40))); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}
	if got := nodeState(t, f.bridge, 7); got != "unstarted" {
		t.Fatalf("state = %s before gateway, want unstarted", got)
	}

	f.completeGateway(t)

	want := mustRequest(t)(zwave.ToneCountRequest(7))
	if got := payloads(f.mqtt.GetPublished(commandTopic)); !slices.Equal(got, []string{want}) {
		t.Errorf("requests = %v, want [%s]", got, want)
	}
	if got := nodeState(t, f.bridge, 7); got != "awaiting_tone_count" {
		t.Errorf("state = %s, want awaiting_tone_count", got)
	}
}

func TestPublishFailureResetsNode(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.completeGateway(t)

	f.mqtt.FailPublish(commandTopic, errBroker)
	_, err := f.mqtt.SimulateMessage(endpointTopic(9, 1, zwave.AttributeVolume), valuePayload(10))
	if !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("error = %v, want ErrPublishFailed", err)
	}
	if got := nodeState(t, f.bridge, 9); got != "unstarted" {
		t.Fatalf("state = %s after failed publish, want unstarted", got)
	}

	f.mqtt.FailPublish(commandTopic, nil)
	f.send(t, endpointTopic(9, 1, zwave.AttributeVolume), valuePayload(10))

	if got := len(f.mqtt.GetPublished(commandTopic)); got != 1 {
		t.Errorf("requests = %d after retry, want 1", got)
	}
	if got := nodeState(t, f.bridge, 9); got != "awaiting_tone_count" {
		t.Errorf("state = %s, want awaiting_tone_count", got)
	}
}

func TestFailedResultResetsNode(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.completeGateway(t)
	f.send(t, endpointTopic(4, 1, zwave.AttributeVolume), valuePayload(10))

	f.send(t, responseTopic, `{"success":false,"message":"node timeout","result":null,"args":[{"nodeId":4,"commandClass":121,"endpoint":0},"getToneCount",[]]}`)

	if got := nodeState(t, f.bridge, 4); got != "unstarted" {
		t.Errorf("state = %s, want unstarted", got)
	}
}

func TestToneCountOutOfRangeRejected(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.completeGateway(t)
	f.send(t, endpointTopic(9, 1, zwave.AttributeVolume), valuePayload(10))
	f.mqtt.ClearPublished()

	for _, count := range []int{zwave.MaxToneCount + 1, 20000000} {
		_, err := f.mqtt.SimulateMessage(responseTopic, toneCountResult(9, count))
		if !errors.Is(err, zwave.ErrMalformedPayload) {
			t.Errorf("tone count %d error = %v, want ErrMalformedPayload", count, err)
		}
	}

	if got := len(f.mqtt.GetPublished(commandTopic)); got != 0 {
		t.Errorf("requests after rejected counts = %d, want 0", got)
	}
	if got := nodeState(t, f.bridge, 9); got != "unstarted" {
		t.Errorf("state = %s, want unstarted", got)
	}
	node, err := f.bridge.Node(9)
	if err != nil || node.ToneCount != zwave.UnknownValue || len(node.MissingTones) != 0 {
		t.Errorf("node after rejected counts = %+v, %v", node, err)
	}

	// The next endpoint message retries discovery.
	f.send(t, endpointTopic(9, 1, zwave.AttributeVolume), valuePayload(11))
	want := mustRequest(t)(zwave.ToneCountRequest(9))
	if got := payloads(f.mqtt.GetPublished(commandTopic)); !slices.Equal(got, []string{want}) {
		t.Errorf("requests = %v, want %v", got, []string{want})
	}
}

func TestCustomCommandClassDiscovery(t *testing.T) {
	scheme := zwave.DefaultTopicScheme()
	scheme.CommandClass = 37
	f := newFixtureWithConfig(t, Config{
		Scheme:         scheme,
		QoS:            1,
		HealthInterval: time.Hour,
		BridgeID:       "soundswitch-test",
	})
	f.start(t)
	f.completeGateway(t)

	f.send(t, "zwave/5/37/1/defaultVolume", valuePayload(30))
	want := mustRequest(t)(scheme.ToneCountRequest(5))
	if got := payloads(f.mqtt.GetPublished(commandTopic)); !slices.Equal(got, []string{want}) {
		t.Fatalf("requests = %v, want %v", got, []string{want})
	}
	f.mqtt.ClearPublished()

	f.send(t, responseTopic, `{"success":true,"message":"OK","result":1,"args":[{"nodeId":5,"commandClass":37,"endpoint":0},"getToneCount",[]]}`)
	want = mustRequest(t)(scheme.ToneInfoRequest(5, 1))
	if got := payloads(f.mqtt.GetPublished(commandTopic)); !slices.Equal(got, []string{want}) {
		t.Errorf("requests = %v, want %v", got, []string{want})
	}
	if got := nodeState(t, f.bridge, 5); got != "awaiting_tone_info" {
		t.Errorf("state = %s, want awaiting_tone_info", got)
	}
}

func TestResultFiltering(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.completeGateway(t)
	f.send(t, endpointTopic(4, 1, zwave.AttributeVolume), valuePayload(10))
	f.mqtt.ClearPublished()

	// Another command class sharing the response topic.
	f.send(t, responseTopic, `{"success":true,"message":"OK","result":3,"args":[{"nodeId":4,"commandClass":37,"endpoint":0},"getToneCount",[]]}`)
	// An unrecognised command name.
	f.send(t, responseTopic, `{"success":true,"message":"OK","result":1,"args":[{"nodeId":4,"commandClass":121,"endpoint":0},"play",[1]]}`)

	if got := len(f.mqtt.GetPublished(commandTopic)); got != 0 {
		t.Errorf("requests = %d, want 0", got)
	}
	if got := nodeState(t, f.bridge, 4); got != "awaiting_tone_count" {
		t.Errorf("state = %s, want awaiting_tone_count", got)
	}

	_, err := f.mqtt.SimulateMessage(responseTopic, toneCountResult(99, 2))
	if !errors.Is(err, zwave.ErrNodeNotFound) {
		t.Errorf("result for unknown node error = %v, want ErrNodeNotFound", err)
	}
}

func TestMalformedAndUnrecognisedMessages(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.completeGateway(t)

	_, err := f.mqtt.SimulateMessage(endpointTopic(12, 1, zwave.AttributeVolume), `{oops`)
	if !errors.Is(err, zwave.ErrMalformedPayload) {
		t.Errorf("error = %v, want ErrMalformedPayload", err)
	}
	if err := f.bridge.handleMessage("zwave/12/37/0/currentValue", []byte(`{"value":1}`)); err != nil {
		t.Errorf("unrecognised topic error = %v", err)
	}
	if err := f.bridge.handleMessage(endpointTopic(12, 1, zwave.AttributeVolume)+"/set", []byte(`50`)); err != nil {
		t.Errorf("set echo error = %v", err)
	}
	if got := len(f.bridge.Status().Nodes); got != 0 {
		t.Errorf("nodes = %d, want 0", got)
	}
}

func TestHandleUserCommand(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.completeGateway(t)
	f.discoverNode(t, 12, 3)
	ctx := context.Background()

	tests := []struct {
		name   string
		handle int
		cmd    device.Command
		topic  string
		want   string
	}{
		{"volume", 1, device.Command{Action: device.ActionSetLevel, Level: 57}, "zwave/12/121/1/defaultVolume/set", "57"},
		{"tone one", 2, device.Command{Action: device.ActionSetLevel, Level: 10}, "zwave/12/121/1/toneId/set", "1"},
		{"tone default", 2, device.Command{Action: device.ActionSetLevel, Level: 40}, "zwave/12/121/1/toneId/set", "255"},
		{"tone off", 2, device.Command{Action: device.ActionOff}, "zwave/12/121/1/toneId/set", "0"},
		{"volume off", 1, device.Command{Action: device.ActionOff, Level: 80}, "zwave/12/121/1/defaultVolume/set", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.mqtt.ClearPublished()
			if err := f.bridge.HandleUserCommand(ctx, tt.handle, tt.cmd); err != nil {
				t.Fatalf("HandleUserCommand() error = %v", err)
			}
			pubs := f.mqtt.GetPublished(tt.topic)
			if len(pubs) != 1 || string(pubs[0].Payload) != tt.want || pubs[0].Retained {
				t.Errorf("publishes to %s = %+v, want one %q", tt.topic, pubs, tt.want)
			}
		})
	}

	if err := f.bridge.HandleUserCommand(ctx, 99, device.Command{Action: device.ActionOff}); !errors.Is(err, mapping.ErrHandleNotFound) {
		t.Errorf("unknown handle error = %v, want ErrHandleNotFound", err)
	}
}

func TestToneCommandBeforeDiscovery(t *testing.T) {
	f := newFixture(t)
	f.store.entries = []mapping.Entry{
		{ExternalID: "6_1_toneId", NodeID: 6, EndpointID: 1, Attribute: zwave.AttributeTone, Handle: 3},
	}
	f.devices.handles[3] = struct{}{}
	f.start(t)
	ctx := context.Background()

	cmd := device.Command{Action: device.ActionSetLevel, Level: 10}
	if err := f.bridge.HandleUserCommand(ctx, 3, cmd); !errors.Is(err, zwave.ErrNodeNotFound) {
		t.Errorf("error = %v, want ErrNodeNotFound", err)
	}

	f.completeGateway(t)
	f.send(t, endpointTopic(6, 1, zwave.AttributeTone), valuePayload(0))
	if err := f.bridge.HandleUserCommand(ctx, 3, cmd); !errors.Is(err, ErrNodeNotReady) {
		t.Errorf("error = %v, want ErrNodeNotReady", err)
	}
}

func TestHandleDeviceRemoved(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.completeGateway(t)
	f.discoverNode(t, 12, 1)
	ctx := context.Background()

	if err := f.bridge.HandleDeviceRemoved(ctx, 1); err != nil {
		t.Fatalf("HandleDeviceRemoved() error = %v", err)
	}
	if _, err := f.alloc.ByHandle(1); !errors.Is(err, mapping.ErrHandleNotFound) {
		t.Errorf("ByHandle(1) error = %v, want ErrHandleNotFound", err)
	}
	events := f.sinks.Events(EventDeviceRemoved)
	if len(events) != 1 || events[0].Payload.(DeviceRemovedEvent).ExternalID != "12_1_defaultVolume" {
		t.Errorf("device.removed events = %+v", events)
	}

	if err := f.bridge.HandleDeviceRemoved(ctx, 200); err != nil {
		t.Errorf("HandleDeviceRemoved(unmapped) error = %v", err)
	}

	// The next value for the endpoint recreates the device on the freed handle.
	before := len(f.devices.Updates())
	f.send(t, endpointTopic(12, 1, zwave.AttributeVolume), valuePayload(50))
	vol, _ := f.devices.latest("12_1_defaultVolume")
	if len(f.devices.Updates()) != before+1 || vol.Handle != 1 {
		t.Errorf("recreated volume = %+v", vol)
	}
}

func TestPoolExhaustionCreatesNoDevice(t *testing.T) {
	f := newFixture(t)
	for h := mapping.MinHandle; h <= mapping.MaxHandle; h++ {
		f.store.entries = append(f.store.entries, mapping.Entry{
			ExternalID: zwave.ExternalID(100+h, 0, zwave.AttributeVolume),
			NodeID:     100 + h,
			Attribute:  zwave.AttributeVolume,
			Handle:     h,
		})
		f.devices.handles[h] = struct{}{}
	}
	f.start(t)
	f.completeGateway(t)

	f.send(t, endpointTopic(12, 1, zwave.AttributeVolume), valuePayload(50))
	f.send(t, endpointTopic(12, 1, zwave.AttributeTone), valuePayload(0))
	f.send(t, "zwave/12/status", `{"nodeId":12,"value":true,"status":"Alive"}`)
	_, err := f.mqtt.SimulateMessage(responseTopic, toneCountResult(12, 0))
	if !errors.Is(err, mapping.ErrPoolExhausted) || !errors.Is(err, ErrSyncFailed) {
		t.Errorf("error = %v, want ErrSyncFailed wrapping ErrPoolExhausted", err)
	}
	if got := len(f.devices.Updates()); got != 0 {
		t.Errorf("updates = %d, want 0", got)
	}
}
