package soundswitch

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-soundswitch/internal/device"
	"github.com/nerrad567/gray-logic-soundswitch/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-soundswitch/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-soundswitch/internal/mapping"
)

// MockMQTTClient is a mock implementation of MQTTClient for testing.
type MockMQTTClient struct {
	mu         sync.Mutex
	published  []mockPublish
	handlers   map[string]mqtt.MessageHandler
	unsubbed   []string
	connected  bool
	publishErr map[string]error
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected:  true,
		handlers:   make(map[string]mqtt.MessageHandler),
		publishErr: make(map[string]error),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.publishErr[topic]; err != nil {
		return err
	}
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	m.unsubbed = append(m.unsubbed, topic)
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = v
}

// FailPublish makes every publish to topic return err; nil clears it.
func (m *MockMQTTClient) FailPublish(topic string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.publishErr, topic)
		return
	}
	m.publishErr[topic] = err
}

func (m *MockMQTTClient) HasSubscription(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handlers[topic]
	return ok
}

// GetPublished returns publishes to topic, or every publish when topic is "".
func (m *MockMQTTClient) GetPublished(topic string) []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mockPublish
	for _, p := range m.published {
		if topic == "" || p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *MockMQTTClient) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

// SimulateMessage delivers payload to the first subscription matching topic.
// It reports whether any subscription matched.
func (m *MockMQTTClient) SimulateMessage(topic, payload string) (bool, error) {
	m.mu.Lock()
	var handler mqtt.MessageHandler
	for filter, h := range m.handlers {
		if topicMatches(filter, topic) {
			handler = h
			break
		}
	}
	m.mu.Unlock()

	if handler == nil {
		return false, nil
	}
	return true, handler(topic, []byte(payload))
}

// topicMatches implements MQTT filter matching for + and #.
func topicMatches(filter, topic string) bool {
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")
	for i, seg := range f {
		if seg == "#" {
			return true
		}
		if i >= len(t) {
			return false
		}
		if seg != "+" && seg != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}

// memStore is an in-memory mapping.Store.
type memStore struct {
	mu      sync.Mutex
	entries []mapping.Entry
}

func (s *memStore) LoadMapping(context.Context) ([]mapping.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mapping.Entry(nil), s.entries...), nil
}

func (s *memStore) SaveMapping(_ context.Context, entries []mapping.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]mapping.Entry(nil), entries...)
	return nil
}

// fakeDevices records every update pushed by the bridge.
type fakeDevices struct {
	mu      sync.Mutex
	updates []device.DeviceUpdate
	handles map[int]struct{}
	err     error
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{handles: make(map[int]struct{})}
}

func (f *fakeDevices) CreateOrUpdateDevice(_ context.Context, u device.DeviceUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, u)
	f.handles[u.Handle] = struct{}{}
	return nil
}

func (f *fakeDevices) Handles(context.Context) (map[int]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int]struct{}, len(f.handles))
	for h := range f.handles {
		out[h] = struct{}{}
	}
	return out, nil
}

func (f *fakeDevices) Updates() []device.DeviceUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]device.DeviceUpdate(nil), f.updates...)
}

// latest returns the last update for externalID.
func (f *fakeDevices) latest(externalID string) (device.DeviceUpdate, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.updates) - 1; i >= 0; i-- {
		if f.updates[i].ExternalID == externalID {
			return f.updates[i], true
		}
	}
	return device.DeviceUpdate{}, false
}

type recordedEvent struct {
	Channel string
	Payload any
}

// fakeSinks records time-series points and hub events.
type fakeSinks struct {
	mu        sync.Mutex
	samples   []influxdb.DeviceSample
	discovery []influxdb.DiscoverySample
	events    []recordedEvent
}

func (f *fakeSinks) WriteDeviceState(s influxdb.DeviceSample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, s)
}

func (f *fakeSinks) WriteDiscovery(s influxdb.DiscoverySample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discovery = append(f.discovery, s)
}

func (f *fakeSinks) Broadcast(channel string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{Channel: channel, Payload: payload})
}

func (f *fakeSinks) Events(channel string) []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedEvent
	for _, e := range f.events {
		if e.Channel == channel {
			out = append(out, e)
		}
	}
	return out
}

var errBroker = errors.New("broker unavailable")
