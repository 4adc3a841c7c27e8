package soundswitch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-soundswitch/internal/device"
	"github.com/nerrad567/gray-logic-soundswitch/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-soundswitch/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-soundswitch/internal/mapping"
	"github.com/nerrad567/gray-logic-soundswitch/internal/zwave"
)

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MQTTClient is the bus connection used by the bridge.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// DeviceRegistry receives the devices the bridge derives from endpoints.
type DeviceRegistry interface {
	CreateOrUpdateDevice(ctx context.Context, u device.DeviceUpdate) error
	Handles(ctx context.Context) (map[int]struct{}, error)
}

// HandleAllocator maps endpoint attributes to host handles.
type HandleAllocator interface {
	Load(ctx context.Context) error
	Allocate(ctx context.Context, key mapping.Key) (int, error)
	Release(ctx context.Context, handle int) (*mapping.Entry, error)
	Reconcile(ctx context.Context, live map[int]struct{}) ([]mapping.Entry, error)
	ByHandle(handle int) (mapping.Entry, error)
	Len() int
}

// PointWriter records device values and discovery timings.
type PointWriter interface {
	WriteDeviceState(s influxdb.DeviceSample)
	WriteDiscovery(s influxdb.DiscoverySample)
}

// EventPublisher fans bridge events out to API clients.
type EventPublisher interface {
	Broadcast(channel string, payload any)
}

// Config holds the bridge settings.
type Config struct {
	// Scheme is the bus topic layout. A zero Prefix selects
	// zwave.DefaultTopicScheme.
	Scheme zwave.TopicScheme

	// QoS is used for every subscription and publish.
	QoS byte

	// HealthInterval is the health publish period.
	HealthInterval time.Duration

	// BridgeID identifies this instance in health messages.
	BridgeID string

	Version string
}

// Options configures a Bridge. MQTTClient, Devices and Allocator are
// required; the rest may be nil.
type Options struct {
	Config     Config
	MQTTClient MQTTClient
	Devices    DeviceRegistry
	Allocator  HandleAllocator
	Points     PointWriter
	Events     EventPublisher
	Metrics    *Metrics
	Logger     Logger
}

// resultHandler processes one successful sendCommand result for node.
type resultHandler func(node *zwave.Node, res zwave.CommandResult) error

// Bridge is the sound switch discovery and sync engine.
type Bridge struct {
	cfg     Config
	mqtt    MQTTClient
	devices DeviceRegistry
	alloc   HandleAllocator
	points  PointWriter
	events  EventPublisher
	metrics *Metrics
	health  *HealthReporter
	topics  mqtt.Topics

	// mu serialises every entry point. Everything below it is guarded.
	mu             sync.Mutex
	gateway        *zwave.Gateway
	nodes          *zwave.Registry
	gatewayReady   bool
	statusSubs     map[int]bool
	pushed         map[string]device.DeviceUpdate
	discoveryStart map[int]time.Time
	results        map[string]resultHandler

	// ctx is cancelled by Stop and used for bus-initiated work.
	ctx       context.Context
	ctxCancel context.CancelFunc
	stopOnce  sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a bridge. Call Start to begin discovery.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("%w: MQTT client is required", ErrInvalidOptions)
	}
	if opts.Devices == nil {
		return nil, fmt.Errorf("%w: device registry is required", ErrInvalidOptions)
	}
	if opts.Allocator == nil {
		return nil, fmt.Errorf("%w: handle allocator is required", ErrInvalidOptions)
	}

	cfg := opts.Config
	if cfg.Scheme.Prefix == "" {
		cfg.Scheme = zwave.DefaultTopicScheme()
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("%w: QoS %d", ErrInvalidOptions, cfg.QoS)
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:            cfg,
		mqtt:           opts.MQTTClient,
		devices:        opts.Devices,
		alloc:          opts.Allocator,
		points:         opts.Points,
		events:         opts.Events,
		metrics:        opts.Metrics,
		gateway:        zwave.NewGateway(cfg.Scheme.GatewayMarker),
		nodes:          zwave.NewRegistry(),
		statusSubs:     make(map[int]bool),
		pushed:         make(map[string]device.DeviceUpdate),
		discoveryStart: make(map[int]time.Time),
		ctx:            ctx,
		ctxCancel:      ctxCancel,
		logger:         noopLogger{},
	}
	b.results = map[string]resultHandler{
		zwave.CommandGetToneCount: b.onToneCount,
		zwave.CommandGetToneInfo:  b.onToneInfo,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  cfg.BridgeID,
		Version:   cfg.Version,
		Interval:  cfg.HealthInterval,
		Publisher: opts.MQTTClient,
		Source:    b,
	})

	if opts.Logger != nil {
		b.SetLogger(opts.Logger)
	}
	return b, nil
}

// SetLogger sets the logger for the bridge and its health reporter.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
	b.health.SetLogger(logger)
}

func (b *Bridge) log() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// Start loads the handle mapping, drops entries for handles the device
// registry no longer has, and subscribes to the gateway search topic.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.alloc.Load(ctx); err != nil {
		return fmt.Errorf("loading handle mapping: %w", err)
	}

	live, err := b.devices.Handles(ctx)
	if err != nil {
		return fmt.Errorf("listing device handles: %w", err)
	}
	removed, err := b.alloc.Reconcile(ctx, live)
	if err != nil {
		return err
	}
	if len(removed) > 0 {
		b.log().Info("stale handles released", "count", len(removed))
	}

	if err := b.health.PublishStarting(); err != nil {
		b.log().Warn("failed to publish starting status", "error", err)
	}

	topic := b.cfg.Scheme.ClientsWildcard()
	if err := b.mqtt.Subscribe(topic, b.cfg.QoS, b.handleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	b.health.Start(b.ctx)

	b.log().Info("bridge started", "topic", topic, "handles", b.alloc.Len())
	return nil
}

// Stop halts health reporting and cancels in-flight work.
// Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		b.health.Stop()
		b.log().Info("bridge stopped")
	})
}

// Status returns a snapshot of gateway and discovery progress.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusLocked()
}

func (b *Bridge) statusLocked() Status {
	s := Status{
		GatewayReady:  b.gatewayReady,
		ResponseTopic: b.gateway.ResponseTopic,
		CommandTopic:  b.gateway.CommandTopic,
		Nodes:         b.nodes.Snapshot(),
		Handles:       b.alloc.Len(),
		MQTTConnected: b.mqtt.IsConnected(),
	}
	for _, n := range s.Nodes {
		if n.Complete {
			s.NodesReady++
		}
	}
	return s
}

// Node returns a snapshot of one node.
func (b *Bridge) Node(id int) (zwave.NodeSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, n := range b.nodes.Snapshot() {
		if n.ID == id {
			return n, nil
		}
	}
	return zwave.NodeSnapshot{}, fmt.Errorf("%w: %d", zwave.ErrNodeNotFound, id)
}

// handleMessage is the single bus entry point.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	addr := b.cfg.Scheme.Parse(topic)
	kind := addr.Kind.String()
	b.metrics.messageReceived(kind)

	var err error
	switch addr.Kind {
	case zwave.KindGatewayStatus:
		err = b.onGatewayMessage(topic, payload)
	case zwave.KindClientCommandResult:
		err = b.onCommandResult(payload)
	case zwave.KindNodeStatus:
		err = b.onNodeStatus(addr, payload)
	case zwave.KindEndpointAttribute:
		err = b.onEndpointAttribute(addr, payload)
	case zwave.KindEndpointSet:
		b.log().Debug("ignoring set echo", "topic", topic)
	default:
		b.log().Warn("unrecognised topic", "topic", topic)
	}

	if errors.Is(err, zwave.ErrMalformedPayload) {
		b.metrics.malformedPayload(kind)
	}
	if b.metrics != nil {
		b.metrics.observe(b.statusLocked())
	}
	return err
}

func (b *Bridge) onGatewayMessage(topic string, payload []byte) error {
	if b.gatewayReady {
		return nil
	}
	if err := b.gateway.Observe(topic, payload); err != nil {
		return fmt.Errorf("gateway %s: %w", topic, err)
	}
	if !b.gateway.IsComplete() {
		return nil
	}
	return b.onGatewayComplete()
}

// onGatewayComplete swaps the gateway search subscription for the response
// topic and the endpoint wildcard, then starts any waiting nodes. A failed
// subscribe leaves the gateway not ready so the next gateway message retries.
func (b *Bridge) onGatewayComplete() error {
	b.log().Info("gateway found",
		"response_topic", b.gateway.ResponseTopic,
		"version", b.gateway.Version,
	)

	qos := b.cfg.QoS
	if err := b.mqtt.Subscribe(b.gateway.ResponseTopic, qos, b.handleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.gateway.ResponseTopic, err)
	}
	endpoints := b.cfg.Scheme.EndpointWildcard()
	if err := b.mqtt.Subscribe(endpoints, qos, b.handleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", endpoints, err)
	}
	b.gatewayReady = true

	clients := b.cfg.Scheme.ClientsWildcard()
	if err := b.mqtt.Unsubscribe(clients); err != nil {
		b.log().Warn("failed to unsubscribe gateway search", "topic", clients, "error", err)
	}

	var errs []error
	for _, id := range b.nodes.NodeIDs() {
		node, _ := b.nodes.Node(id)
		if err := b.startNode(node); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bridge) onNodeStatus(addr zwave.Address, payload []byte) error {
	p, err := zwave.DecodeNodeStatus(payload)
	if err != nil {
		return fmt.Errorf("node %d status: %w", addr.NodeID, err)
	}

	node, ok := b.nodes.Node(addr.NodeID)
	if !ok {
		b.log().Debug("status for untracked node", "node_id", addr.NodeID)
		return nil
	}

	wasComplete := node.IsComplete()
	if err := b.nodes.UpdateNodeStatus(addr.NodeID, p.Value, p.Status); err != nil {
		return err
	}

	switch {
	case node.IsComplete() && !wasComplete:
		b.log().Info("node complete", "node_id", node.ID, "status", p.Status)
		return b.syncNode(node)
	case wasComplete && !node.Alive:
		b.log().Warn("node no longer alive", "node_id", node.ID, "status", p.Status)
	}
	return nil
}

func (b *Bridge) onEndpointAttribute(addr zwave.Address, payload []byte) error {
	value, err := zwave.DecodeIntValue(payload)
	if err != nil {
		return fmt.Errorf("node %d endpoint %d %s: %w", addr.NodeID, addr.EndpointID, addr.Attribute, err)
	}

	res := b.nodes.UpdateEndpoint(addr.NodeID, addr.EndpointID, addr.Attribute, value)
	if res.NodeCreated {
		b.log().Info("node discovered", "node_id", addr.NodeID)
	}
	if res.EndpointCreated {
		b.log().Info("endpoint discovered", "node_id", addr.NodeID, "endpoint_id", addr.EndpointID)
	}

	node, _ := b.nodes.Node(addr.NodeID)

	var errs []error
	if err := b.subscribeNodeStatus(node.ID); err != nil {
		errs = append(errs, err)
	}
	if err := b.startNode(node); err != nil {
		errs = append(errs, err)
	}
	if err := b.syncEndpoint(node, res.Endpoint, node.Tones.Clone()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (b *Bridge) subscribeNodeStatus(nodeID int) error {
	if b.statusSubs[nodeID] {
		return nil
	}
	topic := b.cfg.Scheme.NodeStatusTopic(nodeID)
	if err := b.mqtt.Subscribe(topic, b.cfg.QoS, b.handleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	b.statusSubs[nodeID] = true
	return nil
}
