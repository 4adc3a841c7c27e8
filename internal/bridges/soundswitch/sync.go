package soundswitch

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/nerrad567/gray-logic-soundswitch/internal/device"
	"github.com/nerrad567/gray-logic-soundswitch/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-soundswitch/internal/mapping"
	"github.com/nerrad567/gray-logic-soundswitch/internal/zwave"
)

// syncedAttributes are the endpoint attributes exposed as host devices.
var syncedAttributes = []string{zwave.AttributeVolume, zwave.AttributeTone}

func (b *Bridge) syncNode(node *zwave.Node) error {
	var errs []error
	for ep, tones := range b.nodes.NodeEndpoints(node.ID) {
		if err := b.syncEndpoint(node, ep, tones); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// syncEndpoint pushes both attributes of ep to the device registry once the
// endpoint and its node are complete.
func (b *Bridge) syncEndpoint(node *zwave.Node, ep zwave.Endpoint, tones zwave.ToneCatalog) error {
	if !node.IsComplete() || !ep.IsComplete() {
		return nil
	}

	var errs []error
	for _, attr := range syncedAttributes {
		if err := b.syncAttribute(node, ep, tones, attr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bridge) syncAttribute(node *zwave.Node, ep zwave.Endpoint, tones zwave.ToneCatalog, attr string) error {
	value, err := ep.Value(attr)
	if err != nil {
		return err
	}
	// The display scale follows the node's reported tone count; the catalog
	// also carries the two reserved tones.
	display, err := zwave.Translate(attr, value, node.ToneCount)
	if err != nil {
		return err
	}

	key := mapping.Key{NodeID: ep.NodeID, EndpointID: ep.EndpointID, Attribute: attr}
	id := key.ExternalID()

	handle, err := b.alloc.Allocate(b.ctx, key)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSyncFailed, id, err)
	}

	update := device.DeviceUpdate{
		Handle:     handle,
		ExternalID: id,
		Name:       deviceName(ep, attr),
		Kind:       kindOf(attr),
		Enabled:    display.Enabled,
		Level:      display.Level,
		NodeID:     ep.NodeID,
		EndpointID: ep.EndpointID,
	}
	if attr == zwave.AttributeTone {
		update.LevelNames = tones.LevelNames()
	}

	if last, ok := b.pushed[id]; ok && sameUpdate(last, update) {
		return nil
	}
	if err := b.devices.CreateOrUpdateDevice(b.ctx, update); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSyncFailed, id, err)
	}
	b.pushed[id] = update
	b.metrics.deviceSynced(attr)

	b.log().Debug("device synced",
		"node_id", ep.NodeID, "endpoint_id", ep.EndpointID, "attribute", attr,
		"handle", handle, "level", display.Level, "enabled", display.Enabled)

	b.recordState(update, attr, value)
	return nil
}

// recordState publishes the synced value to the retained state topic, the
// time-series store and the event hub. Failures here do not undo the sync.
func (b *Bridge) recordState(u device.DeviceUpdate, attr string, busValue int) {
	now := time.Now().UTC()
	state := DeviceState{
		Handle:     u.Handle,
		ExternalID: u.ExternalID,
		NodeID:     u.NodeID,
		EndpointID: u.EndpointID,
		Attribute:  attr,
		Enabled:    u.Enabled,
		Level:      u.Level,
		BusValue:   busValue,
		Timestamp:  now,
	}

	if payload, err := json.Marshal(state); err == nil {
		if err := b.mqtt.Publish(b.topics.DeviceState(u.Handle), payload, b.cfg.QoS, true); err != nil {
			b.metrics.publishFailed()
			b.log().Warn("failed to publish device state", "handle", u.Handle, "error", err)
		}
	}

	if b.points != nil {
		b.points.WriteDeviceState(influxdb.DeviceSample{
			Handle:    u.Handle,
			NodeID:    u.NodeID,
			Endpoint:  u.EndpointID,
			Attribute: attr,
			Enabled:   u.Enabled,
			Level:     u.Level,
			BusValue:  busValue,
			Time:      now,
		})
	}
	if b.events != nil {
		b.events.Broadcast(EventDeviceUpdated, state)
	}
}

func deviceName(ep zwave.Endpoint, attr string) string {
	return fmt.Sprintf("N%dE%d: %s", ep.NodeID, ep.EndpointID, kindOf(attr))
}

func kindOf(attr string) device.Kind {
	if attr == zwave.AttributeTone {
		return device.KindTone
	}
	return device.KindVolume
}

func sameUpdate(a, b device.DeviceUpdate) bool {
	return a.Handle == b.Handle &&
		a.ExternalID == b.ExternalID &&
		a.Name == b.Name &&
		a.Kind == b.Kind &&
		a.Enabled == b.Enabled &&
		a.Level == b.Level &&
		slices.Equal(a.LevelNames, b.LevelNames) &&
		a.NodeID == b.NodeID &&
		a.EndpointID == b.EndpointID
}
