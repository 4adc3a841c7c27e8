package soundswitch

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-soundswitch/internal/device"
	"github.com/nerrad567/gray-logic-soundswitch/internal/zwave"
)

// HandleUserCommand translates a host command for handle into a bus value
// and publishes it to the endpoint attribute's set topic. ActionOff always
// writes 0.
func (b *Bridge) HandleUserCommand(_ context.Context, handle int, cmd device.Command) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, err := b.alloc.ByHandle(handle)
	if err != nil {
		return err
	}

	err = b.sendUserCommand(entry.NodeID, entry.EndpointID, entry.Attribute, cmd)
	b.metrics.commandHandled(entry.Attribute, err)
	if err != nil {
		return fmt.Errorf("handle %d: %w", handle, err)
	}
	return nil
}

func (b *Bridge) sendUserCommand(nodeID, endpointID int, attr string, cmd device.Command) error {
	node, ok := b.nodes.Node(nodeID)
	if !ok {
		return fmt.Errorf("%w: %d", zwave.ErrNodeNotFound, nodeID)
	}
	if _, err := b.nodes.Endpoint(nodeID, endpointID); err != nil {
		return err
	}

	value := 0
	if cmd.Action != device.ActionOff {
		if attr == zwave.AttributeTone && !node.ToneDiscoveryComplete() {
			return fmt.Errorf("%w: %d", ErrNodeNotReady, nodeID)
		}
		v, err := zwave.CommandValue(attr, cmd.Level, node.ToneCount)
		if err != nil {
			return err
		}
		value = v
	}

	topic := b.cfg.Scheme.EndpointSetTopic(nodeID, endpointID, attr)
	if err := b.mqtt.Publish(topic, zwave.FormatSetValue(value), b.cfg.QoS, false); err != nil {
		b.metrics.publishFailed()
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}

	b.log().Info("command sent",
		"node_id", nodeID, "endpoint_id", endpointID, "attribute", attr,
		"action", cmd.Action, "level", cmd.Level, "value", value)
	return nil
}

// HandleDeviceRemoved releases the handle of a device the host deleted.
// Unmapped handles are ignored.
func (b *Bridge) HandleDeviceRemoved(ctx context.Context, handle int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, err := b.alloc.Release(ctx, handle)
	if err != nil {
		return fmt.Errorf("releasing handle %d: %w", handle, err)
	}
	if entry == nil {
		b.log().Debug("removed device had no mapping", "handle", handle)
		return nil
	}
	delete(b.pushed, entry.ExternalID)

	b.log().Info("device removed", "handle", handle, "external_id", entry.ExternalID)
	if b.events != nil {
		b.events.Broadcast(EventDeviceRemoved, DeviceRemovedEvent{Handle: handle, ExternalID: entry.ExternalID})
	}
	return nil
}
