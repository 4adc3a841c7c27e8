package soundswitch

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-soundswitch/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-soundswitch/internal/zwave"
)

// startNode sends getToneCount for an unstarted node once the gateway is
// known. On a failed publish the node is reset and retried on its next
// endpoint message.
func (b *Bridge) startNode(node *zwave.Node) error {
	if !b.gatewayReady || !node.Start() {
		return nil
	}
	if _, ok := b.discoveryStart[node.ID]; !ok {
		b.discoveryStart[node.ID] = time.Now()
	}

	payload, err := b.cfg.Scheme.ToneCountRequest(node.ID)
	if err != nil {
		node.Reset()
		return err
	}
	if err := b.sendRequest(zwave.CommandGetToneCount, payload); err != nil {
		node.Reset()
		return fmt.Errorf("node %d: %w", node.ID, err)
	}

	b.log().Info("tone discovery started", "node_id", node.ID)
	return nil
}

func (b *Bridge) requestToneInfo(node *zwave.Node, toneID int) error {
	payload, err := b.cfg.Scheme.ToneInfoRequest(node.ID, toneID)
	if err != nil {
		node.Reset()
		return err
	}
	if err := b.sendRequest(zwave.CommandGetToneInfo, payload); err != nil {
		node.Reset()
		return fmt.Errorf("node %d tone %d: %w", node.ID, toneID, err)
	}

	b.log().Debug("tone info requested", "node_id", node.ID, "tone_id", toneID)
	return nil
}

func (b *Bridge) sendRequest(command string, payload []byte) error {
	if b.gateway.CommandTopic == "" {
		return ErrGatewayNotReady
	}
	if err := b.mqtt.Publish(b.gateway.CommandTopic, payload, b.cfg.QoS, false); err != nil {
		b.metrics.publishFailed()
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, command, err)
	}
	b.metrics.requestSent(command)
	return nil
}

// onCommandResult routes a sendCommand result through the results table.
// Results for other command classes share the response topic and are dropped.
func (b *Bridge) onCommandResult(payload []byte) error {
	res, err := zwave.DecodeCommandResult(payload)
	if err != nil {
		return fmt.Errorf("command result: %w", err)
	}
	if res.Target.CommandClass != b.cfg.Scheme.CommandClass {
		b.log().Debug("ignoring result for other command class",
			"command", res.Command, "command_class", res.Target.CommandClass)
		return nil
	}

	handler, ok := b.results[res.Command]
	if !ok {
		b.log().Warn("unrecognised command result", "command", res.Command, "node_id", res.Target.NodeID)
		return nil
	}
	b.metrics.resultReceived(res.Command, res.Success)

	node, ok := b.nodes.Node(res.Target.NodeID)
	if !ok {
		return fmt.Errorf("%s result: %w: %d", res.Command, zwave.ErrNodeNotFound, res.Target.NodeID)
	}

	if !res.Success {
		b.log().Warn("command failed",
			"node_id", node.ID, "command", res.Command, "message", res.Message)
		if !node.ToneDiscoveryComplete() {
			node.Reset()
		}
		return nil
	}
	return handler(node, res)
}

func (b *Bridge) onToneCount(node *zwave.Node, res zwave.CommandResult) error {
	count, err := res.IntResult()
	if err != nil {
		return fmt.Errorf("node %d tone count: %w", node.ID, err)
	}
	if err := zwave.ValidToneCount(count); err != nil {
		if !node.ToneDiscoveryComplete() {
			node.Reset()
		}
		return fmt.Errorf("node %d: %w", node.ID, err)
	}

	wasReady := node.ToneDiscoveryComplete()
	next, request := node.ApplyToneCount(count)
	b.log().Debug("tone count received", "node_id", node.ID, "count", count)
	if request {
		return b.requestToneInfo(node, next)
	}
	return b.discoveryProgressed(node, wasReady)
}

func (b *Bridge) onToneInfo(node *zwave.Node, res zwave.CommandResult) error {
	toneID, err := res.IntArg(0)
	if err != nil {
		return fmt.Errorf("node %d tone info: %w", node.ID, err)
	}
	info, err := res.ToneInfoResult()
	if err != nil {
		return fmt.Errorf("node %d tone %d: %w", node.ID, toneID, err)
	}

	wasReady := node.ToneDiscoveryComplete()
	next, request := node.ApplyToneInfo(toneID, info.Name, info.Duration)
	if request {
		return b.requestToneInfo(node, next)
	}
	return b.discoveryProgressed(node, wasReady)
}

// discoveryProgressed syncs the node's endpoints once its catalog is final.
func (b *Bridge) discoveryProgressed(node *zwave.Node, wasReady bool) error {
	if !node.ToneDiscoveryComplete() {
		return nil
	}
	if !wasReady {
		b.nodeReady(node)
	}
	return b.syncNode(node)
}

func (b *Bridge) nodeReady(node *zwave.Node) {
	var elapsed time.Duration
	if started, ok := b.discoveryStart[node.ID]; ok {
		elapsed = time.Since(started)
		delete(b.discoveryStart, node.ID)
	}

	b.log().Info("tone discovery complete",
		"node_id", node.ID, "tones", node.ToneCount, "duration", elapsed)

	if b.points != nil {
		b.points.WriteDiscovery(influxdb.DiscoverySample{
			NodeID:    node.ID,
			ToneCount: node.ToneCount,
			Duration:  elapsed,
		})
	}
	if b.events != nil {
		ev := NodeReadyEvent{NodeID: node.ID, ToneCount: node.ToneCount}
		for _, id := range node.Tones.IDs() {
			ev.Tones = append(ev.Tones, node.Tones[id])
		}
		b.events.Broadcast(EventNodeReady, ev)
	}
}
