package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementDevice    = "soundswitch_device"
	MeasurementDiscovery = "soundswitch_discovery"
)

// DeviceSample is one synchronised host device value.
type DeviceSample struct {
	Handle    int
	NodeID    int
	Endpoint  int
	Attribute string
	Enabled   bool
	Level     int
	BusValue  int
	Time      time.Time
}

// DiscoverySample records a node finishing tone discovery.
type DiscoverySample struct {
	NodeID    int
	ToneCount int
	Duration  time.Duration
	Time      time.Time
}

func devicePoint(s DeviceSample) *write.Point {
	return write.NewPoint(
		MeasurementDevice,
		map[string]string{
			"handle":    strconv.Itoa(s.Handle),
			"node_id":   strconv.Itoa(s.NodeID),
			"endpoint":  strconv.Itoa(s.Endpoint),
			"attribute": s.Attribute,
		},
		map[string]any{
			"enabled":   s.Enabled,
			"level":     s.Level,
			"bus_value": s.BusValue,
		},
		timestampOrNow(s.Time),
	)
}

func discoveryPoint(s DiscoverySample) *write.Point {
	return write.NewPoint(
		MeasurementDiscovery,
		map[string]string{
			"node_id": strconv.Itoa(s.NodeID),
		},
		map[string]any{
			"tone_count":       s.ToneCount,
			"duration_seconds": s.Duration.Seconds(),
		},
		timestampOrNow(s.Time),
	)
}

func timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

// WriteDeviceState queues a device sample.
func (c *Client) WriteDeviceState(s DeviceSample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(devicePoint(s))
}

// WriteDiscovery queues a discovery sample.
func (c *Client) WriteDiscovery(s DiscoverySample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(discoveryPoint(s))
}

// WritePoint queues an arbitrary point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
