// Package influxdb writes sound switch history to InfluxDB 2.x.
//
// The bridge records a soundswitch_device point every time a host device is
// synchronised from the bus, and a soundswitch_discovery point when a node
// finishes tone discovery. Both are optional: with the influxdb section
// disabled, Connect returns ErrDisabled and the bridge runs without history.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without history
//	}
//	client.WriteDeviceState(influxdb.DeviceSample{Handle: 3, Attribute: "toneId", Level: 20})
package influxdb
