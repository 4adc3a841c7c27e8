// Package mqtt is the bridge's connection to the MQTT broker shared with the
// Z-Wave JS gateway.
//
// It wraps paho.mqtt.golang and adds:
//   - a retained online/offline status with a Last Will on soundswitch/system/status
//   - subscription tracking, so every subscription is restored after a reconnect
//   - handler panic recovery and error logging
//   - input validation for topics, QoS and payload size
//
// Paho delivers messages from its router goroutine. The client disables
// ordered delivery so a handler may publish and wait for the acknowledgement
// without stalling the router; callers that need serial processing (the
// sound switch bridge does) take their own lock.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("zwave/_CLIENTS/#", 1,
//	    func(topic string, payload []byte) error {
//	        return gateway.Observe(topic, payload)
//	    })
package mqtt
