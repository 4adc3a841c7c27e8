package mqtt

import "fmt"

// Topic prefixes for messages the bridge itself owns. Bus topics belonging to
// the Z-Wave gateway are built by the zwave package.
const (
	// TopicPrefix is the root of every topic published by the bridge.
	TopicPrefix = "soundswitch"

	// TopicPrefixSystem carries process lifecycle messages (LWT, online).
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics builds the bridge's own MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.DeviceState(3) // "soundswitch/device/3/state"
type Topics struct{}

// SystemStatus is the retained online/offline topic, also used for the LWT.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// Health is the retained bridge health topic.
func (Topics) Health() string {
	return TopicPrefix + "/health"
}

// DeviceState is the retained state topic for the host device with handle.
func (Topics) DeviceState(handle int) string {
	return fmt.Sprintf("%s/device/%d/state", TopicPrefix, handle)
}

// AllDeviceStates matches every DeviceState topic.
func (Topics) AllDeviceStates() string {
	return TopicPrefix + "/device/+/state"
}

// AllTopics matches everything the bridge publishes.
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
