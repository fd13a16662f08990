package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every FluxHaus topic.
const TopicPrefix = "fluxhaus"

// Topics builds FluxHaus topic names.
//
// Bridge traffic uses the flat scheme fluxhaus/{category}/{kind}/{device}:
//
//	topics := mqtt.Topics{}
//	topics.DeviceCommand("robot", "broombot") // fluxhaus/command/robot/broombot
//	topics.DeviceState("vehicle", "car")      // fluxhaus/state/vehicle/car
type Topics struct{}

// DeviceCommand carries commands from Core to a bridge.
func (Topics) DeviceCommand(kind, deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, kind, deviceID)
}

// DeviceState carries status reports from a bridge to Core.
func (Topics) DeviceState(kind, deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, kind, deviceID)
}

// DeviceRequest asks a bridge to re-query the device and report fresh state.
func (Topics) DeviceRequest(kind, deviceID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, kind, deviceID)
}

// AllDeviceStates matches every bridge state topic.
func (Topics) AllDeviceStates() string {
	return TopicPrefix + "/state/+/+"
}

// CoreSnapshot announces that a cached snapshot was refreshed.
func (Topics) CoreSnapshot(key string) string {
	return fmt.Sprintf("%s/core/snapshot/%s", TopicPrefix, key)
}

// CoreCommand announces command lifecycle transitions.
func (Topics) CoreCommand(device string) string {
	return fmt.Sprintf("%s/core/command/%s", TopicPrefix, device)
}

// SystemStatus carries Core's retained online/offline presence.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// ParseDeviceTopic splits fluxhaus/{category}/{kind}/{device} into its parts.
func ParseDeviceTopic(topic string) (category, kind, deviceID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix {
		return "", "", "", false
	}
	if parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return "", "", "", false
	}
	return parts[1], parts[2], parts[3], true
}
