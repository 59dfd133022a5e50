package mqtt

import "fmt"

// TopicPrefix is the root of every Surprise topic.
const TopicPrefix = "surprise"

// Topics provides builders for Surprise MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Status("state")
//	// Returns: "surprise/status/state"
type Topics struct{}

// Status returns the retained topic mirroring one status field.
//
// Example: surprise/status/locked
func (Topics) Status(field string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefix, field)
}

// Timer returns the topic carrying the rendered timer line.
func (Topics) Timer() string {
	return TopicPrefix + "/status/timer"
}

// Action returns the topic on which operator actions are accepted.
// Payload is the bare action name, e.g. "activate".
func (Topics) Action() string {
	return TopicPrefix + "/command/action"
}

// SystemStatus returns the topic for service online/offline status (LWT).
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllStatus returns a wildcard subscription for every status field.
func (Topics) AllStatus() string {
	return TopicPrefix + "/status/#"
}
