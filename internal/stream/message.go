package stream

// Outbound message kinds.
const (
	KindConnected = "connected"
	KindEvent     = "event"
	KindHeartbeat = "heartbeat"
)

// ConnectedGreeting is the payload of the first message every subscriber receives.
const ConnectedGreeting = "stream connected"

// HeartbeatLayout formats heartbeat payloads as a local date-time without zone.
const HeartbeatLayout = "2006-01-02T15:04:05"

// Message is one named frame. Data is either a string, written raw by text
// transports, or a value that transports encode as JSON.
type Message struct {
	Name string `json:"name"`
	Data any    `json:"data"`
}
