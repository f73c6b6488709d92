package realtime

// Policy is the delivery policy applied to an inbound signaling event.
type Policy int

const (
	// PolicyDrop ignores the event.
	PolicyDrop Policy = iota
	// PolicyOthers delivers to every connected peer except the originator.
	PolicyOthers
	// PolicyEveryone delivers to every connected peer including the originator.
	PolicyEveryone
)

func (p Policy) String() string {
	switch p {
	case PolicyOthers:
		return "others"
	case PolicyEveryone:
		return "everyone"
	default:
		return "drop"
	}
}

// Call setup and WebRTC negotiation events are point-to-point in intent and must
// not echo back to the sender. Persisted-state notifications must also reach the
// sender's other open sessions.
var routes = map[string]Policy{
	"calling":       PolicyOthers,
	"ringing":       PolicyOthers,
	"accepting":     PolicyOthers,
	"declined":      PolicyOthers,
	"receiver-busy": PolicyOthers,
	"change-event":  PolicyOthers,
	"offer":         PolicyOthers,
	"answer":        PolicyOthers,
	"ice-candidate": PolicyOthers,

	"recording":          PolicyEveryone,
	"recording-save":     PolicyEveryone,
	"recording-delete":   PolicyEveryone,
	"one-to-one-message": PolicyEveryone,
	"one-to-one-delete":  PolicyEveryone,
	"one-to-one-edited":  PolicyEveryone,
	"message-read":       PolicyEveryone,
}

// PolicyFor returns the delivery policy for an event name.
func PolicyFor(event string) Policy {
	return routes[event]
}
