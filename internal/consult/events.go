package consult

// EventInvocation is the event type emitted after every engine run,
// successful or not.
const EventInvocation = "invocation"

// Event is one entry on the live invocation feed. TS is the completion
// time in RFC3339 UTC.
type Event struct {
	Type        string `json:"type"`
	Engine      string `json:"engine"`
	Tool        string `json:"tool"`
	Outcome     string `json:"outcome"`
	DurationMS  int64  `json:"duration_ms"`
	TotalTokens int    `json:"total_tokens"`
	ExactUsage  bool   `json:"exact_usage"`
	TS          string `json:"ts"`
}

// Broadcaster delivers events to live subscribers. Implementations must not
// block the caller; a slow subscriber is the broadcaster's problem.
type Broadcaster interface {
	Broadcast(Event)
}
