// Package stream decodes the output of a consultation engine CLI into typed
// events. Engines emit newline-delimited JSON records interleaved with free
// text; a corrupt line is reported as an Unknown event and never aborts a
// scan.
package stream

// Kind discriminates the event variants produced by the decoder.
type Kind string

// Event kinds recognised in engine output.
const (
	// KindAgentMessage is a structured record carrying the engine's answer text.
	KindAgentMessage Kind = "agent_message"

	// KindTokenCount is a structured record carrying cumulative token usage.
	KindTokenCount Kind = "token_count"

	// KindUnknown is a line matching the record marker that did not decode,
	// or decoded to a record type the parser does not handle.
	KindUnknown Kind = "unknown"
)

// Event is one decoded line of engine output. Exactly one payload field is
// meaningful, selected by Kind. Raw always holds the original line.
type Event struct {
	Kind  Kind
	Text  string // agent message payload, set when Kind == KindAgentMessage
	Usage Usage  // usage payload, set when Kind == KindTokenCount
	Raw   string
}

// Usage holds token counts for one invocation. Exact is true only when the
// counts come from a terminal token_count record; estimated counts derived
// from character-length heuristics carry Exact == false.
type Usage struct {
	InputTokens  int  `json:"input_tokens"`
	OutputTokens int  `json:"output_tokens"`
	TotalTokens  int  `json:"total_tokens"`
	Exact        bool `json:"exact"`
}

// Extraction is the result of parsing one invocation's raw output.
type Extraction struct {
	// Text is the engine's answer: the first agent_message record, or the
	// delimiter-extracted section, or the trimmed raw output as a last resort.
	Text string

	// Usage is exact when a token_count record was found, estimated otherwise.
	Usage Usage
}
