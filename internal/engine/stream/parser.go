package stream

import (
	"bufio"
	"encoding/json"
	"strings"
)

// recordMarker opens every structured engine record. A line is a decode
// candidate only when it starts with the marker; everything else passes
// through as KindUnknown without any JSON work.
const recordMarker = `{"id"`

// maxLineBytes bounds a single scanned line. Engine records can be large
// (a full answer arrives as one JSON line), and the default bufio.Scanner
// limit of 64 KiB is too small.
const maxLineBytes = 1 * 1024 * 1024 // 1 MB

// answerDelimiter is the header line engines print immediately before the
// final answer when structured output is unavailable. usageFooterPrefix
// opens the usage summary that trails the answer.
const (
	answerDelimiter   = "codex"
	usageFooterPrefix = "tokens used"
)

// Wire shapes for structured records:
//
//	{"id": ..., "msg": {"type": "agent_message", "message": "..."}}
//	{"id": ..., "msg": {"type": "token_count", "last_token_usage": {"input": N, "output": N, "total": N}}}
type rawRecord struct {
	Msg rawMsg `json:"msg"`
}

type rawMsg struct {
	Type           string    `json:"type"`
	Message        string    `json:"message"`
	LastTokenUsage *rawUsage `json:"last_token_usage"`
}

type rawUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// Decode decodes a single output line into an Event. Lines that do not open
// with the record marker, marker lines that fail to unmarshal, and records
// of an unhandled type all come back as KindUnknown.
func Decode(line string) Event {
	ev := Event{Kind: KindUnknown, Raw: line}

	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, recordMarker) {
		return ev
	}

	var rec rawRecord
	if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
		return ev
	}

	switch rec.Msg.Type {
	case "agent_message":
		ev.Kind = KindAgentMessage
		ev.Text = rec.Msg.Message

	case "token_count":
		if rec.Msg.LastTokenUsage == nil {
			return ev
		}
		ev.Kind = KindTokenCount
		ev.Usage = Usage{
			InputTokens:  rec.Msg.LastTokenUsage.Input,
			OutputTokens: rec.Msg.LastTokenUsage.Output,
			TotalTokens:  rec.Msg.LastTokenUsage.Total,
			Exact:        true,
		}
	}

	return ev
}

// Events scans raw output into the full event sequence, one event per
// non-blank line. Decode failures surface as KindUnknown events; they never
// stop the scan.
func Events(raw string) []Event {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var events []Event
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		events = append(events, Decode(line))
	}
	// A line above maxLineBytes stops the scan early; callers degrade to the
	// textual fallbacks for anything unread.
	return events
}

// Parse extracts the answer text and token usage from one invocation's raw
// output using the generic token estimator. See ParseWithEstimator.
func Parse(rawOutput, originalInput string) Extraction {
	return ParseWithEstimator(rawOutput, originalInput, EstimateTokens)
}

// ParseWithEstimator extracts the answer text and token usage from raw
// engine output.
//
// Two independent passes run over the decoded events: a forward pass takes
// the first well-formed agent message (the canonical single response), and a
// backward pass takes the last well-formed token count (counts are
// cumulative, so the tail record carries the final totals).
//
// When no agent message decodes, the answer falls back to the
// delimiter-extracted section of the plain-text output, then to the trimmed
// raw output verbatim. When no token count decodes, usage is estimated
// independently for the original input and the extracted text and flagged
// Exact == false. Empty output parses to an empty extraction with zero usage.
func ParseWithEstimator(rawOutput, originalInput string, estimate Estimator) Extraction {
	if estimate == nil {
		estimate = EstimateTokens
	}

	trimmed := strings.TrimSpace(rawOutput)
	if trimmed == "" {
		return Extraction{}
	}

	events := Events(rawOutput)

	var ext Extraction
	var haveText bool

	for _, ev := range events {
		if ev.Kind == KindAgentMessage {
			ext.Text = ev.Text
			haveText = true
			break
		}
	}

	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == KindTokenCount {
			ext.Usage = events[i].Usage
			break
		}
	}

	if !haveText {
		if text, ok := extractDelimited(rawOutput); ok {
			ext.Text = text
		} else {
			ext.Text = trimmed
		}
	}

	if !ext.Usage.Exact {
		in := estimate(originalInput)
		out := estimate(ext.Text)
		ext.Usage = Usage{
			InputTokens:  in,
			OutputTokens: out,
			TotalTokens:  in + out,
		}
	}

	return ext
}

// extractDelimited recovers the answer from plain-text engine output: the
// lines between the last delimiter header and the usage footer. The last
// header wins because engines echo earlier headers in their preamble.
func extractDelimited(raw string) (string, bool) {
	lines := strings.Split(raw, "\n")

	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == answerDelimiter {
			start = i + 1
		}
	}
	if start < 0 || start >= len(lines) {
		return "", false
	}

	var kept []string
	for _, line := range lines[start:] {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), usageFooterPrefix) {
			break
		}
		kept = append(kept, line)
	}

	text := strings.TrimSpace(strings.Join(kept, "\n"))
	if text == "" {
		return "", false
	}
	return text, true
}
