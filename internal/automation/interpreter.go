package automation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// finalNodeMarker identifies the workflow stage whose item event carries
// the authoritative final answer. Matched case-insensitively against
// metadata.nodeName.
const finalNodeMarker = "respond to webhook"

// Stream event types.
const (
	EventBegin = "begin"
	EventItem  = "item"
	EventEnd   = "end"
	EventError = "error"
)

// EventMetadata describes the workflow stage that produced an event.
type EventMetadata struct {
	NodeID    string  `json:"nodeId,omitempty"`
	NodeName  string  `json:"nodeName,omitempty"`
	ItemIndex int     `json:"itemIndex,omitempty"`
	RunIndex  int     `json:"runIndex,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"`
}

// StreamEvent is one decoded line of the automation event stream. Only
// item and error events carry meaningful content; Content stays nil when
// the field is absent or not a string.
type StreamEvent struct {
	Type     string         `json:"type"`
	Content  any            `json:"content,omitempty"`
	Metadata *EventMetadata `json:"metadata,omitempty"`
}

// ContentString returns the event content when it is a string.
func (e *StreamEvent) ContentString() (string, bool) {
	s, ok := e.Content.(string)
	return s, ok
}

// ParseLine decodes one framed line into a stream event. Blank lines
// yield (nil, nil); malformed JSON yields an error the caller should log
// and skip, never treating it as fatal for the stream.
func ParseLine(line string) (*StreamEvent, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	var ev StreamEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return nil, fmt.Errorf("malformed stream line: %w", err)
	}
	return &ev, nil
}

// ErrEmptyStream reports a stream that drained without producing any
// content or terminal payload.
var ErrEmptyStream = errors.New("stream ended without a message")

// StreamError is an explicit error event captured from the stream. It
// takes precedence over any content at finalization.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return e.Message
}

// Interpreter folds stream events into the running assistant reply. It
// has no persistence access; callers observe progress through Content
// and the Apply return value.
type Interpreter struct {
	content   strings.Builder
	final     *Payload
	streamErr string
	logger    *slog.Logger
}

// NewInterpreter returns an interpreter logging skipped input through
// logger.
func NewInterpreter(logger *slog.Logger) *Interpreter {
	return &Interpreter{logger: logger}
}

// Apply folds one event into the running state and reports whether the
// visible content changed.
func (it *Interpreter) Apply(ev *StreamEvent) bool {
	if ev == nil {
		return false
	}

	if ev.Type == EventError {
		msg, ok := ev.ContentString()
		if !ok || strings.TrimSpace(msg) == "" {
			msg = "the automation workflow reported an error"
		}
		it.streamErr = msg
		return false
	}

	if ev.Type != EventItem {
		return false
	}
	content, ok := ev.ContentString()
	if !ok {
		return false
	}

	if ev.Metadata != nil && strings.Contains(strings.ToLower(ev.Metadata.NodeName), finalNodeMarker) {
		payload := decodeFinalContent(content)
		if payload == nil {
			it.logger.Warn("terminal event carried an invalid payload, keeping streamed content",
				slog.String("node", ev.Metadata.NodeName))
			return false
		}
		it.final = payload
		return true
	}

	// Once the authoritative payload has replaced the running content,
	// trailing trace tokens no longer change what the caller sees.
	// Empty tokens don't change it either.
	if it.final != nil || content == "" {
		return false
	}

	it.content.WriteString(content)
	return true
}

// decodeFinalContent interprets the terminal event's content: a JSON
// document when the responder stage emits structured output, otherwise
// the raw string itself.
func decodeFinalContent(content string) *Payload {
	var raw any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		raw = content
	}
	return Normalize(raw)
}

// Content returns the reply as currently visible: the terminal payload's
// text once one arrived, else the concatenated incremental tokens.
func (it *Interpreter) Content() string {
	if it.final != nil {
		return it.final.ChatResponse
	}
	return it.content.String()
}

// Finalize resolves the stream outcome after all lines have drained. A
// captured error event wins over everything; then a terminal payload;
// then a payload synthesized from the accumulated tokens. An empty
// stream is ErrEmptyStream.
func (it *Interpreter) Finalize() (*Payload, error) {
	if it.streamErr != "" {
		return nil, &StreamError{Message: it.streamErr}
	}
	if it.final != nil {
		return it.final, nil
	}
	if content := it.content.String(); strings.TrimSpace(content) != "" {
		return &Payload{ChatResponse: content}, nil
	}
	return nil, ErrEmptyStream
}
