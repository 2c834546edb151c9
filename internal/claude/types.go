// Package claude runs one-shot Claude CLI sessions and parses their output.
//
// The review pipeline uses it when the direct analysis strategy is configured
// with the claude-cli provider. A session is spawned with --print and
// stream-json output, and each line of output becomes an [Event].
//
// Key types:
//   - [Executor]: Interface for running a prompt through the Claude CLI
//   - [Parser]: Interface for parsing streaming JSON output
//   - [Event]: Parsed event with convenience methods for common checks
//   - [Transcript]: Collects the answer text from a stream of events
//
// For testing, use [MockExecutor] which implements [Executor] without spawning
// real processes.
package claude

import "strings"

// StreamEvent is one raw line of Claude's stream-json output.
//
// Most callers should work with [Event] instead. StreamEvent is available via
// [Event.Raw] when the parsed fields are not enough.
type StreamEvent struct {
	Type    string          `json:"type"`
	Subtype string          `json:"subtype,omitempty"`
	Message *MessageContent `json:"message,omitempty"`

	// Result and IsError are set on the final result event.
	Result  string `json:"result,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// MessageContent is the message body of an assistant event.
type MessageContent struct {
	Content []ContentBlock `json:"content,omitempty"`
}

// ContentBlock is a single block of an assistant message. Text blocks carry
// Text; tool_use blocks carry Name.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Name string `json:"name,omitempty"`
}

// EventType is the type of a streaming event.
type EventType string

const (
	// EventTypeSystem is session bookkeeping, such as the init event.
	EventTypeSystem EventType = "system"

	// EventTypeAssistant is model output: text or a tool invocation.
	EventTypeAssistant EventType = "assistant"

	// EventTypeUser carries tool results back to the model.
	EventTypeUser EventType = "user"

	// EventTypeResult ends the session.
	EventTypeResult EventType = "result"
)

// SubtypeInit is the subtype of the session start event.
const SubtypeInit = "init"

// Event is a parsed streaming event.
type Event struct {
	// Raw is the original [StreamEvent].
	Raw *StreamEvent

	Type    EventType
	Subtype string

	// Text is the text of an assistant text block.
	Text string

	// ToolName is set when the assistant invoked a tool.
	ToolName string

	// Result is the final answer reported by the result event.
	Result string

	// IsError is set when the result event reports a failed session.
	IsError bool

	SessionStarted  bool
	SessionComplete bool
}

// NewEventFromStream creates an [Event] from a raw [StreamEvent].
func NewEventFromStream(raw *StreamEvent) Event {
	e := Event{
		Raw:     raw,
		Type:    EventType(raw.Type),
		Subtype: raw.Subtype,
	}

	switch e.Type {
	case EventTypeSystem:
		e.SessionStarted = raw.Subtype == SubtypeInit

	case EventTypeAssistant:
		if raw.Message == nil {
			break
		}
		var text strings.Builder
		for _, block := range raw.Message.Content {
			switch block.Type {
			case "text":
				text.WriteString(block.Text)
			case "tool_use":
				e.ToolName = block.Name
			}
		}
		e.Text = text.String()

	case EventTypeResult:
		e.SessionComplete = true
		e.Result = raw.Result
		e.IsError = raw.IsError
	}

	return e
}

// IsText reports whether the event carries assistant text.
func (e Event) IsText() bool {
	return e.Type == EventTypeAssistant && e.Text != ""
}

// IsToolUse reports whether the event is a tool invocation.
func (e Event) IsToolUse() bool {
	return e.Type == EventTypeAssistant && e.ToolName != ""
}

// Transcript collects the answer of a session from its events. Use
// [Transcript.Handle] as the [EventHandler] passed to an [Executor].
type Transcript struct {
	text    strings.Builder
	result  string
	isError bool
}

// Handle records e.
func (t *Transcript) Handle(e Event) {
	switch {
	case e.IsText():
		t.text.WriteString(e.Text)
	case e.SessionComplete:
		t.result = e.Result
		t.isError = e.IsError
	}
}

// Text returns the session answer: the result event's text when present,
// otherwise the concatenated assistant text.
func (t *Transcript) Text() string {
	if t.result != "" {
		return t.result
	}
	return t.text.String()
}

// Failed reports whether the result event flagged the session as an error.
func (t *Transcript) Failed() bool {
	return t.isError
}
