package claude

import (
	"bufio"
	"encoding/json"
	"io"
)

// defaultBufferSize bounds a single line of stream-json output.
const defaultBufferSize = 10 * 1024 * 1024

// Parser parses streaming JSON output from the Claude CLI.
//
// The channel returned by Parse is closed at EOF or on a read error.
// Malformed lines are skipped.
type Parser interface {
	Parse(reader io.Reader) <-chan Event
}

// DefaultParser implements [Parser] for Claude's stream-json format.
type DefaultParser struct {
	// BufferSize is the maximum size in bytes of one JSON line. Defaults to
	// 10MB when <= 0.
	BufferSize int
}

// NewParser creates a [DefaultParser] with a 10MB line limit.
func NewParser() *DefaultParser {
	return &DefaultParser{BufferSize: defaultBufferSize}
}

// Parse reads lines from reader in a goroutine and emits one [Event] per
// parseable line.
func (p *DefaultParser) Parse(reader io.Reader) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		bufSize := p.BufferSize
		if bufSize <= 0 {
			bufSize = defaultBufferSize
		}
		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 0, 64*1024), bufSize)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var raw StreamEvent
			if err := json.Unmarshal(line, &raw); err != nil {
				continue
			}
			events <- NewEventFromStream(&raw)
		}
	}()

	return events
}

// ParseSingle parses one stream-json line. Unlike [Parser.Parse] it reports
// malformed input.
func ParseSingle(line string) (Event, error) {
	var raw StreamEvent
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Event{}, err
	}
	return NewEventFromStream(&raw), nil
}
