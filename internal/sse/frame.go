// Package sse parses Server-Sent-Events byte streams and re-interprets them
// into the canonical UI event stream via operator-configured mapping rules.
package sse

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// Frame is one event/data block of an SSE stream, delimited by a blank line.
type Frame struct {
	// Event is the explicit event: line value, or empty when none was sent.
	Event string

	// Data is the payload: all data: lines of the block joined by newlines.
	Data string
}

// EventType returns the frame's declared event type, defaulting to "message"
// per the SSE specification when no event: line is present.
func (f Frame) EventType() string {
	if f.Event == "" {
		return "message"
	}
	return f.Event
}

// Scanner reads complete SSE frames from a byte stream. It is pull-based: it
// reads from the underlying reader only when asked for the next frame, so
// upstream network backpressure propagates to the consumer. A trailing
// partial frame is buffered internally until the rest arrives.
type Scanner struct {
	s *bufio.Scanner
}

// NewScanner wraps r in a frame scanner.
func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	// Frames can carry large model outputs.
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	s.Split(splitFrames)
	return &Scanner{s: s}
}

// Next returns the next complete frame. It returns io.EOF when the stream
// ends cleanly and the underlying read error otherwise. Blocks consisting
// only of comments or unknown fields yield empty frames; callers skip those.
func (sc *Scanner) Next() (Frame, error) {
	for sc.s.Scan() {
		frame, ok := parseFrame(sc.s.Bytes())
		if !ok {
			continue
		}
		return frame, nil
	}
	if err := sc.s.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}

// splitFrames tokenizes the stream into blocks separated by a blank line,
// accepting both \n\n and \r\n\r\n delimiters.
func splitFrames(data []byte, atEOF bool) (int, []byte, error) {
	lf := bytes.Index(data, []byte("\n\n"))
	crlf := bytes.Index(data, []byte("\r\n\r\n"))

	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return crlf + 4, data[:crlf], nil
	case lf >= 0:
		return lf + 2, data[:lf], nil
	case atEOF && len(data) > 0:
		return len(data), data, nil
	case atEOF:
		return 0, nil, io.EOF
	}
	// Partial frame: wait for more bytes.
	return 0, nil, nil
}

// parseFrame extracts the event and data fields from a raw block. It returns
// ok=false for blocks carrying neither field (comments, retry hints).
func parseFrame(block []byte) (Frame, bool) {
	var frame Frame
	var data []string
	seen := false

	for _, line := range strings.Split(string(block), "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, "event:"):
			frame.Event = strings.TrimSpace(line[len("event:"):])
			seen = true
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(line[len("data:"):], " "))
			seen = true
		}
	}

	frame.Data = strings.Join(data, "\n")
	return frame, seen
}
