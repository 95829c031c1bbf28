// Package emlx reads Apple Mail .emlx containers.
//
// An .emlx file starts with an ASCII byte count on its own line, followed by
// the RFC 5322 message and an XML property list trailer. Only the leading
// count line is removed here; the declared length is informational.
package emlx

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Frame describes the framing found at the start of a container.
type Frame struct {
	// HasLength is true when a leading byte-count line was found and removed.
	HasLength bool
	// Declared is the parsed byte count, or -1 when it did not parse.
	Declared int
	// Payload is the number of bytes that follow the count line.
	Payload int
}

// Mismatch reports whether the declared length disagrees with the payload.
// The trailing property list makes the payload longer than the declared
// message length in every well-formed container, so only a payload that is
// shorter than declared is treated as a mismatch.
func (f Frame) Mismatch() bool {
	if !f.HasLength || f.Declared < 0 {
		return false
	}
	return f.Payload < f.Declared
}

// Strip removes the leading byte-count line when the data starts with an
// ASCII digit. Data without a digit prefix, or without any line feed, is
// returned unchanged.
func Strip(raw []byte) []byte {
	body, _ := split(raw)
	return body
}

// Inspect reports the framing of raw without modifying it.
func Inspect(raw []byte) Frame {
	body, line := split(raw)
	if line == nil {
		return Frame{Declared: -1, Payload: len(body)}
	}
	declared, err := strconv.Atoi(string(bytes.TrimSpace(line)))
	if err != nil {
		declared = -1
	}
	return Frame{HasLength: true, Declared: declared, Payload: len(body)}
}

func split(raw []byte) (body, line []byte) {
	if len(raw) == 0 || raw[0] < '0' || raw[0] > '9' {
		return raw, nil
	}
	idx := bytes.IndexByte(raw, '\n')
	if idx < 0 {
		return raw, nil
	}
	return raw[idx+1:], raw[:idx]
}

// ReadFile reads a container from disk and returns the embedded message bytes.
func ReadFile(path string, logger *slog.Logger) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read emlx: %w", err)
	}

	frame := Inspect(raw)
	if frame.Mismatch() && logger != nil {
		logger.Debug("emlx length mismatch", "path", path, "declared", frame.Declared, "payload", frame.Payload)
	}

	return Strip(raw), nil
}
