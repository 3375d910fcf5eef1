package protocol

import (
	"bytes"
	"strings"
)

// LineFramer splits a raw inbound byte stream into discrete protocol lines.
// The transport may deliver several logical lines in a single read, or split
// one logical line across two reads; the framer handles both by scanning for
// the '\n' delimiter and buffering any trailing fragment until the next Push.
//
// A LineFramer is not safe for concurrent use; it is owned by the single
// goroutine draining the transport.
type LineFramer struct {
	frag []byte
}

// Push appends chunk to any buffered fragment and returns every complete
// line found, in arrival order. Lines are trimmed of surrounding whitespace
// (including the '\r' a telnet-style peer may send before '\n'); lines that
// are empty after trimming are dropped. Bytes after the last delimiter are
// retained for the next call.
//
// Parameters:
//   - chunk: Raw bytes as delivered by the transport; not modified
//
// Returns:
//   - The complete, trimmed, non-empty lines contained in the buffered
//     fragment plus chunk, possibly none
func (f *LineFramer) Push(chunk []byte) []string {
	data := chunk
	if len(f.frag) > 0 {
		data = append(f.frag, chunk...)
	}

	var lines []string
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}

		line := strings.TrimSpace(string(data[:i]))
		data = data[i+1:]
		if line != "" {
			lines = append(lines, line)
		}
	}

	if len(data) > 0 {
		f.frag = append(f.frag[:0:0], data...)
	} else {
		f.frag = nil
	}

	return lines
}

// Pending reports whether a partial line is buffered awaiting its delimiter.
func (f *LineFramer) Pending() bool {
	return len(f.frag) > 0
}

// Reset discards any buffered fragment. Called when the underlying transport
// is replaced, so a half-received line from the old connection cannot prefix
// the first line of the new one.
func (f *LineFramer) Reset() {
	f.frag = nil
}
