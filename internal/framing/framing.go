// Package framing implements the incremental JSON framer that turns
// arbitrary TCP receive buffers into a sequence of complete JSON
// envelopes. It is pure and does no I/O of its own: callers feed it
// byte slices as they arrive off the wire and it hands back whatever
// complete values it can extract, carrying any incomplete tail forward
// to the next feed.
//
// Three stream pathologies are handled: several envelopes concatenated
// in one buffer, a single envelope split across two or more buffers,
// and two envelopes glued together with no separator at all.
package framing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rdkcentral/json-hal-rpc/internal/herrors"
)

// ParseError reports where in a feed the framer gave up.
type ParseError struct {
	Offset int64
	Char   byte
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: unrecoverable json at offset %d (byte %q)", herrors.ErrParse, e.Offset, e.Char)
}

func (e *ParseError) Unwrap() error { return herrors.ErrParse }

// Extract is the pure codec: given a buffer, it returns every complete
// top-level JSON value found, plus whatever trailing bytes did not yet
// form a complete value (the residual). The residual is never an
// error by itself — the caller folds it into the next buffer.
//
// On malformed input that cannot be resynchronised (no following '{'
// to restart from), Extract returns the values found so far, a nil
// residual, and a *ParseError naming the offending offset and byte;
// the caller is expected to drop the rest of the buffer, per spec.
func Extract(buf []byte) (values []json.RawMessage, residual []byte, err error) {
	start := 0
	for start < len(buf) {
		// Skip insignificant whitespace between values so an all-
		// whitespace tail is treated as "no partial value pending".
		for start < len(buf) && isJSONSpace(buf[start]) {
			start++
		}
		if start >= len(buf) {
			break
		}

		dec := json.NewDecoder(bytes.NewReader(buf[start:]))
		var raw json.RawMessage
		decErr := dec.Decode(&raw)
		switch {
		case decErr == nil:
			values = append(values, raw)
			consumed := int(dec.InputOffset())
			start += consumed
			continue

		case decErr == io.EOF || decErr == io.ErrUnexpectedEOF:
			// Not enough bytes yet for a whole value: carry the rest
			// forward untouched.
			return values, buf[start:], nil

		default:
			// Unexpected input. If the byte at the reported offset
			// (or the next '{' after it) looks like the start of a
			// new value, treat it as a glued frame and resynchronise;
			// otherwise this is unrecoverable.
			offset := start
			if se, ok := decErr.(*json.SyntaxError); ok {
				offset = start + int(se.Offset) - 1
				if offset < start {
					offset = start
				}
			}
			if idx := bytes.IndexByte(buf[offset:], '{'); idx >= 0 {
				next := offset + idx
				if next <= start {
					// Resync point didn't move us forward (the bad
					// byte itself was '{'): step past it to guarantee
					// progress and avoid looping forever.
					next = start + 1
				}
				start = next
				continue
			}
			return values, nil, &ParseError{Offset: int64(offset), Char: atOrZero(buf, offset)}
		}
	}
	return values, nil, nil
}

func atOrZero(buf []byte, i int) byte {
	if i >= 0 && i < len(buf) {
		return buf[i]
	}
	return 0
}

func isJSONSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r':
		return true
	default:
		return false
	}
}

// Framer is the stateful per-connection wrapper around Extract: it
// owns the residual bytes left over between successive Feed calls, so
// transport code can hand it whatever it reads off the socket without
// worrying about frame boundaries.
type Framer struct {
	buf []byte
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends chunk to the carried residual, extracts every complete
// value it can, and keeps the new residual for the next call. On an
// unrecoverable parse error the residual is dropped (per spec: "the
// codec ... instructs the caller to drop the rest of the buffer") and
// the framer resumes cleanly on the next Feed.
func (f *Framer) Feed(chunk []byte) ([]json.RawMessage, error) {
	f.buf = append(f.buf, chunk...)
	values, residual, err := Extract(f.buf)
	if err != nil {
		f.buf = nil
		return values, err
	}
	f.buf = residual
	return values, nil
}

// Pending reports how many bytes of an incomplete value are currently
// buffered, for diagnostics/tests.
func (f *Framer) Pending() int {
	return len(f.buf)
}
