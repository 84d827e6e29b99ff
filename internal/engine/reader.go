package engine

import (
	"bytes"
	"io"
	"unicode/utf8"
)

const (
	readBufSize = 4096
	replacement = "�"
)

// readLoop streams the PTY's output as valid UTF-8 chunks on events,
// closing the channel at end of stream. A multi-byte sequence split
// across reads is carried over to the next read; definitively invalid
// bytes become replacement characters. No emitted chunk ever splits a
// multi-byte sequence.
func readLoop(r io.Reader, events chan<- string) {
	defer close(events)
	buf := make([]byte, 0, readBufSize+utf8.UTFMax)
	tmp := make([]byte, readBufSize)
	for {
		n, err := r.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			var chunk string
			chunk, buf = decodeChunk(buf)
			if chunk != "" {
				events <- chunk
			}
		}
		if err != nil {
			break
		}
	}
	// Flush the carried tail: anything left is by definition incomplete,
	// so it decodes to replacement characters.
	if len(buf) > 0 {
		events <- string(bytes.ToValidUTF8(buf, []byte(replacement)))
	}
}

// decodeChunk splits buffered bytes into an emittable chunk and a
// retained tail holding at most one incomplete trailing sequence.
// Invalid runs inside the emittable part collapse to one replacement
// character each.
func decodeChunk(buf []byte) (string, []byte) {
	cut := incompleteFrom(buf)
	if cut == 0 {
		return "", buf
	}
	head := buf[:cut]
	var chunk string
	if utf8.Valid(head) {
		chunk = string(head)
	} else {
		chunk = string(bytes.ToValidUTF8(head, []byte(replacement)))
	}
	rest := append(buf[:0], buf[cut:]...)
	return chunk, rest
}

// incompleteFrom returns the index where a trailing incomplete
// multi-byte sequence starts, or len(b) when the tail needs no
// carry-over. A trailing run of bare continuation bytes is not
// incomplete, it is invalid, and is flushed.
func incompleteFrom(b []byte) int {
	n := len(b)
	lim := n - utf8.UTFMax
	if lim < 0 {
		lim = 0
	}
	for i := n - 1; i >= lim; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return i
			}
			return n
		}
	}
	return n
}
