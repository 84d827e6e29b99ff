package engine

import (
	"io"
	"strings"
	"testing"
	"unicode/utf8"
)

// scriptedReader yields predefined byte slices, one per Read call, then EOF.
type scriptedReader struct {
	parts [][]byte
}

func (s *scriptedReader) Read(p []byte) (int, error) {
	if len(s.parts) == 0 {
		return 0, io.EOF
	}
	part := s.parts[0]
	n := copy(p, part)
	if n < len(part) {
		s.parts[0] = part[n:]
	} else {
		s.parts = s.parts[1:]
	}
	return n, nil
}

func collect(t *testing.T, parts ...[]byte) []string {
	t.Helper()
	events := make(chan string, 64)
	go readLoop(&scriptedReader{parts: parts}, events)

	var chunks []string
	for chunk := range events {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func TestReadLoopChunks(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{"plain ascii", []string{"hello"}, "hello"},
		{"two reads", []string{"hel", "lo"}, "hello"},
		{"multibyte intact", []string{"héllo €"}, "héllo €"},
		{"euro split across reads", []string{"price: \xe2", "\x82\xac5"}, "price: €5"},
		{"four byte split", []string{"\xf0\x9f", "\x8e\x89"}, "🎉"},
		{"invalid byte", []string{"a\xffb"}, "a�b"},
		{"invalid run collapses", []string{"a\xff\xfe\xfdb"}, "a�b"},
		{"bare continuation bytes", []string{"a\x82\x83b"}, "a�b"},
		{"truncated at eof", []string{"ok\xe2\x82"}, "ok�"},
		{"lone truncated sequence", []string{"\xe2"}, "�"},
		{"empty stream", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var parts [][]byte
			for _, p := range tt.parts {
				parts = append(parts, []byte(p))
			}
			chunks := collect(t, parts...)
			got := strings.Join(chunks, "")
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			for _, c := range chunks {
				if !utf8.ValidString(c) {
					t.Errorf("chunk %q is not valid UTF-8", c)
				}
			}
		})
	}
}

func TestReadLoopAllSplitPoints(t *testing.T) {
	// However the input is chunked into reads, concatenating the emitted
	// chunks must reconstruct the text and no chunk may split a rune.
	text := []byte("héllo €🎉 done")
	for cut := 0; cut <= len(text); cut++ {
		chunks := collect(t, text[:cut], text[cut:])
		if got := strings.Join(chunks, ""); got != string(text) {
			t.Fatalf("split at %d: expected %q, got %q", cut, text, got)
		}
		for _, c := range chunks {
			if !utf8.ValidString(c) {
				t.Fatalf("split at %d: invalid chunk %q", cut, c)
			}
		}
	}
}

func TestIncompleteFrom(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want int
	}{
		{"empty", nil, 0},
		{"ascii", []byte("abc"), 3},
		{"complete multibyte", []byte("a\xe2\x82\xac"), 4},
		{"truncated two of three", []byte("a\xe2\x82"), 1},
		{"truncated one of four", []byte("ab\xf0"), 2},
		{"invalid lead byte is full", []byte("a\xff"), 2},
		{"bare continuations are full", []byte("\x82\x83"), 2},
		{"only incomplete", []byte("\xe2"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := incompleteFrom(tt.in); got != tt.want {
				t.Errorf("incompleteFrom(%q) = %d, expected %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeChunkRetainsTail(t *testing.T) {
	chunk, rest := decodeChunk([]byte("ab\xe2\x82"))
	if chunk != "ab" {
		t.Errorf("expected chunk %q, got %q", "ab", chunk)
	}
	if string(rest) != "\xe2\x82" {
		t.Errorf("expected retained tail % x, got % x", "\xe2\x82", rest)
	}

	chunk, rest = decodeChunk(append(rest, '\xac', 'c'))
	if chunk != "€c" {
		t.Errorf("expected chunk %q, got %q", "€c", chunk)
	}
	if len(rest) != 0 {
		t.Errorf("expected empty tail, got % x", rest)
	}
}
