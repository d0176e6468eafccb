package automation

import (
	"bytes"
	"strings"
)

// LineFramer accumulates raw byte chunks and splits them into complete
// newline-terminated lines. Partial lines, including multi-byte UTF-8
// sequences split across chunk boundaries, are held until completed:
// bytes only become a string at a newline boundary or on Flush, so a
// chunk boundary can never corrupt a character.
type LineFramer struct {
	buf []byte
}

// Feed appends a chunk and returns every complete line it unlocked, in
// arrival order. Trailing carriage returns are stripped.
func (f *LineFramer) Feed(chunk []byte) []string {
	f.buf = append(f.buf, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			return lines
		}
		line := string(bytes.TrimSuffix(f.buf[:i], []byte{'\r'}))
		f.buf = f.buf[i+1:]
		lines = append(lines, line)
	}
}

// Flush returns the final unterminated line, if the remaining buffer is
// non-blank. Call once at stream end.
func (f *LineFramer) Flush() (string, bool) {
	rest := string(f.buf)
	f.buf = nil
	if strings.TrimSpace(rest) == "" {
		return "", false
	}
	return rest, true
}
