package rules

import "github.com/dshills/partscan/internal/partition"

// chunkSize is the number of bytes read from the session at a time.
const chunkSize = 4096

// reader reads the buffer through a session in chunks. The first failed
// read is kept in err; the session reports it on every later call too.
type reader struct {
	s    *partition.Session
	n    int
	base int
	text string
	err  error
}

func newReader(s *partition.Session) *reader {
	return &reader{s: s, n: s.Len()}
}

// window loads a chunk covering [i, i+need), clipped to the buffer.
func (rd *reader) window(i, need int) bool {
	end := min(i+need, rd.n)
	if i >= rd.base && end <= rd.base+len(rd.text) {
		return true
	}
	if rd.err != nil {
		return false
	}
	text, err := rd.s.Slice(i, min(max(chunkSize, need), rd.n-i))
	if err != nil {
		rd.err = err
		return false
	}
	rd.base, rd.text = i, text
	return true
}

func (rd *reader) byteAt(i int) (byte, bool) {
	if i < 0 || i >= rd.n || !rd.window(i, 1) {
		return 0, false
	}
	return rd.text[i-rd.base], true
}

func (rd *reader) hasPrefix(i int, prefix string) bool {
	if i < 0 || i+len(prefix) > rd.n || !rd.window(i, len(prefix)) {
		return false
	}
	return rd.text[i-rd.base:i-rd.base+len(prefix)] == prefix
}
