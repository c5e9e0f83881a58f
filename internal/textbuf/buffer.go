// Package textbuf provides a line-indexed byte buffer for partitioning.
//
// A Buffer reports every mutation as an Edit that can be passed on to
// partition.Partitioner.DocumentChanged. All methods are thread-safe.
package textbuf

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Errors returned by buffer operations.
var (
	ErrOffsetOutOfRange = errors.New("offset out of range")
	ErrLineOutOfRange   = errors.New("line out of range")
	ErrRangeInvalid     = errors.New("invalid range")
)

// Edit describes a mutation: Removed bytes at Offset were replaced by
// Inserted bytes.
type Edit struct {
	Offset   int
	Removed  int
	Inserted int
}

// Delta returns the change in buffer length.
func (e Edit) Delta() int {
	return e.Inserted - e.Removed
}

// IsNoOp returns true if the edit changed nothing.
func (e Edit) IsNoOp() bool {
	return e.Removed == 0 && e.Inserted == 0
}

// String returns a human-readable representation of the edit.
func (e Edit) String() string {
	switch {
	case e.Removed == 0:
		return fmt.Sprintf("Insert(%d, +%d)", e.Offset, e.Inserted)
	case e.Inserted == 0:
		return fmt.Sprintf("Delete[%d:%d)", e.Offset, e.Offset+e.Removed)
	}
	return fmt.Sprintf("Replace[%d:%d) with +%d", e.Offset, e.Offset+e.Removed, e.Inserted)
}

// Buffer is a mutable text with a line index. Lines are separated by '\n';
// a line starts at offset 0 and after every newline.
type Buffer struct {
	mu    sync.RWMutex
	text  []byte
	lines []int // start offset of every line, ascending
}

// New creates a buffer holding text.
func New(text string) *Buffer {
	b := &Buffer{}
	b.reset(text)
	return b
}

func (b *Buffer) reset(text string) {
	b.text = append(b.text[:0], text...)
	b.lines = append(b.lines[:0], 0)
	b.lines = appendLineStarts(b.lines, text, 0)
}

// appendLineStarts appends the start of every line following a newline in
// text, which begins at base.
func appendLineStarts(lines []int, text string, base int) []int {
	for i := 0; i < len(text); {
		j := strings.IndexByte(text[i:], '\n')
		if j < 0 {
			break
		}
		i += j + 1
		lines = append(lines, base+i)
	}
	return lines
}

// Len returns the length of the text in bytes.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.text)
}

// Text returns the whole text.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return string(b.text)
}

// Slice returns length bytes starting at offset.
func (b *Buffer) Slice(offset, length int) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if offset < 0 || length < 0 || offset+length > len(b.text) {
		return "", ErrOffsetOutOfRange
	}
	return string(b.text[offset : offset+length]), nil
}

// LineCount returns the number of lines. An empty buffer has one line.
func (b *Buffer) LineCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

// LineOfOffset returns the zero-based line containing offset. The length of
// the buffer is a valid offset and belongs to the last line.
func (b *Buffer) LineOfOffset(offset int) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if offset < 0 || offset > len(b.text) {
		return 0, ErrOffsetOutOfRange
	}
	return sort.SearchInts(b.lines, offset+1) - 1, nil
}

// LineOffset returns the offset of the first byte of line.
func (b *Buffer) LineOffset(line int) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if line < 0 || line >= len(b.lines) {
		return 0, ErrLineOutOfRange
	}
	return b.lines[line], nil
}

// Insert inserts text at offset.
func (b *Buffer) Insert(offset int, text string) (Edit, error) {
	return b.Replace(offset, 0, text)
}

// Delete removes length bytes starting at offset.
func (b *Buffer) Delete(offset, length int) (Edit, error) {
	return b.Replace(offset, length, "")
}

// Replace replaces length bytes starting at offset with text.
func (b *Buffer) Replace(offset, length int, text string) (Edit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if offset < 0 || length < 0 || offset+length > len(b.text) {
		return Edit{}, ErrRangeInvalid
	}

	tail := string(b.text[offset+length:])
	b.text = append(append(b.text[:offset], text...), tail...)

	// Line starts inside the replaced range go away, later ones shift.
	first := sort.SearchInts(b.lines, offset+1)
	last := sort.SearchInts(b.lines, offset+length+1)
	rest := append([]int(nil), b.lines[last:]...)
	b.lines = appendLineStarts(b.lines[:first], text, offset)
	delta := len(text) - length
	for _, l := range rest {
		b.lines = append(b.lines, l+delta)
	}

	return Edit{Offset: offset, Removed: length, Inserted: len(text)}, nil
}

// SetText replaces the whole text.
func (b *Buffer) SetText(text string) Edit {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := Edit{Removed: len(b.text), Inserted: len(text)}
	b.reset(text)
	return e
}
