package watch

import (
	"fmt"
	"strings"
	"unicode/utf8"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// Change replaces Removed bytes at Offset with Text.
type Change struct {
	Offset  int
	Removed int
	Text    string
}

// String returns a human-readable representation of the change.
func (c Change) String() string {
	return fmt.Sprintf("[%d:%d)=%q", c.Offset, c.Offset+c.Removed, c.Text)
}

// Apply returns text with the change applied.
func (c Change) Apply(text string) string {
	return text[:c.Offset] + c.Text + text[c.Offset+c.Removed:]
}

// Diff returns the changes turning from into to. The changes are ordered by
// offset and meant to be applied one after the other: each offset is
// relative to the text produced by the previous changes. Identical texts
// give no changes.
func Diff(from, to string) []Change {
	if from == to {
		return nil
	}
	// the diff works on runes and would lose invalid bytes
	if !utf8.ValidString(from) || !utf8.ValidString(to) {
		return []Change{trimmed(from, to)}
	}

	dmp := diffpatch.New()
	multiLine := strings.Contains(from, "\n") && strings.Contains(to, "\n")
	diffs := dmp.DiffMain(from, to, multiLine)

	var (
		changes []Change
		cur     *Change
		pos     int
	)
	flush := func() {
		if cur != nil {
			changes = append(changes, *cur)
			pos += len(cur.Text)
			cur = nil
		}
	}
	for _, d := range diffs {
		switch d.Type {
		case diffpatch.DiffEqual:
			flush()
			pos += len(d.Text)
		case diffpatch.DiffDelete:
			if cur == nil {
				cur = &Change{Offset: pos}
			}
			cur.Removed += len(d.Text)
		case diffpatch.DiffInsert:
			if cur == nil {
				cur = &Change{Offset: pos}
			}
			cur.Text += d.Text
		}
	}
	flush()
	return changes
}

// trimmed returns one change covering everything between the common prefix
// and suffix of from and to.
func trimmed(from, to string) Change {
	p := 0
	for p < len(from) && p < len(to) && from[p] == to[p] {
		p++
	}
	s := 0
	for s < len(from)-p && s < len(to)-p && from[len(from)-1-s] == to[len(to)-1-s] {
		s++
	}
	return Change{Offset: p, Removed: len(from) - p - s, Text: to[p : len(to)-s]}
}
