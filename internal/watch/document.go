package watch

import (
	"fmt"
	"sort"

	"github.com/dshills/partscan/internal/partition"
	"github.com/dshills/partscan/internal/textbuf"
)

// Document is a buffer kept partitioned while its text is replaced.
type Document struct {
	buf *textbuf.Buffer
	p   *partition.Partitioner
}

// NewDocument connects p to a new buffer holding text.
func NewDocument(p *partition.Partitioner, text string) (*Document, error) {
	buf := textbuf.New(text)
	if err := p.Connect(buf); err != nil {
		return nil, err
	}
	return &Document{buf: buf, p: p}, nil
}

// Buffer returns the document's buffer.
func (d *Document) Buffer() *textbuf.Buffer {
	return d.buf
}

// Partitioner returns the document's partitioner.
func (d *Document) Partitioner() *partition.Partitioner {
	return d.p
}

// Update replaces the document text with text, feeding the partitioner one
// change at a time. It returns the changed regions in the coordinates of
// the new text, sorted and disjoint.
func (d *Document) Update(text string) ([]partition.Region, error) {
	changes := Diff(d.buf.Text(), text)
	var regions []partition.Region
	for _, c := range changes {
		e, err := d.buf.Replace(c.Offset, c.Removed, c.Text)
		if err != nil {
			return nil, fmt.Errorf("applying %v: %w", c, err)
		}
		for i := range regions {
			regions[i] = project(regions[i], c)
		}
		r, err := d.p.DocumentChanged(e.Offset, e.Removed, e.Inserted)
		if err != nil {
			return nil, fmt.Errorf("partitioning after %v: %w", c, err)
		}
		if r != nil {
			regions = append(regions, *r)
		}
	}
	return merge(regions), nil
}

// project maps r through c. A region touched by the change grows to cover
// the replacement.
func project(r partition.Region, c Change) partition.Region {
	end := c.Offset + c.Removed
	delta := len(c.Text) - c.Removed
	switch {
	case c.Offset >= r.End():
		return r
	case end <= r.Offset:
		r.Offset += delta
		return r
	}
	start := min(r.Offset, c.Offset)
	return partition.Region{Offset: start, Length: max(r.End(), end) + delta - start}
}

// merge sorts regions and joins the ones that overlap or touch.
func merge(regions []partition.Region) []partition.Region {
	if len(regions) < 2 {
		return regions
	}
	sort.Slice(regions, func(i, j int) bool {
		return regions[i].Offset < regions[j].Offset
	})
	out := regions[:1]
	for _, r := range regions[1:] {
		last := &out[len(out)-1]
		if r.Offset <= last.End() {
			last.Length = max(last.End(), r.End()) - last.Offset
			continue
		}
		out = append(out, r)
	}
	return out
}
