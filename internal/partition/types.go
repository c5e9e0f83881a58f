package partition

import "fmt"

// NodeType classifies a node. Two types are equal when their IDs are equal;
// node reuse across scans depends on that equality.
type NodeType interface {
	// ID identifies the classification.
	ID() string

	// ContentType is the content type reported for partitions of this type.
	ContentType() string

	// PrefersOpenAtBegin reports whether an offset at the start of n belongs
	// to n rather than to the text before it when open partitions are preferred.
	PrefersOpenAtBegin(n Node) bool

	// PrefersOpenAtEnd reports whether an offset at the end of n belongs to n
	// rather than to the text after it when open partitions are preferred.
	PrefersOpenAtEnd(n Node) bool
}

// SameType reports whether a and b denote the same classification.
func SameType(a, b NodeType) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID() == b.ID()
}

// BasicType is a comparable NodeType with fixed tie-break preferences.
type BasicType struct {
	// Name is the classification ID.
	Name string
	// Content is the reported content type. Empty means Name.
	Content string

	OpenAtBegin bool
	OpenAtEnd   bool
}

// ID implements NodeType.
func (t BasicType) ID() string { return t.Name }

// ContentType implements NodeType.
func (t BasicType) ContentType() string {
	if t.Content != "" {
		return t.Content
	}
	return t.Name
}

// PrefersOpenAtBegin implements NodeType.
func (t BasicType) PrefersOpenAtBegin(Node) bool { return t.OpenAtBegin }

// PrefersOpenAtEnd implements NodeType.
func (t BasicType) PrefersOpenAtEnd(Node) bool { return t.OpenAtEnd }

// String returns the type name.
func (t BasicType) String() string { return t.Name }

// Partition is a contiguous range classified with one type. Partitions are
// computed on demand from the tree and are not stored.
type Partition struct {
	Offset int
	Length int
	Type   NodeType
}

// End returns the exclusive end offset of the partition.
func (p Partition) End() int {
	return p.Offset + p.Length
}

// ContentType returns the content type of the partition's type.
func (p Partition) ContentType() string {
	if p.Type == nil {
		return ""
	}
	return p.Type.ContentType()
}

// Contains returns true if offset lies inside the partition.
func (p Partition) Contains(offset int) bool {
	return offset >= p.Offset && offset < p.End()
}

// String returns a human-readable representation of the partition.
func (p Partition) String() string {
	return fmt.Sprintf("[%d:%d) %s", p.Offset, p.End(), p.ContentType())
}

// Region is a range of the buffer whose classification may have changed.
type Region struct {
	Offset int
	Length int
}

// End returns the exclusive end offset of the region.
func (r Region) End() int {
	return r.Offset + r.Length
}

// String returns a human-readable representation of the region.
func (r Region) String() string {
	return fmt.Sprintf("[%d:%d)", r.Offset, r.End())
}

// TextBuffer is the read side of the text being partitioned.
type TextBuffer interface {
	// Len returns the length of the text in bytes.
	Len() int

	// Slice returns length bytes of text starting at offset.
	Slice(offset, length int) (string, error)

	// LineOfOffset returns the zero-based line containing offset.
	LineOfOffset(offset int) (int, error)

	// LineOffset returns the offset of the first byte of line.
	LineOffset(line int) (int, error)
}

// Scanner builds and updates a partition tree for one language.
type Scanner interface {
	// RootType returns the type of the root node.
	RootType() NodeType

	// RestartOffset returns the offset a rescan must start from, given the
	// node covering candidate. The result must lie in [0, candidate].
	RestartOffset(node Node, buf TextBuffer, candidate int) (int, error)

	// Execute scans from s.BeginOffset() inside s.BeginNode(), adding and
	// expanding nodes through s. It returns ErrBreak unchanged when a
	// session call reports it.
	Execute(s *Session) error
}
