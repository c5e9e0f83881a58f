package partition

import "fmt"

// noNode marks a missing parent or node index.
const noNode int32 = -1

// slot holds one node of the tree arena.
type slot struct {
	gen  uint32
	live bool

	offset int
	length int // unused for the root, whose length is the buffer length
	typ    NodeType

	parent   int32
	children []int32

	stamp   uint64 // scan generation that last confirmed the node
	created uint64 // scan generation that created the node

	// Set by edit projection when the start (or end) was inside removed
	// text. Cleared at the end of every scan.
	damagedStart bool
	damagedEnd   bool

	attachments []any
}

// Node is a handle to a node of a partition tree. The zero Node is invalid.
// A handle stays valid until the node is deleted by a scan or the tree is
// discarded; methods on an invalid handle return zero values.
type Node struct {
	t   *Tree
	idx int32
	gen uint32
}

func (n Node) slot() *slot {
	if n.t == nil || n.idx < 0 || int(n.idx) >= len(n.t.slots) {
		return nil
	}
	s := &n.t.slots[n.idx]
	if !s.live || s.gen != n.gen {
		return nil
	}
	return s
}

// Valid returns true if the handle refers to a live node.
func (n Node) Valid() bool {
	return n.slot() != nil
}

// IsRoot returns true if the node is the root of its tree.
func (n Node) IsRoot() bool {
	return n.Valid() && n.idx == n.t.root
}

// Offset returns the start offset of the node.
func (n Node) Offset() int {
	if s := n.slot(); s != nil {
		return s.offset
	}
	return 0
}

// Length returns the length of the node.
func (n Node) Length() int {
	if n.slot() == nil {
		return 0
	}
	return n.t.length(n.idx)
}

// End returns the exclusive end offset of the node.
func (n Node) End() int {
	if n.slot() == nil {
		return 0
	}
	return n.t.end(n.idx)
}

// Type returns the type of the node.
func (n Node) Type() NodeType {
	if s := n.slot(); s != nil {
		return s.typ
	}
	return nil
}

// Parent returns the parent of the node. The root has no parent.
func (n Node) Parent() (Node, bool) {
	s := n.slot()
	if s == nil || s.parent == noNode {
		return Node{}, false
	}
	return n.t.handle(s.parent), true
}

// ChildCount returns the number of children.
func (n Node) ChildCount() int {
	if s := n.slot(); s != nil {
		return len(s.children)
	}
	return 0
}

// Child returns the i-th child in offset order.
func (n Node) Child(i int) Node {
	s := n.slot()
	if s == nil || i < 0 || i >= len(s.children) {
		return Node{}
	}
	return n.t.handle(s.children[i])
}

// Attachments returns the values attached to the node. Attachments survive
// scans that reuse the node.
func (n Node) Attachments() []any {
	if s := n.slot(); s != nil {
		return s.attachments
	}
	return nil
}

// AddAttachment attaches v to the node.
func (n Node) AddAttachment(v any) {
	if s := n.slot(); s != nil {
		s.attachments = append(s.attachments, v)
	}
}

// RemoveAttachment detaches the first attachment equal to v. The values
// compared must be comparable.
func (n Node) RemoveAttachment(v any) bool {
	s := n.slot()
	if s == nil {
		return false
	}
	for i, a := range s.attachments {
		if a == v {
			s.attachments = append(s.attachments[:i], s.attachments[i+1:]...)
			return true
		}
	}
	return false
}

// String returns a human-readable representation of the node.
func (n Node) String() string {
	s := n.slot()
	if s == nil {
		return "<invalid node>"
	}
	id := "<nil>"
	if s.typ != nil {
		id = s.typ.ID()
	}
	return fmt.Sprintf("%s[%d:%d)", id, s.offset, n.t.end(n.idx))
}

// SearchNodeUp returns the first of n and its ancestors for which match
// returns true.
func SearchNodeUp(n Node, match func(Node) bool) (Node, bool) {
	for n.Valid() {
		if match(n) {
			return n, true
		}
		p, ok := n.Parent()
		if !ok {
			break
		}
		n = p
	}
	return Node{}, false
}

// SearchNodeUpType returns the first of n and its ancestors with type t.
func SearchNodeUpType(n Node, t NodeType) (Node, bool) {
	return SearchNodeUp(n, func(c Node) bool {
		return SameType(c.Type(), t)
	})
}
