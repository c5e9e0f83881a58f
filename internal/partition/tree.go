package partition

import (
	"errors"
	"fmt"
	"sort"
)

// Tree is the node arena of a connected Partitioner. Nodes are addressed by
// index; a generation counter per slot invalidates handles of deleted nodes.
type Tree struct {
	slots []slot
	free  []int32
	root  int32
	buf   TextBuffer
}

// newTree creates a tree holding only a root of type rootType.
func newTree(buf TextBuffer, rootType NodeType) *Tree {
	t := &Tree{buf: buf}
	t.root = t.alloc(rootType, 0, 0, noNode, 0)
	return t
}

// alloc takes a free slot for a new node.
func (t *Tree) alloc(typ NodeType, offset, length int, parent int32, stamp uint64) int32 {
	var i int32
	if n := len(t.free); n > 0 {
		i = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, slot{})
		i = int32(len(t.slots) - 1)
	}
	s := &t.slots[i]
	s.gen++
	s.live = true
	s.offset = offset
	s.length = length
	s.typ = typ
	s.parent = parent
	s.children = s.children[:0]
	s.stamp = stamp
	s.created = stamp
	s.damagedStart = false
	s.damagedEnd = false
	s.attachments = nil
	return i
}

// release frees the slot of i and of its whole subtree. It returns the
// number of freed nodes.
func (t *Tree) release(i int32) int {
	s := &t.slots[i]
	n := 1
	for _, c := range s.children {
		n += t.release(c)
	}
	s.live = false
	s.children = s.children[:0]
	s.attachments = nil
	s.typ = nil
	t.free = append(t.free, i)
	return n
}

// remove unlinks i from its parent and frees its subtree.
func (t *Tree) remove(i int32) int {
	p := t.slots[i].parent
	if p != noNode {
		ch := t.slots[p].children
		for k, c := range ch {
			if c == i {
				t.slots[p].children = append(ch[:k], ch[k+1:]...)
				break
			}
		}
	}
	return t.release(i)
}

// insertChild links c into the children of p at position k.
func (t *Tree) insertChild(p int32, k int, c int32) {
	ch := t.slots[p].children
	ch = append(ch, noNode)
	copy(ch[k+1:], ch[k:])
	ch[k] = c
	t.slots[p].children = ch
}

func (t *Tree) handle(i int32) Node {
	return Node{t: t, idx: i, gen: t.slots[i].gen}
}

func (t *Tree) length(i int32) int {
	if i == t.root {
		return t.buf.Len()
	}
	return t.slots[i].length
}

func (t *Tree) end(i int32) int {
	return t.slots[i].offset + t.length(i)
}

// resolve returns the slot index of a handle that belongs to this tree.
func (t *Tree) resolve(n Node) (int32, bool) {
	if n.t != t || n.slot() == nil {
		return noNode, false
	}
	return n.idx, true
}

// lowerBound returns the index of the first child of p with offset >= off.
func (t *Tree) lowerBound(p int32, off int) int {
	ch := t.slots[p].children
	return sort.Search(len(ch), func(k int) bool {
		return t.slots[ch[k]].offset >= off
	})
}

// upperBound returns the index of the first child of p with offset > off.
func (t *Tree) upperBound(p int32, off int) int {
	ch := t.slots[p].children
	return sort.Search(len(ch), func(k int) bool {
		return t.slots[ch[k]].offset > off
	})
}

// lastSpanning returns the index of the last non-empty child of p among the
// first k children, or -1.
func (t *Tree) lastSpanning(p int32, k int) int {
	ch := t.slots[p].children
	for j := k - 1; j >= 0; j-- {
		if t.slots[ch[j]].length > 0 {
			return j
		}
	}
	return -1
}

// enclosing returns the deepest node n with n.offset < off < n.end, or the
// root when there is none.
func (t *Tree) enclosing(off int) int32 {
	n := t.root
	for {
		j := t.lastSpanning(n, t.lowerBound(n, off))
		if j < 0 {
			return n
		}
		c := t.slots[n].children[j]
		if t.end(c) <= off {
			return n
		}
		n = c
	}
}

// isAncestorOrSelf reports whether a is d or an ancestor of d.
func (t *Tree) isAncestorOrSelf(a, d int32) bool {
	for d != noNode {
		if d == a {
			return true
		}
		d = t.slots[d].parent
	}
	return false
}

// overlaps reports whether two sibling ranges conflict. Two non-empty
// ranges conflict when they intersect; an empty range conflicts with a
// non-empty one when it lies strictly inside it.
func overlaps(a, al, b, bl int) bool {
	switch {
	case al > 0 && bl > 0:
		return a < b+bl && b < a+al
	case al > 0:
		return a < b && b < a+al
	case bl > 0:
		return b < a && a < b+bl
	}
	return false
}

// project moves every node through an edit that replaced removed bytes at
// offset with inserted bytes. Spans before the edit are unchanged, spans
// after it shift, spans across it absorb it and spans inside the removed
// text collapse to the edit offset.
func (t *Tree) project(offset, removed, inserted int) {
	e := edit{offset: offset, removed: removed, inserted: inserted}
	for _, c := range t.slots[t.root].children {
		t.projectNode(c, e, 0, t.buf.Len())
	}
}

type edit struct {
	offset   int
	removed  int
	inserted int
}

func (e edit) delta() int { return e.inserted - e.removed }

func (e edit) mapStart(a int) (int, bool) {
	switch {
	case a < e.offset:
		return a, false
	case a >= e.offset+e.removed:
		return a + e.delta(), false
	}
	return e.offset, true
}

func (e edit) mapEnd(b int) (int, bool) {
	switch {
	case b <= e.offset:
		return b, false
	case b > e.offset+e.removed:
		return b + e.delta(), false
	}
	return e.offset, true
}

func (t *Tree) projectNode(i int32, e edit, lo, hi int) {
	s := &t.slots[i]
	if s.offset+s.length < e.offset {
		return
	}
	a, da := e.mapStart(s.offset)
	b, db := e.mapEnd(s.offset + s.length)
	if b < a {
		b = a
	}
	a = min(max(a, lo), hi)
	b = min(max(b, a), hi)
	s.offset = a
	s.length = b - a
	s.damagedStart = s.damagedStart || da
	s.damagedEnd = s.damagedEnd || db
	for _, c := range s.children {
		t.projectNode(c, e, a, b)
	}
}

// clearDamage resets the projection marks of every node.
func (t *Tree) clearDamage() {
	for i := range t.slots {
		t.slots[i].damagedStart = false
		t.slots[i].damagedEnd = false
	}
}

// count returns the number of live nodes.
func (t *Tree) count() int {
	return len(t.slots) - len(t.free)
}

// validate checks the structural invariants of the tree.
func (t *Tree) validate() error {
	var errs []error
	root := &t.slots[t.root]
	if !root.live || root.offset != 0 || root.parent != noNode {
		errs = append(errs, fmt.Errorf("root must start at 0 without parent"))
	}
	t.validateNode(t.root, &errs)
	return errors.Join(errs...)
}

func (t *Tree) validateNode(i int32, errs *[]error) {
	s := &t.slots[i]
	start, end := s.offset, t.end(i)
	prevOff, prevEnd := start, start
	for k, c := range s.children {
		cs := &t.slots[c]
		h := t.handle(c)
		switch {
		case !cs.live:
			*errs = append(*errs, fmt.Errorf("child %d of %s is not live", k, t.handle(i)))
			continue
		case cs.parent != i:
			*errs = append(*errs, fmt.Errorf("%s has wrong parent link", h))
		case cs.length < 0:
			*errs = append(*errs, fmt.Errorf("%s has negative length", h))
		case cs.offset < start || cs.offset+cs.length > end:
			*errs = append(*errs, fmt.Errorf("%s not inside parent %s", h, t.handle(i)))
		case cs.offset < prevOff:
			*errs = append(*errs, fmt.Errorf("%s out of order", h))
		case cs.length > 0 && cs.offset < prevEnd:
			*errs = append(*errs, fmt.Errorf("%s overlaps previous sibling", h))
		case cs.length == 0 && cs.offset < prevEnd && cs.offset > prevOff:
			*errs = append(*errs, fmt.Errorf("empty %s inside previous sibling", h))
		}
		if cs.length > 0 {
			prevOff, prevEnd = cs.offset, cs.offset+cs.length
		} else if cs.offset >= prevEnd {
			prevOff = cs.offset
		}
		t.validateNode(c, errs)
	}
}
