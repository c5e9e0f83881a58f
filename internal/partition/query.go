package partition

// hit is a partition together with the node it was materialized from.
type hit struct {
	part Partition
	node int32

	// startsNode is set when the partition starts at the node's offset,
	// endsNode when it ends at the node's end.
	startsNode bool
	endsNode   bool
}

// locate returns the partition containing offset: the text of the deepest
// node covering offset that none of its children covers. offset must be in
// [0, len) unless the buffer is empty.
func (t *Tree) locate(offset int) hit {
	n := t.root
	for {
		k := t.upperBound(n, offset)
		j := t.lastSpanning(n, k)
		if j >= 0 {
			c := t.slots[n].children[j]
			if t.end(c) > offset {
				n = c
				continue
			}
		}
		s := &t.slots[n]
		start, end := s.offset, t.end(n)
		if k > 0 {
			start = max(start, t.end(s.children[k-1]))
		}
		if j >= 0 {
			start = max(start, t.end(s.children[j]))
		}
		if k < len(s.children) {
			end = t.slots[s.children[k]].offset
		}
		return hit{
			part:       Partition{Offset: start, Length: end - start, Type: s.typ},
			node:       n,
			startsNode: start == s.offset,
			endsNode:   end == t.end(n),
		}
	}
}

// partitionAt resolves offset to a partition, applying the open-partition
// tie-break at boundaries when preferOpen is set.
func (t *Tree) partitionAt(offset int, preferOpen bool) hit {
	n := t.buf.Len()
	if n == 0 {
		return hit{
			part:       Partition{Type: t.slots[t.root].typ},
			node:       t.root,
			startsNode: true,
			endsNode:   true,
		}
	}
	if offset >= n {
		return t.locate(n - 1)
	}
	q := t.locate(offset)
	if !preferOpen || offset == 0 || q.part.Offset != offset {
		return q
	}
	p := t.locate(offset - 1)
	switch {
	case q.startsNode && q.part.Type.PrefersOpenAtBegin(t.handle(q.node)):
		return q
	case p.endsNode && p.part.Type.PrefersOpenAtEnd(t.handle(p.node)):
		return p
	case q.startsNode && p.node != q.node && t.isAncestorOrSelf(p.node, q.node):
		// q opens a child of the node p belongs to; the enclosing text stays open
		return p
	}
	return q
}

// partitioning appends the partitions covering [lo, hi) to out.
func (t *Tree) partitioning(lo, hi int, zero bool) []Partition {
	var out []Partition
	t.walk(t.root, lo, hi, zero, &out)
	return out
}

func (t *Tree) walk(n int32, lo, hi int, zero bool, out *[]Partition) {
	s := &t.slots[n]
	pos := max(lo, s.offset)
	end := min(hi, t.end(n))
	gap := func(to int) {
		if to > pos {
			*out = append(*out, Partition{Offset: pos, Length: to - pos, Type: s.typ})
			pos = to
		}
	}

	k := t.lowerBound(n, lo)
	if j := t.lastSpanning(n, k); j >= 0 && t.end(s.children[j]) > lo {
		k = j
	}
	for ; k < len(s.children); k++ {
		c := s.children[k]
		cs := &t.slots[c]
		if cs.offset > hi || (cs.offset == hi && cs.length > 0) {
			break
		}
		if cs.length == 0 {
			if !zero || cs.offset < lo || cs.offset < pos {
				continue
			}
			gap(cs.offset)
			*out = append(*out, Partition{Offset: cs.offset, Type: cs.typ})
			t.walk(c, lo, hi, zero, out)
			continue
		}
		if t.end(c) <= lo {
			continue
		}
		gap(cs.offset)
		t.walk(c, lo, hi, zero, out)
		pos = min(t.end(c), hi)
	}
	gap(end)
}
