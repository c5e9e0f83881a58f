package partition

import (
	"math"
	"sort"
)

// Session is the protocol object a Scanner drives during one scan. It is
// valid only for the duration of the Execute call it was passed to.
//
// A scan starts at BeginOffset inside BeginNode. The scanner adds nodes in
// ascending offset order and expands them as it finds their ends. Nodes of
// the previous tree that the scan re-adds at the same offset under the same
// parent with an equal type are reused; nodes the scan passes without
// re-adding are deleted.
//
// Once the scan reaches unchanged text in a state the previous tree already
// describes, the session breaks: the call that detected it returns ErrBreak
// and every later call returns ErrBreak without effect. After a protocol
// violation or a buffer error every later call returns that error.
type Session struct {
	t   *Tree
	buf TextBuffer

	stamp     uint64
	begin     int
	beginNode int32
	full      bool
	autoBreak bool
	done      bool

	// Forward progress. cursor is the offset of the last forward add.
	cursor int

	// Per-node bookkeeping, keyed by handle so reused slots never alias.
	swept   map[Node]int // offset up to which stale children were removed
	origEnd map[Node]int // end of a pre-existing node when first confirmed
	pending map[Node]int // requested end of reused nodes still longer than requested

	// Dirty region and the offset below which a reuse never breaks.
	editOffset int
	dirty      bool
	dirtyStart int
	dirtyEnd   int
	structural bool
	deletion   bool
	floor      int

	broken  bool
	breakAt int

	err error

	created int
	reused  int
	deleted int
}

// newSession prepares an incremental scan over t starting at begin inside
// beginNode, for an edit at offset that removed and inserted the given
// lengths.
func newSession(t *Tree, stamp uint64, begin int, beginNode int32, offset, removed, inserted int) *Session {
	s := &Session{
		t:          t,
		buf:        t.buf,
		stamp:      stamp,
		begin:      begin,
		beginNode:  beginNode,
		cursor:     begin,
		swept:      make(map[Node]int),
		origEnd:    make(map[Node]int),
		pending:    make(map[Node]int),
		editOffset: offset,
		floor:      offset + inserted,
	}
	if removed > 0 && inserted == 0 {
		s.floor = offset + 1
	}
	if inserted > 0 || removed > 0 {
		s.dirty = true
		s.dirtyStart = offset
		s.dirtyEnd = offset + inserted
		s.deletion = removed > 0
	}
	s.touch(beginNode)
	return s
}

// newFullSession prepares a scan of the whole buffer over a root-only tree.
func newFullSession(t *Tree, stamp uint64) *Session {
	s := newSession(t, stamp, 0, t.root, 0, 0, 0)
	s.full = true
	return s
}

// BeginOffset returns the offset the scan starts at.
func (s *Session) BeginOffset() int {
	return s.begin
}

// BeginNode returns the deepest node enclosing the begin offset. The
// scanner resumes in the state this node and its ancestors describe.
func (s *Session) BeginNode() Node {
	return s.t.handle(s.beginNode)
}

// Root returns the root node.
func (s *Session) Root() Node {
	return s.t.handle(s.t.root)
}

// Len returns the length of the buffer being scanned.
func (s *Session) Len() int {
	return s.buf.Len()
}

// Slice reads length bytes of the buffer starting at offset. A failed read
// ends the scan.
func (s *Session) Slice(offset, length int) (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}
	if offset < 0 || length < 0 || offset+length > s.buf.Len() {
		return "", s.fail(&BufferAccessError{Offset: offset, Length: length, Err: ErrOffsetOutOfRange})
	}
	text, err := s.buf.Slice(offset, length)
	if err != nil {
		return "", s.fail(&BufferAccessError{Offset: offset, Length: length, Err: err})
	}
	return text, nil
}

// ByteAt returns the byte at offset.
func (s *Session) ByteAt(offset int) (byte, error) {
	text, err := s.Slice(offset, 1)
	if err != nil {
		return 0, err
	}
	return text[0], nil
}

// Broken reports whether the session has stopped at a break.
func (s *Session) Broken() bool {
	return s.broken
}

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	return s.err
}

// MarkDirtyEnd extends the reported dirty region to end at least at
// offset. The scan never breaks before the dirty end.
func (s *Session) MarkDirtyEnd(offset int) error {
	if err := s.check(); err != nil {
		return err
	}
	if offset > s.editOffset {
		s.markDirty(s.editOffset, offset)
	}
	return nil
}

// Add adds a node of type typ covering [offset, offset+length) as a child
// of parent and returns it.
//
// When offset is at or after the offset of the previous forward add, stale
// children of parent before offset are deleted and a stale child at exactly
// offset with an equal type is reused, keeping its identity, attachments
// and subtree. A reused node keeps its current extent until the scanner
// closes it with Expand or moves past it. Ancestors grow to cover the node.
//
// An offset before the previous forward add inserts a node into a parent
// already confirmed by this scan without moving the forward position.
// Adds to one parent must come in non-decreasing offset order.
func (s *Session) Add(typ NodeType, parent Node, offset, length int) (Node, error) {
	if err := s.check(); err != nil {
		return Node{}, err
	}
	p, ok := s.t.resolve(parent)
	switch {
	case !ok:
		return Node{}, s.violation("add", offset, "parent is not a live node of this tree")
	case typ == nil:
		return Node{}, s.violation("add", offset, "nil node type")
	case offset < 0 || length < 0 || offset+length > s.buf.Len():
		return Node{}, s.violation("add", offset, "range outside buffer")
	case offset < s.t.slots[p].offset:
		return Node{}, s.violation("add", offset, "node starts before its parent")
	case offset < s.begin:
		return Node{}, s.violation("add", offset, "node starts before the scan")
	}
	if offset < s.cursor {
		return s.addNested(typ, p, offset, length)
	}

	s.touch(p)
	s.finishPassed(p, offset)
	if s.err != nil {
		return Node{}, s.err
	}
	s.sweepBefore(p, offset)
	s.cursor = offset

	if c := s.reusable(p, offset, typ); c != noNode {
		return s.reuse(c, offset, length, !s.full)
	}
	return s.create(typ, p, offset, length)
}

func (s *Session) addNested(typ NodeType, p int32, offset, length int) (Node, error) {
	ps := &s.t.slots[p]
	if ps.stamp != s.stamp {
		return Node{}, s.violation("add", offset, "nested add into a node not confirmed by this scan")
	}
	if last, ok := s.swept[s.t.handle(p)]; ok && offset < last {
		return Node{}, s.violation("add", offset, "adds to one parent must not go backwards")
	}
	s.sweepBefore(p, offset)
	if c := s.reusable(p, offset, typ); c != noNode {
		return s.reuse(c, offset, length, false)
	}
	return s.create(typ, p, offset, length)
}

// reusable returns a stale child of p at exactly offset with type typ.
func (s *Session) reusable(p int32, offset int, typ NodeType) int32 {
	ch := s.t.slots[p].children
	for k := s.t.lowerBound(p, offset); k < len(ch); k++ {
		c := ch[k]
		cs := &s.t.slots[c]
		if cs.offset != offset {
			break
		}
		if SameType(cs.typ, typ) && s.stale(c) {
			return c
		}
	}
	return noNode
}

func (s *Session) reuse(c int32, offset, length int, canBreak bool) (Node, error) {
	s.touch(c)
	s.reused++
	h := s.t.handle(c)
	end := offset + length
	if cur := s.t.end(c); cur > end {
		s.pending[h] = end
	} else if err := s.grow(c, end); err != nil {
		return Node{}, err
	}
	s.require(s.t.slots[c].parent, end)

	if canBreak && s.autoBreak && !s.t.slots[c].damagedStart && offset >= s.threshold() {
		s.stop(offset)
		return h, ErrBreak
	}
	return h, nil
}

func (s *Session) create(typ NodeType, p int32, offset, length int) (Node, error) {
	if err := s.claim(p, offset, offset+length, noNode); err != nil {
		return Node{}, err
	}
	if err := s.grow(p, offset+length); err != nil {
		return Node{}, err
	}
	c := s.t.alloc(typ, offset, length, p, s.stamp)
	s.t.insertChild(p, s.insertPos(p, offset, length), c)
	s.created++
	s.structural = true
	s.markDirty(offset, offset+length)
	s.require(p, offset+length)
	return s.t.handle(c), nil
}

// insertPos returns where a new child of p at offset goes: after its
// siblings at the same offset, but before non-empty ones when it is empty.
func (s *Session) insertPos(p int32, offset, length int) int {
	k := s.t.upperBound(p, offset)
	if length > 0 {
		return k
	}
	ch := s.t.slots[p].children
	for k > 0 {
		cs := &s.t.slots[ch[k-1]]
		if cs.offset != offset || cs.length == 0 {
			break
		}
		k--
	}
	return k
}

// Expand grows node, and its ancestors where needed, to end at end. Stale
// siblings the growth overlaps are deleted.
//
// With close the node ends exactly at end: it shrinks when it is longer,
// stale children at or after end are deleted, and a confirmed child
// reaching past end is a protocol violation. Closing a node of the previous
// tree at its previous end, after the dirty region, breaks the scan.
func (s *Session) Expand(node Node, end int, close bool) error {
	if err := s.check(); err != nil {
		return err
	}
	i, ok := s.t.resolve(node)
	if !ok {
		return s.violation("expand", end, "node is not a live node of this tree")
	}
	if i == s.t.root {
		return nil
	}
	start := s.t.slots[i].offset
	if end < start || end > s.buf.Len() {
		return s.violation("expand", end, "end outside node or buffer")
	}

	s.touch(i)
	h := s.t.handle(i)
	if err := s.grow(i, end); err != nil {
		return err
	}
	s.require(s.t.slots[i].parent, end)
	if !close {
		if pe, ok := s.pending[h]; ok && end > pe {
			s.pending[h] = end
		}
		return nil
	}

	delete(s.pending, h)
	s.finishPending(func(n int32) bool {
		return n != i && s.t.isAncestorOrSelf(i, n)
	})
	if s.err != nil {
		return s.err
	}
	if err := s.trim(i, end); err != nil {
		return err
	}

	sl := &s.t.slots[i]
	if !s.full && s.autoBreak && sl.created != s.stamp && !sl.damagedEnd &&
		end == s.origEnd[h] && end >= s.threshold() && !s.hasStale(i) {
		s.stop(end)
		return ErrBreak
	}
	return nil
}

// trim makes node i end exactly at end.
func (s *Session) trim(i int32, end int) error {
	ch := s.t.slots[i].children
	for k := len(ch) - 1; k >= 0; k-- {
		c := ch[k]
		cs := &s.t.slots[c]
		if cs.offset < end && cs.offset+cs.length <= end {
			continue
		}
		if !s.stale(c) {
			if cs.offset+cs.length > end {
				return s.violation("expand", end, "closing cuts through child "+s.t.handle(c).String())
			}
			continue
		}
		s.remove(c)
	}
	if cur := s.t.end(i); cur > end {
		s.t.slots[i].length = end - s.t.slots[i].offset
		s.markDirty(end, cur)
	}
	return nil
}

// hasStale reports whether node i still has unconfirmed children.
func (s *Session) hasStale(i int32) bool {
	for _, c := range s.t.slots[i].children {
		if s.stale(c) {
			return true
		}
	}
	return false
}

// check returns the error later calls must report, if any.
func (s *Session) check() error {
	switch {
	case s.err != nil:
		return s.err
	case s.broken:
		return ErrBreak
	case s.done:
		return &ScanProtocolError{Op: "session", Reason: "session used after its scan ended"}
	}
	return nil
}

func (s *Session) fail(err error) error {
	s.err = err
	return err
}

func (s *Session) violation(op string, offset int, reason string) error {
	return s.fail(&ScanProtocolError{Op: op, Offset: offset, Reason: reason})
}

// stop records a break at offset.
func (s *Session) stop(offset int) {
	s.broken = true
	s.breakAt = offset
}

// threshold is the lowest offset at which a confirmed node may break the
// scan.
func (s *Session) threshold() int {
	if s.dirty {
		return max(s.dirtyEnd, s.floor)
	}
	return s.floor
}

func (s *Session) markDirty(start, end int) {
	if end < start {
		return
	}
	if end == start {
		s.structural = true
		if !s.dirty {
			return
		}
	}
	if !s.dirty {
		s.dirty = true
		s.dirtyStart, s.dirtyEnd = start, end
		return
	}
	s.dirtyStart = min(s.dirtyStart, start)
	s.dirtyEnd = max(s.dirtyEnd, end)
}

// touch confirms node i and its ancestors for this scan.
func (s *Session) touch(i int32) {
	for i != noNode {
		sl := &s.t.slots[i]
		if sl.stamp == s.stamp {
			return
		}
		sl.stamp = s.stamp
		s.origEnd[s.t.handle(i)] = s.t.end(i)
		i = sl.parent
	}
}

// stale reports whether node i belongs to the rescanned range and has not
// been confirmed yet.
func (s *Session) stale(i int32) bool {
	sl := &s.t.slots[i]
	if sl.stamp == s.stamp || sl.offset < s.begin || sl.parent == noNode {
		return false
	}
	return s.t.slots[sl.parent].stamp == s.stamp
}

// claim makes room for [start, end) among the children of p. Stale
// children in the way are deleted; confirmed ones are a violation.
func (s *Session) claim(p int32, start, end int, exclude int32) error {
	k := s.t.lowerBound(p, start)
	if j := s.t.lastSpanning(p, k); j >= 0 {
		k = j
	}
	for k < len(s.t.slots[p].children) {
		c := s.t.slots[p].children[k]
		cs := &s.t.slots[c]
		if cs.offset > end || (cs.offset == end && end > start) {
			break
		}
		if c == exclude || !overlaps(start, end-start, cs.offset, cs.length) {
			k++
			continue
		}
		if !s.stale(c) {
			return s.violation("add", start, "range overlaps "+s.t.handle(c).String())
		}
		s.remove(c)
	}
	return nil
}

// grow extends node i and its ancestors to reach end.
func (s *Session) grow(i int32, end int) error {
	for i != s.t.root {
		cur := s.t.end(i)
		if end <= cur {
			return nil
		}
		sl := &s.t.slots[i]
		if err := s.claim(sl.parent, sl.offset, end, i); err != nil {
			return err
		}
		sl.length = end - sl.offset
		s.markDirty(cur, end)
		i = sl.parent
	}
	return nil
}

// require raises the requested end of pending nodes from i upwards.
func (s *Session) require(i int32, end int) {
	if len(s.pending) == 0 {
		return
	}
	for ; i != noNode; i = s.t.slots[i].parent {
		h := s.t.handle(i)
		if pe, ok := s.pending[h]; ok && end > pe {
			s.pending[h] = end
		}
	}
}

// finishPassed finishes pending nodes the forward position has left: all
// of them except the ancestors of the parent receiving the next add.
func (s *Session) finishPassed(p int32, offset int) {
	if len(s.pending) == 0 {
		return
	}
	s.finishPending(func(n int32) bool {
		return s.t.slots[n].offset <= offset && !s.t.isAncestorOrSelf(n, p)
	})
}

// finishPending shrinks the selected pending nodes to their requested
// ends, deepest first.
func (s *Session) finishPending(match func(int32) bool) {
	if len(s.pending) == 0 {
		return
	}
	type item struct {
		h     Node
		depth int
	}
	var items []item
	for h := range s.pending {
		if !h.Valid() {
			delete(s.pending, h)
			continue
		}
		if match(h.idx) {
			d := 0
			for a := h.idx; a != noNode; a = s.t.slots[a].parent {
				d++
			}
			items = append(items, item{h, d})
		}
	}
	sort.Slice(items, func(a, b int) bool {
		if items[a].depth != items[b].depth {
			return items[a].depth > items[b].depth
		}
		return items[a].h.idx < items[b].h.idx
	})
	for _, it := range items {
		end := s.pending[it.h]
		delete(s.pending, it.h)
		if !it.h.Valid() {
			continue
		}
		// children are finished first, so only stale ones can be cut
		_ = s.trim(it.h.idx, end)
	}
}

// sweepBefore deletes stale children of p that start before offset.
func (s *Session) sweepBefore(p int32, offset int) {
	h := s.t.handle(p)
	from, ok := s.swept[h]
	if !ok {
		from = s.begin
	}
	if offset > from {
		ch := s.t.slots[p].children
		for k := s.t.lowerBound(p, from); k < len(ch); {
			c := ch[k]
			if s.t.slots[c].offset >= offset {
				break
			}
			if s.stale(c) {
				s.remove(c)
				ch = s.t.slots[p].children
				continue
			}
			k++
		}
	}
	if offset > from || !ok {
		s.swept[h] = max(from, offset)
	}
}

// remove deletes node i and its subtree.
func (s *Session) remove(i int32) {
	sl := &s.t.slots[i]
	start, end := sl.offset, sl.offset+sl.length
	s.deleted += s.t.remove(i)
	s.structural = true
	s.markDirty(start, end)
}

// finish ends the scan: pending nodes are shrunk and the stale nodes of the
// scanned range are deleted.
func (s *Session) finish() {
	limit := math.MaxInt
	if s.broken {
		limit = s.breakAt
	} else {
		s.finishPending(func(int32) bool { return true })
	}
	if s.err == nil {
		s.sweep(s.t.root, limit)
	}
	s.done = true
}

func (s *Session) sweep(i int32, limit int) {
	k := s.t.lowerBound(i, s.begin)
	if j := s.t.lastSpanning(i, k); j >= 0 {
		k = j
	}
	for k < len(s.t.slots[i].children) {
		c := s.t.slots[i].children[k]
		cs := &s.t.slots[c]
		if cs.offset >= limit {
			break
		}
		if s.stale(c) {
			s.remove(c)
			continue
		}
		if cs.stamp == s.stamp {
			s.sweep(c, limit)
		}
		k++
	}
}

// region returns the dirty region clipped to the buffer, or nil when the
// scan changed nothing. A deletion reports at least the empty region at its
// offset.
func (s *Session) region() *Region {
	if !s.dirty {
		return nil
	}
	n := s.buf.Len()
	start := min(max(s.dirtyStart, 0), n)
	end := min(max(s.dirtyEnd, start), n)
	if end == start && !s.structural && !s.deletion {
		return nil
	}
	return &Region{Offset: start, Length: end - start}
}
