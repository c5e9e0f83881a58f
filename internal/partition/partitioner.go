package partition

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dshills/partscan/internal/logging"
)

// Stats counts the work done by a Partitioner since it was created.
type Stats struct {
	Scans        int // incremental scans
	FullScans    int // scans of the whole buffer, including recoveries
	Breaks       int // incremental scans that ended early
	Recoveries   int // failed incremental scans replaced by a full scan
	NodesCreated int
	NodesReused  int
	NodesDeleted int
}

// Partitioner keeps the partition tree of one buffer up to date.
type Partitioner struct {
	scanner   Scanner
	base      logrus.FieldLogger
	log       logrus.FieldLogger
	autoBreak bool
	validate  bool

	buf   TextBuffer
	tree  *Tree
	size  int    // buffer length the tree was last synchronized with
	stamp uint64 // scan generation

	busy  bool
	stats Stats
}

// New creates a Partitioner that classifies text with scanner.
func New(scanner Scanner, opts ...Option) *Partitioner {
	p := &Partitioner{
		scanner:   scanner,
		autoBreak: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.base == nil {
		p.base = logging.Discard()
	}
	p.log = p.base.WithField("component", "partition")
	return p
}

// Connect attaches buf and builds the tree with a full scan.
func (p *Partitioner) Connect(buf TextBuffer) error {
	if p.busy {
		return ErrBusy
	}
	if p.buf != nil {
		return ErrAlreadyConnected
	}
	if buf == nil {
		return fmt.Errorf("connect: nil buffer")
	}
	p.buf = buf
	p.size = buf.Len()
	p.log = p.base.WithFields(logrus.Fields{
		"component": "partition",
		"tree":      uuid.NewString(),
	})

	p.busy = true
	defer func() { p.busy = false }()
	p.tree = p.fullScan()
	p.log.WithField("nodes", p.tree.count()).Debug("connected")
	return nil
}

// Disconnect discards the tree and detaches the buffer.
func (p *Partitioner) Disconnect() error {
	if p.busy {
		return ErrBusy
	}
	if p.buf == nil {
		return ErrNotConnected
	}
	p.buf = nil
	p.tree = nil
	p.size = 0
	p.log.Debug("disconnected")
	p.log = p.base.WithField("component", "partition")
	return nil
}

// Connected returns true if a buffer is attached.
func (p *Partitioner) Connected() bool {
	return p.buf != nil
}

// DocumentChanged updates the tree after removed bytes at offset were
// replaced by inserted bytes. It must be called after the buffer was
// mutated. It returns the region whose classification may have changed, or
// nil when the partitioning did not change.
//
// Scanner failures never reach the caller: the tree is rebuilt with a full
// scan and the whole buffer is reported dirty.
func (p *Partitioner) DocumentChanged(offset, removed, inserted int) (*Region, error) {
	if p.busy {
		return nil, ErrBusy
	}
	if p.buf == nil {
		return nil, ErrNotConnected
	}
	n := p.buf.Len()
	if offset < 0 || removed < 0 || inserted < 0 || offset+inserted > n {
		return nil, ErrInvalidEdit
	}

	p.busy = true
	defer func() { p.busy = false }()

	if offset+removed > p.size || p.size-removed+inserted != n {
		p.log.WithFields(logrus.Fields{
			"offset":   offset,
			"removed":  removed,
			"inserted": inserted,
			"tracked":  p.size,
			"length":   n,
		}).Warn("edit does not match buffer length, rescanning")
		return p.rebuild(), nil
	}

	p.tree.project(offset, removed, inserted)
	p.size = n
	defer p.tree.clearDamage()

	begin, node, err := p.restart(offset)
	if err != nil {
		return p.fallback(err), nil
	}

	p.stamp++
	s := newSession(p.tree, p.stamp, begin, node, offset, removed, inserted)
	s.autoBreak = p.autoBreak
	err = p.execute(s)
	switch {
	case s.err != nil:
		err = s.err
	case errors.Is(err, ErrBreak) && s.broken:
		err = nil
	}
	if err != nil {
		return p.fallback(err), nil
	}

	s.finish()
	p.count(s)
	p.stats.Scans++
	if s.broken {
		p.stats.Breaks++
	}
	region := s.region()
	p.log.WithFields(logrus.Fields{
		"begin":   begin,
		"broken":  s.broken,
		"created": s.created,
		"reused":  s.reused,
		"deleted": s.deleted,
		"region":  region,
	}).Debug("rescanned")
	p.check()
	return region, nil
}

// restart picks the offset an incremental scan starts at and the node that
// encloses it.
func (p *Partitioner) restart(offset int) (int, int32, error) {
	line, err := p.buf.LineOfOffset(offset)
	if err != nil {
		return 0, noNode, &BufferAccessError{Offset: offset, Err: err}
	}
	if line > 0 {
		line--
	}
	candidate, err := p.buf.LineOffset(line)
	if err != nil {
		return 0, noNode, &BufferAccessError{Offset: offset, Err: err}
	}
	candidate = min(max(candidate, 0), offset)

	h := p.tree.partitionAt(candidate, true)
	r, err := p.scanner.RestartOffset(p.tree.handle(h.node), p.buf, candidate)
	if err != nil {
		return 0, noNode, err
	}
	if r < 0 || r > candidate {
		return 0, noNode, &ScanProtocolError{
			Op:     "restart",
			Offset: r,
			Reason: fmt.Sprintf("restart offset outside [0, %d]", candidate),
		}
	}
	return r, p.tree.enclosing(r), nil
}

// execute runs the scanner, turning a panic into an error.
func (p *Partitioner) execute(s *Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scanner panic: %v", r)
		}
	}()
	return p.scanner.Execute(s)
}

// fullScan builds a new tree for the whole buffer. When the scanner fails
// the tree holds only the root.
func (p *Partitioner) fullScan() *Tree {
	t := newTree(p.buf, p.scanner.RootType())
	p.stamp++
	s := newFullSession(t, p.stamp)
	err := p.execute(s)
	if s.err != nil {
		err = s.err
	}
	p.stats.FullScans++
	if err != nil {
		p.log.WithError(err).Error("full scan failed, keeping root only")
		return newTree(p.buf, p.scanner.RootType())
	}
	s.finish()
	p.count(s)
	return t
}

// fallback replaces the tree after a failed incremental scan.
func (p *Partitioner) fallback(cause error) *Region {
	p.log.WithError(cause).Warn("incremental scan failed, rescanning buffer")
	p.stats.Recoveries++
	return p.rebuild()
}

// rebuild rescans the whole buffer and reports it dirty.
func (p *Partitioner) rebuild() *Region {
	p.tree = p.fullScan()
	p.size = p.buf.Len()
	p.check()
	if p.size == 0 {
		return nil
	}
	return &Region{Offset: 0, Length: p.size}
}

func (p *Partitioner) count(s *Session) {
	p.stats.NodesCreated += s.created
	p.stats.NodesReused += s.reused
	p.stats.NodesDeleted += s.deleted
}

// check validates the tree when validation is enabled.
func (p *Partitioner) check() {
	if !p.validate {
		return
	}
	if err := p.tree.validate(); err != nil {
		p.log.WithError(err).Error("partition tree is inconsistent")
	}
}

// Partition returns the partition containing offset. With preferOpen, an
// offset on the boundary between two partitions resolves according to the
// tie-break preferences of the adjacent node types.
func (p *Partitioner) Partition(offset int, preferOpen bool) (Partition, error) {
	if err := p.query(offset); err != nil {
		return Partition{}, err
	}
	return p.tree.partitionAt(offset, preferOpen).part, nil
}

// ContentType returns the content type of the partition containing offset.
func (p *Partitioner) ContentType(offset int, preferOpen bool) (string, error) {
	part, err := p.Partition(offset, preferOpen)
	if err != nil {
		return "", err
	}
	return part.ContentType(), nil
}

// NodeAt returns the deepest node whose partition contains offset.
func (p *Partitioner) NodeAt(offset int, preferOpen bool) (Node, error) {
	if err := p.query(offset); err != nil {
		return Node{}, err
	}
	return p.tree.handle(p.tree.partitionAt(offset, preferOpen).node), nil
}

// ComputePartitioning returns the ordered partitions covering
// [offset, offset+length). Zero-length partitions are only included when
// includeZeroLength is set.
func (p *Partitioner) ComputePartitioning(offset, length int, includeZeroLength bool) ([]Partition, error) {
	if err := p.query(offset); err != nil {
		return nil, err
	}
	if length < 0 || offset+length > p.buf.Len() {
		return nil, ErrOffsetOutOfRange
	}
	return p.tree.partitioning(offset, offset+length, includeZeroLength), nil
}

// Root returns the root node, or an invalid Node when not connected.
func (p *Partitioner) Root() Node {
	if p.tree == nil {
		return Node{}
	}
	return p.tree.handle(p.tree.root)
}

// Stats returns the work counters.
func (p *Partitioner) Stats() Stats {
	return p.stats
}

func (p *Partitioner) query(offset int) error {
	switch {
	case p.busy:
		return ErrBusy
	case p.buf == nil:
		return ErrNotConnected
	case offset < 0 || offset > p.buf.Len():
		return ErrOffsetOutOfRange
	}
	return nil
}
