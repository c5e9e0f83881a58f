// Package partition maintains an incremental classification of a text
// buffer into a tree of typed, non-overlapping ranges (partitions).
//
// A Partitioner owns a tree of nodes rooted at a node spanning the whole
// buffer. A pluggable Scanner builds the tree through a Session: it adds
// nodes in ascending offset order and expands them as it finds their ends.
// After an edit the Partitioner projects every node span through the edit,
// picks a conservative restart offset and lets the Scanner rescan from
// there over the existing tree. Nodes the Scanner re-adds at the same
// offset with an equal type are reused, keeping their identity,
// attachments and subtree. As soon as the rescan reaches unchanged text in
// a state the old tree already describes, the session breaks and the rest
// of the tree is kept as is, so the cost of an update follows the size of
// the change rather than the size of the buffer.
//
// Basic usage:
//
//	p := partition.New(scanner)
//	if err := p.Connect(buf); err != nil {
//	    return err
//	}
//
//	// after inserting "X" at offset 5
//	region, err := p.DocumentChanged(5, 0, 1)
//
//	part, err := p.Partition(7, false)
//	parts, err := p.ComputePartitioning(0, buf.Len(), false)
//
// Thread Safety:
//
// A Partitioner is single-threaded and non-reentrant. Callers serialize
// edit notifications and queries; a call made from inside a running scan
// fails with ErrBusy. Node handles given to a Scanner are only meaningful
// during the Execute call that produced them.
package partition
