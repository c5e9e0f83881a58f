// Package luascan implements partition.Scanner with a Lua script.
//
// A script declares the node types it produces, the root type, and the
// functions the partitioner calls:
//
//	types = {
//	    DOC = "code",
//	    COMMENT = { content = "comment", open_end = true },
//	}
//	root = "DOC"
//
//	-- optional, defaults to the candidate
//	function restart(node, candidate)
//	    return node:offset()
//	end
//
//	function execute(scan)
//	    local pos = scan:begin_offset()
//	    ...
//	    local n = scan:add("COMMENT", scan:begin_node(), pos, 2)
//	    scan:expand(n, stop, true)
//	end
//
// Offsets are zero-based byte offsets, as in the partition package. The
// scan object offers begin_offset, begin_node, root, len, text, byte, add,
// expand and mark_dirty_end. Nodes offer offset, length, end_offset, type,
// parent, is_root, child_count and child.
//
// When a session call breaks the scan or detects a protocol violation it
// raises a Lua error that unwinds the script. The session keeps the
// authoritative state, so a script that catches the error with pcall still
// has no further effect.
//
// Scripts run without the io, os, debug and package libraries, and every
// call is bounded by a timeout.
package luascan
