package partition

import (
	"testing"

	"github.com/dshills/partscan/internal/textbuf"
)

func TestEditMapping(t *testing.T) {
	// replace [4, 7) with 5 bytes
	e := edit{offset: 4, removed: 3, inserted: 5}
	tests := []struct {
		pos          int
		start, end   int
		startDamaged bool
		endDamaged   bool
	}{
		{0, 0, 0, false, false},
		{3, 3, 3, false, false},
		{4, 4, 4, true, false},
		{5, 4, 4, true, true},
		{6, 4, 4, true, true},
		{7, 9, 4, false, true},
		{8, 10, 10, false, false},
	}
	for _, tt := range tests {
		start, sd := e.mapStart(tt.pos)
		end, ed := e.mapEnd(tt.pos)
		if start != tt.start || sd != tt.startDamaged {
			t.Errorf("mapStart(%d) = %d, %v, want %d, %v", tt.pos, start, sd, tt.start, tt.startDamaged)
		}
		if end != tt.end || ed != tt.endDamaged {
			t.Errorf("mapEnd(%d) = %d, %v, want %d, %v", tt.pos, end, ed, tt.end, tt.endDamaged)
		}
	}
}

func TestProject(t *testing.T) {
	tests := []struct {
		name     string
		offset   int
		removed  int
		inserted string
		want     []string
	}{
		{"insert before", 0, 0, "xx", []string{"X[4:8)", "Y[5:7)", "Z[10:12)"}},
		{"insert inside", 5, 0, "xx", []string{"X[2:8)", "Y[3:5)", "Z[10:12)"}},
		{"insert at end", 6, 0, "xx", []string{"X[2:6)", "Y[3:5)", "Z[10:12)"}},
		{"insert at start", 2, 0, "xx", []string{"X[4:8)", "Y[5:7)", "Z[10:12)"}},
		{"delete inside", 3, 2, "", []string{"X[2:4)", "Y[3:3)", "Z[6:8)"}},
		{"delete across end", 5, 3, "", []string{"X[2:5)", "Y[3:5)", "Z[5:7)"}},
		{"delete all", 0, 10, "", []string{"X[0:0)", "Y[0:0)", "Z[0:0)"}},
		{"replace covering", 1, 7, "abc", []string{"X[1:1)", "Y[1:1)", "Z[4:6)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, nodes := build(t, "0123456789",
				nodeSpec{xType, -1, 2, 4},
				nodeSpec{yType, 0, 3, 2},
				nodeSpec{zType, -1, 8, 2},
			)
			buf := tree.buf.(*textbuf.Buffer)
			if _, err := buf.Replace(tt.offset, tt.removed, tt.inserted); err != nil {
				t.Fatal(err)
			}
			tree.project(tt.offset, tt.removed, len(tt.inserted))
			for i, n := range nodes {
				if got := n.String(); got != tt.want[i] {
					t.Errorf("node %d = %s, want %s", i, got, tt.want[i])
				}
			}
			if err := tree.validate(); err != nil {
				t.Errorf("validate() = %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(tr *Tree, nodes []Node)
	}{
		{"overlap", func(tr *Tree, n []Node) { tr.slots[n[1].idx].offset = 1 }},
		{"outside parent", func(tr *Tree, n []Node) { tr.slots[n[2].idx].length = 5 }},
		{"wrong parent", func(tr *Tree, n []Node) { tr.slots[n[2].idx].parent = tr.root }},
		{"empty inside sibling", func(tr *Tree, n []Node) { tr.slots[n[1].idx].offset = 1; tr.slots[n[1].idx].length = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, nodes := build(t, "0123456789",
				nodeSpec{xType, -1, 0, 3},
				nodeSpec{yType, -1, 4, 4},
				nodeSpec{zType, 1, 5, 2},
			)
			tt.corrupt(tree, nodes)
			if err := tree.validate(); err == nil {
				t.Error("validate() = nil, want error")
			}
		})
	}
}

func TestEnclosing(t *testing.T) {
	tree, nodes := build(t, "0123456789",
		nodeSpec{xType, -1, 2, 6},
		nodeSpec{yType, 0, 4, 2},
	)
	tests := []struct {
		offset int
		want   int32
	}{
		{0, tree.root},
		{2, tree.root},
		{3, nodes[0].idx},
		{4, nodes[0].idx},
		{5, nodes[1].idx},
		{6, nodes[0].idx},
		{8, tree.root},
	}
	for _, tt := range tests {
		if got := tree.enclosing(tt.offset); got != tt.want {
			t.Errorf("enclosing(%d) = %s, want %s", tt.offset, tree.handle(got), tree.handle(tt.want))
		}
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		a, al, b, bl int
		want         bool
	}{
		{0, 4, 4, 2, false},
		{0, 4, 3, 2, true},
		{0, 4, 2, 0, true},
		{0, 4, 0, 0, false},
		{0, 4, 4, 0, false},
		{2, 0, 2, 0, false},
		{3, 0, 0, 5, true},
	}
	for _, tt := range tests {
		if got := overlaps(tt.a, tt.al, tt.b, tt.bl); got != tt.want {
			t.Errorf("overlaps(%d, %d, %d, %d) = %v, want %v", tt.a, tt.al, tt.b, tt.bl, got, tt.want)
		}
	}
}

func TestNodeHandleInvalidation(t *testing.T) {
	tree, nodes := build(t, "0123456789", nodeSpec{xType, -1, 0, 3}, nodeSpec{yType, 0, 1, 1})
	tree.remove(nodes[0].idx)
	if nodes[0].Valid() || nodes[1].Valid() {
		t.Error("handles of removed subtree still valid")
	}
	// the freed slot is reused by the next node, the old handle stays invalid
	i := tree.alloc(zType, 5, 1, tree.root, 2)
	tree.insertChild(tree.root, 0, i)
	if nodes[0].Valid() && nodes[0].idx == i {
		t.Error("stale handle resolves to a new node")
	}
	if tree.count() != 2 {
		t.Errorf("count() = %d, want 2", tree.count())
	}
}
