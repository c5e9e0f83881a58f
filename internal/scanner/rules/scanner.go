package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/partscan/internal/partition"
)

// rule is a compiled region, fill or root.
type rule struct {
	typ    partition.BasicType
	begin  string
	end    string
	escape byte
	eol    bool
	root   bool
	isFill bool

	fill     *rule
	regions  []*rule
	children map[string]*rule

	// stops marks the first bytes at which the container may close or a
	// nested region may begin.
	stops [256]bool
}

// container reports whether the rule holds nested nodes.
func (r *rule) container() bool {
	return r.root || len(r.regions) > 0 || r.fill != nil
}

// Scanner is a partition.Scanner driven by a compiled Definition.
type Scanner struct {
	name       string
	extensions []string
	root       *rule

	// back is how far a restart moves before the candidate so that no
	// decision before the restart looked at edited text.
	back int
}

// Compile validates def and builds a Scanner from it.
func Compile(def *Definition) (*Scanner, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	root := &rule{
		typ:  partition.BasicType{Name: def.Root, Content: def.Content},
		root: true,
	}
	if root.typ.Name == "" {
		root.typ.Name = "DOCUMENT"
	}
	if root.typ.Content == "" {
		root.typ.Content = "text"
	}
	sc := &Scanner{name: def.Name, root: root}
	for _, ext := range def.Extensions {
		sc.extensions = append(sc.extensions, normalizeExt(ext))
	}

	longest := 1
	sc.compileChildren(root, def.Fill, def.Regions, &longest)
	sc.back = longest - 1
	return sc, nil
}

func (sc *Scanner) compileChildren(parent *rule, fill string, regions []Region, longest *int) {
	parent.children = make(map[string]*rule, len(regions)+1)
	if fill != "" {
		parent.fill = &rule{
			typ:    partition.BasicType{Name: fill, Content: parent.typ.ContentType()},
			isFill: true,
		}
		parent.children[fill] = parent.fill
	}
	for _, def := range regions {
		r := &rule{
			typ: partition.BasicType{
				Name:        def.Type,
				Content:     def.Content,
				OpenAtBegin: def.OpenBegin,
				OpenAtEnd:   def.OpenEnd,
			},
			begin: def.Begin,
			end:   def.End,
			eol:   def.EOL,
		}
		if def.Escape != "" {
			r.escape = def.Escape[0]
		}
		*longest = max(*longest, len(def.Begin), len(def.End))
		sc.compileChildren(r, def.Fill, def.Regions, longest)
		parent.regions = append(parent.regions, r)
		parent.children[def.Type] = r
		parent.stops[def.Begin[0]] = true
	}
	sort.SliceStable(parent.regions, func(i, j int) bool {
		return len(parent.regions[i].begin) > len(parent.regions[j].begin)
	})
	if parent.end != "" {
		parent.stops[parent.end[0]] = true
	}
	if parent.eol {
		parent.stops['\n'] = true
	}
}

// Name returns the language name.
func (sc *Scanner) Name() string {
	return sc.name
}

// Extensions returns the file extensions of the language.
func (sc *Scanner) Extensions() []string {
	return sc.extensions
}

// RootType implements partition.Scanner.
func (sc *Scanner) RootType() partition.NodeType {
	return sc.root.typ
}

// RestartOffset implements partition.Scanner. Scanning restarts inside a
// container or fill node, or at the start of the region covering the
// candidate. A candidate within a delimiter of a container restarts the
// whole container.
func (sc *Scanner) RestartOffset(node partition.Node, _ partition.TextBuffer, candidate int) (int, error) {
	r := max(candidate-sc.back, 0)
	n := node
	for !n.IsRoot() {
		p, ok := n.Parent()
		if !ok {
			break
		}
		n = p
	}
	ru := sc.root
	for {
		c, ok := childAt(n, r)
		if !ok {
			return r, nil
		}
		cr := ru.children[c.Type().ID()]
		switch {
		case cr == nil:
			return 0, fmt.Errorf("%w: %v", ErrForeignNode, c)
		case cr.isFill:
			return r, nil
		case !cr.container() || r < c.Offset()+len(cr.begin):
			return c.Offset(), nil
		case r > c.End()-len(cr.end):
			// inside the closing delimiter
			return c.Offset(), nil
		}
		n, ru = c, cr
	}
}

// childAt returns the child of n that strictly contains offset.
func childAt(n partition.Node, offset int) (partition.Node, bool) {
	k := sort.Search(n.ChildCount(), func(i int) bool {
		return n.Child(i).Offset() >= offset
	})
	if k == 0 {
		return partition.Node{}, false
	}
	c := n.Child(k - 1)
	if c.End() <= offset {
		return partition.Node{}, false
	}
	return c, true
}

type frame struct {
	node partition.Node
	rule *rule
}

// frames rebuilds the scanner state described by node and its ancestors.
func (sc *Scanner) frames(node partition.Node) ([]frame, error) {
	var chain []partition.Node
	for n := node; n.Valid(); {
		chain = append(chain, n)
		p, ok := n.Parent()
		if !ok {
			break
		}
		n = p
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: invalid begin node", ErrForeignNode)
	}
	stack := make([]frame, 0, len(chain))
	stack = append(stack, frame{chain[len(chain)-1], sc.root})
	for i := len(chain) - 2; i >= 0; i-- {
		parent := stack[len(stack)-1].rule
		ru := parent.children[chain[i].Type().ID()]
		if ru == nil {
			return nil, fmt.Errorf("%w: %v", ErrForeignNode, chain[i])
		}
		stack = append(stack, frame{chain[i], ru})
	}
	return stack, nil
}

// Execute implements partition.Scanner.
func (sc *Scanner) Execute(s *partition.Session) error {
	stack, err := sc.frames(s.BeginNode())
	if err != nil {
		return err
	}
	rd := newReader(s)
	pos := s.BeginOffset()
	if top := stack[len(stack)-1]; !top.rule.isFill {
		pos = max(pos, top.node.Offset()+len(top.rule.begin))
	}

	for {
		if rd.err != nil {
			return rd.err
		}
		top := stack[len(stack)-1]
		ru := top.rule

		if !ru.container() {
			var end int
			if ru.isFill {
				end = stack[len(stack)-2].rule.gapEnd(rd, pos)
			} else {
				end = ru.leafEnd(rd, pos)
			}
			if rd.err != nil {
				return rd.err
			}
			if err := s.Expand(top.node, end, true); err != nil {
				return err
			}
			stack, pos = stack[:len(stack)-1], end
			continue
		}

		if end, ok := ru.closeAt(rd, pos); ok {
			if err := s.Expand(top.node, end, true); err != nil {
				return err
			}
			stack, pos = stack[:len(stack)-1], end
			continue
		}
		if pos >= rd.n {
			return nil
		}

		sub := ru.beginAt(rd, pos)
		if rd.err != nil {
			return rd.err
		}
		switch {
		case sub != nil:
			n, err := s.Add(sub.typ, top.node, pos, len(sub.begin))
			if err != nil {
				return err
			}
			stack = append(stack, frame{n, sub})
			pos += len(sub.begin)
		case ru.fill != nil:
			n, err := s.Add(ru.fill.typ, top.node, pos, 0)
			if err != nil {
				return err
			}
			stack = append(stack, frame{n, ru.fill})
		default:
			pos = ru.gapEnd(rd, pos+1)
		}
	}
}

// closeAt reports whether container r ends at pos and where its end is.
func (r *rule) closeAt(rd *reader, pos int) (int, bool) {
	if r.root {
		return 0, false
	}
	if pos >= rd.n {
		return rd.n, true
	}
	if r.end != "" && rd.hasPrefix(pos, r.end) {
		return pos + len(r.end), true
	}
	if r.eol {
		if b, ok := rd.byteAt(pos); ok && b == '\n' {
			return pos, true
		}
	}
	return 0, false
}

// beginAt returns the nested region starting at pos.
func (r *rule) beginAt(rd *reader, pos int) *rule {
	for _, sub := range r.regions {
		if rd.hasPrefix(pos, sub.begin) {
			return sub
		}
	}
	return nil
}

// gapEnd returns the first offset at or after from where container r
// closes or a nested region begins.
func (r *rule) gapEnd(rd *reader, from int) int {
	for i := from; i < rd.n; i++ {
		b, ok := rd.byteAt(i)
		if !ok {
			return i
		}
		if !r.stops[b] {
			continue
		}
		if _, ok := r.closeAt(rd, i); ok {
			return i
		}
		if r.beginAt(rd, i) != nil {
			return i
		}
	}
	return rd.n
}

// leafEnd returns the end of a region without nested nodes whose content
// starts at pos.
func (r *rule) leafEnd(rd *reader, pos int) int {
	for i := pos; i < rd.n; {
		b, ok := rd.byteAt(i)
		if !ok {
			return i
		}
		switch {
		case r.escape != 0 && b == r.escape:
			i += 2
			continue
		case r.end != "" && b == r.end[0] && rd.hasPrefix(i, r.end):
			return i + len(r.end)
		case r.eol && b == '\n':
			return i
		}
		i++
	}
	return rd.n
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}
	return ext
}
