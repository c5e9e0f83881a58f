package partition

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dshills/partscan/internal/textbuf"
)

var (
	docType     = BasicType{Name: "DOC", Content: "code"}
	codeType    = BasicType{Name: "CODE", Content: "code"}
	commentType = BasicType{Name: "COMMENT", Content: "comment"}
	stringType  = BasicType{Name: "STRING", Content: "string"}
	embedType   = BasicType{Name: "EMBED", Content: "embed"}
)

// blockScanner classifies C-style block comments, double-quoted strings
// with backslash escapes and "<% %>" embedded regions. Text outside them is
// covered by CODE fill nodes.
type blockScanner struct{}

func (blockScanner) RootType() NodeType { return docType }

func (blockScanner) RestartOffset(n Node, _ TextBuffer, candidate int) (int, error) {
	switch n.Type().ID() {
	case "COMMENT", "STRING":
		return n.Offset(), nil
	}
	return candidate, nil
}

func (blockScanner) Execute(s *Session) error {
	text, err := s.Slice(0, s.Len())
	if err != nil {
		return err
	}
	var stack []Node
	for n := s.BeginNode(); n.Valid(); n, _ = n.Parent() {
		stack = append([]Node{n}, stack...)
	}
	pos := s.BeginOffset()
	for {
		top := stack[len(stack)-1]
		switch top.Type().ID() {
		case "COMMENT":
			end := len(text)
			if i := strings.Index(text[pos:], "*/"); i >= 0 {
				end = pos + i + 2
			}
			if err := s.Expand(top, end, true); err != nil {
				return err
			}
			stack, pos = stack[:len(stack)-1], end
		case "STRING":
			end := len(text)
			for i := pos; i < len(text); i++ {
				if text[i] == '\\' {
					i++
					continue
				}
				if text[i] == '"' {
					end = i + 1
					break
				}
			}
			if err := s.Expand(top, end, true); err != nil {
				return err
			}
			stack, pos = stack[:len(stack)-1], end
		case "CODE":
			inEmbed := stack[len(stack)-2].Type().ID() == "EMBED"
			end := nextToken(text, pos, inEmbed)
			if err := s.Expand(top, end, true); err != nil {
				return err
			}
			stack, pos = stack[:len(stack)-1], end
		default:
			inEmbed := top.Type().ID() == "EMBED"
			rest := text[pos:]
			var (
				n   Node
				err error
			)
			switch {
			case inEmbed && strings.HasPrefix(rest, "%>"):
				if err := s.Expand(top, pos+2, true); err != nil {
					return err
				}
				stack, pos = stack[:len(stack)-1], pos+2
				continue
			case rest == "":
				if !inEmbed {
					return nil
				}
				if err := s.Expand(top, pos, true); err != nil {
					return err
				}
				stack = stack[:len(stack)-1]
				continue
			case strings.HasPrefix(rest, "/*"):
				n, err = s.Add(commentType, top, pos, 2)
				pos += 2
			case strings.HasPrefix(rest, `"`):
				n, err = s.Add(stringType, top, pos, 1)
				pos++
			case strings.HasPrefix(rest, "<%"):
				n, err = s.Add(embedType, top, pos, 2)
				pos += 2
			default:
				n, err = s.Add(codeType, top, pos, 0)
			}
			if err != nil {
				return err
			}
			stack = append(stack, n)
		}
	}
}

func nextToken(text string, pos int, inEmbed bool) int {
	for i := pos; i < len(text); i++ {
		switch {
		case text[i] == '"':
			return i
		case strings.HasPrefix(text[i:], "/*"), strings.HasPrefix(text[i:], "<%"):
			return i
		case inEmbed && strings.HasPrefix(text[i:], "%>"):
			return i
		}
	}
	return len(text)
}

// funcScanner delegates to functions, for scripted scans.
type funcScanner struct {
	root    NodeType
	restart func(n Node, buf TextBuffer, candidate int) (int, error)
	execute func(s *Session) error
}

func (f *funcScanner) RootType() NodeType {
	if f.root == nil {
		return docType
	}
	return f.root
}

func (f *funcScanner) RestartOffset(n Node, buf TextBuffer, candidate int) (int, error) {
	if f.restart == nil {
		return candidate, nil
	}
	return f.restart(n, buf, candidate)
}

func (f *funcScanner) Execute(s *Session) error {
	return f.execute(s)
}

// connect returns a partitioner connected to a buffer holding text.
func connect(t *testing.T, sc Scanner, text string, opts ...Option) (*Partitioner, *textbuf.Buffer) {
	t.Helper()
	buf := textbuf.New(text)
	p := New(sc, append([]Option{WithValidation(true)}, opts...)...)
	if err := p.Connect(buf); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return p, buf
}

// partitions returns the partitioning of the whole buffer as strings.
func partitions(t *testing.T, p *Partitioner, zero bool) []string {
	t.Helper()
	parts, err := p.ComputePartitioning(0, p.buf.Len(), zero)
	if err != nil {
		t.Fatalf("ComputePartitioning() error = %v", err)
	}
	out := make([]string, len(parts))
	for i, part := range parts {
		out[i] = fmt.Sprintf("[%d:%d)=%s", part.Offset, part.End(), part.Type.ID())
	}
	return out
}

// dump renders the subtree of n, one node per line.
func dump(n Node) string {
	var b strings.Builder
	var walk func(n Node, depth int)
	walk = func(n Node, depth int) {
		fmt.Fprintf(&b, "%s%s\n", strings.Repeat("  ", depth), n)
		for i := 0; i < n.ChildCount(); i++ {
			walk(n.Child(i), depth+1)
		}
	}
	walk(n, 0)
	return b.String()
}

// assertValid fails the test if the tree invariants do not hold.
func assertValid(t *testing.T, p *Partitioner) {
	t.Helper()
	if err := p.tree.validate(); err != nil {
		t.Fatalf("tree invalid: %v\n%s", err, dump(p.Root()))
	}
	if p.tree.end(p.tree.root) != p.buf.Len() {
		t.Fatalf("root end = %d, want %d", p.tree.end(p.tree.root), p.buf.Len())
	}
}
