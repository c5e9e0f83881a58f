package main

import (
	"fmt"
	"hash/fnv"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/dshills/partscan/internal/partition"
)

// snippetLen is the number of bytes of partition text shown per line.
const snippetLen = 48

type colorFunc func(string, ...any) string

// printer writes partitions colored by content type.
type printer struct {
	out    io.Writer
	colors map[string]colorFunc
	dim    colorFunc
}

var palette = []colorFunc{
	color.CyanString,
	color.YellowString,
	color.RGB(196, 96, 16).SprintfFunc(),
	color.RGB(128, 168, 196).SprintfFunc(),
	color.RGB(168, 0, 196).SprintfFunc(),
}

func newPrinter(out io.Writer) *printer {
	return &printer{
		out: out,
		colors: map[string]colorFunc{
			"code":         fmt.Sprintf,
			"text":         fmt.Sprintf,
			"comment":      color.BlueString,
			"string":       color.RGB(8, 196, 16).SprintfFunc(),
			"preprocessor": color.MagentaString,
		},
		dim: color.RGB(96, 96, 96).SprintfFunc(),
	}
}

// color returns the color of a content type. Unknown content types get a
// stable color from the palette.
func (pr *printer) color(content string) colorFunc {
	if c, ok := pr.colors[content]; ok {
		return c
	}
	h := fnv.New32a()
	h.Write([]byte(content))
	c := palette[h.Sum32()%uint32(len(palette))]
	pr.colors[content] = c
	return c
}

// partitions prints the partitions intersecting r, one per line. An empty
// region prints the partition containing its offset.
func (pr *printer) partitions(p *partition.Partitioner, text string, r partition.Region) error {
	var parts []partition.Partition
	var err error
	if r.Length == 0 && len(text) > 0 {
		var part partition.Partition
		part, err = p.Partition(r.Offset, false)
		parts = []partition.Partition{part}
	} else {
		parts, err = p.ComputePartitioning(r.Offset, r.Length, false)
	}
	if err != nil {
		return err
	}
	for _, part := range parts {
		c := pr.color(part.ContentType())
		fmt.Fprintf(pr.out, "%s %s %s\n",
			pr.dim("%6d %6d", part.Offset, part.End()),
			c("%-16s", part.Type.ID()),
			c("%s", snippet(text[part.Offset:part.End()])),
		)
	}
	return nil
}

// tree prints the node tree, indented by depth.
func (pr *printer) tree(n partition.Node, text string) {
	var walk func(n partition.Node, depth int)
	walk = func(n partition.Node, depth int) {
		c := pr.color(n.Type().ContentType())
		line := c("%s%s", strings.Repeat("  ", depth), n)
		if n.ChildCount() == 0 {
			line += " " + c("%s", snippet(text[n.Offset():n.End()]))
		}
		fmt.Fprintln(pr.out, line)
		for i, _n := 0, n.ChildCount(); i < _n; i++ {
			walk(n.Child(i), depth+1)
		}
	}
	walk(n, 0)
}

// header introduces a changed region in watch mode.
func (pr *printer) header(r partition.Region) {
	fmt.Fprintln(pr.out, pr.dim("-- changed %v", r))
}

// snippet quotes s, shortened to snippetLen bytes.
func snippet(s string) string {
	if len(s) <= snippetLen {
		return strconv.Quote(s)
	}
	return strconv.Quote(s[:snippetLen]) + "..."
}
