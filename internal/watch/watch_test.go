package watch

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/partscan/internal/partition"
	"github.com/dshills/partscan/internal/scanner/rules"
)

func apply(text string, changes []Change) string {
	for _, c := range changes {
		text = c.Apply(text)
	}
	return text
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		want     []Change
	}{
		{"same", "abc", "abc", nil},
		{"insert", "abc", "abXc", []Change{{Offset: 2, Text: "X"}}},
		{"delete", "abc", "ac", []Change{{Offset: 1, Removed: 1}}},
		{"replace", "int a;", "int b;", []Change{{Offset: 4, Removed: 1, Text: "b"}}},
		{"two places", "one two three", "One two threE", []Change{
			{Offset: 0, Removed: 1, Text: "O"},
			{Offset: 12, Removed: 1, Text: "E"},
		}},
		{"invalid utf8", "a\xffb", "a\xfeb", []Change{{Offset: 1, Removed: 1, Text: "\xfe"}}},
		{"from empty", "", "new", []Change{{Text: "new"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.from, tt.to)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Diff() mismatch (-want +got):\n%s", diff)
			}
			if res := apply(tt.from, got); res != tt.to {
				t.Errorf("applying changes gives %q, want %q", res, tt.to)
			}
		})
	}
}

func TestDiffRandom(t *testing.T) {
	rnd := rand.New(rand.NewSource(5))
	const alphabet = "ab\n/*é"
	randText := func() string {
		var b strings.Builder
		for _i, _n := 0, rnd.Intn(40); _i < _n; _i++ {
			b.WriteString(string([]rune(alphabet)[rnd.Intn(6)]))
		}
		return b.String()
	}
	for _i, _n := 0, 200; _i < _n; _i++ {
		from, to := randText(), randText()
		changes := Diff(from, to)
		if got := apply(from, changes); got != to {
			t.Fatalf("Diff(%q, %q) = %v applies to %q", from, to, changes, got)
		}
		for i := 1; i < len(changes); i++ {
			prev := changes[i-1]
			if changes[i].Offset < prev.Offset+len(prev.Text) {
				t.Fatalf("Diff(%q, %q) = %v: changes not ordered", from, to, changes)
			}
		}
	}
}

func TestProject(t *testing.T) {
	r := partition.Region{Offset: 10, Length: 5}
	tests := []struct {
		name string
		c    Change
		want partition.Region
	}{
		{"after", Change{Offset: 15, Text: "xx"}, r},
		{"before", Change{Offset: 2, Removed: 3, Text: "x"}, partition.Region{Offset: 8, Length: 5}},
		{"at start", Change{Offset: 10, Text: "xx"}, partition.Region{Offset: 12, Length: 5}},
		{"inside", Change{Offset: 12, Removed: 1, Text: "xyz"}, partition.Region{Offset: 10, Length: 7}},
		{"overlapping", Change{Offset: 8, Removed: 4}, partition.Region{Offset: 8, Length: 3}},
		{"covering", Change{Offset: 5, Removed: 20, Text: "x"}, partition.Region{Offset: 5, Length: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := project(r, tt.c); got != tt.want {
				t.Errorf("project() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	got := merge([]partition.Region{
		{Offset: 20, Length: 2},
		{Offset: 0, Length: 3},
		{Offset: 3, Length: 1},
		{Offset: 21, Length: 5},
		{Offset: 10, Length: 0},
	})
	want := []partition.Region{
		{Offset: 0, Length: 4},
		{Offset: 10, Length: 0},
		{Offset: 20, Length: 6},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merge() mismatch (-want +got):\n%s", diff)
	}
}

func newDocument(t *testing.T, text string) *Document {
	t.Helper()
	sc, ok := rules.DefaultRegistry().ByName("c")
	if !ok {
		t.Fatal("c language missing")
	}
	doc, err := NewDocument(partition.New(sc, partition.WithValidation(true)), text)
	if err != nil {
		t.Fatalf("NewDocument() error = %v", err)
	}
	return doc
}

func partitions(t *testing.T, p *partition.Partitioner, n int) []partition.Partition {
	t.Helper()
	parts, err := p.ComputePartitioning(0, n, false)
	if err != nil {
		t.Fatal(err)
	}
	return parts
}

func TestDocumentUpdate(t *testing.T) {
	doc := newDocument(t, "int a; /* one */\nint b;\n")

	regions, err := doc.Update("int a; /* one \n int b; */\nint b; // two\n")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(regions) == 0 {
		t.Fatal("Update() reported no regions")
	}
	text := doc.Buffer().Text()
	for i, r := range regions {
		if r.Offset < 0 || r.End() > len(text) || (i > 0 && r.Offset <= regions[i-1].End()) {
			t.Errorf("regions %v are not sorted, disjoint and inside the text", regions)
		}
	}

	fresh := newDocument(t, text)
	if diff := cmp.Diff(partitions(t, fresh.Partitioner(), len(text)), partitions(t, doc.Partitioner(), len(text))); diff != "" {
		t.Errorf("partitions mismatch (-full +incremental):\n%s", diff)
	}

	regions, err = doc.Update(text)
	if err != nil || regions != nil {
		t.Errorf("Update(same) = %v, %v, want no regions", regions, err)
	}
}

func TestWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.c")
	if err := os.WriteFile(path, []byte("int a;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc := newDocument(t, "int a;\n")

	got := make(chan []partition.Region, 1)
	w, err := New(path, doc, func(_ *Document, regions []partition.Region) {
		select {
		case got <- regions:
		default:
		}
	}, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	}()

	// fsnotify needs a moment to register the directory
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case regions := <-got:
			if len(regions) == 0 {
				t.Fatal("handler called without regions")
			}
			if text := doc.Buffer().Text(); text != "int a; /* b */\n" {
				t.Fatalf("buffer = %q after reload", text)
			}
			ct, err := doc.Partitioner().ContentType(9, false)
			if err != nil || ct != "comment" {
				t.Errorf("ContentType(9) = %q, %v, want comment", ct, err)
			}
			return
		case <-tick.C:
			// save the way editors do, so no reload sees a partial file
			tmp := path + ".tmp"
			if err := os.WriteFile(tmp, []byte("int a; /* b */\n"), 0o644); err != nil {
				t.Fatal(err)
			}
			if err := os.Rename(tmp, path); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no reload within 5s")
		}
	}
}
