package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sokinpui/sandpatch/model"
)

func TestParseAdd(t *testing.T) {
	p, err := Parse("*** Begin Patch\n*** Add File: web/hello.txt\n+foo\n+bar\n*** End Patch\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := &Patch{Op: model.OpAdd, Path: "web/hello.txt", Content: "foo\nbar\n"}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParseAddSkipsMarkerLines(t *testing.T) {
	p, err := Parse("*** Begin Patch\n*** Add File: a.txt\n+++ b/a.txt\n+only\n")
	if err != nil {
		t.Fatal(err)
	}
	if p.Content != "only\n" {
		t.Errorf("Content = %q, want %q", p.Content, "only\n")
	}
}

func TestParseAddEmpty(t *testing.T) {
	p, err := Parse("*** Begin Patch\n*** Add File: empty.txt\n*** End Patch")
	if err != nil {
		t.Fatal(err)
	}
	if p.Content != "" {
		t.Errorf("Content = %q, want empty", p.Content)
	}
}

func TestParseDelete(t *testing.T) {
	p, err := Parse("*** Begin Patch\n*** Delete File: old.txt\n*** End Patch\n")
	if err != nil {
		t.Fatal(err)
	}
	want := &Patch{Op: model.OpDelete, Path: "old.txt"}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParseUpdate(t *testing.T) {
	text := strings.Join([]string{
		"*** Begin Patch",
		"*** Update File: src/main.go",
		"@@ -2,3 +2,3 @@",
		"func main() {",
		"-\tprintln(\"a\")",
		"+\tprintln(\"b\")",
		"}",
		"@@ -10,1 +10,2 @@",
		"-x",
		"+y",
		"+z",
		"*** End Patch",
		"",
	}, "\n")

	p, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := &Patch{
		Op:   model.OpUpdate,
		Path: "src/main.go",
		Hunks: []Hunk{
			{
				Old: Range{Start: 2, Count: 3},
				New: Range{Start: 2, Count: 3},
				Lines: []Line{
					{Kind: Context, Text: "func main() {"},
					{Kind: Remove, Text: "\tprintln(\"a\")"},
					{Kind: Add, Text: "\tprintln(\"b\")"},
					{Kind: Context, Text: "}"},
				},
			},
			{
				Old: Range{Start: 10, Count: 1},
				New: Range{Start: 10, Count: 2},
				Lines: []Line{
					{Kind: Remove, Text: "x"},
					{Kind: Add, Text: "y"},
					{Kind: Add, Text: "z"},
				},
			},
		},
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParseContextKeepsLeadingWhitespace(t *testing.T) {
	p, err := Parse("*** Begin Patch\n*** Update File: a.py\n@@ -1,2 +1,2 @@\n    indented\n-old\n+new\n")
	if err != nil {
		t.Fatal(err)
	}
	got := p.Hunks[0].Lines[0]
	if got.Kind != Context || got.Text != "    indented" {
		t.Errorf("first line = %+v, want verbatim context %q", got, "    indented")
	}
}

func TestParseNormalizesCRLF(t *testing.T) {
	p, err := Parse("*** Begin Patch\r\n*** Update File: a.txt\r\n@@ -1,1 +1,1 @@\r\n-a\r\n+b\r\n")
	if err != nil {
		t.Fatal(err)
	}
	if p.Path != "a.txt" || p.Hunks[0].Lines[1].Text != "b" {
		t.Errorf("CRLF leaked into parse result: %+v", p)
	}
}

func TestParseOptionalCounts(t *testing.T) {
	p, err := Parse("*** Begin Patch\n*** Update File: a.txt\n@@ -3 +3 @@ func foo\n-a\n+b\n")
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Hunks[0].Old; got != (Range{Start: 3, Count: 1}) {
		t.Errorf("Old = %+v, want {3 1}", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		msg  string
	}{
		{name: "no begin marker", text: "*** Update File: a.txt\n", msg: "missing begin marker"},
		{name: "empty", text: "", msg: "missing begin marker"},
		{name: "no header", text: "*** Begin Patch\n+foo\n*** End Patch\n", msg: "missing operation header"},
		{name: "two headers", text: "*** Begin Patch\n*** Add File: a\n+x\n*** Delete File: b\n", msg: "multiple operation headers"},
		{name: "empty path", text: "*** Begin Patch\n*** Delete File:   \n", msg: "missing file path"},
		{name: "bad hunk header", text: "*** Begin Patch\n*** Update File: a\n@@ nonsense @@\n", msg: "malformed hunk header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			if !errors.Is(err, model.ErrFormat) {
				t.Fatalf("Parse error = %v, want format error", err)
			}
			if !strings.HasPrefix(err.Error(), tt.msg) {
				t.Errorf("error = %q, want prefix %q", err.Error(), tt.msg)
			}
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	text := "*** Begin Patch\n*** Update File: a.txt\n@@ -1,2 +1,2 @@\nkeep\n-old\n+new\n*** End Patch\n"
	p, err := Parse(text)
	if err != nil {
		t.Fatal(err)
	}
	if got := Format(p); got != text {
		t.Errorf("Format = %q, want %q", got, text)
	}
}

func TestExtractPatches(t *testing.T) {
	t.Run("raw patch", func(t *testing.T) {
		raw := "\n*** Begin Patch\n*** Delete File: a\n*** End Patch\n"
		got, err := ExtractPatches(raw)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{raw}, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("markdown reply", func(t *testing.T) {
		reply := "Here is the change:\n\n```diff\n*** Begin Patch\n*** Delete File: a\n*** End Patch\n```\n\nAnd another:\n\n```\n*** Begin Patch\n*** Add File: b\n+x\n*** End Patch\n```\n\n```go\nfunc main() {}\n```\n"
		got, err := ExtractPatches(reply)
		if err != nil {
			t.Fatal(err)
		}
		want := []string{
			"*** Begin Patch\n*** Delete File: a\n*** End Patch\n",
			"*** Begin Patch\n*** Add File: b\n+x\n*** End Patch\n",
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}
