package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ExtractPatches splits free-form input into individual patch texts. Input
// that already starts with the begin marker is a single patch. Otherwise,
// typically an assistant reply in markdown, every fenced code block whose
// body starts with the begin marker is returned, in document order.
func ExtractPatches(source string) ([]string, error) {
	if startsWithBegin(source) {
		return []string{source}, nil
	}
	return fencedPatches([]byte(source))
}

// fencedPatches walks the markdown AST of source and collects the bodies of
// fenced code blocks that hold a patch. The fence's info string is ignored:
// replies label patches "diff", "patch", "text" or nothing at all.
func fencedPatches(source []byte) ([]string, error) {
	var patches []string
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var body bytes.Buffer
		lines := block.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			body.Write(line.Value(source))
		}
		if startsWithBegin(body.String()) {
			patches = append(patches, body.String())
		}
		return ast.WalkSkipChildren, nil
	}

	if err := ast.Walk(doc, walker); err != nil {
		return nil, err
	}
	return patches, nil
}

func startsWithBegin(s string) bool {
	return strings.HasPrefix(strings.TrimLeft(s, " \t\r\n"), BeginMarker)
}
