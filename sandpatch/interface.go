package sandpatch

import (
	"context"

	"github.com/sokinpui/sandpatch/internal/fs"
	"github.com/sokinpui/sandpatch/internal/parser"
	"github.com/sokinpui/sandpatch/model"
)

// ApplyPatch applies a single patch under root with default settings.
func ApplyPatch(root, patch string) model.Result {
	return New(fs.StaticRoot(root)).Apply(context.Background(), patch)
}

// RewriteFile replaces path under root with content.
func RewriteFile(root, path, content string) model.Result {
	return New(fs.StaticRoot(root)).Rewrite(context.Background(), path, content)
}

// ExtractPatches returns the patches contained in text: text itself when it
// is a patch, otherwise every fenced markdown code block holding one.
func ExtractPatches(text string) ([]string, error) {
	return parser.ExtractPatches(text)
}
