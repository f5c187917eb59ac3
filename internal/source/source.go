package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/mattn/go-isatty"

	"github.com/sokinpui/sandpatch/internal/parser"
	"github.com/sokinpui/sandpatch/internal/ui"
)

// Input is one patch text together with where it was read from.
type Input struct {
	Origin string
	Patch  string
}

// Provider determines and retrieves the source content.
type Provider struct {
	stdin      io.Reader
	isTerminal func() bool
	clipboard  func() (string, error)
}

// New creates a Provider reading from the process's stdin and the system
// clipboard.
func New() *Provider {
	return &Provider{
		stdin: os.Stdin,
		isTerminal: func() bool {
			fd := os.Stdin.Fd()
			return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		},
		clipboard: clipboard.ReadAll,
	}
}

// GetContent retrieves content from stdin (if piped) or the clipboard.
func (sp *Provider) GetContent() (origin, content string, err error) {
	if !sp.isTerminal() {
		ui.Header("--- Reading from stdin ---")
		data, err := io.ReadAll(sp.stdin)
		if err != nil {
			return "", "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return "stdin", string(data), nil
	}

	ui.Header("--- Reading from clipboard ---")
	content, err = sp.clipboard()
	if err != nil {
		return "", "", fmt.Errorf("failed to read from clipboard: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		ui.Warning("Clipboard is empty. Nothing to process.")
		return "clipboard", "", nil
	}
	return "clipboard", content, nil
}

// Patches collects the patches to apply. Each named file is read in order;
// without files the content comes from GetContent. Markdown input yields one
// patch per fenced patch block.
func (sp *Provider) Patches(files []string) ([]Input, error) {
	if len(files) == 0 {
		origin, content, err := sp.GetContent()
		if err != nil || content == "" {
			return nil, err
		}
		return split(origin, content)
	}

	var inputs []Input
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read patch file: %w", err)
		}
		found, err := split(f, string(data))
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, found...)
	}
	return inputs, nil
}

func split(origin, content string) ([]Input, error) {
	patches, err := parser.ExtractPatches(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", origin, err)
	}
	if len(patches) == 0 {
		// Let the engine report the format error for this input.
		return []Input{{Origin: origin, Patch: content}}, nil
	}

	inputs := make([]Input, len(patches))
	for i, p := range patches {
		name := origin
		if len(patches) > 1 {
			name = fmt.Sprintf("%s#%d", origin, i+1)
		}
		inputs[i] = Input{Origin: name, Patch: p}
	}
	return inputs, nil
}
