package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sokinpui/sandpatch/model"
)

const (
	BeginMarker = "*** Begin Patch"
	EndMarker   = "*** End Patch"

	addHeader    = "*** Add File: "
	updateHeader = "*** Update File: "
	deleteHeader = "*** Delete File: "
)

// LineKind classifies a line inside a hunk.
type LineKind int

const (
	Context LineKind = iota
	Add
	Remove
)

// Line is one line of a hunk body, stored without its marker.
type Line struct {
	Kind LineKind
	Text string
}

// Range is a 1-based start line and a line count.
type Range struct {
	Start int
	Count int
}

// Hunk is a contiguous replacement unit. Old is interpreted against the
// untouched file; New is informational.
type Hunk struct {
	Old   Range
	New   Range
	Lines []Line
}

// Patch is the parsed form of one patch request. Content is only meaningful
// for add operations and Hunks only for updates.
type Patch struct {
	Op      model.Op
	Path    string
	Content string
	Hunks   []Hunk
}

// hunkHeaderRegex matches "@@ -a,b +c,d @@" with optional counts and an
// optional trailing section label.
var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Parse turns raw patch text into a Patch.
func Parse(text string) (*Patch, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	trimmed := strings.TrimLeft(text, " \t\n")
	if !strings.HasPrefix(trimmed, BeginMarker) {
		return nil, model.FormatError("missing begin marker")
	}

	lines := splitLines(trimmed)[1:]

	headerAt := -1
	var p Patch
	for i, line := range lines {
		if line == EndMarker {
			break
		}
		op, path, ok := parseHeader(line)
		if !ok {
			continue
		}
		if headerAt >= 0 {
			return nil, model.FormatError("multiple operation headers")
		}
		headerAt = i
		p.Op, p.Path = op, path
	}
	if headerAt < 0 {
		return nil, model.FormatError("missing operation header")
	}
	if p.Path == "" {
		return nil, model.FormatError("missing file path")
	}

	body := lines[headerAt+1:]
	for i, line := range body {
		if line == EndMarker {
			body = body[:i]
			break
		}
	}

	switch p.Op {
	case model.OpAdd:
		p.Content = parseAddBody(body)
	case model.OpUpdate:
		hunks, err := parseHunks(body)
		if err != nil {
			return nil, err
		}
		p.Hunks = hunks
	}
	return &p, nil
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

func parseHeader(line string) (model.Op, string, bool) {
	switch {
	case strings.HasPrefix(line, addHeader):
		return model.OpAdd, strings.TrimSpace(line[len(addHeader):]), true
	case strings.HasPrefix(line, updateHeader):
		return model.OpUpdate, strings.TrimSpace(line[len(updateHeader):]), true
	case strings.HasPrefix(line, deleteHeader):
		return model.OpDelete, strings.TrimSpace(line[len(deleteHeader):]), true
	}
	return "", "", false
}

func parseAddBody(body []string) string {
	var content []string
	for _, line := range body {
		if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
			content = append(content, line[1:])
		}
	}
	if len(content) == 0 {
		return ""
	}
	return strings.Join(content, "\n") + "\n"
}

func parseHunks(body []string) ([]Hunk, error) {
	var hunks []Hunk
	var current *Hunk

	for _, line := range body {
		if strings.HasPrefix(line, "@@") {
			h, err := parseHunkHeader(line)
			if err != nil {
				return nil, err
			}
			hunks = append(hunks, h)
			current = &hunks[len(hunks)-1]
			continue
		}
		if current == nil || strings.HasPrefix(line, "***") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			continue
		case strings.HasPrefix(line, "+"):
			current.Lines = append(current.Lines, Line{Kind: Add, Text: line[1:]})
		case strings.HasPrefix(line, "-"):
			current.Lines = append(current.Lines, Line{Kind: Remove, Text: line[1:]})
		default:
			current.Lines = append(current.Lines, Line{Kind: Context, Text: line})
		}
	}
	return hunks, nil
}

func parseHunkHeader(line string) (Hunk, error) {
	m := hunkHeaderRegex.FindStringSubmatch(line)
	if m == nil {
		return Hunk{}, model.FormatError(fmt.Sprintf("malformed hunk header: %q", line))
	}
	return Hunk{
		Old: Range{Start: atoi(m[1], 0), Count: atoi(m[2], 1)},
		New: Range{Start: atoi(m[3], 0), Count: atoi(m[4], 1)},
	}, nil
}

func atoi(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// Format renders p back into patch text, including the begin and end markers.
func Format(p *Patch) string {
	var b strings.Builder
	b.WriteString(BeginMarker + "\n")

	switch p.Op {
	case model.OpAdd:
		b.WriteString(addHeader + p.Path + "\n")
		if p.Content != "" {
			for _, line := range strings.Split(strings.TrimSuffix(p.Content, "\n"), "\n") {
				b.WriteString("+" + line + "\n")
			}
		}
	case model.OpUpdate:
		b.WriteString(updateHeader + p.Path + "\n")
		for _, h := range p.Hunks {
			fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", h.Old.Start, h.Old.Count, h.New.Start, h.New.Count)
			for _, line := range h.Lines {
				switch line.Kind {
				case Add:
					b.WriteString("+" + line.Text + "\n")
				case Remove:
					b.WriteString("-" + line.Text + "\n")
				default:
					b.WriteString(line.Text + "\n")
				}
			}
		}
	case model.OpDelete:
		b.WriteString(deleteHeader + p.Path + "\n")
	}

	b.WriteString(EndMarker + "\n")
	return b.String()
}
