package patcher

import (
	"fmt"
	"strings"

	"github.com/sokinpui/sandpatch/internal/parser"
)

// Realign returns a copy of p whose hunk headers are recomputed against
// source, the current lines of the target file. Each hunk is located by the
// lines it expects to find (context and removed lines), so headers written
// against a stale or guessed line numbering become exact. New ranges account
// for the growth or shrinkage of earlier hunks.
func Realign(p *parser.Patch, source []string) (*parser.Patch, error) {
	out := *p
	out.Hunks = make([]parser.Hunk, len(p.Hunks))

	lineDiffOffset := 0
	searchFrom := 0
	for i, h := range p.Hunks {
		target, leadingBlanks := getTargetBlock(h.Lines)

		oldStart := h.Old.Start
		if len(target) > 0 {
			match := matchBlock(source, target, searchFrom)
			if match == -1 {
				return nil, fmt.Errorf("could not find matching block for hunk %d", i+1)
			}
			oldStart = max(match-leadingBlanks, 1)
		}

		addCount, removeCount := 0, 0
		for _, line := range h.Lines {
			switch line.Kind {
			case parser.Add:
				addCount++
			case parser.Remove:
				removeCount++
			}
		}
		contextCount := len(h.Lines) - addCount - removeCount

		oldLines := contextCount + removeCount
		newLines := contextCount + addCount

		out.Hunks[i] = parser.Hunk{
			Old:   parser.Range{Start: oldStart, Count: oldLines},
			New:   parser.Range{Start: oldStart + lineDiffOffset, Count: newLines},
			Lines: append([]parser.Line(nil), h.Lines...),
		}

		lineDiffOffset += newLines - oldLines
		searchFrom = oldStart - 1 + oldLines
	}
	return &out, nil
}

// getTargetBlock creates a search pattern from a hunk: the lines guaranteed
// to be in the original file (context and removed), without blank lines so
// matching tolerates blank-line drift. It also reports how many blank target
// lines precede the first non-blank one.
func getTargetBlock(lines []parser.Line) (block []string, leadingBlanks int) {
	for _, line := range lines {
		if line.Kind == parser.Add {
			continue
		}
		if strings.TrimSpace(line.Text) == "" {
			if len(block) == 0 {
				leadingBlanks++
			}
			continue
		}
		block = append(block, line.Text)
	}
	return block, leadingBlanks
}

// normalizeLineForMatching trims a line and collapses internal whitespace runs
// to a single space.
func normalizeLineForMatching(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

// matchBlock finds the 1-based line in source where block begins, looking
// only at lines from index from onward. Blank source lines are skipped and
// lines are compared whitespace-normalized. Returns -1 when there is no match.
func matchBlock(source, block []string, from int) int {
	if len(block) == 0 {
		return -1
	}

	normalizedBlock := make([]string, len(block))
	for i, line := range block {
		normalizedBlock[i] = normalizeLineForMatching(line)
	}

	var filteredSource []string
	var originalLineNumbers []int
	for i := max(from, 0); i < len(source); i++ {
		normalizedLine := normalizeLineForMatching(source[i])
		if normalizedLine != "" {
			filteredSource = append(filteredSource, normalizedLine)
			originalLineNumbers = append(originalLineNumbers, i+1)
		}
	}

	for i := 0; i <= len(filteredSource)-len(normalizedBlock); i++ {
		match := true
		for j := range normalizedBlock {
			if filteredSource[i+j] != normalizedBlock[j] {
				match = false
				break
			}
		}
		if match {
			return originalLineNumbers[i]
		}
	}
	return -1
}
