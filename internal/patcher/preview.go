package patcher

import (
	"fmt"
	"strings"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// contextLines is how many unchanged lines are kept around each change.
const contextLines = 3

// LineDiff renders a line-oriented diff of before and after for display.
// Long unchanged stretches are collapsed.
func LineDiff(path, before, after string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", path, path)

	for _, d := range lineDiffs(before, after) {
		lines := strings.SplitAfter(d.Text, "\n")
		if lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}

		switch d.Type {
		case diffpatch.DiffInsert:
			writePrefixed(&b, "+", lines)
		case diffpatch.DiffDelete:
			writePrefixed(&b, "-", lines)
		case diffpatch.DiffEqual:
			if len(lines) > 2*contextLines+1 {
				writePrefixed(&b, " ", lines[:contextLines])
				fmt.Fprintf(&b, "@@ %d unchanged lines @@\n", len(lines)-2*contextLines)
				writePrefixed(&b, " ", lines[len(lines)-contextLines:])
				continue
			}
			writePrefixed(&b, " ", lines)
		}
	}
	return b.String()
}

// DiffStat counts added and removed lines between before and after.
func DiffStat(before, after string) (added, removed int) {
	for _, d := range lineDiffs(before, after) {
		n := strings.Count(d.Text, "\n")
		if !strings.HasSuffix(d.Text, "\n") && d.Text != "" {
			n++
		}
		switch d.Type {
		case diffpatch.DiffInsert:
			added += n
		case diffpatch.DiffDelete:
			removed += n
		}
	}
	return added, removed
}

func lineDiffs(before, after string) []diffpatch.Diff {
	dmp := diffpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	return dmp.DiffCharsToLines(diffs, lineArray)
}

func writePrefixed(b *strings.Builder, prefix string, lines []string) {
	for _, line := range lines {
		b.WriteString(prefix)
		b.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			b.WriteString("\n\\ No newline at end of file\n")
		}
	}
}
