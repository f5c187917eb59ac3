package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/sokinpui/sandpatch/model"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	AddColor     = color.New(color.FgGreen)
	RemoveColor  = color.New(color.FgRed)
)

var (
	mu    sync.Mutex
	out   io.Writer = os.Stderr
	quiet bool
)

// SetOutput redirects all messages. Passing nil restores stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	out = w
}

// SetQuiet suppresses Header, Info and Success messages. Warnings and errors
// are still written.
func SetQuiet(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

func write(c *color.Color, verbose bool, format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if verbose && quiet {
		return
	}
	c.Fprintf(out, format+"\n", a...)
}

func Header(format string, a ...interface{}) {
	write(HeaderColor, true, format, a...)
}

func Info(format string, a ...interface{}) {
	write(InfoColor, true, format, a...)
}

func Success(format string, a ...interface{}) {
	write(SuccessColor, true, format, a...)
}

func Warning(format string, a ...interface{}) {
	write(WarningColor, false, format, a...)
}

func Error(format string, a ...interface{}) {
	write(ErrorColor, false, format, a...)
}

// Diff prints a line diff, coloring added and removed lines.
func Diff(w io.Writer, text string) {
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+"):
			AddColor.Fprint(w, line)
		case strings.HasPrefix(line, "-"):
			RemoveColor.Fprint(w, line)
		case strings.HasPrefix(line, "@@"), strings.HasPrefix(line, "***"):
			HeaderColor.Fprint(w, line)
		default:
			fmt.Fprint(w, line)
		}
	}
}

// --- Summaries ---

func PrintSummary(summary model.Summary) {
	Header("\n--- Summary ---")
	if summary.Message != "" {
		Info(summary.Message)
	}

	if len(summary.Created) == 0 && len(summary.Modified) == 0 && len(summary.Deleted) == 0 && len(summary.Failed) == 0 {
		Info("No files were updated.")
		return
	}

	printList(SuccessColor, "Created %d file(s):", summary.Created)
	printList(SuccessColor, "Modified %d file(s):", summary.Modified)
	printList(WarningColor, "Deleted %d file(s):", summary.Deleted)
	printList(ErrorColor, "Failed to process %d item(s):", summary.Failed)
}

func printList(c *color.Color, title string, items []string) {
	if len(items) == 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	c.Fprintf(out, title+"\n", len(items))
	for _, f := range items {
		fmt.Fprintf(out, "  - %s\n", f)
	}
}

// --- Progress Bar ---

type ProgressBar struct {
	total   int
	prefix  string
	current int
}

func NewProgressBar(total int, prefix string) *ProgressBar {
	return &ProgressBar{total: total, prefix: prefix}
}

func (p *ProgressBar) Start() {
	p.draw()
}

// Set moves the bar to an absolute position.
func (p *ProgressBar) Set(current int) {
	p.current = current
	p.draw()
}

func (p *ProgressBar) Finish() {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(out)
}

func (p *ProgressBar) draw() {
	if p.total == 0 {
		return
	}
	const barLength = 40
	percent := float64(p.current) / float64(p.total)
	filledLength := int(percent * barLength)
	bar := strings.Repeat("█", filledLength) + strings.Repeat("-", barLength-filledLength)

	percentStr := fmt.Sprintf("%.1f%%", percent*100)
	countStr := fmt.Sprintf("[%d/%d]", p.current, p.total)

	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, "\r%s |%s| %s %s", p.prefix, bar, countStr, percentStr)
}
