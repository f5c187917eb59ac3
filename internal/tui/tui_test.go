package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sokinpui/sandpatch/model"
)

func TestSummaryView(t *testing.T) {
	m := Model{state: stateProcessing}

	next, cmd := m.Update(summaryMsg{model.Summary{
		Created: []string{"new.txt"},
		Deleted: []string{"old.txt"},
		Failed:  []string{"stdin: missing begin marker"},
		Message: "Applied 2 of 3 patch(es).",
	}})
	if cmd == nil {
		t.Error("summary should quit the program")
	}

	got := next.(Model)
	view := got.View()
	for _, want := range []string{"Applied 2 of 3", "Created:", "new.txt", "Deleted:", "old.txt", "Failed:", "missing begin marker"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "Modified:") {
		t.Error("empty section rendered")
	}
	if !got.Failed() {
		t.Error("Failed() = false with failed items")
	}
}

func TestEmptySummary(t *testing.T) {
	next, _ := Model{}.Update(summaryMsg{})
	if view := next.(Model).View(); !strings.Contains(view, "Nothing to do.") {
		t.Errorf("view = %q", view)
	}
}

func TestErrorView(t *testing.T) {
	next, _ := Model{}.Update(errorMsg{errors.New("boom")})
	got := next.(Model)
	if !strings.Contains(got.View(), "boom") || !got.Failed() {
		t.Errorf("error state not rendered: %q", got.View())
	}
}

func TestProgressView(t *testing.T) {
	next, _ := New(context.Background(), nil).Update(ProgressMsg{Done: 2, Total: 5})
	if view := next.(Model).View(); !strings.Contains(view, "[2/5]") {
		t.Errorf("view = %q, want progress", view)
	}

	next, _ = New(context.Background(), nil).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	if next.(Model).state != stateProcessing {
		t.Error("unrelated key changed state")
	}
}
