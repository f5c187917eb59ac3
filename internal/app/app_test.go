package app

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"

	"github.com/sokinpui/sandpatch/cli"
	"github.com/sokinpui/sandpatch/internal/source"
	"github.com/sokinpui/sandpatch/internal/ui"
	"github.com/sokinpui/sandpatch/model"
)

func TestMain(m *testing.M) {
	ui.SetOutput(io.Discard)
	color.NoColor = true
	os.Exit(m.Run())
}

type fakeSource struct {
	inputs  []source.Input
	content string
}

func (f fakeSource) Patches([]string) ([]source.Input, error) { return f.inputs, nil }

func (f fakeSource) GetContent() (string, string, error) { return "fake", f.content, nil }

func newTestApp(t *testing.T, cfg *cli.Config, src fakeSource) (*App, string, *bytes.Buffer) {
	t.Helper()
	for _, k := range []string{"SANDPATCH_ROOT", "SANDPATCH_LISTEN", "SANDPATCH_API_KEY", "SANDPATCH_TRACK_OFFSETS"} {
		t.Setenv(k, "")
	}
	root := t.TempDir()
	configFile := filepath.Join(t.TempDir(), "sandpatch.yaml")
	if err := os.WriteFile(configFile, []byte("state_dir: "+t.TempDir()+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg.Root = root
	cfg.ConfigFile = configFile

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var stdout bytes.Buffer
	a.source = src
	a.stdout = &stdout
	return a, root, &stdout
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

var batch = []source.Input{
	{Origin: "reply#1", Patch: "*** Begin Patch\n*** Add File: a.txt\n+one\n+two\n*** End Patch\n"},
	{Origin: "reply#2", Patch: "*** Begin Patch\n*** Update File: a.txt\n@@ -2,1 +2,1 @@\n-two\n+TWO\n*** End Patch\n"},
	{Origin: "reply#3", Patch: "*** Begin Patch\n*** Update File: old.txt\n@@ -1,1 +1,1 @@\n-x\n+y\n*** End Patch\n"},
	{Origin: "reply#4", Patch: "*** Begin Patch\n*** Delete File: gone.txt\n*** End Patch\n"},
	{Origin: "reply#5", Patch: "*** Begin Patch\n*** Add File: ../escape.txt\n+x\n*** End Patch\n"},
}

func TestApplyBatch(t *testing.T) {
	a, root, _ := newTestApp(t, &cli.Config{}, fakeSource{inputs: batch})
	write(t, filepath.Join(root, "old.txt"), "x\n")
	write(t, filepath.Join(root, "gone.txt"), "bye\n")

	var progress []int
	a.SetProgress(func(done, total int) {
		if total != len(batch) {
			t.Errorf("total = %d, want %d", total, len(batch))
		}
		progress = append(progress, done)
	})

	summary, err := a.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	want := model.Summary{
		Created:  []string{"a.txt"},
		Modified: []string{"old.txt"},
		Deleted:  []string{"gone.txt"},
		Failed:   []string{"reply#5: path escapes sandbox root: ../escape.txt"},
		Message:  "Applied 4 of 5 patch(es).",
	}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if got := read(t, filepath.Join(root, "a.txt")); got != "one\nTWO\n" {
		t.Errorf("a.txt = %q, same-file patches ran out of order", got)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4, 5}, progress); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
}

func TestUndoRedoAfterApply(t *testing.T) {
	cfg := &cli.Config{}
	a, root, _ := newTestApp(t, cfg, fakeSource{inputs: batch[:3]})
	write(t, filepath.Join(root, "old.txt"), "x\n")

	if _, err := a.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	cfg.Undo = true
	summary, err := a.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Modified) != 2 || len(summary.Failed) != 0 {
		t.Errorf("undo summary = %+v", summary)
	}
	if got := read(t, filepath.Join(root, "old.txt")); got != "x\n" {
		t.Errorf("old.txt = %q after undo", got)
	}
	if _, err := os.Stat(filepath.Join(root, "a.txt")); !os.IsNotExist(err) {
		t.Error("a.txt survived undo")
	}

	summary, _ = a.Execute(context.Background())
	if summary.Message != "Nothing to undo." {
		t.Errorf("second undo message = %q", summary.Message)
	}

	cfg.Undo, cfg.Redo = false, true
	if _, err := a.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := read(t, filepath.Join(root, "a.txt")); got != "one\nTWO\n" {
		t.Errorf("a.txt = %q after redo", got)
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	a, root, stdout := newTestApp(t, &cli.Config{DryRun: true}, fakeSource{inputs: batch[2:3]})
	write(t, filepath.Join(root, "old.txt"), "x\n")

	summary, err := a.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"old.txt"}, summary.Modified); diff != "" {
		t.Errorf("modified mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(stdout.String(), "-x\n+y\n") {
		t.Errorf("diff output missing change:\n%s", stdout.String())
	}
	if got := read(t, filepath.Join(root, "old.txt")); got != "x\n" {
		t.Errorf("dry run wrote the file: %q", got)
	}
}

func TestOutputFixed(t *testing.T) {
	src := fakeSource{inputs: []source.Input{{
		Origin: "stdin",
		Patch:  "*** Begin Patch\n*** Update File: f.txt\n@@ -1,1 +1,1 @@\n-c\n+C\n*** End Patch\n",
	}}}
	a, root, stdout := newTestApp(t, &cli.Config{OutputFixed: true}, src)
	write(t, filepath.Join(root, "f.txt"), "a\nb\nc\n")

	if _, err := a.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := "*** Begin Patch\n*** Update File: f.txt\n@@ -3,1 +3,1 @@\n-c\n+C\n*** End Patch\n"
	if got := stdout.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRewriteMode(t *testing.T) {
	a, root, _ := newTestApp(t, &cli.Config{Rewrite: "docs/out.md"}, fakeSource{content: "# Title\n"})

	summary, err := a.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"docs/out.md"}, summary.Created); diff != "" {
		t.Errorf("created mismatch (-want +got):\n%s", diff)
	}
	if got := read(t, filepath.Join(root, "docs", "out.md")); got != "# Title\n" {
		t.Errorf("content = %q", got)
	}
}

func TestEmptySource(t *testing.T) {
	a, _, _ := newTestApp(t, &cli.Config{}, fakeSource{})
	summary, err := a.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Message == "" || len(summary.Failed) != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestHandler(t *testing.T) {
	a, root, _ := newTestApp(t, &cli.Config{APIKey: "k"}, fakeSource{})
	handler, cleanup := a.Handler()
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/rewrite_file", strings.NewReader(`{"path":"x.txt","content":"hi"}`))
	req.Header.Set("X-API-Key", "k")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := read(t, filepath.Join(root, "x.txt")); got != "hi" {
		t.Errorf("content = %q", got)
	}
}

func TestGroupByTarget(t *testing.T) {
	groups := groupByTarget(batch)
	var origins [][]string
	for _, g := range groups {
		var names []string
		for _, in := range g {
			names = append(names, in.Origin)
		}
		origins = append(origins, names)
	}
	want := [][]string{{"reply#1", "reply#2"}, {"reply#3"}, {"reply#4"}, {"reply#5"}}
	if diff := cmp.Diff(want, origins); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
}
