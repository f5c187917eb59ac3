package cli

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sokinpui/sandpatch/internal/config"
)

func TestParseFlags(t *testing.T) {
	cfg, err := ParseFlags([]string{"-C", "/ws", "-n", "--track-offsets", "a.patch", "b.patch"})
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		Root:         "/ws",
		ConfigFile:   config.DefaultFile,
		DryRun:       true,
		TrackOffsets: true,
		Files:        []string{"a.patch", "b.patch"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if !cfg.PrintsToStdout() {
		t.Error("dry run should print to stdout")
	}
}

func TestParseFlagsRejectsConflicts(t *testing.T) {
	tests := [][]string{
		{"-u", "-r"},
		{"-w", "out.txt", "a", "b"},
		{"--serve", ":7878", "-n"},
		{"--no-such-flag"},
	}
	for _, args := range tests {
		if _, err := ParseFlags(args); err == nil {
			t.Errorf("ParseFlags(%q) succeeded, want error", args)
		}
	}
}
