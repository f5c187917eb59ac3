package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SANDPATCH_ROOT", "SANDPATCH_LISTEN", "SANDPATCH_API_KEY", "SANDPATCH_TRACK_OFFSETS"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(Config{Listen: DefaultListen}, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	writeConfig(t, path, "root: workspace\nlisten: \":9000\"\napi_key: from-file\ntrack_offsets: true\nnvim: true\nstate_dir: /tmp/state\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		Root:         filepath.Join(dir, "workspace"),
		Listen:       ":9000",
		APIKey:       "from-file",
		TrackOffsets: true,
		Nvim:         true,
		StateDir:     "/tmp/state",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	t.Setenv("SANDPATCH_API_KEY", "from-env")
	t.Setenv("SANDPATCH_TRACK_OFFSETS", "false")
	cfg, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIKey != "from-env" || cfg.TrackOffsets {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), DefaultFile)
	writeConfig(t, path, "rooot: /tmp\n")

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("Load error = %v, want invalid config", err)
	}
}

func TestRootFuncRereadsFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), DefaultFile)
	root := RootFunc(path, "/fallback")

	got, err := root()
	if err != nil || got != "/fallback" {
		t.Fatalf("root() = %q, %v; want fallback", got, err)
	}

	writeConfig(t, path, "root: /srv/one\n")
	if got, _ := root(); got != "/srv/one" {
		t.Errorf("root() = %q, want /srv/one", got)
	}

	writeConfig(t, path, "root: /srv/two\n")
	if got, _ := root(); got != "/srv/two" {
		t.Errorf("root() = %q, want /srv/two after edit", got)
	}

	t.Setenv("SANDPATCH_ROOT", "/from/env")
	if got, _ := root(); got != "/from/env" {
		t.Errorf("root() = %q, want env override", got)
	}
}

func TestRootFuncWithoutAnyRoot(t *testing.T) {
	clearEnv(t)
	if _, err := RootFunc("", "")(); err == nil {
		t.Error("root() succeeded with nothing configured")
	}
}

func TestDefaultStateDir(t *testing.T) {
	a, err := DefaultStateDir("/ws/a")
	if err != nil {
		t.Skipf("no cache dir: %v", err)
	}
	again, _ := DefaultStateDir("/ws/a")
	b, _ := DefaultStateDir("/ws/b")
	if a != again {
		t.Errorf("state dir not stable: %q vs %q", a, again)
	}
	if a == b {
		t.Error("different roots share a state dir")
	}
}
