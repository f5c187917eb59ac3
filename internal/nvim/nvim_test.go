package nvim

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDialWithoutAddress(t *testing.T) {
	if _, err := Dial(""); !errors.Is(err, ErrNoInstance) {
		t.Errorf("Dial(\"\") error = %v, want ErrNoInstance", err)
	}
}

func TestNewWithoutEnvironment(t *testing.T) {
	t.Setenv("NVIM_LISTEN_ADDRESS", "")
	if _, err := New(); !errors.Is(err, ErrNoInstance) {
		t.Errorf("New() error = %v, want ErrNoInstance", err)
	}
}

func TestDialMissingSocket(t *testing.T) {
	if _, err := Dial(filepath.Join(t.TempDir(), "nvim.sock")); err == nil {
		t.Error("Dial to a missing socket succeeded")
	}
}

func TestProcessSequentially(t *testing.T) {
	var progress []int
	ok, failed := processSequentially(
		[]string{"a", "b", "c"},
		func(s string) (string, bool) { return s, s != "b" },
		func(n int) { progress = append(progress, n) },
	)

	if diff := cmp.Diff([]string{"a", "c"}, ok); diff != "" {
		t.Errorf("succeeded mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b"}, failed); diff != "" {
		t.Errorf("failed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, progress); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
}
