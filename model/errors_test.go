package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestErrorHidesHostPaths(t *testing.T) {
	dir := t.TempDir()
	_, readErr := os.ReadFile(filepath.Join(dir, "nope.txt"))
	writeErr := os.WriteFile(dir, []byte("x"), 0644)

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{name: "not found", err: NotFoundError("nope.txt", readErr), want: "file not found: nope.txt"},
		{name: "io path error", err: IOError("failed to write file", "sub", writeErr), want: "failed to write file: sub: "},
		{name: "io wrapped path error", err: IOError("failed to write file", "", fmt.Errorf("failed to create parent directories: %w", writeErr)), want: "failed to write file: "},
		{name: "io plain cause", err: IOError("request cancelled", "a.txt", errors.New("context canceled")), want: "request cancelled: context canceled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if strings.Contains(got, dir) {
				t.Errorf("Error() = %q, leaks host path %q", got, dir)
			}
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("Error() = %q, want prefix %q", got, tt.want)
			}
			if tt.err.Unwrap() == nil {
				t.Error("cause was dropped")
			}
		})
	}
}

func TestErrorKinds(t *testing.T) {
	if err := RootError("."); !errors.Is(err, ErrSecurity) || errors.Is(err, ErrIO) {
		t.Errorf("RootError kind mismatch: %v", err)
	}
	cause := os.ErrNotExist
	if err := NotFoundError("a", cause); !errors.Is(err, ErrNotFound) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("NotFoundError should match its kind and cause: %v", err)
	}
}
