package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/sokinpui/sandpatch/model"
)

const (
	DirPerm  os.FileMode = 0755
	FilePerm os.FileMode = 0644
)

// caseInsensitive is true on platforms whose default filesystems fold case.
var caseInsensitive = runtime.GOOS == "darwin" || runtime.GOOS == "windows"

// RootFunc returns the current sandbox root. It is called on every
// resolution, so a root that changes between calls takes effect immediately.
type RootFunc func() (string, error)

// StaticRoot returns a RootFunc that always yields dir.
func StaticRoot(dir string) RootFunc {
	return func() (string, error) {
		return dir, nil
	}
}

// Resolver confines caller-supplied paths to the sandbox root.
type Resolver struct {
	root RootFunc
}

// NewResolver creates a new Resolver.
func NewResolver(root RootFunc) *Resolver {
	return &Resolver{root: root}
}

// Root queries the root provider and returns the cleaned absolute root.
func (r *Resolver) Root() (string, error) {
	if r.root == nil {
		return "", model.IOError("sandbox root is not configured", "", nil)
	}
	raw, err := r.root()
	if err != nil {
		return "", model.IOError("sandbox root unavailable", "", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", model.IOError("sandbox root is empty", "", nil)
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", model.IOError("sandbox root is invalid", raw, err)
	}
	return abs, nil
}

// Resolve turns relativePath into an absolute path under the root, or fails
// with a security error. An empty path means the root itself.
func (r *Resolver) Resolve(relativePath string) (string, error) {
	root, candidate, err := r.candidate(relativePath)
	if err != nil {
		return "", err
	}
	if len(candidate) == len(root) {
		return root, nil
	}
	return secureJoin(root, candidate, relativePath)
}

// ResolveEntry is like Resolve but names the directory entry itself: only
// the parent directory is resolved through symlinks, so a final component
// that is a symlink yields the link rather than its target. The root is
// never an entry.
func (r *Resolver) ResolveEntry(relativePath string) (string, error) {
	root, candidate, err := r.candidate(relativePath)
	if err != nil {
		return "", err
	}
	if len(candidate) == len(root) {
		return "", model.RootError(relativePath)
	}

	parent := root
	if dir := filepath.Dir(candidate); len(dir) > len(root) {
		if parent, err = secureJoin(root, dir, relativePath); err != nil {
			return "", err
		}
	}
	return filepath.Join(parent, filepath.Base(candidate)), nil
}

// candidate returns the root and the cleaned absolute form of relativePath,
// rejecting paths outside the root.
func (r *Resolver) candidate(relativePath string) (root, candidate string, err error) {
	root, err = r.Root()
	if err != nil {
		return "", "", err
	}

	rel := strings.TrimSpace(relativePath)
	if rel == "" {
		rel = "."
	}
	if filepath.IsAbs(rel) {
		candidate = filepath.Clean(rel)
	} else {
		candidate = filepath.Join(root, rel)
	}

	if !Within(root, candidate) {
		return "", "", model.SecurityError(relativePath)
	}
	return root, candidate, nil
}

// secureJoin resolves symlinks in candidate as if the root were the
// filesystem root, so they can never lead outside it.
func secureJoin(root, candidate, relativePath string) (string, error) {
	resolved, err := securejoin.SecureJoin(root, candidate[len(root):])
	if err != nil {
		return "", model.IOError("failed to resolve path", relativePath, err)
	}
	return resolved, nil
}

// Within reports whether candidate is root itself or lies below it. The root
// is a directory boundary: "/a/b" does not contain "/a/bc". Both paths must
// be clean and absolute.
func Within(root, candidate string) bool {
	if len(candidate) < len(root) || !samePath(candidate[:len(root)], root) {
		return false
	}
	if len(candidate) == len(root) {
		return true
	}
	if strings.HasSuffix(root, string(filepath.Separator)) {
		return true
	}
	return candidate[len(root)] == filepath.Separator
}

func samePath(a, b string) bool {
	if caseInsensitive {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// Key returns the canonical form of an absolute path for use as a map key.
func Key(absPath string) string {
	clean := filepath.Clean(absPath)
	if caseInsensitive {
		return strings.ToLower(clean)
	}
	return clean
}

// ReadText reads a file as text with CRLF line endings normalized to LF.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

// WriteFile writes content to path, creating parent directories first.
func WriteFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), DirPerm); err != nil {
		return fmt.Errorf("failed to create parent directories: %w", err)
	}
	return os.WriteFile(path, content, FilePerm)
}

// RemoveFile deletes path. A file that does not exist counts as removed.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// FileExists reports whether path exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// GetFileSHA256 returns the hex SHA256 of a file's content.
func GetFileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex SHA256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
