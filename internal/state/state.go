package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/sokinpui/sandpatch/internal/fs"
	"github.com/sokinpui/sandpatch/model"
)

const (
	stateFileName = "state.yaml"
	objectsDir    = "objects"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Operation records one file mutation. Hashes name blobs in the object
// store; an empty hash means the file did not exist.
type Operation struct {
	Path       string   `yaml:"path"`
	Action     model.Op `yaml:"action"`
	BeforeHash string   `yaml:"before,omitempty"`
	AfterHash  string   `yaml:"after,omitempty"`
}

// HistoryEntry represents one complete run of the tool.
type HistoryEntry struct {
	Timestamp  int64       `yaml:"timestamp"`
	Operations []Operation `yaml:"operations"`
}

// State represents the entire state file.
type State struct {
	History      []HistoryEntry `yaml:"history"`
	CurrentIndex int            `yaml:"current_index"`
}

// Manager journals mutations made through the engine so that a whole run
// can be undone and redone. It observes mutations as an engine hook and is
// safe for concurrent use.
type Manager struct {
	mu        sync.Mutex
	dir       string
	statePath string
	state     *State

	pending map[string]string
	run     []Operation
	err     error
}

// New creates and loads a state manager rooted at dir.
func New(dir string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Join(dir, objectsDir), fs.DirPerm); err != nil {
		return nil, fmt.Errorf("could not create state directory: %w", err)
	}
	m := &Manager{
		dir:       dir,
		statePath: filepath.Join(dir, stateFileName),
		pending:   make(map[string]string),
	}
	if err := m.load(); err != nil {
		m.state = &State{CurrentIndex: -1, History: []HistoryEntry{}}
	}
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.state = &State{CurrentIndex: -1, History: []HistoryEntry{}}
			return nil
		}
		return err
	}

	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid state file: %w", err)
	}
	if s.CurrentIndex < -1 || s.CurrentIndex >= len(s.History) {
		return fmt.Errorf("invalid state file: current index %d out of range", s.CurrentIndex)
	}
	m.state = &s
	return nil
}

func (m *Manager) save() error {
	data, err := yaml.Marshal(m.state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := os.WriteFile(m.statePath, data, fs.FilePerm); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// Before snapshots the target of mu. A snapshot failure vetoes the mutation.
func (m *Manager) Before(mu model.Mutation) error {
	hash, err := m.snapshot(mu.AbsPath)
	if err != nil {
		return fmt.Errorf("failed to snapshot %s: %w", mu.Path, err)
	}
	m.mu.Lock()
	m.pending[fs.Key(mu.AbsPath)] = hash
	m.mu.Unlock()
	return nil
}

// After snapshots the result of mu and adds it to the current run.
// Mutations that left the file unchanged are not recorded.
func (m *Manager) After(mu model.Mutation) {
	hash, err := m.snapshot(mu.AbsPath)

	m.mu.Lock()
	defer m.mu.Unlock()
	key := fs.Key(mu.AbsPath)
	before := m.pending[key]
	delete(m.pending, key)
	if err != nil {
		m.err = errors.Join(m.err, fmt.Errorf("failed to snapshot %s: %w", mu.Path, err))
		return
	}
	if before == hash {
		return
	}
	m.run = append(m.run, Operation{
		Path:       mu.AbsPath,
		Action:     mu.Op,
		BeforeHash: before,
		AfterHash:  hash,
	})
}

// Commit closes the current run and writes it to the history. Any redo
// entries beyond the current position are discarded. An empty run leaves
// the history untouched.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, err := m.run, m.err
	m.run, m.err = nil, nil
	if err != nil {
		return err
	}
	if len(run) == 0 {
		return nil
	}

	if m.state.CurrentIndex < len(m.state.History)-1 {
		m.state.History = m.state.History[:m.state.CurrentIndex+1]
	}
	m.state.History = append(m.state.History, HistoryEntry{
		Timestamp:  time.Now().UTC().Unix(),
		Operations: run,
	})
	m.state.CurrentIndex++
	return m.save()
}

// Undo reverts the most recent run. A file is only restored when its
// content still matches what the run left behind; otherwise it is reported
// as failed and left alone.
func (m *Manager) Undo(progressCb func(int)) (undone, failed []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.CurrentIndex < 0 {
		return nil, nil, ErrNothingToUndo
	}
	ops := m.state.History[m.state.CurrentIndex].Operations
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		if m.restore(op.Path, op.AfterHash, op.BeforeHash) {
			undone = append(undone, op.Path)
		} else {
			failed = append(failed, op.Path)
		}
		if progressCb != nil {
			progressCb(len(ops) - i)
		}
	}
	m.state.CurrentIndex--
	return undone, failed, m.save()
}

// Redo reapplies the run after the current position, under the same
// content check as Undo.
func (m *Manager) Redo(progressCb func(int)) (redone, failed []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	nextIndex := m.state.CurrentIndex + 1
	if nextIndex >= len(m.state.History) {
		return nil, nil, ErrNothingToRedo
	}
	ops := m.state.History[nextIndex].Operations
	for i, op := range ops {
		if m.restore(op.Path, op.BeforeHash, op.AfterHash) {
			redone = append(redone, op.Path)
		} else {
			failed = append(failed, op.Path)
		}
		if progressCb != nil {
			progressCb(i + 1)
		}
	}
	m.state.CurrentIndex = nextIndex
	return redone, failed, m.save()
}

// Pending returns the number of operations recorded since the last commit.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.run)
}

// restore puts the blob named by want at path, provided path currently
// holds the blob named by expect.
func (m *Manager) restore(path, expect, want string) bool {
	current, err := currentHash(path)
	if err != nil || current != expect {
		return false
	}
	if want == "" {
		return fs.RemoveFile(path) == nil
	}
	data, err := os.ReadFile(m.objectPath(want))
	if err != nil {
		return false
	}
	return fs.WriteFile(path, data) == nil
}

// snapshot stores the content of path in the object store and returns its
// hash, or "" when path does not exist. Symlinks are not journaled and
// count as absent.
func (m *Manager) snapshot(path string) (string, error) {
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	hash := fs.HashBytes(data)
	object := m.objectPath(hash)
	if fs.FileExists(object) {
		return hash, nil
	}
	if err := os.WriteFile(object, data, fs.FilePerm); err != nil {
		return "", err
	}
	return hash, nil
}

func (m *Manager) objectPath(hash string) string {
	return filepath.Join(m.dir, objectsDir, hash)
}

func currentHash(path string) (string, error) {
	hash, err := fs.GetFileSHA256(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return hash, nil
}
