package app

import (
	"sort"
	"sync"

	"github.com/sokinpui/sandpatch/internal/fs"
	"github.com/sokinpui/sandpatch/model"
)

// tracker is an engine hook that classifies the files a run touched by
// comparing whether each existed before its first and after its last
// mutation. Files whose mutations all failed are not reported.
type tracker struct {
	mu    sync.Mutex
	order []string
	files map[string]*trackedFile
}

type trackedFile struct {
	path    string
	absPath string
	existed bool
	exists  bool
	touched bool
}

func newTracker() *tracker {
	return &tracker{files: make(map[string]*trackedFile)}
}

func (t *tracker) Before(m model.Mutation) error {
	existed := fs.FileExists(m.AbsPath)

	t.mu.Lock()
	defer t.mu.Unlock()
	key := fs.Key(m.AbsPath)
	if _, ok := t.files[key]; !ok {
		t.files[key] = &trackedFile{path: m.Path, absPath: m.AbsPath, existed: existed}
		t.order = append(t.order, key)
	}
	return nil
}

func (t *tracker) After(m model.Mutation) {
	exists := fs.FileExists(m.AbsPath)

	t.mu.Lock()
	defer t.mu.Unlock()
	if f, ok := t.files[fs.Key(m.AbsPath)]; ok {
		f.exists = exists
		f.touched = true
	}
}

func (t *tracker) summary() model.Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	var s model.Summary
	for _, key := range t.order {
		f := t.files[key]
		if !f.touched {
			continue
		}
		switch {
		case !f.existed && f.exists:
			s.Created = append(s.Created, f.path)
		case f.existed && !f.exists:
			s.Deleted = append(s.Deleted, f.path)
		case f.existed && f.exists:
			s.Modified = append(s.Modified, f.path)
		}
	}
	sort.Strings(s.Created)
	sort.Strings(s.Modified)
	sort.Strings(s.Deleted)
	return s
}

func (t *tracker) absPaths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.order))
	for _, key := range t.order {
		if f := t.files[key]; f.touched {
			out = append(out, f.absPath)
		}
	}
	return out
}
