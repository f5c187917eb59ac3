package sandpatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/sokinpui/sandpatch/internal/fs"
	"github.com/sokinpui/sandpatch/internal/parser"
	"github.com/sokinpui/sandpatch/internal/patcher"
	"github.com/sokinpui/sandpatch/model"
)

// RootFunc returns the current sandbox root as an absolute path. It is
// called on every request and never cached.
type RootFunc = fs.RootFunc

// Hook observes mutations. Before runs after the target is resolved and
// locked but before anything is written; returning an error aborts the
// request. After runs once the mutation succeeded, still under the lock.
type Hook interface {
	Before(m model.Mutation) error
	After(m model.Mutation)
}

// Option configures an Engine.
type Option func(*Engine)

// WithOffsetTracking makes update hunks account for the line count change of
// earlier hunks in the same patch.
func WithOffsetTracking() Option {
	return func(e *Engine) {
		e.opts.TrackOffsets = true
	}
}

// WithHook registers h to observe every mutation.
func WithHook(h Hook) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, h)
	}
}

// WithoutLocks disables per-path serialization. Concurrent updates of the
// same file may then overwrite each other.
func WithoutLocks() Option {
	return func(e *Engine) {
		e.locks = nil
	}
}

// Engine applies patches and rewrites under a sandbox root. It is safe for
// concurrent use.
type Engine struct {
	resolver *fs.Resolver
	locks    *fs.PathLocks
	hooks    []Hook
	opts     patcher.Options
}

// New creates an Engine confined to the directory returned by root.
func New(root RootFunc, options ...Option) *Engine {
	e := &Engine{
		resolver: fs.NewResolver(root),
		locks:    fs.NewPathLocks(),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Apply parses rawPatch and applies it. Failures are reported in the result.
func (e *Engine) Apply(ctx context.Context, rawPatch string) (res model.Result) {
	defer recoverInto(&res)

	p, err := parser.Parse(rawPatch)
	if err != nil {
		return failure(err)
	}
	absPath, err := e.resolveTarget(p)
	if err != nil {
		return failure(err)
	}

	m := model.Mutation{Op: p.Op, Path: p.Path, AbsPath: absPath}
	err = e.mutate(ctx, m, func() error {
		return patcher.Apply(p, absPath, e.opts)
	})
	if err != nil {
		return failure(err)
	}
	return model.Result{OK: true, Path: p.Path, Op: p.Op}
}

// Rewrite replaces the file at path with content, bypassing the patch
// grammar. Parent directories are created as needed.
func (e *Engine) Rewrite(ctx context.Context, path, content string) (res model.Result) {
	defer recoverInto(&res)

	absPath, err := e.resolver.Resolve(path)
	if err != nil {
		return failure(err)
	}

	m := model.Mutation{Op: model.OpRewrite, Path: path, AbsPath: absPath}
	err = e.mutate(ctx, m, func() error {
		return patcher.Rewrite(path, absPath, content)
	})
	if err != nil {
		return failure(err)
	}
	return model.Result{OK: true, Path: path, Op: model.OpRewrite}
}

// Preview computes the outcome of rawPatch without writing anything.
func (e *Engine) Preview(ctx context.Context, rawPatch string) (model.Preview, error) {
	p, err := parser.Parse(rawPatch)
	if err != nil {
		return model.Preview{}, err
	}
	absPath, err := e.resolveTarget(p)
	if err != nil {
		return model.Preview{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.Preview{}, err
	}
	return patcher.Render(p, absPath, e.opts)
}

// Realign returns rawPatch with its hunk headers recomputed against the
// current content of the target file. Patches other than updates are
// returned normalized but otherwise unchanged.
func (e *Engine) Realign(ctx context.Context, rawPatch string) (string, error) {
	p, err := parser.Parse(rawPatch)
	if err != nil {
		return "", err
	}
	if p.Op != model.OpUpdate {
		return parser.Format(p), nil
	}
	absPath, err := e.resolver.Resolve(p.Path)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	source, err := fs.ReadText(absPath)
	if err != nil {
		return "", model.NotFoundError(p.Path, err)
	}
	fixed, err := patcher.Realign(p, patcher.SplitLines(source))
	if err != nil {
		return "", fmt.Errorf("failed to realign %s: %w", p.Path, err)
	}
	return parser.Format(fixed), nil
}

// resolveTarget confines the patch path. Deletes act on the directory entry,
// so a symlink is removed rather than followed.
func (e *Engine) resolveTarget(p *parser.Patch) (string, error) {
	if p.Op == model.OpDelete {
		return e.resolver.ResolveEntry(p.Path)
	}
	return e.resolver.Resolve(p.Path)
}

// mutate runs fn while holding the lock for m.AbsPath, surrounded by hooks.
// Waiting for the lock honours ctx; once fn starts it runs to completion.
func (e *Engine) mutate(ctx context.Context, m model.Mutation, fn func() error) error {
	if e.locks != nil {
		unlock, err := e.locks.Lock(ctx, m.AbsPath)
		if err != nil {
			return model.IOError("request cancelled", m.Path, err)
		}
		defer unlock()
	} else if err := ctx.Err(); err != nil {
		return model.IOError("request cancelled", m.Path, err)
	}

	for _, h := range e.hooks {
		if err := h.Before(m); err != nil {
			return model.IOError("mutation rejected", m.Path, err)
		}
	}
	if err := fn(); err != nil {
		return err
	}
	for _, h := range e.hooks {
		h.After(m)
	}
	return nil
}

func failure(err error) model.Result {
	var engineErr *model.Error
	if !errors.As(err, &engineErr) {
		err = model.IOError("unexpected failure", "", err)
	}
	return model.Result{Error: err.Error(), Err: err}
}

func recoverInto(res *model.Result) {
	if r := recover(); r != nil {
		*res = failure(model.IOError("internal panic", "", &PanicError{
			Value: r,
			Stack: debug.Stack(),
		}))
	}
}

// PanicError carries a recovered panic and its stack trace.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%v", e.Value)
}
