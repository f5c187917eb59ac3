package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sokinpui/sandpatch/cli"
	"github.com/sokinpui/sandpatch/internal/config"
	"github.com/sokinpui/sandpatch/internal/fs"
	"github.com/sokinpui/sandpatch/internal/nvim"
	"github.com/sokinpui/sandpatch/internal/parser"
	"github.com/sokinpui/sandpatch/internal/patcher"
	"github.com/sokinpui/sandpatch/internal/source"
	"github.com/sokinpui/sandpatch/internal/state"
	"github.com/sokinpui/sandpatch/internal/ui"
	"github.com/sokinpui/sandpatch/model"
	"github.com/sokinpui/sandpatch/sandpatch"
)

var _ sandpatch.Hook = (*state.Manager)(nil)

// patchSource supplies the text the tool works on.
type patchSource interface {
	Patches(files []string) ([]source.Input, error)
	GetContent() (origin, content string, err error)
}

// App orchestrates the entire application logic.
type App struct {
	cfg          *cli.Config
	fileCfg      config.Config
	root         fs.RootFunc
	rootDir      string
	engineOpts   []sandpatch.Option
	stateManager *state.Manager
	source       patchSource
	stdout       io.Writer

	progressMu sync.Mutex
	progress   func(done, total int)
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

// New creates a new App instance.
func New(cfg *cli.Config) (*App, error) {
	fileCfg, err := config.Load(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}

	var root fs.RootFunc
	if cfg.Root != "" {
		root = fs.StaticRoot(cfg.Root)
	} else {
		fallback, err := defaultRoot()
		if err != nil {
			return nil, err
		}
		root = config.RootFunc(cfg.ConfigFile, fallback)
	}
	rootDir, err := fs.NewResolver(root).Root()
	if err != nil {
		return nil, err
	}

	stateDir := fileCfg.StateDir
	if stateDir == "" {
		if stateDir, err = config.DefaultStateDir(rootDir); err != nil {
			return nil, err
		}
	}
	stateManager, err := state.New(stateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state manager: %w", err)
	}

	var opts []sandpatch.Option
	if cfg.TrackOffsets || fileCfg.TrackOffsets {
		opts = append(opts, sandpatch.WithOffsetTracking())
	}

	return &App{
		cfg:          cfg,
		fileCfg:      fileCfg,
		root:         root,
		rootDir:      rootDir,
		engineOpts:   opts,
		stateManager: stateManager,
		source:       source.New(),
		stdout:       os.Stdout,
	}, nil
}

// defaultRoot is the enclosing git repository, or the working directory
// outside of one.
func defaultRoot() (string, error) {
	if root, err := findGitRoot(); err == nil && root != "" {
		return root, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("could not get current working directory: %w", err)
	}
	return wd, nil
}

// findGitRoot finds the root of the git repository.
func findGitRoot() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// SetProgress registers fn to be told how many items of the current step
// are done. It may be called from several goroutines, one call at a time.
func (a *App) SetProgress(fn func(done, total int)) {
	a.progressMu.Lock()
	defer a.progressMu.Unlock()
	a.progress = fn
}

func (a *App) reportProgress(done, total int) {
	a.progressMu.Lock()
	defer a.progressMu.Unlock()
	if a.progress != nil {
		a.progress(done, total)
	}
}

// Execute runs the mode selected by the flags and returns a summary for
// display. Serve mode is started with Serve instead.
func (a *App) Execute(ctx context.Context) (summary model.Summary, err error) {
	// Centralized panic recovery to provide stack traces for unexpected errors.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	switch {
	case a.cfg.Undo:
		return a.undoLastRun()
	case a.cfg.Redo:
		return a.redoLastRun()
	case a.cfg.OutputFixed:
		return a.printRealigned(ctx)
	case a.cfg.DryRun:
		return a.printPreview(ctx)
	case a.cfg.Rewrite != "":
		return a.rewrite(ctx)
	default:
		return a.applyPatches(ctx)
	}
}

// applyPatches applies every input patch. Patches for different files run
// concurrently; patches for the same file keep their input order.
func (a *App) applyPatches(ctx context.Context) (model.Summary, error) {
	inputs, err := a.source.Patches(a.cfg.Files)
	if err != nil {
		return model.Summary{}, err
	}
	if len(inputs) == 0 {
		return model.Summary{Message: "Source is empty. Nothing to process."}, nil
	}

	tracker := newTracker()
	engine := a.engine(tracker, a.stateManager)
	groups := groupByTarget(inputs)

	var (
		mu     sync.Mutex
		failed []string
		done   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, group := range groups {
		group := group
		g.Go(func() error {
			for _, in := range group {
				res := engine.Apply(gctx, in.Patch)
				mu.Lock()
				if res.Failed() {
					failed = append(failed, fmt.Sprintf("%s: %s", in.Origin, res.Error))
				}
				done++
				a.reportProgress(done, len(inputs))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := a.stateManager.Commit(); err != nil {
		ui.Warning("Failed to record history, undo will not be available: %v", err)
	}
	a.reloadEditor(tracker.absPaths())

	summary := tracker.summary()
	sort.Strings(failed)
	summary.Failed = failed
	summary.Message = fmt.Sprintf("Applied %d of %d patch(es).", len(inputs)-len(failed), len(inputs))
	return summary, nil
}

// groupByTarget buckets inputs by the file they touch, preserving order
// within and across buckets. Inputs that do not parse get a bucket each.
func groupByTarget(inputs []source.Input) [][]source.Input {
	var groups [][]source.Input
	index := make(map[string]int)
	for _, in := range inputs {
		p, err := parser.Parse(in.Patch)
		if err != nil {
			groups = append(groups, []source.Input{in})
			continue
		}
		key := fs.Key(filepath.Clean(p.Path))
		if i, ok := index[key]; ok {
			groups[i] = append(groups[i], in)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, []source.Input{in})
	}
	return groups
}

func (a *App) rewrite(ctx context.Context) (model.Summary, error) {
	content, err := a.rewriteContent()
	if err != nil {
		return model.Summary{}, err
	}

	tracker := newTracker()
	res := a.engine(tracker, a.stateManager).Rewrite(ctx, a.cfg.Rewrite, content)
	if err := a.stateManager.Commit(); err != nil {
		ui.Warning("Failed to record history, undo will not be available: %v", err)
	}
	a.reloadEditor(tracker.absPaths())

	summary := tracker.summary()
	if res.Failed() {
		summary.Failed = []string{fmt.Sprintf("%s: %s", a.cfg.Rewrite, res.Error)}
	}
	return summary, nil
}

func (a *App) rewriteContent() (string, error) {
	if len(a.cfg.Files) == 1 {
		data, err := os.ReadFile(a.cfg.Files[0])
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return string(data), nil
	}
	_, content, err := a.source.GetContent()
	return content, err
}

// printPreview prints the diff each patch would produce without writing.
func (a *App) printPreview(ctx context.Context) (model.Summary, error) {
	inputs, err := a.source.Patches(a.cfg.Files)
	if err != nil {
		return model.Summary{}, err
	}

	engine := a.engine()
	var summary model.Summary
	for _, in := range inputs {
		preview, err := engine.Preview(ctx, in.Patch)
		if err != nil {
			summary.Failed = append(summary.Failed, fmt.Sprintf("%s: %v", in.Origin, err))
			continue
		}
		ui.Diff(a.stdout, patcher.LineDiff(preview.Path, preview.Before, preview.After))
		added, removed := patcher.DiffStat(preview.Before, preview.After)
		ui.Info("%s: +%d -%d", preview.Path, added, removed)
		switch {
		case preview.Op == model.OpDelete:
			summary.Deleted = append(summary.Deleted, preview.Path)
		case !preview.Existed:
			summary.Created = append(summary.Created, preview.Path)
		default:
			summary.Modified = append(summary.Modified, preview.Path)
		}
	}
	summary.Message = "Dry run: no files were written."
	return summary, nil
}

// printRealigned prints each patch with hunk headers recomputed against the
// files on disk.
func (a *App) printRealigned(ctx context.Context) (model.Summary, error) {
	inputs, err := a.source.Patches(a.cfg.Files)
	if err != nil {
		return model.Summary{}, err
	}

	engine := a.engine()
	var summary model.Summary
	for _, in := range inputs {
		fixed, err := engine.Realign(ctx, in.Patch)
		if err != nil {
			ui.Warning("Skipping patch from '%s': %v", in.Origin, err)
			summary.Failed = append(summary.Failed, in.Origin)
			continue
		}
		fmt.Fprint(a.stdout, fixed)
	}
	return summary, nil
}

// undoLastRun handles the undo logic.
func (a *App) undoLastRun() (model.Summary, error) {
	undone, failed, err := a.stateManager.Undo(a.historyProgress())
	if errors.Is(err, state.ErrNothingToUndo) {
		return model.Summary{Message: "Nothing to undo."}, nil
	}
	if err != nil {
		return model.Summary{}, err
	}
	a.reloadEditor(undone)
	return model.Summary{
		Modified: a.relPaths(undone),
		Failed:   a.relPaths(failed),
		Message:  "Undid the last run.",
	}, nil
}

// redoLastRun handles the redo logic.
func (a *App) redoLastRun() (model.Summary, error) {
	redone, failed, err := a.stateManager.Redo(a.historyProgress())
	if errors.Is(err, state.ErrNothingToRedo) {
		return model.Summary{Message: "Nothing to redo."}, nil
	}
	if err != nil {
		return model.Summary{}, err
	}
	a.reloadEditor(redone)
	return model.Summary{
		Modified: a.relPaths(redone),
		Failed:   a.relPaths(failed),
		Message:  "Redid the last undone run.",
	}, nil
}

func (a *App) historyProgress() func(int) {
	return func(done int) {
		a.reportProgress(done, 0)
	}
}

// engine builds an Engine over the configured root with the given hooks.
func (a *App) engine(hooks ...sandpatch.Hook) *sandpatch.Engine {
	opts := append([]sandpatch.Option(nil), a.engineOpts...)
	for _, h := range hooks {
		opts = append(opts, sandpatch.WithHook(h))
	}
	return sandpatch.New(a.root, opts...)
}

func (a *App) nvimEnabled() bool {
	return a.cfg.Nvim || a.fileCfg.Nvim
}

// reloadEditor makes Neovim pick up changed files, when enabled.
func (a *App) reloadEditor(absPaths []string) {
	if !a.nvimEnabled() || len(absPaths) == 0 {
		return
	}
	manager, err := nvim.New()
	if err != nil {
		ui.Warning("Skipping editor reload: %v", err)
		return
	}
	defer manager.Close()

	_, failed := manager.ReloadFiles(absPaths, nil)
	for _, f := range failed {
		ui.Warning("Failed to reload %s in neovim", f)
	}
}

// relPaths converts journal paths for display, dropping repeats.
func (a *App) relPaths(absPaths []string) []string {
	seen := make(map[string]bool, len(absPaths))
	out := make([]string, 0, len(absPaths))
	for _, p := range absPaths {
		if rel, err := filepath.Rel(a.rootDir, p); err == nil {
			p = rel
		}
		p = filepath.ToSlash(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
