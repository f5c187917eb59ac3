package patcher

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sokinpui/sandpatch/internal/fs"
	"github.com/sokinpui/sandpatch/internal/parser"
	"github.com/sokinpui/sandpatch/model"
)

// Options tunes how update hunks are spliced.
type Options struct {
	// TrackOffsets shifts each hunk by the net line count change of the
	// hunks before it. Off by default: every hunk's start is taken as-is.
	TrackOffsets bool
}

// Apply executes a parsed patch against absPath, which must already be
// resolved inside the sandbox. For deletes absPath names the entry to
// remove; a symlink is removed itself, never its target.
func Apply(p *parser.Patch, absPath string, opts Options) error {
	switch p.Op {
	case model.OpDelete:
		if info, err := os.Lstat(absPath); err == nil && info.IsDir() {
			return model.IOError("cannot delete a directory", p.Path, nil)
		}
		if err := fs.RemoveFile(absPath); err != nil {
			return model.IOError("failed to delete file", p.Path, err)
		}
		return nil
	case model.OpAdd:
		if err := fs.WriteFile(absPath, []byte(p.Content)); err != nil {
			return model.IOError("failed to write file", p.Path, err)
		}
		return nil
	case model.OpUpdate:
		original, err := fs.ReadText(absPath)
		if err != nil {
			return model.NotFoundError(p.Path, err)
		}
		updated := JoinLines(Splice(SplitLines(original), p.Hunks, opts))
		if err := os.WriteFile(absPath, []byte(updated), fs.FilePerm); err != nil {
			return model.IOError("failed to write file", p.Path, err)
		}
		return nil
	default:
		return model.FormatError("unsupported operation: " + string(p.Op))
	}
}

// Rewrite replaces the content of absPath verbatim, creating parent
// directories as needed. path is the caller's spelling, used in errors.
func Rewrite(path, absPath, content string) error {
	if err := os.MkdirAll(filepath.Dir(absPath), fs.DirPerm); err != nil {
		return model.NotFoundError(path, err)
	}
	if err := os.WriteFile(absPath, []byte(content), fs.FilePerm); err != nil {
		return model.IOError("failed to write file", path, err)
	}
	return nil
}

// Render computes what Apply would leave at absPath without writing it.
func Render(p *parser.Patch, absPath string, opts Options) (model.Preview, error) {
	preview := model.Preview{Op: p.Op, Path: p.Path, AbsPath: absPath}
	if p.Op == model.OpDelete {
		info, err := os.Lstat(absPath)
		switch {
		case err != nil:
			return preview, nil
		case info.IsDir():
			return preview, model.IOError("cannot delete a directory", p.Path, nil)
		case info.Mode()&os.ModeSymlink != 0:
			preview.Existed = true
			return preview, nil
		}
	}
	if before, err := fs.ReadText(absPath); err == nil {
		preview.Before = before
		preview.Existed = true
	}

	switch p.Op {
	case model.OpDelete:
		preview.After = ""
	case model.OpAdd:
		preview.After = p.Content
	case model.OpUpdate:
		if !preview.Existed {
			return preview, model.NotFoundError(p.Path, os.ErrNotExist)
		}
		preview.After = JoinLines(Splice(SplitLines(preview.Before), p.Hunks, opts))
	default:
		return preview, model.FormatError("unsupported operation: " + string(p.Op))
	}
	return preview, nil
}

// SplitLines splits file text into lines. A trailing newline terminates the
// last line rather than starting an empty one.
func SplitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// JoinLines joins lines with newlines and appends exactly one trailing newline.
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n") + "\n"
}

// Splice applies hunks to lines in patch order and returns the result. Each
// hunk deletes Old.Count lines at Old.Start-1 and inserts its context and
// added lines there. Out-of-range positions are clamped to the line slice.
func Splice(lines []string, hunks []parser.Hunk, opts Options) []string {
	result := append([]string(nil), lines...)
	offset := 0

	for _, h := range hunks {
		replacement := make([]string, 0, len(h.Lines))
		for _, line := range h.Lines {
			if line.Kind != parser.Remove {
				replacement = append(replacement, line.Text)
			}
		}

		index := h.Old.Start - 1
		if opts.TrackOffsets {
			index += offset
		}
		index = clamp(index, 0, len(result))
		count := clamp(h.Old.Count, 0, len(result)-index)

		spliced := make([]string, 0, len(result)-count+len(replacement))
		spliced = append(spliced, result[:index]...)
		spliced = append(spliced, replacement...)
		spliced = append(spliced, result[index+count:]...)
		result = spliced

		offset += len(replacement) - count
	}
	return result
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
