package model

import (
	"errors"
	"io/fs"
)

// Error kinds. Match them with errors.Is.
var (
	ErrFormat   = errors.New("malformed patch")
	ErrSecurity = errors.New("path outside sandbox")
	ErrNotFound = errors.New("file not found")
	ErrIO       = errors.New("i/o failure")
)

// Error is a failure raised by the engine. Msg is surfaced to callers
// verbatim; Err, when set, is the underlying cause. Error never exposes the
// absolute host path a filesystem cause carries; Path, the caller's
// spelling, stands in for it.
type Error struct {
	Kind error
	Msg  string
	Path string
	Err  error
}

func (e *Error) Error() string {
	// Not-found messages already name the path.
	if e.Err == nil || e.Kind == ErrNotFound {
		return e.Msg
	}
	return e.Msg + ": " + e.cause()
}

func (e *Error) cause() string {
	var pathErr *fs.PathError
	if !errors.As(e.Err, &pathErr) {
		return e.Err.Error()
	}
	if e.Path == "" {
		return pathErr.Err.Error()
	}
	return e.Path + ": " + pathErr.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinel as well as the wrapped cause.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// FormatError reports malformed patch text.
func FormatError(msg string) *Error {
	return &Error{Kind: ErrFormat, Msg: msg}
}

// SecurityError reports a path that resolves outside the sandbox root.
func SecurityError(path string) *Error {
	return &Error{Kind: ErrSecurity, Msg: "path escapes sandbox root: " + path, Path: path}
}

// RootError reports an operation that would act on the sandbox root itself.
func RootError(path string) *Error {
	return &Error{Kind: ErrSecurity, Msg: "path is the sandbox root: " + path, Path: path}
}

// NotFoundError reports a target that could not be read or prepared.
func NotFoundError(path string, err error) *Error {
	return &Error{Kind: ErrNotFound, Msg: "file not found: " + path, Path: path, Err: err}
}

// IOError reports any other filesystem failure.
func IOError(msg, path string, err error) *Error {
	return &Error{Kind: ErrIO, Msg: msg, Path: path, Err: err}
}
