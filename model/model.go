package model

// Op names the kind of mutation a request performed.
type Op string

const (
	OpAdd     Op = "add"
	OpUpdate  Op = "update"
	OpDelete  Op = "delete"
	OpRewrite Op = "rewrite"
)

// Result is the structured outcome of one engine request. Success and failure
// are told apart by Error: a failed result carries only the message.
type Result struct {
	OK    bool   `json:"ok,omitempty"`
	Path  string `json:"path,omitempty"`
	Op    Op     `json:"op,omitempty"`
	Error string `json:"error,omitempty"`

	// Err is the typed failure behind Error, for in-process callers.
	Err error `json:"-"`
}

// Failed reports whether the request did not complete.
func (r Result) Failed() bool {
	return r.Error != ""
}

// Mutation describes a single file mutation about to happen (or that just
// happened) under the sandbox root.
type Mutation struct {
	Op      Op
	Path    string // as given by the caller
	AbsPath string // root-confined absolute path
}

// Preview holds the before and after images of a file for a dry run.
type Preview struct {
	Op      Op
	Path    string
	AbsPath string
	Before  string
	After   string
	Existed bool
}

// Summary holds the results of an operation for display.
type Summary struct {
	Created  []string
	Modified []string
	Deleted  []string
	Failed   []string
	Message  string
}
