package nvim

import (
	"errors"
	"fmt"
	"os"

	"github.com/neovim/go-client/nvim"
)

// ErrNoInstance is returned when there is no Neovim to talk to.
var ErrNoInstance = errors.New("no neovim instance: NVIM_LISTEN_ADDRESS is not set")

// Manager handles the connection to a running Neovim instance.
type Manager struct {
	nvim *nvim.Nvim
}

// New connects to the Neovim instance that launched this process, if any.
func New() (*Manager, error) {
	return Dial(os.Getenv("NVIM_LISTEN_ADDRESS"))
}

// Dial connects to the Neovim listening on addr (a socket path or host:port).
func Dial(addr string) (*Manager, error) {
	if addr == "" {
		return nil, ErrNoInstance
	}
	v, err := nvim.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to neovim at %s: %w", addr, err)
	}
	return &Manager{nvim: v}, nil
}

// Close disconnects from Neovim.
func (m *Manager) Close() {
	if m.nvim != nil {
		m.nvim.Close()
	}
}

// processSequentially is a generic helper function to run a set of jobs sequentially.
func processSequentially[T any](
	items []T,
	processFn func(item T) (path string, success bool),
	progressCb func(int),
) (succeeded, failed []string) {
	if len(items) == 0 {
		return nil, nil
	}

	for i, item := range items {
		path, success := processFn(item)
		if success {
			succeeded = append(succeeded, path)
		} else {
			failed = append(failed, path)
		}
		if progressCb != nil {
			progressCb(i + 1)
		}
	}

	return succeeded, failed
}

// ReloadFiles makes Neovim re-read the buffers showing the given absolute
// paths. Paths without a loaded buffer need no reload and count as done.
func (m *Manager) ReloadFiles(paths []string, progressCb func(int)) (reloaded, failed []string) {
	processFn := func(path string) (string, bool) {
		return path, m.reloadBuffer(path)
	}
	return processSequentially(paths, processFn, progressCb)
}

func (m *Manager) reloadBuffer(absPath string) bool {
	var bufnr int
	if err := m.nvim.Call("bufnr", &bufnr, absPath); err != nil {
		return false
	}
	if bufnr < 0 {
		return true
	}
	return m.nvim.Command(fmt.Sprintf("checktime %d", bufnr)) == nil
}
