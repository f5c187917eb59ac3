package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sokinpui/sandpatch/internal/nvim"
	"github.com/sokinpui/sandpatch/internal/server"
	"github.com/sokinpui/sandpatch/internal/ui"
	"github.com/sokinpui/sandpatch/model"
	"github.com/sokinpui/sandpatch/sandpatch"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 120 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// reloadHook reloads each mutated file in Neovim as soon as it is written.
type reloadHook struct {
	manager *nvim.Manager
}

func (h reloadHook) Before(model.Mutation) error { return nil }

func (h reloadHook) After(m model.Mutation) {
	if _, failed := h.manager.ReloadFiles([]string{m.AbsPath}, nil); len(failed) > 0 {
		ui.Warning("Failed to reload %s in neovim", m.Path)
	}
}

// Handler returns the HTTP API over the configured root. Mutations made
// through it are not journaled.
func (a *App) Handler() (http.Handler, func()) {
	var hooks []sandpatch.Hook
	cleanup := func() {}
	if a.nvimEnabled() {
		manager, err := nvim.New()
		if err != nil {
			ui.Warning("Editor reload disabled: %v", err)
		} else {
			hooks = append(hooks, reloadHook{manager: manager})
			cleanup = manager.Close
		}
	}

	apiKey := a.cfg.APIKey
	if apiKey == "" {
		apiKey = a.fileCfg.APIKey
	}
	return server.New(a.engine(hooks...), apiKey).Handler(), cleanup
}

// Serve runs the HTTP API on the --serve address until ctx is done, then
// drains in-flight requests.
func (a *App) Serve(ctx context.Context) error {
	handler, cleanup := a.Handler()
	defer cleanup()

	addr := a.cfg.Serve
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	ui.Header("sandpatch listening on %s (root %s)", addr, a.rootDir)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		ui.Info("Shutdown signal received, draining in-flight requests (timeout=%s)", shutdownTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		ui.Warning("In-flight requests exceeded %s, forcing close", shutdownTimeout)
		if err := httpServer.Close(); err != nil {
			return fmt.Errorf("force close failed after shutdown timeout: %w", err)
		}
	}

	if err := <-errCh; err != nil {
		return fmt.Errorf("listen failed during shutdown: %w", err)
	}
	ui.Success("Shutdown complete")
	return nil
}
