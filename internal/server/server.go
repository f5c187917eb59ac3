package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sokinpui/sandpatch/internal/ui"
	"github.com/sokinpui/sandpatch/model"
	"github.com/sokinpui/sandpatch/sandpatch"
)

const maxBodyBytes = 32 << 20

// Server exposes an Engine over HTTP.
type Server struct {
	engine *sandpatch.Engine
	apiKey string
}

// New creates a Server. An empty apiKey disables authentication.
func New(engine *sandpatch.Engine, apiKey string) *Server {
	return &Server{engine: engine, apiKey: apiKey}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(logging)

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(api chi.Router) {
		api.Use(APIKey(s.apiKey))
		api.Post("/apply_patch", s.handleApplyPatch)
		api.Post("/rewrite_file", s.handleRewriteFile)
	})
	return r
}

type applyPatchRequest struct {
	Patch any `json:"patch"`
}

type rewriteFileRequest struct {
	Path    any `json:"path"`
	Content any `json:"content"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleApplyPatch(w http.ResponseWriter, r *http.Request) {
	var req applyPatchRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, s.engine.Apply(r.Context(), stringArg(req.Patch)))
}

func (s *Server) handleRewriteFile(w http.ResponseWriter, r *http.Request) {
	var req rewriteFileRequest
	if !decode(w, r, &req) {
		return
	}
	path := stringArg(req.Path)
	if path == "" {
		writeErr(w, http.StatusBadRequest, "path is required")
		return
	}
	writeResult(w, s.engine.Rewrite(r.Context(), path, stringArg(req.Content)))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// stringArg returns v if it is a JSON string and "" otherwise.
func stringArg(v any) string {
	s, _ := v.(string)
	return s
}

// StatusFor maps a failed result to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrFormat):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrSecurity):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeResult(w http.ResponseWriter, res model.Result) {
	if res.Failed() {
		writeJSON(w, StatusFor(res.Err), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func writeErr(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, model.Result{Error: message})
}

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status >= http.StatusInternalServerError {
			ui.Error("%s %s %d %s", r.Method, r.URL.Path, status, time.Since(start))
			return
		}
		ui.Info("%s %s %d %s", r.Method, r.URL.Path, status, time.Since(start))
	})
}
