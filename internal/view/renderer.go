package view

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/shared"
)

// Renderer fills the shared page fields and writes a page.
type Renderer struct {
	engine   *Engine
	csrf     *shared.CSRFManager
	resolver *authctx.Resolver
	logger   *slog.Logger
}

// NewRenderer constructs a Renderer.
func NewRenderer(engine *Engine, csrf *shared.CSRFManager, resolver *authctx.Resolver, logger *slog.Logger) *Renderer {
	return &Renderer{engine: engine, csrf: csrf, resolver: resolver, logger: logger}
}

// Page renders name with status. Rendering happens into a buffer first so a
// template error never leaves a half-written page behind.
func (rd *Renderer) Page(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	var csrfToken string
	if sess != nil {
		token, err := rd.csrf.EnsureToken(sess)
		if err != nil {
			rd.logger.Warn("ensure csrf token", slog.Any("error", err))
		}
		csrfToken = token
	}
	td := TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Query:       r.URL.Query(),
		Data:        data,
	}
	if rd.resolver != nil {
		if ac, err := rd.resolver.Resolve(r.Context()); err == nil && ac.Authenticated {
			viewer := ac.Principal
			td.Viewer = &viewer
		}
	}

	var buf bytes.Buffer
	rec := &bufferWriter{header: w.Header(), buf: &buf}
	if err := rd.engine.Render(rec, name, td); err != nil {
		rd.logger.Error("render page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// NotFound renders the shared not-found page.
func (rd *Renderer) NotFound(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = "Not found"
	}
	rd.Page(w, r, http.StatusNotFound, "pages/not_found.html", message, map[string]string{"Message": message})
}

// RedirectWithFlash queues a flash and redirects with 303.
func RedirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	shared.AddFlash(r.Context(), kind, message)
	http.Redirect(w, r, location, http.StatusSeeOther)
}

type bufferWriter struct {
	header http.Header
	buf    *bytes.Buffer
}

func (b *bufferWriter) Header() http.Header         { return b.header }
func (b *bufferWriter) Write(p []byte) (int, error) { return b.buf.Write(p) }
func (b *bufferWriter) WriteHeader(int)             {}
