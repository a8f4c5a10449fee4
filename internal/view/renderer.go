package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	appMiddleware "github.com/FACorreiaa/konomads/app/middleware"
	"github.com/FACorreiaa/konomads/internal/api"
	"github.com/FACorreiaa/konomads/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page is the data every template receives.
type Page struct {
	Title     string
	Principal *types.Principal
	Flash     string
	Error     string
	Data      any
}

// Renderer executes page templates wrapped in the shared layout.
type Renderer struct {
	pages   map[string]*template.Template
	flashes sessions.Store
	logger  *slog.Logger
}

// New parses the embedded templates. Flash messages are kept in flashes.
func New(logger *slog.Logger, flashes sessions.Store) (*Renderer, error) {
	entries, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(entries))
	for _, entry := range entries {
		name := strings.TrimSuffix(path.Base(entry), ".html")
		if name == "layout" {
			continue
		}
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", entry)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages, flashes: flashes, logger: logger}, nil
}

// Render writes the named page. The principal from the request context is
// filled in when the caller left it empty.
func (v *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, page Page) {
	t, ok := v.pages[name]
	if !ok {
		v.logger.ErrorContext(r.Context(), "Unknown template", slog.String("template", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if page.Principal == nil {
		page.Principal, _ = appMiddleware.PrincipalFromContext(r.Context())
	}
	if page.Flash == "" {
		page.Flash = v.popFlash(w, r)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", page); err != nil {
		v.logger.ErrorContext(r.Context(), "Failed to render template", slog.String("template", name), slog.Any("error", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Error renders the error page with a message safe for users.
func (v *Renderer) Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	v.Render(w, r, status, "error", Page{
		Title: http.StatusText(status),
		Error: message,
		Data:  status,
	})
}

// Fail renders the error page for a service error. Server errors are logged;
// the user only sees detail for validation and conflict errors.
func (v *Renderer) Fail(w http.ResponseWriter, r *http.Request, err error) {
	status := api.StatusFromError(err)
	if status >= http.StatusInternalServerError {
		v.logger.ErrorContext(r.Context(), "Request failed", slog.Any("error", err))
		v.Error(w, r, status, "Something went wrong, please try again.")
		return
	}
	v.Error(w, r, status, api.UserMessage(err))
}

// StaticHandler serves the embedded assets; mount it under /static/.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

var funcs = template.FuncMap{
	"won":  formatWon,
	"date": func(t time.Time) string { return t.Format("Jan 2, 2006 15:04") },
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}

var wonPrinter = message.NewPrinter(language.Korean)

// formatWon renders an amount as ₩1,450,000.
func formatWon(amount int64) string {
	if amount < 0 {
		return "-" + wonPrinter.Sprintf("₩%d", -amount)
	}
	return wonPrinter.Sprintf("₩%d", amount)
}
