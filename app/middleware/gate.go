package appMiddleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/FACorreiaa/konomads/internal/types"
)

type contextKey string

const principalKey contextKey = "principal"

const DefaultLoginPath = "/login"

// SessionVerifier resolves the caller's session. Any error, including a
// missing or expired credential, means "no session".
type SessionVerifier interface {
	Verify(ctx context.Context, r *http.Request) (*types.Principal, error)
}

// RedirectRecorder counts gate redirects. Optional.
type RedirectRecorder interface {
	RecordGateRedirect(ctx context.Context, path string)
}

// Gate forwards requests with a valid session or to a public route and
// redirects everything else to the login page. It holds no per-request state.
type Gate struct {
	verifier  SessionVerifier
	public    RouteTable
	loginPath string
	recorder  RedirectRecorder
	logger    *slog.Logger
}

type GateOption func(*Gate)

func WithLoginPath(path string) GateOption {
	return func(g *Gate) { g.loginPath = path }
}

func WithRedirectRecorder(rec RedirectRecorder) GateOption {
	return func(g *Gate) { g.recorder = rec }
}

func NewGate(verifier SessionVerifier, public RouteTable, logger *slog.Logger, opts ...GateOption) *Gate {
	g := &Gate{
		verifier:  verifier,
		public:    public,
		loginPath: DefaultLoginPath,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Handler is the chi-compatible middleware.
func (g *Gate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		l := g.logger.With(slog.String("middleware", "Gate"), slog.String("path", r.URL.Path))

		principal, err := g.verifier.Verify(ctx, r)
		if err != nil {
			l.DebugContext(ctx, "Session unverifiable", slog.Any("error", err))
			principal = nil
		}

		if principal != nil {
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
			return
		}
		if g.public.Matches(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		l.InfoContext(ctx, "Redirecting unauthenticated request to login")
		if g.recorder != nil {
			g.recorder.RecordGateRedirect(ctx, r.URL.Path)
		}
		http.Redirect(w, r, g.loginURL(r), http.StatusSeeOther)
	})
}

func (g *Gate) loginURL(r *http.Request) string {
	next := r.URL.RequestURI()
	if next == "" || next == "/" {
		return g.loginPath
	}
	return g.loginPath + "?" + url.Values{"next": {next}}.Encode()
}

// WithPrincipal stores the authenticated principal in ctx.
func WithPrincipal(ctx context.Context, p *types.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal stored by the gate, if any.
func PrincipalFromContext(ctx context.Context) (*types.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*types.Principal)
	return p, ok && p != nil
}

// SafeNext returns next when it is a local path, otherwise fallback. It keeps
// the login redirect from sending users to another host.
func SafeNext(next, fallback string) string {
	if len(next) == 0 || next[0] != '/' {
		return fallback
	}
	if len(next) > 1 && (next[1] == '/' || next[1] == '\\') {
		return fallback
	}
	return next
}
