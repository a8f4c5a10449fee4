// Package viewtest builds renderers for handler tests and decodes the flash
// message a handler queued before redirecting.
package viewtest

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/konomads/internal/view"
)

// Store signs flash cookies for renderers built by NewRenderer.
var Store = sessions.NewCookieStore([]byte("viewtest-flash-signing-key-32byt"))

func NewRenderer(t testing.TB) *view.Renderer {
	t.Helper()
	r, err := view.New(slog.New(slog.NewTextHandler(io.Discard, nil)), Store)
	require.NoError(t, err)
	return r
}

// Flash returns the message queued on rr, or "" when none was set.
func Flash(t testing.TB, rr *httptest.ResponseRecorder) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	found := false
	for _, c := range rr.Result().Cookies() {
		if c.Name == view.FlashSession && c.MaxAge >= 0 {
			req.AddCookie(c)
			found = true
		}
	}
	if !found {
		return ""
	}
	session, err := Store.Get(req, view.FlashSession)
	require.NoError(t, err)
	for _, f := range session.Flashes() {
		if msg, ok := f.(string); ok {
			return msg
		}
	}
	return ""
}
