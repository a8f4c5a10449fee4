package view

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
)

// FlashSession names the cookie that carries one-shot messages across a
// redirect.
const FlashSession = "konomads_flash"

const flashMaxAge = 60

// Redirect queues message as a flash for the next page and answers 303.
func (v *Renderer) Redirect(w http.ResponseWriter, r *http.Request, target, message string) {
	if message != "" {
		// A cookie signed with a rotated key decodes to a fresh session.
		session, _ := v.flashes.Get(r, FlashSession)
		withMaxAge(session, flashMaxAge)
		session.AddFlash(message)
		if err := session.Save(r, w); err != nil {
			v.logger.ErrorContext(r.Context(), "Failed to save flash", slog.Any("error", err))
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// popFlash returns the newest queued message and expires the cookie.
func (v *Renderer) popFlash(w http.ResponseWriter, r *http.Request) string {
	if _, err := r.Cookie(FlashSession); err != nil {
		return ""
	}
	session, _ := v.flashes.Get(r, FlashSession)
	flashes := session.Flashes()
	withMaxAge(session, -1)
	if err := session.Save(r, w); err != nil {
		v.logger.ErrorContext(r.Context(), "Failed to clear flash", slog.Any("error", err))
	}
	for i := len(flashes) - 1; i >= 0; i-- {
		if msg, ok := flashes[i].(string); ok && msg != "" {
			return msg
		}
	}
	return ""
}

func withMaxAge(s *sessions.Session, maxAge int) {
	var opts sessions.Options
	if s.Options != nil {
		opts = *s.Options
	}
	opts.MaxAge = maxAge
	s.Options = &opts
}
