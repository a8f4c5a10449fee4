package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/markbates/goth/gothic"
	"go.opentelemetry.io/otel"

	appMiddleware "github.com/FACorreiaa/konomads/app/middleware"
	"github.com/FACorreiaa/konomads/internal/api"
	"github.com/FACorreiaa/konomads/internal/types"
	"github.com/FACorreiaa/konomads/internal/view"
)

const defaultAfterLogin = "/cities"

type Handler struct {
	logger    *slog.Logger
	service   AuthService
	verifier  *JWTSessionVerifier
	view      *view.Renderer
	cookies   CookieSettings
	providers []string
}

func NewAuthHandler(service AuthService, verifier *JWTSessionVerifier, renderer *view.Renderer, cookies CookieSettings, providers []string, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		verifier:  verifier,
		view:      renderer,
		cookies:   cookies,
		providers: providers,
	}
}

type loginData struct {
	Next      string
	Email     string
	Providers []string
}

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	next := appMiddleware.SafeNext(r.URL.Query().Get("next"), defaultAfterLogin)
	if _, ok := appMiddleware.PrincipalFromContext(r.Context()); ok {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	h.view.Render(w, r, http.StatusOK, "login", view.Page{
		Title: "Log in",
		Data:  loginData{Next: next, Providers: h.providers},
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Login")
	defer span.End()
	l := h.logger.With(slog.String("handler", "Login"))

	email := r.PostFormValue("email")
	next := appMiddleware.SafeNext(r.PostFormValue("next"), defaultAfterLogin)

	access, refresh, err := h.service.Login(ctx, email, r.PostFormValue("password"))
	if err != nil {
		status, msg := http.StatusUnauthorized, "Invalid email or password."
		if !errors.Is(err, types.ErrUnauthenticated) {
			l.ErrorContext(ctx, "Login failed", slog.Any("error", err))
			span.RecordError(err)
			status, msg = http.StatusInternalServerError, "Something went wrong, please try again."
		}
		h.view.Render(w, r, status, "login", view.Page{
			Title: "Log in",
			Error: msg,
			Data:  loginData{Next: next, Email: email, Providers: h.providers},
		})
		return
	}

	h.cookies.set(w, access, refresh)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

type registerData struct {
	Username string
	Email    string
}

func (h *Handler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.view.Render(w, r, http.StatusOK, "register", view.Page{Title: "Sign up", Data: registerData{}})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Register")
	defer span.End()
	l := h.logger.With(slog.String("handler", "Register"))

	data := registerData{Username: r.PostFormValue("username"), Email: r.PostFormValue("email")}
	user, err := h.service.Register(ctx, data.Username, data.Email, r.PostFormValue("password"))
	if err != nil {
		status, msg := api.StatusFromError(err), api.UserMessage(err)
		switch {
		case errors.Is(err, types.ErrConflict):
			msg = "That username or email is already registered."
		case status == http.StatusInternalServerError:
			l.ErrorContext(ctx, "Registration failed", slog.Any("error", err))
			span.RecordError(err)
			msg = "Something went wrong, please try again."
		}
		h.view.Render(w, r, status, "register", view.Page{Title: "Sign up", Error: msg, Data: data})
		return
	}

	access, refresh, err := h.service.GenerateTokens(ctx, user)
	if err != nil {
		l.ErrorContext(ctx, "Failed to sign in new user", slog.Any("error", err))
		h.view.Redirect(w, r, "/login", "Your account is ready, please log in.")
		return
	}
	h.cookies.set(w, access, refresh)
	h.view.Redirect(w, r, "/profile/edit", "Welcome to Konomads!")
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		if err := h.service.Logout(ctx, c.Value); err != nil {
			h.logger.ErrorContext(ctx, "Failed to revoke refresh token", slog.Any("error", err))
		}
	}
	h.cookies.clear(w)
	h.view.Redirect(w, r, "/cities", "You have been logged out.")
}

func (h *Handler) ForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	h.view.Render(w, r, http.StatusOK, "forgot_password", view.Page{Title: "Forgot password"})
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.RequestPasswordReset(ctx, r.PostFormValue("email")); err != nil {
		h.logger.ErrorContext(ctx, "Password reset request failed", slog.Any("error", err))
		h.view.Error(w, r, http.StatusInternalServerError, "We could not send the reset link, please try again.")
		return
	}
	h.view.Redirect(w, r, "/login", "If that address has an account, a reset link is on its way.")
}

type resetData struct {
	Token string
}

func (h *Handler) ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.view.Error(w, r, http.StatusBadRequest, "The reset link is missing its token.")
		return
	}
	h.view.Render(w, r, http.StatusOK, "reset_password", view.Page{Title: "Choose a new password", Data: resetData{Token: token}})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := r.PostFormValue("token")
	if err := h.service.ResetPassword(ctx, token, r.PostFormValue("password")); err != nil {
		status := api.StatusFromError(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(ctx, "Password reset failed", slog.Any("error", err))
		}
		h.view.Render(w, r, status, "reset_password", view.Page{
			Title: "Choose a new password",
			Error: api.UserMessage(err),
			Data:  resetData{Token: token},
		})
		return
	}
	h.view.Redirect(w, r, "/login", "Password updated, please log in.")
}

// UpdatePassword handles POST /profile/password for the signed-in user.
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := appMiddleware.PrincipalFromContext(ctx)
	if !ok {
		http.Redirect(w, r, appMiddleware.DefaultLoginPath, http.StatusSeeOther)
		return
	}

	err := h.service.UpdatePassword(ctx, principal.UserID, r.PostFormValue("current_password"), r.PostFormValue("new_password"))
	if err != nil {
		if api.StatusFromError(err) == http.StatusInternalServerError {
			h.logger.ErrorContext(ctx, "Password update failed", slog.Any("error", err))
		}
		h.view.Redirect(w, r, "/profile/edit", api.UserMessage(err))
		return
	}

	// The change revoked every refresh token, this one included.
	access, refresh, err := h.service.GenerateTokens(ctx, &types.UserAuth{
		ID:       principal.UserID,
		Username: principal.Username,
		Email:    principal.Email,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to reissue session", slog.Any("error", err))
		h.cookies.clear(w)
		h.view.Redirect(w, r, "/login", "Password changed, please log in again.")
		return
	}
	h.cookies.set(w, access, refresh)
	h.view.Redirect(w, r, "/profile", "Password changed.")
}

func (h *Handler) withProvider(r *http.Request) (*http.Request, bool) {
	provider := chi.URLParam(r, "provider")
	if !slices.Contains(h.providers, provider) {
		return r, false
	}
	q := r.URL.Query()
	q.Set("provider", provider)
	r.URL.RawQuery = q.Encode()
	return r, true
}

// BeginProviderAuth handles GET /auth/{provider}.
func (h *Handler) BeginProviderAuth(w http.ResponseWriter, r *http.Request) {
	r, ok := h.withProvider(r)
	if !ok {
		h.view.Error(w, r, http.StatusNotFound, "Unknown sign-in provider.")
		return
	}
	gothic.BeginAuthHandler(w, r)
}

// ProviderCallback handles GET /auth/{provider}/callback.
func (h *Handler) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "ProviderCallback")
	defer span.End()
	r = r.WithContext(ctx)

	r, ok := h.withProvider(r)
	if !ok {
		h.view.Error(w, r, http.StatusNotFound, "Unknown sign-in provider.")
		return
	}
	provider := chi.URLParam(r, "provider")
	l := h.logger.With(slog.String("handler", "ProviderCallback"), slog.String("provider", provider))

	gothUser, err := gothic.CompleteUserAuth(w, r)
	if err != nil {
		l.WarnContext(ctx, "Provider sign-in failed", slog.Any("error", err))
		h.view.Redirect(w, r, "/login", "Sign-in was cancelled or failed.")
		return
	}

	user, err := h.service.GetOrCreateUserFromProvider(ctx, provider, gothUser)
	if err != nil {
		if errors.Is(err, types.ErrConflict) || errors.Is(err, types.ErrValidation) {
			h.view.Redirect(w, r, "/login", api.UserMessage(err))
			return
		}
		l.ErrorContext(ctx, "Failed to resolve provider user", slog.Any("error", err))
		span.RecordError(err)
		h.view.Error(w, r, http.StatusInternalServerError, "Sign-in failed, please try again.")
		return
	}

	access, refresh, err := h.service.GenerateTokens(ctx, user)
	if err != nil {
		l.ErrorContext(ctx, "Failed to issue tokens", slog.Any("error", err))
		h.view.Error(w, r, http.StatusInternalServerError, "Sign-in failed, please try again.")
		return
	}
	h.cookies.set(w, access, refresh)
	http.Redirect(w, r, defaultAfterLogin, http.StatusSeeOther)
}
