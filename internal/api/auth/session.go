package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appMiddleware "github.com/FACorreiaa/konomads/app/middleware"
	"github.com/FACorreiaa/konomads/config"
	"github.com/FACorreiaa/konomads/internal/types"
)

const (
	AccessTokenCookie  = "konomads_access"
	RefreshTokenCookie = "konomads_refresh"
)

var _ appMiddleware.SessionVerifier = (*JWTSessionVerifier)(nil)

// JWTSessionVerifier validates the access-token cookie issued by
// AuthService.GenerateTokens.
type JWTSessionVerifier struct {
	logger *slog.Logger
	cfg    config.JWTConfig
	parser *jwt.Parser
}

func NewJWTSessionVerifier(cfg config.JWTConfig, logger *slog.Logger) *JWTSessionVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(cfg.Issuer),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &JWTSessionVerifier{
		logger: logger,
		cfg:    cfg,
		parser: jwt.NewParser(opts...),
	}
}

// Verify returns ErrUnauthenticated when the request carries no usable token.
func (v *JWTSessionVerifier) Verify(ctx context.Context, r *http.Request) (*types.Principal, error) {
	token := accessTokenFromRequest(r)
	if token == "" {
		return nil, fmt.Errorf("no access token: %w", types.ErrUnauthenticated)
	}
	claims, err := v.ParseAccessToken(token)
	if err != nil {
		v.logger.DebugContext(ctx, "Access token rejected", slog.Any("error", err))
		return nil, err
	}
	return &types.Principal{
		UserID:   claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
	}, nil
}

func (v *JWTSessionVerifier) ParseAccessToken(tokenString string) (*types.Claims, error) {
	claims := &types.Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(v.cfg.SecretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrUnauthenticated, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token: %w", types.ErrUnauthenticated)
	}
	return claims, nil
}

type freshTokenKey struct{}

// accessTokenFromRequest prefers a token minted earlier in this request over
// the cookie the browser sent.
func accessTokenFromRequest(r *http.Request) string {
	if t, ok := r.Context().Value(freshTokenKey{}).(string); ok && t != "" {
		return t
	}
	c, err := r.Cookie(AccessTokenCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// CookieSettings controls the session cookies written after sign-in.
type CookieSettings struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (c CookieSettings) set(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    access,
		Path:     "/",
		MaxAge:   int(c.AccessTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    refresh,
		Path:     "/",
		MaxAge:   int(c.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieSettings) clear(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   c.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// RefreshSessionMiddleware renews an expired or missing access token from the
// refresh cookie. It runs ahead of the access gate so the gate sees the new
// token.
func (h *Handler) RefreshSessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := r.Cookie(RefreshTokenCookie)
		if err != nil || refresh.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		if token := accessTokenFromRequest(r); token != "" {
			if _, err := h.verifier.ParseAccessToken(token); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		ctx := r.Context()
		access, newRefresh, err := h.service.RefreshSession(ctx, refresh.Value)
		if err != nil {
			// Only a rejected refresh token ends the session; a failing store
			// leaves the cookies for the next request to retry.
			if errors.Is(err, types.ErrUnauthenticated) {
				h.cookies.clear(w)
			} else {
				h.logger.ErrorContext(ctx, "Failed to refresh session", slog.Any("error", err))
			}
			next.ServeHTTP(w, r)
			return
		}
		h.cookies.set(w, access, newRefresh)
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, freshTokenKey{}, access)))
	})
}
