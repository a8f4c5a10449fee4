package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/konomads/app/mailer"
	"github.com/FACorreiaa/konomads/config"
	"github.com/FACorreiaa/konomads/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

const minPasswordLength = 8

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)

type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*types.UserAuth, error)
	Login(ctx context.Context, email, password string) (string, string, error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshSession(ctx context.Context, refreshToken string) (string, string, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	UpdatePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	GetOrCreateUserFromProvider(ctx context.Context, provider string, providerUser goth.User) (*types.UserAuth, error)
	GenerateTokens(ctx context.Context, user *types.UserAuth) (string, string, error)
}

// Recorder receives auth outcome counts. Optional.
type Recorder interface {
	RecordLogin(ctx context.Context, success bool)
	RecordRegistration(ctx context.Context)
}

type AuthServiceImpl struct {
	logger   *slog.Logger
	repo     AuthRepo
	jwtCfg   config.JWTConfig
	baseURL  string
	mailer   mailer.Mailer
	recorder Recorder
	now      func() time.Time
}

func NewAuthService(repo AuthRepo, cfg *config.Config, m mailer.Mailer, recorder Recorder, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger:   logger,
		repo:     repo,
		jwtCfg:   cfg.JWT,
		baseURL:  strings.TrimRight(cfg.Server.BaseURL, "/"),
		mailer:   m,
		recorder: recorder,
		now:      time.Now,
	}
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, types.ErrValidation)
	}
	if len(password) > 72 {
		return fmt.Errorf("password must be at most 72 bytes: %w", types.ErrValidation)
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return "", fmt.Errorf("email address is not valid: %w", types.ErrValidation)
	}
	return strings.ToLower(addr.Address), nil
}

func (s *AuthServiceImpl) Register(ctx context.Context, username, email, password string) (*types.UserAuth, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register")
	defer span.End()
	l := s.logger.With(slog.String("method", "Register"))

	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return nil, fmt.Errorf("username must be 3-32 letters, digits, '-' or '_': %w", types.ErrValidation)
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, username, email, string(hashed))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create user")
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.RecordRegistration(ctx)
	}
	l.InfoContext(ctx, "User registered", slog.String("userID", user.ID))
	return user, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (string, string, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()
	l := s.logger.With(slog.String("method", "Login"))

	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		s.recordLogin(ctx, false)
		if errors.Is(err, types.ErrNotFound) {
			return "", "", fmt.Errorf("invalid credentials: %w", types.ErrUnauthenticated)
		}
		span.RecordError(err)
		return "", "", err
	}
	// Provider-only accounts carry no password hash.
	if user.Password == "" || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		s.recordLogin(ctx, false)
		l.InfoContext(ctx, "Invalid credentials", slog.String("userID", user.ID))
		return "", "", fmt.Errorf("invalid credentials: %w", types.ErrUnauthenticated)
	}

	access, refresh, err := s.GenerateTokens(ctx, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to issue tokens")
		return "", "", err
	}
	s.recordLogin(ctx, true)
	return access, refresh, nil
}

func (s *AuthServiceImpl) recordLogin(ctx context.Context, success bool) {
	if s.recorder != nil {
		s.recorder.RecordLogin(ctx, success)
	}
}

func (s *AuthServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.repo.InvalidateRefreshToken(ctx, refreshToken)
}

// RefreshSession rotates refreshToken: the old token is revoked and a new
// pair is issued.
func (s *AuthServiceImpl) RefreshSession(ctx context.Context, refreshToken string) (string, string, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "RefreshSession")
	defer span.End()

	if refreshToken == "" {
		return "", "", fmt.Errorf("missing refresh token: %w", types.ErrUnauthenticated)
	}
	userID, err := s.repo.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", "", err
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, types.ErrNotFound) {
			return "", "", fmt.Errorf("refresh token owner gone: %w", types.ErrUnauthenticated)
		}
		return "", "", err
	}
	return s.GenerateTokens(ctx, user)
}

// RequestPasswordReset mails a single-use reset link. Unknown addresses are
// not reported to the caller.
func (s *AuthServiceImpl) RequestPasswordReset(ctx context.Context, email string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "RequestPasswordReset")
	defer span.End()
	l := s.logger.With(slog.String("method", "RequestPasswordReset"))

	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			l.InfoContext(ctx, "Password reset requested for unknown email")
			return nil
		}
		span.RecordError(err)
		return err
	}

	token := uuid.NewString()
	if err := s.repo.CreatePasswordReset(ctx, user.ID, token, s.now().Add(s.jwtCfg.PasswordResetTTL)); err != nil {
		span.RecordError(err)
		return err
	}

	link := s.baseURL + "/reset-password?" + url.Values{"token": {token}}.Encode()
	body := fmt.Sprintf("Hi %s,\n\nUse this link to choose a new password:\n%s\n\nThe link expires in %s.\n",
		user.Username, link, s.jwtCfg.PasswordResetTTL)
	if err := s.mailer.Send(ctx, user.Email, "Reset your Konomads password", body); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to send reset mail: %w", err)
	}
	return nil
}

func (s *AuthServiceImpl) ResetPassword(ctx context.Context, token, newPassword string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ResetPassword")
	defer span.End()

	if err := validatePassword(newPassword); err != nil {
		return err
	}
	userID, err := s.repo.ConsumePasswordReset(ctx, token)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, userID, newPassword)
}

// UpdatePassword changes the password of a signed-in user. Accounts created
// through a provider have no current password and may set one directly.
func (s *AuthServiceImpl) UpdatePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "UpdatePassword")
	defer span.End()

	if err := validatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Password != "" && bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)) != nil {
		return fmt.Errorf("current password is incorrect: %w", types.ErrValidation)
	}
	return s.setPassword(ctx, userID, newPassword)
}

func (s *AuthServiceImpl) setPassword(ctx context.Context, userID, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return err
	}
	// Every other session ends with a password change.
	return s.repo.InvalidateAllUserRefreshTokens(ctx, userID)
}

func (s *AuthServiceImpl) GetOrCreateUserFromProvider(ctx context.Context, provider string, providerUser goth.User) (*types.UserAuth, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "GetOrCreateUserFromProvider", trace.WithAttributes(
		attribute.String("provider", provider),
	))
	defer span.End()
	l := s.logger.With(slog.String("method", "GetOrCreateUserFromProvider"), slog.String("provider", provider))

	user, err := s.repo.GetUserByProvider(ctx, provider, providerUser.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		span.RecordError(err)
		return nil, err
	}

	email, err := normalizeEmail(providerUser.Email)
	if err != nil {
		return nil, fmt.Errorf("provider did not share a usable email: %w", types.ErrValidation)
	}
	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("an account with this email exists, sign in with your password: %w", types.ErrConflict)
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	base := providerUsername(providerUser)
	user, err = s.repo.CreateProviderUser(ctx, provider, providerUser.UserID, base, email)
	if errors.Is(err, types.ErrConflict) {
		user, err = s.repo.CreateProviderUser(ctx, provider, providerUser.UserID, base+"-"+uuid.NewString()[:6], email)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.RecordRegistration(ctx)
	}
	l.InfoContext(ctx, "User registered through provider", slog.String("userID", user.ID))
	return user, nil
}

var usernameStrip = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func providerUsername(u goth.User) string {
	for _, candidate := range []string{u.NickName, u.Name, strings.SplitN(u.Email, "@", 2)[0]} {
		name := usernameStrip.ReplaceAllString(candidate, "")
		if len(name) > 24 {
			name = name[:24]
		}
		if len(name) >= 3 {
			return name
		}
	}
	return "nomad"
}

func (s *AuthServiceImpl) GenerateTokens(ctx context.Context, user *types.UserAuth) (string, string, error) {
	now := s.now()
	claims := types.Claims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtCfg.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.jwtCfg.Issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{s.jwtCfg.Audience},
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtCfg.SecretKey))
	if err != nil {
		return "", "", fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh := uuid.NewString()
	if err := s.repo.StoreRefreshToken(ctx, user.ID, refresh, now.Add(s.jwtCfg.RefreshTokenTTL)); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
