package container

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"

	database "github.com/FACorreiaa/konomads/app/db"
	"github.com/FACorreiaa/konomads/app/mailer"
	appMiddleware "github.com/FACorreiaa/konomads/app/middleware"
	"github.com/FACorreiaa/konomads/app/observability/metrics"
	"github.com/FACorreiaa/konomads/app/storage"
	"github.com/FACorreiaa/konomads/config"
	"github.com/FACorreiaa/konomads/internal/api/auth"
	"github.com/FACorreiaa/konomads/internal/api/city"
	"github.com/FACorreiaa/konomads/internal/api/meetup"
	"github.com/FACorreiaa/konomads/internal/api/post"
	"github.com/FACorreiaa/konomads/internal/api/profile"
	"github.com/FACorreiaa/konomads/internal/router"
	"github.com/FACorreiaa/konomads/internal/view"
)

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	Logger         *slog.Logger
	Pool           *pgxpool.Pool
	Store          storage.ObjectStore
	AuthHandler    *auth.Handler
	CityHandler    *city.Handler
	PostHandler    *post.Handler
	MeetupHandler  *meetup.Handler
	ProfileHandler *profile.Handler
	Gate           *appMiddleware.Gate
	databaseURL    string
}

// NewContainer connects to Postgres and the object store and wires every
// repository, service and handler.
func NewContainer(ctx context.Context, cfg *config.Config, appMetrics *metrics.AppMetrics, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	store, err := storage.NewS3Store(ctx, cfg.Storage, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	cookieStore := newCookieStore(cfg)
	renderer, err := view.New(logger, cookieStore)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	providers := setupProviders(cfg, cookieStore, logger)

	var queries database.Pool = pool
	if appMetrics != nil {
		queries = database.NewObservedPool(pool, appMetrics)
	}

	// Repositories
	authRepo := auth.NewPostgresAuthRepo(queries, logger)
	cityRepo := city.NewCityRepository(queries, logger)
	postRepo := post.NewPostRepository(queries, logger)
	meetupRepo := meetup.NewMeetupRepository(queries, logger)
	profileRepo := profile.NewProfileRepository(queries, logger)

	// Services
	authService := auth.NewAuthService(authRepo, cfg, mailer.NewLogMailer(cfg.Mail.From, logger), appMetrics, logger)
	cityService := city.NewCityService(cityRepo, cfg.Cache.CityTTL, cfg.Cache.CleanupInterval, appMetrics, logger)
	postService := post.NewPostService(postRepo, logger)
	meetupService := meetup.NewMeetupService(meetupRepo, logger)
	profileService := profile.NewProfileService(profileRepo, cityService, store, appMetrics, logger)

	// Handlers
	verifier := auth.NewJWTSessionVerifier(cfg.JWT, logger)
	cookies := auth.CookieSettings{
		Secure:     cfg.Server.SecureCookies,
		AccessTTL:  cfg.JWT.AccessTokenTTL,
		RefreshTTL: cfg.JWT.RefreshTokenTTL,
	}

	return &Container{
		Config:         cfg,
		Logger:         logger,
		Pool:           pool,
		Store:          store,
		AuthHandler:    auth.NewAuthHandler(authService, verifier, renderer, cookies, providers, logger),
		CityHandler:    city.NewCityHandler(cityService, postService, meetupService, renderer, logger),
		PostHandler:    post.NewPostHandler(postService, cityService, renderer, logger),
		MeetupHandler:  meetup.NewMeetupHandler(meetupService, cityService, renderer, logger),
		ProfileHandler: profile.NewProfileHandler(profileService, cityService, renderer, logger),
		Gate: appMiddleware.NewGate(verifier, appMiddleware.DefaultPublicRoutes(), logger,
			appMiddleware.WithRedirectRecorder(appMetrics)),
		databaseURL: dbConfig.ConnectionURL,
	}, nil
}

// newCookieStore signs the OAuth state and flash cookies.
func newCookieStore(cfg *config.Config) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.OAuth.SessionSecret))
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.Server.SecureCookies
	store.Options.SameSite = http.SameSiteLaxMode
	return store
}

// setupProviders registers the OAuth providers that have credentials and
// returns their names for the login page.
func setupProviders(cfg *config.Config, store sessions.Store, logger *slog.Logger) []string {
	gothic.Store = store

	var names []string
	if g := cfg.OAuth.Google; g.ClientID != "" {
		goth.UseProviders(google.New(g.ClientID, g.ClientSecret, cfg.Server.BaseURL+"/auth/google/callback", "email", "profile"))
		names = append(names, "google")
	}
	logger.Info("OAuth providers configured", slog.Any("providers", names))
	return names
}

// Router builds the HTTP handler over the wired dependencies.
func (c *Container) Router() http.Handler {
	return router.SetupRouter(&router.Config{
		Logger:         c.Logger,
		Gate:           c.Gate,
		AuthHandler:    c.AuthHandler,
		CityHandler:    c.CityHandler,
		PostHandler:    c.PostHandler,
		MeetupHandler:  c.MeetupHandler,
		ProfileHandler: c.ProfileHandler,
		RateLimit:      c.Config.RateLimit,
		Timeout:        c.Config.Server.Timeout,
		AllowedOrigins: c.Config.Server.AllowedOrigins,
	})
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}

// RunMigrations runs database migrations
func (c *Container) RunMigrations() error {
	return database.RunMigrations(c.databaseURL, c.Logger)
}
