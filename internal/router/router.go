package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	appLogger "github.com/FACorreiaa/konomads/app/logger"
	appMiddleware "github.com/FACorreiaa/konomads/app/middleware"
	"github.com/FACorreiaa/konomads/config"
	_ "github.com/FACorreiaa/konomads/docs"
	"github.com/FACorreiaa/konomads/internal/api/auth"
	"github.com/FACorreiaa/konomads/internal/api/city"
	"github.com/FACorreiaa/konomads/internal/api/meetup"
	"github.com/FACorreiaa/konomads/internal/api/post"
	"github.com/FACorreiaa/konomads/internal/api/profile"
	"github.com/FACorreiaa/konomads/internal/view"
)

// Config contains dependencies needed for the router setup
type Config struct {
	Logger         *slog.Logger
	Gate           *appMiddleware.Gate
	AuthHandler    *auth.Handler
	CityHandler    *city.Handler
	PostHandler    *post.Handler
	MeetupHandler  *meetup.Handler
	ProfileHandler *profile.Handler
	RateLimit      config.RateLimitConfig
	Timeout        time.Duration
	AllowedOrigins []string
}

// SetupRouter builds the application router. Session refresh runs before the
// access gate, and the gate runs before every route.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appLogger.StructuredLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	if cfg.Timeout > 0 {
		r.Use(middleware.Timeout(cfg.Timeout))
	}
	r.Use(middleware.Compress(5, "text/html", "application/json", "text/css"))
	r.Use(cfg.AuthHandler.RefreshSessionMiddleware)
	r.Use(cfg.Gate.Handler)

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	r.Handle("/static/*", view.StaticHandler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/cities", http.StatusSeeOther)
	})

	// --- Auth ---
	limited := func(h http.HandlerFunc) http.Handler {
		return httprate.LimitByIP(cfg.RateLimit.AuthRequests, cfg.RateLimit.AuthWindow)(h)
	}
	r.Get("/login", cfg.AuthHandler.LoginPage)
	r.Method(http.MethodPost, "/login", limited(cfg.AuthHandler.Login))
	r.Get("/register", cfg.AuthHandler.RegisterPage)
	r.Method(http.MethodPost, "/register", limited(cfg.AuthHandler.Register))
	r.Post("/logout", cfg.AuthHandler.Logout)
	r.Get("/forgot-password", cfg.AuthHandler.ForgotPasswordPage)
	r.Method(http.MethodPost, "/forgot-password", limited(cfg.AuthHandler.ForgotPassword))
	r.Get("/reset-password", cfg.AuthHandler.ResetPasswordPage)
	r.Post("/reset-password", cfg.AuthHandler.ResetPassword)
	r.Get("/auth/{provider}", cfg.AuthHandler.BeginProviderAuth)
	r.Get("/auth/{provider}/callback", cfg.AuthHandler.ProviderCallback)

	// --- Cities ---
	r.Get("/cities", cfg.CityHandler.ListCities)
	r.Get("/cities/{slug}", cfg.CityHandler.GetCity)

	// --- Posts ---
	r.Route("/posts", func(r chi.Router) {
		r.Get("/", cfg.PostHandler.ListPosts)
		r.Post("/", cfg.PostHandler.CreatePost)
		r.Get("/new", cfg.PostHandler.NewPost)
		r.Get("/{id}", cfg.PostHandler.GetPost)
		r.Post("/{id}/delete", cfg.PostHandler.DeletePost)
		r.Post("/{id}/comments", cfg.PostHandler.AddComment)
		r.Post("/{id}/comments/{commentID}/delete", cfg.PostHandler.DeleteComment)
	})

	// --- Meetups ---
	r.Route("/meetups", func(r chi.Router) {
		r.Get("/", cfg.MeetupHandler.ListMeetups)
		r.Post("/", cfg.MeetupHandler.CreateMeetup)
		r.Get("/new", cfg.MeetupHandler.NewMeetup)
		r.Get("/{id}", cfg.MeetupHandler.GetMeetup)
		r.Post("/{id}/join", cfg.MeetupHandler.JoinMeetup)
		r.Post("/{id}/leave", cfg.MeetupHandler.LeaveMeetup)
		r.Post("/{id}/cancel", cfg.MeetupHandler.CancelMeetup)
	})

	// --- Profiles ---
	r.Route("/profile", func(r chi.Router) {
		r.Get("/", cfg.ProfileHandler.MyProfile)
		r.Post("/", cfg.ProfileHandler.UpdateProfile)
		r.Get("/edit", cfg.ProfileHandler.EditProfile)
		r.Post("/avatar", cfg.ProfileHandler.UploadAvatar)
		r.Post("/avatar/delete", cfg.ProfileHandler.DeleteAvatar)
		r.Post("/password", cfg.AuthHandler.UpdatePassword)
	})
	r.Get("/users/{id}", cfg.ProfileHandler.UserProfile)

	// --- JSON API ---
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.Get("/cities", cfg.CityHandler.ListCitiesJSON)
	})

	return r
}
