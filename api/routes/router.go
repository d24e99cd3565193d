package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xymail/xymail-backend/api/controllers"
	"github.com/xymail/xymail-backend/api/middleware"
	"github.com/xymail/xymail-backend/internal/activation"
	"github.com/xymail/xymail-backend/internal/auth"
	"github.com/xymail/xymail-backend/internal/cardkeys"
	"github.com/xymail/xymail-backend/internal/cleanup"
	"github.com/xymail/xymail-backend/internal/emails"
	"github.com/xymail/xymail-backend/internal/messages"
	"github.com/xymail/xymail-backend/internal/settings"
	"github.com/xymail/xymail-backend/internal/tempaccounts"
	"github.com/xymail/xymail-backend/internal/users"
	"github.com/xymail/xymail-backend/pkg/auth/session"
	"github.com/xymail/xymail-backend/pkg/config"
	"github.com/xymail/xymail-backend/pkg/enums"
	"github.com/xymail/xymail-backend/pkg/logger"
)

type sessionManager interface {
	session.AccessSessionChecker
	Revoke(context.Context, string) error
}

// Params carries everything the router wires into handlers. Optional
// dependencies (Redis, RateLimitStore, Metrics) may be nil.
type Params struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             controllers.Pinger
	Redis          controllers.Pinger
	RateLimitStore middleware.RateLimiterStore
	Sessions       sessionManager
	Metrics        prometheus.Gatherer

	Auth         *auth.Service
	Activation   *activation.Service
	CardKeys     *cardkeys.Service
	Users        *users.Service
	Cleanup      *cleanup.Service
	Settings     *settings.Service
	TempAccounts *tempaccounts.Service
	Emails       *emails.Service
	Messages     *messages.Service
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		"username",
		cfg.AuthRateLimit.LoginUsernameLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		"username",
		cfg.AuthRateLimit.RegisterUsernameLimit,
	)
	activationPolicy := middleware.NewAuthRateLimitPolicy(
		"activation",
		cfg.AuthRateLimit.ActivationWindow,
		cfg.AuthRateLimit.ActivationIPLimit,
		"", 0,
	)

	deps := map[string]controllers.Pinger{}
	if p.DB != nil {
		deps["database"] = p.DB
	}
	if p.Redis != nil {
		deps["redis"] = p.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	if p.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Metrics, promhttp.HandlerOpts{}))
	}

	r.With(middleware.AuthRateLimit(activationPolicy, p.RateLimitStore, logg)).
		Post("/activation", controllers.Activate(p.CardKeys, p.Activation, p.Auth, logg))

	r.Route("/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, p.RateLimitStore, logg)).Post("/login", controllers.AuthLogin(p.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, p.RateLimitStore, logg)).Post("/register", controllers.AuthRegister(p.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.Auth, cfg.JWT, logg))
		r.With(middleware.Auth(cfg.JWT, p.Sessions, logg)).Post("/logout", controllers.AuthLogout(p.Sessions, cfg.JWT, logg))
	})

	r.With(middleware.InboundSecret(cfg.Inbound.Secret, logg)).
		Post("/inbound", controllers.InboundDeliver(p.Messages, cfg.Inbound.MaxBodyBytes, logg))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))

		r.Get("/temp-account", controllers.TempAccountStatus(p.TempAccounts, logg))

		r.Route("/emails", func(r chi.Router) {
			r.Get("/", controllers.EmailsList(p.Emails, logg))
			r.Post("/", controllers.EmailsCreate(p.Emails, logg))
			r.Get("/{emailId}/messages", controllers.EmailMessages(p.Emails, p.Messages, logg))
		})

		r.Route("/config", func(r chi.Router) {
			r.Get("/", controllers.ConfigGet(p.Settings, logg))
			r.With(middleware.RequirePermission(enums.PermissionManageConfig, logg)).
				Post("/", controllers.ConfigUpdate(p.Settings, logg))
		})

		r.Route("/cardkeys", func(r chi.Router) {
			r.Use(middleware.RequirePermission(enums.PermissionManageCardKeys, logg))
			r.Get("/", controllers.CardKeysList(p.CardKeys, logg))
			r.Delete("/", controllers.CardKeysDelete(p.CardKeys, logg))
			r.Post("/generate", controllers.CardKeysGenerate(p.CardKeys, logg))
		})

		r.Route("/cleanup", func(r chi.Router) {
			r.Use(middleware.RequirePermission(enums.PermissionManageCardKeys, logg))
			r.Get("/", controllers.CleanupStats(p.Cleanup, logg))
			r.Post("/", controllers.CleanupRun(p.Cleanup, logg))
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.RequirePermission(enums.PermissionPromoteUser, logg))
			r.Get("/", controllers.UsersList(p.Users, logg))
			r.Put("/", controllers.UsersUpdateRole(p.Users, logg))
			r.Delete("/", controllers.UsersDelete(p.Users, logg))
		})
	})

	return r
}
