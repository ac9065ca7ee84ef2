package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"gateway/internal/http/handlers"
	"gateway/internal/middleware"
)

// Options configures the middleware stack around the handlers.
type Options struct {
	JWT             middleware.JWTConfig
	WebhookSecret   string
	CORSOrigins     []string
	RateLimitPerMin int
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	// StaticDir serves locally stored inline images under /static when set.
	StaticDir string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.Metrics(app.Metrics),
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	if app.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", app.Metrics.Handler())
	}
	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	auth := middleware.AuthJWT(opts.JWT)
	// Status reads stay public; a valid token only attributes the request.
	optionalAuth := middleware.OptionalAuthJWT(opts.JWT)

	r.Route("/v1/operations", func(r chi.Router) {
		r.With(middleware.WebhookSecret(opts.WebhookSecret)).Post("/webhook", app.OperationWebhook)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
			r.With(auth).Post("/", app.CreateOperation)
			r.With(optionalAuth).Get("/{operationId}", app.GetOperation)
			r.With(optionalAuth).Get("/{operationId}/live", app.GetOperationLive)
			r.With(auth).Put("/{operationId}", app.CorrectOperation)
		})
	})

	r.Route("/v1/users", func(r chi.Router) {
		r.Use(auth)
		r.Get("/me", app.Me)
		r.Get("/{id}/operations", app.ListUserOperations)
		r.Get("/{id}/operations/stats", app.UserOperationStats)
	})

	r.Route("/v1/webhooks", func(r chi.Router) {
		r.Use(auth)
		r.Get("/", app.ListWebhooks)
		r.Post("/", app.CreateWebhook)
		r.Put("/{id}", app.UpdateWebhook)
		r.Delete("/{id}", app.DeleteWebhook)
	})

	r.With(auth).Post("/v1/social/publish", app.SocialPublish)

	return r
}
