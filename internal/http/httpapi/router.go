package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"videokit/internal/http/handlers"
	"videokit/internal/middleware"
	"videokit/internal/preview"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	var origins []string
	rateLimit := 0
	if app.Config != nil {
		origins = app.Config.CORSAllowedOrigins
		rateLimit = app.Config.RateLimitPerMin
	}

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(app.Logger),
		chimw.Recoverer,
		middleware.CORS(origins),
	)

	// Health & docs
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	r.Get(preview.PathPrefix+"*", app.ServePreview)

	r.Route("/api", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", app.ListJobs)
			r.With(middleware.RateLimit(rateLimit, time.Minute)).Post("/", app.CreateJob)
			r.Get("/{id}", app.GetJob)
			r.Delete("/{id}", app.DeleteJob)
			r.Post("/{id}/check", app.CheckJob)
		})
		r.Route("/prompts", func(r chi.Router) {
			r.Get("/", app.ListPrompts)
			r.With(middleware.RateLimit(rateLimit, time.Minute)).Post("/fix-timestamps", app.FixTimestamps)
		})

		r.Route("/images", func(r chi.Router) {
			r.Get("/", app.ListImages)
			r.Post("/", app.UploadImage)
			r.Post("/frames", app.AddFrame)
			r.Get("/export", app.ExportImages)
			r.Delete("/{id}", app.DeleteImage)
		})
		r.Delete("/data", app.ClearData)
		r.Get("/download", app.Download)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/api-key", app.GetAPIKey)
			r.Put("/api-key", app.PutAPIKey)
			r.Delete("/api-key", app.DeleteAPIKey)
			r.Get("/orientation", app.GetOrientation)
			r.Put("/orientation", app.PutOrientation)
		})
	})

	return r
}
