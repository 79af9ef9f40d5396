package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "tutorial-service/docs"
	"tutorial-service/internal/metrics"
)

// Routes builds the API router. m may be nil, in which case /metrics is not mounted.
func Routes(h *Handler, m *metrics.Metrics, log logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()

	// base middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// request logger (after RequestID)
	r.Use(RequestLogger(log))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Type", "Content-Length", "X-Request-Id"},
		MaxAge:         86400,
	}).Handler)
	if m != nil {
		r.Use(m.Middleware)
		r.Handle("/metrics", m.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", h.GenerateTutorial)
		r.Post("/generate-script", h.GenerateScript)
		r.Post("/generate-scene", h.GenerateScene)
		r.Get("/status/{id}", h.GetStatus)
		r.Get("/tasks", h.ListTasks)
		r.Delete("/clear/{id}", h.ClearTask)
		r.Get("/videos/*", h.ServeVideo)
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}
