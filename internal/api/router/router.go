package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/medassist/medassist-ai-platform/internal/auth"
	"github.com/medassist/medassist-ai-platform/internal/chat"
	"github.com/medassist/medassist-ai-platform/internal/doctor"
	httpmiddleware "github.com/medassist/medassist-ai-platform/internal/http/middleware"
	"github.com/medassist/medassist-ai-platform/internal/uploads"
	"github.com/medassist/medassist-ai-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger        *logging.Logger
	AuthHandler   *auth.Handler
	ChatHandler   *chat.Handler
	UploadHandler *uploads.Handler
	DoctorHandler *doctor.Handler

	MetricsHandler http.Handler

	JWTSecret          string
	CORSAllowedOrigins []string

	// UploadDir, when set, is served read-only under /uploads.
	UploadDir string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints.
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.UploadDir != "" {
			public.Handle("/uploads/*", http.StripPrefix("/uploads/",
				http.FileServer(http.Dir(cfg.UploadDir))))
		}
	})

	if cfg.AuthHandler != nil {
		r.Route("/auth", func(ar chi.Router) {
			cfg.AuthHandler.PublicRoutes(ar)
			ar.Group(func(protected chi.Router) {
				protected.Use(httpmiddleware.RequireAuth(cfg.JWTSecret))
				cfg.AuthHandler.ProtectedRoutes(protected)
			})
		})
	}

	// Patient endpoints.
	r.Group(func(patient chi.Router) {
		patient.Use(httpmiddleware.RequireAuth(cfg.JWTSecret, httpmiddleware.RolePatient))
		if cfg.ChatHandler != nil {
			patient.Route("/chat", cfg.ChatHandler.Routes)
		}
		if cfg.UploadHandler != nil {
			patient.Route("/upload", cfg.UploadHandler.Routes)
		}
	})

	// Doctor endpoints.
	if cfg.DoctorHandler != nil {
		r.Group(func(doctorGroup chi.Router) {
			doctorGroup.Use(httpmiddleware.RequireAuth(cfg.JWTSecret, httpmiddleware.RoleDoctor))
			doctorGroup.Route("/doctor", cfg.DoctorHandler.Routes)
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
