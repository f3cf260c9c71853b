package router

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-pharmacy-catalog/internal/config"
	"go-pharmacy-catalog/internal/handler"
	"go-pharmacy-catalog/internal/middleware"
	"go-pharmacy-catalog/internal/model"
)

type Handlers struct {
	Auth      *handler.AuthHandler
	Product   *handler.ProductHandler
	Docs      *handler.DocsHandler
	Health    *handler.HealthHandler
	WebSocket *handler.WebSocketHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)
	adminOnly := []func(http.Handler) http.Handler{
		authMiddleware.RequireAuth,
		authMiddleware.RequireRole(model.RoleAdmin),
	}

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Health)
	r.Get("/openapi.yaml", h.Docs.OpenAPI)
	r.Get("/swagger", h.Docs.SwaggerUI)
	r.Get("/ws/catalog", h.WebSocket.Serve)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/signup", h.Auth.Signup)
			auth.Post("/login", h.Auth.Login)
			auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
		})

		api.Route("/products", func(products chi.Router) {
			products.Get("/", h.Product.List)
			products.Get("/{id}", h.Product.Get)
			products.With(adminOnly...).Post("/add", h.Product.Add)
			products.With(adminOnly...).Put("/{id}", h.Product.Update)
			products.With(adminOnly...).Delete("/{id}", h.Product.Delete)
		})
	})

	r.Handle("/uploads/*", http.StripPrefix("/uploads/", fileServer(cfg.UploadRoot)))
	r.Handle("/*", fileServer(cfg.StaticDir))

	return r
}

// fileServer serves dir without directory listings.
func fileServer(dir string) http.Handler {
	if strings.TrimSpace(dir) == "" {
		return http.NotFoundHandler()
	}
	return http.FileServerFS(noListingFS{os.DirFS(dir)})
}
