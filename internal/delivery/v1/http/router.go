package http

import (
	"github.com/DRSN-tech/fashion-search/internal/metrics"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

// Handlers — зависимости HTTP API.
type Handlers struct {
	Search  usecase.SearchUC
	Product usecase.ProductUC
	Heal    usecase.HealUC
	Engine  EngineReinitializer
	Checks  []HealthCheck
}

func (r *Router) Init(h Handlers) {
	r.router.Use(chiMiddleware.RequestID)
	r.router.Use(chiMiddleware.RealIP)
	r.router.Use(requestLogger(r.logger))
	r.router.Use(jsonRecoverer(r.logger))
	r.router.Use(metrics.Middleware())

	adminHandler := NewAdminHandler(h.Engine, h.Checks, r.logger)
	r.router.Get("/healthz", adminHandler.healthz)
	r.router.Handle("/metrics", promhttp.Handler())

	r.router.Route("/api/v1", func(v1 chi.Router) {
		registerSearchRoutes(v1, NewSearchHandler(h.Search, r.logger))
		registerProductRoutes(v1, NewProductHandler(h.Product, h.Heal, r.logger))
		registerAdminRoutes(v1, adminHandler)
	})
}

func registerSearchRoutes(router chi.Router, handler *SearchHandler) {
	router.Route("/search", func(sr chi.Router) {
		sr.Get("/", handler.searchByQuery)
		sr.Post("/", handler.searchByForm)
	})
}

func registerProductRoutes(router chi.Router, prHandler *ProductHandler) {
	router.Route("/products", func(pr chi.Router) {
		pr.Post("/", prHandler.registerProduct)
		pr.Post("/analyze", prHandler.analyzeProduct)

		pr.Route("/{id}", func(item chi.Router) {
			item.Get("/", prHandler.getProduct)
			item.Delete("/", prHandler.deleteProduct)
			item.Get("/related-price", prHandler.recommend(usecase.RecommendByPrice))
			item.Get("/coordination", prHandler.recommend(usecase.RecommendByCoordination))
			item.Get("/related-color", prHandler.recommend(usecase.RecommendByColor))
			item.Get("/related-style", prHandler.recommend(usecase.RecommendByStyle))
			item.Post("/ask", prHandler.askProduct)
			item.Post("/heal", prHandler.healProduct)
		})
	})
}

func registerAdminRoutes(router chi.Router, adminHandler *AdminHandler) {
	router.Post("/admin/engine/reinitialize", adminHandler.reinitializeEngine)
}
