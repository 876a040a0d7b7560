package http

import (
	"github.com/DRSN-tech/image-fingerprint/internal/usecase"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(fpUC usecase.FingerprintUC, ingestUC usecase.IngestUC, limits Limits) {
	r.router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	features := NewFeaturesHandler(fpUC, limits, r.logger)
	ingest := NewIngestHandler(ingestUC, features, r.logger)

	r.router.Get("/health", features.health)

	r.router.Route("/api/v1", func(v1 chi.Router) {
		registerFeatureRoutes(v1, features)
		registerIngestRoutes(v1, ingest)
	})
}

func registerFeatureRoutes(router chi.Router, h *FeaturesHandler) {
	router.Route("/features", func(fr chi.Router) {
		fr.Post("/", h.extractFeatures)
		fr.Post("/url", h.extractFeaturesFromURL)
		fr.Post("/batch", h.extractBatch)
	})
	router.Post("/hash", h.contentHash)
}

func registerIngestRoutes(router chi.Router, h *IngestHandler) {
	router.Post("/products/{productID}/images", h.ingestProductImage)
	router.Post("/search", h.findSimilar)
}
